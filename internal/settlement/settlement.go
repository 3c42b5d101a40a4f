// Package settlement computes the action that zeroes the balance between the
// user and a person.
package settlement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// Category is the category of settlement transactions written by the gateway.
const Category = "Settlement"

// Tolerance is the smallest balance worth settling. Anything closer to zero
// counts as already settled.
var Tolerance = decimal.New(1, -2)

var (
	ErrSettled   = errors.New("balance already settled")
	ErrNoAccount = errors.New("no account selected for settlement")
	ErrNoPerson  = errors.New("no person to settle with")
)

// Action describes the settlement of one person's balance. The direction is
// derived from the sign of the balance, never from user input.
type Action struct {
	Person    string
	AccountID string
	Amount    decimal.Decimal
	Type      core.TransactionType
	Enabled   bool
}

// Request is the body sent to the gateway when confirming a settlement.
type Request struct {
	PersonName string `json:"person_name"`
	AccountID  string `json:"account_id"`
}

// IsSettled reports whether balance is within Tolerance of zero.
func IsSettled(balance decimal.Decimal) bool {
	return balance.Abs().LessThan(Tolerance)
}

// Plan computes the settlement action for stat against the target account.
// A positive balance is settled with an income record, a negative one with an
// expense record, both for the absolute balance.
func Plan(stat core.PersonStat, accountID string) Action {
	a := Action{
		Person:    strings.TrimSpace(stat.Name),
		AccountID: accountID,
		Amount:    stat.NetBalance.Abs(),
		Type:      core.Expense,
	}
	if stat.NetBalance.IsPositive() {
		a.Type = core.Income
	}
	a.Enabled = !IsSettled(stat.NetBalance) && a.Person != ""
	return a
}

// Validate returns why the action can't be confirmed, if it can't.
func (a Action) Validate() error {
	switch {
	case a.Person == "":
		return ErrNoPerson
	case !a.Enabled || IsSettled(a.Amount):
		return ErrSettled
	case strings.TrimSpace(a.AccountID) == "" || a.AccountID == core.AllAccounts:
		return ErrNoAccount
	}
	return nil
}

// Message is the confirmation text shown before dispatching the settlement.
func (a Action) Message() string {
	if !a.Enabled {
		return fmt.Sprintf("Your balance with %s is already settled.", a.Person)
	}
	if a.Type == core.Income {
		return fmt.Sprintf("This will create an income of %s to record that %s paid you back.",
			core.FormatAmount(a.Amount), a.Person)
	}
	return fmt.Sprintf("This will create an expense of %s to record that you paid back %s.",
		core.FormatAmount(a.Amount), a.Person)
}

// Request builds the gateway request for the action.
func (a Action) Request() Request {
	return Request{PersonName: a.Person, AccountID: a.AccountID}
}

// Transaction is the record a gateway writes for the action on date.
func (a Action) Transaction(date core.Date) core.Transaction {
	desc := "Settlement with " + a.Person
	return core.Transaction{
		Type:        a.Type,
		Category:    Category,
		Amount:      a.Amount,
		Description: desc,
		Date:        date,
		Person:      a.Person,
		AccountID:   a.AccountID,
	}
}
