package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	SortDateDesc   SortKey = "date_desc"
	SortDateAsc    SortKey = "date_asc"
	SortAmountDesc SortKey = "amount_desc"
	SortAmountAsc  SortKey = "amount_asc"
)

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// AllAccounts is the scope sentinel meaning "every account".
const AllAccounts = "all"

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	SortKey string

	Period string

	// Date is a calendar date without a time component, always UTC midnight.
	Date struct {
		time.Time
	}

	Account struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	Transaction struct {
		ID          string          `json:"id,omitempty"`
		Type        TransactionType `json:"type"`
		Category    string          `json:"category"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
		Date        Date            `json:"date"`
		Person      string          `json:"person,omitempty"`
		SplitWith   []string        `json:"split_with,omitempty"`
		GroupID     string          `json:"group_id,omitempty"`
		AccountID   string          `json:"account_id"`
	}

	Group struct {
		ID      string   `json:"id"`
		Name    string   `json:"name"`
		Members []string `json:"members"`
	}

	// PersonStat is computed by the gateway. A positive NetBalance means the
	// person owes the user, a negative one means the user owes the person.
	PersonStat struct {
		Name             string          `json:"name"`
		TotalReceived    decimal.Decimal `json:"total_received"`
		TotalGiven       decimal.Decimal `json:"total_given"`
		NetBalance       decimal.Decimal `json:"net_balance"`
		TransactionCount int             `json:"transaction_count"`
	}
)

// Classification of a transaction with respect to shared expenses.
type Classification int

const (
	Plain Classification = iota
	PersonTagged
	GroupTagged
)

func (c Classification) String() string {
	switch c {
	case PersonTagged:
		return "person"
	case GroupTagged:
		return "group"
	default:
		return "plain"
	}
}

var (
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyCategory    = errors.New("empty category")
	ErrMissingAccount   = errors.New("missing account")
	ErrAmbiguousTagging = errors.New("transaction tagged with both a person and a group")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidPeriod    = errors.New("invalid trend period")
	ErrInvalidSort      = errors.New("invalid sort key")
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Opposite returns the other transaction type.
func (t TransactionType) Opposite() TransactionType {
	if t == Income {
		return Expense
	}
	return Income
}

func (s SortKey) Valid() bool {
	switch s {
	case SortDateDesc, SortDateAsc, SortAmountDesc, SortAmountAsc:
		return true
	}
	return false
}

func (p Period) Valid() bool {
	switch p {
	case Daily, Weekly, Monthly:
		return true
	}
	return false
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps too; only the date part is kept.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Classification reports which association applies to the transaction.
func (t Transaction) Classification() Classification {
	switch {
	case t.GroupID != "":
		return GroupTagged
	case t.Person != "" || len(t.SplitWith) > 0:
		return PersonTagged
	default:
		return Plain
	}
}

// Validate checks the invariants a transaction must hold before it is written.
func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.AccountID) == "" {
		return ErrMissingAccount
	}
	if t.GroupID != "" && (t.Person != "" || len(t.SplitWith) > 0) {
		return ErrAmbiguousTagging
	}
	return nil
}

// People returns the person names referenced by the transaction.
func (t Transaction) People() []string {
	var out []string
	if p := strings.TrimSpace(t.Person); p != "" {
		out = append(out, p)
	}
	for _, p := range t.SplitWith {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Clone returns a deep copy, so callers can't alias SplitWith.
func (t Transaction) Clone() Transaction {
	if t.SplitWith != nil {
		t.SplitWith = append([]string(nil), t.SplitWith...)
	}
	return t
}

func (g Group) Clone() Group {
	g.Members = append([]string(nil), g.Members...)
	return g
}

// HasMember reports whether name belongs to the group.
func (g Group) HasMember(name string) bool {
	for _, m := range g.Members {
		if m == name {
			return true
		}
	}
	return false
}
