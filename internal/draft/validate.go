package draft

import (
	"errors"
	"strings"

	"budget/internal/core"
)

var (
	ErrNoAccount               = errors.New("no account selected")
	ErrMissingAmountOrCategory = errors.New("amount and category are required")
	ErrInvalidAmount           = errors.New("amount is not a non-negative number")
	ErrMissingPerson           = errors.New("person is required for this category")
	ErrMissingGroup            = errors.New("group is required for this category")
)

var messages = map[error]string{
	ErrNoAccount:               "Please select an account.",
	ErrMissingAmountOrCategory: "Please fill in amount and category.",
	ErrInvalidAmount:           "Please enter a valid amount.",
	ErrMissingPerson:           "Please select or enter a person.",
	ErrMissingGroup:            "Please select a group.",
}

// ValidationError names the field that failed.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Message is the text shown next to the field.
func (e *ValidationError) Message() string {
	if m, ok := messages[e.Err]; ok {
		return m
	}
	return e.Err.Error()
}

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// Validate checks the draft in order: account, amount and category, then
// the association required by person-associative categories. The first
// failure is returned.
func Validate(d Draft) error {
	if !d.IsOpen() {
		return ErrNotOpen
	}
	if acc := strings.TrimSpace(d.AccountID); acc == "" || acc == core.AllAccounts {
		return invalid("account", ErrNoAccount)
	}
	if strings.TrimSpace(d.Amount) == "" {
		return invalid("amount", ErrMissingAmountOrCategory)
	}
	category := d.ResolvedCategory()
	if category == "" {
		return invalid("category", ErrMissingAmountOrCategory)
	}
	if _, err := core.ParseAmount(d.Amount); err != nil {
		return invalid("amount", ErrInvalidAmount)
	}
	if core.IsPersonAssociative(category) {
		if d.With == WithGroup {
			if strings.TrimSpace(d.GroupID) == "" {
				return invalid("group_id", ErrMissingGroup)
			}
		} else if d.ResolvedPerson() == "" {
			return invalid("person", ErrMissingPerson)
		}
	}
	return nil
}

// Resolve validates the draft and builds the transaction to send. Transient
// fields are folded in: Custom becomes the custom category and the new
// person sentinel becomes the typed name.
func Resolve(d Draft) (core.Transaction, error) {
	if err := Validate(d); err != nil {
		return core.Transaction{}, err
	}
	amount, _ := core.ParseAmount(d.Amount)
	tx := core.Transaction{
		ID:          d.EditingID,
		Type:        d.Type,
		Category:    d.ResolvedCategory(),
		Amount:      amount,
		Description: strings.TrimSpace(d.Description),
		Date:        d.Date,
		AccountID:   strings.TrimSpace(d.AccountID),
	}
	if d.With == WithGroup {
		tx.GroupID = strings.TrimSpace(d.GroupID)
	} else {
		tx.Person = d.ResolvedPerson()
		for _, p := range d.SplitWith {
			if p = strings.TrimSpace(p); p != "" {
				tx.SplitWith = append(tx.SplitWith, p)
			}
		}
	}
	return tx, nil
}
