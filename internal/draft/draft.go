// Package draft holds the transaction form state as a pure reducer. Every
// change to a draft goes through Reduce, which looks up the transition for
// (event, state) and applies it to a copy.
package draft

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"budget/internal/core"
)

// AddNewPerson is the person value that reveals the new-person input.
const AddNewPerson = "__add_new__"

type State int

const (
	Closed State = iota
	OpenCreate
	OpenEdit
)

func (s State) String() string {
	switch s {
	case OpenCreate:
		return "open-create"
	case OpenEdit:
		return "open-edit"
	default:
		return "closed"
	}
}

// With selects which association a person-associative transaction uses.
type With string

const (
	WithPerson With = "person"
	WithGroup  With = "group"
)

// Draft is the in-progress transaction. CustomCategory, NewPerson and With
// are form-only and never sent to the gateway.
type Draft struct {
	State     State
	EditingID string

	Type           core.TransactionType
	Category       string
	CustomCategory string
	Amount         string
	Description    string
	Date           core.Date
	Person         string
	NewPerson      string
	SplitWith      []string
	GroupID        string
	With           With
	AccountID      string
}

var (
	ErrNotOpen           = errors.New("draft is not open")
	ErrAlreadyOpen       = errors.New("draft is already open")
	ErrInvalidTransition = errors.New("invalid draft transition")
)

// Event is an input to Reduce.
type Event interface {
	kind() eventKind
}

type eventKind int

const (
	evOpenCreate eventKind = iota
	evOpenEdit
	evCancel
	evSubmitted
	evSetType
	evSetCategory
	evSetCustomCategory
	evSetAmount
	evSetDescription
	evSetDate
	evSetPerson
	evSetNewPerson
	evSetSplitWith
	evSetWith
	evSetGroup
	evSetAccount
)

type (
	// Open starts a fresh draft for the given default account and date.
	Open struct {
		AccountID string
		Date      core.Date
	}
	// Edit seeds the draft from a stored transaction.
	Edit struct{ Tx core.Transaction }
	// Cancel closes the draft without submitting.
	Cancel struct{}
	// Submitted closes the draft after a successful write.
	Submitted struct{}

	SetType           struct{ Type core.TransactionType }
	SetCategory       struct{ Category string }
	SetCustomCategory struct{ Value string }
	SetAmount         struct{ Value string }
	SetDescription    struct{ Value string }
	SetDate           struct{ Date core.Date }
	// SetPerson selects a person, or AddNewPerson.
	SetPerson    struct{ Name string }
	SetNewPerson struct{ Value string }
	SetSplitWith struct{ Names []string }
	SetWith      struct{ With With }
	SetGroup     struct{ ID string }
	SetAccount   struct{ ID string }
)

func (Open) kind() eventKind              { return evOpenCreate }
func (Edit) kind() eventKind              { return evOpenEdit }
func (Cancel) kind() eventKind            { return evCancel }
func (Submitted) kind() eventKind         { return evSubmitted }
func (SetType) kind() eventKind           { return evSetType }
func (SetCategory) kind() eventKind       { return evSetCategory }
func (SetCustomCategory) kind() eventKind { return evSetCustomCategory }
func (SetAmount) kind() eventKind         { return evSetAmount }
func (SetDescription) kind() eventKind    { return evSetDescription }
func (SetDate) kind() eventKind           { return evSetDate }
func (SetPerson) kind() eventKind         { return evSetPerson }
func (SetNewPerson) kind() eventKind      { return evSetNewPerson }
func (SetSplitWith) kind() eventKind      { return evSetSplitWith }
func (SetWith) kind() eventKind           { return evSetWith }
func (SetGroup) kind() eventKind          { return evSetGroup }
func (SetAccount) kind() eventKind        { return evSetAccount }

type transitionKey struct {
	event eventKind
	state State
}

type transition func(d Draft, ev Event) Draft

var transitions = map[transitionKey]transition{}

func init() {
	on := func(k eventKind, fn transition, states ...State) {
		for _, s := range states {
			transitions[transitionKey{k, s}] = fn
		}
	}
	open := []State{OpenCreate, OpenEdit}

	on(evOpenCreate, openCreate, Closed)
	on(evOpenEdit, openEdit, Closed)
	on(evCancel, closeDraft, open...)
	on(evSubmitted, closeDraft, open...)

	on(evSetType, setType, open...)
	on(evSetCategory, func(d Draft, ev Event) Draft {
		return withCategory(d, ev.(SetCategory).Category)
	}, open...)
	on(evSetCustomCategory, func(d Draft, ev Event) Draft {
		d.CustomCategory = ev.(SetCustomCategory).Value
		return d
	}, open...)
	on(evSetAmount, func(d Draft, ev Event) Draft {
		d.Amount = ev.(SetAmount).Value
		return d
	}, open...)
	on(evSetDescription, func(d Draft, ev Event) Draft {
		d.Description = ev.(SetDescription).Value
		return d
	}, open...)
	on(evSetDate, func(d Draft, ev Event) Draft {
		d.Date = ev.(SetDate).Date
		return d
	}, open...)
	on(evSetPerson, setPerson, open...)
	on(evSetNewPerson, func(d Draft, ev Event) Draft {
		d.NewPerson = ev.(SetNewPerson).Value
		return d
	}, open...)
	on(evSetSplitWith, func(d Draft, ev Event) Draft {
		d.SplitWith = slices.Clone(ev.(SetSplitWith).Names)
		return d
	}, open...)
	on(evSetWith, setWith, open...)
	on(evSetGroup, func(d Draft, ev Event) Draft {
		d.GroupID = ev.(SetGroup).ID
		return d
	}, open...)
	on(evSetAccount, func(d Draft, ev Event) Draft {
		d.AccountID = ev.(SetAccount).ID
		return d
	}, open...)
}

// Reduce applies ev to d and returns the new draft. d is never modified.
func Reduce(d Draft, ev Event) (Draft, error) {
	fn, ok := transitions[transitionKey{ev.kind(), d.State}]
	if !ok {
		switch {
		case d.State == Closed:
			return d, ErrNotOpen
		case ev.kind() == evOpenCreate || ev.kind() == evOpenEdit:
			return d, ErrAlreadyOpen
		default:
			return d, fmt.Errorf("%w: %T in %s", ErrInvalidTransition, ev, d.State)
		}
	}
	d.SplitWith = slices.Clone(d.SplitWith)
	return fn(d, ev), nil
}

// IsOpen reports whether the dialog is showing.
func (d Draft) IsOpen() bool { return d.State != Closed }

// ShowsCustomCategory reports whether the custom category input is visible.
func (d Draft) ShowsCustomCategory() bool { return d.Category == core.CustomCategory }

// ShowsNewPerson reports whether the new person input is visible.
func (d Draft) ShowsNewPerson() bool { return d.Person == AddNewPerson }

// NeedsAssociation reports whether the person/group picker is visible.
func (d Draft) NeedsAssociation() bool { return core.IsPersonAssociative(d.Category) }

func openCreate(_ Draft, ev Event) Draft {
	o := ev.(Open)
	return Draft{
		State:     OpenCreate,
		Type:      core.Expense,
		Date:      o.Date,
		With:      WithPerson,
		AccountID: o.AccountID,
	}
}

func openEdit(_ Draft, ev Event) Draft {
	tx := ev.(Edit).Tx
	d := Draft{
		State:       OpenEdit,
		EditingID:   tx.ID,
		Type:        tx.Type,
		Category:    tx.Category,
		Amount:      tx.Amount.StringFixed(2),
		Description: tx.Description,
		Date:        tx.Date,
		Person:      tx.Person,
		SplitWith:   slices.Clone(tx.SplitWith),
		GroupID:     tx.GroupID,
		With:        WithPerson,
		AccountID:   tx.AccountID,
	}
	if tx.GroupID != "" {
		d.With = WithGroup
	}
	if !core.IsRecognizedCategory(tx.Type, tx.Category) {
		d.Category = core.CustomCategory
		d.CustomCategory = tx.Category
	}
	return d
}

func closeDraft(Draft, Event) Draft {
	return Draft{State: Closed}
}

func setType(d Draft, ev Event) Draft {
	t := ev.(SetType).Type
	if t == d.Type {
		return d
	}
	d.Type = t
	return withCategory(d, "")
}

// withCategory sets the category, dropping any association when leaving a
// person-associative category.
func withCategory(d Draft, category string) Draft {
	if core.IsPersonAssociative(d.Category) && !core.IsPersonAssociative(category) {
		d.Person = ""
		d.NewPerson = ""
		d.SplitWith = nil
		d.GroupID = ""
		d.With = WithPerson
	}
	d.Category = category
	return d
}

func setPerson(d Draft, ev Event) Draft {
	d.Person = ev.(SetPerson).Name
	if d.Person != AddNewPerson {
		d.NewPerson = ""
	}
	return d
}

func setWith(d Draft, ev Event) Draft {
	switch ev.(SetWith).With {
	case WithGroup:
		d.With = WithGroup
		d.Person = ""
		d.NewPerson = ""
		d.SplitWith = nil
	default:
		d.With = WithPerson
		d.GroupID = ""
	}
	return d
}

// ResolvedCategory is the category that will be stored.
func (d Draft) ResolvedCategory() string {
	if d.Category == core.CustomCategory {
		return strings.TrimSpace(d.CustomCategory)
	}
	return strings.TrimSpace(d.Category)
}

// ResolvedPerson is the person that will be stored.
func (d Draft) ResolvedPerson() string {
	if d.Person == AddNewPerson {
		return strings.TrimSpace(d.NewPerson)
	}
	return strings.TrimSpace(d.Person)
}
