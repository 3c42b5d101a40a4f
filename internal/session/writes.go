package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/draft"
	"budget/internal/log"
	"budget/internal/settlement"
)

// OpenCreate opens a fresh draft on the default account.
func (s *Session) OpenCreate() error {
	return s.Dispatch(draft.Open{AccountID: s.Snapshot().DefaultAccountID, Date: core.DateOf(s.now())})
}

// OpenEdit opens a draft seeded from tx.
func (s *Session) OpenEdit(tx core.Transaction) error {
	return s.Dispatch(draft.Edit{Tx: tx.Clone()})
}

// CancelDraft closes the draft without writing.
func (s *Session) CancelDraft() error {
	return s.Dispatch(draft.Cancel{})
}

// Dispatch applies a draft event.
func (s *Session) Dispatch(ev draft.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	next, err := draft.Reduce(s.state.Draft, ev)
	if err != nil {
		return err
	}
	s.state.Draft = next
	return nil
}

// Submit validates the draft and creates or updates the transaction,
// depending on whether the draft edits one. On success the draft closes and
// everything is reloaded. Validation errors are returned without any gateway
// call; gateway errors leave the draft open.
func (s *Session) Submit(ctx context.Context) (core.Transaction, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.Transaction{}, ErrClosed
	}
	d := s.state.Draft
	s.mu.Unlock()

	tx, err := draft.Resolve(d)
	if err != nil {
		return core.Transaction{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	op := log.OpCreate
	var saved core.Transaction
	if d.EditingID != "" {
		op = log.OpUpdate
		saved, err = s.gw.UpdateTransaction(ctx, d.EditingID, tx)
	} else {
		saved, err = s.gw.CreateTransaction(ctx, tx)
	}
	if err != nil {
		s.notifyError(op, err)
		return core.Transaction{}, fmt.Errorf("%s transaction: %w", op, err)
	}

	s.logger.Fields(ctx, slog.LevelInfo, "Transaction saved", log.NewFields().
		WithOperation(op).
		WithTransaction(saved.ID, string(saved.Type), saved.Category, saved.Amount.StringFixed(2)).
		WithAccount(saved.AccountID))

	s.mu.Lock()
	// The draft may have been reopened meanwhile; only close the one submitted.
	if s.state.Draft.IsOpen() && s.state.Draft.EditingID == d.EditingID {
		s.state.Draft, _ = draft.Reduce(s.state.Draft, draft.Submitted{})
	}
	s.mu.Unlock()

	s.publish(ctx, amqp.EntityTransaction, op, saved.ID, saved.AccountID)
	return saved, s.Reload(ctx)
}

// DeleteTransaction deletes a transaction and reloads.
func (s *Session) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.write(ctx, log.OpDelete, func(ctx context.Context) error {
		return s.gw.DeleteTransaction(ctx, id)
	}); err != nil {
		return err
	}
	s.publish(ctx, amqp.EntityTransaction, log.OpDelete, id, "")
	return s.Reload(ctx)
}

// CreateAccount creates an account and reloads.
func (s *Session) CreateAccount(ctx context.Context, name string) (core.Account, error) {
	if err := s.checkOpen(); err != nil {
		return core.Account{}, err
	}
	var acc core.Account
	err := s.write(ctx, log.OpCreate, func(ctx context.Context) (err error) {
		acc, err = s.gw.CreateAccount(ctx, strings.TrimSpace(name))
		return err
	})
	if err != nil {
		return core.Account{}, err
	}
	s.publish(ctx, amqp.EntityAccount, log.OpCreate, acc.ID, acc.ID)
	return acc, s.Reload(ctx)
}

// DeleteAccount deletes an account and, server side, its transactions. When
// the deleted account is the current scope the scope falls back to all
// accounts before the single follow-up reload, so no fetch for the deleted
// scope is issued and older in-flight batches are discarded.
func (s *Session) DeleteAccount(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	// Hold back pending fetches; they may still target the account.
	pending := s.debounce.Cancel()
	if err := s.write(ctx, log.OpDelete, func(ctx context.Context) error {
		return s.gw.DeleteAccount(ctx, id)
	}); err != nil {
		if pending {
			s.debounce.Trigger()
		}
		return err
	}

	s.mu.Lock()
	if s.state.Scope == id {
		s.state.Scope = core.AllAccounts
	}
	if s.state.DefaultAccountID == id {
		s.state.DefaultAccountID = ""
	}
	if s.state.Draft.AccountID == id {
		s.state.Draft.AccountID = ""
	}
	s.mu.Unlock()

	s.publish(ctx, amqp.EntityAccount, log.OpDelete, id, id)
	return s.Reload(ctx)
}

// CreateGroup creates a group and reloads.
func (s *Session) CreateGroup(ctx context.Context, name string, members []string) (core.Group, error) {
	if err := s.checkOpen(); err != nil {
		return core.Group{}, err
	}
	var g core.Group
	err := s.write(ctx, log.OpCreate, func(ctx context.Context) (err error) {
		g, err = s.gw.CreateGroup(ctx, name, members)
		return err
	})
	if err != nil {
		return core.Group{}, err
	}
	s.publish(ctx, amqp.EntityGroup, log.OpCreate, g.ID, "")
	return g, s.Reload(ctx)
}

// UpdateGroup renames a group and replaces its members, then reloads.
func (s *Session) UpdateGroup(ctx context.Context, id, name string, members []string) (core.Group, error) {
	if err := s.checkOpen(); err != nil {
		return core.Group{}, err
	}
	var g core.Group
	err := s.write(ctx, log.OpUpdate, func(ctx context.Context) (err error) {
		g, err = s.gw.UpdateGroup(ctx, id, name, members)
		return err
	})
	if err != nil {
		return core.Group{}, err
	}
	s.publish(ctx, amqp.EntityGroup, log.OpUpdate, g.ID, "")
	return g, s.Reload(ctx)
}

// ErrUnknownPerson is returned when planning a settlement for a person
// without loaded stats.
var ErrUnknownPerson = errors.New("no balance loaded for person")

// PlanSettlement computes the settlement of person's loaded balance into
// accountID. An empty accountID targets the scoped account, or the default
// account when all accounts are shown.
func (s *Session) PlanSettlement(person, accountID string) (settlement.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if accountID == "" {
		accountID = core.ScopedAccount(s.state.Scope)
	}
	if accountID == "" {
		accountID = s.state.DefaultAccountID
	}
	person = strings.TrimSpace(person)
	for _, st := range s.state.PersonStats {
		if st.Name == person {
			return settlement.Plan(st, accountID), nil
		}
	}
	return settlement.Action{}, fmt.Errorf("%w: %q", ErrUnknownPerson, person)
}

// Settle confirms a settlement: one request to the gateway, then a reload.
// The new balance comes from the reload, never from local arithmetic.
func (s *Session) Settle(ctx context.Context, action settlement.Action) (core.Transaction, error) {
	if err := s.checkOpen(); err != nil {
		return core.Transaction{}, err
	}
	if err := action.Validate(); err != nil {
		return core.Transaction{}, err
	}
	req := action.Request()
	var record core.Transaction
	err := s.write(ctx, log.OpSettle, func(ctx context.Context) (err error) {
		record, err = s.gw.SettlePerson(ctx, req.PersonName, req.AccountID)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.logger.InfoContext(ctx, "Settlement recorded",
		log.FieldPerson, req.PersonName,
		log.FieldAccountID, req.AccountID,
		log.FieldTxType, record.Type,
		log.FieldAmount, record.Amount.StringFixed(2))
	s.publish(ctx, amqp.EntitySettlement, log.OpSettle, record.ID, req.AccountID)
	return record, s.Reload(ctx)
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// write runs one gateway write under the request timeout and reports its
// failure.
func (s *Session) write(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := fn(wctx); err != nil {
		s.notifyError(op, err)
		return err
	}
	return nil
}

// publish announces a write on the change feed. Failures are logged only;
// the write itself already succeeded.
func (s *Session) publish(ctx context.Context, entity, op, id, accountID string) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewChangeMessage(s.id, entity, op, id, accountID)
	if err := s.publisher.PublishChange(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish change",
			"entity", entity,
			log.FieldOperation, op,
			log.FieldError, err)
	}
}
