package memory

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"budget/internal/core"
	"budget/internal/gateway"
	"budget/internal/ledger"
)

// Store is an in-process gateway. It answers every query through the ledger
// so its numbers match what the remote service computes.
type Store struct {
	mu       sync.Mutex
	accounts []core.Account
	txs      []core.Transaction
	groups   []core.Group
	now      func() time.Time
}

// Ensure interface conformance
var _ gateway.Gateway = (*Store)(nil)

func New() *Store {
	return &Store{now: time.Now}
}

// Seed creates a store holding copies of the given records.
func Seed(accounts []core.Account, txs []core.Transaction, groups []core.Group) *Store {
	s := New()
	s.accounts = append(s.accounts, accounts...)
	for _, tx := range txs {
		s.txs = append(s.txs, tx.Clone())
	}
	for _, g := range groups {
		s.groups = append(s.groups, g.Clone())
	}
	return s
}

func newID() string { return uuid.NewString() }

func notFound(op, what, id string) error {
	return gateway.NewError(op, http.StatusNotFound, fmt.Sprintf("%s %s not found", what, id))
}

func badRequest(op string, err error) error {
	return gateway.NewError(op, http.StatusBadRequest, err.Error())
}

func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Account(nil), s.accounts...), nil
}

func (s *Store) CreateAccount(_ context.Context, name string) (core.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Account{}, gateway.NewError("create account", http.StatusBadRequest, "Account name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := core.Account{ID: newID(), Name: name}
	s.accounts = append(s.accounts, acc)
	return acc, nil
}

// DeleteAccount removes the account and cascades to its transactions.
func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.accounts, func(a core.Account) bool { return a.ID == id })
	if i < 0 {
		return notFound("delete account", "Account", id)
	}
	s.accounts = slices.Delete(s.accounts, i, i+1)
	s.txs = slices.DeleteFunc(s.txs, func(tx core.Transaction) bool { return tx.AccountID == id })
	return nil
}

func (s *Store) ListTransactions(_ context.Context, q core.TransactionQuery) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.Filter(s.txs, q), nil
}

func (s *Store) checkLocked(op string, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return badRequest(op, err)
	}
	if !slices.ContainsFunc(s.accounts, func(a core.Account) bool { return a.ID == tx.AccountID }) {
		return notFound(op, "Account", tx.AccountID)
	}
	if tx.GroupID != "" && !slices.ContainsFunc(s.groups, func(g core.Group) bool { return g.ID == tx.GroupID }) {
		return notFound(op, "Group", tx.GroupID)
	}
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("create transaction", tx); err != nil {
		return core.Transaction{}, err
	}
	tx = tx.Clone()
	tx.ID = newID()
	if tx.Date.IsZero() {
		tx.Date = core.DateOf(s.now())
	}
	s.txs = append(s.txs, tx)
	return tx.Clone(), nil
}

func (s *Store) UpdateTransaction(_ context.Context, id string, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.txs, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		return core.Transaction{}, notFound("update transaction", "Transaction", id)
	}
	if err := s.checkLocked("update transaction", tx); err != nil {
		return core.Transaction{}, err
	}
	tx = tx.Clone()
	tx.ID = id
	if tx.Date.IsZero() {
		tx.Date = s.txs[i].Date
	}
	s.txs[i] = tx
	return tx.Clone(), nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.txs, func(t core.Transaction) bool { return t.ID == id })
	if i < 0 {
		return notFound("delete transaction", "Transaction", id)
	}
	s.txs = slices.Delete(s.txs, i, i+1)
	return nil
}

func (s *Store) ListPeople(_ context.Context, accountID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.People(s.txs, accountID), nil
}

func (s *Store) SettlePerson(_ context.Context, person, accountID string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, err := ledger.Settle(s.txs, s.groups, strings.TrimSpace(person), accountID, core.DateOf(s.now()))
	if err != nil {
		return core.Transaction{}, badRequest("settle person", err)
	}
	if err := s.checkLocked("settle person", record); err != nil {
		return core.Transaction{}, err
	}
	record.ID = newID()
	s.txs = append(s.txs, record)
	return record.Clone(), nil
}

func (s *Store) ListGroups(_ context.Context) ([]core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Group, len(s.groups))
	for i, g := range s.groups {
		out[i] = g.Clone()
	}
	return out, nil
}

func (s *Store) CreateGroup(_ context.Context, name string, members []string) (core.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Group{}, gateway.NewError("create group", http.StatusBadRequest, "Group name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g := core.Group{ID: newID(), Name: name, Members: ledger.Members(members)}
	s.groups = append(s.groups, g)
	return g.Clone(), nil
}

func (s *Store) UpdateGroup(_ context.Context, id, name string, members []string) (core.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Group{}, gateway.NewError("update group", http.StatusBadRequest, "Group name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.groups, func(g core.Group) bool { return g.ID == id })
	if i < 0 {
		return core.Group{}, notFound("update group", "Group", id)
	}
	s.groups[i] = core.Group{ID: id, Name: name, Members: ledger.Members(members)}
	return s.groups[i].Clone(), nil
}

func (s *Store) DashboardStats(_ context.Context, accountID string) (core.DashboardStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.Dashboard(s.txs, accountID), nil
}

func (s *Store) MonthlyBreakdown(_ context.Context, accountID string) ([]core.MonthlyPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.Monthly(s.txs, accountID), nil
}

func (s *Store) CategoryBreakdown(_ context.Context, t core.TransactionType, accountID string) ([]core.CategoryAmount, error) {
	if !t.Valid() {
		return nil, badRequest("category breakdown", core.ErrInvalidType)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.ByCategory(s.txs, t, accountID), nil
}

func (s *Store) TrendSeries(_ context.Context, q core.TrendQuery) ([]core.TrendPoint, error) {
	if !q.Period.Valid() {
		return nil, badRequest("trend series", core.ErrInvalidPeriod)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.Trend(s.txs, q), nil
}

func (s *Store) PersonStats(_ context.Context, accountID string) ([]core.PersonStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ledger.PersonStats(s.txs, s.groups, accountID), nil
}
