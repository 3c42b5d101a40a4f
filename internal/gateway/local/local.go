// Package local is an offline gateway persisted in SQLite. Stats are
// computed with the ledger over the stored rows.
package local

import (
	"context"
	"errors"
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
	"budget/internal/storage"
)

// Repository is the subset of storage the gateway uses.
type Repository interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	AccountExists(ctx context.Context, id string) (bool, error)
	CreateAccount(ctx context.Context, a core.Account) error
	DeleteAccount(ctx context.Context, id string) error
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) error
	UpdateTransaction(ctx context.Context, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	ListGroups(ctx context.Context) ([]core.Group, error)
	SaveGroup(ctx context.Context, g core.Group, create bool) error
}

var _ Repository = (*storage.SQLiteRepository)(nil)

type Gateway struct {
	repo Repository
	// mu serialises writes so validation and insert see the same rows.
	mu  sync.Mutex
	now func() time.Time
}

var _ gateway.Gateway = (*Gateway)(nil)

func New(repo Repository) *Gateway {
	return &Gateway{repo: repo, now: time.Now}
}

// storeErr maps repository failures onto gateway errors.
func storeErr(op, what, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return gateway.NewError(op, http.StatusNotFound, fmt.Sprintf("%s %s not found", what, id))
	}
	return &gateway.Error{Op: op, Err: err}
}

func badRequest(op, msg string) error {
	return gateway.NewError(op, http.StatusBadRequest, msg)
}

func (g *Gateway) ListAccounts(ctx context.Context) ([]core.Account, error) {
	accs, err := g.repo.ListAccounts(ctx)
	if err != nil {
		return nil, &gateway.Error{Op: "list accounts", Err: err}
	}
	return accs, nil
}

func (g *Gateway) CreateAccount(ctx context.Context, name string) (core.Account, error) {
	const op = "create account"
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Account{}, badRequest(op, "Account name is required")
	}
	acc := core.Account{ID: uuid.NewString(), Name: name}
	if err := g.repo.CreateAccount(ctx, acc); err != nil {
		return core.Account{}, &gateway.Error{Op: op, Err: err}
	}
	return acc, nil
}

func (g *Gateway) DeleteAccount(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.repo.DeleteAccount(ctx, id); err != nil {
		return storeErr("delete account", "Account", id, err)
	}
	return nil
}

func (g *Gateway) snapshot(ctx context.Context, op string) ([]core.Transaction, []core.Group, error) {
	txs, err := g.repo.ListTransactions(ctx)
	if err != nil {
		return nil, nil, &gateway.Error{Op: op, Err: err}
	}
	groups, err := g.repo.ListGroups(ctx)
	if err != nil {
		return nil, nil, &gateway.Error{Op: op, Err: err}
	}
	return txs, groups, nil
}

func (g *Gateway) transactions(ctx context.Context, op string) ([]core.Transaction, error) {
	txs, err := g.repo.ListTransactions(ctx)
	if err != nil {
		return nil, &gateway.Error{Op: op, Err: err}
	}
	return txs, nil
}

func (g *Gateway) ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, error) {
	txs, err := g.transactions(ctx, "list transactions")
	if err != nil {
		return nil, err
	}
	return ledger.Filter(txs, q), nil
}

func (g *Gateway) check(ctx context.Context, op string, tx core.Transaction) error {
	if err := tx.Validate(); err != nil {
		return badRequest(op, err.Error())
	}
	ok, err := g.repo.AccountExists(ctx, tx.AccountID)
	if err != nil {
		return &gateway.Error{Op: op, Err: err}
	}
	if !ok {
		return gateway.NewError(op, http.StatusNotFound, fmt.Sprintf("Account %s not found", tx.AccountID))
	}
	if tx.GroupID != "" {
		groups, err := g.repo.ListGroups(ctx)
		if err != nil {
			return &gateway.Error{Op: op, Err: err}
		}
		if !slices.ContainsFunc(groups, func(gr core.Group) bool { return gr.ID == tx.GroupID }) {
			return gateway.NewError(op, http.StatusNotFound, fmt.Sprintf("Group %s not found", tx.GroupID))
		}
	}
	return nil
}

func (g *Gateway) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	const op = "create transaction"
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.check(ctx, op, tx); err != nil {
		return core.Transaction{}, err
	}
	tx = tx.Clone()
	tx.ID = uuid.NewString()
	if tx.Date.IsZero() {
		tx.Date = core.DateOf(g.now())
	}
	if err := g.repo.CreateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, &gateway.Error{Op: op, Err: err}
	}
	return tx, nil
}

func (g *Gateway) UpdateTransaction(ctx context.Context, id string, tx core.Transaction) (core.Transaction, error) {
	const op = "update transaction"
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.check(ctx, op, tx); err != nil {
		return core.Transaction{}, err
	}
	tx = tx.Clone()
	tx.ID = id
	if tx.Date.IsZero() {
		tx.Date = core.DateOf(g.now())
	}
	if err := g.repo.UpdateTransaction(ctx, tx); err != nil {
		return core.Transaction{}, storeErr(op, "Transaction", id, err)
	}
	return tx, nil
}

func (g *Gateway) DeleteTransaction(ctx context.Context, id string) error {
	if err := g.repo.DeleteTransaction(ctx, id); err != nil {
		return storeErr("delete transaction", "Transaction", id, err)
	}
	return nil
}

func (g *Gateway) ListPeople(ctx context.Context, accountID string) ([]string, error) {
	txs, err := g.transactions(ctx, "list people")
	if err != nil {
		return nil, err
	}
	return ledger.People(txs, accountID), nil
}

func (g *Gateway) SettlePerson(ctx context.Context, person, accountID string) (core.Transaction, error) {
	const op = "settle person"
	g.mu.Lock()
	defer g.mu.Unlock()
	txs, groups, err := g.snapshot(ctx, op)
	if err != nil {
		return core.Transaction{}, err
	}
	record, err := ledger.Settle(txs, groups, strings.TrimSpace(person), accountID, core.DateOf(g.now()))
	if err != nil {
		return core.Transaction{}, badRequest(op, err.Error())
	}
	if err := g.check(ctx, op, record); err != nil {
		return core.Transaction{}, err
	}
	record.ID = uuid.NewString()
	if err := g.repo.CreateTransaction(ctx, record); err != nil {
		return core.Transaction{}, &gateway.Error{Op: op, Err: err}
	}
	return record, nil
}

func (g *Gateway) ListGroups(ctx context.Context) ([]core.Group, error) {
	groups, err := g.repo.ListGroups(ctx)
	if err != nil {
		return nil, &gateway.Error{Op: "list groups", Err: err}
	}
	return groups, nil
}

func (g *Gateway) CreateGroup(ctx context.Context, name string, members []string) (core.Group, error) {
	const op = "create group"
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Group{}, badRequest(op, "Group name is required")
	}
	group := core.Group{ID: uuid.NewString(), Name: name, Members: ledger.Members(members)}
	if err := g.repo.SaveGroup(ctx, group, true); err != nil {
		return core.Group{}, &gateway.Error{Op: op, Err: err}
	}
	return group, nil
}

func (g *Gateway) UpdateGroup(ctx context.Context, id, name string, members []string) (core.Group, error) {
	const op = "update group"
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Group{}, badRequest(op, "Group name is required")
	}
	group := core.Group{ID: id, Name: name, Members: ledger.Members(members)}
	if err := g.repo.SaveGroup(ctx, group, false); err != nil {
		return core.Group{}, storeErr(op, "Group", id, err)
	}
	return group, nil
}

func (g *Gateway) DashboardStats(ctx context.Context, accountID string) (core.DashboardStats, error) {
	txs, err := g.transactions(ctx, "dashboard stats")
	if err != nil {
		return core.DashboardStats{}, err
	}
	return ledger.Dashboard(txs, accountID), nil
}

func (g *Gateway) MonthlyBreakdown(ctx context.Context, accountID string) ([]core.MonthlyPoint, error) {
	txs, err := g.transactions(ctx, "monthly breakdown")
	if err != nil {
		return nil, err
	}
	return ledger.Monthly(txs, accountID), nil
}

func (g *Gateway) CategoryBreakdown(ctx context.Context, t core.TransactionType, accountID string) ([]core.CategoryAmount, error) {
	const op = "category breakdown"
	if !t.Valid() {
		return nil, badRequest(op, core.ErrInvalidType.Error())
	}
	txs, err := g.transactions(ctx, op)
	if err != nil {
		return nil, err
	}
	return ledger.ByCategory(txs, t, accountID), nil
}

func (g *Gateway) TrendSeries(ctx context.Context, q core.TrendQuery) ([]core.TrendPoint, error) {
	const op = "trend series"
	if !q.Period.Valid() {
		return nil, badRequest(op, core.ErrInvalidPeriod.Error())
	}
	txs, err := g.transactions(ctx, op)
	if err != nil {
		return nil, err
	}
	return ledger.Trend(txs, q), nil
}

func (g *Gateway) PersonStats(ctx context.Context, accountID string) ([]core.PersonStat, error) {
	txs, groups, err := g.snapshot(ctx, "person stats")
	if err != nil {
		return nil, err
	}
	return ledger.PersonStats(txs, groups, accountID), nil
}
