// Package storage persists accounts, transactions and groups in SQLite for
// the local backend.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]core.Account, len(rows))
	for i, a := range rows {
		out[i] = core.Account{ID: a.ID, Name: a.Name}
	}
	return out, nil
}

func (r *SQLiteRepository) AccountExists(ctx context.Context, id string) (bool, error) {
	_, err := r.queries.GetAccount(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get account: %w", err)
	}
	return true, nil
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	if err := r.queries.CreateAccount(ctx, Account{ID: a.ID, Name: a.Name}); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	slog.InfoContext(ctx, "Account saved to SQLite", "component", log.ComponentStorage, "id", a.ID, "name", a.Name)
	return nil
}

// DeleteAccount removes the account and every transaction that references it.
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	var removed int64
	err := r.inTx(ctx, func(q *Queries) error {
		n, err := q.DeleteAccountTransactions(ctx, id)
		if err != nil {
			return fmt.Errorf("delete account transactions: %w", err)
		}
		removed = n
		affected, err := q.DeleteAccount(ctx, id)
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("account %s: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Account deleted from SQLite",
		"component", log.ComponentStorage,
		"id", id,
		"transactions_removed", removed)
	return nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := fromRow(row)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", row.ID, err)
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) error {
	row, err := toRow(tx)
	if err != nil {
		return err
	}
	if err := r.queries.CreateTransaction(ctx, row); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"component", log.ComponentStorage,
		"id", tx.ID,
		"type", tx.Type,
		"amount", tx.Amount.StringFixed(2),
		"account_id", tx.AccountID)
	return nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	row, err := toRow(tx)
	if err != nil {
		return err
	}
	affected, err := r.queries.UpdateTransaction(ctx, row)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", tx.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	affected, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListGroups(ctx context.Context) ([]core.Group, error) {
	rows, err := r.queries.ListGroupRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	var out []core.Group
	index := map[string]int{}
	for _, row := range rows {
		i, ok := index[row.GroupID]
		if !ok {
			i = len(out)
			index[row.GroupID] = i
			out = append(out, core.Group{ID: row.GroupID, Name: row.Name, Members: []string{}})
		}
		if row.Member != "" {
			out[i].Members = append(out[i].Members, row.Member)
		}
	}
	return out, nil
}

// SaveGroup inserts the group, or renames it and replaces its members when
// it already exists.
func (r *SQLiteRepository) SaveGroup(ctx context.Context, g core.Group, create bool) error {
	return r.inTx(ctx, func(q *Queries) error {
		if create {
			if err := q.CreateGroup(ctx, g.ID, g.Name); err != nil {
				return fmt.Errorf("create group: %w", err)
			}
		} else {
			affected, err := q.RenameGroup(ctx, g.ID, g.Name)
			if err != nil {
				return fmt.Errorf("rename group: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("group %s: %w", g.ID, ErrNotFound)
			}
			if err := q.DeleteGroupMembers(ctx, g.ID); err != nil {
				return fmt.Errorf("clear group members: %w", err)
			}
		}
		for _, m := range g.Members {
			if err := q.AddGroupMember(ctx, g.ID, m); err != nil {
				return fmt.Errorf("add group member: %w", err)
			}
		}
		return nil
	})
}

func toRow(tx core.Transaction) (Transaction, error) {
	split := tx.SplitWith
	if split == nil {
		split = []string{}
	}
	encoded, err := json.Marshal(split)
	if err != nil {
		return Transaction{}, fmt.Errorf("encode split_with: %w", err)
	}
	return Transaction{
		ID:          tx.ID,
		Type:        string(tx.Type),
		Category:    tx.Category,
		Amount:      tx.Amount.String(),
		Description: tx.Description,
		Date:        tx.Date.String(),
		Person:      tx.Person,
		SplitWith:   string(encoded),
		GroupID:     tx.GroupID,
		AccountID:   tx.AccountID,
	}, nil
}

func fromRow(row Transaction) (core.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount: %w", err)
	}
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	var split []string
	if row.SplitWith != "" {
		if err := json.Unmarshal([]byte(row.SplitWith), &split); err != nil {
			return core.Transaction{}, fmt.Errorf("decode split_with: %w", err)
		}
	}
	if len(split) == 0 {
		split = nil
	}
	return core.Transaction{
		ID:          row.ID,
		Type:        core.TransactionType(row.Type),
		Category:    row.Category,
		Amount:      amount,
		Description: row.Description,
		Date:        date,
		Person:      row.Person,
		SplitWith:   split,
		GroupID:     row.GroupID,
		AccountID:   row.AccountID,
	}, nil
}
