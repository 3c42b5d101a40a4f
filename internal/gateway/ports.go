// Package gateway defines the contract of the remote budget service the
// session reads from and writes to.
package gateway

import (
	"context"

	"budget/internal/core"
)

// Ports for the remote data gateway. An empty accountID means all accounts.
type (
	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
		CreateAccount(ctx context.Context, name string) (core.Account, error)
		// DeleteAccount also deletes every transaction of the account.
		DeleteAccount(ctx context.Context, id string) error
	}

	TransactionStore interface {
		ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, error)
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, id string, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, id string) error
	}

	PeopleStore interface {
		// ListPeople returns the distinct person names referenced by transactions.
		ListPeople(ctx context.Context, accountID string) ([]string, error)
		// SettlePerson writes a settlement transaction for the person's balance.
		SettlePerson(ctx context.Context, person, accountID string) (core.Transaction, error)
	}

	GroupStore interface {
		ListGroups(ctx context.Context) ([]core.Group, error)
		CreateGroup(ctx context.Context, name string, members []string) (core.Group, error)
		UpdateGroup(ctx context.Context, id, name string, members []string) (core.Group, error)
	}

	StatsReader interface {
		DashboardStats(ctx context.Context, accountID string) (core.DashboardStats, error)
		MonthlyBreakdown(ctx context.Context, accountID string) ([]core.MonthlyPoint, error)
		CategoryBreakdown(ctx context.Context, t core.TransactionType, accountID string) ([]core.CategoryAmount, error)
		TrendSeries(ctx context.Context, q core.TrendQuery) ([]core.TrendPoint, error)
		PersonStats(ctx context.Context, accountID string) ([]core.PersonStat, error)
	}

	// Gateway is everything the session needs from the remote service.
	Gateway interface {
		AccountStore
		TransactionStore
		PeopleStore
		GroupStore
		StatsReader
	}
)
