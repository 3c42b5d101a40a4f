// Package stats derives totals from the transaction list already loaded by
// the session.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"budget/internal/core"
)

// Stats summarises a transaction list. Net is always Income minus Expense.
type Stats struct {
	Income     decimal.Decimal
	Expense    decimal.Decimal
	Net        decimal.Decimal
	Categories []string
}

// Filters are the filter axes that count toward FiltersActive.
type Filters struct {
	Search   string
	Type     core.TransactionType
	Category string
	Sort     core.SortKey
}

// Compute sums txs by type and collects their distinct categories, sorted.
// It does not filter: txs is taken as already filtered upstream.
func Compute(txs []core.Transaction) Stats {
	var s Stats
	seen := make(map[string]struct{})
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			s.Income = s.Income.Add(tx.Amount)
		case core.Expense:
			s.Expense = s.Expense.Add(tx.Amount)
		}
		if tx.Category != "" {
			seen[tx.Category] = struct{}{}
		}
	}
	s.Net = s.Income.Sub(s.Expense)
	s.Categories = make([]string, 0, len(seen))
	for c := range seen {
		s.Categories = append(s.Categories, c)
	}
	sort.Strings(s.Categories)
	return s
}

// FiltersActive reports whether any filter other than the sort key is set.
func FiltersActive(f Filters) bool {
	return f.Search != "" || f.Type != "" || f.Category != ""
}
