// Package ledger holds the aggregate computations a budget gateway performs
// over its stored transactions. The in-process gateways use it to answer
// stats queries the way the remote service does.
package ledger

import (
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"budget/internal/core"
	"budget/internal/settlement"
)

// InScope reports whether tx belongs to the account scope ("" means all).
func InScope(tx core.Transaction, accountID string) bool {
	return accountID == "" || accountID == core.AllAccounts || tx.AccountID == accountID
}

// Filter applies the query's scope and filters, then sorts the result.
// The input slice is not modified.
func Filter(txs []core.Transaction, q core.TransactionQuery) []core.Transaction {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !InScope(tx, q.AccountID) {
			continue
		}
		if q.Type != "" && tx.Type != q.Type {
			continue
		}
		if q.Category != "" && tx.Category != q.Category {
			continue
		}
		if search != "" && !matches(tx, search) {
			continue
		}
		out = append(out, tx.Clone())
	}
	Sort(out, q.Sort)
	return out
}

func matches(tx core.Transaction, needle string) bool {
	fields := append([]string{tx.Description, tx.Category, tx.Person}, tx.SplitWith...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// Sort orders txs in place by key; ties fall back to id so the order is stable.
func Sort(txs []core.Transaction, key core.SortKey) {
	less := func(a, b core.Transaction) int {
		switch key {
		case core.SortDateAsc:
			return a.Date.Compare(b.Date.Time)
		case core.SortAmountDesc:
			return b.Amount.Cmp(a.Amount)
		case core.SortAmountAsc:
			return a.Amount.Cmp(b.Amount)
		default:
			return b.Date.Compare(a.Date.Time)
		}
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if c := less(txs[i], txs[j]); c != 0 {
			return c < 0
		}
		return txs[i].ID < txs[j].ID
	})
}

// Dashboard totals the scoped transactions.
func Dashboard(txs []core.Transaction, accountID string) core.DashboardStats {
	var st core.DashboardStats
	for _, tx := range txs {
		if !InScope(tx, accountID) {
			continue
		}
		st.TransactionCount++
		if tx.Type == core.Income {
			st.TotalIncome = st.TotalIncome.Add(tx.Amount)
		} else {
			st.TotalExpense = st.TotalExpense.Add(tx.Amount)
		}
	}
	st.Balance = st.TotalIncome.Sub(st.TotalExpense)
	return st
}

// Monthly breaks the scoped transactions down by calendar month, oldest first.
func Monthly(txs []core.Transaction, accountID string) []core.MonthlyPoint {
	byMonth := map[string]*core.MonthlyPoint{}
	for _, tx := range txs {
		if !InScope(tx, accountID) {
			continue
		}
		key := tx.Date.Format("2006-01")
		p, ok := byMonth[key]
		if !ok {
			p = &core.MonthlyPoint{Month: key}
			byMonth[key] = p
		}
		if tx.Type == core.Income {
			p.Income = p.Income.Add(tx.Amount)
		} else {
			p.Expense = p.Expense.Add(tx.Amount)
		}
	}
	out := make([]core.MonthlyPoint, 0, len(byMonth))
	for _, p := range byMonth {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// ByCategory totals the scoped transactions of type t per category, largest first.
func ByCategory(txs []core.Transaction, t core.TransactionType, accountID string) []core.CategoryAmount {
	byCat := map[string]*core.CategoryAmount{}
	for _, tx := range txs {
		if tx.Type != t || !InScope(tx, accountID) {
			continue
		}
		c, ok := byCat[tx.Category]
		if !ok {
			c = &core.CategoryAmount{Category: tx.Category}
			byCat[tx.Category] = c
		}
		c.Amount = c.Amount.Add(tx.Amount)
		c.Count++
	}
	out := make([]core.CategoryAmount, 0, len(byCat))
	for _, c := range byCat {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// BucketStart returns the first day of the period bucket containing d.
// Weeks start on Monday.
func BucketStart(d core.Date, p core.Period) core.Date {
	switch p {
	case core.Weekly:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDays(-offset)
	case core.Monthly:
		return core.NewDate(d.Year(), int(d.Month()), 1)
	default:
		return d
	}
}

func nextBucket(d core.Date, p core.Period) core.Date {
	switch p {
	case core.Weekly:
		return d.AddDays(7)
	case core.Monthly:
		return core.Date{Time: d.AddDate(0, 1, 0)}
	default:
		return d.AddDays(1)
	}
}

// Trend builds the series for q with one point per bucket between start and
// end inclusive, empty buckets included.
func Trend(txs []core.Transaction, q core.TrendQuery) []core.TrendPoint {
	start, end := q.Start, q.End
	if end.Before(start) {
		start, end = end, start
	}
	var out []core.TrendPoint
	index := map[string]int{}
	for b := BucketStart(start, q.Period); !b.After(end); b = nextBucket(b, q.Period) {
		index[b.String()] = len(out)
		out = append(out, core.TrendPoint{Date: b.String()})
	}
	for _, tx := range txs {
		if !InScope(tx, q.AccountID) || tx.Date.Before(start) || tx.Date.After(end) {
			continue
		}
		i, ok := index[BucketStart(tx.Date, q.Period).String()]
		if !ok {
			continue
		}
		if tx.Type == core.Income {
			out[i].Income = out[i].Income.Add(tx.Amount)
		} else {
			out[i].Expense = out[i].Expense.Add(tx.Amount)
		}
	}
	for i := range out {
		out[i].Net = out[i].Income.Sub(out[i].Expense)
	}
	return out
}

// People returns the distinct person names referenced by the scoped
// transactions, sorted.
func People(txs []core.Transaction, accountID string) []string {
	seen := map[string]struct{}{}
	for _, tx := range txs {
		if !InScope(tx, accountID) {
			continue
		}
		for _, p := range tx.People() {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// shares splits tx between the people it references. A transaction tagged
// with a single person is attributed entirely to that person; split and group
// transactions divide the amount equally between the user and the members.
func shares(tx core.Transaction, groups map[string]core.Group) map[string]decimal.Decimal {
	var members []string
	switch tx.Classification() {
	case core.GroupTagged:
		members = groups[tx.GroupID].Members
	case core.PersonTagged:
		if len(tx.SplitWith) == 0 {
			return map[string]decimal.Decimal{strings.TrimSpace(tx.Person): tx.Amount}
		}
		members = tx.People()
	}
	if len(members) == 0 {
		return nil
	}
	share := tx.Amount.Div(decimal.NewFromInt(int64(len(members) + 1))).Round(2)
	out := make(map[string]decimal.Decimal, len(members))
	for _, m := range members {
		out[m] = out[m].Add(share)
	}
	return out
}

// PersonStats computes per-person balances over the scoped transactions.
//
// Expenses tagged with a person count as given, incomes as received.
// Settlement records close the balance, so they are booked on the opposite
// side of their cash direction.
func PersonStats(txs []core.Transaction, groups []core.Group, accountID string) []core.PersonStat {
	groupByID := make(map[string]core.Group, len(groups))
	for _, g := range groups {
		groupByID[g.ID] = g
	}
	byName := map[string]*core.PersonStat{}
	for _, tx := range txs {
		if !InScope(tx, accountID) {
			continue
		}
		received := tx.Type == core.Income
		if tx.Category == settlement.Category {
			received = !received
		}
		for name, amount := range shares(tx, groupByID) {
			st, ok := byName[name]
			if !ok {
				st = &core.PersonStat{Name: name}
				byName[name] = st
			}
			st.TransactionCount++
			if received {
				st.TotalReceived = st.TotalReceived.Add(amount)
			} else {
				st.TotalGiven = st.TotalGiven.Add(amount)
			}
		}
	}
	out := make([]core.PersonStat, 0, len(byName))
	for _, st := range byName {
		st.NetBalance = st.TotalReceived.Sub(st.TotalGiven)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Settle builds the settlement transaction for person over every account.
// It returns settlement.ErrSettled when there is nothing to settle.
func Settle(txs []core.Transaction, groups []core.Group, person, accountID string, date core.Date) (core.Transaction, error) {
	stat := core.PersonStat{Name: person}
	for _, st := range PersonStats(txs, groups, "") {
		if st.Name == person {
			stat = st
			break
		}
	}
	action := settlement.Plan(stat, accountID)
	if err := action.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return action.Transaction(date), nil
}

// Members trims and de-duplicates group member names, dropping blanks.
func Members(members []string) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m = strings.TrimSpace(m); m != "" && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out
}
