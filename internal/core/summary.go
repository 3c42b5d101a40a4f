package core

import "github.com/shopspring/decimal"

// DashboardStats are the aggregate totals for a scope.
type DashboardStats struct {
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpense     decimal.Decimal `json:"total_expense"`
	Balance          decimal.Decimal `json:"balance"`
	TransactionCount int             `json:"transaction_count"`
}

// MonthlyPoint is one month of the income/expense breakdown.
type MonthlyPoint struct {
	Month   string          `json:"month"` // YYYY-MM
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
}

// TrendPoint is one bucket of the granular trend series. Date is the first day
// of the bucket.
type TrendPoint struct {
	Date    string          `json:"date"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// TransactionQuery carries the filters and scope of a transaction listing.
// Zero values mean "unset".
type TransactionQuery struct {
	Search    string
	Type      TransactionType
	Category  string
	Sort      SortKey
	AccountID string
}

// TrendQuery selects a granular trend series.
type TrendQuery struct {
	Period    Period
	Start     Date
	End       Date
	AccountID string
}

// ScopedAccount returns the account id to send to the gateway, or "" for all.
func ScopedAccount(scope string) string {
	if scope == AllAccounts {
		return ""
	}
	return scope
}
