package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"budget/internal/core"
	"budget/internal/gateway"
	"budget/internal/settlement"
)

var _ gateway.Gateway = (*Client)(nil)

// txPayload sends the amount as a JSON number rather than a quoted decimal.
type txPayload struct {
	core.Transaction
	Amount json.Number `json:"amount"`
}

func payloadOf(tx core.Transaction) txPayload {
	tx.ID = ""
	return txPayload{Transaction: tx, Amount: json.Number(tx.Amount.StringFixed(2))}
}

type groupPayload struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func scopeQuery(accountID string) url.Values {
	q := url.Values{}
	if accountID != "" {
		q.Set("account_id", accountID)
	}
	return q
}

func (c *Client) ListAccounts(ctx context.Context) ([]core.Account, error) {
	var out []core.Account
	err := c.get(ctx, "list accounts", "/accounts", nil, &out)
	return out, err
}

func (c *Client) CreateAccount(ctx context.Context, name string) (core.Account, error) {
	var out core.Account
	err := c.send(ctx, "create account", http.MethodPost, "/accounts", map[string]string{"name": name}, &out)
	return out, err
}

func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	const op = "delete account"
	if err := requireID(op, id); err != nil {
		return err
	}
	return c.send(ctx, op, http.MethodDelete, "/accounts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, error) {
	values := scopeQuery(q.AccountID)
	if q.Search != "" {
		values.Set("search", q.Search)
	}
	if q.Type != "" {
		values.Set("type", string(q.Type))
	}
	if q.Category != "" {
		values.Set("category", q.Category)
	}
	if q.Sort != "" {
		values.Set("sort", string(q.Sort))
	}
	var out []core.Transaction
	err := c.get(ctx, "list transactions", "/transactions", values, &out)
	return out, err
}

func (c *Client) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	err := c.send(ctx, "create transaction", http.MethodPost, "/transactions", payloadOf(tx), &out)
	return out, err
}

func (c *Client) UpdateTransaction(ctx context.Context, id string, tx core.Transaction) (core.Transaction, error) {
	const op = "update transaction"
	if err := requireID(op, id); err != nil {
		return core.Transaction{}, err
	}
	var out core.Transaction
	err := c.send(ctx, op, http.MethodPut, "/transactions/"+url.PathEscape(id), payloadOf(tx), &out)
	return out, err
}

func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	const op = "delete transaction"
	if err := requireID(op, id); err != nil {
		return err
	}
	return c.send(ctx, op, http.MethodDelete, "/transactions/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListPeople(ctx context.Context, accountID string) ([]string, error) {
	var out []string
	err := c.get(ctx, "list people", "/people", scopeQuery(accountID), &out)
	return out, err
}

func (c *Client) SettlePerson(ctx context.Context, person, accountID string) (core.Transaction, error) {
	var out core.Transaction
	req := settlement.Request{PersonName: person, AccountID: accountID}
	err := c.send(ctx, "settle person", http.MethodPost, "/people/settle", req, &out)
	return out, err
}

func (c *Client) ListGroups(ctx context.Context) ([]core.Group, error) {
	var out []core.Group
	err := c.get(ctx, "list groups", "/groups", nil, &out)
	return out, err
}

func (c *Client) CreateGroup(ctx context.Context, name string, members []string) (core.Group, error) {
	var out core.Group
	err := c.send(ctx, "create group", http.MethodPost, "/groups", groupPayload{Name: name, Members: members}, &out)
	return out, err
}

func (c *Client) UpdateGroup(ctx context.Context, id, name string, members []string) (core.Group, error) {
	const op = "update group"
	if err := requireID(op, id); err != nil {
		return core.Group{}, err
	}
	var out core.Group
	err := c.send(ctx, op, http.MethodPut, "/groups/"+url.PathEscape(id), groupPayload{Name: name, Members: members}, &out)
	return out, err
}

func (c *Client) DashboardStats(ctx context.Context, accountID string) (core.DashboardStats, error) {
	var out core.DashboardStats
	err := c.get(ctx, "dashboard stats", "/stats/dashboard", scopeQuery(accountID), &out)
	return out, err
}

func (c *Client) MonthlyBreakdown(ctx context.Context, accountID string) ([]core.MonthlyPoint, error) {
	var out []core.MonthlyPoint
	err := c.get(ctx, "monthly breakdown", "/stats/monthly", scopeQuery(accountID), &out)
	return out, err
}

func (c *Client) CategoryBreakdown(ctx context.Context, t core.TransactionType, accountID string) ([]core.CategoryAmount, error) {
	values := scopeQuery(accountID)
	values.Set("type", string(t))
	var out []core.CategoryAmount
	err := c.get(ctx, "category breakdown", "/stats/category", values, &out)
	return out, err
}

func (c *Client) TrendSeries(ctx context.Context, q core.TrendQuery) ([]core.TrendPoint, error) {
	values := scopeQuery(q.AccountID)
	values.Set("period", string(q.Period))
	if !q.Start.IsZero() {
		values.Set("start_date", q.Start.String())
	}
	if !q.End.IsZero() {
		values.Set("end_date", q.End.String())
	}
	var out []core.TrendPoint
	err := c.get(ctx, "trend series", "/stats/trend", values, &out)
	return out, err
}

func (c *Client) PersonStats(ctx context.Context, accountID string) ([]core.PersonStat, error) {
	var out []core.PersonStat
	err := c.get(ctx, "person stats", "/stats/people", scopeQuery(accountID), &out)
	return out, err
}
