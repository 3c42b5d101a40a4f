package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/core"
	"budget/internal/gateway"
	"budget/internal/log"
)

func newTestClient(t *testing.T, h http.Handler, ttl time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Options{
		BaseURL:   srv.URL + "/api/",
		Token:     "secret",
		Timeout:   5 * time.Second,
		CacheTTL:  ttl,
		CacheSize: 16,
		Logger:    log.Discard(),
	})
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadScheme(t *testing.T) {
	_, err := New(Options{BaseURL: "ftp://example.com"})
	require.Error(t, err)
}

func TestClient_ListTransactionsQuery(t *testing.T) {
	var gotQuery, gotAuth, gotRequestID string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/transactions", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(log.RequestIDHeader)
		_, _ = io.WriteString(w, `[{"id":"t1","type":"expense","category":"Food","amount":12.5,"description":"lunch","date":"2025-03-04","account_id":"a1"}]`)
	})
	c := newTestClient(t, h, 0)

	txs, err := c.ListTransactions(context.Background(), core.TransactionQuery{
		Search: "lunch", Type: core.Expense, Sort: core.SortAmountDesc, AccountID: "a1",
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Amount.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "2025-03-04", txs[0].Date.String())
	assert.Equal(t, "account_id=a1&search=lunch&sort=amount_desc&type=expense", gotQuery)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.NotEmpty(t, gotRequestID)
}

func TestClient_CreateTransactionPayload(t *testing.T) {
	var body map[string]any
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"t9","type":"expense","category":"To Friends","amount":"20","date":"2025-01-02","person":"Alex","account_id":"a1"}`)
	})
	c := newTestClient(t, h, 0)

	out, err := c.CreateTransaction(context.Background(), core.Transaction{
		ID: "ignored", Type: core.Expense, Category: "To Friends", Amount: decimal.NewFromInt(20),
		Date: core.NewDate(2025, 1, 2), Person: "Alex", AccountID: "a1",
	})
	require.NoError(t, err)
	assert.Equal(t, "t9", out.ID)

	assert.Equal(t, 20.0, body["amount"])
	assert.Equal(t, "2025-01-02", body["date"])
	assert.Equal(t, "Alex", body["person"])
	assert.NotContains(t, body, "id")
	assert.NotContains(t, body, "group_id")
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
		is      error
	}{
		{"detail string", http.StatusBadRequest, `{"detail":"Account does not exist"}`, "Account does not exist", nil},
		{"detail list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"field required"},{"msg":"bad date"}]}`, "field required; bad date", nil},
		{"error key", http.StatusConflict, `{"error":"duplicate"}`, "duplicate", gateway.ErrConflict},
		{"not json", http.StatusInternalServerError, `boom`, gateway.FallbackMessage, nil},
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Not authenticated"}`, "Not authenticated", gateway.ErrUnauthorized},
		{"not found", http.StatusNotFound, `{}`, gateway.FallbackMessage, gateway.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			c := newTestClient(t, h, 0)
			_, err := c.ListAccounts(context.Background())
			require.Error(t, err)

			var gwErr *gateway.Error
			require.True(t, errors.As(err, &gwErr))
			assert.Equal(t, tt.status, gwErr.Status)
			assert.Equal(t, tt.wantMsg, gateway.UserMessage(err))
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestClient_TransportErrorUsesFallback(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := New(Options{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.ListGroups(context.Background())
	require.Error(t, err)
	assert.Equal(t, gateway.FallbackMessage, gateway.UserMessage(err))
}

func TestClient_CacheAndPurgeOnWrite(t *testing.T) {
	var reads atomic.Int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			reads.Add(1)
			_, _ = io.WriteString(w, `[{"id":"a1","name":"Checking"}]`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	c := newTestClient(t, h, time.Minute)
	ctx := context.Background()

	for range 3 {
		accs, err := c.ListAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, accs, 1)
	}
	assert.EqualValues(t, 1, reads.Load())
	assert.Equal(t, 1, c.Cache().Size())

	require.NoError(t, c.DeleteAccount(ctx, "a1"))
	assert.Equal(t, 0, c.Cache().Size())

	_, err := c.ListAccounts(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, reads.Load())
}

func TestClient_StatsEndpoints(t *testing.T) {
	seen := map[string]string{}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen[r.URL.Path] = r.URL.RawQuery
		switch r.URL.Path {
		case "/api/stats/dashboard":
			_, _ = io.WriteString(w, `{"total_income":100,"total_expense":40.5,"balance":59.5,"transaction_count":3}`)
		case "/api/stats/people":
			_, _ = io.WriteString(w, `[{"name":"Alex","total_received":0,"total_given":20,"net_balance":-20,"transaction_count":1}]`)
		default:
			_, _ = io.WriteString(w, `[]`)
		}
	})
	c := newTestClient(t, h, 0)
	ctx := context.Background()

	dash, err := c.DashboardStats(ctx, "")
	require.NoError(t, err)
	assert.True(t, dash.Balance.Equal(decimal.RequireFromString("59.5")))

	people, err := c.PersonStats(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.True(t, people[0].NetBalance.Equal(decimal.NewFromInt(-20)))

	_, err = c.CategoryBreakdown(ctx, core.Income, "a1")
	require.NoError(t, err)
	_, err = c.TrendSeries(ctx, core.TrendQuery{
		Period: core.Weekly, Start: core.NewDate(2025, 1, 1), End: core.NewDate(2025, 1, 31),
	})
	require.NoError(t, err)

	assert.Equal(t, "", seen["/api/stats/dashboard"])
	assert.Equal(t, "account_id=a1", seen["/api/stats/people"])
	assert.Equal(t, "account_id=a1&type=income", seen["/api/stats/category"])
	assert.Equal(t, "end_date=2025-01-31&period=weekly&start_date=2025-01-01", seen["/api/stats/trend"])
}

func TestClient_SettlePerson(t *testing.T) {
	var req map[string]string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/people/settle", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = io.WriteString(w, `{"id":"s1","type":"income","category":"Settlement","amount":45,"date":"2025-02-01","person":"Alex","account_id":"a1"}`)
	})
	c := newTestClient(t, h, 0)

	tx, err := c.SettlePerson(context.Background(), "Alex", "a1")
	require.NoError(t, err)
	assert.Equal(t, core.Income, tx.Type)
	assert.Equal(t, map[string]string{"person_name": "Alex", "account_id": "a1"}, req)
}

func TestClient_RequiresID(t *testing.T) {
	c, err := New(Options{BaseURL: "http://localhost"})
	require.NoError(t, err)
	require.Error(t, c.DeleteTransaction(context.Background(), " "))
}
