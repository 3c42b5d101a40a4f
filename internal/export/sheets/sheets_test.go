package sheets

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"budget/internal/core"
)

func fixture() ([]core.Transaction, []core.Account, []core.Group) {
	txs := []core.Transaction{
		{
			ID: "t1", Type: core.Expense, Category: "Groceries",
			Amount: decimal.RequireFromString("12.345"), Description: "market",
			Date: core.NewDate(2024, 3, 2), AccountID: "a1",
		},
		{
			ID: "t2", Type: core.Expense, Category: "To Friends",
			Amount: decimal.NewFromInt(20), Date: core.NewDate(2024, 3, 3),
			Person: "Alex", SplitWith: []string{"Sam", "Kim"}, AccountID: "a1",
		},
		{
			ID: "t3", Type: core.Income, Category: "From Friends",
			Amount: decimal.NewFromInt(5), Date: core.NewDate(2024, 3, 4),
			GroupID: "g1", AccountID: "gone",
		},
	}
	accounts := []core.Account{{ID: "a1", Name: "Checking"}}
	groups := []core.Group{{ID: "g1", Name: "Flat", Members: []string{"Alex"}}}
	return txs, accounts, groups
}

func TestRows(t *testing.T) {
	txs, accounts, groups := fixture()
	rows := Rows(txs, accounts, groups)

	require.Len(t, rows, 3)
	assert.Equal(t, []any{"2024-03-02", "expense", "Groceries", 12.35, "market", "", "", "", "Checking"}, rows[0])
	assert.Equal(t, "Sam, Kim", rows[1][6])
	assert.Equal(t, "Alex", rows[1][5])
	assert.Equal(t, "Flat", rows[2][7])
	assert.Equal(t, "gone", rows[2][8], "unknown account keeps its id")
}

func TestRows_Empty(t *testing.T) {
	assert.Empty(t, Rows(nil, nil, nil))
}

func TestCredentials(t *testing.T) {
	_, err := credentials(Options{})
	assert.ErrorIs(t, err, ErrNoCredentials)

	b, err := credentials(Options{CredentialsJSON: `{"type":"service_account"}`, CredentialsFile: "/nonexistent"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"service_account"}`, string(b))

	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600))
	b, err = credentials(Options{CredentialsFile: path})
	require.NoError(t, err)
	assert.Contains(t, string(b), "service_account")

	_, err = credentials(Options{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}

func TestNew_RequiresSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Options{CredentialsJSON: "{}"})
	assert.Error(t, err)
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

func TestExport(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	svc, err := gsheet.NewService(ctx,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	exp := NewWithService(svc, "sheet-123", "", nil)
	txs, accounts, groups := fixture()

	ref, err := exp.Export(ctx, txs, accounts, groups)
	require.NoError(t, err)
	assert.Equal(t, "Transactions!A1:I4", ref)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 2)

	assert.Equal(t, http.MethodPost, requests[0].method)
	assert.Contains(t, requests[0].path, "/v4/spreadsheets/sheet-123/values/")
	assert.True(t, strings.HasSuffix(requests[0].path, ":clear"))

	assert.Equal(t, http.MethodPut, requests[1].method)
	assert.Contains(t, requests[1].body, "Groceries")
	assert.Contains(t, requests[1].body, "Checking")
	assert.Contains(t, requests[1].body, "Split With")
}

func TestExport_NoService(t *testing.T) {
	exp := &Exporter{}
	_, err := exp.Export(context.Background(), nil, nil, nil)
	assert.Error(t, err)
}
