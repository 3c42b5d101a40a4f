package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/draft"
	"budget/internal/gateway"
	"budget/internal/gateway/memory"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func seededStore() *memory.Store {
	return memory.Seed(
		[]core.Account{{ID: "a1", Name: "Checking"}, {ID: "a2", Name: "Savings"}},
		[]core.Transaction{
			{ID: "t1", Type: core.Income, Category: "Salary", Amount: decimal.NewFromInt(1000), Date: core.NewDate(2024, 3, 1), AccountID: "a1"},
			{ID: "t2", Type: core.Expense, Category: "Groceries", Amount: decimal.NewFromInt(50), Date: core.NewDate(2024, 3, 2), AccountID: "a1"},
			{ID: "t3", Type: core.Expense, Category: "Rent", Amount: decimal.NewFromInt(400), Date: core.NewDate(2024, 3, 3), AccountID: "a2"},
		},
		nil,
	)
}

func newTestSession(t *testing.T, gw gateway.Gateway, clock *fakeClock) *Session {
	t.Helper()
	s := New(gw, Options{
		Scheduler: clock,
		Now:       func() time.Time { return fixedNow },
	})
	t.Cleanup(s.Close)
	return s
}

func TestNew_Defaults(t *testing.T) {
	s := newTestSession(t, memory.New(), &fakeClock{})
	st := s.Snapshot()

	assert.Equal(t, core.SortDateDesc, st.Filters.Sort)
	assert.Equal(t, core.AllAccounts, st.Scope)
	assert.Equal(t, core.Daily, st.Trend.Period)
	assert.Equal(t, core.NewDate(2024, 3, 15), st.Trend.End)
	assert.Equal(t, core.NewDate(2024, 2, 15), st.Trend.Start)
	assert.False(t, st.Loading)
	assert.Zero(t, st.Committed)
	assert.NotEmpty(t, s.ID())
}

func TestReload_CommitsBatch(t *testing.T) {
	s := newTestSession(t, seededStore(), &fakeClock{})

	require.NoError(t, s.Reload(context.Background()))
	st := s.Snapshot()

	assert.Len(t, st.Accounts, 2)
	assert.Len(t, st.Transactions, 3)
	assert.Equal(t, "t3", st.Transactions[0].ID, "date_desc order")
	assert.Equal(t, "a1", st.DefaultAccountID)
	assert.True(t, st.Stats.Income.Equal(decimal.NewFromInt(1000)))
	assert.True(t, st.Stats.Expense.Equal(decimal.NewFromInt(450)))
	assert.True(t, st.Stats.Net.Equal(decimal.NewFromInt(550)))
	assert.False(t, st.FiltersActive)
	assert.False(t, st.Loading)
	assert.EqualValues(t, 1, st.Committed)
}

func TestReload_KeepsExistingDefaultAccount(t *testing.T) {
	s := newTestSession(t, seededStore(), &fakeClock{})
	require.NoError(t, s.Reload(context.Background()))

	s.mu.Lock()
	s.state.DefaultAccountID = "a2"
	s.mu.Unlock()

	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, "a2", s.Snapshot().DefaultAccountID)
}

func TestSetFilter_DebouncesKeystrokes(t *testing.T) {
	clock := &fakeClock{}
	gw := &countingGateway{Gateway: seededStore()}
	s := newTestSession(t, gw, clock)

	word := "groceries!"
	for i := range word {
		require.NoError(t, s.SetFilter(FilterSearch, word[:i+1]))
		if i < len(word)-1 {
			clock.Advance(100 * time.Millisecond)
		}
	}
	assert.Zero(t, gw.batchCount())

	clock.Advance(499 * time.Millisecond)
	assert.Zero(t, gw.batchCount(), "nothing before the quiet window ends")

	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, gw.batchCount())
	assert.Equal(t, word, gw.lastQuery().Search)

	clock.Advance(5 * time.Second)
	assert.Equal(t, 1, gw.batchCount())
}

func TestSetFilter_UnknownKey(t *testing.T) {
	s := newTestSession(t, memory.New(), &fakeClock{})
	err := s.SetFilter("color", "red")
	assert.ErrorIs(t, err, ErrUnknownFilter)
}

func TestFilters_ReachGateway(t *testing.T) {
	clock := &fakeClock{}
	gw := &countingGateway{Gateway: seededStore()}
	s := newTestSession(t, gw, clock)

	require.NoError(t, s.SetFilter(FilterType, "expense"))
	require.NoError(t, s.SetFilter(FilterSort, "amount_asc"))
	require.NoError(t, s.SetAccountScope("a1"))
	clock.Advance(DefaultDebounce)

	require.Equal(t, 1, gw.batchCount())
	q := gw.lastQuery()
	assert.Equal(t, core.Expense, q.Type)
	assert.Equal(t, core.SortAmountAsc, q.Sort)
	assert.Equal(t, "a1", q.AccountID)

	st := s.Snapshot()
	require.Len(t, st.Transactions, 1)
	assert.Equal(t, "t2", st.Transactions[0].ID)
	assert.True(t, st.FiltersActive)
}

func TestResetFilters_KeepsScopeAndTrend(t *testing.T) {
	clock := &fakeClock{}
	s := newTestSession(t, memory.New(), clock)

	require.NoError(t, s.SetFilter(FilterSearch, "rent"))
	require.NoError(t, s.SetFilter(FilterCategory, "Rent"))
	require.NoError(t, s.SetAccountScope("a2"))
	require.NoError(t, s.SetTrendPeriod(core.Weekly))
	require.NoError(t, s.ResetFilters())

	st := s.Snapshot()
	assert.Equal(t, Filters{Sort: core.SortDateDesc}, st.Filters)
	assert.False(t, st.FiltersActive)
	assert.Equal(t, "a2", st.Scope)
	assert.Equal(t, core.Weekly, st.Trend.Period)
}

func TestSetAccountScope_EmptyMeansAll(t *testing.T) {
	s := newTestSession(t, memory.New(), &fakeClock{})
	require.NoError(t, s.SetAccountScope("a1"))
	require.NoError(t, s.SetAccountScope(""))
	assert.Equal(t, core.AllAccounts, s.Snapshot().Scope)
}

func TestSetTrend(t *testing.T) {
	s := newTestSession(t, memory.New(), &fakeClock{})

	assert.ErrorIs(t, s.SetTrendPeriod("hourly"), core.ErrInvalidPeriod)
	assert.ErrorIs(t, s.SetTrendRange(core.Date{}, core.NewDate(2024, 1, 1)), core.ErrInvalidDate)

	require.NoError(t, s.SetTrendRange(core.NewDate(2024, 2, 1), core.NewDate(2024, 1, 1)))
	tr := s.Snapshot().Trend
	assert.Equal(t, core.NewDate(2024, 1, 1), tr.Start)
	assert.Equal(t, core.NewDate(2024, 2, 1), tr.End)
}

func TestReload_StaleBatchDiscarded(t *testing.T) {
	gw := &blockingGateway{Gateway: seededStore(), calls: make(chan blockedCall)}
	s := newTestSession(t, gw, &fakeClock{})
	ctx := context.Background()

	txsA := []core.Transaction{{ID: "from-a", Type: core.Income, Category: "Salary", Amount: decimal.NewFromInt(1), AccountID: "a1"}}
	txsB := []core.Transaction{{ID: "from-b", Type: core.Expense, Category: "Rent", Amount: decimal.NewFromInt(2), AccountID: "a2"}}

	doneA := make(chan error, 1)
	go func() { doneA <- s.Reload(ctx) }()
	callA := <-gw.calls

	doneB := make(chan error, 1)
	go func() { doneB <- s.Reload(ctx) }()
	callB := <-gw.calls

	assert.True(t, s.Snapshot().Loading)

	callB.reply <- txsB
	require.NoError(t, <-doneB)
	st := s.Snapshot()
	require.Len(t, st.Transactions, 1)
	assert.Equal(t, "from-b", st.Transactions[0].ID)
	assert.True(t, st.Loading, "batch A still in flight")

	callA.reply <- txsA
	require.NoError(t, <-doneA)
	st = s.Snapshot()
	require.Len(t, st.Transactions, 1)
	assert.Equal(t, "from-b", st.Transactions[0].ID)
	assert.EqualValues(t, 2, st.Committed)
	assert.False(t, st.Loading)
}

func TestReload_FailureKeepsStateAndNotifies(t *testing.T) {
	gw := &countingGateway{Gateway: seededStore()}
	s := newTestSession(t, gw, &fakeClock{})
	ctx := context.Background()

	require.NoError(t, s.Reload(ctx))
	before := s.Snapshot()

	notes, unsubscribe := s.Subscribe()
	defer unsubscribe()

	gw.mu.Lock()
	gw.failDash = gateway.NewError("dashboard", http.StatusInternalServerError, "database unavailable")
	gw.mu.Unlock()

	err := s.Reload(ctx)
	require.Error(t, err)

	after := s.Snapshot()
	assert.Equal(t, before.Transactions, after.Transactions)
	assert.Equal(t, before.Committed, after.Committed)
	assert.False(t, after.Loading)

	select {
	case n := <-notes:
		assert.Equal(t, LevelError, n.Level)
		assert.Equal(t, "database unavailable", n.Message)
	default:
		t.Fatal("expected a notification")
	}
}

func TestReload_FailureWithoutMessageUsesFallback(t *testing.T) {
	gw := &countingGateway{Gateway: seededStore(), failDash: errors.New("connection reset")}
	s := newTestSession(t, gw, &fakeClock{})
	notes, unsubscribe := s.Subscribe()
	defer unsubscribe()

	require.Error(t, s.Reload(context.Background()))
	n := <-notes
	assert.Equal(t, gateway.FallbackMessage, n.Message)
}

func TestSnapshot_IsolatedFromState(t *testing.T) {
	s := newTestSession(t, seededStore(), &fakeClock{})
	require.NoError(t, s.Reload(context.Background()))

	snap := s.Snapshot()
	snap.Transactions[0].Category = "mutated"
	snap.Accounts[0].Name = "mutated"

	again := s.Snapshot()
	assert.NotEqual(t, "mutated", again.Transactions[0].Category)
	assert.NotEqual(t, "mutated", again.Accounts[0].Name)
}

func TestSubmit_ValidationOrderWithoutGatewayCall(t *testing.T) {
	gw := &countingGateway{Gateway: seededStore()}
	s := newTestSession(t, gw, &fakeClock{})
	ctx := context.Background()

	require.NoError(t, s.Dispatch(draft.Open{Date: core.NewDate(2024, 3, 15)}))

	_, err := s.Submit(ctx)
	assert.ErrorIs(t, err, draft.ErrNoAccount)

	require.NoError(t, s.Dispatch(draft.SetAccount{ID: "a1"}))
	_, err = s.Submit(ctx)
	assert.ErrorIs(t, err, draft.ErrMissingAmountOrCategory)

	require.NoError(t, s.Dispatch(draft.SetAmount{Value: "abc"}))
	require.NoError(t, s.Dispatch(draft.SetCategory{Category: "Groceries"}))
	_, err = s.Submit(ctx)
	assert.ErrorIs(t, err, draft.ErrInvalidAmount)

	require.NoError(t, s.Dispatch(draft.SetAmount{Value: "12.50"}))
	require.NoError(t, s.Dispatch(draft.SetCategory{Category: "To Friends"}))
	_, err = s.Submit(ctx)
	assert.ErrorIs(t, err, draft.ErrMissingPerson)

	gw.mu.Lock()
	assert.Zero(t, gw.creates)
	gw.mu.Unlock()
	assert.True(t, s.Snapshot().Draft.IsOpen())
}

func TestSubmit_CreateClosesDraftAndReloads(t *testing.T) {
	gw := &countingGateway{Gateway: seededStore()}
	s := newTestSession(t, gw, &fakeClock{})
	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))

	require.NoError(t, s.OpenCreate())
	d := s.Snapshot().Draft
	assert.Equal(t, "a1", d.AccountID)
	assert.Equal(t, core.NewDate(2024, 3, 15), d.Date)

	require.NoError(t, s.Dispatch(draft.SetCategory{Category: "Groceries"}))
	require.NoError(t, s.Dispatch(draft.SetAmount{Value: "20"}))
	require.NoError(t, s.Dispatch(draft.SetDescription{Value: "market"}))

	saved, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)

	st := s.Snapshot()
	assert.False(t, st.Draft.IsOpen())
	assert.Len(t, st.Transactions, 4)
	assert.Equal(t, 2, gw.batchCount())
}

func TestSubmit_EditUpdatesTransaction(t *testing.T) {
	s := newTestSession(t, seededStore(), &fakeClock{})
	ctx := context.Background()
	require.NoError(t, s.Reload(ctx))

	var groceries core.Transaction
	for _, tx := range s.Snapshot().Transactions {
		if tx.ID == "t2" {
			groceries = tx
		}
	}
	require.NoError(t, s.OpenEdit(groceries))
	require.NoError(t, s.Dispatch(draft.SetAmount{Value: "75"}))

	saved, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "t2", saved.ID)
	assert.True(t, saved.Amount.Equal(decimal.NewFromInt(75)))
	assert.False(t, s.Snapshot().Draft.IsOpen())
}

func TestSubmit_GatewayErrorKeepsDraftOpen(t *testing.T) {
	s := newTestSession(t, seededStore(), &fakeClock{})
	ctx := context.Background()
	notes, unsubscribe := s.Subscribe()
	defer unsubscribe()

	require.NoError(t, s.Dispatch(draft.Open{AccountID: "missing", Date: core.NewDate(2024, 3, 15)}))
	require.NoError(t, s.Dispatch(draft.SetCategory{Category: "Groceries"}))
	require.NoError(t, s.Dispatch(draft.SetAmount{Value: "5"}))

	_, err := s.Submit(ctx)
	require.Error(t, err)
	assert.True(t, s.Snapshot().Draft.IsOpen())

	n := <-notes
	assert.Equal(t, LevelError, n.Level)
	assert.Contains(t, n.Message, "missing")
}

func TestDeleteAccount_ResetsScopeWithSingleReload(t *testing.T) {
	clock := &fakeClock{}
	gw := &countingGateway{Gateway: seededStore()}
	s := newTestSession(t, gw, clock)
	ctx := context.Background()

	require.NoError(t, s.SetAccountScope("a1"))
	clock.Advance(DefaultDebounce)
	require.Equal(t, 1, gw.batchCount())
	assert.Equal(t, "a1", gw.lastQuery().AccountID)

	// A filter change is pending when the account goes away.
	require.NoError(t, s.SetFilter(FilterSearch, "gro"))
	seen := len(gw.queriesSince(0))

	require.NoError(t, s.DeleteAccount(ctx, "a1"))
	clock.Advance(time.Minute)

	st := s.Snapshot()
	assert.Equal(t, core.AllAccounts, st.Scope)
	assert.Equal(t, "a2", st.DefaultAccountID)
	assert.Equal(t, 2, gw.batchCount(), "exactly one reload after the delete")

	for _, q := range gw.queriesSince(seen) {
		assert.Empty(t, q.AccountID, "no fetch scoped to the deleted account")
	}
	for _, acc := range st.Accounts {
		assert.NotEqual(t, "a1", acc.ID)
	}
	for _, tx := range st.Transactions {
		assert.NotEqual(t, "a1", tx.AccountID)
	}
}

func TestDeleteAccount_FailureRestoresPendingFetch(t *testing.T) {
	clock := &fakeClock{}
	gw := &countingGateway{Gateway: seededStore()}
	s := newTestSession(t, gw, clock)

	require.NoError(t, s.SetFilter(FilterSearch, "rent"))
	require.Error(t, s.DeleteAccount(context.Background(), "nope"))
	assert.Zero(t, gw.batchCount())

	clock.Advance(DefaultDebounce)
	assert.Equal(t, 1, gw.batchCount())
}

func TestSettlement_EndToEnd(t *testing.T) {
	gw := &countingGateway{Gateway: memory.New()}
	s := newTestSession(t, gw, &fakeClock{})
	ctx := context.Background()

	acc, err := s.CreateAccount(ctx, "Checking")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, s.Snapshot().DefaultAccountID)

	require.NoError(t, s.OpenCreate())
	require.NoError(t, s.Dispatch(draft.SetType{Type: core.Expense}))
	require.NoError(t, s.Dispatch(draft.SetCategory{Category: "To Friends"}))
	require.NoError(t, s.Dispatch(draft.SetAmount{Value: "20"}))
	require.NoError(t, s.Dispatch(draft.SetPerson{Name: draft.AddNewPerson}))
	require.NoError(t, s.Dispatch(draft.SetNewPerson{Value: "Alex"}))
	_, err = s.Submit(ctx)
	require.NoError(t, err)

	st := s.Snapshot()
	assert.Equal(t, []string{"Alex"}, st.People)
	require.Len(t, st.PersonStats, 1)
	alex := st.PersonStats[0]
	assert.True(t, alex.TotalGiven.Equal(decimal.NewFromInt(20)))
	assert.True(t, alex.NetBalance.Equal(decimal.NewFromInt(-20)))

	action, err := s.PlanSettlement("Alex", "")
	require.NoError(t, err)
	assert.True(t, action.Enabled)
	assert.Equal(t, core.Expense, action.Type)
	assert.True(t, action.Amount.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, acc.ID, action.AccountID)

	_, err = s.Settle(ctx, action)
	require.NoError(t, err)

	st = s.Snapshot()
	require.Len(t, st.PersonStats, 1)
	assert.True(t, st.PersonStats[0].NetBalance.IsZero())

	gw.mu.Lock()
	assert.Equal(t, 1, gw.settles)
	gw.mu.Unlock()

	again, err := s.PlanSettlement("Alex", "")
	require.NoError(t, err)
	assert.False(t, again.Enabled)
	_, err = s.Settle(ctx, again)
	require.Error(t, err)
}

func TestPlanSettlement_UnknownPerson(t *testing.T) {
	s := newTestSession(t, memory.New(), &fakeClock{})
	_, err := s.PlanSettlement("Nobody", "a1")
	assert.ErrorIs(t, err, ErrUnknownPerson)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.ChangeMessage
	err  error
}

func (p *recordingPublisher) PublishChange(_ context.Context, msg *amqp.ChangeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func TestWrites_PublishChanges(t *testing.T) {
	pub := &recordingPublisher{}
	s := New(memory.New(), Options{Scheduler: &fakeClock{}, Publisher: pub})
	defer s.Close()
	ctx := context.Background()

	acc, err := s.CreateAccount(ctx, "Main")
	require.NoError(t, err)
	g, err := s.CreateGroup(ctx, "Flat", []string{"Alex", "Sam"})
	require.NoError(t, err)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, amqp.EntityAccount, pub.msgs[0].Entity)
	assert.Equal(t, acc.ID, pub.msgs[0].ID)
	assert.Equal(t, s.ID(), pub.msgs[0].Source)
	assert.Equal(t, amqp.EntityGroup, pub.msgs[1].Entity)
	assert.Equal(t, g.ID, pub.msgs[1].ID)
}

func TestWrites_PublishFailureDoesNotFailWrite(t *testing.T) {
	pub := &recordingPublisher{err: amqp.ErrCircuitOpen}
	s := New(memory.New(), Options{Scheduler: &fakeClock{}, Publisher: pub})
	defer s.Close()

	_, err := s.CreateAccount(context.Background(), "Main")
	assert.NoError(t, err)
}

func TestClose(t *testing.T) {
	clock := &fakeClock{}
	gw := &countingGateway{Gateway: seededStore()}
	s := New(gw, Options{Scheduler: clock})
	notes, _ := s.Subscribe()

	require.NoError(t, s.SetFilter(FilterSearch, "x"))
	s.Close()
	s.Close()

	clock.Advance(time.Second)
	assert.Zero(t, gw.batchCount())
	_, open := <-notes
	assert.False(t, open)

	assert.ErrorIs(t, s.SetFilter(FilterSearch, "y"), ErrClosed)
	assert.ErrorIs(t, s.Reload(context.Background()), ErrClosed)
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
