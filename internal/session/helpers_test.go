package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/gateway"
)

// fakeClock is a manual Scheduler. Advance fires due callbacks on the
// calling goroutine, in deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

// countingGateway records the batches and writes that reach the gateway.
type countingGateway struct {
	gateway.Gateway

	mu       sync.Mutex
	batches  int
	queries  []core.TransactionQuery
	creates  int
	settles  int
	failDash error
}

func (g *countingGateway) ListAccounts(ctx context.Context) ([]core.Account, error) {
	g.mu.Lock()
	g.batches++
	g.mu.Unlock()
	return g.Gateway.ListAccounts(ctx)
}

func (g *countingGateway) ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, error) {
	g.mu.Lock()
	g.queries = append(g.queries, q)
	g.mu.Unlock()
	return g.Gateway.ListTransactions(ctx, q)
}

func (g *countingGateway) DashboardStats(ctx context.Context, accountID string) (core.DashboardStats, error) {
	g.mu.Lock()
	err := g.failDash
	g.mu.Unlock()
	if err != nil {
		return core.DashboardStats{}, err
	}
	return g.Gateway.DashboardStats(ctx, accountID)
}

func (g *countingGateway) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	g.mu.Lock()
	g.creates++
	g.mu.Unlock()
	return g.Gateway.CreateTransaction(ctx, tx)
}

func (g *countingGateway) SettlePerson(ctx context.Context, person, accountID string) (core.Transaction, error) {
	g.mu.Lock()
	g.settles++
	g.mu.Unlock()
	return g.Gateway.SettlePerson(ctx, person, accountID)
}

func (g *countingGateway) batchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.batches
}

func (g *countingGateway) lastQuery() core.TransactionQuery {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queries[len(g.queries)-1]
}

func (g *countingGateway) queriesSince(n int) []core.TransactionQuery {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]core.TransactionQuery(nil), g.queries[n:]...)
}

// blockedCall is a ListTransactions call waiting for its reply.
type blockedCall struct {
	query core.TransactionQuery
	reply chan []core.Transaction
}

// blockingGateway hands every ListTransactions call to the test, which
// decides when and with what it resolves.
type blockingGateway struct {
	gateway.Gateway
	calls chan blockedCall
}

func (g *blockingGateway) ListTransactions(ctx context.Context, q core.TransactionQuery) ([]core.Transaction, error) {
	call := blockedCall{query: q, reply: make(chan []core.Transaction, 1)}
	select {
	case g.calls <- call:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case txs := <-call.reply:
		return txs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
