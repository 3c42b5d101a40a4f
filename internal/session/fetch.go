package session

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/stats"
)

// batchParams is the intent captured when a batch is triggered.
type batchParams struct {
	seq       uint64
	accountID string
	txQuery   core.TransactionQuery
	trend     core.TrendQuery
}

type batchResult struct {
	accounts     []core.Account
	transactions []core.Transaction
	dashboard    core.DashboardStats
	monthly      []core.MonthlyPoint
	incomeCats   []core.CategoryAmount
	expenseCats  []core.CategoryAmount
	trend        []core.TrendPoint
	people       []string
	personStats  []core.PersonStat
	groups       []core.Group
}

// Reload fetches everything for the current filters right away, dropping
// any pending debounced fetch. It returns the batch error, which has
// already been reported as a notification. A batch superseded by a newer
// one returns nil without touching state.
func (s *Session) Reload(ctx context.Context) error {
	s.debounce.Cancel()
	_, err := s.fetch(ctx)
	return err
}

func (s *Session) debouncedFetch() {
	_, _ = s.fetch(s.ctx)
}

// fetch runs one batch and reports whether it was committed.
func (s *Session) fetch(ctx context.Context) (bool, error) {
	params, err := s.begin()
	if err != nil {
		return false, err
	}

	start := time.Now()
	res, err := s.load(ctx, params)
	current := s.finish(params, res, err)

	fields := log.NewFields().
		WithOperation(log.OpReload).
		WithBatch(params.seq).
		WithAccount(params.accountID)
	fields[log.FieldDuration] = time.Since(start).Milliseconds()

	switch {
	case !current:
		s.logger.Fields(ctx, slog.LevelDebug, "Discarded superseded batch", fields.WithError(err))
		return false, nil
	case err != nil:
		s.logger.Fields(ctx, slog.LevelError, "Batch failed", fields.WithError(err))
		s.notifyError(log.OpReload, err)
		return false, err
	default:
		s.logger.Fields(ctx, slog.LevelDebug, "Batch committed", fields)
		return true, nil
	}
}

// begin issues a new sequence number and captures the request parameters.
func (s *Session) begin() (batchParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return batchParams{}, ErrClosed
	}
	s.seq++
	s.inflight++
	s.state.Loading = true

	accountID := core.ScopedAccount(s.state.Scope)
	f := s.state.Filters
	return batchParams{
		seq:       s.seq,
		accountID: accountID,
		txQuery: core.TransactionQuery{
			Search:    f.Search,
			Type:      f.Type,
			Category:  f.Category,
			Sort:      f.Sort,
			AccountID: accountID,
		},
		trend: core.TrendQuery{
			Period:    s.state.Trend.Period,
			Start:     s.state.Trend.Start,
			End:       s.state.Trend.End,
			AccountID: accountID,
		},
	}, nil
}

// load issues every read of the batch in parallel. Any failure fails the
// whole batch.
func (s *Session) load(ctx context.Context, p batchParams) (batchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var res batchResult
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		res.accounts, err = s.gw.ListAccounts(ctx)
		return err
	})
	g.Go(func() (err error) {
		res.transactions, err = s.gw.ListTransactions(ctx, p.txQuery)
		return err
	})
	g.Go(func() (err error) {
		res.dashboard, err = s.gw.DashboardStats(ctx, p.accountID)
		return err
	})
	g.Go(func() (err error) {
		res.monthly, err = s.gw.MonthlyBreakdown(ctx, p.accountID)
		return err
	})
	g.Go(func() (err error) {
		res.incomeCats, err = s.gw.CategoryBreakdown(ctx, core.Income, p.accountID)
		return err
	})
	g.Go(func() (err error) {
		res.expenseCats, err = s.gw.CategoryBreakdown(ctx, core.Expense, p.accountID)
		return err
	})
	g.Go(func() (err error) {
		res.trend, err = s.gw.TrendSeries(ctx, p.trend)
		return err
	})
	g.Go(func() (err error) {
		res.people, err = s.gw.ListPeople(ctx, p.accountID)
		return err
	})
	g.Go(func() (err error) {
		res.personStats, err = s.gw.PersonStats(ctx, p.accountID)
		return err
	})
	g.Go(func() (err error) {
		res.groups, err = s.gw.ListGroups(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return batchResult{}, err
	}
	return res, nil
}

// finish commits res if p is still the latest batch and reports whether it
// was. A failed batch leaves state as it was.
func (s *Session) finish(p batchParams, res batchResult, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inflight--
	s.state.Loading = s.inflight > 0
	if p.seq != s.seq {
		return false
	}
	if err != nil {
		return true
	}

	st := &s.state
	st.Accounts = res.accounts
	st.Transactions = res.transactions
	st.Dashboard = res.dashboard
	st.Charts = Charts{
		Monthly:           res.monthly,
		IncomeByCategory:  res.incomeCats,
		ExpenseByCategory: res.expenseCats,
		Trend:             res.trend,
	}
	st.People = res.people
	st.PersonStats = res.personStats
	st.Groups = res.groups
	st.Stats = stats.Compute(st.Transactions)
	st.FiltersActive = stats.FiltersActive(st.Filters.statsFilters())
	st.Committed = p.seq

	if st.DefaultAccountID == "" && len(st.Accounts) > 0 {
		st.DefaultAccountID = st.Accounts[0].ID
	}
	return true
}
