// Package session implements BudgetSession, the owner of all budget state a
// client displays: filters and scope, the loaded data, derived stats, the
// transaction draft and the fetch batches that keep them in sync with the
// gateway.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/draft"
	"budget/internal/gateway"
	"budget/internal/log"
	"budget/internal/stats"
)

const (
	DefaultDebounce       = 500 * time.Millisecond
	DefaultRequestTimeout = 10 * time.Second
	DefaultTrendDays      = 30
)

var (
	ErrClosed        = errors.New("session closed")
	ErrUnknownFilter = errors.New("unknown filter")
)

// FilterKey names one filter field for SetFilter.
type FilterKey string

const (
	FilterSearch   FilterKey = "search"
	FilterType     FilterKey = "type"
	FilterCategory FilterKey = "category"
	FilterSort     FilterKey = "sort"
)

// Filters are the transaction list filters. Zero values mean unset, except
// Sort which defaults to date_desc.
type Filters struct {
	Search   string
	Type     core.TransactionType
	Category string
	Sort     core.SortKey
}

// Trend selects the granular trend series.
type Trend struct {
	Period core.Period
	Start  core.Date
	End    core.Date
}

// Charts are the chart series of the last committed batch.
type Charts struct {
	Monthly           []core.MonthlyPoint
	IncomeByCategory  []core.CategoryAmount
	ExpenseByCategory []core.CategoryAmount
	Trend             []core.TrendPoint
}

// State is the full bundle exposed to consumers.
type State struct {
	Accounts     []core.Account
	Transactions []core.Transaction
	People       []string
	PersonStats  []core.PersonStat
	Groups       []core.Group
	Dashboard    core.DashboardStats
	Charts       Charts

	Stats         stats.Stats
	FiltersActive bool

	Filters Filters
	// Scope is an account id or core.AllAccounts.
	Scope string
	Trend Trend

	// DefaultAccountID preselects the account of new drafts.
	DefaultAccountID string
	Draft            draft.Draft

	Loading bool
	// Committed is the sequence number of the batch shown, 0 before the
	// first successful load.
	Committed uint64
}

// ChangePublisher announces successful writes to other sessions.
type ChangePublisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// Options configures a Session. Zero values pick defaults.
type Options struct {
	Debounce       time.Duration
	RequestTimeout time.Duration
	TrendPeriod    core.Period
	TrendDays      int

	Scheduler Scheduler
	Now       func() time.Time
	Logger    *log.Logger
	Publisher ChangePublisher
}

// Session is the budget data orchestration layer. All methods are safe for
// concurrent use.
type Session struct {
	id        string
	gw        gateway.Gateway
	logger    *log.Logger
	publisher ChangePublisher
	now       func() time.Time
	timeout   time.Duration
	debounce  *debouncer
	notes     notifier

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	seq      uint64 // last issued batch
	inflight int
	closed   bool
}

// New creates a session over gw. Nothing is fetched until Reload or a
// filter change.
func New(gw gateway.Gateway, opts Options) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if !opts.TrendPeriod.Valid() {
		opts.TrendPeriod = core.Daily
	}
	if opts.TrendDays <= 0 {
		opts.TrendDays = DefaultTrendDays
	}
	if opts.Scheduler == nil {
		opts.Scheduler = realScheduler{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())
	today := core.DateOf(opts.Now())
	s := &Session{
		id:        uuid.NewString(),
		gw:        gw,
		logger:    opts.Logger.WithComponent(log.ComponentSession),
		publisher: opts.Publisher,
		now:       opts.Now,
		timeout:   opts.RequestTimeout,
		ctx:       ctx,
		cancel:    cancel,
		state: State{
			Filters: Filters{Sort: core.SortDateDesc},
			Scope:   core.AllAccounts,
			Trend: Trend{
				Period: opts.TrendPeriod,
				Start:  today.AddDays(-(opts.TrendDays - 1)),
				End:    today,
			},
		},
	}
	s.debounce = newDebouncer(opts.Scheduler, opts.Debounce, s.debouncedFetch)
	return s
}

// ID identifies the session in change messages.
func (s *Session) ID() string { return s.id }

// Close cancels pending work and closes notification channels.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.debounce.Cancel()
	s.cancel()
	s.notes.closeAll()
}

// Subscribe returns a channel of notifications and a func that ends the
// subscription.
func (s *Session) Subscribe() (<-chan Notification, func()) {
	return s.notes.subscribe()
}

func (s *Session) notify(n Notification) {
	if n.Level == LevelError {
		s.logger.Error("Session notification", log.FieldOperation, n.Op, "message", n.Message, log.FieldError, n.Err)
	} else {
		s.logger.Info("Session notification", log.FieldOperation, n.Op, "message", n.Message)
	}
	if dropped := s.notes.publish(n); dropped > 0 {
		s.logger.Warn("Notification dropped by slow subscribers", "dropped", dropped)
	}
}

func (s *Session) notifyError(op string, err error) {
	s.notify(Notification{Level: LevelError, Op: op, Message: gateway.UserMessage(err), Err: err})
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (st State) clone() State {
	out := st
	out.Accounts = slices.Clone(st.Accounts)
	out.Transactions = make([]core.Transaction, len(st.Transactions))
	for i, tx := range st.Transactions {
		out.Transactions[i] = tx.Clone()
	}
	out.People = slices.Clone(st.People)
	out.PersonStats = slices.Clone(st.PersonStats)
	out.Groups = make([]core.Group, len(st.Groups))
	for i, g := range st.Groups {
		out.Groups[i] = g.Clone()
	}
	out.Charts = Charts{
		Monthly:           slices.Clone(st.Charts.Monthly),
		IncomeByCategory:  slices.Clone(st.Charts.IncomeByCategory),
		ExpenseByCategory: slices.Clone(st.Charts.ExpenseByCategory),
		Trend:             slices.Clone(st.Charts.Trend),
	}
	out.Stats.Categories = slices.Clone(st.Stats.Categories)
	out.Draft.SplitWith = slices.Clone(st.Draft.SplitWith)
	return out
}

// mutateFilters applies fn under the lock and schedules a fetch.
func (s *Session) mutateFilters(fn func(st *State)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	fn(&s.state)
	s.state.FiltersActive = stats.FiltersActive(s.state.Filters.statsFilters())
	s.mu.Unlock()
	s.debounce.Trigger()
	return nil
}

func (f Filters) statsFilters() stats.Filters {
	return stats.Filters{Search: f.Search, Type: f.Type, Category: f.Category, Sort: f.Sort}
}

// SetFilter sets exactly one filter field. Values are not validated; a
// value the gateway doesn't know simply matches nothing.
func (s *Session) SetFilter(key FilterKey, value string) error {
	switch key {
	case FilterSearch, FilterType, FilterCategory, FilterSort:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFilter, key)
	}
	return s.mutateFilters(func(st *State) {
		switch key {
		case FilterSearch:
			st.Filters.Search = value
		case FilterType:
			st.Filters.Type = core.TransactionType(value)
		case FilterCategory:
			st.Filters.Category = value
		case FilterSort:
			st.Filters.Sort = core.SortKey(value)
		}
	})
}

// ResetFilters clears search, type and category and restores the default
// sort. Scope and trend are kept.
func (s *Session) ResetFilters() error {
	return s.mutateFilters(func(st *State) {
		st.Filters = Filters{Sort: core.SortDateDesc}
	})
}

// SetAccountScope selects an account id or core.AllAccounts ("" also means
// all).
func (s *Session) SetAccountScope(scope string) error {
	if scope == "" {
		scope = core.AllAccounts
	}
	return s.mutateFilters(func(st *State) {
		st.Scope = scope
	})
}

// SetTrendPeriod selects the trend bucket size.
func (s *Session) SetTrendPeriod(p core.Period) error {
	if !p.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidPeriod, p)
	}
	return s.mutateFilters(func(st *State) {
		st.Trend.Period = p
	})
}

// SetTrendRange sets the inclusive trend range, swapping reversed bounds.
func (s *Session) SetTrendRange(start, end core.Date) error {
	if start.IsZero() || end.IsZero() {
		return core.ErrInvalidDate
	}
	if end.Before(start) {
		start, end = end, start
	}
	return s.mutateFilters(func(st *State) {
		st.Trend.Start = start
		st.Trend.End = end
	})
}
