package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/auth"
	"finboard/internal/budget"
	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/ports"
)

// Backend is the subset of ports the dashboard reads from.
type Backend interface {
	ports.CategoryStore
	ports.BudgetStore
	ports.SpendingReader
	ports.PreferencesStore
}

type Config struct {
	Policy budget.MissingDataPolicy
	// CacheTTL bounds how long a closed month's spending is reused.
	CacheTTL time.Duration
	// CacheSize is the number of user-months kept.
	CacheSize int
	// MaxConcurrentFetches caps the per-month requests of one accumulation.
	MaxConcurrentFetches int
}

func DefaultConfig() Config {
	return Config{
		Policy:               budget.FailOpen,
		CacheTTL:             5 * time.Minute,
		CacheSize:            2048,
		MaxConcurrentFetches: 12,
	}
}

// Service loads the data behind every dashboard widget.
type Service struct {
	backend  Backend
	cfg      Config
	spending *cache.LRUCache[map[string]core.Money]
	now      func() time.Time
	logger   *log.Logger
}

func NewService(backend Backend, cfg Config, logger *log.Logger) *Service {
	def := DefaultConfig()
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.MaxConcurrentFetches <= 0 {
		cfg.MaxConcurrentFetches = def.MaxConcurrentFetches
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Service{
		backend:  backend,
		cfg:      cfg,
		spending: cache.NewLRUCache[map[string]core.Money](cfg.CacheSize, cfg.CacheTTL),
		now:      time.Now,
		logger:   logger.WithComponent(log.ComponentDashboard),
	}
}

// WithClock replaces the time source that decides which month is current.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.spending.WithClock(now)
	return s
}

// Policy is the missing-data policy used by Accumulation.
func (s *Service) Policy() budget.MissingDataPolicy { return s.cfg.Policy }

// Cleaner exposes the spending cache to a cache.Manager sweep.
func (s *Service) Cleaner() cache.Cleaner { return s.spending }

// Invalidate drops the cached spending of one user-month. It is called
// after every transaction write.
func (s *Service) Invalidate(email string, year, month int) {
	s.spending.Delete(spendingKey(email, core.YearMonth{Year: year, Month: month}))
}

// InvalidateUser drops every cached month of the user.
func (s *Service) InvalidateUser(email string) {
	s.spending.DeletePrefix(email + "|")
}

func spendingKey(email string, period core.YearMonth) string {
	return email + "|" + period.String()
}

type BurnRateView struct {
	Period    core.YearMonth          `json:"period"`
	HasBudget bool                    `json:"hasBudget"`
	Items     []budget.BurnRateResult `json:"items"`
}

type AccumulationView struct {
	Period      core.YearMonth              `json:"period"`
	HasBudget   bool                        `json:"hasBudget"`
	Policy      string                      `json:"policy"`
	Unavailable []int                       `json:"unavailableMonths,omitempty"`
	Items       []budget.AccumulationResult `json:"items"`
}

type DistributionView struct {
	Period core.YearMonth             `json:"period"`
	Total  core.Money                 `json:"total"`
	Slices []budget.DistributionSlice `json:"slices"`
}

type ComparisonView struct {
	Year      int                      `json:"year"`
	HasBudget bool                     `json:"hasBudget"`
	Months    []budget.MonthComparison `json:"months"`
}

type SummaryView struct {
	Period           core.YearMonth     `json:"period"`
	HasBudget        bool               `json:"hasBudget"`
	Totals           budget.MonthTotals `json:"totals"`
	TransactionCount int64              `json:"transactionCount"`
}

// allocations returns the items of the year's budget, or false when the user
// has none.
func (s *Service) allocations(ctx context.Context, sess auth.Session, year int) ([]core.BudgetAllocation, bool, error) {
	b, err := s.backend.GetBudget(ctx, sess, year)
	if errors.Is(err, core.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load budget %d: %w", year, err)
	}
	return b.Items, true, nil
}

// monthSpending returns the per-category spending of a month. Months before
// the current one are served from the cache.
func (s *Service) monthSpending(ctx context.Context, sess auth.Session, period core.YearMonth) (map[string]core.Money, error) {
	closed := period.Before(core.CurrentYearMonth(s.now()))
	key := spendingKey(sess.Email, period)
	if closed {
		if totals, ok := s.spending.Get(key); ok {
			return totals, nil
		}
	}
	rows, err := s.backend.SpendingByCategory(ctx, sess, period)
	if err != nil {
		return nil, err
	}
	totals := core.SpendingTotals(rows)
	if closed {
		s.spending.Set(key, totals)
	}
	return totals, nil
}

func (s *Service) BurnRate(ctx context.Context, sess auth.Session, period core.YearMonth) (BurnRateView, error) {
	view := BurnRateView{Period: period, Items: []budget.BurnRateResult{}}
	items, ok, err := s.allocations(ctx, sess, period.Year)
	if err != nil || !ok {
		return view, err
	}
	view.HasBudget = true
	spent, err := s.monthSpending(ctx, sess, period)
	if err != nil {
		return view, fmt.Errorf("spending for %s: %w", period, err)
	}
	view.Items = budget.BurnRate(items, period.Month, spent)
	return view, nil
}

// Accumulation fetches the spending of months 1..period.Month concurrently
// and runs the carry-forward computation under the configured policy. A
// failed month is logged and handed to the policy, never returned directly.
func (s *Service) Accumulation(ctx context.Context, sess auth.Session, period core.YearMonth) (AccumulationView, error) {
	view := AccumulationView{
		Period: period,
		Policy: s.cfg.Policy.String(),
		Items:  []budget.AccumulationResult{},
	}
	items, ok, err := s.allocations(ctx, sess, period.Year)
	if err != nil || !ok {
		return view, err
	}
	view.HasBudget = true
	if len(budget.AccumulatingAllocations(items)) == 0 {
		return view, nil
	}

	spending := s.fetchMonths(ctx, sess, period)
	if err := ctx.Err(); err != nil {
		return view, err
	}
	view.Unavailable = spending.Unavailable(period.Month)

	results, err := budget.Accumulate(items, period.Month, spending, s.cfg.Policy)
	if err != nil {
		return view, err
	}
	view.Items = results
	return view, nil
}

func (s *Service) fetchMonths(ctx context.Context, sess auth.Session, period core.YearMonth) budget.SpendingByMonth {
	var (
		mu       sync.Mutex
		spending = make(budget.SpendingByMonth, period.Month)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentFetches)
	for m := 1; m <= period.Month; m++ {
		month := core.YearMonth{Year: period.Year, Month: m}
		g.Go(func() error {
			totals, err := s.monthSpending(gctx, sess, month)
			if err != nil {
				s.logger.WarnContext(ctx, "Month spending unavailable",
					log.FieldYear, month.Year,
					log.FieldMonth, month.Month,
					log.FieldPolicy, s.cfg.Policy.String(),
					log.FieldError, err)
			}
			mu.Lock()
			spending[month.Month] = budget.MonthSpending{Totals: totals, Err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return spending
}

func (s *Service) Distribution(ctx context.Context, sess auth.Session, period core.YearMonth) (DistributionView, error) {
	view := DistributionView{Period: period, Total: core.Zero, Slices: []budget.DistributionSlice{}}
	rows, err := s.backend.SpendingByCategory(ctx, sess, period)
	if err != nil {
		return view, fmt.Errorf("spending for %s: %w", period, err)
	}
	categories, err := s.backend.ListCategories(ctx, sess)
	if err != nil {
		return view, fmt.Errorf("load expense types: %w", err)
	}
	view.Slices = budget.Distribution(rows, categories)
	for _, sl := range view.Slices {
		view.Total = view.Total.Add(sl.Amount)
	}
	return view, nil
}

func (s *Service) Comparison(ctx context.Context, sess auth.Session, year int) (ComparisonView, error) {
	view := ComparisonView{Year: year, Months: []budget.MonthComparison{}}
	items, ok, err := s.allocations(ctx, sess, year)
	if err != nil {
		return view, err
	}
	view.HasBudget = ok
	yearly, err := s.backend.YearlySummary(ctx, sess, year)
	if err != nil {
		return view, fmt.Errorf("yearly summary %d: %w", year, err)
	}
	view.Months = budget.MonthlyComparison(items, yearly)
	return view, nil
}

// EmergencyFund sizes the fund from the current year's budget and the
// user's preferences.
func (s *Service) EmergencyFund(ctx context.Context, sess auth.Session) (budget.EmergencyFundStatus, error) {
	prefs, err := s.backend.GetPreferences(ctx, sess)
	if errors.Is(err, core.ErrNotFound) {
		prefs = core.DefaultPreferences(sess.Email)
	} else if err != nil {
		return budget.EmergencyFundStatus{}, fmt.Errorf("load preferences: %w", err)
	}
	items, _, err := s.allocations(ctx, sess, s.now().Year())
	if err != nil {
		return budget.EmergencyFundStatus{}, err
	}
	return budget.EmergencyFund(prefs, items), nil
}

func (s *Service) Summary(ctx context.Context, sess auth.Session, period core.YearMonth) (SummaryView, error) {
	view := SummaryView{Period: period}
	items, ok, err := s.allocations(ctx, sess, period.Year)
	if err != nil {
		return view, err
	}
	view.HasBudget = ok
	monthly, err := s.backend.MonthlySummary(ctx, sess, period)
	if err != nil {
		return view, fmt.Errorf("monthly summary %s: %w", period, err)
	}
	view.Totals = budget.Totals(items, period.Month, monthly.TotalExpenses)
	view.TransactionCount = monthly.TransactionCount
	return view, nil
}

// ErrStale is returned by LoadWidget when a newer load or a navigation
// superseded the one in progress.
var ErrStale = errors.New("widget load superseded")

// WidgetData is the loaded content of one navigable widget. Exactly one of
// the view pointers is set.
type WidgetData struct {
	Widget       WidgetID          `json:"widget"`
	Period       core.YearMonth    `json:"period"`
	Generation   uint64            `json:"generation"`
	CanNext      bool              `json:"canNext"`
	BurnRate     *BurnRateView     `json:"burnRate,omitempty"`
	Accumulation *AccumulationView `json:"accumulation,omitempty"`
	Distribution *DistributionView `json:"distribution,omitempty"`
}

// LoadWidget loads widget w at the navigator's cursor. The result is only
// returned when the load is still current on completion; otherwise it
// returns ErrStale and the caller must not render it.
func (s *Service) LoadWidget(ctx context.Context, sess auth.Session, nav *Navigator, w WidgetID) (WidgetData, error) {
	ticket, loadCtx := nav.Begin(ctx, w)
	data := WidgetData{
		Widget:     w,
		Period:     ticket.Cursor.YearMonth,
		Generation: ticket.Generation,
		CanNext:    ticket.Cursor.CanNext(s.now()),
	}

	var err error
	switch w {
	case WidgetBurnRate:
		var v BurnRateView
		v, err = s.BurnRate(loadCtx, sess, ticket.Cursor.YearMonth)
		data.BurnRate = &v
	case WidgetAccumulation:
		var v AccumulationView
		v, err = s.Accumulation(loadCtx, sess, ticket.Cursor.YearMonth)
		data.Accumulation = &v
	case WidgetDistribution:
		var v DistributionView
		v, err = s.Distribution(loadCtx, sess, ticket.Cursor.YearMonth)
		data.Distribution = &v
	default:
		nav.Commit(ticket)
		return WidgetData{}, fmt.Errorf("unknown widget %q: %w", w, core.ErrNotFound)
	}

	if !nav.Commit(ticket) {
		log.NewStructuredLogger(s.logger).LogStaleLoad(ctx, string(w), ticket.Generation, ticket.Cursor.Year, ticket.Cursor.Month)
		return WidgetData{}, ErrStale
	}
	if err != nil {
		return WidgetData{}, err
	}
	return data, nil
}
