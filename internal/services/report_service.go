package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"hamyon/internal/cache"
	"hamyon/internal/charts"
	"hamyon/internal/core"
	"hamyon/internal/log"
	"hamyon/internal/storage"
)

const recentTransactions = 10

// ChartKind selects which statistics chart to draw.
type ChartKind string

const (
	ChartCategories ChartKind = "categories"
	ChartDaily      ChartKind = "daily"
)

type ChartRequest struct {
	Kind     ChartKind
	Period   core.Period
	Type     core.EntryType
	Currency core.Currency
}

// ReportService answers read-only aggregate queries. Results are cached per
// user until the ledger changes or the entry expires.
type ReportService struct {
	repo       *storage.Repository
	dashboards *cache.LRUCache[core.Dashboard]
	stats      *cache.LRUCache[core.Statistics]
	logger     *log.Logger
	now        func() time.Time

	// genMu orders Invalidate against cache fills. A result computed before
	// the user's generation moved is not stored.
	genMu sync.Mutex
	gens  map[int64]uint64
}

func NewReportService(repo *storage.Repository, cacheSize int, cacheTTL time.Duration, logger *log.Logger) *ReportService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReportService{
		repo:       repo,
		dashboards: cache.NewLRUCache[core.Dashboard](cacheSize, cacheTTL),
		stats:      cache.NewLRUCache[core.Statistics](cacheSize, cacheTTL),
		logger:     logger.WithComponent(log.ComponentReport),
		now:        time.Now,
		gens:       make(map[int64]uint64),
	}
}

// Caches exposes the caches for periodic expiry.
func (s *ReportService) Caches() []cache.Cleaner {
	return []cache.Cleaner{s.dashboards, s.stats}
}

// Invalidate drops everything cached for userID.
func (s *ReportService) Invalidate(userID int64) {
	uid := strconv.FormatInt(userID, 10)
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gens[userID]++
	s.dashboards.Delete("dashboard:" + uid)
	s.stats.DeletePrefix("stats:" + uid + ":")
}

func (s *ReportService) generation(userID int64) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.gens[userID]
}

// fill runs set unless userID was invalidated since gen was read.
func (s *ReportService) fill(userID int64, gen uint64, set func()) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gens[userID] != gen {
		s.logger.Debug("Discarding stale report", log.FieldUserID, userID)
		return false
	}
	set()
	return true
}

// CacheStats reports hits and misses of both caches combined.
func (s *ReportService) CacheStats() (hits, misses int64) {
	dh, dm := s.dashboards.Stats()
	sh, sm := s.stats.Stats()
	return dh + sh, dm + sm
}

// Dashboard gathers the landing overview. The four reads are independent
// and run concurrently.
func (s *ReportService) Dashboard(ctx context.Context, userID int64) (core.Dashboard, error) {
	key := "dashboard:" + strconv.FormatInt(userID, 10)
	if d, ok := s.dashboards.Get(key); ok {
		return d, nil
	}
	gen := s.generation(userID)

	var d core.Dashboard
	monthFrom, monthTo := core.PeriodMonth.Range(s.now())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := s.repo.ListWallets(gctx, userID)
		d.Wallets = w
		return err
	})
	g.Go(func() error {
		b, err := s.repo.BalancesByCurrency(gctx, userID)
		d.Balances = b
		return err
	})
	g.Go(func() error {
		m, err := s.repo.TotalsByCurrency(gctx, userID, monthFrom, monthTo)
		d.Month = m
		return err
	})
	g.Go(func() error {
		r, err := s.repo.RecentTransactions(gctx, userID, recentTransactions)
		d.Recent = r
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}

	s.fill(userID, gen, func() { s.dashboards.Set(key, d) })
	return d, nil
}

// Statistics aggregates the period's transactions per currency and per
// category, optionally only one entry type.
func (s *ReportService) Statistics(ctx context.Context, userID int64, period core.Period, typ core.EntryType) (core.Statistics, error) {
	if typ != "" && !typ.Valid() {
		return core.Statistics{}, core.Invalid("type", core.ErrInvalidEntryType)
	}
	key := fmt.Sprintf("stats:%d:%s:%s", userID, period, typ)
	if st, ok := s.stats.Get(key); ok {
		return st, nil
	}
	gen := s.generation(userID)

	from, to := period.Range(s.now())
	st := core.Statistics{Period: period, From: from, To: to}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.repo.TotalsByCurrency(gctx, userID, from, to)
		st.Totals = t
		return err
	})
	g.Go(func() error {
		c, err := s.repo.TotalsByCategory(gctx, userID, typ, from, to)
		st.ByCategory = c
		return err
	})
	if err := g.Wait(); err != nil {
		return core.Statistics{}, fmt.Errorf("statistics: %w", err)
	}

	if typ != "" {
		filtered := st.Totals[:0:0]
		for _, t := range st.Totals {
			if typ == core.Income {
				t.Outcome = core.Money{}
			} else {
				t.Income = core.Money{}
			}
			filtered = append(filtered, t)
		}
		st.Totals = filtered
	}
	for _, c := range st.ByCategory {
		st.Count += c.Count
	}

	s.fill(userID, gen, func() { s.stats.Set(key, st) })
	return st, nil
}

// ChartPNG renders a statistics chart for one currency.
func (s *ReportService) ChartPNG(ctx context.Context, userID int64, req ChartRequest) ([]byte, error) {
	if !req.Currency.Valid() {
		return nil, core.Invalid("currency", core.ErrInvalidCurrency)
	}

	switch req.Kind {
	case ChartCategories, "":
		typ := req.Type
		if typ == "" {
			typ = core.Outcome
		}
		st, err := s.Statistics(ctx, userID, req.Period, typ)
		if err != nil {
			return nil, err
		}
		var items []core.CategoryAmount
		for _, c := range st.ByCategory {
			if c.Currency == req.Currency {
				items = append(items, c)
			}
		}
		title := fmt.Sprintf("%s by category, %s (%s)", typ, req.Period, req.Currency)
		return chartResult(charts.CategoryPie(title, items))

	case ChartDaily:
		from, to := req.Period.Range(s.now())
		if from.IsZero() {
			to = s.now().AddDate(0, 0, 1)
			from = to.AddDate(0, 0, -30)
		}
		points, err := s.repo.DailyTotals(ctx, userID, req.Currency, from, to)
		if err != nil {
			return nil, fmt.Errorf("chart: %w", err)
		}
		title := fmt.Sprintf("Daily income and outcome (%s)", req.Currency)
		return chartResult(charts.DailySeries(title, from, to, points))
	}
	return nil, core.Invalid("kind", fmt.Errorf("unknown chart kind %q", req.Kind))
}

func chartResult(png []byte, err error) ([]byte, error) {
	if errors.Is(err, charts.ErrNoData) {
		return nil, fmt.Errorf("chart: %w", core.ErrNotFound)
	}
	return png, err
}
