package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/partpicker/pricesync/internal/domain"
	"github.com/partpicker/pricesync/pkg/logger"
)

// SingleScraper performs one retried single-item scrape.
type SingleScraper interface {
	Do(ctx context.Context, source domain.ProductSource) domain.ScrapeOutcome
}

// SchedulerConfig tunes the batch scrape run.
type SchedulerConfig struct {
	ConcurrencyLimit int
	BatchPause       time.Duration
	VendorPerSec     float64 // outbound requests/second per vendor domain
}

// Scheduler fetches many sources in fixed-size windows: within a window all
// fetches run concurrently, between windows a pacing delay applies. A
// failure in one item never aborts its siblings or later windows.
type Scheduler struct {
	scraper SingleScraper
	cfg     SchedulerConfig
	sleep   func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewScheduler creates a batch scheduler over the given single-item scraper.
func NewScheduler(scraper SingleScraper, cfg SchedulerConfig) *Scheduler {
	if cfg.ConcurrencyLimit < 1 {
		cfg.ConcurrencyLimit = 2
	}
	if cfg.VendorPerSec <= 0 {
		cfg.VendorPerSec = 0.5
	}
	return &Scheduler{
		scraper:  scraper,
		cfg:      cfg,
		sleep:    sleepCtx,
		limiters: make(map[string]*rate.Limiter),
	}
}

// ScrapeAll scrapes every source and returns exactly one outcome per input,
// sorted by product key regardless of completion order. Window boundaries
// are cancellation checkpoints: on ctx cancellation the in-flight window
// completes, remaining sources become cancellation failures, and no further
// window is dispatched.
func (s *Scheduler) ScrapeAll(ctx context.Context, sources []domain.ProductSource) []domain.ScrapeOutcome {
	results := make([]domain.ScrapeOutcome, 0, len(sources))
	limit := s.cfg.ConcurrencyLimit

	for start := 0; start < len(sources); start += limit {
		if ctx.Err() != nil {
			for _, src := range sources[start:] {
				results = append(results, failureOutcome(src, ctx.Err(), 0))
			}
			break
		}

		end := start + limit
		if end > len(sources) {
			end = len(sources)
		}
		window := sources[start:end]

		outcomes, err := s.runWindow(ctx, window)
		if err != nil {
			// Coordination failure: fall back to sequential per-item retry
			// for this window rather than losing its results.
			logger.Error(ctx, "window aggregation failed, retrying sequentially",
				zap.Int("windowStart", start), zap.Error(err))
			outcomes = outcomes[:0]
			for _, src := range window {
				outcomes = append(outcomes, s.scrapeItem(ctx, src))
			}
		}
		results = append(results, outcomes...)

		if end < len(sources) {
			// Inter-batch pacing. Cancellation here is caught by the
			// checkpoint at the top of the next iteration.
			_ = s.sleep(ctx, s.cfg.BatchPause)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].ProductKey < results[j].ProductKey
	})
	return results
}

// runWindow dispatches one window concurrently and waits for all items.
func (s *Scheduler) runWindow(ctx context.Context, window []domain.ProductSource) (outcomes []domain.ScrapeOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("window panic: %v", r)
		}
	}()

	outcomes = make([]domain.ScrapeOutcome, len(window))
	var wg sync.WaitGroup
	for i, src := range window {
		wg.Add(1)
		go func(i int, src domain.ProductSource) {
			defer wg.Done()
			outcomes[i] = s.scrapeItem(ctx, src)
		}(i, src)
	}
	wg.Wait()
	return outcomes, nil
}

// scrapeItem isolates a single item: a panic or failure here becomes an
// outcome, never an aborted window.
func (s *Scheduler) scrapeItem(ctx context.Context, src domain.ProductSource) (out domain.ScrapeOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failureOutcome(src, fmt.Errorf("scrape panic: %v", r), 0)
		}
	}()

	if err := s.vendorLimiter(src.Domain).Wait(ctx); err != nil {
		return failureOutcome(src, err, 0)
	}
	return s.scraper.Do(ctx, src)
}

// vendorLimiter returns the shared rate limiter for a vendor domain.
func (s *Scheduler) vendorLimiter(vendorDomain string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[vendorDomain]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.VendorPerSec), 1)
		s.limiters[vendorDomain] = l
	}
	return l
}
