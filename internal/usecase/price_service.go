package usecase

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/partpicker/pricesync/internal/domain"
	"github.com/partpicker/pricesync/internal/infrastructure/cache"
	"github.com/partpicker/pricesync/pkg/logger"
)

// BatchScraper runs a full batch scrape with bounded concurrency.
type BatchScraper interface {
	ScrapeAll(ctx context.Context, sources []domain.ProductSource) []domain.ScrapeOutcome
}

// PriceResult is one per-key answer from the freshness cache: a scrape
// outcome plus whether it was served from cache.
type PriceResult struct {
	domain.ScrapeOutcome
	Cached bool `json:"cached"`
}

// Summary is the hit/miss accounting of a batch price lookup.
type Summary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Cached     int `json:"cached"`
	Scraped    int `json:"scraped"`
}

// PriceReport is the batch operation response shape.
type PriceReport struct {
	Summary Summary       `json:"summary"`
	Data    []PriceResult `json:"data"`
}

// PriceService is the freshness cache: it serves quotes within their TTL,
// decides when to scrape, and applies the stale-on-error policy.
type PriceService struct {
	catalog domain.Catalog
	cache   *cache.QuoteCache
	single  SingleScraper
	batch   BatchScraper
}

// NewPriceService wires the cache, retry policy and batch scheduler.
func NewPriceService(catalog domain.Catalog, quoteCache *cache.QuoteCache, single SingleScraper, batch BatchScraper) *PriceService {
	return &PriceService{
		catalog: catalog,
		cache:   quoteCache,
		single:  single,
		batch:   batch,
	}
}

// GetPrice returns the quote for one product key. A cached quote younger
// than the TTL is served as-is unless forceRefresh. When a refresh fails but
// a prior quote exists, the stale quote is returned unchanged; a hard error
// surfaces only when no prior success exists for the key.
func (s *PriceService) GetPrice(ctx context.Context, productKey string, forceRefresh bool) (*domain.PriceQuote, error) {
	snap, known := s.cache.Get(productKey)
	if !forceRefresh && known && snap.Fresh {
		return snap.Quote, nil
	}

	source, err := s.lookupSource(ctx, productKey)
	if err != nil {
		return nil, err
	}

	outcome := s.single.Do(ctx, source)
	if outcome.Success() {
		s.cache.StoreSuccess(outcome.Quote)
		return outcome.Quote, nil
	}

	s.cache.StoreFailure(productKey, outcome)
	if snap.Quote != nil {
		logger.Warn(ctx, "refresh failed, serving stale quote",
			zap.String("productKey", productKey),
			zap.String("errorKind", outcome.ErrorKind))
		return snap.Quote, nil
	}
	return nil, fmt.Errorf("scraping %s failed (%s): %s", productKey, outcome.ErrorKind, outcome.ErrorDetail)
}

// GetPrices answers a batch of keys. Requested keys are partitioned into
// cache hits and keys needing a scrape; the latter go through the batch
// scheduler. One result per key, sorted by product key.
//
// Accounting: Cached counts results served from cache (fresh hits and stale
// fallbacks), Scraped counts keys dispatched to the scheduler, Successful
// counts results carrying a quote, Failed the rest.
func (s *PriceService) GetPrices(ctx context.Context, productKeys []string, forceRefresh bool) (*PriceReport, error) {
	sources, err := s.catalog.ListTrackedProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing tracked products: %w", err)
	}
	if len(sources) == 0 {
		return nil, domain.ErrEmptyCatalog
	}

	byKey := make(map[string]domain.ProductSource, len(sources))
	for _, src := range sources {
		byKey[src.ProductKey] = src
	}

	// nil keys means the whole catalog.
	if productKeys == nil {
		productKeys = make([]string, 0, len(sources))
		for _, src := range sources {
			productKeys = append(productKeys, src.ProductKey)
		}
	}

	report := &PriceReport{Summary: Summary{Total: len(productKeys)}}
	staleByKey := make(map[string]*domain.PriceQuote)
	var toScrape []domain.ProductSource

	for _, key := range productKeys {
		src, ok := byKey[key]
		if !ok {
			report.Data = append(report.Data, PriceResult{
				ScrapeOutcome: domain.ScrapeOutcome{
					ProductKey:  key,
					ErrorKind:   domain.ErrorKind(domain.ErrUnknownProduct),
					ErrorDetail: domain.ErrUnknownProduct.Error(),
				},
			})
			report.Summary.Failed++
			continue
		}

		snap, known := s.cache.Get(key)
		if !forceRefresh && known && snap.Fresh {
			report.Data = append(report.Data, PriceResult{
				ScrapeOutcome: domain.ScrapeOutcome{
					ProductKey:     key,
					Quote:          snap.Quote,
					LastObservedAt: snap.CachedAt,
				},
				Cached: true,
			})
			report.Summary.Cached++
			report.Summary.Successful++
			continue
		}
		if snap.Quote != nil {
			staleByKey[key] = snap.Quote
		}
		toScrape = append(toScrape, src)
	}

	if len(toScrape) > 0 {
		logger.Info(ctx, "scraping stale or missing quotes",
			zap.Int("requested", len(productKeys)),
			zap.Int("toScrape", len(toScrape)))

		for _, outcome := range s.batch.ScrapeAll(ctx, toScrape) {
			report.Summary.Scraped++
			if outcome.Success() {
				s.cache.StoreSuccess(outcome.Quote)
				report.Data = append(report.Data, PriceResult{ScrapeOutcome: outcome})
				report.Summary.Successful++
				continue
			}

			s.cache.StoreFailure(outcome.ProductKey, outcome)
			if stale := staleByKey[outcome.ProductKey]; stale != nil {
				report.Data = append(report.Data, PriceResult{
					ScrapeOutcome: domain.ScrapeOutcome{
						ProductKey:     outcome.ProductKey,
						Quote:          stale,
						AttemptsMade:   outcome.AttemptsMade,
						LastObservedAt: outcome.LastObservedAt,
					},
					Cached: true,
				})
				report.Summary.Cached++
				report.Summary.Successful++
				continue
			}
			report.Data = append(report.Data, PriceResult{ScrapeOutcome: outcome})
			report.Summary.Failed++
		}
	}

	sort.Slice(report.Data, func(i, j int) bool {
		return report.Data[i].ProductKey < report.Data[j].ProductKey
	})
	return report, nil
}

// RefreshAll rescrapes the entire catalog, bypassing the cache.
func (s *PriceService) RefreshAll(ctx context.Context) (*PriceReport, error) {
	return s.GetPrices(ctx, nil, true)
}

// CacheStatus returns per-key age and remaining TTL. Read-only.
func (s *PriceService) CacheStatus() []cache.KeyStatus {
	return s.cache.Status()
}

// InvalidateAll clears every cache entry; subsequent lookups repopulate
// from source.
func (s *PriceService) InvalidateAll() {
	s.cache.Clear()
}

func (s *PriceService) lookupSource(ctx context.Context, productKey string) (domain.ProductSource, error) {
	sources, err := s.catalog.ListTrackedProducts(ctx)
	if err != nil {
		return domain.ProductSource{}, fmt.Errorf("listing tracked products: %w", err)
	}
	for _, src := range sources {
		if src.ProductKey == productKey {
			return src, nil
		}
	}
	return domain.ProductSource{}, fmt.Errorf("%w: %s", domain.ErrUnknownProduct, productKey)
}
