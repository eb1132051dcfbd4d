package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/partpicker/pricesync/internal/domain"
	"github.com/partpicker/pricesync/internal/infrastructure/rules"
	"github.com/partpicker/pricesync/pkg/logger"
)

// IdentitySource hands out rotating identity profiles for page fetches.
type IdentitySource interface {
	Next() domain.Identity
}

// PageExtractor applies an extraction rule to rendered HTML.
type PageExtractor interface {
	Extract(html string, rule domain.ExtractionRule) (rules.Extraction, error)
}

// RetryerConfig tunes the single-item retry policy.
type RetryerConfig struct {
	MaxAttempts     int
	BaseBackoff     time.Duration
	MinRequestDelay time.Duration
	MaxRequestDelay time.Duration
}

// Retryer wraps a single-item scrape with bounded retries, exponential
// backoff and identity rotation. All failure is returned as a ScrapeOutcome;
// nothing escapes this boundary as an error or panic.
type Retryer struct {
	retriever  domain.PageRetriever
	rules      domain.RuleProvider
	extractor  PageExtractor
	identities IdentitySource
	cfg        RetryerConfig

	// sleep and rand are injectable so tests can observe the schedule.
	sleep func(ctx context.Context, d time.Duration) error
	mu    sync.Mutex
	rand  *rand.Rand
}

// NewRetryer creates a retry policy over the given retriever and rules.
func NewRetryer(
	retriever domain.PageRetriever,
	provider domain.RuleProvider,
	extractor PageExtractor,
	identities IdentitySource,
	cfg RetryerConfig,
) *Retryer {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = time.Second
	}
	return &Retryer{
		retriever:  retriever,
		rules:      provider,
		extractor:  extractor,
		identities: identities,
		cfg:        cfg,
		sleep:      sleepCtx,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Do scrapes one product source, retrying transport-class failures.
// The loop is explicit (no recursion) so cancellation and attempt state
// stay visible: Attempting(n) -> Success | Retrying(n+1) -> Failure.
func (r *Retryer) Do(ctx context.Context, source domain.ProductSource) domain.ScrapeOutcome {
	identity := r.identities.Next()

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		// Randomized pacing before every attempt, including the first,
		// to avoid bursty request patterns against a single vendor.
		if err := r.sleep(ctx, r.requestDelay()); err != nil {
			return failureOutcome(source, err, attempts)
		}

		attempts = attempt
		quote, err := r.scrapeOnce(ctx, source, identity)
		if err == nil {
			return domain.ScrapeOutcome{
				ProductKey:     source.ProductKey,
				Quote:          quote,
				AttemptsMade:   attempts,
				LastObservedAt: quote.ObservedAt,
			}
		}
		lastErr = err

		logger.Warn(ctx, "scrape attempt failed",
			zap.String("productKey", source.ProductKey),
			zap.Int("attempt", attempt),
			zap.String("errorKind", domain.ErrorKind(err)),
			zap.Error(err))

		if !domain.IsRetryable(err) {
			return failureOutcome(source, err, attempts)
		}

		// 2^attempt * base, then a fresh identity for the next try.
		backoff := (1 << uint(attempt)) * r.cfg.BaseBackoff
		if serr := r.sleep(ctx, backoff); serr != nil {
			return failureOutcome(source, lastErr, attempts)
		}
		identity = r.identities.Next()
	}

	return failureOutcome(source, lastErr, attempts)
}

// scrapeOnce runs the fetch -> extract -> normalize pipeline a single time.
func (r *Retryer) scrapeOnce(ctx context.Context, source domain.ProductSource, identity domain.Identity) (*domain.PriceQuote, error) {
	vendorDomain := source.Domain
	if vendorDomain == "" {
		d, err := rules.DomainOf(source.SourceURL)
		if err != nil {
			return nil, err
		}
		vendorDomain = d
	}

	// Rule lookup first: an unsupported domain must fail before any fetch.
	rule, err := r.rules.RulesFor(vendorDomain)
	if err != nil {
		return nil, err
	}

	page, err := r.retriever.Fetch(ctx, source.SourceURL, identity)
	if err != nil {
		return nil, err
	}

	ex, err := r.extractor.Extract(page.HTML, rule)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing page: %v", domain.ErrPriceNotFound, err)
	}

	hint := CurrencyHint{
		Symbol:   rule.CurrencySymbol,
		Currency: rule.Currency,
		Fallback: source.ReferenceCurrency,
	}

	var price *domain.Price
	for _, candidate := range ex.PriceCandidates {
		if price = ParsePrice(candidate, hint); price != nil {
			break
		}
	}
	if price == nil && ex.FallbackPrice != "" {
		price = ParsePrice(ex.FallbackPrice, hint)
	}
	if price == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPriceNotFound, source.SourceURL)
	}

	availability := ClassifyAvailability(ex.AvailabilityText)
	return BuildQuote(source, *price, availability, page.FetchedAt), nil
}

// requestDelay draws the randomized pre-attempt delay from the configured range.
func (r *Retryer) requestDelay() time.Duration {
	min, max := r.cfg.MinRequestDelay, r.cfg.MaxRequestDelay
	if max <= min {
		return min
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return min + time.Duration(r.rand.Int63n(int64(max-min)))
}

func failureOutcome(source domain.ProductSource, err error, attempts int) domain.ScrapeOutcome {
	out := domain.ScrapeOutcome{
		ProductKey:     source.ProductKey,
		ErrorKind:      domain.ErrorKind(err),
		AttemptsMade:   attempts,
		LastObservedAt: time.Now(),
	}
	if err != nil {
		out.ErrorDetail = err.Error()
	}
	return out
}

// sleepCtx sleeps for d or until the context is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
