// Package cache holds the freshness cache's storage: an in-memory map from
// product key to the last scrape result. Entries outlive their TTL — a stale
// quote is retained so it can be served when a refresh fails — and are only
// removed by explicit invalidation or process restart.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/partpicker/pricesync/internal/domain"
)

// entry is the per-key cache record. Quote survives failed refreshes;
// LastError reflects only the most recent attempt.
type entry struct {
	Quote       *domain.PriceQuote
	CachedAt    time.Time
	LastSuccess time.Time
	LastAttempt time.Time
	LastError   string
}

// Snapshot is a read-only view of one cache entry.
type Snapshot struct {
	Quote       *domain.PriceQuote
	CachedAt    time.Time
	LastSuccess time.Time
	LastError   string
	Fresh       bool
}

// KeyStatus is the introspection record served by the status operation.
type KeyStatus struct {
	ProductKey       string    `json:"productKey"`
	AgeSeconds       int64     `json:"ageSeconds"`
	RemainingSeconds int64     `json:"remainingSeconds"`
	Success          bool      `json:"success"`
	LastSuccessAt    time.Time `json:"lastSuccessAt,omitempty"`
	LastError        string    `json:"lastError,omitempty"`
}

// QuoteCache is a thread-safe in-memory TTL cache of price quotes.
type QuoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]*entry
	now     func() time.Time
}

// New creates a quote cache with the given TTL.
func New(ttl time.Duration) *QuoteCache {
	return &QuoteCache{
		ttl:     ttl,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Get returns a snapshot for the key and whether an entry exists. Fresh is
// true while the last successful quote is younger than the TTL.
func (c *QuoteCache) Get(key string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		Quote:       e.Quote,
		CachedAt:    e.CachedAt,
		LastSuccess: e.LastSuccess,
		LastError:   e.LastError,
		Fresh:       e.Quote != nil && c.now().Sub(e.CachedAt) < c.ttl,
	}, true
}

// StoreSuccess records a successful scrape, resetting the entry's age.
func (c *QuoteCache) StoreSuccess(quote *domain.PriceQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.entries[quote.ProductKey]
	if !ok {
		e = &entry{}
		c.entries[quote.ProductKey] = e
	}
	e.Quote = quote
	e.CachedAt = now
	e.LastSuccess = now
	e.LastAttempt = now
	e.LastError = ""
}

// StoreFailure records a failed scrape. Any prior quote and its timestamps
// are retained for the stale-on-error path.
func (c *QuoteCache) StoreFailure(key string, outcome domain.ScrapeOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &entry{}
		c.entries[key] = e
	}
	e.LastAttempt = c.now()
	e.LastError = outcome.ErrorKind
}

// Clear removes all entries. The next lookup repopulates from source.
func (c *QuoteCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len returns the current number of entries.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Status returns one introspection record per entry, sorted by product key.
// Read-only, no side effects.
func (c *QuoteCache) Status() []KeyStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]KeyStatus, 0, len(c.entries))
	for key, e := range c.entries {
		st := KeyStatus{
			ProductKey: key,
			Success:    e.Quote != nil,
			LastError:  e.LastError,
		}
		if e.Quote != nil {
			age := now.Sub(e.CachedAt)
			st.AgeSeconds = int64(age.Seconds())
			if remaining := c.ttl - age; remaining > 0 {
				st.RemainingSeconds = int64(remaining.Seconds())
			}
			st.LastSuccessAt = e.LastSuccess
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductKey < out[j].ProductKey })
	return out
}
