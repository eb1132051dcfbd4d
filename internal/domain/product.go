package domain

import "time"

// ProductSource identifies one tracked component and where its authoritative
// price lives. Supplied by the catalog; immutable for the duration of a scrape.
type ProductSource struct {
	ProductKey        string  `json:"productKey"`
	ReferencePrice    float64 `json:"referencePrice"`
	ReferenceCurrency string  `json:"referenceCurrency"`
	SourceURL         string  `json:"sourceUrl"`
	Domain            string  `json:"domain"`
}

// AvailabilityState is the stock status derived from vendor page text.
type AvailabilityState string

const (
	AvailabilityInStock    AvailabilityState = "in-stock"
	AvailabilityLowStock   AvailabilityState = "low-stock"
	AvailabilityOutOfStock AvailabilityState = "out-of-stock"
	AvailabilityUnknown    AvailabilityState = "unknown"
)

// Price is a normalized monetary value extracted from a vendor page.
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`

	// CurrencyAssumed is set when the normalizer matched a currency-agnostic
	// numeric pattern and fell back to the source's expected currency.
	CurrencyAssumed bool `json:"currencyAssumed,omitempty"`
}

// PriceQuote is the unit of output of a successful scrape.
// PriceDelta and PriceDeltaPercent are derived (observed - reference) and
// informational, not authoritative.
type PriceQuote struct {
	ProductKey        string            `json:"productKey"`
	Price             float64           `json:"price"`
	Currency          string            `json:"currency"`
	CurrencyAssumed   bool              `json:"currencyAssumed,omitempty"`
	Availability      AvailabilityState `json:"availability"`
	SourceURL         string            `json:"sourceUrl"`
	ObservedAt        time.Time         `json:"observedAt"`
	PriceDelta        float64           `json:"priceDelta"`
	PriceDeltaPercent float64           `json:"priceDeltaPercent"`
}

// ScrapeOutcome is a tagged result of one scrape attempt chain: either a
// quote or a first-class failure. Failures are values, never panics.
type ScrapeOutcome struct {
	ProductKey     string      `json:"productKey"`
	Quote          *PriceQuote `json:"quote,omitempty"`
	ErrorKind      string      `json:"errorKind,omitempty"`
	ErrorDetail    string      `json:"errorDetail,omitempty"`
	AttemptsMade   int         `json:"attemptsMade"`
	LastObservedAt time.Time   `json:"lastObservedAt"`
}

// Success reports whether the outcome carries a quote.
func (o ScrapeOutcome) Success() bool { return o.Quote != nil }

// ExtractionRule is the per-domain recipe for locating price and availability
// text on a vendor page. Selector lists are ordered: the first candidate that
// yields a parseable value wins.
type ExtractionRule struct {
	PriceSelectors        []string
	AvailabilitySelectors []string
	FallbackPricePattern  string
	CurrencySymbol        string
	Currency              string
}

// Identity bundles the rotating user-agent and viewport used for a fetch.
// It reduces fingerprinting-based blocking; it is not a correctness input.
type Identity struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
}

// RenderedPage is the outcome of fetching and rendering one vendor URL.
type RenderedPage struct {
	URL       string
	HTML      string
	FetchedAt time.Time
	Elapsed   time.Duration
}
