package domain

import "context"

// Catalog supplies the list of components whose prices are tracked.
// Implemented by the product catalog store, which is an external collaborator.
type Catalog interface {
	ListTrackedProducts(ctx context.Context) ([]ProductSource, error)
}

// PageRetriever fetches a rendered vendor page under a given identity.
// Implementations must honor the context deadline and release any
// automation session on every exit path.
type PageRetriever interface {
	Fetch(ctx context.Context, url string, identity Identity) (*RenderedPage, error)
}

// RuleProvider maps a vendor domain to its extraction rule. Lookups are pure
// (no I/O) and fail closed with ErrUnsupportedDomain.
type RuleProvider interface {
	RulesFor(domain string) (ExtractionRule, error)
}
