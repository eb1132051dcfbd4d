// Package rules maps vendor domains to extraction rules and applies those
// rules to rendered pages. Vendor markup is too heterogeneous for a single
// universal extractor; each domain registers an ordered fallback chain of
// selectors instead.
package rules

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/partpicker/pricesync/internal/domain"
)

// Registry is a map-backed RuleProvider. Lookup fails closed: a domain
// without a registered rule yields ErrUnsupportedDomain, never a guess.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]domain.ExtractionRule
}

// NewRegistry creates a registry seeded with the built-in vendor rules.
func NewRegistry() *Registry {
	r := &Registry{rules: make(map[string]domain.ExtractionRule)}
	for d, rule := range builtinRules {
		// Built-in rules are maintained in this file; a bad pattern is a
		// programming error.
		if err := r.Register(d, rule); err != nil {
			panic(fmt.Sprintf("rules: invalid builtin rule for %s: %v", d, err))
		}
	}
	return r
}

// Register adds or replaces the rule for a vendor domain. The fallback
// pattern is validated here so RulesFor stays a pure lookup.
func (r *Registry) Register(vendorDomain string, rule domain.ExtractionRule) error {
	key := NormalizeDomain(vendorDomain)
	if key == "" {
		return fmt.Errorf("rules: empty domain")
	}
	if len(rule.PriceSelectors) == 0 && rule.FallbackPricePattern == "" {
		return fmt.Errorf("rules: rule for %s has no price selectors and no fallback pattern", key)
	}
	if rule.FallbackPricePattern != "" {
		if _, err := regexp.Compile(rule.FallbackPricePattern); err != nil {
			return fmt.Errorf("rules: invalid fallback pattern for %s: %w", key, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[key] = rule
	return nil
}

// RulesFor returns the extraction rule for a vendor domain.
func (r *Registry) RulesFor(vendorDomain string) (domain.ExtractionRule, error) {
	key := NormalizeDomain(vendorDomain)

	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[key]
	if !ok {
		return domain.ExtractionRule{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedDomain, key)
	}
	return rule, nil
}

// Domains returns the registered vendor domains (unordered).
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.rules))
	for d := range r.rules {
		out = append(out, d)
	}
	return out
}

// NormalizeDomain lowercases a domain and strips scheme, "www." and port so
// that source records and rule keys compare equal.
func NormalizeDomain(d string) string {
	d = strings.TrimSpace(strings.ToLower(d))
	if strings.Contains(d, "://") {
		if u, err := url.Parse(d); err == nil && u.Host != "" {
			d = u.Host
		}
	}
	if i := strings.IndexByte(d, ':'); i >= 0 {
		d = d[:i]
	}
	d = strings.TrimPrefix(d, "www.")
	return strings.TrimSuffix(d, "/")
}

// DomainOf extracts the normalized vendor domain from a source URL.
func DomainOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidURL, rawURL)
	}
	return NormalizeDomain(u.Host), nil
}

// builtinRules covers the vendors the catalog currently tracks. Selector
// order matters: most specific first, generic microdata last.
var builtinRules = map[string]domain.ExtractionRule{
	"electropeak.com": {
		PriceSelectors: []string{
			"span.price-wrapper span.price",
			".product-info-price .price",
			`meta[property="product:price:amount"]`,
		},
		AvailabilitySelectors: []string{
			".stock.available span",
			".stock.unavailable span",
			".product-info-stock-sku .stock",
		},
		FallbackPricePattern: `(\d{1,3}(?:[.,]\d{3})*[.,]\d{2})\s*€`,
		CurrencySymbol:       "€",
		Currency:             "EUR",
	},
	"robotshop.com": {
		PriceSelectors: []string{
			".price-box .special-price .price",
			".price-box .price",
			`span[itemprop="price"]`,
		},
		AvailabilitySelectors: []string{
			".availability .in-stock",
			".availability .out-of-stock",
			".availability",
		},
		FallbackPricePattern: `\$\s*(\d{1,3}(?:,\d{3})*\.\d{2})`,
		CurrencySymbol:       "$",
		Currency:             "USD",
	},
	"sparkfun.com": {
		PriceSelectors: []string{
			".product-price .sale-price",
			".product-price",
			`meta[itemprop="price"]`,
		},
		AvailabilitySelectors: []string{
			".stock-status",
			".product-stock",
		},
		FallbackPricePattern: `\$\s*(\d{1,3}(?:,\d{3})*\.\d{2})`,
		CurrencySymbol:       "$",
		Currency:             "USD",
	},
	"berrybase.de": {
		PriceSelectors: []string{
			".product-detail-price",
			`meta[itemprop="price"]`,
		},
		AvailabilitySelectors: []string{
			".delivery-information",
			".product-detail-delivery",
		},
		FallbackPricePattern: `(\d{1,3}(?:\.\d{3})*,\d{2})\s*€`,
		CurrencySymbol:       "€",
		Currency:             "EUR",
	},
}
