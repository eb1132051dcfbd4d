package domain

import (
	"context"
	"errors"
)

var (
	// ErrFetchTimeout is returned when a page fetch exceeds its deadline.
	ErrFetchTimeout = errors.New("page fetch timed out")

	// ErrNetwork is returned on connection-level fetch failures.
	ErrNetwork = errors.New("network error")

	// ErrNavigationBlocked is returned when a vendor's anti-automation
	// defense prevented the page from rendering.
	ErrNavigationBlocked = errors.New("navigation blocked by vendor")

	// ErrUnsupportedDomain is returned when no extraction rule is registered
	// for a source's domain. The registry fails closed, never guesses.
	ErrUnsupportedDomain = errors.New("no extraction rule for domain")

	// ErrPriceNotFound is returned when the page loaded but no selector or
	// fallback pattern yielded a parseable price.
	ErrPriceNotFound = errors.New("no price found on page")

	// ErrInvalidURL is returned for malformed source URLs.
	ErrInvalidURL = errors.New("invalid source URL")

	// ErrUnknownProduct is returned when a requested key is not in the catalog.
	ErrUnknownProduct = errors.New("unknown product key")

	// ErrEmptyCatalog is returned when the catalog has no tracked products.
	ErrEmptyCatalog = errors.New("catalog has no tracked products")
)

// IsRetryable reports whether an error class is worth retrying with backoff.
// Only transport-class failures qualify; rule and input errors surface
// immediately.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrFetchTimeout) ||
		errors.Is(err, ErrNetwork) ||
		errors.Is(err, ErrNavigationBlocked)
}

// ErrorKind maps an error to its stable taxonomy name, used in ScrapeOutcome
// and API payloads.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrFetchTimeout):
		return "timeout"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrNavigationBlocked):
		return "navigation-blocked"
	case errors.Is(err, ErrUnsupportedDomain):
		return "unsupported-domain"
	case errors.Is(err, ErrPriceNotFound):
		return "price-not-found"
	case errors.Is(err, ErrInvalidURL):
		return "invalid-url"
	case errors.Is(err, ErrUnknownProduct):
		return "unknown-product"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
