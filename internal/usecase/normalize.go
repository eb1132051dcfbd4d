package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/partpicker/pricesync/internal/domain"
)

// Package-level compiled regex patterns for performance
var (
	// Pattern priority is a fixed, tested contract: (a) thousands-dot with
	// comma decimal, (b) thousands-comma with dot decimal, (c) single
	// decimal separator with 1-2 fraction digits, (d) bare integer.
	dotThousandsRe   = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+,\d{1,2}$`)
	commaThousandsRe = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+\.\d{1,2}$`)
	simpleDecimalRe  = regexp.MustCompile(`^\d+[.,]\d{1,2}$`)
	bareIntegerRe    = regexp.MustCompile(`^\d+$`)

	nonNumericRe = regexp.MustCompile(`[^0-9.,]`)
)

// CurrencyHint tells the parser how to resolve the currency of a match.
// Symbol/Currency come from the domain's extraction rule; Fallback is the
// source's expected currency, assumed when the raw text carries no symbol.
type CurrencyHint struct {
	Symbol   string
	Currency string
	Fallback string
}

// ParsePrice converts raw extracted text into a typed price, or nil when no
// pattern matches. It is pure: the same input always yields the same result.
func ParsePrice(text string, hint CurrencyHint) *domain.Price {
	cleaned := strings.Trim(nonNumericRe.ReplaceAllString(text, ""), ".,")
	if cleaned == "" {
		return nil
	}

	var amount float64
	switch {
	case dotThousandsRe.MatchString(cleaned):
		normalized := strings.ReplaceAll(cleaned, ".", "")
		normalized = strings.ReplaceAll(normalized, ",", ".")
		amount, _ = strconv.ParseFloat(normalized, 64)
	case commaThousandsRe.MatchString(cleaned):
		amount, _ = strconv.ParseFloat(strings.ReplaceAll(cleaned, ",", ""), 64)
	case simpleDecimalRe.MatchString(cleaned):
		amount, _ = strconv.ParseFloat(strings.ReplaceAll(cleaned, ",", "."), 64)
	case bareIntegerRe.MatchString(cleaned):
		amount, _ = strconv.ParseFloat(cleaned, 64)
	default:
		return nil
	}

	price := &domain.Price{Amount: amount, Currency: hint.Currency}
	if hint.Symbol == "" || !strings.Contains(text, hint.Symbol) {
		// Currency-agnostic numeric match: assume the source's expected
		// currency and record the assumption for auditability.
		price.Currency = hint.Fallback
		if price.Currency == "" {
			price.Currency = hint.Currency
		}
		price.CurrencyAssumed = true
	}
	return price
}

// Availability keyword sets. Negative terms run first so that an
// "out of stock" banner is never misread by its "stock" substring; scarcity
// runs before positive so "only 2 left in stock" classifies as low-stock.
var (
	negativeTerms = []string{
		"out of stock", "sold out", "unavailable", "not available",
		"discontinued", "ausverkauft", "nicht verfügbar", "épuisé",
	}
	scarcityTerms = []string{
		"low stock", "few left", "left in stock", "only", "last items",
		"almost gone", "nur noch",
	}
	positiveTerms = []string{
		"in stock", "available", "ready to ship", "ships", "add to cart",
		"auf lager", "lieferbar", "disponible", "en stock",
	}
)

// ClassifyAvailability maps free vendor text to an availability state using
// a fixed, case-insensitive keyword set. No match means unknown; stock is
// never inferred as in-stock by default.
func ClassifyAvailability(text string) domain.AvailabilityState {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return domain.AvailabilityUnknown
	}
	for _, term := range negativeTerms {
		if strings.Contains(t, term) {
			return domain.AvailabilityOutOfStock
		}
	}
	for _, term := range scarcityTerms {
		if strings.Contains(t, term) {
			return domain.AvailabilityLowStock
		}
	}
	for _, term := range positiveTerms {
		if strings.Contains(t, term) {
			return domain.AvailabilityInStock
		}
	}
	return domain.AvailabilityUnknown
}

// BuildQuote derives a PriceQuote from a parsed price and its source.
// Deltas are informational (observed minus reference), rounded to cents.
func BuildQuote(source domain.ProductSource, price domain.Price, availability domain.AvailabilityState, observedAt time.Time) *domain.PriceQuote {
	delta := roundCents(price.Amount - source.ReferencePrice)
	var deltaPct float64
	if source.ReferencePrice != 0 {
		deltaPct = roundCents(delta / source.ReferencePrice * 100)
	}
	return &domain.PriceQuote{
		ProductKey:        source.ProductKey,
		Price:             roundCents(price.Amount),
		Currency:          price.Currency,
		CurrencyAssumed:   price.CurrencyAssumed,
		Availability:      availability,
		SourceURL:         source.SourceURL,
		ObservedAt:        observedAt,
		PriceDelta:        delta,
		PriceDeltaPercent: deltaPct,
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
