package usecase

import (
	"testing"
	"time"

	"github.com/partpicker/pricesync/internal/domain"
)

var euroHint = CurrencyHint{Symbol: "€", Currency: "EUR", Fallback: "EUR"}

func TestParsePrice_PatternPriority(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		// Thousands-dot + comma-decimal must win over any other reading.
		{name: "german thousands", text: "1.234,56", want: 1234.56},
		{name: "english thousands", text: "1,234.56", want: 1234.56},
		{name: "comma decimal", text: "6,20", want: 6.20},
		{name: "dot decimal", text: "6.20", want: 6.20},
		{name: "single fraction digit", text: "6,2", want: 6.2},
		{name: "bare integer", text: "42", want: 42},
		{name: "large german", text: "12.345.678,90", want: 12345678.90},
		{name: "symbol and spaces", text: "  1.234,56 €  ", want: 1234.56},
		{name: "embedded in label", text: "Special Price: 6,20 €", want: 6.20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePrice(tt.text, euroHint)
			if got == nil {
				t.Fatalf("ParsePrice(%q) = nil, want %v", tt.text, tt.want)
			}
			if got.Amount != tt.want {
				t.Errorf("ParsePrice(%q) = %v, want %v", tt.text, got.Amount, tt.want)
			}
		})
	}
}

func TestParsePrice_NoMatch(t *testing.T) {
	tests := []string{"", "free", "€", "1,234", "6,203", "1.2.3"}
	for _, text := range tests {
		if got := ParsePrice(text, euroHint); got != nil {
			t.Errorf("ParsePrice(%q) = %+v, want nil", text, got)
		}
	}
}

func TestParsePrice_Idempotent(t *testing.T) {
	for _, text := range []string{"1.234,56", "1,234.56", "6,20 €", "42"} {
		first := ParsePrice(text, euroHint)
		second := ParsePrice(text, euroHint)
		if first == nil || second == nil {
			t.Fatalf("ParsePrice(%q) returned nil", text)
		}
		if *first != *second {
			t.Errorf("ParsePrice(%q) not idempotent: %+v != %+v", text, first, second)
		}
	}
}

func TestParsePrice_CurrencyResolution(t *testing.T) {
	// Symbol present: the rule's currency, no assumption recorded.
	withSymbol := ParsePrice("6,20 €", euroHint)
	if withSymbol == nil || withSymbol.Currency != "EUR" || withSymbol.CurrencyAssumed {
		t.Errorf("with symbol: got %+v, want EUR unassumed", withSymbol)
	}

	// Currency-agnostic match: the source's expected currency, flagged.
	bare := ParsePrice("6,20", CurrencyHint{Symbol: "€", Currency: "EUR", Fallback: "USD"})
	if bare == nil || bare.Currency != "USD" || !bare.CurrencyAssumed {
		t.Errorf("bare number: got %+v, want assumed USD", bare)
	}
}

func TestClassifyAvailability(t *testing.T) {
	tests := []struct {
		text string
		want domain.AvailabilityState
	}{
		{"In Stock", domain.AvailabilityInStock},
		{"Available for immediate dispatch", domain.AvailabilityInStock},
		{"Auf Lager", domain.AvailabilityInStock},
		{"Out of stock", domain.AvailabilityOutOfStock},
		{"SOLD OUT", domain.AvailabilityOutOfStock},
		{"Currently unavailable", domain.AvailabilityOutOfStock},
		{"Only 2 left in stock", domain.AvailabilityLowStock},
		{"Low stock", domain.AvailabilityLowStock},
		{"", domain.AvailabilityUnknown},
		{"Delivery information", domain.AvailabilityUnknown},
	}

	for _, tt := range tests {
		if got := ClassifyAvailability(tt.text); got != tt.want {
			t.Errorf("ClassifyAvailability(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestBuildQuote_Deltas(t *testing.T) {
	source := domain.ProductSource{
		ProductKey:        "MG996R",
		ReferencePrice:    6.2,
		ReferenceCurrency: "EUR",
		SourceURL:         "https://electropeak.com/mg996r-servo",
	}
	observed := time.Now()

	quote := BuildQuote(source, domain.Price{Amount: 6.20, Currency: "EUR"}, domain.AvailabilityInStock, observed)

	if quote.Price != 6.20 {
		t.Errorf("Price = %v, want 6.20", quote.Price)
	}
	if quote.Currency != "EUR" {
		t.Errorf("Currency = %q, want EUR", quote.Currency)
	}
	if quote.PriceDelta != 0.00 {
		t.Errorf("PriceDelta = %v, want 0.00", quote.PriceDelta)
	}
	if quote.PriceDeltaPercent != 0.00 {
		t.Errorf("PriceDeltaPercent = %v, want 0.00", quote.PriceDeltaPercent)
	}
	if !quote.ObservedAt.Equal(observed) {
		t.Errorf("ObservedAt = %v, want %v", quote.ObservedAt, observed)
	}

	higher := BuildQuote(source, domain.Price{Amount: 7.75, Currency: "EUR"}, domain.AvailabilityInStock, observed)
	if higher.PriceDelta != 1.55 {
		t.Errorf("PriceDelta = %v, want 1.55", higher.PriceDelta)
	}
	if higher.PriceDeltaPercent != 25.0 {
		t.Errorf("PriceDeltaPercent = %v, want 25.0", higher.PriceDeltaPercent)
	}
}
