package rules

import (
	"testing"

	"github.com/partpicker/pricesync/internal/domain"
)

var testRule = domain.ExtractionRule{
	PriceSelectors: []string{
		".special-price .amount",
		".regular-price .amount",
		`meta[property="product:price:amount"]`,
	},
	AvailabilitySelectors: []string{".stock-banner", ".availability"},
	FallbackPricePattern:  `(\d+[.,]\d{2})\s*€`,
	CurrencySymbol:        "€",
	Currency:              "EUR",
}

func TestExtractor_SelectorOrder(t *testing.T) {
	html := `<html><body>
		<div class="regular-price"><span class="amount">9,99 €</span></div>
		<div class="special-price"><span class="amount">7,49 €</span></div>
	</body></html>`

	ex, err := NewExtractor().Extract(html, testRule)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	// Candidates must come back in selector order, not document order.
	if len(ex.PriceCandidates) != 2 {
		t.Fatalf("got %d candidates, want 2: %v", len(ex.PriceCandidates), ex.PriceCandidates)
	}
	if ex.PriceCandidates[0] != "7,49 €" {
		t.Errorf("first candidate = %q, want special price", ex.PriceCandidates[0])
	}
}

func TestExtractor_MetaContent(t *testing.T) {
	html := `<html><head>
		<meta property="product:price:amount" content="6.20">
	</head><body></body></html>`

	ex, err := NewExtractor().Extract(html, testRule)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(ex.PriceCandidates) != 1 || ex.PriceCandidates[0] != "6.20" {
		t.Errorf("candidates = %v, want [6.20] from meta content", ex.PriceCandidates)
	}
}

func TestExtractor_AvailabilityFirstMatchWins(t *testing.T) {
	html := `<html><body>
		<div class="availability">In stock</div>
		<div class="stock-banner">Out of stock</div>
	</body></html>`

	ex, err := NewExtractor().Extract(html, testRule)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if ex.AvailabilityText != "Out of stock" {
		t.Errorf("AvailabilityText = %q, want the first selector's match", ex.AvailabilityText)
	}
}

func TestExtractor_FallbackIgnoresScripts(t *testing.T) {
	html := `<html><body>
		<script>var price = "99,99 €";</script>
		<div>Today only 5,25 € with free shipping</div>
	</body></html>`

	ex, err := NewExtractor().Extract(html, testRule)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if ex.FallbackPrice != "5,25" {
		t.Errorf("FallbackPrice = %q, want 5,25 (script content excluded)", ex.FallbackPrice)
	}
}

func TestExtractor_EmptyPage(t *testing.T) {
	ex, err := NewExtractor().Extract("<html><body></body></html>", testRule)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(ex.PriceCandidates) != 0 || ex.FallbackPrice != "" || ex.AvailabilityText != "" {
		t.Errorf("extraction from empty page = %+v, want empty", ex)
	}
}

func TestExtractor_WhitespaceCollapsed(t *testing.T) {
	html := `<html><body>
		<div class="special-price"><span class="amount">
			7,49
			€
		</span></div>
	</body></html>`

	ex, err := NewExtractor().Extract(html, testRule)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(ex.PriceCandidates) != 1 || ex.PriceCandidates[0] != "7,49 €" {
		t.Errorf("candidates = %v, want [7,49 €]", ex.PriceCandidates)
	}
}
