package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/partpicker/pricesync/config"
	"github.com/partpicker/pricesync/internal/domain"
	"github.com/partpicker/pricesync/internal/infrastructure/cache"
	"github.com/partpicker/pricesync/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

type stubCatalog struct {
	sources []domain.ProductSource
}

func (c *stubCatalog) ListTrackedProducts(ctx context.Context) ([]domain.ProductSource, error) {
	return c.sources, nil
}

// stubScraper returns a canned outcome per product key. Anything not
// scripted fails with a network error.
type stubScraper struct {
	mu       sync.Mutex
	outcomes map[string]domain.ScrapeOutcome
	calls    int
}

func (s *stubScraper) Do(ctx context.Context, source domain.ProductSource) domain.ScrapeOutcome {
	s.mu.Lock()
	s.calls++
	out, ok := s.outcomes[source.ProductKey]
	s.mu.Unlock()
	if ok {
		return out
	}
	return domain.ScrapeOutcome{
		ProductKey:     source.ProductKey,
		ErrorKind:      "network",
		ErrorDetail:    "connection reset",
		AttemptsMade:   1,
		LastObservedAt: time.Now(),
	}
}

func quoteFor(key string, price float64) domain.ScrapeOutcome {
	return domain.ScrapeOutcome{
		ProductKey: key,
		Quote: &domain.PriceQuote{
			ProductKey:   key,
			Price:        price,
			Currency:     "EUR",
			Availability: domain.AvailabilityInStock,
			ObservedAt:   time.Now(),
		},
		AttemptsMade:   1,
		LastObservedAt: time.Now(),
	}
}

func setupTestRouter(scraper *stubScraper) *gin.Engine {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		RateLimit: config.RateLimitConfig{PerIP: 6000, VendorPerSec: 1000},
	}

	catalog := &stubCatalog{sources: []domain.ProductSource{
		{ProductKey: "MG996R", ReferencePrice: 6.2, ReferenceCurrency: "EUR", SourceURL: "https://electropeak.com/mg996r", Domain: "electropeak.com"},
		{ProductKey: "SG90", ReferencePrice: 2.5, ReferenceCurrency: "EUR", SourceURL: "https://berrybase.de/sg90", Domain: "berrybase.de"},
	}}

	batch := usecase.NewScheduler(scraper, usecase.SchedulerConfig{
		ConcurrencyLimit: 2,
		BatchPause:       time.Millisecond,
		VendorPerSec:     1000,
	})
	prices := usecase.NewPriceService(catalog, cache.New(30*time.Minute), scraper, batch)

	return SetupRouter(cfg, NewHandler(prices))
}

func defaultScraper() *stubScraper {
	return &stubScraper{outcomes: map[string]domain.ScrapeOutcome{
		"MG996R": quoteFor("MG996R", 6.2),
		"SG90":   quoteFor("SG90", 2.79),
	}}
}

func doRequest(t *testing.T, router *gin.Engine, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheckEndpoint(t *testing.T) {
	router := setupTestRouter(defaultScraper())

	w := doRequest(t, router, "GET", "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", response["status"])
	}
	if response["service"] != "pricesync" {
		t.Errorf("service = %v, want pricesync", response["service"])
	}
}

func TestGetPricesEndpoint(t *testing.T) {
	t.Run("whole catalog returns summary and sorted data", func(t *testing.T) {
		router := setupTestRouter(defaultScraper())

		w := doRequest(t, router, "GET", "/api/v1/prices")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200, body %s", w.Code, w.Body.String())
		}

		var report usecase.PriceReport
		if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if report.Summary.Total != 2 || report.Summary.Successful != 2 {
			t.Errorf("summary = %+v, want total 2 successful 2", report.Summary)
		}
		if len(report.Data) != 2 || report.Data[0].ProductKey != "MG996R" || report.Data[1].ProductKey != "SG90" {
			t.Errorf("data not sorted by key: %+v", report.Data)
		}
	})

	t.Run("keys filter selects a subset", func(t *testing.T) {
		router := setupTestRouter(defaultScraper())

		w := doRequest(t, router, "GET", "/api/v1/prices?keys=SG90")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", w.Code)
		}

		var report usecase.PriceReport
		if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
			t.Fatal(err)
		}
		if report.Summary.Total != 1 || len(report.Data) != 1 || report.Data[0].ProductKey != "SG90" {
			t.Errorf("report = %+v, want only SG90", report)
		}
	})

	t.Run("unknown key is a per-item failure not a transport error", func(t *testing.T) {
		router := setupTestRouter(defaultScraper())

		w := doRequest(t, router, "GET", "/api/v1/prices?keys=NOPE")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", w.Code)
		}

		var report usecase.PriceReport
		if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
			t.Fatal(err)
		}
		if report.Summary.Failed != 1 || report.Data[0].ErrorKind != "unknown-product" {
			t.Errorf("report = %+v, want one unknown-product failure", report)
		}
	})

	t.Run("second request is served from cache", func(t *testing.T) {
		scraper := defaultScraper()
		router := setupTestRouter(scraper)

		doRequest(t, router, "GET", "/api/v1/prices")
		callsAfterFirst := scraper.calls

		w := doRequest(t, router, "GET", "/api/v1/prices")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200", w.Code)
		}
		if scraper.calls != callsAfterFirst {
			t.Errorf("scraper calls = %d after cached request, want %d", scraper.calls, callsAfterFirst)
		}

		var report usecase.PriceReport
		if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
			t.Fatal(err)
		}
		if report.Summary.Cached != 2 || report.Summary.Scraped != 0 {
			t.Errorf("summary = %+v, want cached 2 scraped 0", report.Summary)
		}
	})

	t.Run("refresh=true bypasses the cache", func(t *testing.T) {
		scraper := defaultScraper()
		router := setupTestRouter(scraper)

		doRequest(t, router, "GET", "/api/v1/prices")
		callsAfterFirst := scraper.calls

		doRequest(t, router, "GET", "/api/v1/prices?refresh=true")
		if scraper.calls != callsAfterFirst+2 {
			t.Errorf("scraper calls = %d, want %d", scraper.calls, callsAfterFirst+2)
		}
	})

	t.Run("malformed refresh parameter is a 400", func(t *testing.T) {
		router := setupTestRouter(defaultScraper())

		w := doRequest(t, router, "GET", "/api/v1/prices?refresh=maybe")
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want 400", w.Code)
		}
	})
}

func TestGetPriceEndpoint(t *testing.T) {
	t.Run("known key returns the quote", func(t *testing.T) {
		router := setupTestRouter(defaultScraper())

		w := doRequest(t, router, "GET", "/api/v1/prices/MG996R")
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, want 200, body %s", w.Code, w.Body.String())
		}

		var quote domain.PriceQuote
		if err := json.Unmarshal(w.Body.Bytes(), &quote); err != nil {
			t.Fatal(err)
		}
		if quote.ProductKey != "MG996R" || quote.Price != 6.2 || quote.Currency != "EUR" {
			t.Errorf("quote = %+v", quote)
		}
	})

	t.Run("unknown key is a 404", func(t *testing.T) {
		router := setupTestRouter(defaultScraper())

		w := doRequest(t, router, "GET", "/api/v1/prices/NOPE")
		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want 404, body %s", w.Code, w.Body.String())
		}
	})

	t.Run("scrape failure with no prior quote is a 502", func(t *testing.T) {
		scraper := &stubScraper{outcomes: map[string]domain.ScrapeOutcome{}}
		router := setupTestRouter(scraper)

		w := doRequest(t, router, "GET", "/api/v1/prices/MG996R")
		if w.Code != http.StatusBadGateway {
			t.Errorf("Status = %d, want 502, body %s", w.Code, w.Body.String())
		}
	})
}

func TestRefreshEndpoint(t *testing.T) {
	scraper := defaultScraper()
	router := setupTestRouter(scraper)

	doRequest(t, router, "GET", "/api/v1/prices")
	callsAfterFirst := scraper.calls

	w := doRequest(t, router, "POST", "/api/v1/prices/refresh")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	if scraper.calls != callsAfterFirst+2 {
		t.Errorf("scraper calls = %d, want %d", scraper.calls, callsAfterFirst+2)
	}

	var report usecase.PriceReport
	if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Summary.Scraped != 2 || report.Summary.Cached != 0 {
		t.Errorf("summary = %+v, want scraped 2 cached 0", report.Summary)
	}
}

func TestCacheEndpoints(t *testing.T) {
	scraper := defaultScraper()
	router := setupTestRouter(scraper)

	// Empty cache to start with.
	w := doRequest(t, router, "GET", "/api/v1/cache/status")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	var status struct {
		Entries []json.RawMessage `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if len(status.Entries) != 0 {
		t.Errorf("entries = %d, want 0 before any scrape", len(status.Entries))
	}

	// Populate, then check status and invalidation.
	doRequest(t, router, "GET", "/api/v1/prices")

	w = doRequest(t, router, "GET", "/api/v1/cache/status")
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if len(status.Entries) != 2 {
		t.Errorf("entries = %d, want 2 after a full scrape", len(status.Entries))
	}

	w = doRequest(t, router, "DELETE", "/api/v1/cache")
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d, want 200", w.Code)
	}

	callsBefore := scraper.calls
	doRequest(t, router, "GET", "/api/v1/prices")
	if scraper.calls != callsBefore+2 {
		t.Errorf("scraper calls = %d after invalidation, want %d", scraper.calls, callsBefore+2)
	}
}
