package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/partpicker/pricesync/internal/domain"
	"github.com/partpicker/pricesync/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	prices *usecase.PriceService
}

// NewHandler creates a new HTTP handler
func NewHandler(prices *usecase.PriceService) *Handler {
	return &Handler{prices: prices}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricesync",
		"version": "1.0.0",
	})
}

// GetPrices answers GET /prices. Partial scrape failure is not a transport
// error: the response is always 200 with per-item success flags.
func (h *Handler) GetPrices(c *gin.Context) {
	force, ok := boolQuery(c, "refresh")
	if !ok {
		return
	}

	var keys []string
	if raw := c.Query("keys"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}

	report, err := h.prices.GetPrices(c.Request.Context(), keys, force)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetPrice answers GET /prices/:key.
func (h *Handler) GetPrice(c *gin.Context) {
	force, ok := boolQuery(c, "refresh")
	if !ok {
		return
	}

	quote, err := h.prices.GetPrice(c.Request.Context(), c.Param("key"), force)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// RefreshAll answers POST /prices/refresh; always bypasses the cache.
func (h *Handler) RefreshAll(c *gin.Context) {
	report, err := h.prices.RefreshAll(c.Request.Context())
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CacheStatus answers GET /cache/status.
func (h *Handler) CacheStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"entries": h.prices.CacheStatus()})
}

// InvalidateCache answers DELETE /cache.
func (h *Handler) InvalidateCache(c *gin.Context) {
	h.prices.InvalidateAll()
	c.JSON(http.StatusOK, gin.H{"status": "cache cleared"})
}

// renderError maps domain errors onto HTTP statuses. Only validation and
// lookup errors get non-200 treatment; batch scrape failures are data.
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownProduct):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptyCatalog):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

// boolQuery parses an optional boolean query parameter, responding 400 on
// malformed input.
func boolQuery(c *gin.Context, name string) (value, ok bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " parameter: " + raw})
		return false, false
	}
	return v, true
}
