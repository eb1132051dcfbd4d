package http

import (
	"github.com/gin-gonic/gin"

	"github.com/partpicker/pricesync/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(RequestLogger())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	router.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		prices := v1.Group("/prices")
		{
			prices.GET("", handler.GetPrices)
			prices.POST("/refresh", handler.RefreshAll)
			prices.GET("/:key", handler.GetPrice)
		}

		cache := v1.Group("/cache")
		{
			cache.GET("/status", handler.CacheStatus)
			cache.DELETE("", handler.InvalidateCache)
		}
	}

	return router
}
