package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/partpicker/pricesync/config"
	httpDelivery "github.com/partpicker/pricesync/internal/delivery/http"
	"github.com/partpicker/pricesync/internal/domain"
	"github.com/partpicker/pricesync/internal/infrastructure/browser"
	"github.com/partpicker/pricesync/internal/infrastructure/cache"
	"github.com/partpicker/pricesync/internal/infrastructure/catalog"
	"github.com/partpicker/pricesync/internal/infrastructure/fetch"
	"github.com/partpicker/pricesync/internal/infrastructure/rules"
	"github.com/partpicker/pricesync/internal/usecase"
	"github.com/partpicker/pricesync/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Error(ctx, "fatal", zap.Error(err))
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger.Setup(cfg.Server.Environment)

	logger.Info(ctx, "starting pricesync",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.Duration("cacheTTL", cfg.Scraper.CacheTTL),
		zap.String("retrieverMode", cfg.Browser.Mode))

	// Page retriever: headless browser by default, plain HTTP for
	// deployments without a Chromium runtime.
	var retriever domain.PageRetriever
	if cfg.Browser.Mode == "browser" {
		br := browser.NewRetriever(browser.Options{
			Bin:          cfg.Browser.Bin,
			Headless:     cfg.Browser.Headless,
			FetchTimeout: cfg.Scraper.FetchTimeout,
		})
		if err := br.Open(); err != nil {
			return fmt.Errorf("opening browser: %w", err)
		}
		defer func() {
			if err := br.Close(); err != nil {
				logger.Warn(ctx, "closing browser", zap.Error(err))
			}
		}()
		retriever = br
	} else {
		retriever = fetch.NewRetriever(cfg.Scraper.FetchTimeout)
	}

	tracked, err := catalog.LoadFile(cfg.Catalog.File)
	if err != nil {
		return err
	}

	registry := rules.NewRegistry()
	identities := browser.NewIdentityPool(time.Now().UnixNano())

	retryer := usecase.NewRetryer(retriever, registry, rules.NewExtractor(), identities, usecase.RetryerConfig{
		MaxAttempts:     cfg.Scraper.MaxRetries,
		BaseBackoff:     cfg.Scraper.BaseBackoff,
		MinRequestDelay: cfg.Scraper.MinRequestDelay,
		MaxRequestDelay: cfg.Scraper.MaxRequestDelay,
	})
	scheduler := usecase.NewScheduler(retryer, usecase.SchedulerConfig{
		ConcurrencyLimit: cfg.Scraper.ConcurrencyLimit,
		BatchPause:       cfg.Scraper.BatchPause,
		VendorPerSec:     cfg.RateLimit.VendorPerSec,
	})

	quoteCache := cache.New(cfg.Scraper.CacheTTL)
	priceService := usecase.NewPriceService(tracked, quoteCache, retryer, scheduler)

	handler := httpDelivery.NewHandler(priceService)
	router := httpDelivery.SetupRouter(cfg, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown; the deferred browser close runs after the HTTP
	// server stops accepting work.
	logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
