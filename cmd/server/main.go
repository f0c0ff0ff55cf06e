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

	"github.com/evyataryagoni/cityapp/internal/config"
	"github.com/evyataryagoni/cityapp/internal/handler"
	"github.com/evyataryagoni/cityapp/internal/limiter"
	"github.com/evyataryagoni/cityapp/internal/logger"
	"github.com/evyataryagoni/cityapp/internal/metrics"
	"github.com/evyataryagoni/cityapp/internal/router"
	"github.com/evyataryagoni/cityapp/internal/service"
	"github.com/evyataryagoni/cityapp/internal/store"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load configuration
	appConfig := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize components
	appLogger := setupLogger(appConfig)
	metricsCollector := setupMetrics(appLogger)

	storeOpts := store.Options{
		IdleTimeout: appConfig.SubscriptionIdle,
		Metrics:     metricsCollector,
		Logger:      appLogger,
	}

	cityStore := setupCityStore(ctx, appConfig, storeOpts, appLogger)
	defer cityStore.Close()

	favoriteStore := setupFavoriteStore(appConfig, storeOpts, appLogger)
	defer favoriteStore.Close()

	writeLimiter := setupWriteLimiter(appConfig, appLogger)
	if writeLimiter != nil {
		defer writeLimiter.Close()
	}

	// Build application layers
	coordinator := service.NewCoordinator(cityStore, favoriteStore, storeOpts)
	if err := coordinator.Start(ctx); err != nil {
		appLogger.Fatal().Err(err).Msg("Failed to start coordinator")
	}
	defer coordinator.Close()

	cityHandler := handler.NewCityHandler(coordinator)
	appRouter := router.SetupRouter(cityHandler, writeLimiter, metricsCollector, prometheus.DefaultGatherer, appLogger)

	// Start server
	if err := startServer(ctx, appConfig, appRouter, appLogger); err != nil {
		appLogger.Error().Err(err).Msg("Server failed")
	}
}

// setupLogger initializes the structured logger
func setupLogger(appConfig *config.Config) *logger.Logger {
	appLogger := logger.New(logger.Config{
		Level:      appConfig.LogLevel,
		Pretty:     appConfig.LogPretty,
		OutputFile: appConfig.LogFile,
	})

	appLogger.Info().Msg("Starting city list server...")
	appLogger.Info().
		Str("listen_addr", appConfig.ListenAddr()).
		Str("city_store_type", appConfig.CityStoreType).
		Str("favorite_store_type", appConfig.FavoriteStoreType).
		Dur("subscription_idle", appConfig.SubscriptionIdle).
		Float64("write_rate_limit", appConfig.WriteRateLimit).
		Msg("Configuration loaded")

	return appLogger
}

// setupMetrics initializes the Prometheus metrics collector
func setupMetrics(log *logger.Logger) *metrics.Metrics {
	metricsCollector := metrics.New(prometheus.DefaultRegisterer)
	log.Info().Msg("Metrics initialized")
	return metricsCollector
}

// setupCityStore opens the City Store and seeds it when empty
func setupCityStore(ctx context.Context, appConfig *config.Config, opts store.Options, log *logger.Logger) *store.SQLCityStore {
	cityStore, err := store.NewCityStore(store.CityStoreConfig{
		Type:       appConfig.CityStoreType,
		SQLitePath: appConfig.SQLitePath,
		MySQLDSN:   appConfig.MySQLDSN,
	}, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize city store")
	}
	fmt.Printf("✅ City store initialized (type: %s)\n", appConfig.CityStoreType)

	seedIfEmpty(ctx, cityStore, appConfig.SeedPath, log)
	return cityStore
}

// seedIfEmpty loads the sample CSV into an empty City Store
func seedIfEmpty(ctx context.Context, cityStore *store.SQLCityStore, csvPath string, log *logger.Logger) {
	if _, err := os.Stat(csvPath); err != nil {
		log.Debug().Str("seed_path", csvPath).Msg("No seed file, skipping")
		return
	}

	n, err := store.SeedIfEmpty(ctx, cityStore, csvPath)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load sample data")
		return
	}
	if n > 0 {
		fmt.Printf("📦 City store was empty, loaded %d cities from %s\n", n, csvPath)
	}
}

// setupFavoriteStore initializes the Favorite Store based on configuration
func setupFavoriteStore(appConfig *config.Config, opts store.Options, log *logger.Logger) store.FavoriteStore {
	favoriteStore, err := store.NewFavoriteStore(store.FavoriteStoreConfig{
		Type:          appConfig.FavoriteStoreType,
		Key:           appConfig.FavoritesKey,
		RedisAddr:     appConfig.RedisAddr,
		RedisPassword: appConfig.RedisPassword,
		RedisDB:       appConfig.RedisDB,
	}, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize favorite store")
	}
	fmt.Printf("✅ Favorite store initialized (type: %s)\n", appConfig.FavoriteStoreType)
	return favoriteStore
}

// setupWriteLimiter returns nil when throttling is disabled
func setupWriteLimiter(appConfig *config.Config, log *logger.Logger) limiter.Limiter {
	if appConfig.WriteRateLimit <= 0 {
		log.Info().Msg("Write throttling disabled")
		return nil
	}
	fmt.Printf("✅ Write limiter initialized (%.2f writes/s per client)\n", appConfig.WriteRateLimit)
	return limiter.NewMemoryLimiter(appConfig.WriteRateLimit)
}

// startServer serves until ctx is cancelled, then shuts down gracefully
func startServer(ctx context.Context, appConfig *config.Config, appRouter http.Handler, log *logger.Logger) error {
	baseURL := "http://" + appConfig.ListenAddr()
	srv := &http.Server{
		Addr:              appConfig.ListenAddr(),
		Handler:           appRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().
		Str("api_endpoint", baseURL+"/v1/cities").
		Str("health_check", baseURL+"/health").
		Str("metrics", baseURL+"/metrics").
		Msg("Server is running")

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
