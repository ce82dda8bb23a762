package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/location-gateway/internal/config"
	httphandler "github.com/kjstillabower/location-gateway/internal/http"
	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/observability"
	"github.com/kjstillabower/location-gateway/internal/provider"
	"github.com/kjstillabower/location-gateway/internal/service"
	"github.com/kjstillabower/location-gateway/internal/warming"
)

const (
	inFlightCheckInterval = 100 * time.Millisecond
	warmingRunTimeout     = 30 * time.Second
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = observability.FlushLogs(logger) }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	newFetcher := func(name string) *provider.Fetcher {
		return provider.NewFetcher(provider.Options{
			Name:                    name,
			Timeout:                 cfg.ProviderTimeout,
			RetryAttempts:           cfg.RetryAttempts,
			RetryBaseDelay:          cfg.RetryBaseDelay,
			RetryMaxDelay:           cfg.RetryMaxDelay,
			BreakerFailureThreshold: cfg.BreakerFailureThreshold,
			BreakerTimeout:          cfg.BreakerTimeout,
		})
	}
	geocoder, err := provider.NewGeocodeClient(newFetcher("geocode"), cfg.GeocodeURL, cfg.GeocodeAPIKey)
	if err != nil {
		logger.Fatal("geocode client", zap.Error(err))
	}
	weatherClient, err := provider.NewWeatherClient(newFetcher("weather"), cfg.WeatherURL, cfg.WeatherAPIKey, cfg.MaxRecords)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	eventsClient, err := provider.NewEventsClient(newFetcher("events"), cfg.EventsURL, cfg.EventsAPIKey, cfg.MaxRecords)
	if err != nil {
		logger.Fatal("events client", zap.Error(err))
	}
	listingsClient, err := provider.NewListingsClient(newFetcher("listings"), cfg.ListingsURL, cfg.ListingsAPIKey, cfg.MaxRecords)
	if err != nil {
		logger.Fatal("listings client", zap.Error(err))
	}
	mediaClient, err := provider.NewMediaClient(newFetcher("media"), cfg.MediaURL, cfg.MediaAPIKey, cfg.MaxRecords)
	if err != nil {
		logger.Fatal("media client", zap.Error(err))
	}

	repos, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	locations := repos.locations
	cacheSvc, cacheCloser := openCache(cfg, logger)

	gateway := service.NewGateway(service.NewLocationResolver(locations, geocoder, cacheSvc, cfg.CacheTTL))
	service.Register(gateway, service.NewCategoryResolver(models.CategoryWeather, repos.weather, weatherClient, cfg.TTL(models.CategoryWeather)))
	service.Register(gateway, service.NewCategoryResolver(models.CategoryEvents, repos.events, eventsClient, cfg.TTL(models.CategoryEvents)))
	service.Register(gateway, service.NewCategoryResolver(models.CategoryListings, repos.listings, listingsClient, cfg.TTL(models.CategoryListings)))
	service.Register(gateway, service.NewCategoryResolver(models.CategoryMedia, repos.media, mediaClient, cfg.TTL(models.CategoryMedia)))

	healthConfig := &httphandler.HealthConfig{
		StorePing:    locations.Ping,
		ErrorWindow:  cfg.HealthWindow,
		ErrorRatePct: cfg.HealthErrorRatePct,
	}
	if cacheCloser != nil {
		healthConfig.CachePing = cacheCloser.Ping
	}
	handler := httphandler.NewHandler(gateway, healthConfig, logger, 0, 0)

	observability.RegisterRateLimitGauges(cfg.HealthWindow)
	if len(cfg.TrackedQueries) > 0 {
		observability.SetTrackedQueries(cfg.TrackedQueries)
	}

	scheduler := warming.NewScheduler(warming.NewWarmer(gateway, logger), cfg.TrackedQueries, cfg.WarmingInterval, warmingRunTimeout)
	if err := scheduler.Start(); err != nil {
		logger.Error("warming scheduler", zap.Error(err))
	}

	router := httphandler.NewRouter(handler, httphandler.RouterOptions{
		Categories:     gateway.Categories(),
		Limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		RequestTimeout: cfg.RequestTimeout,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	handler.SetShuttingDown(true)
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if cacheCloser != nil {
		if err := cacheCloser.Close(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	if err := locations.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
