package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/location-gateway/internal/cache"
	"github.com/kjstillabower/location-gateway/internal/config"
	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/service"
	"github.com/kjstillabower/location-gateway/internal/store"
)

const storePingTimeout = 5 * time.Second

// backingStore is the location repository plus the lifecycle hooks main needs.
type backingStore interface {
	service.LocationRepository
	Ping(ctx context.Context) error
	Close() error
}

// hotCache is a location cache that can be checked and closed.
type hotCache interface {
	cache.Cache
	Ping(ctx context.Context) error
	Close() error
}

// repositories holds the location store and one record repository per category.
type repositories struct {
	locations backingStore
	weather   service.Repository[models.Weather]
	events    service.Repository[models.Event]
	listings  service.Repository[models.Listing]
	media     service.Repository[models.Media]
}

// openStore builds the repositories for cfg.StoreBackend. An unreachable
// Postgres at startup is logged, not fatal; health reports it until it recovers.
func openStore(cfg *config.Config, logger *zap.Logger) (*repositories, error) {
	if cfg.StoreBackend != "postgres" {
		logger.Warn("store backend: memory; records are lost on restart")
		return &repositories{
			locations: store.NewMemoryLocations(),
			weather:   store.NewMemoryRecords[models.Weather](),
			events:    store.NewMemoryRecords[models.Event](),
			listings:  store.NewMemoryRecords[models.Listing](),
			media:     store.NewMemoryRecords[models.Media](),
		}, nil
	}

	pg, err := store.Open(store.Options{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), storePingTimeout)
	defer cancel()
	if err := pg.Ping(ctx); err != nil {
		logger.Warn("postgres not reachable at startup", zap.Error(err))
	}
	logger.Info("store backend: postgres")
	return &repositories{
		locations: pg,
		weather:   store.NewRecords(pg, store.WeatherTable),
		events:    store.NewRecords(pg, store.EventTable),
		listings:  store.NewRecords(pg, store.ListingTable),
		media:     store.NewRecords(pg, store.MediaTable),
	}, nil
}

// openCache builds the location hot cache for cfg.CacheBackend. The second
// result is non-nil only for networked backends that need Ping and Close.
func openCache(cfg *config.Config, logger *zap.Logger) (cache.Cache, hotCache) {
	switch cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		return mc, mc
	case "redis":
		rc := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		logger.Info("cache backend: redis", zap.String("addr", cfg.RedisAddr))
		return rc, rc
	case "in_memory":
		logger.Info("cache backend: in_memory")
		return cache.NewInMemoryCache(), nil
	default:
		logger.Info("cache backend: none")
		return nil, nil
	}
}
