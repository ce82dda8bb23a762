package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/location-gateway/internal/cache"
	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/observability"
)

// Geocoder turns search text into an unsaved Location.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (models.Location, error)
}

// LocationRepository persists locations keyed by normalized search text.
// UpsertLocation must not overwrite an existing row; inserted is false when
// the search text was already present.
type LocationRepository interface {
	SelectLocation(ctx context.Context, searchQuery string) (models.Location, bool, error)
	SelectLocationByID(ctx context.Context, id int64) (models.Location, bool, error)
	UpsertLocation(ctx context.Context, loc models.Location) (id int64, inserted bool, err error)
}

// LocationResolver maps search text to a stored Location. Locations never
// expire: once stored, a search text always resolves to the same row.
type LocationResolver struct {
	repo     LocationRepository
	geocoder Geocoder
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewLocationResolver wires a resolver. hot may be nil to disable the hot cache.
func NewLocationResolver(repo LocationRepository, geocoder Geocoder, hot cache.Cache, cacheTTL time.Duration) *LocationResolver {
	return &LocationResolver{repo: repo, geocoder: geocoder, cache: hot, cacheTTL: cacheTTL}
}

// NormalizeQuery lower-cases search text, trims it and collapses inner
// whitespace so equivalent inputs share one stored row.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Resolve returns the stored Location for query, geocoding and storing it on
// first sight. Concurrent first lookups of the same text converge on one row.
func (r *LocationResolver) Resolve(ctx context.Context, query string) (models.Location, error) {
	key := NormalizeQuery(query)
	if key == "" {
		return models.Location{}, ErrEmptyQuery
	}
	logger := observability.LoggerFromContext(ctx)

	if loc, ok := r.cacheGet(ctx, key); ok {
		observability.LocationLookupsTotal.WithLabelValues("cache").Inc()
		return loc, nil
	}

	loc, found, err := r.repo.SelectLocation(ctx, key)
	if err != nil {
		return models.Location{}, &StoreError{Op: "select_location", Err: err}
	}
	if found {
		observability.LocationLookupsTotal.WithLabelValues("store").Inc()
		r.cacheSet(ctx, key, loc)
		return loc, nil
	}

	geo, err := r.geocoder.Geocode(ctx, key)
	if err != nil {
		return models.Location{}, fmt.Errorf("geocode %q: %w", key, err)
	}
	observability.LocationLookupsTotal.WithLabelValues("geocode").Inc()
	geo.SearchQuery = key

	id, inserted, err := r.repo.UpsertLocation(ctx, geo)
	if err != nil {
		return models.Location{}, &StoreError{Op: "upsert_location", Err: err}
	}
	if inserted {
		geo.ID = id
		logger.Info("location stored", zap.String("query", key), zap.Int64("location_id", id))
		r.cacheSet(ctx, key, geo)
		return geo, nil
	}

	// Lost the insert race; the winner's row is authoritative.
	stored, found, err := r.repo.SelectLocation(ctx, key)
	if err != nil {
		return models.Location{}, &StoreError{Op: "select_location", Err: err}
	}
	if !found {
		return models.Location{}, &StoreError{Op: "select_location", Err: fmt.Errorf("location %q missing after conflicting insert", key)}
	}
	logger.Debug("location insert lost race", zap.String("query", key), zap.Int64("location_id", stored.ID))
	r.cacheSet(ctx, key, stored)
	return stored, nil
}

// ByID returns the stored Location with the given id, or ErrUnknownLocation.
func (r *LocationResolver) ByID(ctx context.Context, id int64) (models.Location, error) {
	loc, found, err := r.repo.SelectLocationByID(ctx, id)
	if err != nil {
		return models.Location{}, &StoreError{Op: "select_location", Err: err}
	}
	if !found {
		return models.Location{}, fmt.Errorf("%w: %d", ErrUnknownLocation, id)
	}
	return loc, nil
}

func (r *LocationResolver) cacheGet(ctx context.Context, key string) (models.Location, bool) {
	if r.cache == nil {
		return models.Location{}, false
	}
	loc, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		observability.LocationCacheErrorsTotal.WithLabelValues("get").Inc()
		observability.LoggerFromContext(ctx).Warn("location cache get failed", zap.String("query", key), zap.Error(err))
		return models.Location{}, false
	}
	return loc, ok
}

func (r *LocationResolver) cacheSet(ctx context.Context, key string, loc models.Location) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, key, loc, r.cacheTTL); err != nil {
		observability.LocationCacheErrorsTotal.WithLabelValues("set").Inc()
		observability.LoggerFromContext(ctx).Warn("location cache set failed", zap.String("query", key), zap.Error(err))
	}
}
