// Package service is the cache-aside core. A CategoryResolver decides per
// request whether the stored batch for a location is fresh (HIT), too old
// (STALE) or absent (MISS), and refreshes it from the provider when needed.
// Freshness is computed on read from each row's created_at; there is no
// background expiry.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/observability"
	"github.com/kjstillabower/location-gateway/internal/store"
)

// Repository persists record batches for one category.
// Replace must delete the previous batch and insert the new one atomically.
type Repository[T any] interface {
	Select(ctx context.Context, locationID int64) ([]store.Row[T], error)
	Replace(ctx context.Context, locationID int64, records []T, createdAt time.Time) error
}

// Provider fetches normalized records for a location from upstream.
type Provider[T any] interface {
	Fetch(ctx context.Context, loc models.Location) ([]T, error)
}

// Outcome is the freshness decision for one lookup.
type Outcome string

const (
	OutcomeHit   Outcome = "hit"
	OutcomeStale Outcome = "stale"
	OutcomeMiss  Outcome = "miss"
)

// CategoryResolver applies the cache-aside decision for one category.
type CategoryResolver[T any] struct {
	category models.Category
	repo     Repository[T]
	provider Provider[T]
	ttl      time.Duration
	now      func() time.Time
	stampede *stampedeTracker
}

// NewCategoryResolver wires a resolver. Records older than ttl are refreshed.
func NewCategoryResolver[T any](category models.Category, repo Repository[T], provider Provider[T], ttl time.Duration) *CategoryResolver[T] {
	return &CategoryResolver[T]{
		category: category,
		repo:     repo,
		provider: provider,
		ttl:      ttl,
		now:      time.Now,
		stampede: newStampedeTracker(),
	}
}

// Category returns the category this resolver serves.
func (r *CategoryResolver[T]) Category() models.Category { return r.category }

// TTL returns the freshness window.
func (r *CategoryResolver[T]) TTL() time.Duration { return r.ttl }

// Resolve returns the records for loc, refreshing them from the provider when
// the stored batch is missing or older than the TTL. loc must be a stored
// location (non-zero ID).
//
// An upstream failure is returned as-is (wrapped) and leaves the stored batch
// untouched. A store failure is returned as a *StoreError.
func (r *CategoryResolver[T]) Resolve(ctx context.Context, loc models.Location) ([]T, error) {
	records, _, err := r.resolve(ctx, loc)
	return records, err
}

func (r *CategoryResolver[T]) resolve(ctx context.Context, loc models.Location) ([]T, Outcome, error) {
	logger := observability.LoggerFromContext(ctx)

	rows, err := r.repo.Select(ctx, loc.ID)
	if err != nil {
		return nil, "", &StoreError{Op: "select", Category: r.category, Err: err}
	}

	outcome := OutcomeMiss
	if len(rows) > 0 {
		age := r.now().Sub(rows[0].CreatedAt)
		if age <= r.ttl {
			observability.CacheLookupsTotal.WithLabelValues(r.category.String(), string(OutcomeHit)).Inc()
			logger.Debug("records served from store",
				zap.String("category", r.category.String()),
				zap.Int64("location_id", loc.ID),
				zap.Int("rows", len(rows)),
				zap.Duration("age", age))
			return recordsOf(rows), OutcomeHit, nil
		}
		outcome = OutcomeStale
		logger.Debug("stored records stale",
			zap.String("category", r.category.String()),
			zap.Int64("location_id", loc.ID),
			zap.Int("rows", len(rows)),
			zap.Duration("age", age))
	} else {
		logger.Debug("no stored records",
			zap.String("category", r.category.String()),
			zap.Int64("location_id", loc.ID))
	}
	observability.CacheLookupsTotal.WithLabelValues(r.category.String(), string(outcome)).Inc()

	records, err := r.refresh(ctx, loc)
	if err != nil {
		return nil, outcome, err
	}
	return records, outcome, nil
}

func (r *CategoryResolver[T]) refresh(ctx context.Context, loc models.Location) ([]T, error) {
	if n := r.stampede.Begin(loc.ID); n > 1 {
		observability.ConcurrentMissesTotal.WithLabelValues(r.category.String()).Inc()
	}
	defer r.stampede.End(loc.ID)

	fresh, err := r.provider.Fetch(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("fetch %s for location %d: %w", r.category, loc.ID, err)
	}
	if fresh == nil {
		fresh = []T{}
	}

	if err := r.repo.Replace(ctx, loc.ID, fresh, r.now()); err != nil {
		return nil, &StoreError{Op: "replace", Category: r.category, Err: err}
	}
	observability.LoggerFromContext(ctx).Debug("records refreshed",
		zap.String("category", r.category.String()),
		zap.Int64("location_id", loc.ID),
		zap.Int("rows", len(fresh)))
	return fresh, nil
}

func recordsOf[T any](rows []store.Row[T]) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Record)
	}
	return out
}
