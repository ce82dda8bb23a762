package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/store"
)

// fakeRepo wraps the in-memory store and counts calls. selectErr and
// replaceErr inject store failures.
type fakeRepo[T any] struct {
	*store.MemoryRecords[T]
	mu         sync.Mutex
	selects    int
	replaces   int
	selectErr  error
	replaceErr error
}

func newFakeRepo[T any]() *fakeRepo[T] {
	return &fakeRepo[T]{MemoryRecords: store.NewMemoryRecords[T]()}
}

func (f *fakeRepo[T]) Select(ctx context.Context, locationID int64) ([]store.Row[T], error) {
	f.mu.Lock()
	f.selects++
	err := f.selectErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.MemoryRecords.Select(ctx, locationID)
}

func (f *fakeRepo[T]) Replace(ctx context.Context, locationID int64, records []T, createdAt time.Time) error {
	f.mu.Lock()
	f.replaces++
	err := f.replaceErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryRecords.Replace(ctx, locationID, records, createdAt)
}

// fakeProvider returns a fixed batch, or err, and counts fetches.
type fakeProvider[T any] struct {
	mu      sync.Mutex
	records []T
	err     error
	calls   int
	block   chan struct{}
}

func (f *fakeProvider[T]) Fetch(ctx context.Context, loc models.Location) ([]T, error) {
	f.mu.Lock()
	f.calls++
	records, err, block := f.records, f.err, f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := make([]T, len(records))
	copy(out, records)
	return out, nil
}

func (f *fakeProvider[T]) set(records []T, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records, f.err = records, err
}

func (f *fakeProvider[T]) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeGeocoder resolves any query to fixed coordinates.
type fakeGeocoder struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{}
}

func (g *fakeGeocoder) Geocode(ctx context.Context, query string) (models.Location, error) {
	g.mu.Lock()
	g.calls++
	err, block := g.err, g.block
	g.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return models.Location{}, err
	}
	return models.Location{SearchQuery: query, FormattedQuery: "Seattle, WA, USA", Latitude: 47.6062, Longitude: -122.3321}, nil
}

func (g *fakeGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
