package store

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/location-gateway/internal/models"
)

// MemoryLocations is an in-process location repository for local runs and
// tests. Safe for concurrent use.
type MemoryLocations struct {
	mu     sync.Mutex
	byText map[string]models.Location
	nextID int64
	closed bool
}

// NewMemoryLocations returns an empty repository.
func NewMemoryLocations() *MemoryLocations {
	return &MemoryLocations{byText: make(map[string]models.Location)}
}

// SelectLocation implements the location repository lookup.
func (m *MemoryLocations) SelectLocation(ctx context.Context, searchQuery string) (models.Location, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return models.Location{}, false, ErrClosed
	}
	loc, ok := m.byText[searchQuery]
	return loc, ok, nil
}

// SelectLocationByID looks a location up by surrogate id.
func (m *MemoryLocations) SelectLocationByID(ctx context.Context, id int64) (models.Location, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return models.Location{}, false, ErrClosed
	}
	for _, loc := range m.byText {
		if loc.ID == id {
			return loc, true, nil
		}
	}
	return models.Location{}, false, nil
}

// UpsertLocation inserts loc unless its search text is already present.
func (m *MemoryLocations) UpsertLocation(ctx context.Context, loc models.Location) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, false, ErrClosed
	}
	if _, exists := m.byText[loc.SearchQuery]; exists {
		return 0, false, nil
	}
	m.nextID++
	loc.ID = m.nextID
	m.byText[loc.SearchQuery] = loc
	return loc.ID, true, nil
}

// Len returns the number of stored locations.
func (m *MemoryLocations) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byText)
}

// Ping reports whether the repository is still open.
func (m *MemoryLocations) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the repository closed; later calls fail with ErrClosed.
func (m *MemoryLocations) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// MemoryRecords is an in-process resource repository for one category.
type MemoryRecords[T any] struct {
	mu      sync.RWMutex
	batches map[int64][]Row[T]
}

// NewMemoryRecords returns an empty repository.
func NewMemoryRecords[T any]() *MemoryRecords[T] {
	return &MemoryRecords[T]{batches: make(map[int64][]Row[T])}
}

// Select returns a copy of the batch stored for locationID.
func (m *MemoryRecords[T]) Select(ctx context.Context, locationID int64) ([]Row[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	batch := m.batches[locationID]
	if len(batch) == 0 {
		return nil, nil
	}
	out := make([]Row[T], len(batch))
	copy(out, batch)
	return out, nil
}

// Replace swaps the batch for locationID under one lock.
func (m *MemoryRecords[T]) Replace(ctx context.Context, locationID int64, records []T, createdAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(records) == 0 {
		delete(m.batches, locationID)
		return nil
	}
	batch := make([]Row[T], 0, len(records))
	for _, rec := range records {
		batch = append(batch, Row[T]{Record: rec, CreatedAt: createdAt})
	}
	m.batches[locationID] = batch
	return nil
}
