package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/location-gateway/internal/models"
)

var seattle = models.Location{
	SearchQuery:    "seattle",
	FormattedQuery: "Seattle, WA, USA",
	Latitude:       47.6062,
	Longitude:      -122.3321,
}

// TestMemoryLocations_UpsertAndSelect verifies insert assigns an id and both
// lookups return the stored row.
func TestMemoryLocations_UpsertAndSelect(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLocations()

	id, inserted, err := m.UpsertLocation(ctx, seattle)
	if err != nil || !inserted || id != 1 {
		t.Fatalf("UpsertLocation() = (%d, %v, %v), want (1, true, nil)", id, inserted, err)
	}

	got, ok, err := m.SelectLocation(ctx, "seattle")
	if err != nil || !ok {
		t.Fatalf("SelectLocation() = (%v, %v)", ok, err)
	}
	want := seattle
	want.ID = 1
	if got != want {
		t.Errorf("SelectLocation() = %+v, want %+v", got, want)
	}

	byID, ok, err := m.SelectLocationByID(ctx, 1)
	if err != nil || !ok || byID != want {
		t.Errorf("SelectLocationByID() = (%+v, %v, %v)", byID, ok, err)
	}
	if _, ok, _ := m.SelectLocationByID(ctx, 2); ok {
		t.Error("SelectLocationByID(2) found a row")
	}
}

// TestMemoryLocations_UpsertConflict verifies a second insert for the same
// text reports not-inserted and keeps the first row.
func TestMemoryLocations_UpsertConflict(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLocations()
	_, _, _ = m.UpsertLocation(ctx, seattle)

	other := seattle
	other.FormattedQuery = "Somewhere else"
	id, inserted, err := m.UpsertLocation(ctx, other)
	if err != nil || inserted || id != 0 {
		t.Fatalf("UpsertLocation() = (%d, %v, %v), want (0, false, nil)", id, inserted, err)
	}
	got, _, _ := m.SelectLocation(ctx, "seattle")
	if got.FormattedQuery != seattle.FormattedQuery {
		t.Errorf("stored row overwritten: %+v", got)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
}

// TestMemoryLocations_ConcurrentUpsert verifies exactly one concurrent insert wins.
func TestMemoryLocations_ConcurrentUpsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLocations()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, inserted, _ := m.UpsertLocation(ctx, seattle); inserted {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("inserted %d times, want 1", wins)
	}
}

// TestMemoryLocations_Closed verifies every call fails after Close.
func TestMemoryLocations_Closed(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryLocations()
	_ = m.Close()

	if err := m.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() = %v, want ErrClosed", err)
	}
	if _, _, err := m.SelectLocation(ctx, "seattle"); !errors.Is(err, ErrClosed) {
		t.Errorf("SelectLocation() = %v, want ErrClosed", err)
	}
	if _, _, err := m.SelectLocationByID(ctx, 1); !errors.Is(err, ErrClosed) {
		t.Errorf("SelectLocationByID() = %v, want ErrClosed", err)
	}
	if _, _, err := m.UpsertLocation(ctx, seattle); !errors.Is(err, ErrClosed) {
		t.Errorf("UpsertLocation() = %v, want ErrClosed", err)
	}
}

func TestMemoryLocations_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemoryLocations()

	if _, _, err := m.SelectLocation(ctx, "seattle"); !errors.Is(err, context.Canceled) {
		t.Errorf("SelectLocation() = %v, want context.Canceled", err)
	}
	if _, _, err := m.UpsertLocation(ctx, seattle); !errors.Is(err, context.Canceled) {
		t.Errorf("UpsertLocation() = %v, want context.Canceled", err)
	}
}

// TestMemoryRecords_Replace verifies a replace swaps the whole batch and
// stamps every row with the batch time.
func TestMemoryRecords_Replace(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRecords[models.Weather]()
	t0 := time.Date(2018, 10, 20, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	_ = m.Replace(ctx, 1, []models.Weather{{Forecast: "a"}, {Forecast: "b"}, {Forecast: "c"}}, t0)
	if err := m.Replace(ctx, 1, []models.Weather{{Forecast: "d"}}, t1); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	rows, err := m.Select(ctx, 1)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Record.Forecast != "d" || !rows[0].CreatedAt.Equal(t1) {
		t.Errorf("rows = %+v, want single row d at %v", rows, t1)
	}
}

// TestMemoryRecords_ReplaceEmpty verifies an empty batch leaves no rows.
func TestMemoryRecords_ReplaceEmpty(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRecords[models.Event]()
	_ = m.Replace(ctx, 1, []models.Event{{Name: "x"}}, time.Now())

	if err := m.Replace(ctx, 1, nil, time.Now()); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	rows, _ := m.Select(ctx, 1)
	if len(rows) != 0 {
		t.Errorf("rows = %d, want 0", len(rows))
	}
}

// TestMemoryRecords_IsolatedByLocation verifies batches never cross locations
// and Select returns a copy.
func TestMemoryRecords_IsolatedByLocation(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRecords[models.Listing]()
	now := time.Now()
	_ = m.Replace(ctx, 1, []models.Listing{{Name: "one"}}, now)
	_ = m.Replace(ctx, 2, []models.Listing{{Name: "two"}}, now)

	rows, _ := m.Select(ctx, 1)
	rows[0].Record.Name = "mutated"

	again, _ := m.Select(ctx, 1)
	if again[0].Record.Name != "one" {
		t.Errorf("stored row mutated through Select result: %q", again[0].Record.Name)
	}
	other, _ := m.Select(ctx, 2)
	if len(other) != 1 || other[0].Record.Name != "two" {
		t.Errorf("location 2 rows = %+v", other)
	}
}
