//go:build integration
// +build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/store"
	"github.com/kjstillabower/location-gateway/internal/testhelpers"
)

func insertSeattle(t *testing.T, p *store.Postgres) int64 {
	t.Helper()
	id, inserted, err := p.UpsertLocation(context.Background(), models.Location{
		SearchQuery: "seattle", FormattedQuery: "Seattle, WA, USA", Latitude: 47.6062, Longitude: -122.3321,
	})
	if err != nil || !inserted {
		t.Fatalf("UpsertLocation() = (%d, %v, %v)", id, inserted, err)
	}
	return id
}

// TestIntegration_Postgres_Locations verifies upsert conflict handling and both lookups.
func TestIntegration_Postgres_Locations(t *testing.T) {
	ctx := context.Background()
	p := testhelpers.OpenPostgres(t)
	id := insertSeattle(t, p)

	again, inserted, err := p.UpsertLocation(ctx, models.Location{SearchQuery: "seattle", FormattedQuery: "other"})
	if err != nil || inserted || again != 0 {
		t.Fatalf("second UpsertLocation() = (%d, %v, %v), want (0, false, nil)", again, inserted, err)
	}

	loc, ok, err := p.SelectLocation(ctx, "seattle")
	if err != nil || !ok || loc.ID != id || loc.FormattedQuery != "Seattle, WA, USA" {
		t.Errorf("SelectLocation() = (%+v, %v, %v)", loc, ok, err)
	}
	byID, ok, err := p.SelectLocationByID(ctx, id)
	if err != nil || !ok || byID != loc {
		t.Errorf("SelectLocationByID() = (%+v, %v, %v)", byID, ok, err)
	}
	if _, ok, err := p.SelectLocation(ctx, "atlantis"); err != nil || ok {
		t.Errorf("SelectLocation(atlantis) = (%v, %v), want miss", ok, err)
	}
}

// TestIntegration_Postgres_Replace verifies a replace swaps the batch atomically
// and preserves insertion order and created_at.
func TestIntegration_Postgres_Replace(t *testing.T) {
	ctx := context.Background()
	p := testhelpers.OpenPostgres(t)
	id := insertSeattle(t, p)
	records := store.NewRecords(p, store.WeatherTable)
	t0 := time.Now().UTC().Truncate(time.Microsecond)

	if err := records.Replace(ctx, id, []models.Weather{{Forecast: "a", Time: "1"}, {Forecast: "b", Time: "2"}}, t0); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	if err := records.Replace(ctx, id, []models.Weather{{Forecast: "c", Time: "3"}}, t0.Add(time.Minute)); err != nil {
		t.Fatalf("second Replace() error = %v", err)
	}

	rows, err := records.Select(ctx, id)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Record.Forecast != "c" {
		t.Fatalf("rows = %+v, want single row c", rows)
	}
	if !rows[0].CreatedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("created_at = %v, want %v", rows[0].CreatedAt, t0.Add(time.Minute))
	}
}

// TestIntegration_Postgres_ConcurrentReplace verifies concurrent replaces leave
// exactly one complete batch.
func TestIntegration_Postgres_ConcurrentReplace(t *testing.T) {
	ctx := context.Background()
	p := testhelpers.OpenPostgres(t)
	id := insertSeattle(t, p)
	records := store.NewRecords(p, store.EventTable)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := []models.Event{{Name: "a"}, {Name: "b"}, {Name: "c"}}
			if err := records.Replace(ctx, id, batch, time.Now()); err != nil {
				t.Errorf("Replace() error = %v", err)
			}
		}()
	}
	wg.Wait()

	rows, err := records.Select(ctx, id)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}
}
