package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/observability"
)

// Options configures the PostgreSQL connection pool.
type Options struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Postgres owns the connection pool shared by the location repository and
// every per-category Records table.
type Postgres struct {
	db *sql.DB
}

// Open opens a pool for opts.URL. It does not contact the server; call Ping
// to verify connectivity.
func Open(opts Options) (*Postgres, error) {
	if opts.URL == "" {
		return nil, errors.New("database url is required")
	}
	db, err := sql.Open("postgres", opts.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return &Postgres{db: db}, nil
}

// Attach wraps an existing pool.
func Attach(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Ping checks the server is reachable. Used by health checks.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the pool.
func (p *Postgres) Close() error { return p.db.Close() }

// SelectLocation returns the location stored for the normalized search text.
// ok is false when no row exists.
func (p *Postgres) SelectLocation(ctx context.Context, searchQuery string) (models.Location, bool, error) {
	start := time.Now()
	var loc models.Location
	err := p.db.QueryRowContext(ctx,
		`SELECT id, search_query, formatted_query, latitude, longitude FROM locations WHERE search_query = $1`,
		searchQuery,
	).Scan(&loc.ID, &loc.SearchQuery, &loc.FormattedQuery, &loc.Latitude, &loc.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		observeStore("select_location", "locations", start, nil)
		return models.Location{}, false, nil
	}
	observeStore("select_location", "locations", start, err)
	if err != nil {
		return models.Location{}, false, fmt.Errorf("select location %q: %w", searchQuery, err)
	}
	return loc, true, nil
}

// SelectLocationByID returns the location with the given surrogate id.
func (p *Postgres) SelectLocationByID(ctx context.Context, id int64) (models.Location, bool, error) {
	start := time.Now()
	var loc models.Location
	err := p.db.QueryRowContext(ctx,
		`SELECT id, search_query, formatted_query, latitude, longitude FROM locations WHERE id = $1`,
		id,
	).Scan(&loc.ID, &loc.SearchQuery, &loc.FormattedQuery, &loc.Latitude, &loc.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		observeStore("select_location_by_id", "locations", start, nil)
		return models.Location{}, false, nil
	}
	observeStore("select_location_by_id", "locations", start, err)
	if err != nil {
		return models.Location{}, false, fmt.Errorf("select location %d: %w", id, err)
	}
	return loc, true, nil
}

// UpsertLocation inserts loc unless a row with the same search text already
// exists. inserted is false when a concurrent writer got there first; the
// caller must then re-read the row for the authoritative id.
func (p *Postgres) UpsertLocation(ctx context.Context, loc models.Location) (id int64, inserted bool, err error) {
	start := time.Now()
	err = p.db.QueryRowContext(ctx,
		`INSERT INTO locations (search_query, formatted_query, latitude, longitude)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (search_query) DO NOTHING
		 RETURNING id`,
		loc.SearchQuery, loc.FormattedQuery, loc.Latitude, loc.Longitude,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		observeStore("upsert_location", "locations", start, nil)
		return 0, false, nil
	}
	observeStore("upsert_location", "locations", start, err)
	if err != nil {
		return 0, false, fmt.Errorf("upsert location %q: %w", loc.SearchQuery, err)
	}
	return id, true, nil
}

func observeStore(op, table string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.StoreOperationDurationSeconds.WithLabelValues(op, table, status).Observe(time.Since(start).Seconds())
}
