//go:build integration
// +build integration

// Package testhelpers builds real stacks for integration tests: a PostgreSQL
// store with the project schema, stub upstream providers and a wired gateway.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/kjstillabower/location-gateway/internal/models"
	"github.com/kjstillabower/location-gateway/internal/provider"
	"github.com/kjstillabower/location-gateway/internal/service"
	"github.com/kjstillabower/location-gateway/internal/store"
)

// OpenPostgres connects to DATABASE_URL, applies db/schema.sql and empties
// every table. Skips the test when DATABASE_URL is not set.
func OpenPostgres(t *testing.T) *store.Postgres {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Skipf("PostgreSQL not available at DATABASE_URL: %v", err)
	}

	schema, err := os.ReadFile(filepath.Join(projectRoot(t), "db", "schema.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`TRUNCATE weathers, events, listings, media, locations RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	p := store.Attach(db)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func projectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("go.mod not found above working directory")
		}
		dir = parent
	}
}

// Upstreams are stub provider servers returning fixed payloads for any location.
type Upstreams struct {
	Geocode, Weather, Events, Listings, Media *httptest.Server

	calls map[string]*atomic.Int64
}

// Calls returns how many requests the named stub has served.
func (u *Upstreams) Calls(name string) int64 {
	return u.calls[name].Load()
}

// StartUpstreams starts one stub server per provider. Servers close on test cleanup.
func StartUpstreams(t *testing.T) *Upstreams {
	t.Helper()
	u := &Upstreams{calls: make(map[string]*atomic.Int64)}
	serve := func(name, body string) *httptest.Server {
		n := &atomic.Int64{}
		u.calls[name] = n
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n.Add(1)
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprint(w, body)
		}))
		t.Cleanup(srv.Close)
		return srv
	}

	u.Geocode = serve("geocode", `{"status":"OK","results":[{"formatted_address":"Seattle, WA, USA","geometry":{"location":{"lat":47.6062,"lng":-122.3321}}}]}`)
	u.Weather = serve("weather", `{"daily":{"data":[{"summary":"Rain throughout the day.","time":1540000000},{"summary":"Overcast.","time":1540086400}]}}`)
	u.Events = serve("events", `{"events":[{"url":"https://events.example.com/1","name":{"text":"Harbor Fest"},"start":{"local":"2018-10-20T19:00:00"},"description":{"text":"Music by the water."}}]}`)
	u.Listings = serve("listings", `{"businesses":[{"name":"Pike Place Chowder","image_url":"https://img.example.com/1.jpg","price":"$$","rating":4.5,"url":"https://listings.example.com/1"}]}`)
	u.Media = serve("media", `{"results":[{"title":"Sleepless in Seattle","overview":"A widower's son calls a radio show.","vote_average":6.8,"vote_count":1500,"poster_path":"/abc.jpg","popularity":12.5,"release_date":"1993-06-24"}]}`)
	return u
}

// GatewayOptions configures NewGateway.
type GatewayOptions struct {
	// Store persists locations and records. Nil uses the in-memory store.
	Store *store.Postgres
	TTL   time.Duration
}

// NewGateway wires the stub upstreams through real fetchers and resolvers.
func NewGateway(t *testing.T, u *Upstreams, opts GatewayOptions) *service.Gateway {
	t.Helper()
	fetcher := func(name string) *provider.Fetcher {
		return provider.NewFetcher(provider.Options{
			Name:           name,
			Timeout:        2 * time.Second,
			RetryAttempts:  1,
			RetryBaseDelay: 10 * time.Millisecond,
			RetryMaxDelay:  50 * time.Millisecond,
		})
	}
	must := func(err error) {
		if err != nil {
			t.Fatalf("provider client: %v", err)
		}
	}

	geocoder, err := provider.NewGeocodeClient(fetcher("geocode"), u.Geocode.URL, "geo-key")
	must(err)
	weather, err := provider.NewWeatherClient(fetcher("weather"), u.Weather.URL, "weather-key", provider.DefaultMaxRecords)
	must(err)
	events, err := provider.NewEventsClient(fetcher("events"), u.Events.URL, "events-key", provider.DefaultMaxRecords)
	must(err)
	listings, err := provider.NewListingsClient(fetcher("listings"), u.Listings.URL, "listings-key", provider.DefaultMaxRecords)
	must(err)
	media, err := provider.NewMediaClient(fetcher("media"), u.Media.URL, "media-key", provider.DefaultMaxRecords)
	must(err)

	var locations service.LocationRepository
	var (
		weatherRepo  service.Repository[models.Weather]
		eventsRepo   service.Repository[models.Event]
		listingsRepo service.Repository[models.Listing]
		mediaRepo    service.Repository[models.Media]
	)
	if opts.Store != nil {
		locations = opts.Store
		weatherRepo = store.NewRecords(opts.Store, store.WeatherTable)
		eventsRepo = store.NewRecords(opts.Store, store.EventTable)
		listingsRepo = store.NewRecords(opts.Store, store.ListingTable)
		mediaRepo = store.NewRecords(opts.Store, store.MediaTable)
	} else {
		locations = store.NewMemoryLocations()
		weatherRepo = store.NewMemoryRecords[models.Weather]()
		eventsRepo = store.NewMemoryRecords[models.Event]()
		listingsRepo = store.NewMemoryRecords[models.Listing]()
		mediaRepo = store.NewMemoryRecords[models.Media]()
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	gw := service.NewGateway(service.NewLocationResolver(locations, geocoder, nil, 0))
	service.Register(gw, service.NewCategoryResolver(models.CategoryWeather, weatherRepo, weather, ttl))
	service.Register(gw, service.NewCategoryResolver(models.CategoryEvents, eventsRepo, events, ttl))
	service.Register(gw, service.NewCategoryResolver(models.CategoryListings, listingsRepo, listings, ttl))
	service.Register(gw, service.NewCategoryResolver(models.CategoryMedia, mediaRepo, media, ttl))
	return gw
}
