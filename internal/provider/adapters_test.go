package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kjstillabower/location-gateway/internal/models"
)

var seattle = models.Location{
	ID:             1,
	SearchQuery:    "seattle",
	FormattedQuery: "Seattle, WA, USA",
	Latitude:       47.6062,
	Longitude:      -122.3321,
}

func jsonServer(t *testing.T, check func(r *http.Request), body any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewClients_EmptyKey(t *testing.T) {
	f := testFetcher("test-keys")
	tests := []struct {
		name string
		err  error
	}{
		{"geocode", func() error { _, err := NewGeocodeClient(f, "http://x", ""); return err }()},
		{"weather", func() error { _, err := NewWeatherClient(f, "http://x", "", 0); return err }()},
		{"events", func() error { _, err := NewEventsClient(f, "http://x", "", 0); return err }()},
		{"listings", func() error { _, err := NewListingsClient(f, "http://x", "", 0); return err }()},
		{"media", func() error { _, err := NewMediaClient(f, "http://x", "", 0); return err }()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, ErrInvalidAPIKey) {
				t.Errorf("constructor error = %v, want ErrInvalidAPIKey", tt.err)
			}
		})
	}
}

// TestGeocodeClient_Geocode_Success verifies the first result is mapped to an unsaved Location.
func TestGeocodeClient_Geocode_Success(t *testing.T) {
	// Arrange
	server := jsonServer(t, func(r *http.Request) {
		if r.URL.Query().Get("address") != "seattle" {
			t.Errorf("address = %q, want seattle", r.URL.Query().Get("address"))
		}
		if r.URL.Query().Get("key") != "geo-key" {
			t.Errorf("expected API key in query")
		}
	}, map[string]any{
		"status": "OK",
		"results": []map[string]any{{
			"formatted_address": "Seattle, WA, USA",
			"geometry":          map[string]any{"location": map[string]any{"lat": 47.6062, "lng": -122.3321}},
		}},
	})
	c, err := NewGeocodeClient(testFetcher("test-geocode"), server.URL, "geo-key")
	if err != nil {
		t.Fatalf("NewGeocodeClient() error = %v", err)
	}

	// Act
	got, err := c.Geocode(context.Background(), "seattle")

	// Assert
	if err != nil {
		t.Fatalf("Geocode() error = %v", err)
	}
	if got.ID != 0 {
		t.Errorf("ID = %d, want 0", got.ID)
	}
	if got.SearchQuery != "seattle" || got.FormattedQuery != "Seattle, WA, USA" {
		t.Errorf("Geocode() = %+v", got)
	}
	if got.Latitude != 47.6062 || got.Longitude != -122.3321 {
		t.Errorf("coordinates = (%v, %v)", got.Latitude, got.Longitude)
	}
}

func TestGeocodeClient_Geocode_Statuses(t *testing.T) {
	tests := []struct {
		status string
		want   error
	}{
		{"ZERO_RESULTS", ErrLocationNotFound},
		{"OK", ErrLocationNotFound},
		{"REQUEST_DENIED", ErrInvalidAPIKey},
		{"OVER_QUERY_LIMIT", ErrRateLimited},
		{"UNKNOWN_ERROR", ErrUpstreamFailure},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			server := jsonServer(t, nil, map[string]any{"status": tt.status, "results": []any{}})
			c, _ := NewGeocodeClient(testFetcher("test-geocode-status"), server.URL, "geo-key")

			_, err := c.Geocode(context.Background(), "atlantis")

			if !errors.Is(err, tt.want) {
				t.Errorf("Geocode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// TestWeatherClient_Fetch_TruncatesAndFormats verifies a 35-day upstream answer is capped
// at the record limit and each day is rendered in the forecast date layout.
func TestWeatherClient_Fetch_TruncatesAndFormats(t *testing.T) {
	// Arrange
	days := make([]map[string]any, 35)
	for i := range days {
		days[i] = map[string]any{"summary": fmt.Sprintf("day %d", i), "time": 1540000000 + i*86400}
	}
	server := jsonServer(t, func(r *http.Request) {
		want := "/weather-key/47.6062,-122.3321"
		if r.URL.Path != want {
			t.Errorf("path = %q, want %q", r.URL.Path, want)
		}
	}, map[string]any{"daily": map[string]any{"data": days}})
	c, _ := NewWeatherClient(testFetcher("test-weather"), server.URL, "weather-key", 20)

	// Act
	got, err := c.Fetch(context.Background(), seattle)

	// Assert
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("len = %d, want 20", len(got))
	}
	if got[0].Forecast != "day 0" || got[0].Time != "Sat Oct 20 2018" {
		t.Errorf("first = %+v", got[0])
	}
	if got[19].Forecast != "day 19" {
		t.Errorf("last = %+v, want day 19", got[19])
	}
}

// TestWeatherClient_Fetch_Empty verifies an empty upstream answer yields an empty, non-nil list.
func TestWeatherClient_Fetch_Empty(t *testing.T) {
	server := jsonServer(t, nil, map[string]any{"daily": map[string]any{"data": []any{}}})
	c, _ := NewWeatherClient(testFetcher("test-weather-empty"), server.URL, "weather-key", 20)

	got, err := c.Fetch(context.Background(), seattle)

	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Fetch() = %#v, want empty slice", got)
	}
}

func TestWeatherClient_Fetch_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()
	c, _ := NewWeatherClient(testFetcher("test-weather-error"), server.URL, "weather-key", 20)

	_, err := c.Fetch(context.Background(), seattle)

	var se *StatusError
	if !errors.As(err, &se) || se.HTTPStatus() != http.StatusInternalServerError {
		t.Errorf("Fetch() error = %v, want StatusError 500", err)
	}
}

func TestEventsClient_Fetch(t *testing.T) {
	server := jsonServer(t, func(r *http.Request) {
		q := r.URL.Query()
		if q.Get("token") != "events-token" {
			t.Errorf("token = %q", q.Get("token"))
		}
		if q.Get("location.latitude") != "47.6062" || q.Get("location.longitude") != "-122.3321" {
			t.Errorf("coordinates = %q,%q", q.Get("location.latitude"), q.Get("location.longitude"))
		}
		if q.Get("location.within") != "10km" {
			t.Errorf("within = %q, want 10km", q.Get("location.within"))
		}
	}, map[string]any{"events": []map[string]any{{
		"url":         "https://events.example/1",
		"name":        map[string]any{"text": "Concert"},
		"start":       map[string]any{"local": "2024-05-01T19:00:00"},
		"description": map[string]any{"text": "Live music"},
	}}})
	c, _ := NewEventsClient(testFetcher("test-events"), server.URL, "events-token", 20)

	got, err := c.Fetch(context.Background(), seattle)

	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := models.Event{Link: "https://events.example/1", Name: "Concert", EventDate: "2024-05-01T19:00:00", Summary: "Live music"}
	if len(got) != 1 || got[0] != want {
		t.Errorf("Fetch() = %+v, want [%+v]", got, want)
	}
}

// TestListingsClient_Fetch_BearerAuth verifies the key is sent as a bearer token, not in the query.
func TestListingsClient_Fetch_BearerAuth(t *testing.T) {
	server := jsonServer(t, func(r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer listings-key" {
			t.Errorf("Authorization = %q", got)
		}
		if strings.Contains(r.URL.RawQuery, "listings-key") {
			t.Errorf("API key leaked into query: %s", r.URL.RawQuery)
		}
	}, map[string]any{"businesses": []map[string]any{{
		"name": "Cafe", "image_url": "https://img/1.jpg", "price": "$$", "rating": 4.5, "url": "https://biz/1",
	}}})
	c, _ := NewListingsClient(testFetcher("test-listings"), server.URL, "listings-key", 20)

	got, err := c.Fetch(context.Background(), seattle)

	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := models.Listing{Name: "Cafe", ImageURL: "https://img/1.jpg", Price: "$$", Rating: 4.5, URL: "https://biz/1"}
	if len(got) != 1 || got[0] != want {
		t.Errorf("Fetch() = %+v, want [%+v]", got, want)
	}
}

func TestMediaClient_Fetch(t *testing.T) {
	server := jsonServer(t, func(r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "Seattle" {
			t.Errorf("query = %q, want Seattle", got)
		}
	}, map[string]any{"results": []map[string]any{
		{"title": "Sleepless", "overview": "o", "vote_average": 6.8, "vote_count": 1200, "poster_path": "/p.jpg", "popularity": 12.5, "release_date": "1993-06-25"},
		{"title": "No Poster"},
	}})
	c, _ := NewMediaClient(testFetcher("test-media"), server.URL, "media-key", 20)

	got, err := c.Fetch(context.Background(), seattle)

	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	want := models.Media{Title: "Sleepless", Overview: "o", AverageVotes: 6.8, TotalVotes: 1200, ImageURL: posterBaseURL + "/p.jpg", Popularity: 12.5, ReleasedOn: "1993-06-25"}
	if got[0] != want {
		t.Errorf("first = %+v, want %+v", got[0], want)
	}
	if got[1].ImageURL != "" {
		t.Errorf("ImageURL = %q, want empty without poster", got[1].ImageURL)
	}
}

func TestMediaQuery(t *testing.T) {
	tests := []struct {
		loc  models.Location
		want string
	}{
		{models.Location{FormattedQuery: "Seattle, WA, USA"}, "Seattle"},
		{models.Location{FormattedQuery: "Paris"}, "Paris"},
		{models.Location{SearchQuery: "lynnwood, wa"}, "lynnwood"},
	}
	for _, tt := range tests {
		if got := MediaQuery(tt.loc); got != tt.want {
			t.Errorf("MediaQuery(%+v) = %q, want %q", tt.loc, got, tt.want)
		}
	}
}
