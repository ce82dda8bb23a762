package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kjstillabower/location-gateway/internal/models"
)

// GeocodeClient resolves free-text queries to coordinates.
type GeocodeClient struct {
	fetcher *Fetcher
	baseURL string
	apiKey  string
}

// NewGeocodeClient returns ErrInvalidAPIKey when apiKey is empty.
func NewGeocodeClient(f *Fetcher, baseURL, apiKey string) (*GeocodeClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("geocode: %w", ErrInvalidAPIKey)
	}
	return &GeocodeClient{fetcher: f, baseURL: baseURL, apiKey: apiKey}, nil
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode returns an unsaved Location (ID zero) for the first match. Zero
// matches yield ErrLocationNotFound.
func (c *GeocodeClient) Geocode(ctx context.Context, query string) (models.Location, error) {
	var resp geocodeResponse
	err := c.fetcher.GetJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		params := url.Values{}
		params.Set("address", query)
		params.Set("key", c.apiKey)
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	}, &resp)
	if err != nil {
		return models.Location{}, err
	}

	switch resp.Status {
	case "", "OK":
	case "ZERO_RESULTS":
		return models.Location{}, fmt.Errorf("%w: %q", ErrLocationNotFound, query)
	case "REQUEST_DENIED":
		return models.Location{}, fmt.Errorf("geocode: %w: %s", ErrInvalidAPIKey, resp.ErrorMessage)
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return models.Location{}, fmt.Errorf("geocode: %w", ErrRateLimited)
	default:
		return models.Location{}, fmt.Errorf("geocode: %w: status %s", ErrUpstreamFailure, resp.Status)
	}
	if len(resp.Results) == 0 {
		return models.Location{}, fmt.Errorf("%w: %q", ErrLocationNotFound, query)
	}

	first := resp.Results[0]
	return models.Location{
		SearchQuery:    query,
		FormattedQuery: first.FormattedAddress,
		Latitude:       first.Geometry.Location.Lat,
		Longitude:      first.Geometry.Location.Lng,
	}, nil
}
