package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kjstillabower/location-gateway/internal/models"
)

const posterBaseURL = "https://image.tmdb.org/t/p/w500"

// MediaClient searches titles matching the location's city name.
type MediaClient struct {
	fetcher    *Fetcher
	baseURL    string
	apiKey     string
	maxRecords int
}

func NewMediaClient(f *Fetcher, baseURL, apiKey string, maxRecords int) (*MediaClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("media: %w", ErrInvalidAPIKey)
	}
	return &MediaClient{fetcher: f, baseURL: baseURL, apiKey: apiKey, maxRecords: maxRecords}, nil
}

type rawTitle struct {
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
	PosterPath  string  `json:"poster_path"`
	Popularity  float64 `json:"popularity"`
	ReleaseDate string  `json:"release_date"`
}

type titlesResponse struct {
	Results []rawTitle `json:"results"`
}

func (c *MediaClient) Fetch(ctx context.Context, loc models.Location) ([]models.Media, error) {
	var resp titlesResponse
	err := c.fetcher.GetJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		params := url.Values{}
		params.Set("api_key", c.apiKey)
		params.Set("query", MediaQuery(loc))
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	}, &resp)
	if err != nil {
		return nil, err
	}
	return normalizeAll(resp.Results, c.maxRecords, normalizeMedia), nil
}

// MediaQuery is the first comma-separated component of the formatted
// address, falling back to the search text.
func MediaQuery(loc models.Location) string {
	src := loc.FormattedQuery
	if strings.TrimSpace(src) == "" {
		src = loc.SearchQuery
	}
	city, _, _ := strings.Cut(src, ",")
	return strings.TrimSpace(city)
}

func normalizeMedia(r rawTitle) models.Media {
	m := models.Media{
		Title:        r.Title,
		Overview:     r.Overview,
		AverageVotes: r.VoteAverage,
		TotalVotes:   r.VoteCount,
		Popularity:   r.Popularity,
		ReleasedOn:   r.ReleaseDate,
	}
	if r.PosterPath != "" {
		m.ImageURL = posterBaseURL + r.PosterPath
	}
	return m
}
