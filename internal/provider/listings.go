package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kjstillabower/location-gateway/internal/models"
)

// ListingsClient searches local businesses. The key travels as a bearer token.
type ListingsClient struct {
	fetcher    *Fetcher
	baseURL    string
	apiKey     string
	maxRecords int
}

func NewListingsClient(f *Fetcher, baseURL, apiKey string, maxRecords int) (*ListingsClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("listings: %w", ErrInvalidAPIKey)
	}
	return &ListingsClient{fetcher: f, baseURL: baseURL, apiKey: apiKey, maxRecords: maxRecords}, nil
}

type rawBusiness struct {
	Name     string  `json:"name"`
	ImageURL string  `json:"image_url"`
	Price    string  `json:"price"`
	Rating   float64 `json:"rating"`
	URL      string  `json:"url"`
}

type businessesResponse struct {
	Businesses []rawBusiness `json:"businesses"`
}

func (c *ListingsClient) Fetch(ctx context.Context, loc models.Location) ([]models.Listing, error) {
	var resp businessesResponse
	err := c.fetcher.GetJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		params := url.Values{}
		params.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
		params.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		return req, nil
	}, &resp)
	if err != nil {
		return nil, err
	}
	return normalizeAll(resp.Businesses, c.maxRecords, normalizeListing), nil
}

func normalizeListing(b rawBusiness) models.Listing {
	return models.Listing{
		Name:     b.Name,
		ImageURL: b.ImageURL,
		Price:    b.Price,
		Rating:   b.Rating,
		URL:      b.URL,
	}
}
