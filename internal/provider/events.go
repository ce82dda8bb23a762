package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kjstillabower/location-gateway/internal/models"
)

const eventSearchRadius = "10km"

// EventsClient searches events near a coordinate pair.
type EventsClient struct {
	fetcher    *Fetcher
	baseURL    string
	token      string
	maxRecords int
}

func NewEventsClient(f *Fetcher, baseURL, token string, maxRecords int) (*EventsClient, error) {
	if token == "" {
		return nil, fmt.Errorf("events: %w", ErrInvalidAPIKey)
	}
	return &EventsClient{fetcher: f, baseURL: baseURL, token: token, maxRecords: maxRecords}, nil
}

type textField struct {
	Text string `json:"text"`
}

type rawEvent struct {
	URL         string    `json:"url"`
	Name        textField `json:"name"`
	Description textField `json:"description"`
	Start       struct {
		Local string `json:"local"`
	} `json:"start"`
}

type eventsResponse struct {
	Events []rawEvent `json:"events"`
}

func (c *EventsClient) Fetch(ctx context.Context, loc models.Location) ([]models.Event, error) {
	var resp eventsResponse
	err := c.fetcher.GetJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		params := url.Values{}
		params.Set("token", c.token)
		params.Set("location.latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
		params.Set("location.longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
		params.Set("location.within", eventSearchRadius)
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	}, &resp)
	if err != nil {
		return nil, err
	}
	return normalizeAll(resp.Events, c.maxRecords, normalizeEvent), nil
}

func normalizeEvent(e rawEvent) models.Event {
	return models.Event{
		Link:      e.URL,
		Name:      e.Name.Text,
		EventDate: e.Start.Local,
		Summary:   e.Description.Text,
	}
}
