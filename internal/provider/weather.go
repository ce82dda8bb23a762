package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kjstillabower/location-gateway/internal/models"
)

// ForecastDateLayout is the day format stored in Weather.Time.
const ForecastDateLayout = "Mon Jan 02 2006"

// WeatherClient fetches the daily forecast for a coordinate pair.
type WeatherClient struct {
	fetcher    *Fetcher
	baseURL    string
	apiKey     string
	maxRecords int
}

func NewWeatherClient(f *Fetcher, baseURL, apiKey string, maxRecords int) (*WeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("weather: %w", ErrInvalidAPIKey)
	}
	return &WeatherClient{fetcher: f, baseURL: baseURL, apiKey: apiKey, maxRecords: maxRecords}, nil
}

type forecastDay struct {
	Summary string `json:"summary"`
	Time    int64  `json:"time"`
}

type forecastResponse struct {
	Daily struct {
		Data []forecastDay `json:"data"`
	} `json:"daily"`
}

// Fetch returns one Weather per forecast day.
func (c *WeatherClient) Fetch(ctx context.Context, loc models.Location) ([]models.Weather, error) {
	var resp forecastResponse
	err := c.fetcher.GetJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s/%s/%s,%s", c.baseURL, c.apiKey,
			strconv.FormatFloat(loc.Latitude, 'f', -1, 64),
			strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}, &resp)
	if err != nil {
		return nil, err
	}
	return normalizeAll(resp.Daily.Data, c.maxRecords, normalizeWeather), nil
}

func normalizeWeather(d forecastDay) models.Weather {
	return models.Weather{
		Forecast: d.Summary,
		Time:     time.Unix(d.Time, 0).UTC().Format(ForecastDateLayout),
	}
}
