package store

import "github.com/kjstillabower/location-gateway/internal/models"

// WeatherTable maps models.Weather onto the weathers table.
var WeatherTable = Table[models.Weather]{
	Name:    "weathers",
	Columns: []string{"forecast", "time"},
	Fields: func(w *models.Weather) []any {
		return []any{&w.Forecast, &w.Time}
	},
	Values: func(w models.Weather) []any {
		return []any{w.Forecast, w.Time}
	},
}

// EventTable maps models.Event onto the events table.
var EventTable = Table[models.Event]{
	Name:    "events",
	Columns: []string{"link", "name", "event_date", "summary"},
	Fields: func(e *models.Event) []any {
		return []any{&e.Link, &e.Name, &e.EventDate, &e.Summary}
	},
	Values: func(e models.Event) []any {
		return []any{e.Link, e.Name, e.EventDate, e.Summary}
	},
}

// ListingTable maps models.Listing onto the listings table.
var ListingTable = Table[models.Listing]{
	Name:    "listings",
	Columns: []string{"name", "image_url", "price", "rating", "url"},
	Fields: func(l *models.Listing) []any {
		return []any{&l.Name, &l.ImageURL, &l.Price, &l.Rating, &l.URL}
	},
	Values: func(l models.Listing) []any {
		return []any{l.Name, l.ImageURL, l.Price, l.Rating, l.URL}
	},
}

// MediaTable maps models.Media onto the media table.
var MediaTable = Table[models.Media]{
	Name:    "media",
	Columns: []string{"title", "overview", "average_votes", "total_votes", "image_url", "popularity", "released_on"},
	Fields: func(m *models.Media) []any {
		return []any{&m.Title, &m.Overview, &m.AverageVotes, &m.TotalVotes, &m.ImageURL, &m.Popularity, &m.ReleasedOn}
	},
	Values: func(m models.Media) []any {
		return []any{m.Title, m.Overview, m.AverageVotes, m.TotalVotes, m.ImageURL, m.Popularity, m.ReleasedOn}
	},
}
