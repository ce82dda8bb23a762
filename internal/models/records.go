package models

// Category names a resource category. The value doubles as the metric label
// and the route segment.
type Category string

const (
	CategoryWeather  Category = "weather"
	CategoryEvents   Category = "events"
	CategoryListings Category = "listings"
	CategoryMedia    Category = "media"
)

// Categories lists every resource category in a stable order.
var Categories = []Category{CategoryWeather, CategoryEvents, CategoryListings, CategoryMedia}

func (c Category) String() string { return string(c) }

// Weather is one day of forecast for a location.
type Weather struct {
	Forecast string `json:"forecast"`
	Time     string `json:"time"`
}

// Event is a nearby event listing.
type Event struct {
	Link      string `json:"link"`
	Name      string `json:"name"`
	EventDate string `json:"event_date"`
	Summary   string `json:"summary"`
}

// Listing is a nearby business.
type Listing struct {
	Name     string  `json:"name"`
	ImageURL string  `json:"image_url"`
	Price    string  `json:"price"`
	Rating   float64 `json:"rating"`
	URL      string  `json:"url"`
}

// Media is a movie related to the place name.
type Media struct {
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	AverageVotes float64 `json:"average_votes"`
	TotalVotes   int     `json:"total_votes"`
	ImageURL     string  `json:"image_url"`
	Popularity   float64 `json:"popularity"`
	ReleasedOn   string  `json:"released_on"`
}
