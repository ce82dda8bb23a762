package store

import (
	"testing"

	"github.com/kjstillabower/location-gateway/internal/models"
)

// TestTable_SQL verifies the statements generated from a table description.
func TestTable_SQL(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{
			name: "select",
			got:  WeatherTable.selectSQL(),
			want: "SELECT forecast, time, created_at FROM weathers WHERE location_id = $1 ORDER BY id",
		},
		{
			name: "delete",
			got:  EventTable.deleteSQL(),
			want: "DELETE FROM events WHERE location_id = $1",
		},
		{
			name: "insert",
			got:  ListingTable.insertSQL(),
			want: "INSERT INTO listings (name, image_url, price, rating, url, location_id, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got  %q\nwant %q", tt.got, tt.want)
			}
		})
	}
}

// TestTables_FieldsMatchColumns verifies every table's scan destinations and
// insert values line up with its column list.
func TestTables_FieldsMatchColumns(t *testing.T) {
	check := func(name string, cols, fields, values int) {
		t.Helper()
		if fields != cols || values != cols {
			t.Errorf("%s: columns=%d fields=%d values=%d", name, cols, fields, values)
		}
	}
	check(WeatherTable.Name, len(WeatherTable.Columns), len(WeatherTable.Fields(&models.Weather{})), len(WeatherTable.Values(models.Weather{})))
	check(EventTable.Name, len(EventTable.Columns), len(EventTable.Fields(&models.Event{})), len(EventTable.Values(models.Event{})))
	check(ListingTable.Name, len(ListingTable.Columns), len(ListingTable.Fields(&models.Listing{})), len(ListingTable.Values(models.Listing{})))
	check(MediaTable.Name, len(MediaTable.Columns), len(MediaTable.Fields(&models.Media{})), len(MediaTable.Values(models.Media{})))
}

// TestMediaTable_FieldsScanIntoRecord verifies scan destinations point into
// the record being filled.
func TestMediaTable_FieldsScanIntoRecord(t *testing.T) {
	var m models.Media
	fields := MediaTable.Fields(&m)
	*(fields[0].(*string)) = "Sleepless in Seattle"
	*(fields[3].(*int)) = 1500

	if m.Title != "Sleepless in Seattle" || m.TotalVotes != 1500 {
		t.Errorf("record = %+v, want title and total_votes set", m)
	}
}
