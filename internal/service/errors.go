package service

import (
	"errors"
	"fmt"

	"github.com/kjstillabower/location-gateway/internal/models"
)

var (
	// ErrStore marks every failure of the persistent store. A store failure is
	// never reported as a miss.
	ErrStore = errors.New("store failure")

	// ErrUnknownLocation is returned when a location id has no stored row.
	ErrUnknownLocation = errors.New("unknown location")

	// ErrEmptyQuery is returned when the search text normalizes to nothing.
	ErrEmptyQuery = errors.New("empty query")

	// ErrUnknownCategory is returned for a category with no registered resolver.
	ErrUnknownCategory = errors.New("unknown category")
)

// StoreError wraps a store failure with the operation and category it hit.
// errors.Is(err, ErrStore) holds for every StoreError.
type StoreError struct {
	Op       string
	Category models.Category
	Err      error
}

func (e *StoreError) Error() string {
	if e.Category != "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.Category, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error { return []error{ErrStore, e.Err} }
