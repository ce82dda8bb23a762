// Package store persists locations and per-category resource batches.
//
// Every resource table carries location_id and created_at; a batch for one
// (location, category) pair is always written and removed as a unit.
package store

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrClosed is returned by the in-memory store after Close.
var ErrClosed = errors.New("store closed")

// Row is a stored resource record together with its batch creation time.
type Row[T any] struct {
	Record    T
	CreatedAt time.Time
}

// Table describes how a record type maps onto its table. Fields returns scan
// destinations and Values returns insert arguments, both in Columns order.
type Table[T any] struct {
	Name    string
	Columns []string
	Fields  func(*T) []any
	Values  func(T) []any
}

func (t Table[T]) selectSQL() string {
	return "SELECT " + strings.Join(t.Columns, ", ") + ", created_at FROM " + t.Name +
		" WHERE location_id = $1 ORDER BY id"
}

func (t Table[T]) deleteSQL() string {
	return "DELETE FROM " + t.Name + " WHERE location_id = $1"
}

func (t Table[T]) insertSQL() string {
	n := len(t.Columns)
	placeholders := make([]string, 0, n+2)
	for i := 1; i <= n+2; i++ {
		placeholders = append(placeholders, "$"+strconv.Itoa(i))
	}
	return "INSERT INTO " + t.Name + " (" + strings.Join(t.Columns, ", ") + ", location_id, created_at) VALUES (" +
		strings.Join(placeholders, ", ") + ")"
}
