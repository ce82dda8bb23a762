package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Records is the PostgreSQL repository for one resource table.
type Records[T any] struct {
	db        *sql.DB
	table     Table[T]
	selectSQL string
	deleteSQL string
	insertSQL string
}

// NewRecords binds table to the pool owned by p.
func NewRecords[T any](p *Postgres, table Table[T]) *Records[T] {
	return &Records[T]{
		db:        p.db,
		table:     table,
		selectSQL: table.selectSQL(),
		deleteSQL: table.deleteSQL(),
		insertSQL: table.insertSQL(),
	}
}

// Select returns every stored row for locationID in insertion order.
func (r *Records[T]) Select(ctx context.Context, locationID int64) ([]Row[T], error) {
	start := time.Now()
	rows, err := r.db.QueryContext(ctx, r.selectSQL, locationID)
	if err != nil {
		observeStore("select", r.table.Name, start, err)
		return nil, fmt.Errorf("select %s: %w", r.table.Name, err)
	}
	defer rows.Close()

	var out []Row[T]
	for rows.Next() {
		var row Row[T]
		dest := append(r.table.Fields(&row.Record), &row.CreatedAt)
		if err := rows.Scan(dest...); err != nil {
			observeStore("select", r.table.Name, start, err)
			return nil, fmt.Errorf("scan %s: %w", r.table.Name, err)
		}
		out = append(out, row)
	}
	err = rows.Err()
	observeStore("select", r.table.Name, start, err)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", r.table.Name, err)
	}
	return out, nil
}

// Replace deletes the existing batch for locationID and inserts records with
// createdAt, in one transaction. Concurrent replaces for the same location are
// serialized with a transaction-scoped advisory lock so exactly one batch
// survives, and readers never observe the table empty mid-refresh.
func (r *Records[T]) Replace(ctx context.Context, locationID int64, records []T, createdAt time.Time) (err error) {
	start := time.Now()
	defer func() { observeStore("replace", r.table.Name, start, err) }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s replace: %w", r.table.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), $2::int)`, r.table.Name, locationID); err != nil {
		return fmt.Errorf("lock %s: %w", r.table.Name, err)
	}
	if err = r.deleteRecords(ctx, tx, locationID); err != nil {
		return err
	}
	if len(records) > 0 {
		stmt, perr := tx.PrepareContext(ctx, r.insertSQL)
		if perr != nil {
			err = fmt.Errorf("prepare %s insert: %w", r.table.Name, perr)
			return err
		}
		defer stmt.Close()
		for _, rec := range records {
			if err = r.insertRecord(ctx, stmt, rec, locationID, createdAt); err != nil {
				return err
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s replace: %w", r.table.Name, err)
	}
	return nil
}

func (r *Records[T]) deleteRecords(ctx context.Context, tx *sql.Tx, locationID int64) error {
	if _, err := tx.ExecContext(ctx, r.deleteSQL, locationID); err != nil {
		return fmt.Errorf("delete %s: %w", r.table.Name, err)
	}
	return nil
}

func (r *Records[T]) insertRecord(ctx context.Context, stmt *sql.Stmt, rec T, locationID int64, createdAt time.Time) error {
	args := append(r.table.Values(rec), locationID, createdAt)
	if _, err := stmt.ExecContext(ctx, args...); err != nil {
		return fmt.Errorf("insert %s: %w", r.table.Name, err)
	}
	return nil
}
