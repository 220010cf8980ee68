package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	statusReserved = "reserved"
	statusReady    = "ready"
)

// Store persists file records keyed by PIN. Reserve is the atomic
// create-if-absent write IssueUnique depends on; a "check uniqueness then
// write" sequence would race across concurrent invocations.
type Store interface {
	Reserver
	Finalize(ctx context.Context, rec Record) error
	Release(ctx context.Context, pin string) error
	Get(ctx context.Context, pin string) (Record, error)
	Count(ctx context.Context) (int64, error)
}

// PostgresStore implements Store over the file_records table.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Reserve claims a pin with a placeholder row. It reports false without error
// when another live record already holds the pin.
func (s *PostgresStore) Reserve(ctx context.Context, pin string, ownerID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO file_records (pin, status, owner_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (pin) DO NOTHING`,
		pin, statusReserved, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("reserve pin: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve pin: %w", err)
	}
	return rows == 1, nil
}

// Finalize replaces a placeholder with the full record and marks it ready.
func (s *PostgresStore) Finalize(ctx context.Context, rec Record) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE file_records
		 SET status = $2, file_id = $3, display_name = $4, mime_type = $5, size_bytes = $6, kind = $7
		 WHERE pin = $1 AND status = $8`,
		rec.Pin, statusReady, rec.FileID, rec.DisplayName, rec.MimeType, rec.SizeBytes, rec.Kind, statusReserved,
	)
	if err != nil {
		return fmt.Errorf("finalize record %s: %w", rec.Pin, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize record %s: %w", rec.Pin, err)
	}
	if rows != 1 {
		return fmt.Errorf("finalize record %s: no reserved row", rec.Pin)
	}
	return nil
}

// Release drops a placeholder whose bind did not complete.
func (s *PostgresStore) Release(ctx context.Context, pin string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM file_records WHERE pin = $1 AND status = $2`,
		pin, statusReserved,
	)
	if err != nil {
		return fmt.Errorf("release pin %s: %w", pin, err)
	}
	return nil
}

// Get returns the ready record for a pin, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, pin string) (Record, error) {
	var rec Record
	err := s.db.GetContext(ctx, &rec,
		`SELECT pin, status, file_id, display_name, mime_type, size_bytes, kind, owner_id, uploaded_at
		 FROM file_records
		 WHERE pin = $1 AND status = $2`,
		pin, statusReady,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record %s: %w", pin, err)
	}
	return rec, nil
}

// Count returns the number of ready records, for ops reporting.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n,
		`SELECT count(*) FROM file_records WHERE status = $1`, statusReady,
	); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}
