package ingestion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const defaultDeadLettersTable = "ingest_dead_letters"

// DeadLetterReader counts uplinks the ingestion pipeline could not decode.
// The pipeline writes one row per failed payload; the scan only ever reads.
type DeadLetterReader struct {
	db    *sql.DB
	table string
}

// NewDeadLetterReader constructs a reader.
func NewDeadLetterReader(db *sql.DB, opts ...ReaderOption) *DeadLetterReader {
	reader := &DeadLetterReader{db: db, table: defaultDeadLettersTable}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// ReaderOption configures the reader.
type ReaderOption func(*DeadLetterReader)

// WithDeadLettersTable overrides the default table name.
func WithDeadLettersTable(table string) ReaderOption {
	return func(reader *DeadLetterReader) {
		if table != "" {
			reader.table = table
		}
	}
}

// CountSince returns the number of dead letters recorded for a tenant at or
// after the given instant.
func (r *DeadLetterReader) CountSince(ctx context.Context, tenantID string, since time.Time) (int, error) {
	if r == nil || r.db == nil {
		return 0, errors.New("dead letter reader: nil db")
	}
	if tenantID == "" {
		return 0, errors.New("dead letter reader: empty tenant id")
	}

	query := fmt.Sprintf(`
SELECT COUNT(*)
FROM %s
WHERE tenant_id = $1 AND created_at >= $2`, r.table)

	var count int
	if err := r.db.QueryRowContext(ctx, query, tenantID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
