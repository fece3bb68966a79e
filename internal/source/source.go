// Package source reads conversation rows from a snapshot copy of Zed's
// threads database. Rows are only ever read; the pipeline owns nothing here.
package source

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Record is one conversation exactly as stored: a durable unique key, a raw
// payload (compressed or plain JSON), a format hint, and volatile metadata.
type Record struct {
	ID        string
	DataType  string // "json" | "zstd"
	Data      []byte
	Title     string
	UpdatedAt string
}

// Store wraps a read-only connection to a snapshot database.
type Store struct {
	db *sql.DB
}

// Open opens the snapshot at path read-only.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Count returns the total number of threads.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM threads").Scan(&n); err != nil {
		return 0, fmt.Errorf("count threads: %w", err)
	}
	return n, nil
}

// Threads returns every row, most recently updated first. The secondary id
// sort keeps the order stable when timestamps tie, which in turn keeps
// identifier assignment deterministic.
func (s *Store) Threads(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, data_type, data, summary, updated_at
		FROM threads
		ORDER BY updated_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query threads: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var title, updatedAt sql.NullString
		if err := rows.Scan(&r.ID, &r.DataType, &r.Data, &title, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		r.Title = title.String
		r.UpdatedAt = updatedAt.String
		records = append(records, r)
	}
	return records, rows.Err()
}
