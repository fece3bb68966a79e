// Package testutil builds throwaway threads databases for tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"
)

// ThreadRow is one row of the threads table as Zed writes it.
type ThreadRow struct {
	ID        string
	ParentID  string
	Summary   string
	UpdatedAt string
	DataType  string
	Data      []byte
}

const threadsSchema = `
CREATE TABLE IF NOT EXISTS threads (
	id TEXT PRIMARY KEY,
	parent_id TEXT,
	summary TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	data_type TEXT NOT NULL,
	data BLOB NOT NULL
);`

// CreateThreadsDB writes a threads.db under t.TempDir() containing the given
// rows and returns its path.
func CreateThreadsDB(t *testing.T, rows []ThreadRow) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "threads.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(threadsSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	for _, row := range rows {
		var parent interface{}
		if row.ParentID != "" {
			parent = row.ParentID
		}
		_, err := db.Exec(
			"INSERT INTO threads (id, parent_id, summary, updated_at, data_type, data) VALUES (?, ?, ?, ?, ?, ?)",
			row.ID, parent, row.Summary, row.UpdatedAt, row.DataType, row.Data,
		)
		if err != nil {
			t.Fatalf("insert thread %s: %v", row.ID, err)
		}
	}
	return path
}

// CompressZstd returns data as a zstd frame, the way Zed stores newer
// thread payloads.
func CompressZstd(t *testing.T, data []byte) []byte {
	t.Helper()

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("create zstd writer: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}
