// Package snapshot produces a private, read-consistent copy of Zed's live
// threads database without ever write-locking it.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrSourceUnavailable marks failures that prevent taking a consistent copy
// of the live store. Fatal for the whole run: nothing gets processed.
var ErrSourceUnavailable = errors.New("source database unavailable")

// Snapshot is a self-contained copy of the live database. It lives in its
// own temporary directory and is removed by Close.
type Snapshot struct {
	path string
	dir  string
}

// Path returns the location of the copied database file.
func (s *Snapshot) Path() string { return s.path }

// Close deletes the snapshot copy. Safe to call more than once.
func (s *Snapshot) Close() error {
	if s.dir == "" {
		return nil
	}
	dir := s.dir
	s.dir = ""
	return os.RemoveAll(dir)
}

// Acquire copies the live database at dbPath into a fresh temporary
// directory. The source is opened read-only and copied with VACUUM INTO,
// which produces a consistent image while the owning application may keep
// writing. All resources are released on every failure path.
func Acquire(ctx context.Context, dbPath string) (*Snapshot, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	src, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: open source: %v", ErrSourceUnavailable, err)
	}
	defer src.Close()

	dir, err := os.MkdirTemp("", "zedsync-snapshot-")
	if err != nil {
		return nil, fmt.Errorf("%w: create temp dir: %v", ErrSourceUnavailable, err)
	}

	dest := filepath.Join(dir, uuid.NewString()+".db")
	if _, err := src.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("%w: copy database: %v", ErrSourceUnavailable, err)
	}

	return &Snapshot{path: dest, dir: dir}, nil
}
