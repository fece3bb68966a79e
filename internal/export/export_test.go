package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Napageneral/zedsync/internal/artifact"
	"github.com/Napageneral/zedsync/internal/testutil"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// threadPayload builds a minimal current-schema document.
func threadPayload(t *testing.T, title string, texts ...string) []byte {
	t.Helper()

	var messages []interface{}
	for i, text := range texts {
		role := "User"
		if i%2 == 1 {
			role = "Agent"
		}
		messages = append(messages, map[string]interface{}{
			role: map[string]interface{}{
				"content": []interface{}{map[string]interface{}{"Text": text}},
			},
		})
	}
	if messages == nil {
		messages = []interface{}{}
	}

	data, err := json.Marshal(map[string]interface{}{
		"title":      title,
		"updated_at": "2026-03-01T10:00:00Z",
		"messages":   messages,
	})
	require.NoError(t, err)
	return data
}

func runExport(t *testing.T, dbPath, targetDir string, opts Options) Stats {
	t.Helper()
	opts.DBPath = dbPath
	opts.TargetDir = targetDir
	opts.Logger = quietLogger()
	stats, err := Run(context.Background(), opts)
	require.NoError(t, err)
	return stats
}

func listArtifacts(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	found := make(map[string]string)
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			h, err := artifact.ParseHeaderFile(filepath.Join(dir, e.Name()))
			require.NoError(t, err)
			found[e.Name()] = h.ID
		}
	}
	return found
}

func TestRunIdempotent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")
	rows := []testutil.ThreadRow{
		{ID: "abcdef0123456789", Summary: "First", UpdatedAt: "2026-03-01T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "First thread", "hello", "hi")},
		{ID: "fedcba9876543210", Summary: "Second", UpdatedAt: "2026-03-02T10:00:00Z",
			DataType: "zstd", Data: testutil.CompressZstd(t, threadPayload(t, "Second thread", "zstd payload"))},
	}
	db := testutil.CreateThreadsDB(t, rows)

	stats := runExport(t, db, target, Options{})
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 2, stats.Created)
	require.Equal(t, 0, stats.Updated)
	require.Equal(t, 0, stats.Unchanged)

	files := listArtifacts(t, target)
	require.Len(t, files, 2)
	require.Contains(t, files, "abcdef01_first-thread.md")
	require.Contains(t, files, "fedcba98_second-thread.md")

	// Backdate everything so any rewrite would be visible.
	old := time.Now().Add(-24 * time.Hour)
	for name := range files {
		require.NoError(t, os.Chtimes(filepath.Join(target, name), old, old))
	}

	stats = runExport(t, db, target, Options{})
	require.Equal(t, 2, stats.Unchanged)
	require.Equal(t, 0, stats.Created)
	require.Equal(t, 0, stats.Updated)

	for name := range files {
		info, err := os.Stat(filepath.Join(target, name))
		require.NoError(t, err)
		require.True(t, info.ModTime().Equal(old), "unchanged artifact %s was rewritten", name)
	}
}

func TestRunDetectsContentChange(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")
	key := "abcdef0123456789"

	db1 := testutil.CreateThreadsDB(t, []testutil.ThreadRow{
		{ID: key, Summary: "Thread", UpdatedAt: "2026-03-01T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "Thread", "draft answer")},
	})
	runExport(t, db1, target, Options{})

	before, err := os.ReadFile(filepath.Join(target, "abcdef01_thread.md"))
	require.NoError(t, err)

	db2 := testutil.CreateThreadsDB(t, []testutil.ThreadRow{
		{ID: key, Summary: "Thread", UpdatedAt: "2026-03-01T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "Thread", "draft answer", "revised answer")},
	})
	stats := runExport(t, db2, target, Options{})
	require.Equal(t, 1, stats.Updated)
	require.Equal(t, 0, stats.Created)

	after, err := os.ReadFile(filepath.Join(target, "abcdef01_thread.md"))
	require.NoError(t, err)
	require.NotEqual(t, string(before), string(after))
	require.Contains(t, string(after), "revised answer")

	files := listArtifacts(t, target)
	require.Len(t, files, 1, "updated thread must replace, not duplicate")
}

func TestRunRenamedTitle(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")
	key := "abcdef0123456789"

	db1 := testutil.CreateThreadsDB(t, []testutil.ThreadRow{
		{ID: key, Summary: "Old", UpdatedAt: "2026-03-01T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "Old title", "body")},
	})
	runExport(t, db1, target, Options{})
	require.Contains(t, listArtifacts(t, target), "abcdef01_old-title.md")

	db2 := testutil.CreateThreadsDB(t, []testutil.ThreadRow{
		{ID: key, Summary: "New", UpdatedAt: "2026-03-02T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "New title", "body")},
	})
	stats := runExport(t, db2, target, Options{})
	require.Equal(t, 1, stats.Updated)

	files := listArtifacts(t, target)
	require.Len(t, files, 1)
	require.Contains(t, files, "abcdef01_new-title.md")
}

func TestRunIdentifierCollision(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")
	rows := []testutil.ThreadRow{
		{ID: "aaaaaaaa11112222", Summary: "A", UpdatedAt: "2026-03-03T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "Thread A", "a")},
		{ID: "aaaaaaaa11113333", Summary: "B", UpdatedAt: "2026-03-02T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "Thread B", "b")},
		{ID: "aaaaaaaa11114444", Summary: "C", UpdatedAt: "2026-03-01T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "Thread C", "c")},
	}
	db := testutil.CreateThreadsDB(t, rows)

	stats := runExport(t, db, target, Options{})
	require.Equal(t, 3, stats.Created)

	files := listArtifacts(t, target)
	require.Len(t, files, 3)
	// Newest thread wins the short prefix, the next escalates to 12 chars,
	// and the last one exhausts both shared prefixes and keeps its full key.
	require.Equal(t, "aaaaaaaa11112222", files["aaaaaaaa_thread-a.md"])
	require.Equal(t, "aaaaaaaa11113333", files["aaaaaaaa1111_thread-b.md"])
	require.Equal(t, "aaaaaaaa11114444", files["aaaaaaaa11114444_thread-c.md"])

	// A re-run keeps every name: the filesystem seeds the registry.
	stats = runExport(t, db, target, Options{})
	require.Equal(t, 3, stats.Unchanged)
	require.Len(t, listArtifacts(t, target), 3)
}

func TestRunSkipsUndecodable(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")
	rows := []testutil.ThreadRow{
		{ID: "good000000000001", Summary: "Good", UpdatedAt: "2026-03-03T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "Good thread", "fine")},
		{ID: "bad0000000000002", Summary: "Bad", UpdatedAt: "2026-03-02T10:00:00Z",
			DataType: "json", Data: []byte(`{"neither": "schema"}`)},
		{ID: "bad0000000000003", Summary: "Corrupt", UpdatedAt: "2026-03-01T10:00:00Z",
			DataType: "zstd", Data: []byte{0x28, 0xb5, 0x2f, 0xfd, 0xff, 0xff}},
	}
	db := testutil.CreateThreadsDB(t, rows)

	stats := runExport(t, db, target, Options{})
	require.Equal(t, 3, stats.Total)
	require.Equal(t, 1, stats.Created)
	require.Equal(t, 2, stats.Undecodable)
	require.Equal(t, 0, stats.Failed)
	require.Len(t, listArtifacts(t, target), 1)
}

func TestRunForceRewrites(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")
	db := testutil.CreateThreadsDB(t, []testutil.ThreadRow{
		{ID: "abcdef0123456789", Summary: "T", UpdatedAt: "2026-03-01T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "Thread", "body")},
	})
	runExport(t, db, target, Options{})

	name := "abcdef01_thread.md"
	old := time.Now().Add(-24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(target, name), old, old))

	stats := runExport(t, db, target, Options{Force: true})
	require.Equal(t, 1, stats.Updated)

	info, err := os.Stat(filepath.Join(target, name))
	require.NoError(t, err)
	require.False(t, info.ModTime().Equal(old), "force did not rewrite")
}

func TestRunWriteFailureIsPerRecord(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")
	rows := []testutil.ThreadRow{
		{ID: "abcdef0123456789", Summary: "Blocked", UpdatedAt: "2026-03-02T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "Blocked", "body")},
		{ID: "fedcba9876543210", Summary: "Fine", UpdatedAt: "2026-03-01T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "Fine", "body")},
	}
	db := testutil.CreateThreadsDB(t, rows)

	// A directory squatting on the artifact's final name makes the rename
	// into place fail for that record only.
	require.NoError(t, os.MkdirAll(filepath.Join(target, "abcdef01_blocked.md"), 0o755))

	stats := runExport(t, db, target, Options{})
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 1, stats.Created)

	h, err := artifact.ParseHeaderFile(filepath.Join(target, "fedcba98_fine.md"))
	require.NoError(t, err)
	require.Equal(t, "fedcba9876543210", h.ID)
}

func TestRunMissingSource(t *testing.T) {
	_, err := Run(context.Background(), Options{
		DBPath:    filepath.Join(t.TempDir(), "nope.db"),
		TargetDir: t.TempDir(),
		Logger:    quietLogger(),
	})
	require.Error(t, err)
}

func TestRunTagsInHeader(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out")
	db := testutil.CreateThreadsDB(t, []testutil.ThreadRow{
		{ID: "abcdef0123456789", Summary: "T", UpdatedAt: "2026-03-01T10:00:00Z",
			DataType: "json", Data: threadPayload(t, "Thread", "body")},
	})
	runExport(t, db, target, Options{Tags: []string{"zed", "ai"}})

	h, err := artifact.ParseHeaderFile(filepath.Join(target, "abcdef01_thread.md"))
	require.NoError(t, err)
	require.Equal(t, []string{"zed", "ai"}, h.Tags)
}
