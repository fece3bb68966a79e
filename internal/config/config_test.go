package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadExplicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "target_dir: /exports/zed\ndb_path: /tmp/threads.db\ntags:\n  - zed\n  - ai\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TargetDir != "/exports/zed" || cfg.DBPath != "/tmp/threads.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Tags) != 2 || cfg.Tags[0] != "zed" {
		t.Errorf("tags = %v", cfg.Tags)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("missing explicit config did not error")
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("target_dir: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("invalid yaml did not error")
	}
}

func TestDefaultDBPath(t *testing.T) {
	path, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default db path: %v", err)
	}
	if filepath.Base(path) != "threads.db" {
		t.Errorf("path = %q, want threads.db leaf", path)
	}
}
