package mlgitconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitCreatesDirectoryTreeAndDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, sub := range []string{"objects", "manifests", "raw", "enriched"} {
		if fi, err := os.Stat(filepath.Join(dir, sub)); err != nil || !fi.IsDir() {
			t.Errorf("%s was not created as a directory: %v", sub, err)
		}
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.DynamicWorkers != 8 {
		t.Errorf("DynamicWorkers = %d, want 8", cfg.Scheduler.DynamicWorkers)
	}
}

func TestInitIsIdempotentAndPreservesEdits(t *testing.T) {
	dir := t.TempDir()
	if err := Init(dir); err != nil {
		t.Fatalf("Init #1: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Repo.Commit = "deadbeef"
	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := Init(dir); err != nil {
		t.Fatalf("Init #2: %v", err)
	}
	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after second Init: %v", err)
	}
	if got.Repo.Commit != "deadbeef" {
		t.Errorf("Repo.Commit = %q, want preserved %q", got.Repo.Commit, "deadbeef")
	}
}

func TestLoadMissingConfig(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil {
		t.Fatalf("Load of uninitialized directory succeeded, want an error")
	}
}
