package pipeline_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andrevros/imovelsync/internal/pipeline"
)

func TestCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo-cache.json")

	c, err := pipeline.LoadCache(path)
	if err != nil {
		t.Fatalf("missing cache must load empty: %v", err)
	}
	if c.IsSettled(482) {
		t.Error("fresh cache must not report anything settled")
	}

	if err := c.MarkMigrated(482); err != nil {
		t.Fatalf("MarkMigrated failed: %v", err)
	}
	if err := c.MarkUnavailable(483); err != nil {
		t.Fatalf("MarkUnavailable failed: %v", err)
	}

	// A fresh load must see what the first instance persisted.
	reloaded, err := pipeline.LoadCache(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if !reloaded.IsSettled(482) || !reloaded.IsSettled(483) {
		t.Error("persisted ids must be settled after reload")
	}
	if reloaded.IsSettled(999) {
		t.Error("unknown id must not be settled")
	}
}

func TestCacheDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo-cache.json")
	c, _ := pipeline.LoadCache(path)
	c.MarkMigrated(1)

	if err := c.Delete(); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("cache file should be removed")
	}
	if c.IsSettled(1) {
		t.Error("delete must also clear in-memory state")
	}
	// Deleting a cache that never hit disk is fine too.
	if err := c.Delete(); err != nil {
		t.Errorf("second delete failed: %v", err)
	}
}
