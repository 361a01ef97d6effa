package database

import (
	"path/filepath"
	"testing"
)

func TestMigrateSetsVersion(t *testing.T) {
	db := openTestDB(t)

	version, err := getSchemaVersion(db.conn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := db.IncrementViews("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db.Close()

	c, _ := db.GetCounters("a")
	if c.Views != 1 {
		t.Errorf("expected data to survive reopen, got %d views", c.Views)
	}
}
