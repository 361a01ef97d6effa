package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSeed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "articles.json")
	if err := os.WriteFile(path, SeedData, 0o644); err != nil {
		t.Fatalf("writing seed data: %v", err)
	}
	return path
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(writeSeed(t), 0, nil)
	if err := store.Load(); err != nil {
		t.Fatalf("loading store: %v", err)
	}
	return store
}

func TestLoadSeedData(t *testing.T) {
	store := openTestStore(t)

	if store.Version() == "" {
		t.Error("expected a data file version")
	}

	counts := store.Counts()
	for _, id := range NewRegistry().CategoryIDs() {
		if counts[id] == 0 {
			t.Errorf("expected seed articles for category %q", id)
		}
	}

	nav := store.Navigation()
	if len(nav.Structure) == 0 {
		t.Error("expected navigation structure")
	}
	if len(nav.QuickFilters) == 0 {
		t.Error("expected quick filter definitions")
	}
	if len(nav.DifficultyFilters) == 0 {
		t.Error("expected difficulty filter definitions")
	}
}

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"), 0, nil)
	if err := store.Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
	if store.Loaded() {
		t.Error("expected store not loaded after failed load")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte("{not json"), 0o644)

	store := NewStore(path, 0, nil)
	if err := store.Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestByIDReturnsCopy(t *testing.T) {
	store := openTestStore(t)

	a := store.ByID("tax-001")
	if a == nil {
		t.Fatal("expected tax-001 in seed data")
	}
	a.Title = "mutated"

	if got := store.ByID("tax-001"); got.Title == "mutated" {
		t.Error("expected ByID to return a copy")
	}
}

func TestByIDUnknown(t *testing.T) {
	store := openTestStore(t)
	if store.ByID("nope") != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestAllSpansCategories(t *testing.T) {
	store := openTestStore(t)

	total := 0
	for _, n := range store.Counts() {
		total += n
	}
	if got := len(store.All()); got != total {
		t.Errorf("expected %d articles from All, got %d", total, got)
	}
}

func TestTagsSortedDistinct(t *testing.T) {
	store := openTestStore(t)
	tags := store.Tags()
	if len(tags) == 0 {
		t.Fatal("expected tags in seed data")
	}
	for i := 1; i < len(tags); i++ {
		if tags[i-1] >= tags[i] {
			t.Fatalf("expected sorted distinct tags, got %v", tags)
		}
	}
}

type fakeCounters map[string]Counters

func (f fakeCounters) ArticleCounters(ids []string) (map[string]Counters, error) {
	return f, nil
}

func TestCounterOverlay(t *testing.T) {
	path := writeSeed(t)
	plain := NewStore(path, 0, nil)
	if err := plain.Load(); err != nil {
		t.Fatalf("loading store: %v", err)
	}
	base := plain.ByID("tax-001").Popularity

	store := NewStore(path, 0, fakeCounters{"tax-001": {Views: 7, Helpful: 3}})
	if err := store.Load(); err != nil {
		t.Fatalf("loading store: %v", err)
	}

	a := store.ByID("tax-001")
	if a.Popularity.Views != base.Views+7 {
		t.Errorf("expected views %d, got %d", base.Views+7, a.Popularity.Views)
	}
	if a.Popularity.Helpful != base.Helpful+3 {
		t.Errorf("expected helpful %d, got %d", base.Helpful+3, a.Popularity.Helpful)
	}
}

func TestStale(t *testing.T) {
	path := writeSeed(t)
	store := NewStore(path, time.Minute, nil)

	if !store.Stale() {
		t.Error("expected unloaded store to be stale")
	}

	if err := store.Load(); err != nil {
		t.Fatalf("loading store: %v", err)
	}
	if store.Stale() {
		t.Error("expected fresh store not to be stale")
	}

	future := time.Now().Add(time.Hour)
	os.Chtimes(path, future, future)
	if !store.Stale() {
		t.Error("expected store stale after file touched")
	}
}

func TestReplaceWritesAndRefreshes(t *testing.T) {
	store := openTestStore(t)

	snap := store.Snapshot()
	snap.Categories["tax"] = append(snap.Categories["tax"], Article{
		ID:       "tax-new",
		Title:    "新文章",
		Category: "税务筹划",
	})
	snap.Version = "2.1"

	if err := store.Replace(snap); err != nil {
		t.Fatalf("replacing data: %v", err)
	}

	if store.ByID("tax-new") == nil {
		t.Error("expected new article resolvable after Replace")
	}
	if got := store.Version(); got != "2.1" {
		t.Errorf("expected version 2.1, got %q", got)
	}

	// A second store reading the same file sees the written copy.
	reread := NewStore(storePath(store), 0, nil)
	if err := reread.Load(); err != nil {
		t.Fatalf("re-reading data: %v", err)
	}
	if reread.ByID("tax-new") == nil {
		t.Error("expected written file to contain the new article")
	}
}

func storePath(s *Store) string { return s.path }

func TestSnapshotIsolated(t *testing.T) {
	store := openTestStore(t)

	snap := store.Snapshot()
	snap.Categories["tax"][0].Title = "mutated"

	if store.Category("tax")[0].Title == "mutated" {
		t.Error("expected snapshot mutation not to leak into store")
	}
}
