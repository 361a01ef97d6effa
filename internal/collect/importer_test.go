package collect

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
	"github.com/kakehashi-site/kakehashi/internal/config"
	"github.com/kakehashi-site/kakehashi/internal/database"
)

func rssFeed(t *testing.T, items string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Test Feed</title>%s</channel></rss>`, items)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func feedItem(link, title, desc string, published time.Time) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>%s</description><pubDate>%s</pubDate></item>`,
		title, link, desc, published.Format(time.RFC1123Z))
}

func newImportFixture(t *testing.T, feedURL, category string) (*Importer, *catalog.Store, *database.DB) {
	t.Helper()
	dir := t.TempDir()

	dataFile := filepath.Join(dir, "articles.json")
	if err := os.WriteFile(dataFile, catalog.SeedData, 0o644); err != nil {
		t.Fatalf("writing seed data: %v", err)
	}
	store := catalog.NewStore(dataFile, 0, nil)
	if err := store.Load(); err != nil {
		t.Fatalf("loading store: %v", err)
	}

	db, err := database.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Sources.Feeds = []config.Feed{{URL: feedURL, Name: "测试源", Category: category}}
	cfg.Import.DaysBack = 30
	cfg.Import.FetchContent = false

	return NewImporter(cfg, catalog.NewRegistry(), store, db), store, db
}

func TestImportRun(t *testing.T) {
	now := time.Now()
	srv := rssFeed(t,
		feedItem("https://news.example.com/tax-treaty", "中日税收协定深度解析", "协定适用范围", now.AddDate(0, 0, -1))+
			feedItem("https://news.example.com/consumption-tax", "什么是消费税申报？", "面向新设立企业", now.AddDate(0, 0, -2)),
	)

	imp, store, db := newImportFixture(t, srv.URL, "tax")
	before := store.Counts()["tax"]

	result, err := imp.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TotalFound != 2 || result.Imported != 2 {
		t.Fatalf("expected 2 imported, got %+v", result)
	}
	if got := store.Counts()["tax"]; got != before+2 {
		t.Errorf("expected %d tax articles after import, got %d", before+2, got)
	}

	// The new articles carry classified metadata.
	var found *catalog.Article
	for _, a := range store.Category("tax") {
		if a.URL == "https://news.example.com/tax-treaty" {
			found = &a
			break
		}
	}
	if found == nil {
		t.Fatal("expected imported article resolvable by URL")
	}
	if found.Category != "税务筹划" {
		t.Errorf("expected display-name category, got %q", found.Category)
	}
	if found.Difficulty != "高级" {
		t.Errorf("expected classified difficulty, got %q", found.Difficulty)
	}
	if found.Type != catalog.TypeArticle {
		t.Errorf("expected article type, got %q", found.Type)
	}

	run, err := db.GetLastImportRun()
	if err != nil || run == nil {
		t.Fatalf("expected recorded import run, got %v, %v", run, err)
	}
	if run.Imported != 2 {
		t.Errorf("expected run imported 2, got %d", run.Imported)
	}
}

func TestImportDedupesByURL(t *testing.T) {
	now := time.Now()
	srv := rssFeed(t, feedItem("https://news.example.com/one", "法人税基础指南", "概要", now))

	imp, store, _ := newImportFixture(t, srv.URL, "tax")
	if _, err := imp.Run(); err != nil {
		t.Fatalf("first run: %v", err)
	}
	after := store.Counts()["tax"]

	result, err := imp.Run()
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Imported != 0 || result.Duplicates != 1 {
		t.Errorf("expected duplicate skipped, got %+v", result)
	}
	if got := store.Counts()["tax"]; got != after {
		t.Errorf("expected count unchanged, got %d", got)
	}
}

func TestImportUnknownCategoryCountsFailure(t *testing.T) {
	now := time.Now()
	srv := rssFeed(t, feedItem("https://news.example.com/x", "标题", "内容", now))

	imp, store, _ := newImportFixture(t, srv.URL, "bogus")
	before := len(store.All())

	result, err := imp.Run()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Failures != 1 || result.Imported != 0 {
		t.Errorf("expected 1 failure, got %+v", result)
	}
	if got := len(store.All()); got != before {
		t.Errorf("expected corpus unchanged, got %d", got)
	}
}

func TestImportBumpsVersionAndCounts(t *testing.T) {
	now := time.Now()
	srv := rssFeed(t, feedItem("https://news.example.com/visa", "经营管理签证更新要点", "更新材料", now))

	imp, store, _ := newImportFixture(t, srv.URL, "visa")
	oldVersion := store.Version()

	if _, err := imp.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.Version() == oldVersion {
		t.Error("expected version bump after import")
	}
	for _, cat := range store.Navigation().Structure {
		if cat.ID == "visa" && cat.Count != store.Counts()["visa"] {
			t.Errorf("expected navigation count refreshed, got %d vs %d", cat.Count, store.Counts()["visa"])
		}
	}
}

func TestArticleIDStable(t *testing.T) {
	a := articleID("tax", "https://example.com/x")
	b := articleID("tax", "https://example.com/x")
	if a != b {
		t.Error("expected stable id for same URL")
	}
	if a == articleID("tax", "https://example.com/y") {
		t.Error("expected different ids for different URLs")
	}
	if a[:4] != "tax-" {
		t.Errorf("expected category prefix, got %q", a)
	}
}

func TestBumpVersion(t *testing.T) {
	if got := bumpVersion("2.1.0"); got != "2.1.1" {
		t.Errorf("expected 2.1.1, got %q", got)
	}
	if got := bumpVersion("not-semver"); got != "not-semver" {
		t.Errorf("expected pass-through, got %q", got)
	}
}
