package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
	"github.com/kakehashi-site/kakehashi/internal/config"
	"github.com/kakehashi-site/kakehashi/internal/database"
)

func newTestServer(t *testing.T) (*Server, *database.DB) {
	t.Helper()
	dir := t.TempDir()

	dataFile := filepath.Join(dir, "articles.json")
	if err := os.WriteFile(dataFile, catalog.SeedData, 0o644); err != nil {
		t.Fatalf("writing seed data: %v", err)
	}

	db, err := database.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Site.Title = "中日商务之桥"
	cfg.Content.PageSize = 9

	store := catalog.NewStore(dataFile, 0, db)
	srv, err := New(cfg, store, db)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	return srv, db
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	w := get(t, srv, "/healthz")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestKnowledgePage(t *testing.T) {
	srv, _ := newTestServer(t)
	w := get(t, srv, "/")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "knowledgeNavigation") {
		t.Error("expected navigation sidebar in page")
	}
	if !strings.Contains(body, `id="all-articles"`) {
		t.Error("expected aggregate article container")
	}
	if !strings.Contains(body, "中日商务之桥") {
		t.Error("expected site title")
	}
}

func TestKnowledgeCategoryFilter(t *testing.T) {
	srv, _ := newTestServer(t)
	w := get(t, srv, "/?category=tax&difficulty=intermediate")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "tax-001") {
		t.Error("expected intermediate tax article in page")
	}
	if strings.Contains(body, "/article/tax-002") {
		t.Error("expected advanced article filtered out")
	}

	result := srv.renderer.LastResult()
	if result.ContainerID != "tax-articles" {
		t.Errorf("expected tax-articles container, got %q", result.ContainerID)
	}
	if result.Count != 2 {
		t.Errorf("expected 2 matches, got %d", result.Count)
	}
}

func TestKnowledgeConcurrentRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	const iterations = 50
	categories := []string{"tax", "visa"}
	errs := make(chan string, len(categories)*iterations)

	var wg sync.WaitGroup
	for _, cat := range categories {
		wg.Add(1)
		go func(cat string) {
			defer wg.Done()
			marker := fmt.Sprintf(`<div id="%s-articles" class="article-container">`, cat)
			for i := 0; i < iterations; i++ {
				req := httptest.NewRequest("GET", "/?category="+cat, nil)
				w := httptest.NewRecorder()
				srv.Handler().ServeHTTP(w, req)
				if w.Code != http.StatusOK {
					errs <- fmt.Sprintf("category %s: status %d", cat, w.Code)
					continue
				}
				if !strings.Contains(w.Body.String(), marker) {
					errs <- fmt.Sprintf("category %s: response rendered for another category", cat)
				}
			}
		}(cat)
	}
	wg.Wait()
	close(errs)

	for msg := range errs {
		t.Error(msg)
	}
}

func TestKnowledgeStaleReloadRefreshesNavigation(t *testing.T) {
	dir := t.TempDir()
	dataFile := filepath.Join(dir, "articles.json")
	if err := os.WriteFile(dataFile, catalog.SeedData, 0o644); err != nil {
		t.Fatalf("writing seed data: %v", err)
	}

	db, err := database.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{}
	cfg.Site.Title = "中日商务之桥"
	cfg.Content.PageSize = 9

	store := catalog.NewStore(dataFile, 0, db)
	srv, err := New(cfg, store, db)
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	if w := get(t, srv, "/"); !strings.Contains(w.Body.String(), "knowledgeNavigation") {
		t.Fatal("expected navigation sidebar in page")
	}

	df := store.Snapshot()
	df.Navigation.Structure[0].Count = 77
	raw, err := json.Marshal(df)
	if err != nil {
		t.Fatalf("encoding data file: %v", err)
	}
	if err := os.WriteFile(dataFile, raw, 0o644); err != nil {
		t.Fatalf("rewriting data file: %v", err)
	}
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(dataFile, future, future); err != nil {
		t.Fatalf("touching data file: %v", err)
	}

	w := get(t, srv, "/")
	if !strings.Contains(w.Body.String(), `<span class="category-count">77</span>`) {
		t.Error("expected sidebar to show the reloaded category count")
	}
}

func TestKnowledgeSearchQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	w := get(t, srv, "/?q="+url.QueryEscape("协定"))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tax-002") {
		t.Error("expected search hit for 协定")
	}
}

func TestKnowledgeEmptyResult(t *testing.T) {
	srv, _ := newTestServer(t)
	w := get(t, srv, "/?q="+url.QueryEscape("绝对不会命中的词"))

	if !strings.Contains(w.Body.String(), "暂无匹配内容") {
		t.Error("expected empty state message")
	}
}

func TestKnowledgePageClamped(t *testing.T) {
	srv, _ := newTestServer(t)
	w := get(t, srv, "/?category=tax&page=99")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := srv.renderer.LastResult().Pagination.Page; got != 1 {
		t.Errorf("expected page clamped to 1 for 5 seed articles, got %d", got)
	}
}

func TestQueryReplayIsStateless(t *testing.T) {
	srv, _ := newTestServer(t)

	get(t, srv, "/?category=tax")
	get(t, srv, "/")

	if got := srv.manager.State().Filters.Category; got != "all" {
		t.Errorf("expected bare request to reset filters, got %q", got)
	}
}

func TestSearchRedirect(t *testing.T) {
	srv, _ := newTestServer(t)
	w := get(t, srv, "/search?q=%20签证%20")

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	loc := w.Header().Get("Location")
	if loc != "/?q="+url.QueryEscape("签证") {
		t.Errorf("unexpected redirect target %q", loc)
	}
}

func TestArticlePage(t *testing.T) {
	srv, db := newTestServer(t)
	w := get(t, srv, "/article/tax-001")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "消费税申报指南") {
		t.Error("expected article title in page")
	}

	c, _ := db.GetCounters("tax-001")
	if c.Views != 1 {
		t.Errorf("expected view recorded, got %d", c.Views)
	}
}

func TestArticleNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := get(t, srv, "/article/nope"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestHelpfulVote(t *testing.T) {
	srv, db := newTestServer(t)

	req := httptest.NewRequest("POST", "/article/tax-001/helpful", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/article/tax-001" {
		t.Errorf("unexpected redirect %q", loc)
	}

	c, _ := db.GetCounters("tax-001")
	if c.Helpful != 1 {
		t.Errorf("expected helpful vote recorded, got %d", c.Helpful)
	}
}

func TestHelpfulVoteUnknownArticle(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest("POST", "/article/nope/helpful", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestStaticServed(t *testing.T) {
	srv, _ := newTestServer(t)
	w := get(t, srv, "/static/style.css")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for stylesheet, got %d", w.Code)
	}
}
