// Package collect ingests new knowledge-base articles from configured
// RSS/Atom feeds: parse, dedupe against the existing corpus, classify
// difficulty, estimate reading time, optionally fetch full text, and
// merge the survivors into the article data file.
package collect

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
	"github.com/kakehashi-site/kakehashi/internal/config"
	"github.com/kakehashi-site/kakehashi/internal/database"
)

const excerptRunes = 80

// Result holds the results of an import run.
type Result struct {
	TotalFound int
	Imported   int
	Duplicates int
	Failures   int
	Categories map[string]int
}

// Importer orchestrates feed ingestion into the article store.
type Importer struct {
	cfg     *config.Config
	reg     *catalog.Registry
	store   *catalog.Store
	db      *database.DB
	parser  *FeedParser
	fetcher *ContentFetcher
}

// NewImporter creates an Importer from the configured feed sources.
func NewImporter(cfg *config.Config, reg *catalog.Registry, store *catalog.Store, db *database.DB) *Importer {
	feeds := make([]FeedConfig, len(cfg.Sources.Feeds))
	for i, f := range cfg.Sources.Feeds {
		feeds[i] = FeedConfig{URL: f.URL, Name: f.Name, Category: f.Category}
	}

	imp := &Importer{
		cfg:    cfg,
		reg:    reg,
		store:  store,
		db:     db,
		parser: NewFeedParser(feeds),
	}
	if cfg.Import.FetchContent {
		imp.fetcher = NewContentFetcher(time.Duration(cfg.Import.FetchTimeoutSec) * time.Second)
	}
	return imp
}

// Run executes one import: every configured feed is parsed, new entries
// become articles in their feed's category, and the merged data file is
// written back. The run is recorded in the engagement database.
func (imp *Importer) Run() (*Result, error) {
	started := time.Now().UTC().Format(time.RFC3339)

	if !imp.store.Loaded() {
		if err := imp.store.Load(); err != nil {
			return nil, fmt.Errorf("loading article data: %w", err)
		}
	}

	entries := imp.parser.ParseAll(imp.cfg.Import.DaysBack)
	result := &Result{TotalFound: len(entries), Categories: make(map[string]int)}

	df := imp.store.Snapshot()
	known := knownURLs(df)
	failedDomains := make(map[string]struct{})

	for _, entry := range entries {
		if !imp.reg.KnownCategory(entry.Category) {
			log.Printf("feed %s maps to unknown category %q, skipping %s", entry.Source, entry.Category, entry.URL)
			result.Failures++
			continue
		}
		if _, dup := known[entry.URL]; dup {
			result.Duplicates++
			continue
		}

		article := imp.buildArticle(entry, failedDomains)
		df.Categories[entry.Category] = append(df.Categories[entry.Category], article)
		known[entry.URL] = struct{}{}
		result.Imported++
		result.Categories[entry.Category]++
	}

	if result.Imported > 0 {
		df.Updated = time.Now().Format("2006-01-02")
		df.Version = bumpVersion(df.Version)
		refreshCounts(df)
		if err := imp.store.Replace(df); err != nil {
			return nil, fmt.Errorf("writing merged data file: %w", err)
		}
	}

	finished := time.Now().UTC().Format(time.RFC3339)
	if imp.db != nil {
		_, err := imp.db.InsertImportRun(database.ImportRun{
			StartedAt:  started,
			FinishedAt: &finished,
			Sources:    len(imp.cfg.Sources.Feeds),
			Found:      result.TotalFound,
			Imported:   result.Imported,
			Duplicates: result.Duplicates,
			Failures:   result.Failures,
		})
		if err != nil {
			log.Printf("recording import run: %v", err)
		}
	}

	return result, nil
}

// buildArticle turns a feed entry into a knowledge-base article, pulling
// full text when the feed body was too thin to classify.
func (imp *Importer) buildArticle(entry FeedEntry, failedDomains map[string]struct{}) catalog.Article {
	content := entry.Content
	if imp.fetcher != nil && len([]rune(content)) < excerptRunes {
		domain := hostOf(entry.URL)
		if _, failed := failedDomains[domain]; !failed {
			fetched, err := imp.fetcher.Fetch(entry.URL)
			if err != nil {
				if domain != "" {
					failedDomains[domain] = struct{}{}
				}
				log.Printf("http error for %s, skipping remaining from %s", entry.URL, domain)
			} else if fetched != "" {
				content = fetched
			}
		}
	}

	date := entry.PublishedDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	return catalog.Article{
		ID:          articleID(entry.Category, entry.URL),
		Title:       entry.Title,
		Excerpt:     Excerpt(content, excerptRunes),
		Category:    imp.reg.DisplayName(entry.Category),
		Tags:        []string{entry.Source},
		Difficulty:  ClassifyDifficulty(entry.Title, content),
		Type:        ArticleType(entry.Title),
		Date:        date,
		ReadingTime: EstimateReadingTime(content),
		URL:         entry.URL,
	}
}

func knownURLs(df *catalog.DataFile) map[string]struct{} {
	known := make(map[string]struct{})
	for _, articles := range df.Categories {
		for _, a := range articles {
			if a.URL != "" {
				known[a.URL] = struct{}{}
			}
		}
	}
	return known
}

// articleID derives a stable id from the category and a short hash of
// the source URL, matching the "<category>-NNN" shape of curated ids
// without colliding with them.
func articleID(category, articleURL string) string {
	var h uint32
	for _, b := range []byte(articleURL) {
		h = h*31 + uint32(b)
	}
	return fmt.Sprintf("%s-f%06x", category, h&0xffffff)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// bumpVersion increments the patch component of a semver-ish version.
func bumpVersion(v string) string {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return v
	}
	var major, minor, patch int
	if _, err := fmt.Sscanf(v, "%d.%d.%d", &major, &minor, &patch); err != nil {
		return v
	}
	return fmt.Sprintf("%d.%d.%d", major, minor, patch+1)
}

// refreshCounts recomputes the per-category counts shown in the
// navigation tree after a merge.
func refreshCounts(df *catalog.DataFile) {
	for i := range df.Navigation.Structure {
		cat := &df.Navigation.Structure[i]
		cat.Count = len(df.Categories[cat.ID])
	}
}
