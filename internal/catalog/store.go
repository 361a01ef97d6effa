package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"
)

//go:embed seed.json
var SeedData []byte

// Counters are the persisted per-article engagement counters overlaid on
// top of the published popularity numbers.
type Counters struct {
	Views   int
	Helpful int
}

// CounterSource supplies persisted counters for a set of article ids.
// Implemented by the feedback database; nil means no overlay.
type CounterSource interface {
	ArticleCounters(ids []string) (map[string]Counters, error)
}

const loadAttempts = 3

// Store owns the raw knowledge-base data: the navigation tree and the
// per-category article collections, loaded from a single JSON file.
// It tracks the file version and modification time so callers can ask
// whether the in-memory copy has gone stale.
type Store struct {
	mu       sync.RWMutex
	path     string
	ttl      time.Duration
	counters CounterSource

	data     *DataFile
	byID     map[string]*Article
	loadedAt time.Time
	modTime  time.Time
}

// NewStore creates a Store for the given data file. ttl bounds how long a
// loaded copy is considered fresh; zero disables time-based staleness.
func NewStore(path string, ttl time.Duration, counters CounterSource) *Store {
	return &Store{path: path, ttl: ttl, counters: counters}
}

// Load reads and parses the data file, retrying transient read failures
// with a short backoff. Counters from the feedback database are overlaid
// onto each article's popularity.
func (s *Store) Load() error {
	var (
		raw []byte
		err error
	)
	for attempt := 1; attempt <= loadAttempts; attempt++ {
		raw, err = os.ReadFile(s.path)
		if err == nil {
			break
		}
		if attempt < loadAttempts {
			log.Printf("reading data file (attempt %d/%d): %v", attempt, loadAttempts, err)
			time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
		}
	}
	if err != nil {
		return fmt.Errorf("reading data file: %w", err)
	}

	var df DataFile
	if err := json.Unmarshal(raw, &df); err != nil {
		return fmt.Errorf("parsing data file: %w", err)
	}
	if df.Categories == nil {
		df.Categories = make(map[string][]Article)
	}

	byID := make(map[string]*Article)
	for cat := range df.Categories {
		articles := df.Categories[cat]
		for i := range articles {
			byID[articles[i].ID] = &articles[i]
		}
	}

	if s.counters != nil {
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		overlay, err := s.counters.ArticleCounters(ids)
		if err != nil {
			log.Printf("loading article counters: %v", err)
		} else {
			for id, c := range overlay {
				a := byID[id]
				a.Popularity.Helpful += c.Helpful
				a.Popularity.Views += c.Views
				a.Views += c.Views
			}
		}
	}

	info, statErr := os.Stat(s.path)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = &df
	s.byID = byID
	s.loadedAt = time.Now()
	if statErr == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// Reload re-reads the data file, replacing the in-memory copy.
func (s *Store) Reload() error {
	return s.Load()
}

// Loaded reports whether a data file has been loaded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data != nil
}

// Stale reports whether the in-memory copy should be re-read: either the
// TTL has elapsed or the file on disk has a newer modification time.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return true
	}
	if s.ttl > 0 && time.Since(s.loadedAt) > s.ttl {
		return true
	}
	if info, err := os.Stat(s.path); err == nil && info.ModTime().After(s.modTime) {
		return true
	}
	return false
}

// Version returns the data file version string.
func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return ""
	}
	return s.data.Version
}

// Navigation returns the navigation tree section.
func (s *Store) Navigation() NavigationData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return NavigationData{}
	}
	return s.data.Navigation
}

// Category returns the article collection for one category id.
func (s *Store) Category(categoryID string) []Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil
	}
	return s.data.Categories[categoryID]
}

// All returns every article across all categories, in stable category
// order then data-file order.
func (s *Store) All() []Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil
	}
	cats := make([]string, 0, len(s.data.Categories))
	for id := range s.data.Categories {
		cats = append(cats, id)
	}
	sort.Strings(cats)

	var out []Article
	for _, id := range cats {
		out = append(out, s.data.Categories[id]...)
	}
	return out
}

// ByID looks up a single article. Returns nil when unknown.
func (s *Store) ByID(id string) *Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.byID[id]; ok {
		copied := *a
		return &copied
	}
	return nil
}

// Tags returns the distinct tag inventory across the corpus, sorted.
func (s *Store) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, articles := range s.data.Categories {
		for _, a := range articles {
			for _, t := range a.Tags {
				seen[t] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Counts returns the number of articles per category id.
func (s *Store) Counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	if s.data == nil {
		return out
	}
	for id, articles := range s.data.Categories {
		out[id] = len(articles)
	}
	return out
}

// Replace swaps the in-memory data and writes it back to disk. Used by
// the importer after merging new articles.
func (s *Store) Replace(df *DataFile) error {
	raw, err := json.MarshalIndent(df, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding data file: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("writing data file: %w", err)
	}

	byID := make(map[string]*Article)
	for cat := range df.Categories {
		articles := df.Categories[cat]
		for i := range articles {
			byID[articles[i].ID] = &articles[i]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = df
	s.byID = byID
	s.loadedAt = time.Now()
	if info, err := os.Stat(s.path); err == nil {
		s.modTime = info.ModTime()
	}
	return nil
}

// Snapshot returns a deep-enough copy of the data file for mutation by
// the importer (category slices are copied; articles are values).
func (s *Store) Snapshot() *DataFile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data == nil {
		return &DataFile{Categories: make(map[string][]Article)}
	}
	df := &DataFile{
		Version:    s.data.Version,
		Updated:    s.data.Updated,
		Navigation: s.data.Navigation,
		Categories: make(map[string][]Article, len(s.data.Categories)),
	}
	for id, articles := range s.data.Categories {
		copied := make([]Article, len(articles))
		copy(copied, articles)
		df.Categories[id] = copied
	}
	return df
}
