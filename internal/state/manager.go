package state

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
	"github.com/kakehashi-site/kakehashi/internal/eventbus"
)

// Bus events emitted by the Manager.
const (
	EventUpdate = "content:update"
	EventReset  = "filter:reset"
)

const historyLimit = 50

// UpdatePayload is the data carried by EventUpdate.
type UpdatePayload struct {
	State     State
	Updates   map[string]any
	Previous  State
	Timestamp time.Time
}

// HistoryEntry records one applied update.
type HistoryEntry struct {
	Updates   map[string]any
	Previous  State
	Timestamp time.Time
}

// Subscriber receives the post-update state snapshot and the update
// document that produced it (nil on immediate invocation).
type Subscriber func(s State, updates map[string]any)

type subscription struct {
	id    string
	paths []string
	fn    Subscriber
}

// Manager owns the State. All reads return snapshots; all writes go
// through Update/UpdateFilter/UpdatePagination and notify subscribers.
type Manager struct {
	mu      sync.Mutex
	bus     *eventbus.Bus
	state   State
	history []HistoryEntry
	subs    []*subscription
}

// NewManager creates a Manager with default state, wired to the bus.
func NewManager(bus *eventbus.Bus) *Manager {
	return &Manager{bus: bus, state: initialState()}
}

// State returns a snapshot of the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// History returns the recorded update history, oldest first.
func (m *Manager) History() []HistoryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryEntry(nil), m.history...)
}

// SubOption configures a subscription.
type SubOption func(*subConfig)

type subConfig struct {
	immediate bool
}

// Immediate invokes the subscriber once at registration with the current
// state.
func Immediate() SubOption {
	return func(c *subConfig) { c.immediate = true }
}

// Subscribe registers a subscriber. With paths, the subscriber only runs
// when an update document touches one of the listed dot-paths. The
// returned function unsubscribes.
func (m *Manager) Subscribe(fn Subscriber, paths []string, opts ...SubOption) func() {
	var cfg subConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	sub := &subscription{id: uuid.NewString(), paths: paths, fn: fn}
	m.mu.Lock()
	m.subs = append(m.subs, sub)
	snapshot := m.state.clone()
	m.mu.Unlock()

	if cfg.immediate {
		fn(snapshot, nil)
	}

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subs {
			if s.id == sub.id {
				m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
				return
			}
		}
	}
}

// Update deep-merges an update document into the state, records history,
// notifies path-matching subscribers, and emits EventUpdate.
func (m *Manager) Update(doc map[string]any) {
	if len(doc) == 0 {
		return
	}
	m.apply(doc)
}

// UpdateFunc computes the update document from the current state.
func (m *Manager) UpdateFunc(fn func(s State) map[string]any) {
	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()
	m.Update(fn(snapshot))
}

func (m *Manager) apply(doc map[string]any) {
	m.mu.Lock()
	previous := m.state.clone()
	touched := applyDoc(&m.state, doc)
	now := time.Now()

	m.history = append(m.history, HistoryEntry{Updates: doc, Previous: previous, Timestamp: now})
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}

	snapshot := m.state.clone()
	subs := append([]*subscription(nil), m.subs...)
	m.mu.Unlock()

	for _, sub := range subs {
		if !sub.matches(touched) {
			continue
		}
		sub.fn(snapshot, doc)
	}

	if m.bus != nil {
		m.bus.Emit(EventUpdate, UpdatePayload{
			State:     snapshot,
			Updates:   doc,
			Previous:  previous,
			Timestamp: now,
		})
	}
}

func (s *subscription) matches(touched map[string]struct{}) bool {
	if len(s.paths) == 0 {
		return true
	}
	for _, p := range s.paths {
		if pathTouched(p, touched) {
			return true
		}
	}
	return false
}

// FilterOption configures UpdateFilter.
type FilterOption func(*filterConfig)

type filterConfig struct {
	keepOthers bool
}

// KeepOthers suppresses the category-change reset of subcategory, tags,
// and quick filter.
func KeepOthers() FilterOption {
	return func(c *filterConfig) { c.keepOthers = true }
}

// UpdateFilter applies one filter change. Selecting a category resets
// subcategory/tags/quickFilter unless KeepOthers; the "tag" kind toggles
// membership instead of replacing the slice. Every filter change snaps
// pagination back to page 1.
func (m *Manager) UpdateFilter(kind catalog.ActionKind, value string, opts ...FilterOption) {
	var cfg filterConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	filters := map[string]any{}
	switch kind {
	case catalog.KindCategory:
		filters["category"] = value
		if !cfg.keepOthers {
			filters["subcategory"] = ""
			filters["tags"] = []string{}
			filters["quickFilter"] = ""
		}
	case catalog.KindSubcategory:
		filters["subcategory"] = value
	case catalog.KindTag:
		m.mu.Lock()
		tags := append([]string(nil), m.state.Filters.Tags...)
		m.mu.Unlock()
		found := false
		for i, t := range tags {
			if t == value {
				tags = append(tags[:i:i], tags[i+1:]...)
				found = true
				break
			}
		}
		if !found {
			tags = append(tags, value)
		}
		filters["tags"] = tags
	case catalog.KindDifficulty:
		filters["difficulty"] = value
	case catalog.KindSearch:
		filters["search"] = value
	case catalog.KindQuick:
		filters["quickFilter"] = value
	default:
		log.Printf("unknown filter kind %q", kind)
		return
	}

	m.Update(map[string]any{
		"filters":    filters,
		"pagination": map[string]any{"page": 1},
	})
}

// Apply routes a navigation Action to the right state mutation.
func (m *Manager) Apply(action catalog.Action) {
	switch action.Kind {
	case catalog.KindReset:
		m.Reset()
	case catalog.KindCategory:
		if action.ResetOthers {
			m.UpdateFilter(action.Kind, action.Value)
		} else {
			m.UpdateFilter(action.Kind, action.Value, KeepOthers())
		}
	default:
		m.UpdateFilter(action.Kind, action.Value)
	}
}

// UpdatePagination sets the page window. It touches only pagination
// paths, so filter-scoped subscribers (the renderer) never re-fire.
func (m *Manager) UpdatePagination(page, limit int) {
	doc := map[string]any{"page": page}
	if limit > 0 {
		doc["limit"] = limit
	}
	m.Update(map[string]any{"pagination": doc})
}

// ReportPagination writes recomputed totals back after a render.
func (m *Manager) ReportPagination(p Pagination) {
	m.Update(map[string]any{"pagination": map[string]any{
		"page":       p.Page,
		"limit":      p.Limit,
		"total":      p.Total,
		"totalPages": p.TotalPages,
		"hasNext":    p.HasNext,
		"hasPrev":    p.HasPrev,
	}})
}

// SetLoading flips the loading flag; entering the loading state clears
// any prior error.
func (m *Manager) SetLoading(loading bool) {
	doc := map[string]any{"isLoading": loading}
	if loading {
		doc["error"] = ""
	}
	m.Update(map[string]any{"data": doc})
}

// SetData records a successful load.
func (m *Manager) SetData(articles []catalog.Article, categories []catalog.Category, tags []string) {
	m.Update(map[string]any{"data": map[string]any{
		"articles":   articles,
		"categories": categories,
		"tags":       tags,
		"isLoading":  false,
		"isLoaded":   true,
		"error":      "",
	}})
}

// SetError records a failed load.
func (m *Manager) SetError(msg string) {
	m.Update(map[string]any{"data": map[string]any{
		"isLoading": false,
		"isLoaded":  false,
		"error":     msg,
	}})
}

// ClearError returns the data state machine to its success terminal
// without re-triggering a load.
func (m *Manager) ClearError() {
	m.Update(map[string]any{"data": map[string]any{
		"error":    "",
		"isLoaded": true,
	}})
}

// resetTouchedPaths is the touched set for a full reset: every path
// outside data changes, so every non-data subscriber fires.
func resetTouchedPaths() map[string]struct{} {
	paths := []string{
		"filters", "filters.category", "filters.subcategory", "filters.tags",
		"filters.difficulty", "filters.search", "filters.quickFilter", "filters.dateRange",
		"pagination", "pagination.page", "pagination.limit", "pagination.total",
		"pagination.totalPages", "pagination.hasNext", "pagination.hasPrev",
		"ui", "ui.activeNavigation", "ui.expandedCategories", "ui.sidebarCollapsed", "ui.mobileMenuOpen",
		"cache", "cache.filteredArticles", "cache.filterHash", "cache.lastFilterTime",
	}
	out := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		out[p] = struct{}{}
	}
	return out
}

// FilterHash is a 32-bit rolling hash of the serialized filter set. It
// deliberately excludes pagination: page changes re-slice a cached
// result, they never invalidate it.
func (m *Manager) FilterHash() uint32 {
	m.mu.Lock()
	filters := m.state.Filters
	filters.Tags = append([]string(nil), m.state.Filters.Tags...)
	m.mu.Unlock()
	return hashFilters(filters)
}

func hashFilters(f Filters) uint32 {
	raw, err := json.Marshal(f)
	if err != nil {
		return 0
	}
	var h int32
	for _, b := range raw {
		h = h<<5 - h + int32(b)
	}
	return uint32(h)
}

// CacheValid reports whether the cached filtered-article list matches the
// current filter set.
func (m *Manager) CacheValid() bool {
	m.mu.Lock()
	cached := m.state.Cache.FilterHash
	has := m.state.Cache.FilteredArticles != nil
	m.mu.Unlock()
	return has && cached == m.FilterHash()
}

// UpdateCache stores a freshly filtered article list under the current
// filter hash.
func (m *Manager) UpdateCache(articles []catalog.Article) {
	m.Update(map[string]any{"cache": map[string]any{
		"filteredArticles": articles,
		"filterHash":       m.FilterHash(),
		"lastFilterTime":   time.Now(),
	}})
}

// CachedArticles returns the cached filtered list, or nil.
func (m *Manager) CachedArticles() []catalog.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]catalog.Article(nil), m.state.Cache.FilteredArticles...)
}

// ToggleExpand flips one category in the expanded set. UI-only: content
// subscribers watching filters never see it.
func (m *Manager) ToggleExpand(categoryID string) {
	m.mu.Lock()
	expanded := make(map[string]bool, len(m.state.UI.ExpandedCategories))
	for k, v := range m.state.UI.ExpandedCategories {
		expanded[k] = v
	}
	m.mu.Unlock()
	if expanded[categoryID] {
		delete(expanded, categoryID)
	} else {
		expanded[categoryID] = true
	}
	m.Update(map[string]any{"ui": map[string]any{"expandedCategories": expanded}})
}

// SetExpanded replaces the expanded set wholesale.
func (m *Manager) SetExpanded(ids map[string]bool) {
	m.Update(map[string]any{"ui": map[string]any{"expandedCategories": ids}})
}

// Reset restores named paths to their defaults, or the whole state when
// called without paths. Only the full reset emits EventReset.
func (m *Manager) Reset(paths ...string) {
	defaults := initialState()

	if len(paths) == 0 {
		m.mu.Lock()
		// Keep loaded data; resetting filters must not unload the corpus.
		defaults.Data = m.state.Data
		m.state = defaults
		snapshot := m.state.clone()
		subs := append([]*subscription(nil), m.subs...)
		m.mu.Unlock()

		doc := map[string]any{"filters": map[string]any{}, "pagination": map[string]any{}, "ui": map[string]any{}, "cache": map[string]any{}}
		touched := resetTouchedPaths()
		for _, sub := range subs {
			if sub.matches(touched) {
				sub.fn(snapshot, doc)
			}
		}
		if m.bus != nil {
			m.bus.Emit(EventReset, snapshot)
		}
		return
	}

	doc := map[string]any{}
	for _, p := range paths {
		switch p {
		case "filters":
			doc["filters"] = map[string]any{
				"category":    defaults.Filters.Category,
				"subcategory": "",
				"tags":        []string{},
				"difficulty":  "",
				"search":      "",
				"quickFilter": "",
			}
		case "pagination":
			doc["pagination"] = map[string]any{
				"page":       defaults.Pagination.Page,
				"limit":      defaults.Pagination.Limit,
				"total":      0,
				"totalPages": 0,
				"hasNext":    false,
				"hasPrev":    false,
			}
		case "ui":
			doc["ui"] = map[string]any{
				"activeNavigation":   defaults.UI.ActiveNavigation,
				"expandedCategories": map[string]bool{},
				"sidebarCollapsed":   false,
				"mobileMenuOpen":     false,
			}
		case "cache":
			doc["cache"] = map[string]any{
				"filteredArticles": []catalog.Article(nil),
				"filterHash":       uint32(0),
				"lastFilterTime":   time.Time{},
			}
		default:
			log.Printf("reset ignored unknown path %q", p)
		}
	}
	m.Update(doc)
}
