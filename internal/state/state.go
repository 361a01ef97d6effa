// Package state holds the single source of truth for the knowledge-base
// UI: active filters, pagination, data-loading status, and UI flags. All
// mutation goes through the Manager; consumers get value snapshots.
package state

import (
	"time"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
)

// DateRange bounds article dates, inclusive. Empty strings mean unbounded.
type DateRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Filters is the composable filter set. Category is an opaque id
// ("tax", "legal", ... or "all"); Difficulty is an enum id; Tags match
// any; Search matches title+excerpt+tags case-insensitively.
type Filters struct {
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`
	Tags        []string  `json:"tags"`
	Difficulty  string    `json:"difficulty"`
	Search      string    `json:"search"`
	QuickFilter string    `json:"quickFilter"`
	DateRange   DateRange `json:"dateRange"`
}

// Pagination describes the current result window. Totals are always
// recomputed from the current filtered result, never carried stale.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Data tracks the loaded article corpus and its load status. The
// IsLoading/IsLoaded/Error triple behaves as a small state machine:
// {false,false,""} initially, then loading, then either the success
// terminal {false,true,""} or the failure terminal {false,false,msg}.
type Data struct {
	Articles   []catalog.Article  `json:"articles"`
	Categories []catalog.Category `json:"categories"`
	Tags       []string           `json:"tags"`
	IsLoading  bool               `json:"isLoading"`
	IsLoaded   bool               `json:"isLoaded"`
	Error      string             `json:"error"`
}

// UI holds presentation-only flags. ExpandedCategories is a set of
// category ids; toggling it never triggers content refiltering.
type UI struct {
	ActiveNavigation   string          `json:"activeNavigation"`
	ExpandedCategories map[string]bool `json:"expandedCategories"`
	SidebarCollapsed   bool            `json:"sidebarCollapsed"`
	MobileMenuOpen     bool            `json:"mobileMenuOpen"`
}

// Cache remembers the last filtered article list keyed by a filter hash,
// so pagination-only changes can re-slice without refiltering.
type Cache struct {
	FilteredArticles []catalog.Article `json:"filteredArticles"`
	FilterHash       uint32            `json:"filterHash"`
	LastFilterTime   time.Time         `json:"lastFilterTime"`
}

// State is the root state object.
type State struct {
	Filters    Filters    `json:"filters"`
	Pagination Pagination `json:"pagination"`
	Data       Data       `json:"data"`
	UI         UI         `json:"ui"`
	Cache      Cache      `json:"cache"`
}

// DefaultLimit is the default page size.
const DefaultLimit = 9

func initialState() State {
	return State{
		Filters: Filters{
			Category: catalog.CategoryAll,
			Tags:     []string{},
		},
		Pagination: Pagination{Page: 1, Limit: DefaultLimit},
		UI: UI{
			ActiveNavigation:   catalog.CategoryAll,
			ExpandedCategories: make(map[string]bool),
		},
	}
}

// clone returns a snapshot with its own copies of slices and maps so a
// caller can never mutate managed state through a returned value.
func (s State) clone() State {
	out := s
	out.Filters.Tags = append([]string(nil), s.Filters.Tags...)
	out.Data.Articles = append([]catalog.Article(nil), s.Data.Articles...)
	out.Data.Categories = append([]catalog.Category(nil), s.Data.Categories...)
	out.Data.Tags = append([]string(nil), s.Data.Tags...)
	out.Cache.FilteredArticles = append([]catalog.Article(nil), s.Cache.FilteredArticles...)
	out.UI.ExpandedCategories = make(map[string]bool, len(s.UI.ExpandedCategories))
	for k, v := range s.UI.ExpandedCategories {
		out.UI.ExpandedCategories[k] = v
	}
	return out
}
