package state

import (
	"log"
	"time"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
)

// applyDoc deep-merges an update document into the state: nested maps
// merge key-wise, everything else (slices, primitives, set-maps) replaces
// wholesale. It returns the set of dot-paths the document touched, which
// drives path-scoped subscriber notification.
func applyDoc(s *State, doc map[string]any) map[string]struct{} {
	touched := make(map[string]struct{})
	mergeNode(s, "", doc, touched)
	return touched
}

func mergeNode(s *State, prefix string, doc map[string]any, touched map[string]struct{}) {
	for key, value := range doc {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		touched[path] = struct{}{}

		if child, ok := value.(map[string]any); ok && isBranch(path) {
			mergeNode(s, path, child, touched)
			continue
		}
		if !setField(s, path, value) {
			log.Printf("state update ignored unknown path %q", path)
		}
	}
}

// isBranch reports whether a path names a mergeable object rather than a
// leaf. ui.expandedCategories is a set and replaces wholesale even though
// its value is a map.
func isBranch(path string) bool {
	switch path {
	case "filters", "pagination", "data", "ui", "cache", "filters.dateRange":
		return true
	}
	return false
}

func setField(s *State, path string, value any) bool {
	switch path {
	case "filters.category":
		s.Filters.Category = asString(value)
	case "filters.subcategory":
		s.Filters.Subcategory = asString(value)
	case "filters.tags":
		s.Filters.Tags = asStrings(value)
	case "filters.difficulty":
		s.Filters.Difficulty = asString(value)
	case "filters.search":
		s.Filters.Search = asString(value)
	case "filters.quickFilter":
		s.Filters.QuickFilter = asString(value)
	case "filters.dateRange.from":
		s.Filters.DateRange.From = asString(value)
	case "filters.dateRange.to":
		s.Filters.DateRange.To = asString(value)
	case "pagination.page":
		s.Pagination.Page = asInt(value)
	case "pagination.limit":
		s.Pagination.Limit = asInt(value)
	case "pagination.total":
		s.Pagination.Total = asInt(value)
	case "pagination.totalPages":
		s.Pagination.TotalPages = asInt(value)
	case "pagination.hasNext":
		s.Pagination.HasNext = asBool(value)
	case "pagination.hasPrev":
		s.Pagination.HasPrev = asBool(value)
	case "data.articles":
		s.Data.Articles, _ = value.([]catalog.Article)
	case "data.categories":
		s.Data.Categories, _ = value.([]catalog.Category)
	case "data.tags":
		s.Data.Tags = asStrings(value)
	case "data.isLoading":
		s.Data.IsLoading = asBool(value)
	case "data.isLoaded":
		s.Data.IsLoaded = asBool(value)
	case "data.error":
		s.Data.Error = asString(value)
	case "ui.activeNavigation":
		s.UI.ActiveNavigation = asString(value)
	case "ui.expandedCategories":
		if m, ok := value.(map[string]bool); ok {
			s.UI.ExpandedCategories = m
		}
	case "ui.sidebarCollapsed":
		s.UI.SidebarCollapsed = asBool(value)
	case "ui.mobileMenuOpen":
		s.UI.MobileMenuOpen = asBool(value)
	case "cache.filteredArticles":
		s.Cache.FilteredArticles, _ = value.([]catalog.Article)
	case "cache.filterHash":
		switch v := value.(type) {
		case uint32:
			s.Cache.FilterHash = v
		case int:
			s.Cache.FilterHash = uint32(v)
		}
	case "cache.lastFilterTime":
		if t, ok := value.(time.Time); ok {
			s.Cache.LastFilterTime = t
		}
	default:
		return false
	}
	return true
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func asStrings(v any) []string {
	switch vs := v.(type) {
	case []string:
		return append([]string(nil), vs...)
	case []any:
		out := make([]string, 0, len(vs))
		for _, item := range vs {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// pathTouched reports whether a watched path appears in the touched set,
// exactly or as an ancestor of a touched leaf. A document that never
// mentions the watched path does not match, even when the merge changed
// a sibling under the same parent.
func pathTouched(watched string, touched map[string]struct{}) bool {
	for t := range touched {
		if t == watched {
			return true
		}
		if len(t) > len(watched) && t[:len(watched)] == watched && t[len(watched)] == '.' {
			return true
		}
	}
	return false
}
