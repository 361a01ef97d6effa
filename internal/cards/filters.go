package cards

import (
	"sort"
	"strings"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
	"github.com/kakehashi-site/kakehashi/internal/state"
)

// Quick-filter ids.
const (
	QuickFeatured = "featured"
	QuickRecent   = "recent"
	QuickPopular  = "popular"
	QuickArticles = "articles"
	QuickFAQ      = "faq"
)

// Defaults for quick-filter tuning, overridable via Config.
const (
	DefaultRecentLimit      = 20
	DefaultPopularThreshold = 80
)

// ApplyFilters narrows the article list through the composable predicate
// chain, ANDed in fixed order: category, subcategory, tags, difficulty,
// date range, search, quick filter. A falsy filter value skips its
// predicate; category "all" is a pass-through sentinel. An unknown
// category id matches nothing, so bad input degrades to the empty state.
func (r *Renderer) ApplyFilters(articles []catalog.Article, f state.Filters) []catalog.Article {
	out := articles

	if f.Category != "" && f.Category != catalog.CategoryAll {
		name := r.reg.DisplayName(f.Category)
		out = keep(out, func(a catalog.Article) bool { return a.Category == name })
	}
	if f.Subcategory != "" {
		out = keep(out, func(a catalog.Article) bool { return matchesSubcategory(a, f.Subcategory) })
	}
	if len(f.Tags) > 0 {
		out = keep(out, func(a catalog.Article) bool { return hasAnyTag(a, f.Tags) })
	}
	if f.Difficulty != "" {
		out = keep(out, func(a catalog.Article) bool {
			return r.reg.DifficultyID(a.Difficulty) == f.Difficulty
		})
	}
	if f.DateRange.From != "" || f.DateRange.To != "" {
		out = keep(out, func(a catalog.Article) bool { return inDateRange(a.Date, f.DateRange) })
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		out = keep(out, func(a catalog.Article) bool { return matchesSearch(a, needle) })
	}
	if f.QuickFilter != "" {
		out = r.applyQuickFilter(out, f.QuickFilter)
	}
	return out
}

func keep(articles []catalog.Article, pred func(catalog.Article) bool) []catalog.Article {
	out := make([]catalog.Article, 0, len(articles))
	for _, a := range articles {
		if pred(a) {
			out = append(out, a)
		}
	}
	return out
}

// matchesSubcategory tests an article against a subcategory selection.
// Articles carry no subcategory field, so the match runs over tags and
// the subcategory's display name.
func matchesSubcategory(a catalog.Article, sub string) bool {
	for _, t := range a.Tags {
		if t == sub {
			return true
		}
	}
	return false
}

func hasAnyTag(a catalog.Article, tags []string) bool {
	for _, want := range tags {
		for _, have := range a.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

func inDateRange(date string, dr state.DateRange) bool {
	if date == "" {
		return false
	}
	if dr.From != "" && date < dr.From {
		return false
	}
	if dr.To != "" && date > dr.To {
		return false
	}
	return true
}

func matchesSearch(a catalog.Article, needle string) bool {
	if strings.Contains(strings.ToLower(a.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(a.Excerpt), needle) {
		return true
	}
	for _, t := range a.Tags {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}

// applyQuickFilter applies one of the mutually exclusive quick filters.
// Unknown ids pass the list through unchanged.
func (r *Renderer) applyQuickFilter(articles []catalog.Article, id string) []catalog.Article {
	switch id {
	case QuickFeatured:
		return keep(articles, func(a catalog.Article) bool { return a.Featured })
	case QuickArticles:
		return keep(articles, func(a catalog.Article) bool { return a.Type == catalog.TypeArticle })
	case QuickFAQ:
		return keep(articles, func(a catalog.Article) bool { return a.Type == catalog.TypeFAQ })
	case QuickRecent:
		out := append([]catalog.Article(nil), articles...)
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
		if len(out) > r.recentLimit {
			out = out[:r.recentLimit]
		}
		return out
	case QuickPopular:
		out := keep(articles, func(a catalog.Article) bool {
			return a.Popularity.HotScore >= r.popularThreshold
		})
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Popularity.HotScore > out[j].Popularity.HotScore
		})
		return out
	}
	return articles
}

// Paginate computes the pagination window over total items. The page is
// clamped into [1, totalPages] rather than erroring or returning empty.
func Paginate(total, page, limit int) (state.Pagination, int, int) {
	if limit <= 0 {
		limit = state.DefaultLimit
	}
	totalPages := (total + limit - 1) / limit

	switch {
	case page < 1, totalPages == 0:
		page = 1
	case page > totalPages:
		page = totalPages
	}

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return state.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}, start, end
}
