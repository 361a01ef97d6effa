// Package cards turns the current filter state into rendered article
// cards: it applies the filter chain, computes the pagination window,
// picks the one visible container for the active category, and produces
// the card HTML.
package cards

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log"
	"sync"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
	"github.com/kakehashi-site/kakehashi/internal/eventbus"
	"github.com/kakehashi-site/kakehashi/internal/state"
)

//go:embed cards.html
var cardTemplateFS embed.FS

// Result is the outcome of one render pass.
type Result struct {
	ContainerID string
	Hidden      []string
	HTML        template.HTML
	Pagination  state.Pagination
	Count       int
}

// Config tunes the quick filters.
type Config struct {
	RecentLimit      int
	PopularThreshold int
}

// Renderer is the article-card renderer. It recomputes the filtered set
// on every render; reuse of previously filtered lists via the state
// cache is the caller's decision, not the renderer's.
type Renderer struct {
	reg     *catalog.Registry
	store   *catalog.Store
	manager *state.Manager
	tmpl    *template.Template

	recentLimit      int
	popularThreshold int

	mu          sync.Mutex
	filtered    map[string][]catalog.Article // optional pre-scoped override, per category
	last        *Result
	unsubscribe func()
}

// NewRenderer builds a Renderer and subscribes it to filter changes.
// The subscription watches the filters path only: the pagination totals
// the renderer writes back must not re-trigger a render.
func NewRenderer(reg *catalog.Registry, store *catalog.Store, manager *state.Manager, cfg Config) (*Renderer, error) {
	tmpl, err := template.New("cards.html").Funcs(template.FuncMap{
		"difficultyLabel": reg.DifficultyLabel,
		"difficultyID":    reg.DifficultyID,
	}).ParseFS(cardTemplateFS, "cards.html")
	if err != nil {
		return nil, fmt.Errorf("parsing card template: %w", err)
	}

	r := &Renderer{
		reg:              reg,
		store:            store,
		manager:          manager,
		tmpl:             tmpl,
		recentLimit:      cfg.RecentLimit,
		popularThreshold: cfg.PopularThreshold,
	}
	if r.recentLimit <= 0 {
		r.recentLimit = DefaultRecentLimit
	}
	if r.popularThreshold <= 0 {
		r.popularThreshold = DefaultPopularThreshold
	}

	r.unsubscribe = manager.Subscribe(func(s state.State, _ map[string]any) {
		if _, err := r.Render(s); err != nil {
			log.Printf("render after filter change: %v", err)
		}
	}, []string{"filters"})

	return r, nil
}

// Close detaches the renderer from the state manager.
func (r *Renderer) Close() {
	if r.unsubscribe != nil {
		r.unsubscribe()
	}
}

// SetFilteredSource installs the optional pre-scoped article collections.
// Lookups prefer it per category when non-empty and silently fall back to
// the primary collection otherwise; pass nil to remove the override.
func (r *Renderer) SetFilteredSource(byCategory map[string][]catalog.Article) {
	r.mu.Lock()
	r.filtered = byCategory
	r.mu.Unlock()
}

// LastResult returns the most recent render outcome, or nil.
func (r *Renderer) LastResult() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// collectionFor resolves the article source for one category, preferring
// the pre-filtered override when it has entries for that category. The
// fallback is per category, so a partial override still serves the rest
// from the primary store.
func (r *Renderer) collectionFor(categoryID string, s state.State) []catalog.Article {
	r.mu.Lock()
	override := r.filtered[categoryID]
	r.mu.Unlock()
	if len(override) > 0 {
		return override
	}

	name := r.reg.DisplayName(categoryID)
	if len(s.Data.Articles) > 0 {
		return keep(s.Data.Articles, func(a catalog.Article) bool { return a.Category == name })
	}
	return r.store.Category(categoryID)
}

// sourceArticles assembles the full candidate list for the active
// category selection.
func (r *Renderer) sourceArticles(s state.State) []catalog.Article {
	category := s.Filters.Category
	if r.reg.KnownCategory(category) {
		return r.collectionFor(category, s)
	}

	// "all" (or anything unknown): every category, each resolved
	// independently against the override.
	var out []catalog.Article
	for _, id := range r.reg.CategoryIDs() {
		out = append(out, r.collectionFor(id, s)...)
	}
	return out
}

// Render recomputes the filtered, paginated card set for the given state
// snapshot and reports the fresh pagination totals back to the state
// manager.
func (r *Renderer) Render(s state.State) (*Result, error) {
	filtered := r.ApplyFilters(r.sourceArticles(s), s.Filters)
	pagination, start, end := Paginate(len(filtered), s.Pagination.Page, s.Pagination.Limit)
	window := filtered[start:end]

	target := r.targetContainer(s.Filters)
	var hidden []string
	for _, id := range r.reg.ContainerIDs() {
		if id != target {
			hidden = append(hidden, id)
		}
	}

	html, err := r.renderCards(window, s)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ContainerID: target,
		Hidden:      hidden,
		HTML:        html,
		Pagination:  pagination,
		Count:       len(filtered),
	}

	r.mu.Lock()
	r.last = result
	r.mu.Unlock()

	if r.manager != nil {
		r.manager.UpdateCache(filtered)
		r.manager.ReportPagination(pagination)
	}
	return result, nil
}

// targetContainer picks the single visible container. A quick filter
// scoped to an active category renders into that category's container;
// a globally scoped one renders into the aggregate.
func (r *Renderer) targetContainer(f state.Filters) string {
	return r.reg.ContainerID(f.Category)
}

type cardView struct {
	catalog.Article
	Link  string
	Level string // difficulty enum id
	Hot   bool
}

type cardsView struct {
	Cards []cardView
	Empty bool
}

func (r *Renderer) renderCards(articles []catalog.Article, s state.State) (template.HTML, error) {
	view := cardsView{Empty: len(articles) == 0}
	for _, a := range articles {
		link := a.URL
		if link == "" {
			link = "/article/" + a.ID
		}
		view.Cards = append(view.Cards, cardView{
			Article: a,
			Link:    link,
			Level:   r.reg.DifficultyID(a.Difficulty),
			Hot:     a.Popularity.HotScore >= r.popularThreshold,
		})
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "cards.html", view); err != nil {
		return "", fmt.Errorf("rendering cards: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint: gosec
}

// WireBus subscribes the renderer's owner bus events. Filter actions
// flow bus -> state manager -> subscription -> Render, so the only
// wiring needed here is applying actions to the manager.
func WireBus(bus *eventbus.Bus, manager *state.Manager) string {
	return bus.On(catalog.EventFilterChange, func(data any) {
		action, ok := data.(catalog.Action)
		if !ok {
			log.Printf("filter:change carried %T, want catalog.Action", data)
			return
		}
		manager.Apply(action)
	})
}
