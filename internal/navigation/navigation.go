// Package navigation renders the left-hand knowledge-base navigation
// (category tree, quick filters, difficulty filters, search box) and
// translates user clicks into filter actions on the event bus. It never
// touches article data: it is a pure event producer plus the owner of
// the UI-only expand/collapse state.
package navigation

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kakehashi-site/kakehashi/internal/catalog"
	"github.com/kakehashi-site/kakehashi/internal/eventbus"
	"github.com/kakehashi-site/kakehashi/internal/state"
)

//go:embed nav.html
var navTemplateFS embed.FS

// ContainerID is the DOM id the sidebar renders into.
const ContainerID = "knowledgeNavigation"

// Component renders the navigation sidebar from the store's navigation
// tree and emits filter actions for clicks.
type Component struct {
	reg     *catalog.Registry
	bus     *eventbus.Bus
	manager *state.Manager
	store   *catalog.Store
	tmpl    *template.Template

	mu          sync.Mutex
	data        catalog.NavigationData
	initialized bool
	lastPrint   string
	lastHTML    template.HTML

	rendering atomic.Bool
}

// New creates an uninitialized Component.
func New(reg *catalog.Registry, bus *eventbus.Bus, manager *state.Manager, store *catalog.Store) (*Component, error) {
	tmpl, err := template.New("nav.html").ParseFS(navTemplateFS, "nav.html")
	if err != nil {
		return nil, fmt.Errorf("parsing navigation template: %w", err)
	}
	return &Component{reg: reg, bus: bus, manager: manager, store: store, tmpl: tmpl}, nil
}

// Init loads the navigation tree from the store and seeds the expanded
// set from each category's expanded flag. Idempotent; returns false on
// load failure instead of an error so a broken data file degrades to an
// empty sidebar.
func (c *Component) Init() bool {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return true
	}
	c.mu.Unlock()

	return c.Refresh()
}

// Refresh re-reads the navigation tree from the store and re-seeds the
// expanded set, invalidating the memoized sidebar so the next Render
// reflects the new counts. Returns false on load failure.
func (c *Component) Refresh() bool {
	if !c.store.Loaded() {
		if err := c.store.Load(); err != nil {
			log.Printf("navigation init: %v", err)
			return false
		}
	}
	data := c.store.Navigation()

	expanded := make(map[string]bool)
	for _, cat := range data.Structure {
		if cat.Expanded {
			expanded[cat.ID] = true
		}
	}
	c.manager.SetExpanded(expanded)

	c.mu.Lock()
	c.data = data
	c.initialized = true
	c.lastPrint = ""
	c.lastHTML = ""
	c.mu.Unlock()
	return true
}

// fingerprint captures everything the sidebar's appearance depends on.
// Expanded ids are sorted so set ordering can never defeat the
// memoization.
func fingerprint(s state.State) string {
	expanded := make([]string, 0, len(s.UI.ExpandedCategories))
	for id, on := range s.UI.ExpandedCategories {
		if on {
			expanded = append(expanded, id)
		}
	}
	sort.Strings(expanded)
	return strings.Join([]string{
		s.Filters.Category,
		s.Filters.Subcategory,
		s.Filters.QuickFilter,
		s.Filters.Difficulty,
		strings.Join(expanded, ","),
	}, "|")
}

// Render produces the sidebar HTML for the current state. A render whose
// fingerprint matches the previous one is skipped entirely (the cached
// HTML is returned with changed=false); a render requested while one is
// in flight is dropped, not queued.
func (c *Component) Render() (html template.HTML, changed bool) {
	if !c.rendering.CompareAndSwap(false, true) {
		log.Printf("navigation render dropped: render already in flight")
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.lastHTML, false
	}
	defer c.rendering.Store(false)

	s := c.manager.State()
	fp := fingerprint(s)

	c.mu.Lock()
	if fp == c.lastPrint && c.lastHTML != "" {
		html = c.lastHTML
		c.mu.Unlock()
		return html, false
	}
	data := c.data
	c.mu.Unlock()

	rendered, err := c.renderHTML(data, s)
	if err != nil {
		log.Printf("navigation render: %v", err)
		return "", false
	}

	c.mu.Lock()
	c.lastPrint = fp
	c.lastHTML = rendered
	c.mu.Unlock()
	return rendered, true
}

type navView struct {
	Structure         []navCategory
	QuickFilters      []navQuick
	DifficultyFilters []navDifficulty
	Search            string
	AllActive         bool
}

type navCategory struct {
	catalog.Category
	Active   bool
	Expanded bool
	Children []navSubcategory
}

type navSubcategory struct {
	catalog.Subcategory
	Active bool
}

type navQuick struct {
	catalog.QuickFilterDef
	Active bool
}

type navDifficulty struct {
	catalog.DifficultyDef
	Active bool
}

func (c *Component) renderHTML(data catalog.NavigationData, s state.State) (template.HTML, error) {
	view := navView{
		Search:    s.Filters.Search,
		AllActive: s.Filters.Category == catalog.CategoryAll || s.Filters.Category == "",
	}
	for _, cat := range data.Structure {
		nc := navCategory{
			Category: cat,
			Active:   s.Filters.Category == cat.ID,
			Expanded: s.UI.ExpandedCategories[cat.ID],
		}
		for _, sub := range cat.Children {
			nc.Children = append(nc.Children, navSubcategory{
				Subcategory: sub,
				Active:      s.Filters.Subcategory == sub.Name,
			})
		}
		view.Structure = append(view.Structure, nc)
	}
	for _, qf := range data.QuickFilters {
		view.QuickFilters = append(view.QuickFilters, navQuick{
			QuickFilterDef: qf,
			Active:         s.Filters.QuickFilter == qf.ID,
		})
	}
	for _, df := range data.DifficultyFilters {
		view.DifficultyFilters = append(view.DifficultyFilters, navDifficulty{
			DifficultyDef: df,
			Active:        s.Filters.Difficulty == df.ID,
		})
	}

	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, "nav.html", view); err != nil {
		return "", fmt.Errorf("rendering navigation: %w", err)
	}
	return template.HTML(buf.String()), nil //nolint: gosec
}

// HandleCategoryClick emits the filter action for a category click.
// "all" emits a reset-style action and never toggles expansion; real
// categories also toggle their expand state.
func (c *Component) HandleCategoryClick(categoryID string) {
	if categoryID == catalog.CategoryAll {
		c.bus.Emit(catalog.EventFilterChange, catalog.Action{
			Kind:   catalog.KindReset,
			Value:  catalog.CategoryAll,
			Source: "navigation",
		})
		return
	}
	if !c.reg.KnownCategory(categoryID) {
		log.Printf("ignoring click on unknown category %q", categoryID)
		return
	}
	c.bus.Emit(catalog.EventFilterChange, catalog.Action{
		Kind:        catalog.KindCategory,
		Value:       categoryID,
		Source:      "navigation",
		ResetOthers: true,
	})
	c.manager.ToggleExpand(categoryID)
}

// HandleSubcategoryClick emits the filter action for a subcategory
// click. The subcategory's display name is the filter value.
func (c *Component) HandleSubcategoryClick(categoryID, subName string) {
	c.bus.Emit(catalog.EventFilterChange, catalog.Action{
		Kind:     catalog.KindSubcategory,
		Value:    subName,
		Source:   "navigation",
		Category: categoryID,
	})
}

// HandleQuickFilterClick emits a quick-filter action. When a real
// category is active the filter is scoped to it (BasedOnNavigation);
// otherwise it applies globally. The flag decides which container the
// result renders into, so it must be computed here, from live state.
func (c *Component) HandleQuickFilterClick(filterID string) {
	active := c.manager.State().Filters.Category
	based := c.reg.KnownCategory(active)
	action := catalog.Action{
		Kind:              catalog.KindQuick,
		Value:             filterID,
		Source:            "navigation",
		BasedOnNavigation: based,
	}
	if based {
		action.Category = active
	}
	c.bus.Emit(catalog.EventFilterChange, action)
}

// HandleDifficultyClick emits a difficulty-filter action.
func (c *Component) HandleDifficultyClick(difficultyID string) {
	c.bus.Emit(catalog.EventFilterChange, catalog.Action{
		Kind:   catalog.KindDifficulty,
		Value:  difficultyID,
		Source: "navigation",
	})
}

// HandleSearch emits a search action.
func (c *Component) HandleSearch(query string) {
	c.bus.Emit(catalog.EventFilterChange, catalog.Action{
		Kind:   catalog.KindSearch,
		Value:  strings.TrimSpace(query),
		Source: "navigation",
	})
}

// ToggleExpand flips a category's expand state without filtering.
func (c *Component) ToggleExpand(categoryID string) {
	c.manager.ToggleExpand(categoryID)
}
