// Package server hosts the knowledge-base UI: it wires the event bus,
// state manager, navigation component, and card renderer together and
// translates HTTP requests into the same filter actions a browser click
// would produce.
package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/yuin/goldmark"

	"github.com/kakehashi-site/kakehashi/internal/cards"
	"github.com/kakehashi-site/kakehashi/internal/catalog"
	"github.com/kakehashi-site/kakehashi/internal/config"
	"github.com/kakehashi-site/kakehashi/internal/database"
	"github.com/kakehashi-site/kakehashi/internal/eventbus"
	"github.com/kakehashi-site/kakehashi/internal/navigation"
	"github.com/kakehashi-site/kakehashi/internal/state"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for the knowledge base.
type Server struct {
	cfg   *config.Config
	db    *database.DB
	store *catalog.Store
	reg   *catalog.Registry

	bus      *eventbus.Bus
	manager  *state.Manager
	nav      *navigation.Component
	renderer *cards.Renderer
	hub      *Hub

	// stateMu serializes query replay and render against the shared page
	// state, so a response can never carry another request's filters.
	stateMu sync.Mutex

	pages  map[string]*template.Template
	router chi.Router
}

// New creates a Server and wires the reactive core: filter actions on
// the bus flow into the state manager, the renderer re-renders on filter
// changes, and the websocket hub mirrors state updates to the browser.
func New(cfg *config.Config, store *catalog.Store, db *database.DB) (*Server, error) {
	reg := catalog.NewRegistry()
	bus := eventbus.New()
	manager := state.NewManager(bus)

	nav, err := navigation.New(reg, bus, manager, store)
	if err != nil {
		return nil, err
	}

	renderer, err := cards.NewRenderer(reg, store, manager, cards.Config{
		RecentLimit:      cfg.Content.RecentLimit,
		PopularThreshold: cfg.Content.PopularThreshold,
	})
	if err != nil {
		return nil, err
	}
	cards.WireBus(bus, manager)

	s := &Server{
		cfg:      cfg,
		db:       db,
		store:    store,
		reg:      reg,
		bus:      bus,
		manager:  manager,
		nav:      nav,
		renderer: renderer,
		hub:      NewHub(bus),
	}

	if err := s.parseTemplates(); err != nil {
		return nil, err
	}
	s.loadData()
	s.router = s.buildRouter()
	return s, nil
}

// loadData drives the data-load state machine and initializes navigation.
func (s *Server) loadData() {
	s.manager.SetLoading(true)
	if !s.store.Loaded() {
		if err := s.store.Load(); err != nil {
			log.Printf("loading article data: %v", err)
			s.manager.SetError(err.Error())
			return
		}
	}

	nav := s.store.Navigation()
	s.manager.SetData(s.store.All(), nav.Structure, s.store.Tags())
	if !s.nav.Refresh() {
		log.Printf("navigation failed to refresh")
	}
	s.manager.UpdatePagination(1, s.cfg.Content.PageSize)
}

func (s *Server) parseTemplates() error {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"add":      func(a, b int) int { return a + b },
		"sub":      func(a, b int) int { return a - b },
	}

	// Parse base template first, then clone per page so each page gets
	// its own {{define "content"}} and {{define "title"}}.
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"knowledge.html", "article.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}
	s.pages = pages
	return nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if s.cfg.Server.AllowAllOrigins {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/", s.handleKnowledge)
	r.Get("/search", s.handleSearch)
	r.Get("/article/{id}", s.handleArticle)
	r.Post("/article/{id}/helpful", s.handleHelpful)
	r.Get("/ws", s.hub.HandleWS)

	return r
}

// applyQuery replays the request's query parameters as navigation
// clicks, so an HTTP request drives exactly the same bus -> state ->
// render path as an in-page interaction.
func (s *Server) applyQuery(q map[string][]string) {
	s.manager.Reset()

	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}

	if cat := get("category"); cat != "" {
		s.nav.HandleCategoryClick(cat)
	}
	if sub := get("sub"); sub != "" {
		s.nav.HandleSubcategoryClick(get("category"), sub)
	}
	for _, tag := range q["tag"] {
		if tag = strings.TrimSpace(tag); tag != "" {
			s.manager.UpdateFilter(catalog.KindTag, tag)
		}
	}
	if diff := get("difficulty"); diff != "" {
		s.nav.HandleDifficultyClick(diff)
	}
	if query := get("q"); query != "" {
		s.nav.HandleSearch(query)
	}
	if quick := get("quick"); quick != "" {
		s.nav.HandleQuickFilterClick(quick)
	}

	page := 1
	if p, err := strconv.Atoi(get("page")); err == nil && p > 0 {
		page = p
	}
	s.manager.UpdatePagination(page, s.cfg.Content.PageSize)
}

func (s *Server) handleKnowledge(w http.ResponseWriter, r *http.Request) {
	s.stateMu.Lock()
	if s.store.Stale() {
		if err := s.store.Reload(); err != nil {
			log.Printf("reloading stale data: %v", err)
		} else {
			s.loadData()
		}
	}

	s.applyQuery(r.URL.Query())

	current := s.manager.State()
	result, err := s.renderer.Render(current)
	navHTML, _ := s.nav.Render()
	s.stateMu.Unlock()

	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	baseQuery := r.URL.Query()
	baseQuery.Del("page")

	s.render(w, "knowledge.html", map[string]any{
		"Title":       s.cfg.Site.Title,
		"Navigation":  navHTML,
		"Result":      result,
		"Filters":     current.Filters,
		"DataError":   current.Data.Error,
		"Query":       template.URL(baseQuery.Encode()),
		"DataVersion": s.store.Version(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	target := url.Values{"q": {strings.TrimSpace(r.URL.Query().Get("q"))}}
	http.Redirect(w, r, "/?"+target.Encode(), http.StatusFound)
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	article := s.store.ByID(id)
	if article == nil {
		http.NotFound(w, r)
		return
	}

	if s.db != nil {
		if err := s.db.IncrementViews(id); err != nil {
			log.Printf("incrementing views for %s: %v", id, err)
		}
	}

	var helpful int
	if s.db != nil {
		c, _ := s.db.GetCounters(id)
		helpful = article.Popularity.Helpful + c.Helpful
	}

	s.render(w, "article.html", map[string]any{
		"Title":      article.Title + " — " + s.cfg.Site.Title,
		"Article":    article,
		"CategoryID": s.reg.CategoryID(article.Category),
		"Difficulty": s.reg.DifficultyID(article.Difficulty),
		"Helpful":    helpful,
	})
}

func (s *Server) handleHelpful(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if s.store.ByID(id) == nil {
		http.NotFound(w, r)
		return
	}
	if s.db != nil {
		if err := s.db.AddHelpful(id, 1); err != nil {
			log.Printf("recording helpful vote for %s: %v", id, err)
		}
	}
	http.Redirect(w, r, "/article/"+id, http.StatusFound)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the configured host and port.
func Serve(cfg *config.Config, store *catalog.Store, db *database.DB) error {
	srv, err := New(cfg, store, db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
