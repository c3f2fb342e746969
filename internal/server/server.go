package server

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-filmloc/internal/api"
	"github.com/joeblew999/plat-filmloc/internal/api/ui"
	"github.com/joeblew999/plat-filmloc/internal/config"
	"github.com/joeblew999/plat-filmloc/internal/content"
	"github.com/joeblew999/plat-filmloc/internal/humastar"
	"github.com/joeblew999/plat-filmloc/internal/kv"
	"github.com/joeblew999/plat-filmloc/internal/logging"
	"github.com/joeblew999/plat-filmloc/internal/metrics"
	"github.com/joeblew999/plat-filmloc/internal/service"
	"github.com/joeblew999/plat-filmloc/internal/session"
	"github.com/joeblew999/plat-filmloc/internal/templates"
	"github.com/joeblew999/plat-filmloc/web"
)

// Config holds the server configuration.
type Config struct {
	Host   string
	Port   string
	WebDir string // Optional web/ directory overriding the embedded assets
	App    config.Config
}

// Server is the film location HTTP server.
type Server struct {
	config   Config
	log      zerolog.Logger
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	links    *humastar.Links
	renderer *templates.Renderer
	static   fs.FS
	fetcher  content.Fetcher
	store    kv.Store
	bus      *service.EventBus
	sessions *session.Manager
	metrics  *metrics.Collector
	cancel   context.CancelFunc
}

// New creates a server reading locations from fetcher and persisting
// favorites to store. The server owns store and closes it in Close.
func New(cfg Config, fetcher content.Fetcher, store kv.Store, log zerolog.Logger) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config: cfg,
		log:    log,
		mux:    http.NewServeMux(),
		store:  store,
		bus:    service.NewEventBus(),
		cancel: cancel,
	}

	if err := s.loadAssets(ctx); err != nil {
		cancel()
		return nil, err
	}

	s.sessions = session.NewManager(store, s.bus, session.Options{
		FullReplace:  cfg.App.Map.FullReplace,
		NotifyWindow: cfg.App.Session.NotifyWindow,
		Fields:       content.ParseFieldSet(cfg.App.Content.ListFields),
	}, log)

	s.fetcher = fetcher
	if cfg.App.Metrics {
		s.metrics = metrics.New(s.sessions.Len)
		s.fetcher = s.metrics.Fetcher(fetcher)
	}

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("plat-filmloc API", api.Version)
	humaConfig.Info.Description = "Film and TV shooting locations: map data, genres and per-session favorites."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, func(ctx huma.Context, status string, v any) (any, error) {
		return humastar.LinkTransformer(s.links)(ctx, status, v)
	})
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes()
	s.handler = s.middleware()

	if d := cfg.App.Session.SweepInterval; d > 0 {
		go s.sweep(ctx, d, cfg.App.Session.MaxIdle)
	}
	return s, nil
}

// loadAssets prefers WebDir when it has templates, with hot reload, and
// falls back to the embedded copies.
func (s *Server) loadAssets(ctx context.Context) error {
	tmplFS, staticFS := web.Templates(), web.Static()
	var watchDir string
	if s.config.WebDir != "" {
		dir := filepath.Join(s.config.WebDir, "templates")
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			tmplFS = os.DirFS(dir)
			staticFS = os.DirFS(filepath.Join(s.config.WebDir, "static"))
			watchDir = dir
		}
	}

	r, err := templates.New(tmplFS)
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.renderer = r
	s.static = staticFS

	if watchDir != "" {
		if err := r.Watch(ctx, watchDir, s.log); err != nil {
			s.log.Warn().Err(err).Msg("template hot reload disabled")
		} else {
			s.log.Info().Str("dir", watchDir).Msg("loaded templates")
		}
	}
	return nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Sessions returns the session manager.
func (s *Server) Sessions() *session.Manager { return s.sessions }

// Close stops background work, flushes every session and closes the store.
func (s *Server) Close() error {
	s.cancel()
	s.sessions.Close()
	return s.store.Close()
}

func (s *Server) routes() {
	// Register Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, &api.Services{Content: s.fetcher, Metrics: s.metrics, Log: s.log})
	api.NewInfoHandler(s.config.App.Storage.Backend, s.config.App.Content.ListFields, s.config.App.Map.FullReplace).
		RegisterRoutes(s.humaAPI)

	// Datastar SSE routes
	ui.New(s.renderer, s.fetcher, s.bus, s.metrics, s.log).RegisterRoutes(s.humaAPI)

	s.links = humastar.AutoLinks(s.humaAPI, "/health", ui.Tag)
	api.AddRelated(s.links)

	// Page routes
	s.mux.HandleFunc("GET /{$}", s.handleMap)
	s.mux.HandleFunc("GET /locations/{slug}", s.handleLocation)
}

// middleware wraps the routes. Static assets and metrics bypass sessions.
func (s *Server) middleware() http.Handler {
	root := http.NewServeMux()
	root.Handle("/static/", http.StripPrefix("/static/", http.FileServerFS(s.static)))
	if s.metrics != nil {
		root.Handle("/metrics", s.metrics.Handler())
	}
	root.Handle("/", s.sessions.Middleware(s.config.App.Session.SecureCookie)(s.mux))

	var h http.Handler = root
	if s.metrics != nil {
		h = s.metrics.Middleware(h)
	}
	return logging.Middleware(s.log)(h)
}

func (s *Server) sweep(ctx context.Context, every, maxIdle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.sessions.Sweep(maxIdle)
		}
	}
}
