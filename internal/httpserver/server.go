// Package httpserver serves the member site over HTTP.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/gate"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/i18n"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/metrics"
	custommw "github.com/tpcglobalcommunity/tpcglobal-sub000/internal/middleware"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/observability"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/pages"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/routes"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/session"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/settings"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/internal/shell"
	"github.com/tpcglobalcommunity/tpcglobal-sub000/public"
)

const defaultGateWait = 1500 * time.Millisecond

// Config holds runtime options for the HTTP server.
type Config struct {
	Address        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	GateWait       time.Duration
	CookieSecure   bool
	TraceProjectID string
	StaticDir      string
	Assets         shell.Assets
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Table       []routes.Descriptor
	Resolver    *gate.Resolver
	Settings    *settings.Watcher
	Sessions    *session.CookieManager
	Verifier    session.Verifier
	Preferences custommw.PreferenceBinder
	Members     pages.MemberLister
	Bundle      *i18n.Bundle
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
}

// Server is the configured HTTP server.
type Server struct {
	cfg        Config
	deps       Deps
	dispatcher *routes.Dispatcher
	gates      *custommw.Gates
	logger     *zap.Logger
	router     chi.Router
	http       *http.Server
}

// New validates the route table and constructs the server with its
// middleware stack.
func New(cfg Config, deps Deps) (*Server, error) {
	dispatcher, err := routes.New(deps.Table)
	if err != nil {
		return nil, fmt.Errorf("httpserver: route table: %w", err)
	}
	if deps.Resolver == nil {
		return nil, errors.New("httpserver: gate resolver is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("httpserver: session cookie manager is required")
	}
	if deps.Preferences == nil {
		return nil, errors.New("httpserver: language preferences are required")
	}
	if deps.Bundle == nil {
		deps.Bundle = i18n.MustDefault()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.GateWait <= 0 {
		cfg.GateWait = defaultGateWait
	}

	s := &Server{
		cfg:        cfg,
		deps:       deps,
		dispatcher: dispatcher,
		logger:     deps.Logger,
	}
	var snapshot custommw.SettingsSnapshot
	if deps.Settings != nil {
		snapshot = deps.Settings
	}
	s.gates = custommw.NewGates(deps.Resolver, snapshot)

	static, err := staticFS(cfg.StaticDir)
	if err != nil {
		return nil, err
	}
	s.router = s.routes(static)
	s.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  orDefault(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(cfg.IdleTimeout, 60*time.Second),
	}
	return s, nil
}

// Handler is the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Dispatcher is the validated route table.
func (s *Server) Dispatcher() *routes.Dispatcher { return s.dispatcher }

// ListenAndServe serves until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) routes(static fs.FS) chi.Router {
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.Trace(s.cfg.TraceProjectID))
	router.Use(observability.InjectLogger(s.logger))
	router.Use(observability.RequestLogger())
	router.Use(observability.Recovery(s.logger, s.renderError))
	router.Use(chimw.Compress(5, "text/html", "text/css", "application/json"))
	router.Use(chimw.Timeout(60 * time.Second))

	router.Get("/healthz", s.healthz)
	router.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	router.Group(func(r chi.Router) {
		r.Use(custommw.HTMX())
		r.Use(custommw.NoStore())
		r.Use(custommw.Language(s.deps.Preferences))
		r.Use(custommw.Session(s.deps.Sessions))
		r.Use(custommw.Authenticate(s.deps.Verifier))
		r.Use(custommw.CSRF(custommw.CSRFConfig{Secure: s.cfg.CookieSecure}))

		r.Get("/lang/{lang}", s.switchLanguage)
		r.Post("/session", s.signIn)
		r.Post("/session/signout", s.signOut)

		r.Route("/api", func(r chi.Router) {
			r.With(s.gates.RequireSession()).Get("/session", s.apiSession)
			r.With(s.gates.RequireVerifiedAndComplete()).Get("/profile", s.apiProfile)
			r.With(s.gates.RequireRole(memberListRoles...)).Get("/admin/members", s.apiMembers)
		})

		r.Get("/", s.page)
		r.Get("/*", s.page)
	})
	return router
}

func staticFS(dir string) (fs.FS, error) {
	if dir != "" {
		return os.DirFS(dir), nil
	}
	static, err := public.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("httpserver: embedded static: %w", err)
	}
	return static, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
