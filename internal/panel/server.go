// Package panel serves the staff web panel: login, dashboard, user grids
// and the moderation queue, backed by the same components as the CLI.
package panel

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/springfield-ops/townctl/internal/api"
	"github.com/springfield-ops/townctl/internal/audit"
	"github.com/springfield-ops/townctl/internal/dashboard"
	"github.com/springfield-ops/townctl/internal/guard"
	"github.com/springfield-ops/townctl/internal/state"
)

// Config holds panel configuration.
type Config struct {
	Addr string
	// CORSOrigins are extra origins allowed to call the panel API.
	CORSOrigins []string
	// PublicDashboard is opened by "view as user".
	PublicDashboard string
}

// Server is the staff web panel.
type Server struct {
	cfg        Config
	api        *api.Client
	guard      *guard.Guard
	state      *state.Store
	audit      *audit.Store
	pollers    *dashboard.Pollers
	live       *hub
	router     chi.Router
	httpServer *http.Server
}

// New creates a panel server. ac carries no credentials; each request uses
// the caller's session cookie. pollers may be nil.
func New(cfg Config, ac *api.Client, g *guard.Guard, st *state.Store, au *audit.Store, pollers *dashboard.Pollers) *Server {
	s := &Server{
		cfg:     cfg,
		api:     ac,
		guard:   g,
		state:   st,
		audit:   au,
		pollers: pollers,
		live:    newHub(),
	}
	if pollers != nil {
		pollers.Subscribe(s.live.broadcast)
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   append([]string{"http://localhost:*", "http://127.0.0.1:*"}, s.cfg.CORSOrigins...),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	r.Use(cors.Handler(corsOpts))
	r.Use(s.guard.Middleware(guard.DefaultRoutes))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get(guard.LoginPath, s.handleLoginPage)
	r.Post(guard.LoginPath, s.handleLogin)
	r.Get("/logout", s.handleLogout)

	// The websocket is long-lived and stays outside the request timeout.
	r.Get("/ws/live", s.handleLive)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", s.handleDashboard)
		r.Get("/users", s.handleUsers)
		r.Get("/pending", s.handlePending)
		r.Get("/save", s.handleSave)

		r.Get("/panel/api/live", s.handleLiveSnapshot)
		r.Post("/panel/api/event", s.handleSetEvent)
		r.Post("/panel/api/event/adjust", s.handleAdjustEvent)
		r.Post("/panel/api/event/reset", s.handleResetEvent)
		r.Post("/panel/api/server/{action}", s.handleServerControl)
		r.Post("/panel/api/settings/donuts", s.handleInitialDonuts)
		r.Post("/panel/api/prefs", s.handlePrefs)
		r.Post("/panel/api/users/delete", s.handleDeleteUser)
		r.Post("/panel/api/users/view-as", s.handleViewAs)
		r.Post("/panel/api/pending/{id}/approve", s.handleApprove)
		r.Post("/panel/api/pending/{id}/reject", s.handleReject)

		if s.audit != nil {
			audit.RegisterRoutes(r, s.audit)
		}
	})

	return r
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("panel: listening on http://%s", s.cfg.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and waits for background
// session checks.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.guard.Wait()
	return err
}
