package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tastebase/tastebase/internal/handler"
	"github.com/tastebase/tastebase/internal/openapi"
	"github.com/tastebase/tastebase/internal/server/middleware"
	"github.com/tastebase/tastebase/internal/service"
	"github.com/tastebase/tastebase/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host              string
	Port              int
	ShutdownTimeout   time.Duration
	CORSOrigins       []string
	RequestsPerMinute int
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		ShutdownTimeout:   30 * time.Second,
		CORSOrigins:       []string{"*"},
		RequestsPerMinute: 100,
	}
}

// Server is the top-level HTTP server. It owns the Chi router, the store,
// and the auth and usage services.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *store.Store
	authSvc    *service.AuthService
	usageSvc   *service.UsageService
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes and middleware wired, ready to
// listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, st *store.Store, authSvc *service.AuthService, usageSvc *service.UsageService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		store:    st,
		authSvc:  authSvc,
		usageSvc: usageSvc,
		logger:   logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	// Meter sits outside the auth gate so it sees the final status of every
	// metered request, including 401s and 403s.
	r.Use(middleware.Meter(s.store, s.logger))

	// Credential lanes. Recipes accept both; account-management routes accept
	// bearer tokens only, so a leaked API key cannot manage itself.
	apiKeyLane := &middleware.APIKeyLane{Auth: s.authSvc, Users: s.store, Logger: s.logger}
	bearerLane := &middleware.BearerLane{Auth: s.authSvc}
	bothLanes := middleware.Authenticate(apiKeyLane, bearerLane)
	bearerOnly := middleware.Authenticate(bearerLane)

	userHandler := handler.NewUserHandler(s.authSvc, s.store, s.logger)
	keyHandler := handler.NewAPIKeyHandler(s.authSvc, s.store, s.logger)
	recipeHandler := handler.NewRecipeHandler(s.store, s.logger)
	usageHandler := handler.NewUsageHandler(s.usageSvc, s.store, s.logger)

	// --- Health checks and docs (no auth) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", userHandler.Register)
			r.Post("/login", userHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(bearerOnly)
				r.With(middleware.RequireAdmin).Get("/all", userHandler.ListAll)
			})
		})

		r.Route("/apikey", func(r chi.Router) {
			r.Use(bearerOnly)
			r.Post("/regenerate", keyHandler.Regenerate)
			r.Get("/current", keyHandler.Current)
			r.With(middleware.RequireAdmin).Get("/all", keyHandler.ListAll)
		})

		r.Route("/recipes", func(r chi.Router) {
			r.Use(middleware.RateLimit(s.cfg.RequestsPerMinute))
			r.Use(bothLanes)

			r.Get("/", recipeHandler.List)
			r.Get("/cuisines", recipeHandler.Cuisines)
			r.Get("/search", recipeHandler.Search)
			r.Get("/{id}", recipeHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/", recipeHandler.Create)
				r.Post("/seed", recipeHandler.Seed)
				r.Put("/{id}", recipeHandler.Update)
				r.Delete("/{id}", recipeHandler.Delete)
			})
		})

		r.Route("/usage", func(r chi.Router) {
			r.Use(bearerOnly)
			r.Get("/stats", usageHandler.Stats)
			r.With(middleware.RequireAdmin).Get("/analytics", usageHandler.Analytics)
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
}

// handleReadyz is a readiness probe: 200 when the store answers a ping.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded","store":"` + "unreachable" + `"}`)) //nolint:errcheck
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","store":"ok"}`)) //nolint:errcheck
}

// handleOpenAPI serves the API description.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := openapi.Document()
	if err != nil {
		s.logger.Error("build openapi doc", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	data, err := doc.MarshalJSON()
	if err != nil {
		s.logger.Error("marshal openapi doc", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// ListenAndServe starts the HTTP server and blocks until SIGINT or SIGTERM,
// then drains in-flight requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
