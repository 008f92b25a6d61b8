// Package server wires the router and runs the HTTP server.
//
// ROUTES:
//
//	POST   /api/signup
//	POST   /api/login
//	POST   /api/logout
//	GET    /api/me                       (auth)
//	PUT    /api/me                       (auth)
//	PUT    /api/me/story                 (auth)
//	POST   /api/journals                 (auth)
//	GET    /api/journals                 (auth)
//	POST   /api/journals/{id}/like       (auth)
//	GET    /api/mails                    (auth)
//	PUT    /api/mails/{id}/read          (auth)
//	PUT    /api/mails/{id}/claim-reward  (auth)
//	DELETE /api/mails/{id}               (auth)
//	GET    /healthz
//
// BACKGROUND WORK:
// Besides serving requests, the server sweeps expired mail once at start
// and then every SweepInterval until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/starlit/internal/auth"
	"github.com/sakif/starlit/internal/handler"
	"github.com/sakif/starlit/internal/middleware"
)

// DefaultSweepInterval is how often expired mail is deleted.
const DefaultSweepInterval = 24 * time.Hour

type Config struct {
	Port          int
	SweepInterval time.Duration
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Sweeper deletes expired mail.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Deps are the already-built collaborators. main constructs them; the
// server only routes to them.
type Deps struct {
	Accounts *handler.AccountHandler
	Journals *handler.JournalHandler
	Mails    *handler.MailHandler
	Tokens   *auth.TokenService
	DB       Pinger
	Sweeper  Sweeper
}

type Server struct {
	router *chi.Mux
	config Config
	deps   Deps
	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes registers middleware and routes.
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can print the id; Recoverer sits
// inside the logger so a panic is still logged as a 500.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/signup", s.deps.Accounts.HandleSignup)
		r.Post("/login", s.deps.Accounts.HandleLogin)
		r.Post("/logout", s.deps.Accounts.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.deps.Tokens))

			r.Get("/me", s.deps.Accounts.HandleMe)
			r.Put("/me", s.deps.Accounts.HandleUpdateProfile)
			r.Put("/me/story", s.deps.Accounts.HandleAssignStory)

			r.Post("/journals", s.deps.Journals.HandleCreate)
			r.Get("/journals", s.deps.Journals.HandleList)
			r.Post("/journals/{id}/like", s.deps.Journals.HandleToggleLike)

			r.Get("/mails", s.deps.Mails.HandleList)
			r.Put("/mails/{id}/read", s.deps.Mails.HandleMarkRead)
			r.Put("/mails/{id}/claim-reward", s.deps.Mails.HandleClaimReward)
			r.Delete("/mails/{id}", s.deps.Mails.HandleDelete)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.deps.DB.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// runSweeper sweeps once immediately, then on every tick until ctx ends.
// A failed sweep is logged and retried at the next tick.
func (s *Server) runSweeper(ctx context.Context) {
	sweep := func() {
		if _, err := s.deps.Sweeper.SweepExpired(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("mail sweep failed", slog.String("error", err.Error()))
		}
	}

	sweep()
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

// Start serves until SIGINT/SIGTERM, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections.
//  2. Give in-flight requests up to 30s to finish. A login caught mid-way
//     still commits or rolls back its transaction as a whole.
//  3. Stop the sweeper and wait for it.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	bg, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runSweeper(bg)
	}()
	defer func() {
		stopBackground()
		wg.Wait()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
