// Package httpapi exposes the migration set and run operations over a
// small JSON API, for dashboards and remote triggering.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"schemachain/internal/config"
	"schemachain/internal/db"
	"schemachain/internal/engine"
)

type Server struct {
	cfg              config.Config
	logger           requestLogger
	adapter          db.Adapter
	migrationHandler *MigrationHandler
	runHandler       *RunHandler
}

type requestLogger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

func New(cfg config.Config, logger requestLogger, eng *engine.Engine, adapter db.Adapter) *Server {
	return &Server{
		cfg:              cfg,
		logger:           logger,
		adapter:          adapter,
		migrationHandler: &MigrationHandler{Engine: eng},
		runHandler:       &RunHandler{Engine: eng, Adapter: adapter},
	}
}

func (s *Server) Start(ctx context.Context) error {
	r := s.routes()
	httpServer := &http.Server{
		Addr:              s.cfg.HTTPAddress,
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting", "addr", s.cfg.HTTPAddress)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("http server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(RequestLogger(s.logger))

	r.Route("/api/v1", func(api chi.Router) {
		api.Method(http.MethodGet, "/health", HealthHandler{Adapter: s.adapter})

		api.Get("/migrations", s.migrationHandler.List)
		api.Get("/migrations/{name}", s.migrationHandler.Get)
		api.Get("/status", s.runHandler.Status)
		api.Post("/migrate", s.runHandler.Migrate)
	})

	return r
}
