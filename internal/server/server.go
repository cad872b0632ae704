// Package server owns HTTP server initialization and lifecycle.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/diagrammaton/server/internal/api"
	"github.com/diagrammaton/server/internal/infra/config"
)

// readTimeout bounds request header+body reads. There is no write
// timeout: generation responses stream for up to the request budget and
// a fixed write deadline would cut long streams mid-token.
const (
	readTimeout = 15 * time.Second
	idleTimeout = 60 * time.Second
)

// Server wraps the HTTP server and database.
type Server struct {
	db   *sql.DB
	http *http.Server
	log  *slog.Logger
}

// New builds the HTTP server: router, middleware, and all domain
// services wired against db per cfg.
func New(db *sql.DB, cfg config.Config, log *slog.Logger) *Server {
	router := api.NewRouter(db, cfg, log)

	httpServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     router,
		ReadTimeout: readTimeout,
		IdleTimeout: idleTimeout,
	}

	return &Server{db: db, http: httpServer, log: log}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("http server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server and closes the database.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")

	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("database close error: %w", err)
	}
	return nil
}
