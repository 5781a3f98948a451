// Package api exposes the secret cipher and vault over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/guided-traffic/secret-cipher/internal/config"
	"github.com/guided-traffic/secret-cipher/internal/vault"
	"github.com/guided-traffic/secret-cipher/pkg/secretcipher"
)

// BuildInfo is reported by /version.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// Server represents the secret-cipher HTTP API server
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	cipher     *secretcipher.Cipher
	vault      *vault.Vault // nil when no record backend is configured
	config     *config.Config
	build      BuildInfo
	checks     map[string]HealthCheck
	logger     *logrus.Entry
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// NewServer creates a new API server. v may be nil, in which case the
// /v1/secrets routes answer 503.
func NewServer(cfg *config.Config, c *secretcipher.Cipher, v *vault.Vault, build BuildInfo) *Server {
	s := &Server{
		router: mux.NewRouter(),
		cipher: c,
		vault:  v,
		config: cfg,
		build:  build,
		checks: make(map[string]HealthCheck),
		logger: logrus.WithField("component", "api-server"),
	}
	s.setupRoutes(s.router)

	s.httpServer = &http.Server{
		Addr:              cfg.BindAddress,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// AddHealthCheck registers a dependency check run by /health. Register
// checks before Start.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.checks[name] = check
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	serverErrChan := make(chan error, 1)
	go func() {
		s.logger.WithField("address", s.config.BindAddress).Info("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErrChan:
		return err
	case <-ctx.Done():
		s.logger.Info("Shutting down server")

		timeout := time.Duration(s.config.ShutdownTimeout) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Failed to gracefully shutdown server")
			return err
		}

		s.logger.Info("Server stopped")
		return nil
	}
}
