package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/guided-traffic/secret-cipher/internal/monitoring"
)

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes(router *mux.Router) {
	router.Use(monitoring.HTTPMiddleware)
	router.Use(NewLogger(s.logger, s.config.LogHealthRequests).Middleware)

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(limitBody)

	v1.HandleFunc("/keys", s.handleGenerateKey).Methods(http.MethodPost)
	v1.HandleFunc("/encrypt", s.handleEncrypt).Methods(http.MethodPost)
	v1.HandleFunc("/decrypt", s.handleDecrypt).Methods(http.MethodPost)

	secrets := v1.PathPrefix("/secrets").Subrouter()
	secrets.Use(s.requireVault)
	secrets.HandleFunc("", s.handlePutSecret).Methods(http.MethodPost)
	secrets.HandleFunc("/{id}", s.handleGetSecret).Methods(http.MethodGet)
	secrets.HandleFunc("/{id}", s.handleDeleteSecret).Methods(http.MethodDelete)
}
