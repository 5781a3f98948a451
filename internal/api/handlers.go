package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/guided-traffic/secret-cipher/internal/vault"
	"github.com/guided-traffic/secret-cipher/pkg/secretcipher"
)

const healthCheckTimeout = 5 * time.Second

type secretRequest struct {
	Secret *string `json:"secret"`
}

type decryptRequest struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	RawKey     string `json:"rawKey"`
}

type keyResponse struct {
	RawKey string `json:"rawKey"`
}

type secretResponse struct {
	Secret string `json:"secret"`
}

type idResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.cipher.GenerateKey(r.Context())
	if err != nil {
		s.handleCipherError(w, r, err)
		return
	}

	raw, err := key.Export()
	if err != nil {
		s.handleCipherError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, keyResponse{RawKey: base64.StdEncoding.EncodeToString(raw)})
}

// handleEncrypt seals the secret under a key generated for this request only.
func (s *Server) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	secret, ok := s.decodeSecret(w, r)
	if !ok {
		return
	}

	key, err := s.cipher.GenerateKey(r.Context())
	if err != nil {
		s.handleCipherError(w, r, err)
		return
	}

	bundle, err := s.cipher.Encrypt(r.Context(), secret, key)
	if err != nil {
		s.handleCipherError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, bundle)
}

func (s *Server) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req decryptRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	secret, err := s.cipher.Decrypt(r.Context(), req.Ciphertext, req.IV, req.RawKey)
	if err != nil {
		s.handleCipherError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, secretResponse{Secret: secret})
}

func (s *Server) handlePutSecret(w http.ResponseWriter, r *http.Request) {
	secret, ok := s.decodeSecret(w, r)
	if !ok {
		return
	}

	id, err := s.vault.Put(r.Context(), secret)
	if err != nil {
		s.handleCipherError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/secrets/"+id)
	s.writeJSON(w, http.StatusCreated, idResponse{ID: id})
}

func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	secret, err := s.vault.Get(r.Context(), id)
	if err != nil {
		s.handleCipherError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, secretResponse{Secret: secret})
}

func (s *Server) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.vault.Delete(r.Context(), id); err != nil {
		s.handleCipherError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			s.logger.WithError(err).WithField("check", name).Warn("Health check failed")
			checks[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "healthy"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":    state,
		"engine":    s.cipher.Engine(),
		"vault":     s.vault != nil,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.build)
}

func (s *Server) decodeSecret(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req secretRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "InvalidRequest", err.Error())
		return "", false
	}
	if req.Secret == nil {
		s.writeError(w, r, http.StatusBadRequest, "InvalidRequest", "field \"secret\" is required")
		return "", false
	}
	return *req.Secret, true
}

func decodeJSON(r *http.Request, v interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("unsupported content type %q", ct)
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// handleCipherError maps cipher and vault errors onto HTTP statuses.
func (s *Server) handleCipherError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, r, http.StatusServiceUnavailable, "RequestCanceled", "request was canceled")
	case errors.Is(err, secretcipher.ErrEncoding):
		s.writeError(w, r, http.StatusBadRequest, "EncodingError", err.Error())
	case errors.Is(err, secretcipher.ErrDecryption):
		s.writeError(w, r, http.StatusUnprocessableEntity, "DecryptionFailed", "ciphertext could not be authenticated")
	case errors.Is(err, vault.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, "NotFound", "secret not found")
	default:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"route":  routeTemplate(r),
		}).Error("Request failed")
		s.writeError(w, r, http.StatusInternalServerError, "InternalError", "internal server error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	s.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"route":  routeTemplate(r),
		"status": status,
		"code":   code,
	}).Debug("Returning error response")

	s.writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
