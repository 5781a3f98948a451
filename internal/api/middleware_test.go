package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLoggedRouter(logHealth bool) (*mux.Router, *test.Hook) {
	logger, hook := test.NewNullLogger()
	router := mux.NewRouter()
	router.Use(NewLogger(logrus.NewEntry(logger), logHealth).Middleware)
	router.HandleFunc("/v1/secrets/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {})
	router.HandleFunc("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return router, hook
}

func TestLogger_LogsRouteTemplateNotSecretID(t *testing.T) {
	router, hook := newLoggedRouter(false)
	id := "6f1c2a9e-0b7d-4c55-9a51-3c7e2f0d8b14"

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/v1/secrets/"+id, nil))

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, "/v1/secrets/{id}", entry.Data["route"])
	assert.Equal(t, http.StatusNoContent, entry.Data["status"])
	line, err := entry.String()
	require.NoError(t, err)
	assert.NotContains(t, line, id)
}

func TestLogger_HealthRequests(t *testing.T) {
	router, hook := newLoggedRouter(false)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, hook.AllEntries())

	router, hook = newLoggedRouter(true)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, hook.AllEntries(), 1)
}

func TestLogger_ServerErrorsAreWarnings(t *testing.T) {
	router, hook := newLoggedRouter(false)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}
