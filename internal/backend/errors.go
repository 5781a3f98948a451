package backend

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no record matches the requested ID.
var ErrNotFound = errors.New("record not found")

// ConfigurationError reports a missing or invalid client setting at
// construction time.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("backend configuration: %s: %s", e.Field, e.Reason)
}

// APIError is a non-2xx response from the REST endpoint.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend API error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend API error %d: %s", e.Status, e.Message)
}
