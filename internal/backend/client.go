// Package backend talks to the hosted database REST API (PostgREST, as served
// by Supabase) that stores vault records. Clients are built explicitly with
// New and passed to whatever needs them; there is no package-level client.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// Config holds the settings a Client needs.
type Config struct {
	URL     string        `validate:"required,url"`
	AnonKey string        `validate:"required"`
	Table   string        `validate:"required"`
	Timeout time.Duration `validate:"gte=0"`
}

// Record is one stored secret without its key.
type Record struct {
	ID         string    `json:"id"`
	IV         string    `json:"iv"`
	Ciphertext string    `json:"ciphertext"`
	Engine     string    `json:"engine,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Client is a PostgREST client for one table.
type Client struct {
	baseURL    *url.URL
	anonKey    string
	table      string
	httpClient *http.Client
	logger     *logrus.Entry
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger entry.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock overrides time.Now for anon key expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

var validate = validator.New()

// New validates cfg and returns a ready client. Any problem is reported as
// a *ConfigurationError naming the offending field.
func New(cfg Config, opts ...Option) (*Client, error) {
	c := &Client{
		anonKey: cfg.AnonKey,
		table:   cfg.Table,
		logger:  logrus.WithField("component", "backend-client"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, &ConfigurationError{Field: fieldName(verrs[0].Field()), Reason: describe(verrs[0])}
		}
		return nil, &ConfigurationError{Field: "config", Reason: err.Error()}
	}

	u, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &ConfigurationError{Field: "url", Reason: "must be an absolute http(s) URL"}
	}
	c.baseURL = u

	if !validTableName(cfg.Table) {
		return nil, &ConfigurationError{Field: "table", Reason: "may only contain letters, digits and underscores"}
	}

	if err := c.checkAnonKey(cfg.AnonKey); err != nil {
		return nil, err
	}

	if c.httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}

	return c, nil
}

func validTableName(name string) bool {
	for _, r := range name {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return name != ""
}

func fieldName(f string) string {
	switch f {
	case "URL":
		return "url"
	case "AnonKey":
		return "anon_key"
	default:
		return strings.ToLower(f)
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// checkAnonKey requires a well-formed, unexpired JWT. The signature is the
// server's business; only the shape and expiry are checked here.
func (c *Client) checkAnonKey(key string) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(key, claims); err != nil {
		return &ConfigurationError{Field: "anon_key", Reason: fmt.Sprintf("is not a valid JWT: %v", err)}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return &ConfigurationError{Field: "anon_key", Reason: fmt.Sprintf("has an invalid exp claim: %v", err)}
	}
	if exp != nil && !exp.After(c.now()) {
		return &ConfigurationError{Field: "anon_key", Reason: "has expired at " + exp.Format(time.RFC3339)}
	}

	if role, ok := claims["role"].(string); ok && role == "service_role" {
		c.logger.Warn("Backend configured with a service_role key; prefer the anon key with row level security")
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+c.anonKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read backend response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"method":   req.Method,
		"path":     req.URL.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Backend request completed")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func parseAPIError(status int, body []byte) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
		return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{Status: status, Code: payload.Code, Message: payload.Message}
}

// SaveRecord inserts rec into the table.
func (c *Client) SaveRecord(ctx context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("/rest/v1/"+c.table, nil), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("failed to save record %s: %w", rec.ID, err)
	}
	return nil
}

// FetchRecord returns the record with the given ID or ErrNotFound.
func (c *Client) FetchRecord(ctx context.Context, id string) (*Record, error) {
	q := url.Values{}
	q.Set("id", "eq."+id)
	q.Set("select", "*")

	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("/rest/v1/"+c.table, q), nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch record %s: %w", id, err)
	}

	var rows []Record
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	return &rows[0], nil
}

// DeleteRecord removes the record with the given ID. Deleting a missing
// record is not an error.
func (c *Client) DeleteRecord(ctx context.Context, id string) error {
	q := url.Values{}
	q.Set("id", "eq."+id)

	req, err := c.newRequest(ctx, http.MethodDelete, c.endpoint("/rest/v1/"+c.table, q), nil)
	if err != nil {
		return err
	}

	if _, err := c.do(req); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

// Ping checks that the REST endpoint is reachable and accepts the key.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("/rest/v1/", nil), nil)
	if err != nil {
		return err
	}
	if _, err := c.do(req); err != nil {
		return fmt.Errorf("backend ping failed: %w", err)
	}
	return nil
}
