// Package upstream is the HTTP client for the remote PortPilot API, which
// owns authentication and persistence. Every tabular resource follows the
// same contract:
//
//	GET <endpoint>  → {"ok": bool, "rows": [...], "error": "..."}
//	PUT <endpoint>  ← {"rows": [...]}  → {"ok": bool, "error": "..."}
//
// Authenticated calls carry X-User-Email and X-User-Role headers.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is used when no API URL is configured.
const DefaultBaseURL = "https://api.portpilot.co"

// ErrUnavailable wraps transport failures: the remote API could not be
// reached or did not answer. It is distinct from *APIError.
var ErrUnavailable = errors.New("remote api unavailable")

// APIError is an application error reported by the remote API: a non-2xx
// status or a response whose ok flag is false.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote api: status %d", e.Status)
	}
	return fmt.Sprintf("remote api: status %d: %s", e.Status, e.Message)
}

// Credentials identify the caller to the remote API.
type Credentials struct {
	Email string
	Role  string
}

// Client talks to the remote API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for degraded responses.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a Client for baseURL. timeout bounds each request; zero means
// no limit beyond the transport's defaults.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the shape of every remote response.
type envelope struct {
	OK      bool                     `json:"ok"`
	Rows    []map[string]interface{} `json:"rows"`
	Error   string                   `json:"error"`
	Message string                   `json:"message"`
	Token   string                   `json:"token"`
	User    json.RawMessage          `json:"user"`
}

// Fetch returns every row of the resource at endpoint.
func (c *Client) Fetch(ctx context.Context, endpoint string, creds Credentials) ([]map[string]string, error) {
	env, err := c.do(ctx, http.MethodGet, endpoint, &creds, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream.Client.Fetch %s: %w", endpoint, err)
	}
	rows := make([]map[string]string, 0, len(env.Rows))
	for _, r := range env.Rows {
		rows = append(rows, stringify(r))
	}
	return rows, nil
}

// Replace overwrites the resource at endpoint with rows.
func (c *Client) Replace(ctx context.Context, endpoint string, creds Credentials, rows []map[string]string) error {
	body := struct {
		Rows []map[string]string `json:"rows"`
	}{Rows: rows}
	if _, err := c.do(ctx, http.MethodPut, endpoint, &creds, body); err != nil {
		return fmt.Errorf("upstream.Client.Replace %s: %w", endpoint, err)
	}
	return nil
}

// ChangePassword sets the caller's own password.
func (c *Client) ChangePassword(ctx context.Context, creds Credentials, password string) error {
	body := map[string]string{"password": password}
	if _, err := c.do(ctx, http.MethodPatch, "/users/me", &creds, body); err != nil {
		return fmt.Errorf("upstream.Client.ChangePassword: %w", err)
	}
	return nil
}

// do sends one request and decodes the envelope. creds may be nil for
// unauthenticated calls.
func (c *Client) do(ctx context.Context, method, endpoint string, creds *Credentials, body interface{}) (envelope, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return envelope{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds != nil && creds.Email != "" {
		req.Header.Set("X-User-Email", creds.Email)
		req.Header.Set("X-User-Role", creds.Role)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: read body: %w", ErrUnavailable, err)
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		// A body that is not JSON counts as a response without the ok flag.
		c.log.WarnContext(ctx, "remote api returned non-JSON body",
			"method", method, "endpoint", endpoint, "status", resp.StatusCode)
		env = envelope{}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !env.OK {
		msg := env.Error
		if msg == "" {
			msg = env.Message
		}
		return env, &APIError{Status: resp.StatusCode, Message: msg}
	}
	return env, nil
}

// stringify flattens a decoded JSON record into string values. Null becomes
// "", numbers keep their literal text, and nested values are re-encoded.
func stringify(rec map[string]interface{}) map[string]string {
	out := make(map[string]string, len(rec))
	for k, v := range rec {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		case json.Number:
			out[k] = t.String()
		case bool:
			out[k] = strconv.FormatBool(t)
		default:
			b, err := json.Marshal(t)
			if err != nil {
				out[k] = ""
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}
