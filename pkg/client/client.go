// Package client provides the REST client for the file manager API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/ramy-dje/madar-dashboard-sub000/internal/logging"
	"github.com/ramy-dje/madar-dashboard-sub000/internal/metrics"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/protocol"
	"github.com/ramy-dje/madar-dashboard-sub000/pkg/retry"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Client talks to the file manager API. It is safe for concurrent use.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	blobClient  *http.Client
	retryConfig retry.Config
}

// Config holds client configuration.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	RetryConfig retry.Config

	// TokenSource supplies the bearer token. When nil, Token is used as a static token.
	TokenSource oauth2.TokenSource
	Token       string
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryConfig.MaxAttempts == 0 {
		cfg.RetryConfig = retry.DefaultConfig()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	ts := cfg.TokenSource
	if ts == nil && cfg.Token != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"})
	}

	var rt http.RoundTripper = transport
	if ts != nil {
		rt = &oauth2.Transport{Source: ts, Base: transport}
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: rt},
		// Signed URLs carry their own authorization; the bearer token must not leak to them.
		blobClient:  &http.Client{Timeout: cfg.Timeout, Transport: transport},
		retryConfig: cfg.RetryConfig,
	}
}

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// AsAPIError checks if an error is an APIError and returns it.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsForbidden reports a 403 of any kind.
func IsForbidden(err error) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.StatusCode == http.StatusForbidden
}

// IsPasswordRequired reports the 403 sent when a protected folder is requested without a password.
func IsPasswordRequired(err error) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.StatusCode == http.StatusForbidden && ae.Message == protocol.MsgPasswordRequired
}

// IsInvalidPassword reports the 403 sent when the supplied folder password is wrong.
func IsInvalidPassword(err error) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.StatusCode == http.StatusForbidden && ae.Message == protocol.MsgInvalidPassword
}

// IsNotFound reports a 404.
func IsNotFound(err error) bool {
	ae, ok := AsAPIError(err)
	return ok && ae.StatusCode == http.StatusNotFound
}

// request describes one API call.
type request struct {
	method      string
	path        string // below the /v1 prefix, already escaped
	route       string // metric label, ids replaced by :id
	query       url.Values
	body        io.Reader
	contentType string
	password    string
}

// send performs one round-trip. Non-2xx responses are consumed and returned as *APIError.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	u := c.baseURL + protocol.APIPrefix + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, err
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.password != "" {
		req.Header.Set(protocol.FolderPasswordHeader, r.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordAPIRequest(r.method, r.route, 0, duration)
		logging.Debug("api request failed",
			logging.String("method", r.method),
			logging.String("path", r.path),
			logging.String("request_id", requestID),
			logging.Duration("duration", duration),
			logging.Err(err),
		)
		return nil, err
	}

	metrics.RecordAPIRequest(r.method, r.route, resp.StatusCode, duration)
	logging.Debug("api request",
		logging.String("method", r.method),
		logging.String("path", r.path),
		logging.Int("status", resp.StatusCode),
		logging.String("request_id", requestID),
		logging.Duration("duration", duration),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, readAPIError(resp, r)
}

// errorBody tolerates a message sent either as a string or as a list of validation messages.
type errorBody struct {
	Message json.RawMessage `json:"message"`
	Error   string          `json:"error"`
}

func readAPIError(resp *http.Response, r request) *APIError {
	ae := &APIError{StatusCode: resp.StatusCode, Method: r.method, Path: r.path}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if json.Unmarshal(data, &eb) == nil {
		var msg string
		var msgs []string
		switch {
		case json.Unmarshal(eb.Message, &msg) == nil && msg != "":
			ae.Message = msg
		case json.Unmarshal(eb.Message, &msgs) == nil && len(msgs) > 0:
			ae.Message = strings.Join(msgs, "; ")
		default:
			ae.Message = eb.Error
		}
		return ae
	}
	ae.Message = strings.TrimSpace(string(data))
	return ae
}

// query performs a read-only call with retries. A 403 is never retried; every other failure is,
// up to the configured number of attempts.
func (c *Client) query(ctx context.Context, r request, out any) error {
	cfg := c.retryConfig
	cfg.OnRetry = func(attempt int, err error) {
		metrics.RecordAPIRetry(r.route)
		logging.Debug("retrying query",
			logging.String("route", r.route),
			logging.Int("attempt", attempt),
			logging.Err(err),
		)
	}

	return retry.Do(ctx, cfg, func() error {
		resp, err := c.send(ctx, r)
		if err != nil {
			if IsForbidden(err) || ctx.Err() != nil {
				return err
			}
			return retry.Retryable(err)
		}
		defer resp.Body.Close()
		return decode(resp, r, out)
	})
}

// mutate performs a state-changing call exactly once.
func (c *Client) mutate(ctx context.Context, r request, out any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decode(resp, r, out)
}

func decode(resp *http.Response, r request, out any) error {
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s %s response: %w", r.method, r.route, err)
	}
	return nil
}

// jsonRequest builds a request with a JSON body.
func jsonRequest(method, path, route string, body any) (request, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return request{}, fmt.Errorf("encode %s body: %w", route, err)
	}
	return request{
		method:      method,
		path:        path,
		route:       route,
		body:        bytes.NewReader(data),
		contentType: "application/json",
	}, nil
}

func escape(id string) string {
	return url.PathEscape(id)
}
