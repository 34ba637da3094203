// Package remote implements plan.Remote against the plan HTTP API and
// follows its event stream.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/planpanel/internal/plan"
)

// AuthHeader carries the shared token.
const AuthHeader = "X-Auth"

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote: http %d", e.Code)
	}
	return fmt.Sprintf("remote: http %d: %s", e.Code, e.Message)
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the shared token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the HTTP client used for plan requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithReconnectDelay bounds the wait between event stream reconnects.
func WithReconnectDelay(minDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.minBackoff = minDelay
		c.maxBackoff = maxDelay
	}
}

// Client talks to a plan server.
type Client struct {
	base       *url.URL
	token      string
	http       *http.Client
	stream     *http.Client
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		base:       u,
		http:       &http.Client{Timeout: 30 * time.Second},
		stream:     &http.Client{},
		logger:     slog.New(slog.NewJSONHandler(io.Discard, nil)),
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

var _ plan.Remote = (*Client)(nil)

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set(AuthHeader, c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}
	return &StatusError{Code: resp.StatusCode, Message: body.Error}
}

// Fetch returns the current plan for key.
func (c *Client) Fetch(ctx context.Context, key plan.Key) (plan.Document, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.endpoint("/planning", url.Values{"date": {key.String()}}), nil)
	if err != nil {
		return plan.Document{}, err
	}
	var doc plan.Document
	if err := c.do(req, &doc); err != nil {
		return plan.Document{}, err
	}
	if doc.Key == "" {
		doc.Key = key
	}
	return doc, nil
}

// Save stores content as the plan for key and returns the stored plan.
func (c *Client) Save(ctx context.Context, key plan.Key, content string) (plan.Document, error) {
	payload, err := json.Marshal(map[string]string{"date": key.String(), "content": content})
	if err != nil {
		return plan.Document{}, fmt.Errorf("remote: encode save: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("/planning", nil), bytes.NewReader(payload))
	if err != nil {
		return plan.Document{}, err
	}
	var doc plan.Document
	if err := c.do(req, &doc); err != nil {
		return plan.Document{}, err
	}
	if doc.Key == "" {
		doc.Key = key
	}
	return doc, nil
}
