package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"mcpanel/internal/config"
	"mcpanel/internal/launch"
	"mcpanel/internal/logging"
	"mcpanel/internal/services"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxResponseBody    = 1 << 20
	userAgent          = "mcpanel/0.1"
)

// Config captures the routes and credentials of the control plane.
type Config struct {
	BaseURL        string
	StartPath      string
	StopPath       string
	StatusPath     string
	APIKey         string
	TimeoutSeconds int
	HTTP2          bool
}

// ConfigFrom extracts the control-plane settings from application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:        cfg.ControlPlane.BaseURL,
		StartPath:      cfg.ControlPlane.StartPath,
		StopPath:       cfg.ControlPlane.StopPath,
		StatusPath:     cfg.ControlPlane.StatusPath,
		APIKey:         cfg.ControlPlane.APIKey,
		TimeoutSeconds: cfg.ControlPlane.RequestTimeout,
		HTTP2:          cfg.ControlPlane.HTTP2,
	}
}

// Client performs start, stop, and status calls against the control plane.
type Client struct {
	base       *url.URL
	startPath  string
	stopPath   string
	statusPath string
	apiKey     string
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithClock overrides the clock used to resolve HTTP-date Retry-After values.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger attaches a logger for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "controlplane")
	}
}

// New constructs a client. The base URL must be absolute.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("control plane base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("control plane base url %q must be absolute", cfg.BaseURL)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("configure http2 transport: %w", err)
		}
	}

	c := &Client{
		base:       base,
		startPath:  orDefault(cfg.StartPath, "/start"),
		stopPath:   orDefault(cfg.StopPath, "/stop"),
		statusPath: orDefault(cfg.StatusPath, "/status"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		now:        time.Now,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// NewFromConfig builds a client from application config.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("control plane: config is required")
	}
	return New(ConfigFrom(cfg), WithLogger(logger))
}

// Status fetches the current server status. When location is non-empty it is
// used verbatim instead of the configured status route.
func (c *Client) Status(ctx context.Context, location string) (Result, error) {
	target := c.endpoint(c.statusPath)
	if strings.TrimSpace(location) != "" {
		target = location
	}
	return c.do(ctx, "status", http.MethodGet, target, nil)
}

// Start asks the control plane to launch a server with the given request.
// The request must already be validated.
func (c *Client) Start(ctx context.Context, req launch.Request) (Result, error) {
	body, err := json.Marshal(req.Body())
	if err != nil {
		return Result{}, &ServerError{Action: "start", Err: fmt.Errorf("encode request: %w", err)}
	}
	return c.do(ctx, "start", http.MethodPost, c.endpoint(c.startPath), body)
}

// Stop asks the control plane to stop the server.
func (c *Client) Stop(ctx context.Context) (Result, error) {
	return c.do(ctx, "stop", http.MethodPost, c.endpoint(c.stopPath), nil)
}

// StatusURL returns the absolute URL of the configured status route.
func (c *Client) StatusURL() string {
	return c.endpoint(c.statusPath)
}

func (c *Client) do(ctx context.Context, action, method, target string, body []byte) (Result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return Result{}, &ServerError{Action: action, Err: fmt.Errorf("new request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", rid)
	}

	started := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, &ServerError{Action: action, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Result{}, &ServerError{Action: action, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	logging.WithContext(ctx, c.logger).Debug("control plane response",
		logging.String("method", method),
		logging.String("url", target),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", c.now().Sub(started)),
	)

	if resp.StatusCode == http.StatusConflict {
		return Result{}, &ConflictError{Action: action, Body: truncateBody(data)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &ServerError{Action: action, StatusCode: resp.StatusCode, Body: truncateBody(data)}
	}

	result := Result{StatusCode: resp.StatusCode}
	result.RetryAfter, result.HasRetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), c.now())
	if loc := strings.TrimSpace(resp.Header.Get("Location")); loc != "" {
		resolved, err := c.resolveLocation(loc)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "ignoring unparseable Location header", "location_invalid",
				logging.String("location", loc),
				logging.Error(err),
				logging.String(logging.FieldImpact, "polling uses the configured status route"),
			)
		} else {
			result.Location = resolved
		}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(data, &result.Payload); err != nil {
		return Result{}, &ServerError{Action: action, StatusCode: resp.StatusCode, Body: truncateBody(data), Err: fmt.Errorf("decode response: %w", err)}
	}
	result.HasPayload = true
	return result, nil
}

// endpoint joins a route onto the base URL path, so a base of
// https://host/alpha with route /status yields https://host/alpha/status.
func (c *Client) endpoint(route string) string {
	u := *c.base
	u.Path = path.Join("/", c.base.Path, route)
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// resolveLocation applies RFC 3986 reference resolution against the base URL.
// Relative paths land under the base path; absolute paths replace it.
func (c *Client) resolveLocation(loc string) (string, error) {
	ref, err := url.Parse(loc)
	if err != nil {
		return "", err
	}
	base := *c.base
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref).String(), nil
}

// ParseRetryAfter reads a Retry-After value as delay-seconds or an HTTP-date.
// The boolean is false when the header is absent or unparseable.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := when.Sub(now)
		if delay < 0 {
			delay = 0
		}
		return delay, true
	}
	return 0, false
}

func orDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	return value
}
