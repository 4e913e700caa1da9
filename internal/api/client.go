package api

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
	"strconv"
	"strings"
	"time"

	"mcpanel/internal/services"
)

// ErrPanelUnavailable reports that no panel is listening.
var ErrPanelUnavailable = errors.New("panel API unavailable")

// Error is a non-2xx panel response.
type Error struct {
	StatusCode int
	Message    string
	Kind       string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("panel returned status %d", e.StatusCode)
	}
	return e.Message
}

func (e *Error) ErrorKind() string { return e.Kind }

// Unwrap maps the server-side classification back onto the local markers.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case "validation":
		return services.ErrValidation
	case "conflict":
		return services.ErrConflict
	case "server":
		return services.ErrServer
	case "poll":
		return services.ErrPoll
	case "unavailable":
		return services.ErrUnavailable
	}
	return nil
}

// Client talks to a running panel.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for the panel listening on bind. It returns nil
// when bind is empty.
func NewClient(bind, token string, timeout time.Duration) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + dialableBind(bind)
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		http:  &http.Client{Timeout: timeout},
	}, nil
}

// dialableBind rewrites wildcard listen addresses to loopback.
func dialableBind(bind string) string {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// Status returns the panel's current view.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, nil, &out)
	return out, err
}

// Refresh asks the panel to fetch the status now.
func (c *Client) Refresh(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodPost, "/api/refresh", nil, nil, &out)
	return out, err
}

// Start requests a server launch.
func (c *Client) Start(ctx context.Context, req StartRequest) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodPost, "/api/start", nil, req, &out)
	return out, err
}

// Stop requests a server stop.
func (c *Client) Stop(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodPost, "/api/stop", nil, nil, &out)
	return out, err
}

// History returns up to limit recorded transitions.
func (c *Client) History(ctx context.Context, limit int) (HistoryResponse, error) {
	values := url.Values{}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	var out HistoryResponse
	err := c.do(ctx, http.MethodGet, "/api/history", values, nil, &out)
	return out, err
}

// Players returns the player list of the running server.
func (c *Client) Players(ctx context.Context) (PlayersResponse, error) {
	var out PlayersResponse
	err := c.do(ctx, http.MethodGet, "/api/players", nil, nil, &out)
	return out, err
}

// Panel returns daemon runtime information.
func (c *Client) Panel(ctx context.Context) (PanelStatus, error) {
	var out PanelStatus
	err := c.do(ctx, http.MethodGet, "/api/panel", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c == nil {
		return ErrPanelUnavailable
	}
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: query.Encode()})
	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload ErrorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if jsonErr := json.Unmarshal(data, &payload); jsonErr != nil || payload.Error == "" {
			payload.Error = strings.TrimSpace(string(data))
		}
		return &Error{StatusCode: resp.StatusCode, Message: payload.Error, Kind: payload.Kind}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// IsUnavailable reports whether err means no panel answered.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrPanelUnavailable) || errors.As(err, &opErr)
}
