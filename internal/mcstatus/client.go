package mcstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mcpanel/internal/config"
	"mcpanel/internal/services"
)

const userAgent = "mcpanel/0.1"

// Player is one online player.
type Player struct {
	UUID string `json:"uuid"`
	Name string `json:"name_clean"`
}

// Players summarizes the player list.
type Players struct {
	Online int      `json:"online"`
	Max    int      `json:"max"`
	List   []Player `json:"list"`
}

// Version describes the server software.
type Version struct {
	Name string `json:"name_clean"`
}

// MOTD is the message of the day.
type MOTD struct {
	Clean string `json:"clean"`
}

// Status is the subset of the mcstatus.io Java response used by the panel.
type Status struct {
	Online   bool     `json:"online"`
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	Version  *Version `json:"version,omitempty"`
	Players  Players  `json:"players"`
	MOTD     *MOTD    `json:"motd,omitempty"`
	Address  string   `json:"address"`
}

// Client queries mcstatus.io.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client from the [mcstatus] section.
func New(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.MCStatus.RequestTimeout) * time.Second
	return NewClient(cfg.MCStatus.BaseURL, timeout)
}

// NewClient builds a client for baseURL with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Players fetches the status of the server at address (host or host:port).
func (c *Client) Players(ctx context.Context, address string) (Status, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Status{}, services.Wrap(services.ErrValidation, "mcstatus", "lookup", "server address is empty", nil)
	}
	endpoint := c.baseURL + "/status/java/" + url.PathEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Status{}, fmt.Errorf("build mcstatus request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return Status{}, services.Wrap(services.ErrUnavailable, "mcstatus", "lookup", "player lookup failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Status{}, services.Wrap(services.ErrUnavailable, "mcstatus", "lookup", "read response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Status{}, services.Wrap(services.ErrUnavailable, "mcstatus", "lookup",
			fmt.Sprintf("mcstatus returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	var status Status
	if err := json.Unmarshal(body, &status); err != nil {
		return Status{}, services.Wrap(services.ErrUnavailable, "mcstatus", "lookup", "decode response", err)
	}
	if status.Address == "" {
		status.Address = address
	}
	return status, nil
}
