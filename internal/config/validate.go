package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateControlPlane(); err != nil {
		return err
	}
	if err := c.validatePoller(); err != nil {
		return err
	}
	if err := c.validateLaunch(); err != nil {
		return err
	}
	if err := c.validatePanel(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateMCStatus(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateControlPlane() error {
	if c.ControlPlane.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("control_plane.base_url is required. Set MCPANEL_BASE_URL env var or edit %s (create with 'mcpanel config init')", defaultPath)
	}
	if err := validateHTTPURL("control_plane.base_url", c.ControlPlane.BaseURL); err != nil {
		return err
	}
	if c.ControlPlane.RequestTimeout <= 0 {
		return errors.New("control_plane.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validatePoller() error {
	if err := ensurePositiveMap(map[string]int{
		"poller.fallback_retry_seconds":   c.Poller.FallbackRetrySeconds,
		"poller.min_retry_seconds":        c.Poller.MinRetrySeconds,
		"poller.max_retry_seconds":        c.Poller.MaxRetrySeconds,
		"poller.max_consecutive_failures": c.Poller.MaxConsecutiveFailures,
	}); err != nil {
		return err
	}
	if c.Poller.MinRetrySeconds > c.Poller.MaxRetrySeconds {
		return errors.New("poller.min_retry_seconds must not exceed poller.max_retry_seconds")
	}
	if c.Poller.FallbackRetrySeconds < c.Poller.MinRetrySeconds || c.Poller.FallbackRetrySeconds > c.Poller.MaxRetrySeconds {
		return errors.New("poller.fallback_retry_seconds must be between poller.min_retry_seconds and poller.max_retry_seconds")
	}
	return nil
}

func (c *Config) validateLaunch() error {
	switch c.Launch.Type {
	case "VANILLA", "FABRIC":
	default:
		return fmt.Errorf("launch.type must be VANILLA or FABRIC, got %q", c.Launch.Type)
	}
	if len(c.Launch.Mods) > 0 && c.Launch.Type != "FABRIC" {
		return errors.New("launch.mods requires launch.type = \"FABRIC\"")
	}
	for _, entry := range c.Launch.Datapacks {
		if err := validateHTTPURL("launch.datapacks", entry); err != nil {
			return err
		}
	}
	for _, entry := range c.Launch.Mods {
		if err := validateHTTPURL("launch.mods", entry); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validatePanel() error {
	if c.Panel.Token != "" && c.Panel.TokenHash != "" {
		return errors.New("panel.token and panel.token_hash are mutually exclusive")
	}
	if c.Panel.TokenHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Panel.TokenHash)); err != nil {
			return fmt.Errorf("panel.token_hash is not a bcrypt hash: %w", err)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.Enabled && c.Cache.HistoryKeep <= 0 {
		return errors.New("cache.history_keep must be positive when cache.enabled is true")
	}
	return nil
}

func (c *Config) validateMCStatus() error {
	if err := validateHTTPURL("mcstatus.base_url", c.MCStatus.BaseURL); err != nil {
		return err
	}
	if c.MCStatus.RequestTimeout <= 0 {
		return errors.New("mcstatus.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}

func validateHTTPURL(field, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid url %q: %w", field, raw, err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if (scheme != "http" && scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%s: %q must be an absolute http(s) url", field, raw)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
