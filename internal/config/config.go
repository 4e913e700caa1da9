package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ControlPlane describes the remote REST API that owns the server lifecycle.
type ControlPlane struct {
	BaseURL        string `toml:"base_url"`
	StartPath      string `toml:"start_path"`
	StopPath       string `toml:"stop_path"`
	StatusPath     string `toml:"status_path"`
	APIKey         string `toml:"api_key"`
	RequestTimeout int    `toml:"request_timeout"`
	HTTP2          bool   `toml:"http2"`
}

// Poller contains the status polling cadence. Values are seconds.
type Poller struct {
	FallbackRetrySeconds   int `toml:"fallback_retry_seconds"`
	MinRetrySeconds        int `toml:"min_retry_seconds"`
	MaxRetrySeconds        int `toml:"max_retry_seconds"`
	MaxConsecutiveFailures int `toml:"max_consecutive_failures"`
}

// Launch contains the defaults used when a start request omits them.
type Launch struct {
	Type      string   `toml:"type"`
	Version   string   `toml:"version"`
	Datapacks []string `toml:"datapacks"`
	Mods      []string `toml:"mods"`
}

// Panel contains the local JSON API settings.
type Panel struct {
	Bind      string `toml:"bind"`
	Token     string `toml:"token"`
	TokenHash string `toml:"token_hash"`
}

// Paths contains local directories.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Cache controls the SQLite snapshot cache.
type Cache struct {
	Enabled     bool `toml:"enabled"`
	HistoryKeep int  `toml:"history_keep"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Transitions    bool   `toml:"transitions"`
	Actions        bool   `toml:"actions"`
	Errors         bool   `toml:"errors"`
}

// MCStatus contains the public player-lookup service settings.
type MCStatus struct {
	BaseURL        string `toml:"base_url"`
	Address        string `toml:"address"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for mcpanel.
//
// Configuration sections by subsystem:
//   - ControlPlane: remote start/stop/status API
//   - Poller: retry cadence and failure cap
//   - Launch: default server type and version for start
//   - Panel: local JSON API bind address and auth
//   - Paths: state and log directories
//   - Cache: SQLite snapshot cache
//   - Notifications: ntfy push notification settings
//   - MCStatus: player list lookup
//   - Logging: log format, level, and retention
type Config struct {
	ControlPlane  ControlPlane  `toml:"control_plane"`
	Poller        Poller        `toml:"poller"`
	Launch        Launch        `toml:"launch"`
	Panel         Panel         `toml:"panel"`
	Paths         Paths         `toml:"paths"`
	Cache         Cache         `toml:"cache"`
	Notifications Notifications `toml:"notifications"`
	MCStatus      MCStatus      `toml:"mcstatus"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mcpanel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CachePath returns the SQLite snapshot cache location.
func (c *Config) CachePath() string {
	return filepath.Join(c.Paths.StateDir, "snapshots.db")
}

// LockPath returns the panel daemon's single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "mcpanel.lock")
}

// FallbackInterval is the retry interval used when the control plane sends no hint.
func (c *Config) FallbackInterval() time.Duration {
	return time.Duration(c.Poller.FallbackRetrySeconds) * time.Second
}

// MinInterval is the lower clamp applied to server-provided hints.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.Poller.MinRetrySeconds) * time.Second
}

// MaxInterval is the upper clamp applied to server-provided hints.
func (c *Config) MaxInterval() time.Duration {
	return time.Duration(c.Poller.MaxRetrySeconds) * time.Second
}

// ControlPlaneTimeout returns the per-request timeout for control-plane calls.
func (c *Config) ControlPlaneTimeout() time.Duration {
	return time.Duration(c.ControlPlane.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML. Secrets are redacted.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	redacted.ControlPlane.APIKey = redact(c.ControlPlane.APIKey)
	redacted.Panel.Token = redact(c.Panel.Token)
	redacted.Panel.TokenHash = redact(c.Panel.TokenHash)
	return toml.Marshal(redacted)
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	return "<redacted>"
}
