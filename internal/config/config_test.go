package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/crypto/bcrypt"

	"mcpanel/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MCPANEL_BASE_URL", "https://cp.example.com/api/")
	t.Setenv("MCPANEL_API_KEY", "env-key")
	t.Setenv("MCPANEL_PANEL_TOKEN", "")
	t.Setenv("MCPANEL_NTFY_TOPIC", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "mcpanel")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.ControlPlane.BaseURL != "https://cp.example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.ControlPlane.BaseURL)
	}
	if cfg.ControlPlane.APIKey != "env-key" {
		t.Fatalf("expected API key from env, got %q", cfg.ControlPlane.APIKey)
	}
	if cfg.Panel.Bind != "127.0.0.1:7488" {
		t.Fatalf("unexpected panel bind: %q", cfg.Panel.Bind)
	}
	if cfg.FallbackInterval() != 15*time.Second {
		t.Fatalf("unexpected fallback interval: %s", cfg.FallbackInterval())
	}
	if cfg.Poller.MaxConsecutiveFailures != 5 {
		t.Fatalf("unexpected failure cap: %d", cfg.Poller.MaxConsecutiveFailures)
	}
	if cfg.Launch.Type != "FABRIC" || cfg.Launch.Version != "1.20.1" {
		t.Fatalf("unexpected launch defaults: %+v", cfg.Launch)
	}
	if cfg.CachePath() != filepath.Join(wantState, "snapshots.db") {
		t.Fatalf("unexpected cache path: %q", cfg.CachePath())
	}
}

func TestLoadWithoutBaseURLFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MCPANEL_BASE_URL", "")

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected error when base_url is missing")
	}
	if !strings.Contains(err.Error(), "control_plane.base_url") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("MCPANEL_API_KEY", "")

	configPath := filepath.Join(t.TempDir(), "mcpanel.toml")
	content := `
[control_plane]
base_url = "http://localhost:9000"
status_path = "server/status"
api_key = "file-key"

[poller]
fallback_retry_seconds = 5
min_retry_seconds = 2
max_retry_seconds = 60

[launch]
type = "vanilla"
datapacks = [" https://a.example/p.zip ", "https://a.example/p.zip", ""]

[paths]
state_dir = "~/panel-state"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.ControlPlane.StatusPath != "/server/status" {
		t.Fatalf("expected leading slash added, got %q", cfg.ControlPlane.StatusPath)
	}
	if cfg.ControlPlane.StartPath != "/start" {
		t.Fatalf("expected default start path, got %q", cfg.ControlPlane.StartPath)
	}
	if cfg.ControlPlane.APIKey != "file-key" {
		t.Fatalf("expected API key from file, got %q", cfg.ControlPlane.APIKey)
	}
	if cfg.Launch.Type != "VANILLA" {
		t.Fatalf("expected uppercased launch type, got %q", cfg.Launch.Type)
	}
	if len(cfg.Launch.Datapacks) != 1 || cfg.Launch.Datapacks[0] != "https://a.example/p.zip" {
		t.Fatalf("expected deduped datapacks, got %v", cfg.Launch.Datapacks)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, "panel-state") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.FallbackInterval() != 5*time.Second || cfg.MinInterval() != 2*time.Second || cfg.MaxInterval() != time.Minute {
		t.Fatalf("unexpected poller intervals: %+v", cfg.Poller)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "base_url") {
		t.Fatalf("sample config missing base_url: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Poller.FallbackRetrySeconds != 15 {
		t.Fatalf("unexpected sample fallback: %d", cfg.Poller.FallbackRetrySeconds)
	}

	t.Setenv("HOME", t.TempDir())
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
}

func TestEncodeRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.ControlPlane.APIKey = "secret-key"
	cfg.Panel.Token = "panel-secret"

	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if strings.Contains(string(data), "secret-key") || strings.Contains(string(data), "panel-secret") {
		t.Fatalf("expected secrets redacted, got %s", data)
	}
	if cfg.ControlPlane.APIKey != "secret-key" {
		t.Fatal("Encode must not mutate the receiver")
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("tok"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "base url scheme",
			mutate:  func(c *config.Config) { c.ControlPlane.BaseURL = "ftp://cp.example.com" },
			wantErr: "control_plane.base_url",
		},
		{
			name:    "zero fallback",
			mutate:  func(c *config.Config) { c.Poller.FallbackRetrySeconds = 0 },
			wantErr: "poller.fallback_retry_seconds",
		},
		{
			name:    "fallback above max",
			mutate:  func(c *config.Config) { c.Poller.FallbackRetrySeconds = 900 },
			wantErr: "between",
		},
		{
			name:    "unknown launch type",
			mutate:  func(c *config.Config) { c.Launch.Type = "FORGE" },
			wantErr: "launch.type",
		},
		{
			name: "mods on vanilla",
			mutate: func(c *config.Config) {
				c.Launch.Type = "VANILLA"
				c.Launch.Mods = []string{"https://mods.example/a.jar"}
			},
			wantErr: "launch.mods",
		},
		{
			name:    "bad datapack",
			mutate:  func(c *config.Config) { c.Launch.Datapacks = []string{"not-a-url"} },
			wantErr: "launch.datapacks",
		},
		{
			name:    "bad token hash",
			mutate:  func(c *config.Config) { c.Panel.TokenHash = "plaintext" },
			wantErr: "panel.token_hash",
		},
		{
			name: "token and hash",
			mutate: func(c *config.Config) {
				c.Panel.Token = "tok"
				c.Panel.TokenHash = string(hash)
			},
			wantErr: "mutually exclusive",
		},
		{
			name:    "log level",
			mutate:  func(c *config.Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.ControlPlane.BaseURL = "https://cp.example.com"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}

	t.Run("valid hash", func(t *testing.T) {
		cfg := config.Default()
		cfg.ControlPlane.BaseURL = "https://cp.example.com"
		cfg.Panel.TokenHash = string(hash)
		if err := cfg.Validate(); err != nil {
			t.Fatalf("expected valid config, got %v", err)
		}
	})
}
