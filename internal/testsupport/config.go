package testsupport

import (
	"path/filepath"
	"testing"

	"mcpanel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.ControlPlane.BaseURL = "http://127.0.0.1:1"
	cfgVal.ControlPlane.RequestTimeout = 2
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Panel.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBaseURL points the control plane at url (usually an httptest server).
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ControlPlane.BaseURL = url
	}
}

// WithPanelToken enables bearer auth on the panel API.
func WithPanelToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Panel.Token = token
	}
}

// WithCache toggles the snapshot cache.
func WithCache(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Enabled = enabled
	}
}

// WithMCStatus points player lookups at url.
func WithMCStatus(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MCStatus.BaseURL = url
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
