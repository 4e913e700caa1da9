package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"mcpanel/internal/api"
	"mcpanel/internal/config"
	"mcpanel/internal/logging"
	"mcpanel/internal/panel"
)

// panelProbeTimeout bounds the check for a running panel.
const panelProbeTimeout = time.Second

type commandContext struct {
	configFlag *string
	localFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	// localOpts are applied to the in-process backend.
	localOpts []panel.Option
}

func newCommandContext(configFlag *string, localFlag *bool, localOpts ...panel.Option) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		localFlag:  localFlag,
		localOpts:  localOpts,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) local() bool {
	return c.localFlag != nil && *c.localFlag
}

// cliLogger logs warnings and errors to stderr. Lifecycle commands are
// short-lived so the daemon log file is left to the panel.
func (c *commandContext) cliLogger() *slog.Logger {
	cfg := c.configValue()
	format := "console"
	if cfg != nil {
		format = cfg.Logging.Format
	}
	logger, err := logging.New(logging.Options{Level: "warn", Format: format, OutputPaths: []string{"stderr"}})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// panelClient returns a client for the configured panel, or nil when the
// panel bind is disabled.
func (c *commandContext) panelClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	timeout := 2*cfg.ControlPlaneTimeout() + 30*time.Second
	return api.NewClient(cfg.Panel.Bind, cfg.Panel.Token, timeout)
}

// withServer runs fn against the running panel when one answers, otherwise
// against an in-process backend that is closed afterwards.
func (c *commandContext) withServer(ctx context.Context, fn func(serverAPI) error) error {
	backend, err := c.openServer(ctx)
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(backend)
}

func (c *commandContext) openServer(ctx context.Context) (serverAPI, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !c.local() {
		client, err := c.panelClient()
		if err != nil {
			return nil, fmt.Errorf("panel client: %w", err)
		}
		if client != nil {
			probeCtx, cancel := context.WithTimeout(ctx, panelProbeTimeout)
			_, probeErr := client.Panel(probeCtx)
			cancel()
			switch {
			case probeErr == nil:
				return &panelAdapter{client: client}, nil
			case !api.IsUnavailable(probeErr):
				return nil, fmt.Errorf("contact panel at %s: %w", cfg.Panel.Bind, probeErr)
			}
		}
	}

	p, err := panel.New(cfg, c.cliLogger(), c.localOpts...)
	if err != nil {
		return nil, err
	}
	if err := p.Attach(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return &localAdapter{panel: p}, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
