package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mcpanel/internal/config"
	"mcpanel/internal/logging"
	"mcpanel/internal/panel"
	"mcpanel/internal/preflight"
)

const pidFileName = "mcpanel.pid"

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var skipRemote bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the panel: poll the server and serve the JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if level := strings.TrimSpace(logLevel); level != "" {
				cfg.Logging.Level = level
			}
			return runPanel(cmd.Context(), cfg, !skipRemote)
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&skipRemote, "skip-remote-check", false, "Skip the startup control plane check")
	return cmd
}

func runPanel(cmdCtx context.Context, cfg *config.Config, remoteCheck bool) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sessionID := uuid.NewString()
	logger, err := logging.NewFromConfig(cfg, sessionID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	activeLog := filepath.Join(cfg.Paths.LogDir, logging.DaemonLogName)
	if removed := logging.CleanupOldLogs(logger, cfg.Paths.LogDir, "*.log*", cfg.Logging.RetentionDays, activeLog); removed > 0 {
		logger.Info("removed expired log files", logging.Int("count", removed))
	}

	results := preflight.RunAll(signalCtx, cfg, preflight.Options{Remote: remoteCheck})
	for _, result := range results {
		if result.Passed {
			logger.Info("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "status may stay unknown until the check passes"),
		)
	}
	for _, failed := range preflight.Failed(results) {
		if strings.HasSuffix(failed.Name, "directory") {
			return fmt.Errorf("preflight: %s: %s", failed.Name, failed.Detail)
		}
	}

	p, err := panel.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create panel: %w", err)
	}
	defer p.Close()

	if err := p.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "panel start failed", "panel_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "stop the other panel or change panel.bind"),
		)
		return err
	}

	pidPath := filepath.Join(cfg.Paths.StateDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logger.Info("mcpanel panel ready", logging.String("address", p.Addr()))

	<-signalCtx.Done()
	logger.Info("mcpanel panel shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
