package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeControlPlane()
	c.normalizeLaunch()
	c.normalizePanel()
	c.normalizeNotifications()
	c.normalizeMCStatus()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeControlPlane() {
	c.ControlPlane.BaseURL = strings.TrimSpace(c.ControlPlane.BaseURL)
	if c.ControlPlane.BaseURL == "" {
		if value, ok := os.LookupEnv("MCPANEL_BASE_URL"); ok {
			c.ControlPlane.BaseURL = strings.TrimSpace(value)
		}
	}
	c.ControlPlane.BaseURL = strings.TrimRight(c.ControlPlane.BaseURL, "/")
	c.ControlPlane.APIKey = strings.TrimSpace(c.ControlPlane.APIKey)
	if c.ControlPlane.APIKey == "" {
		if value, ok := os.LookupEnv("MCPANEL_API_KEY"); ok {
			c.ControlPlane.APIKey = strings.TrimSpace(value)
		}
	}
	c.ControlPlane.StartPath = normalizeRoute(c.ControlPlane.StartPath, defaultStartPath)
	c.ControlPlane.StopPath = normalizeRoute(c.ControlPlane.StopPath, defaultStopPath)
	c.ControlPlane.StatusPath = normalizeRoute(c.ControlPlane.StatusPath, defaultStatusPath)
}

func normalizeRoute(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	return value
}

func (c *Config) normalizeLaunch() {
	c.Launch.Type = strings.ToUpper(strings.TrimSpace(c.Launch.Type))
	if c.Launch.Type == "" {
		c.Launch.Type = defaultLaunchType
	}
	c.Launch.Version = strings.TrimSpace(c.Launch.Version)
	if c.Launch.Version == "" {
		c.Launch.Version = defaultLaunchVersion
	}
	c.Launch.Datapacks = dedupeTrimmed(c.Launch.Datapacks)
	c.Launch.Mods = dedupeTrimmed(c.Launch.Mods)
}

func dedupeTrimmed(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (c *Config) normalizePanel() {
	c.Panel.Bind = strings.TrimSpace(c.Panel.Bind)
	if c.Panel.Bind == "" {
		c.Panel.Bind = defaultPanelBind
	}
	c.Panel.Token = strings.TrimSpace(c.Panel.Token)
	if c.Panel.Token == "" {
		if value, ok := os.LookupEnv("MCPANEL_PANEL_TOKEN"); ok {
			c.Panel.Token = strings.TrimSpace(value)
		}
	}
	c.Panel.TokenHash = strings.TrimSpace(c.Panel.TokenHash)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("MCPANEL_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeMCStatus() {
	c.MCStatus.BaseURL = strings.TrimRight(strings.TrimSpace(c.MCStatus.BaseURL), "/")
	if c.MCStatus.BaseURL == "" {
		c.MCStatus.BaseURL = defaultMCStatusBaseURL
	}
	c.MCStatus.Address = strings.TrimSpace(c.MCStatus.Address)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
