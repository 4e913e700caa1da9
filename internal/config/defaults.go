package config

const (
	defaultConfigPath             = "~/.config/mcpanel/config.toml"
	defaultStateDir               = "~/.local/share/mcpanel"
	defaultLogDir                 = "~/.local/share/mcpanel/logs"
	defaultStartPath              = "/start"
	defaultStopPath               = "/stop"
	defaultStatusPath             = "/status"
	defaultControlPlaneTimeout    = 10
	defaultFallbackRetrySeconds   = 15
	defaultMinRetrySeconds        = 1
	defaultMaxRetrySeconds        = 300
	defaultMaxConsecutiveFailures = 5
	defaultLaunchType             = "FABRIC"
	defaultLaunchVersion          = "1.20.1"
	defaultPanelBind              = "127.0.0.1:7488"
	defaultHistoryKeep            = 500
	defaultNotifyTimeout          = 10
	defaultMCStatusBaseURL        = "https://api.mcstatus.io/v2"
	defaultMCStatusTimeout        = 5
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		ControlPlane: ControlPlane{
			StartPath:      defaultStartPath,
			StopPath:       defaultStopPath,
			StatusPath:     defaultStatusPath,
			RequestTimeout: defaultControlPlaneTimeout,
		},
		Poller: Poller{
			FallbackRetrySeconds:   defaultFallbackRetrySeconds,
			MinRetrySeconds:        defaultMinRetrySeconds,
			MaxRetrySeconds:        defaultMaxRetrySeconds,
			MaxConsecutiveFailures: defaultMaxConsecutiveFailures,
		},
		Launch: Launch{
			Type:    defaultLaunchType,
			Version: defaultLaunchVersion,
		},
		Panel: Panel{
			Bind: defaultPanelBind,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Cache: Cache{
			Enabled:     true,
			HistoryKeep: defaultHistoryKeep,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Transitions:    true,
			Actions:        true,
			Errors:         true,
		},
		MCStatus: MCStatus{
			BaseURL:        defaultMCStatusBaseURL,
			RequestTimeout: defaultMCStatusTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
