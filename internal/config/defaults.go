package config

const (
	defaultConfigPath          = "~/.config/pomo/config.toml"
	defaultWorkTime            = 2400
	defaultBreakTime           = 600
	defaultTag                 = "pomo"
	defaultEndingSoonSeconds   = 5
	defaultPollBudgetMS        = 900
	defaultBroadcastIntervalMS = 1000
	defaultRuntimeFallback     = "/var/tmp"
	defaultControlSocket       = "pomo.sock"
	defaultStatusSocket        = "pomo-status.sock"
	defaultDataDir             = "~/.local/share/pomo"
	defaultDatabase            = "pomo.db"
	defaultLogDirName          = "logs"
	defaultDisplaceRetries     = 20
	defaultDisplaceBackoffMS   = 500
	defaultNotifyCommand       = "notify-send"
	defaultSoundCommand        = "paplay"
	defaultRequestTimeout      = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 14

	// sun_path holds 108 bytes including the terminating NUL.
	maxSocketPath = 107
)

// Default returns a Config populated with repository defaults. Derived paths
// are filled in by normalization.
func Default() Config {
	return Config{
		Timer: Timer{
			WorkTime:            defaultWorkTime,
			BreakTime:           defaultBreakTime,
			DefaultTag:          defaultTag,
			EndingSoonSeconds:   defaultEndingSoonSeconds,
			StartLocked:         true,
			PollBudgetMS:        defaultPollBudgetMS,
			BroadcastIntervalMS: defaultBroadcastIntervalMS,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
		},
		Startup: Startup{
			DisplaceRetries:   defaultDisplaceRetries,
			DisplaceBackoffMS: defaultDisplaceBackoffMS,
		},
		Notifications: Notifications{
			Desktop:        true,
			NotifyCommand:  defaultNotifyCommand,
			SoundCommand:   defaultSoundCommand,
			RequestTimeout: defaultRequestTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		History: History{
			Enabled: true,
		},
	}
}
