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

// Timer contains the phase lengths and loop cadence.
type Timer struct {
	WorkTime            int    `toml:"work_time"`
	BreakTime           int    `toml:"break_time"`
	DefaultTag          string `toml:"default_tag"`
	EndingSoonSeconds   int    `toml:"ending_soon_seconds"`
	StartLocked         bool   `toml:"start_locked"`
	PollBudgetMS        int    `toml:"poll_budget_ms"`
	BroadcastIntervalMS int    `toml:"broadcast_interval_ms"`
}

// Paths contains socket, database, and log locations.
type Paths struct {
	RuntimeDir    string `toml:"runtime_dir"`
	ControlSocket string `toml:"control_socket"`
	StatusSocket  string `toml:"status_socket"`
	DataDir       string `toml:"data_dir"`
	Database      string `toml:"database"`
	LogDir        string `toml:"log_dir"`
}

// Startup tunes the hand-off from a previous daemon.
type Startup struct {
	DisplaceRetries   int `toml:"displace_retries"`
	DisplaceBackoffMS int `toml:"displace_backoff_ms"`
}

// Notifications contains desktop alert and ntfy settings.
type Notifications struct {
	Desktop        bool   `toml:"desktop"`
	NotifyCommand  string `toml:"notify_command"`
	SoundCommand   string `toml:"sound_command"`
	EndingSound    string `toml:"ending_sound"`
	EndSound       string `toml:"end_sound"`
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// History controls the work session log.
type History struct {
	Enabled        bool `toml:"enabled"`
	UTCOffsetHours int  `toml:"utc_offset_hours"`
}

// Config encapsulates all configuration values for pomo.
//
// Configuration sections by subsystem:
//   - Timer: work/break lengths, default tag, loop cadence
//   - Paths: runtime sockets, data directory, database, logs
//   - Startup: displace handshake retry budget
//   - Notifications: notify-send, sound player, ntfy
//   - Logging: log format, level, and retention
//   - History: session store toggle and date offset
type Config struct {
	Timer         Timer         `toml:"timer"`
	Paths         Paths         `toml:"paths"`
	Startup       Startup       `toml:"startup"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	History       History       `toml:"history"`
}

// Overrides carries command-line values that win over the file. Zero values
// leave the loaded setting untouched.
type Overrides struct {
	WorkTime  int
	BreakTime int
	Tag       string
	Database  string
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

	projectPath, err := filepath.Abs("pomo.toml")
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

// Apply merges CLI overrides and revalidates.
func (c *Config) Apply(o Overrides) error {
	if o.WorkTime != 0 {
		c.Timer.WorkTime = o.WorkTime
	}
	if o.BreakTime != 0 {
		c.Timer.BreakTime = o.BreakTime
	}
	if tag := strings.TrimSpace(o.Tag); tag != "" {
		c.Timer.DefaultTag = tag
	}
	if db := strings.TrimSpace(o.Database); db != "" {
		expanded, err := expandPath(db)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		c.Paths.Database = expanded
	}
	return c.Validate()
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.RuntimeDir, c.Paths.LogDir}
	if c.History.Enabled {
		dirs = append(dirs, filepath.Dir(c.Paths.Database))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// WorkDuration returns the configured work phase length.
func (c *Config) WorkDuration() time.Duration {
	return time.Duration(c.Timer.WorkTime) * time.Second
}

// BreakDuration returns the configured break phase length.
func (c *Config) BreakDuration() time.Duration {
	return time.Duration(c.Timer.BreakTime) * time.Second
}

// EndingSoon returns the pre-expiry alert threshold.
func (c *Config) EndingSoon() time.Duration {
	return time.Duration(c.Timer.EndingSoonSeconds) * time.Second
}

// PollBudget returns how long one loop iteration waits for a command.
func (c *Config) PollBudget() time.Duration {
	return time.Duration(c.Timer.PollBudgetMS) * time.Millisecond
}

// BroadcastInterval returns the per-reader push cadence.
func (c *Config) BroadcastInterval() time.Duration {
	return time.Duration(c.Timer.BroadcastIntervalMS) * time.Millisecond
}

// DisplaceBackoff returns the pause between endpoint checks at startup.
func (c *Config) DisplaceBackoff() time.Duration {
	return time.Duration(c.Startup.DisplaceBackoffMS) * time.Millisecond
}

// NotifyTimeout returns the ntfy request timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// LockPath returns the startup lock file guarding the displace handshake.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.RuntimeDir, "pomo.lock")
}

// PIDPath returns the daemon PID file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.RuntimeDir, "pomo.pid")
}

// Location returns the fixed zone used to stamp session dates.
func (c *Config) Location() *time.Location {
	if c.History.UTCOffsetHours == 0 {
		return time.UTC
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.History.UTCOffsetHours), c.History.UTCOffsetHours*3600)
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

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
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
