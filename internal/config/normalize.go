package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTimer()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeTimer() {
	c.Timer.DefaultTag = strings.TrimSpace(c.Timer.DefaultTag)
	if c.Timer.DefaultTag == "" {
		c.Timer.DefaultTag = defaultTag
	}
}

func (c *Config) normalizePaths() error {
	var err error
	runtimeDir := strings.TrimSpace(c.Paths.RuntimeDir)
	if runtimeDir == "" {
		runtimeDir = defaultRuntimeDir()
	}
	if c.Paths.RuntimeDir, err = expandPath(runtimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}

	dataDir := strings.TrimSpace(c.Paths.DataDir)
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(dataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}

	if c.Paths.ControlSocket, err = resolveUnder(c.Paths.RuntimeDir, c.Paths.ControlSocket, defaultControlSocket); err != nil {
		return fmt.Errorf("paths.control_socket: %w", err)
	}
	if c.Paths.StatusSocket, err = resolveUnder(c.Paths.RuntimeDir, c.Paths.StatusSocket, defaultStatusSocket); err != nil {
		return fmt.Errorf("paths.status_socket: %w", err)
	}
	if c.Paths.Database, err = resolveUnder(c.Paths.DataDir, c.Paths.Database, defaultDatabase); err != nil {
		return fmt.Errorf("paths.database: %w", err)
	}
	if c.Paths.LogDir, err = resolveUnder(c.Paths.DataDir, c.Paths.LogDir, defaultLogDirName); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NotifyCommand = strings.TrimSpace(c.Notifications.NotifyCommand)
	if c.Notifications.NotifyCommand == "" {
		c.Notifications.NotifyCommand = defaultNotifyCommand
	}
	c.Notifications.SoundCommand = strings.TrimSpace(c.Notifications.SoundCommand)
	c.Notifications.EndingSound = strings.TrimSpace(c.Notifications.EndingSound)
	c.Notifications.EndSound = strings.TrimSpace(c.Notifications.EndSound)
	if c.Notifications.EndingSound != "" {
		if expanded, err := expandPath(c.Notifications.EndingSound); err == nil {
			c.Notifications.EndingSound = expanded
		}
	}
	if c.Notifications.EndSound != "" {
		if expanded, err := expandPath(c.Notifications.EndSound); err == nil {
			c.Notifications.EndSound = expanded
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("POMO_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
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

// resolveUnder expands value, placing bare file names inside base.
func resolveUnder(base, value, fallback string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = fallback
	}
	if !strings.HasPrefix(value, "~") && !filepath.IsAbs(value) && !strings.ContainsRune(value, filepath.Separator) {
		value = filepath.Join(base, value)
	}
	return expandPath(value)
}

func defaultRuntimeDir() string {
	if dir, ok := os.LookupEnv("XDG_RUNTIME_DIR"); ok && strings.TrimSpace(dir) != "" {
		return dir
	}
	return defaultRuntimeFallback
}
