package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimer(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateStartup(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTimer() error {
	if c.Timer.WorkTime <= 0 {
		return errors.New("timer.work_time: must be positive")
	}
	if c.Timer.BreakTime <= 0 {
		return errors.New("timer.break_time: must be positive")
	}
	if strings.TrimSpace(c.Timer.DefaultTag) == "" {
		return errors.New("timer.default_tag: must be set")
	}
	if c.Timer.EndingSoonSeconds < 0 {
		return errors.New("timer.ending_soon_seconds: must be zero or positive")
	}
	// The loop must come back to tick at least once per second.
	if c.Timer.PollBudgetMS <= 0 || c.Timer.PollBudgetMS >= 1000 {
		return errors.New("timer.poll_budget_ms: must be between 1 and 999")
	}
	if c.Timer.BroadcastIntervalMS <= 0 {
		return errors.New("timer.broadcast_interval_ms: must be positive")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.ControlSocket == c.Paths.StatusSocket {
		return errors.New("paths.status_socket: must differ from paths.control_socket")
	}
	for key, path := range map[string]string{
		"paths.control_socket": c.Paths.ControlSocket,
		"paths.status_socket":  c.Paths.StatusSocket,
	} {
		if len(path) > maxSocketPath {
			return fmt.Errorf("%s: path %q exceeds %d bytes", key, path, maxSocketPath)
		}
	}
	return nil
}

func (c *Config) validateStartup() error {
	if c.Startup.DisplaceRetries <= 0 {
		return errors.New("startup.displace_retries: must be positive")
	}
	if c.Startup.DisplaceBackoffMS <= 0 {
		return errors.New("startup.displace_backoff_ms: must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout: must be positive")
	}
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic: %q must be an http(s) URL", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.UTCOffsetHours < -12 || c.History.UTCOffsetHours > 14 {
		return errors.New("history.utc_offset_hours: must be between -12 and 14")
	}
	return nil
}
