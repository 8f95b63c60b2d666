package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"pomo/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Desktop notifications are off and the displace handshake is fast.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RuntimeDir = base
	cfgVal.Paths.ControlSocket = filepath.Join(base, "c.sock")
	cfgVal.Paths.StatusSocket = filepath.Join(base, "s.sock")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.Database = filepath.Join(base, "data", "pomo.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Startup.DisplaceRetries = 3
	cfgVal.Startup.DisplaceBackoffMS = 20
	cfgVal.Notifications.Desktop = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithTimes overrides the work and break lengths in seconds.
func WithTimes(work, brk int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Timer.WorkTime = work
		b.cfg.Timer.BreakTime = brk
	}
}

// WithUnlocked starts the machine unlocked.
func WithUnlocked() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Timer.StartLocked = false
	}
}

// WithUTCOffset sets the offset used to stamp session dates.
func WithUTCOffset(hours int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.UTCOffsetHours = hours
	}
}

// WithNtfyTopic points push notifications at url.
func WithNtfyTopic(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = url
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, notify-send and paplay are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"notify-send", "paplay"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.RuntimeDir
}
