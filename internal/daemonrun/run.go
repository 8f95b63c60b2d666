package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"pomo/internal/broadcast"
	"pomo/internal/config"
	"pomo/internal/control"
	"pomo/internal/daemon"
	"pomo/internal/fileutil"
	"pomo/internal/history"
	"pomo/internal/logging"
	"pomo/internal/notifications"
	"pomo/internal/preflight"
	"pomo/internal/status"
)

// ErrAlreadyStarting means another daemon held the startup lock for longer
// than the bounded wait.
var ErrAlreadyStarting = errors.New("another pomo daemon is starting")

const (
	lockPollInterval = 50 * time.Millisecond
	readyTimeout     = 2 * time.Second
	drainTimeout     = 3 * time.Second
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel    string
	Development bool
	// Quiet keeps log output out of stdout; the per-run log file is still written.
	Quiet bool
}

// Run starts the pomo daemon and blocks until it is told to exit, displaced
// by a newer daemon, or interrupted.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("pomo-%s.log", time.Now().UTC().Format("20060102T150405.000Z")))
	outputs := []string{"stdout", logPath}
	if opts.Quiet {
		outputs = outputs[1:]
	}
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputs,
		Development: opts.Development,
		RunID:       runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update pomo.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "pomo-*.log", Exclude: []string{logPath}},
	)
	logDependencySnapshot(logger, cfg)
	for _, failed := range preflight.Failed(preflight.RunAll(signalCtx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
			logging.String(logging.FieldImpact, "daemon may not run correctly"),
			logging.String(logging.FieldErrorHint, "run pomo check for details"),
		)
	}

	// The lock covers displacing the previous owner and binding both endpoints,
	// so two daemons starting at once cannot interleave their handshakes.
	lock := flock.New(cfg.LockPath())
	if err := acquireStartupLock(signalCtx, lock, startupLockWait(cfg)); err != nil {
		logger.Error("startup lock not acquired", logging.Error(err), logging.String("lock", cfg.LockPath()))
		return err
	}
	unlocked := false
	unlock := func() {
		if unlocked {
			return
		}
		unlocked = true
		if err := lock.Unlock(); err != nil {
			logging.WarnWithContext(logger, "failed to release startup lock", "startup_lock_release_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "next daemon start may wait for the lock"),
			)
		}
	}
	defer unlock()

	listener, err := control.Listen(signalCtx, cfg.Paths.ControlSocket, control.ListenOptions{
		Retries: cfg.Startup.DisplaceRetries,
		Backoff: cfg.DisplaceBackoff(),
		Logger:  logging.NewComponentLogger(logger, "control"),
	})
	if err != nil {
		logger.Error("bind control endpoint",
			logging.Error(err),
			logging.String("socket", cfg.Paths.ControlSocket),
			logging.String(logging.FieldEventType, "control_bind_failed"),
		)
		return fmt.Errorf("bind control endpoint: %w", err)
	}
	defer listener.Close()

	var recorder daemon.Recorder
	if cfg.History.Enabled {
		store, err := history.Open(cfg)
		if err != nil {
			logger.Error("open history store", logging.Error(err), logging.String("database", cfg.Paths.Database))
			return err
		}
		defer store.Close()
		if closed, err := store.CloseStale(signalCtx); err != nil {
			logging.WarnWithContext(logger, "failed to close stale sessions", "history_stale_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "an interrupted session stays open"),
			)
		} else if closed > 0 {
			logger.Info("closed stale sessions", logging.Int64("count", closed))
		}
		recorder = store
	}

	notifier := notifications.NewAsync(notifications.NewService(cfg), logger, cfg.NotifyTimeout())

	machine := status.New(status.Config{
		WorkTime:   cfg.WorkDuration(),
		BreakTime:  cfg.BreakDuration(),
		DefaultTag: cfg.Timer.DefaultTag,
		EndingSoon: cfg.EndingSoon(),
		Unlocked:   !cfg.Timer.StartLocked,
	}, time.Now())

	srv, err := broadcast.NewServer(cfg.Paths.StatusSocket, machine, broadcast.Options{
		Interval: cfg.BroadcastInterval(),
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("create status server: %w", err)
	}
	srvCtx, stopServer := context.WithCancel(context.Background())
	defer stopServer()
	srvDone := make(chan error, 1)
	go func() { srvDone <- srv.Run(srvCtx) }()

	select {
	case <-srv.Ready():
	case <-time.After(readyTimeout):
		logging.WarnWithContext(logger, "status endpoint not ready; continuing", "status_server_slow_start",
			logging.String("socket", cfg.Paths.StatusSocket),
			logging.String(logging.FieldImpact, "status readers cannot connect until the endpoint binds"),
		)
	}
	unlock()

	pidStamp, err := writePIDFile(cfg.PIDPath())
	if err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer func() { _, _ = pidStamp.RemoveIfOwned() }()

	logger.Info("pomo daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("control_socket", cfg.Paths.ControlSocket),
		logging.String("status_socket", cfg.Paths.StatusSocket),
		logging.String("log_path", logPath),
	)

	d := daemon.New(machine, listener, daemon.Options{
		PollBudget: cfg.PollBudget(),
		Recorder:   recorder,
		Notifier:   notifier,
		Logger:     logger,
	})
	outcome, runErr := d.Run(signalCtx)

	stopServer()
	select {
	case <-srvDone:
	case <-time.After(drainTimeout):
		logging.WarnWithContext(logger, "status server did not stop in time", "status_server_stop_timeout",
			logging.String(logging.FieldImpact, "status socket may be left behind"),
		)
	}
	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := notifier.Wait(drainCtx); err != nil {
		logger.Debug("pending notifications abandoned", logging.Error(err))
	}

	logger.Info("pomo daemon stopped", logging.String("outcome", outcome.String()))
	return runErr
}

func startupLockWait(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Startup.DisplaceRetries+1)*cfg.DisplaceBackoff() + readyTimeout
}

func acquireStartupLock(ctx context.Context, lock *flock.Flock, wait time.Duration) error {
	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, lockPollInterval)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s held for more than %s", ErrAlreadyStarting, lock.Path(), wait)
		}
		return fmt.Errorf("acquire startup lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", ErrAlreadyStarting, lock.Path())
	}
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "pomo.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) (fileutil.Stamp, error) {
	if path == "" {
		return fileutil.Stamp{}, nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	if err := fileutil.WriteFileAtomic(path, []byte(value), 0o644); err != nil {
		return fileutil.Stamp{}, err
	}
	return fileutil.StampPath(path)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("history_enabled", cfg.History.Enabled),
		logging.Bool("desktop_notifications", cfg.Notifications.Desktop),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
	}
	for _, dep := range preflight.CheckSystemDeps(cfg) {
		attrs = append(attrs,
			logging.Bool(dep.Command+"_available", dep.Available),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
