package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"pomo/internal/broadcast"
	"pomo/internal/config"
	"pomo/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckNtfy verifies that the ntfy server behind topic answers its health
// endpoint.
func CheckNtfy(ctx context.Context, topic string, timeout time.Duration) Result {
	const name = "ntfy"

	parsed, err := url.Parse(topic)
	if err != nil || parsed.Host == "" {
		return Result{Name: name, Detail: fmt.Sprintf("invalid topic url %q", topic)}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	health := url.URL{Scheme: parsed.Scheme, Host: parsed.Host, Path: "/v1/health"}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, health.String(), nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: parsed.Host + " reachable"}
}

// CheckDaemon reads one status message from the status endpoint. A missing
// daemon is reported, not treated as a failure of the check itself.
func CheckDaemon(path string) Result {
	const name = "Daemon"

	reader, err := broadcast.Dial(path)
	if err != nil {
		return Result{Name: name, Passed: true, Detail: "not running"}
	}
	defer reader.Close()
	msg, err := reader.Next()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("status endpoint unreadable (%v)", err)}
	}
	state := "paused"
	if msg.Active {
		state = "running"
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s %s %s [%s]", msg.Status, state, msg.Timer, msg.Tag)}
}

// CheckSystemDeps evaluates the notifier binaries the config refers to.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	if cfg == nil || !cfg.Notifications.Desktop {
		return nil
	}
	requirements := []deps.Requirement{
		{
			Name:        "Notifier",
			Command:     cfg.Notifications.NotifyCommand,
			Description: "Desktop alert when a phase ends",
			Optional:    true,
		},
	}
	if cfg.Notifications.EndingSound != "" || cfg.Notifications.EndSound != "" {
		requirements = append(requirements, deps.Requirement{
			Name:        "Sound player",
			Command:     cfg.Notifications.SoundCommand,
			Description: "Plays ending_sound and end_sound",
			Optional:    true,
		})
	}
	return deps.CheckBinaries(requirements)
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (server unreachable)"
	}
	return err.Error()
}
