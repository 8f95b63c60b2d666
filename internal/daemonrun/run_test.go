package daemonrun_test

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pomo/internal/broadcast"
	"pomo/internal/config"
	"pomo/internal/control"
	"pomo/internal/daemonrun"
	"pomo/internal/fileutil"
	"pomo/internal/testsupport"
)

type runningDaemon struct {
	done chan error
}

func start(t *testing.T, cfg *config.Config) *runningDaemon {
	t.Helper()
	rd := &runningDaemon{done: make(chan error, 1)}
	go func() {
		rd.done <- daemonrun.Run(context.Background(), cfg, daemonrun.Options{Quiet: true})
	}()
	t.Cleanup(func() {
		_ = control.Send(cfg.Paths.ControlSocket, control.Exit())
		select {
		case <-rd.done:
		case <-time.After(5 * time.Second):
		}
	})
	return rd
}

func (rd *runningDaemon) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-rd.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
		return nil
	}
}

// dialStatus waits for the status endpoint of a fresh daemon.
func dialStatus(t *testing.T, rd *runningDaemon, path string) *broadcast.Reader {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-rd.done:
			if err != nil && strings.Contains(err.Error(), "operation not permitted") {
				t.Skipf("skipping daemon test: %v", err)
			}
			t.Fatalf("daemon stopped early: %v", err)
		default:
		}
		if reader, err := broadcast.Dial(path); err == nil {
			t.Cleanup(func() { _ = reader.Close() })
			return reader
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("status endpoint never came up")
	return nil
}

// waitForTag reads until a message carries tag and fails on any message
// whose tag is an unsanitized multi-word value.
func waitForTag(t *testing.T, reader *broadcast.Reader, tag string) broadcast.Message {
	t.Helper()
	type result struct {
		msg broadcast.Message
		ok  bool
	}
	found := make(chan result, 1)
	go func() {
		for {
			msg, err := reader.Next()
			if err != nil {
				return
			}
			if strings.ContainsAny(msg.Tag, " \t") {
				found <- result{msg: msg}
				return
			}
			if msg.Tag == tag {
				found <- result{msg: msg, ok: true}
				return
			}
		}
	}()
	select {
	case res := <-found:
		if !res.ok {
			t.Fatalf("reader saw unsanitized tag %q", res.msg.Tag)
		}
		return res.msg
	case <-time.After(5 * time.Second):
		t.Fatalf("tag %q never observed", tag)
		return broadcast.Message{}
	}
}

func TestRunServesControlAndStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rd := start(t, cfg)

	first := dialStatus(t, rd, cfg.Paths.StatusSocket)

	initial, err := first.Next()
	if err != nil {
		t.Fatalf("first message: %v", err)
	}
	if initial.Status != "work" || initial.Active || initial.Timer != "40:00" || initial.TotalTime != 2400 {
		t.Fatalf("unexpected initial state %+v", initial)
	}

	if err := control.Send(cfg.Paths.ControlSocket, control.SetTag("foo bar")); err != nil {
		t.Fatalf("send tag: %v", err)
	}
	second := dialStatus(t, rd, cfg.Paths.StatusSocket)
	waitForTag(t, first, "foo")
	waitForTag(t, second, "foo")

	if err := control.Send(cfg.Paths.ControlSocket, control.Exit()); err != nil {
		t.Fatalf("send exit: %v", err)
	}
	if err := rd.wait(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	for _, path := range []string{cfg.Paths.ControlSocket, cfg.Paths.StatusSocket, cfg.PIDPath()} {
		if fileutil.Exists(path) {
			t.Fatalf("%s left behind after exit", filepath.Base(path))
		}
	}
	if _, err := os.Lstat(filepath.Join(cfg.Paths.LogDir, "pomo.log")); err != nil {
		t.Fatalf("expected pomo.log pointer: %v", err)
	}
}

func TestRunDisplacesPreviousDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Startup.DisplaceRetries = 40
	cfg.Startup.DisplaceBackoffMS = 100

	older := start(t, cfg)
	dialStatus(t, older, cfg.Paths.StatusSocket)

	newer := start(t, cfg)
	if err := older.wait(t); err != nil {
		t.Fatalf("displaced daemon returned %v", err)
	}

	reader := dialStatus(t, newer, cfg.Paths.StatusSocket)
	if _, err := reader.Next(); err != nil {
		t.Fatalf("successor status endpoint unreadable: %v", err)
	}
	if !fileutil.Exists(cfg.Paths.ControlSocket) {
		t.Fatal("displaced daemon removed its successor's control endpoint")
	}

	if err := control.Send(cfg.Paths.ControlSocket, control.Exit()); err != nil {
		t.Fatalf("send exit: %v", err)
	}
	if err := newer.wait(t); err != nil {
		t.Fatalf("Run returned %v", err)
	}
}

func TestRunReportsBusyEndpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// An endpoint that accepts the exit datagram but never goes away.
	squatter, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: cfg.Paths.ControlSocket, Net: "unixgram"})
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping daemon test: %v", err)
		}
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = squatter.Close() })

	err = daemonrun.Run(context.Background(), cfg, daemonrun.Options{Quiet: true})
	if !errors.Is(err, control.ErrEndpointBusy) {
		t.Fatalf("error = %v, want ErrEndpointBusy", err)
	}
	if fileutil.Exists(cfg.Paths.StatusSocket) {
		t.Fatal("status endpoint bound despite failed startup")
	}
}
