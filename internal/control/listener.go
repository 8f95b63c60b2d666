package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"pomo/internal/fileutil"
	"pomo/internal/logging"
)

// ErrEndpointBusy is returned when a previous daemon keeps its endpoint after
// being asked to exit. It is fatal at startup.
var ErrEndpointBusy = errors.New("control endpoint still in use")

const (
	defaultDisplaceRetries = 20
	defaultDisplaceBackoff = 500 * time.Millisecond
	maxDatagram            = 4096
)

// ListenOptions tunes the startup handshake.
type ListenOptions struct {
	// Retries bounds how many times the handshake re-checks the endpoint after
	// sending exit to its current owner.
	Retries int
	Backoff time.Duration
	Logger  *slog.Logger
	Clock   clockwork.Clock
}

func (o ListenOptions) withDefaults() ListenOptions {
	if o.Retries <= 0 {
		o.Retries = defaultDisplaceRetries
	}
	if o.Backoff <= 0 {
		o.Backoff = defaultDisplaceBackoff
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Listener is the bound control endpoint. Receive is meant to be called from
// a single goroutine.
type Listener struct {
	path   string
	conn   *net.UnixConn
	stamp  fileutil.Stamp
	logger *slog.Logger
	buf    []byte
}

// Listen displaces any daemon still bound at path and binds a fresh datagram
// endpoint in its place.
func Listen(ctx context.Context, path string, opts ListenOptions) (*Listener, error) {
	opts = opts.withDefaults()
	if err := Displace(ctx, path, opts); err != nil {
		return nil, err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove existing control socket: %w", err)
	}

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		return nil, fmt.Errorf("listen on control socket: %w", err)
	}
	stamp, err := fileutil.StampPath(path)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("record control socket identity: %w", err)
	}

	opts.Logger.Debug("control endpoint bound", logging.String("socket", path))
	return &Listener{
		path:   path,
		conn:   conn,
		stamp:  stamp,
		logger: opts.Logger,
		buf:    make([]byte, maxDatagram+1),
	}, nil
}

// Displace asks the current owner of path to exit and waits for it to remove
// the endpoint. A leftover file nobody answers on is removed immediately.
func Displace(ctx context.Context, path string, opts ListenOptions) error {
	opts = opts.withDefaults()
	if !fileutil.Exists(path) {
		return nil
	}

	err := Send(path, Exit())
	switch {
	case errors.Is(err, ErrNoDaemon):
		opts.Logger.Info("removing stale control socket",
			logging.String("socket", path),
			logging.String(logging.FieldEventType, "control_socket_stale"))
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale control socket: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("signal running daemon: %w", err)
	}

	opts.Logger.Info("asked running daemon to exit",
		logging.String("socket", path),
		logging.String(logging.FieldEventType, "daemon_displace_requested"))

	for attempt := 0; attempt < opts.Retries; attempt++ {
		if !fileutil.Exists(path) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-opts.Clock.After(opts.Backoff):
		}
	}
	if !fileutil.Exists(path) {
		return nil
	}
	return fmt.Errorf("%w: %s remained after %d attempts", ErrEndpointBusy, path, opts.Retries)
}

// Path returns the bound socket path.
func (l *Listener) Path() string { return l.path }

// Receive waits up to budget for one datagram. It returns ok=false with a nil
// error when the budget elapses without input. Decode failures wrap
// ErrUnknownCommand or ErrMalformedCommand and leave the listener usable.
func (l *Listener) Receive(budget time.Duration) (Command, bool, error) {
	if budget <= 0 {
		budget = time.Millisecond
	}
	if err := l.conn.SetReadDeadline(time.Now().Add(budget)); err != nil {
		return Command{}, false, fmt.Errorf("set control read deadline: %w", err)
	}
	n, _, err := l.conn.ReadFromUnix(l.buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return Command{}, false, nil
		}
		return Command{}, false, err
	}
	if n > maxDatagram {
		return Command{}, false, fmt.Errorf("%w: datagram longer than %d bytes", ErrMalformedCommand, maxDatagram)
	}
	cmd, err := Parse(string(l.buf[:n]))
	if err != nil {
		return Command{}, false, err
	}
	return cmd, true, nil
}

// Close releases the endpoint. The socket file is removed only while it is
// still the one this listener created; a successor's endpoint is left alone.
func (l *Listener) Close() error {
	err := l.conn.Close()
	removed, rmErr := l.stamp.RemoveIfOwned()
	switch {
	case rmErr != nil:
		logging.WarnWithContext(l.logger, "failed to remove control socket", "control_socket_cleanup_failed",
			logging.String("socket", l.path),
			logging.Error(rmErr),
			logging.String(logging.FieldImpact, "next start will treat the socket as stale"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	case !removed:
		l.logger.Debug("control socket owned by another daemon; leaving it",
			logging.String("socket", l.path))
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
