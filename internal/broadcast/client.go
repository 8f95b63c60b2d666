package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jonboulle/clockwork"

	"pomo/internal/logging"
)

const dialTimeout = 2 * time.Second

// ErrStop can be returned by a Subscribe callback to end the subscription
// without an error.
var ErrStop = errors.New("stop subscription")

// Reader decodes the status stream of one connection.
type Reader struct {
	conn net.Conn
	dec  *json.Decoder
}

// Dial connects to the status endpoint at path.
func Dial(path string) (*Reader, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Reader{conn: conn, dec: json.NewDecoder(conn)}, nil
}

// Next blocks until the next message arrives.
func (r *Reader) Next() (Message, error) {
	var msg Message
	if err := r.dec.Decode(&msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Close closes the underlying connection.
func (r *Reader) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

// SubscribeOptions controls reconnect behavior.
type SubscribeOptions struct {
	// Reconnect is the pause between connection attempts. Zero disables
	// reconnecting; the first dial or read failure is returned.
	Reconnect time.Duration
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

// Subscribe delivers every message to fn until ctx is canceled or fn returns
// an error. With a reconnect interval set, a lost or missing daemon is retried
// indefinitely.
func Subscribe(ctx context.Context, path string, opts SubscribeOptions, fn func(Message) error) error {
	if fn == nil {
		return errors.New("subscribe requires a callback")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	for {
		err := stream(ctx, path, fn)
		if ctx.Err() != nil {
			return nil
		}
		var cbErr callbackError
		if errors.As(err, &cbErr) {
			if errors.Is(cbErr.err, ErrStop) {
				return nil
			}
			return cbErr.err
		}
		if opts.Reconnect <= 0 {
			return err
		}
		opts.Logger.Debug("status stream interrupted; reconnecting",
			logging.Error(err),
			logging.Duration("retry_in", opts.Reconnect))
		select {
		case <-ctx.Done():
			return nil
		case <-opts.Clock.After(opts.Reconnect):
		}
	}
}

type callbackError struct{ err error }

func (e callbackError) Error() string { return e.err.Error() }

func stream(ctx context.Context, path string, fn func(Message) error) error {
	reader, err := Dial(path)
	if err != nil {
		return fmt.Errorf("connect to status socket: %w", err)
	}
	defer reader.Close()
	stop := context.AfterFunc(ctx, func() { _ = reader.Close() })
	defer stop()

	for {
		msg, err := reader.Next()
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}
		if err := fn(msg); err != nil {
			return callbackError{err: err}
		}
	}
}
