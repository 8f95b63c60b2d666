package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"pomo/internal/fileutil"
	"pomo/internal/logging"
	"pomo/internal/status"
)

// Source yields consistent snapshots. *status.Machine satisfies it.
type Source interface {
	Snapshot() status.Snapshot
}

// Options tunes the broadcast cadence and recovery.
type Options struct {
	Interval     time.Duration
	WriteTimeout time.Duration
	// RestartDelay is the pause before rebinding after the accept loop fails.
	RestartDelay time.Duration
	Clock        clockwork.Clock
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 2 * time.Second
	}
	if o.RestartDelay <= 0 {
		o.RestartDelay = time.Second
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}

// Server fans snapshots out to every connected status reader. Each reader
// gets its own handler goroutine; a failed write ends only that handler.
type Server struct {
	path   string
	source Source
	opts   Options
	logger *slog.Logger

	nextID atomic.Int64

	mu    sync.Mutex
	conns map[int64]net.Conn
	wg    sync.WaitGroup

	readyOnce sync.Once
	ready     chan struct{}
}

// NewServer configures a server for the socket at path. Nothing is bound
// until Run.
func NewServer(path string, source Source, opts Options) (*Server, error) {
	if path == "" {
		return nil, errors.New("broadcast server requires a socket path")
	}
	if source == nil {
		return nil, errors.New("broadcast server requires a snapshot source")
	}
	opts = opts.withDefaults()
	return &Server{
		path:   path,
		source: source,
		opts:   opts,
		logger: opts.Logger,
		conns:  make(map[int64]net.Conn),
		ready:  make(chan struct{}),
	}, nil
}

// Ready is closed once the endpoint has been bound for the first time.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Clients returns the number of connected readers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Run serves until ctx is canceled, rebinding after accept failures. On
// return every reader connection is closed and every handler has exited.
func (s *Server) Run(ctx context.Context) error {
	defer s.shutdown()
	for {
		err := s.serve(ctx)
		if ctx.Err() != nil {
			return nil
		}
		logging.WarnWithContext(s.logger, "status server stopped; restarting", "status_server_restart",
			logging.Error(err),
			logging.String("socket", s.path),
			logging.Duration("retry_in", s.opts.RestartDelay),
			logging.String(logging.FieldImpact, "status readers cannot connect until the server restarts"),
			logging.String(logging.FieldErrorHint, "check permissions on the runtime directory"))
		select {
		case <-ctx.Done():
			return nil
		case <-s.opts.Clock.After(s.opts.RestartDelay):
		}
	}
}

func (s *Server) serve(ctx context.Context) error {
	listener, stamp, err := s.bind()
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()
	defer s.release(listener, stamp)

	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Debug("status endpoint listening", logging.String("socket", s.path))

	for {
		conn, err := listener.AcceptUnix()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept status reader: %w", err)
		}
		id := s.nextID.Add(1)
		s.track(id, conn)
		s.wg.Add(1)
		go s.handle(ctx, id, conn)
	}
}

func (s *Server) bind() (*net.UnixListener, fileutil.Stamp, error) {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fileutil.Stamp{}, fmt.Errorf("remove existing status socket: %w", err)
	}
	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: s.path, Net: "unix"})
	if err != nil {
		return nil, fileutil.Stamp{}, fmt.Errorf("listen on status socket: %w", err)
	}
	// Removal is ownership-checked in release.
	listener.SetUnlinkOnClose(false)
	stamp, err := fileutil.StampPath(s.path)
	if err != nil {
		_ = listener.Close()
		return nil, fileutil.Stamp{}, fmt.Errorf("record status socket identity: %w", err)
	}
	return listener, stamp, nil
}

func (s *Server) release(listener *net.UnixListener, stamp fileutil.Stamp) {
	_ = listener.Close()
	if _, err := stamp.RemoveIfOwned(); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove status socket", "status_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale status socket left behind"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

func (s *Server) handle(ctx context.Context, id int64, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(id)
	defer conn.Close()

	logger := s.logger.With(logging.Int64(logging.FieldClientID, id))
	logger.Debug("status reader connected")

	ticker := s.opts.Clock.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if err := s.push(conn); err != nil {
			logger.Debug("status reader disconnected", logging.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
	}
}

func (s *Server) push(conn net.Conn) error {
	payload, err := encode(FromSnapshot(s.source.Snapshot()))
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		return err
	}
	_, err = conn.Write(payload)
	return err
}

func (s *Server) track(id int64, conn net.Conn) {
	s.mu.Lock()
	s.conns[id] = conn
	s.mu.Unlock()
}

func (s *Server) untrack(id int64) {
	s.mu.Lock()
	delete(s.conns, id)
	s.mu.Unlock()
}

func (s *Server) shutdown() {
	s.logger.Debug("status server stopping",
		logging.Int64("clients", int64(s.Clients())),
		logging.String(logging.FieldEventType, "status_server_stop"))
	s.mu.Lock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
