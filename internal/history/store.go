package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"pomo/internal/config"
)

const (
	// DateLayout is the stored form of a session date.
	DateLayout = "2006-01-02"
	// TimeLayout is the stored form of a session start time.
	TimeLayout = "15:04:05"
)

// Session is one row of the work log. A session is open until it has a
// duration.
type Session struct {
	ID       string
	Date     string
	Start    string
	Duration int64
	Tag      string
	Open     bool
}

// Store manages session history backed by SQLite. It holds at most one open
// session at a time.
type Store struct {
	db    *sql.DB
	path  string
	clock clockwork.Clock
	loc   *time.Location
	// mu serializes the read-then-write sequences that keep a single open session.
	mu sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the clock used to stamp new sessions.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the session database at cfg.Paths.Database.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("history: config is required")
	}
	dbPath := cfg.Paths.Database
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{
		db:    db,
		path:  dbPath,
		clock: clockwork.NewRealClock(),
		loc:   cfg.Location(),
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// StartSession opens a session tagged tag, stamped with the current date and
// time in the configured offset. If a session is already open it is returned
// unchanged and created is false.
func (s *Store) StartSession(ctx context.Context, tag string) (Session, bool, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	open, found, err := s.openSession(ctx)
	if err != nil {
		return Session{}, false, err
	}
	if found {
		return open, false, nil
	}

	now := s.clock.Now().In(s.loc)
	session := Session{
		ID:    uuid.NewString(),
		Date:  now.Format(DateLayout),
		Start: now.Format(TimeLayout),
		Tag:   tag,
		Open:  true,
	}
	if _, err := s.execWithRetry(ctx,
		"INSERT INTO sessions (id, date, start, duration, tag) VALUES (?, ?, ?, NULL, ?)",
		session.ID, session.Date, session.Start, session.Tag,
	); err != nil {
		return Session{}, false, fmt.Errorf("insert session: %w", err)
	}
	return session, true, nil
}

// FinishSession records elapsed as the duration of the open session, in whole
// seconds. It reports false when no session is open. Negative values are
// stored as zero.
func (s *Store) FinishSession(ctx context.Context, elapsed time.Duration) (Session, bool, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	open, found, err := s.openSession(ctx)
	if err != nil || !found {
		return Session{}, false, err
	}
	seconds := int64(elapsed / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	if _, err := s.execWithRetry(ctx, "UPDATE sessions SET duration = ? WHERE id = ?", seconds, open.ID); err != nil {
		return Session{}, false, fmt.Errorf("finish session %s: %w", open.ID, err)
	}
	open.Duration = seconds
	open.Open = false
	return open, true, nil
}

// UpdateTag retags the open session. It reports false when no session is open.
func (s *Store) UpdateTag(ctx context.Context, tag string) (bool, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execWithRetry(ctx, "UPDATE sessions SET tag = ? WHERE duration IS NULL", tag)
	if err != nil {
		return false, fmt.Errorf("update session tag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update session tag: %w", err)
	}
	return affected > 0, nil
}

// OpenSession returns the open session, if any.
func (s *Store) OpenSession(ctx context.Context) (Session, bool, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openSession(ctx)
}

// CloseStale gives every open session a zero duration. A session left open
// belongs to a daemon that did not shut down cleanly.
func (s *Store) CloseStale(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.execWithRetry(ctx, "UPDATE sessions SET duration = 0 WHERE duration IS NULL")
	if err != nil {
		return 0, fmt.Errorf("close stale sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) openSession(ctx context.Context) (Session, bool, error) {
	var session Session
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT id, date, start, tag FROM sessions WHERE duration IS NULL ORDER BY rowid DESC LIMIT 1",
		).Scan(&session.ID, &session.Date, &session.Start, &session.Tag)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("query open session: %w", err)
	}
	session.Open = true
	return session, true, nil
}
