package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidDate reports a report bound that is not a YYYY-MM-DD date.
var ErrInvalidDate = errors.New("invalid date")

// Sum is the recorded time for one day or tag.
type Sum struct {
	Key     string
	Seconds int64
}

// Report aggregates finished sessions between two dates, inclusive.
type Report struct {
	From         string
	To           string
	TotalSeconds int64
	ByDay        []Sum
	ByTag        []Sum
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	date, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: want YYYY-MM-DD", ErrInvalidDate, value)
	}
	return date, nil
}

// FormatHoursMinutes renders seconds as 00h00min, dropping leftover seconds.
func FormatHoursMinutes(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02dh%02dmin", seconds/3600, (seconds%3600)/60)
}

func checkRange(from, to string) error {
	start, err := ParseDate(from)
	if err != nil {
		return err
	}
	end, err := ParseDate(to)
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("%w: %s is before %s", ErrInvalidDate, to, from)
	}
	return nil
}

// Report sums finished sessions between from and to. Open sessions are not
// counted.
func (s *Store) Report(ctx context.Context, from, to string) (Report, error) {
	ctx = ensureContext(ctx)
	if err := checkRange(from, to); err != nil {
		return Report{}, err
	}
	report := Report{From: from, To: to}

	if err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			"SELECT COALESCE(SUM(duration), 0) FROM sessions WHERE duration IS NOT NULL AND date BETWEEN ? AND ?",
			from, to,
		).Scan(&report.TotalSeconds)
	}); err != nil {
		return Report{}, fmt.Errorf("query total: %w", err)
	}

	var err error
	report.ByDay, err = s.sums(ctx,
		"SELECT date, SUM(duration) FROM sessions WHERE duration IS NOT NULL AND date BETWEEN ? AND ? GROUP BY date ORDER BY date",
		from, to)
	if err != nil {
		return Report{}, fmt.Errorf("query per day: %w", err)
	}
	report.ByTag, err = s.sums(ctx,
		"SELECT tag, SUM(duration) FROM sessions WHERE duration IS NOT NULL AND date BETWEEN ? AND ? GROUP BY tag ORDER BY SUM(duration) DESC, tag",
		from, to)
	if err != nil {
		return Report{}, fmt.Errorf("query per tag: %w", err)
	}
	return report, nil
}

func (s *Store) sums(ctx context.Context, query string, args ...any) ([]Sum, error) {
	var out []Sum
	err := retryOnBusy(ctx, func() error {
		out = out[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var sum Sum
			if err := rows.Scan(&sum.Key, &sum.Seconds); err != nil {
				return err
			}
			out = append(out, sum)
		}
		return rows.Err()
	})
	return out, err
}

// Sessions lists every session between from and to, oldest first.
func (s *Store) Sessions(ctx context.Context, from, to string) ([]Session, error) {
	ctx = ensureContext(ctx)
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	var sessions []Session
	err := retryOnBusy(ctx, func() error {
		sessions = sessions[:0]
		rows, err := s.db.QueryContext(ctx,
			"SELECT id, date, start, duration, tag FROM sessions WHERE date BETWEEN ? AND ? ORDER BY date, start, rowid",
			from, to)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				session  Session
				duration sql.NullInt64
			)
			if err := rows.Scan(&session.ID, &session.Date, &session.Start, &duration, &session.Tag); err != nil {
				return err
			}
			session.Duration = duration.Int64
			session.Open = !duration.Valid
			sessions = append(sessions, session)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	return sessions, nil
}
