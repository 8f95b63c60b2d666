package timer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	day    = 24 * time.Hour
	hour   = time.Hour
	minute = time.Minute
)

// DefaultEndingSoon is the pre-expiry threshold used when none is configured.
const DefaultEndingSoon = 5 * time.Second

// Op selects the direction of a manual time adjustment.
type Op string

const (
	OpAdd Op = "add"
	OpSub Op = "sub"
)

// ParseOp maps a wire token to an Op.
func ParseOp(value string) (Op, bool) {
	switch Op(strings.ToLower(strings.TrimSpace(value))) {
	case OpAdd:
		return OpAdd, true
	case OpSub:
		return OpSub, true
	default:
		return "", false
	}
}

// Events is a bitmask of the one-shot events a timer can fire.
type Events uint8

const (
	// EndingSoon fires when remaining first drops below the pre-expiry threshold.
	EndingSoon Events = 1 << iota
	// Ended fires when remaining first drops below zero.
	Ended
)

// Has reports whether every event in other is set.
func (e Events) Has(other Events) bool {
	return other != 0 && e&other == other
}

// Below reports the events whose condition holds for remaining. A timer
// fires each of them on the first advance that finds it true, whether
// remaining got there by counting down or by a manual adjustment.
func Below(remaining, threshold time.Duration) Events {
	var events Events
	if remaining < threshold {
		events |= EndingSoon
	}
	if remaining < 0 {
		events |= Ended
	}
	return events
}

// Timer tracks the countdown of one phase instance. A Timer is never reused
// across phases; callers replace it on every transition.
//
// Timer is not safe for concurrent use.
type Timer struct {
	total      time.Duration
	remaining  time.Duration
	lastTick   time.Time
	endingSoon time.Duration
	fired      Events
}

// New returns a timer for a phase of the given length anchored at now.
func New(total time.Duration, now time.Time, endingSoon time.Duration) *Timer {
	if endingSoon < 0 {
		endingSoon = 0
	}
	return &Timer{
		total:      total,
		remaining:  total,
		lastTick:   now,
		endingSoon: endingSoon,
	}
}

// Advance charges the wall-clock time since the last tick against remaining
// and returns the events that fired for the first time on this instance.
func (t *Timer) Advance(now time.Time) Events {
	delta := now.Sub(t.lastTick)
	t.lastTick = now
	if delta <= 0 {
		return 0
	}
	t.remaining -= delta
	pending := Below(t.remaining, t.endingSoon) &^ t.fired
	t.fired |= pending
	return pending
}

// Touch moves the tick reference to now without charging any time.
func (t *Timer) Touch(now time.Time) {
	t.lastTick = now
}

// Adjust adds or removes time from remaining. Honouring the lock is the
// caller's job.
func (t *Timer) Adjust(op Op, d time.Duration) {
	switch op {
	case OpAdd:
		t.remaining += d
	case OpSub:
		t.remaining -= d
	}
}

// Total returns the configured length of the phase.
func (t *Timer) Total() time.Duration { return t.total }

// Remaining returns the signed time left; negative values are over-time.
func (t *Timer) Remaining() time.Duration { return t.remaining }

// Elapsed returns total minus remaining.
func (t *Timer) Elapsed() time.Duration { return t.total - t.remaining }

// Format renders remaining as [-][D:][HH:]MM:SS.
func (t *Timer) Format() string {
	return Format(t.remaining)
}

func (t *Timer) String() string {
	return t.Format()
}

// Format renders a signed duration the way status readers expect. Minutes and
// seconds are always present; hours appear once non-zero, days likewise, and
// the sign is shown only for negative values.
func Format(remaining time.Duration) string {
	sign := ""
	rem := remaining
	if rem < 0 {
		sign = "-"
		rem = -rem
	}
	rem = rem.Truncate(time.Second)

	days := rem / day
	rem -= days * day
	hours := rem / hour
	rem -= hours * hour
	minutes := rem / minute
	rem -= minutes * minute
	seconds := rem / time.Second

	parts := make([]string, 0, 4)
	if days > 0 {
		parts = append(parts, strconv.FormatInt(int64(days), 10))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%02d", int64(hours)))
	}
	parts = append(parts, fmt.Sprintf("%02d", int64(minutes)), fmt.Sprintf("%02d", int64(seconds)))
	return sign + strings.Join(parts, ":")
}

// Seconds converts a duration to whole seconds, truncating toward zero.
func Seconds(d time.Duration) int64 {
	return int64(d / time.Second)
}
