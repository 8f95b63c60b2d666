package timer_test

import (
	"testing"
	"time"

	"pomo/internal/timer"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		name      string
		remaining time.Duration
		want      string
	}{
		{"minutes and seconds", 75 * time.Second, "01:15"},
		{"zero", 0, "00:00"},
		{"negative", -5 * time.Second, "-00:05"},
		{"hours", 3661 * time.Second, "01:01:01"},
		{"exact hour", time.Hour, "01:00:00"},
		{"days", 90061 * time.Second, "1:01:01:01"},
		{"day with zero hours", 86400*time.Second + 5*time.Second, "1:00:00:05"},
		{"fraction truncated", 59*time.Second + 900*time.Millisecond, "00:59"},
		{"negative hours", -(2*time.Hour + 3*time.Second), "-02:00:03"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := timer.Format(tc.remaining); got != tc.want {
				t.Fatalf("Format(%v) = %q, want %q", tc.remaining, got, tc.want)
			}
		})
	}
}

func TestAdvanceChargesDeltaSinceLastTick(t *testing.T) {
	start := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	tm := timer.New(10*time.Second, start, time.Second)

	tm.Advance(start.Add(3 * time.Second))
	if got := tm.Remaining(); got != 7*time.Second {
		t.Fatalf("remaining after 3s = %v, want 7s", got)
	}
	if got := tm.Elapsed(); got != 3*time.Second {
		t.Fatalf("elapsed = %v, want 3s", got)
	}
	tm.Advance(start.Add(4 * time.Second))
	if got := tm.Remaining(); got != 6*time.Second {
		t.Fatalf("second advance charged from a stale tick: remaining = %v, want 6s", got)
	}
}

func TestTouchDoesNotChargeTime(t *testing.T) {
	start := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	tm := timer.New(10*time.Second, start, time.Second)

	tm.Touch(start.Add(time.Hour))
	tm.Advance(start.Add(time.Hour + 2*time.Second))
	if got := tm.Remaining(); got != 8*time.Second {
		t.Fatalf("remaining = %v, want 8s (paused hour must not count)", got)
	}
}

func TestAdvanceIgnoresBackwardsClock(t *testing.T) {
	start := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	tm := timer.New(10*time.Second, start, time.Second)

	if events := tm.Advance(start.Add(-5 * time.Second)); events != 0 {
		t.Fatalf("unexpected events %v", events)
	}
	if got := tm.Remaining(); got != 10*time.Second {
		t.Fatalf("remaining = %v, want 10s", got)
	}
}

func TestEventsFireOncePerInstance(t *testing.T) {
	start := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	tm := timer.New(10*time.Second, start, 3*time.Second)

	now := start.Add(6 * time.Second)
	if events := tm.Advance(now); events != 0 {
		t.Fatalf("expected no events at 4s left, got %v", events)
	}
	now = now.Add(2 * time.Second)
	if events := tm.Advance(now); !events.Has(timer.EndingSoon) || events.Has(timer.Ended) {
		t.Fatalf("expected only EndingSoon at 2s left, got %v", events)
	}

	tm.Adjust(timer.OpAdd, 10*time.Second)
	now = now.Add(10 * time.Second)
	if events := tm.Advance(now); events.Has(timer.EndingSoon) {
		t.Fatalf("EndingSoon must not re-fire after an adjustment, got %v", events)
	}

	now = now.Add(3 * time.Second)
	if events := tm.Advance(now); !events.Has(timer.Ended) {
		t.Fatalf("expected Ended when crossing zero, got %v", events)
	}
	now = now.Add(time.Minute)
	if events := tm.Advance(now); events != 0 {
		t.Fatalf("expected no events while over time, got %v", events)
	}
	if tm.Remaining() >= 0 {
		t.Fatalf("expected over-time to be tracked, got %v", tm.Remaining())
	}
}

func TestAdvanceCanCrossBothEdges(t *testing.T) {
	start := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	tm := timer.New(5*time.Second, start, 2*time.Second)

	events := tm.Advance(start.Add(30 * time.Second))
	if !events.Has(timer.EndingSoon | timer.Ended) {
		t.Fatalf("expected both edges in one jump, got %v", events)
	}
}

func TestBelow(t *testing.T) {
	if got := timer.Below(4*time.Second, 3*time.Second); got != 0 {
		t.Fatalf("expected nothing above the threshold, got %v", got)
	}
	if got := timer.Below(2*time.Second, 3*time.Second); got != timer.EndingSoon {
		t.Fatalf("expected EndingSoon, got %v", got)
	}
	if got := timer.Below(-time.Millisecond, 3*time.Second); !got.Has(timer.EndingSoon | timer.Ended) {
		t.Fatalf("expected both events below zero, got %v", got)
	}
}

func TestAdjustPastZeroFiresOnNextAdvance(t *testing.T) {
	start := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	tm := timer.New(100*time.Second, start, 5*time.Second)

	tm.Adjust(timer.OpSub, 110*time.Second)
	var all timer.Events
	ended := 0
	for i := 1; i <= 5; i++ {
		events := tm.Advance(start.Add(time.Duration(i) * time.Second))
		if events.Has(timer.Ended) {
			ended++
		}
		all |= events
	}
	if got := tm.Remaining(); got != -15*time.Second {
		t.Fatalf("remaining = %v, want -15s", got)
	}
	if ended != 1 || !all.Has(timer.EndingSoon|timer.Ended) {
		t.Fatalf("expected each event exactly once after the adjustment, ended=%d events=%v", ended, all)
	}
}

func TestAdjustBelowThresholdFiresEndingSoon(t *testing.T) {
	start := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	tm := timer.New(60*time.Second, start, 5*time.Second)

	tm.Adjust(timer.OpSub, 57*time.Second)
	if events := tm.Advance(start.Add(time.Second)); events != timer.EndingSoon {
		t.Fatalf("events = %v, want EndingSoon only", events)
	}
	tm.Adjust(timer.OpAdd, time.Minute)
	if events := tm.Advance(start.Add(2 * time.Second)); events != 0 {
		t.Fatalf("events re-fired after adding time back: %v", events)
	}
}

func TestAdjust(t *testing.T) {
	tm := timer.New(time.Minute, time.Now(), 0)
	tm.Adjust(timer.OpAdd, 30*time.Second)
	tm.Adjust(timer.OpSub, 10*time.Second)
	if got := tm.Remaining(); got != 80*time.Second {
		t.Fatalf("remaining = %v, want 80s", got)
	}
	if got := tm.Total(); got != time.Minute {
		t.Fatalf("total changed to %v", got)
	}
	if got := tm.Elapsed(); got != -20*time.Second {
		t.Fatalf("elapsed = %v, want -20s", got)
	}
}

func TestParseOp(t *testing.T) {
	if op, ok := timer.ParseOp(" ADD "); !ok || op != timer.OpAdd {
		t.Fatalf("ParseOp(add) = %q, %v", op, ok)
	}
	if op, ok := timer.ParseOp("sub"); !ok || op != timer.OpSub {
		t.Fatalf("ParseOp(sub) = %q, %v", op, ok)
	}
	if _, ok := timer.ParseOp("mul"); ok {
		t.Fatal("expected mul to be rejected")
	}
}

func TestSeconds(t *testing.T) {
	if got := timer.Seconds(-5500 * time.Millisecond); got != -5 {
		t.Fatalf("Seconds(-5.5s) = %d, want -5", got)
	}
	if got := timer.Seconds(75 * time.Second); got != 75 {
		t.Fatalf("Seconds(75s) = %d", got)
	}
}
