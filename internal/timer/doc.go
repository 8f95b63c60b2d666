// Package timer implements the countdown for a single work or break phase.
//
// A Timer holds the phase length, the signed remaining time, and the tick
// reference used to charge wall-clock time. Over-time is tracked rather than
// clamped. Advance reports ending-soon and ended as Events so the caller
// decides which side effects to run. Each fires at most once per Timer
// instance, on the first advance that finds remaining below its threshold,
// including after a manual adjustment.
package timer
