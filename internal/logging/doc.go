// Package logging assembles structured slog loggers and formatting helpers used
// across pomo.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, stamps every record of a daemon run with its run_id, and defines
// the standard field keys (component, event_type, error_hint, impact,
// client_id, command, phase, tag, session_id, run_id). Warnings go through
// WarnWithContext so each one carries its impact and a next step. NewNop
// serves tests and wiring code that cannot fail.
package logging
