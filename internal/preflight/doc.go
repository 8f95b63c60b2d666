// Package preflight provides readiness checks for the filesystem paths,
// binaries, and services pomo depends on.
//
// The daemon runs RunAll at startup and logs whatever fails; `pomo check`
// renders every result together with the notifier binaries and the state of a
// running daemon. Each check is gated by its config toggle, so disabled
// features are skipped.
package preflight
