// Package notifications announces phase events away from the daemon loop.
//
// Desktop alerts go through notify-send and an optional sound player, both
// skipped when the binary is missing. A configured ntfy topic receives a push
// for the same events. NewService fans out to whatever is enabled and falls
// back to a no-op; Async wraps any Service so the control loop never waits on
// a subprocess or the network.
package notifications
