// Package broadcast streams state snapshots to status readers over a unix
// stream socket.
//
// Every accepted connection is assigned an increasing id and served by its
// own goroutine, which writes one JSON object per line immediately on connect
// and then once per interval. Readers never write; a failed write ends that
// reader's handler and nothing else. Subscribe is the client side used by the
// CLI and bar scripts, with optional reconnect.
package broadcast
