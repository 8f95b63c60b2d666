// Package daemonrun wires a pomo daemon process together: signal handling,
// the per-run logger and log pointer, the startup lock around the endpoint
// handshake, the history store, notifiers, the status server, and the
// control loop.
package daemonrun
