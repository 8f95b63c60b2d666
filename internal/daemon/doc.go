// Package daemon runs the control loop of a pomo process.
//
// The loop is the only writer of the status.Machine: every iteration ticks
// the timer, raises ending-soon and phase-ended notifications on the edge, then
// waits up to the poll budget for one control command and applies it. Work
// sessions are recorded through a Recorder around toggle, end, and tag
// commands, and the open session is closed when the loop stops. Hook and
// notifier failures are logged and never hold up a state change.
package daemon
