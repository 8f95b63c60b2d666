// Package main hosts the pomo CLI entrypoint and command graph.
//
// Run without a subcommand, pomo becomes the daemon. The subcommands are thin
// clients: toggle, end, lock, exit, tag, and time each send one datagram to
// the control endpoint; status reads the broadcast stream; report queries the
// session history; logs tails the daemon log; check runs the preflight
// checks; config writes and validates the TOML file. Configuration resolution
// lives in commandContext so subcommands can focus on output.
package main
