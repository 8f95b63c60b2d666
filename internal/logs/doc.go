// Package logs reads daemon log files for `pomo logs`.
//
// Last returns the final lines of a file with bounded memory. Follow keeps
// emitting appended lines and notices when the pomo.log link moves to the log
// of a newer daemon run, restarting from the top of that file.
package logs
