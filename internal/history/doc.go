// Package history records work sessions in a SQLite database and answers
// the date-range questions behind `pomo report`.
//
// A session opens when a work phase starts and closes with its elapsed
// seconds when the phase is ended or the daemon shuts down. Dates and start
// times are stamped in UTC shifted by history.utc_offset_hours. At most one
// session is open at a time, so starting twice returns the same session and
// finishing with nothing open is a no-op.
package history
