// Package status holds the work/break state machine shared by the control
// loop and the broadcast handlers.
//
// The control loop is the only writer. Broadcast handlers read through
// Snapshot, which copies every field under the read lock. Side effects such as
// session bookkeeping and notifications are left to the caller: methods report
// what changed (Transition, the events returned by Tick, the changed flag of
// ChangeTag) and never call out themselves.
package status
