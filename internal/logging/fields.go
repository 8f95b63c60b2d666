package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a record for filtering (daemon_exit_requested, ...).
	FieldEventType = "event_type"
	// FieldErrorHint carries the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldClientID identifies a status reader connection.
	FieldClientID = "client_id"
	// FieldCommand is the decoded control verb.
	FieldCommand = "command"
	FieldPhase   = "phase"
	FieldTag     = "tag"
	// FieldSessionID identifies a row in the session history.
	FieldSessionID = "session_id"
	// FieldRunID identifies one daemon process lifetime.
	FieldRunID = "run_id"
)
