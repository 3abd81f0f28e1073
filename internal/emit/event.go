// Package emit provides pluggable observability for the coordination
// core: every subsystem (scheduler, reservation manager, checkpointer,
// ...) reports what it did through one Emitter, which can log it,
// trace it, or discard it without the subsystem knowing which.
package emit

// Event is an observability record, distinct from the durable events
// in the event log (internal/eventlog): these are transient, for
// operators and tracing backends, and are never persisted or replayed.
type Event struct {
	// Component names the subsystem that produced this event
	// ("scheduler", "reservation", "checkpoint", ...).
	Component string

	// MissionID scopes the event to a mission when applicable; empty
	// for fleet-wide events (e.g. pilot registration).
	MissionID string

	// ActorID identifies the pilot callsign, work order id, or other
	// subject of the event; empty when not applicable.
	ActorID string

	// Msg is a short, stable event name ("work_order_assigned",
	// "file_released", "checkpoint_created", ...).
	Msg string

	// Meta carries structured detail specific to Msg (duration_ms,
	// reason, score, ...).
	Meta map[string]any
}
