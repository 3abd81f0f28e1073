package eventlog

import "github.com/v1truv1us/fleettools-sub010/internal/ferr"

// Validator checks an event's data payload before Append accepts it.
type Validator func(data map[string]any) error

// Registry is a recognized-options-style lookup table (Design Note
// §9): event types must be registered before Append will accept them,
// mirroring config's recognized-env-var table rather than relying on
// runtime subtype introspection to validate a discriminated union.
type Registry struct {
	validators map[string]Validator
}

func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// Register adds or replaces the validator for eventType. A nil
// validator means "any payload is accepted, provided the event type
// is known".
func (r *Registry) Register(eventType string, validate Validator) {
	if validate == nil {
		validate = func(map[string]any) error { return nil }
	}
	r.validators[eventType] = validate
}

func (r *Registry) Validate(eventType string, data map[string]any) error {
	validate, ok := r.validators[eventType]
	if !ok {
		return ferr.New(ferr.InvalidInput, "unregistered event_type: "+eventType)
	}
	return validate(data)
}

// RequireFields builds a Validator that rejects payloads missing any
// of the given keys, for components that want the common case without
// hand-writing a closure.
func RequireFields(fields ...string) Validator {
	return func(data map[string]any) error {
		for _, f := range fields {
			if _, ok := data[f]; !ok {
				return ferr.New(ferr.InvalidInput, "event payload missing field: "+f)
			}
		}
		return nil
	}
}

// DefaultRegistry returns a Registry pre-populated with every event
// type the coordination core itself emits (SPEC_FULL.md §4.2).
// Components wiring an additional stream register their own types
// against this same Registry at startup.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("pilot_registered", RequireFields("pilot_id", "callsign"))
	r.Register("pilot_deregistered", RequireFields("pilot_id"))
	r.Register("pilot_heartbeat", RequireFields("pilot_id"))
	r.Register("pilot_status_changed", RequireFields("pilot_id", "status"))
	r.Register("mission_created", RequireFields("mission_id"))
	r.Register("mission_started", nil)
	r.Register("mission_completed", RequireFields("mission_id"))
	r.Register("mission_failed", RequireFields("mission_id"))
	r.Register("mission_cancelled", RequireFields("reason"))
	r.Register("mission_archived", nil)
	r.Register("sortie_created", RequireFields("sortie_id", "mission_id"))
	r.Register("sortie_blocked", RequireFields("reason"))
	r.Register("sortie_unblocked", nil)
	r.Register("sortie_work_order_completed", RequireFields("work_order_id"))
	r.Register("sortie_work_order_failed", RequireFields("work_order_id"))
	r.Register("work_order_created", RequireFields("work_order_id"))
	r.Register("work_order_assigned", RequireFields("work_order_id", "pilot_id"))
	r.Register("work_order_completed", RequireFields("work_order_id"))
	r.Register("work_order_failed", RequireFields("work_order_id"))
	r.Register("work_order_retried", RequireFields("work_order_id", "attempt"))
	r.Register("work_order_patched", RequireFields("work_order_id"))
	r.Register("file_reserved", RequireFields("file_path", "pilot_id"))
	r.Register("file_released", RequireFields("file_path", "pilot_id"))
	r.Register("file_reservation_renewed", RequireFields("file_path"))
	r.Register("file_conflict", RequireFields("file_path"))
	r.Register("lock_acquired", RequireFields("lock_key", "pilot_id"))
	r.Register("lock_renewed", RequireFields("lock_key"))
	r.Register("lock_released", RequireFields("lock_key"))
	r.Register("checkpoint_created", RequireFields("checkpoint_id", "mission_id"))
	r.Register("checkpoint_resumed", RequireFields("checkpoint_id", "mission_id"))
	r.Register("fleet_recovered", RequireFields("mission_id"))
	r.Register("context_injected", RequireFields("mission_id"))
	r.Register("pattern_learned", RequireFields("pattern_id"))
	r.Register("pattern_matched", RequireFields("pattern_id"))
	r.Register("pattern_deleted", nil)
	r.Register("pattern_approved", nil)
	r.Register("pattern_outcome_recorded", RequireFields("pattern_id"))
	r.Register("task_assignment", RequireFields("work_order_id"))
	r.Register("context_broadcast", nil)
	return r
}
