package emit

import "context"

// Emitter receives observability events. Implementations must not
// block the caller for long and must never panic — a failing
// observability backend must not take down the coordination engine.
type Emitter interface {
	Emit(event Event)
	EmitBatch(ctx context.Context, events []Event) error
	Flush(ctx context.Context) error
}

// Multi fans events out to several emitters, continuing past any that
// error so one broken backend doesn't suppress the others.
type Multi struct {
	Emitters []Emitter
}

func (m Multi) Emit(event Event) {
	for _, e := range m.Emitters {
		e.Emit(event)
	}
}

func (m Multi) EmitBatch(ctx context.Context, events []Event) error {
	var firstErr error
	for _, e := range m.Emitters {
		if err := e.EmitBatch(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m Multi) Flush(ctx context.Context) error {
	var firstErr error
	for _, e := range m.Emitters {
		if err := e.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
