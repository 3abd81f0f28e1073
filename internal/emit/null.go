package emit

import "context"

// Null discards every event. Useful when observability overhead is
// unwanted, or as the default when no emitter is configured.
type Null struct{}

func (Null) Emit(Event)                                 {}
func (Null) EmitBatch(context.Context, []Event) error    { return nil }
func (Null) Flush(context.Context) error                 { return nil }
