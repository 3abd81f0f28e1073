package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Log writes structured events to a writer, either as human-readable
// key=value text or as JSON lines.
type Log struct {
	writer   io.Writer
	jsonMode bool
}

// NewLog creates a Log emitter. A nil writer defaults to os.Stdout.
func NewLog(writer io.Writer, jsonMode bool) *Log {
	if writer == nil {
		writer = os.Stdout
	}
	return &Log{writer: writer, jsonMode: jsonMode}
}

func (l *Log) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
		return
	}
	l.emitText(event)
}

func (l *Log) emitText(e Event) {
	fmt.Fprintf(l.writer, "[%s] component=%s mission=%s actor=%s", e.Msg, e.Component, e.MissionID, e.ActorID)
	if len(e.Meta) > 0 {
		if b, err := json.Marshal(e.Meta); err == nil {
			fmt.Fprintf(l.writer, " meta=%s", b)
		}
	}
	fmt.Fprintln(l.writer)
}

func (l *Log) emitJSON(e Event) {
	if b, err := json.Marshal(e); err == nil {
		fmt.Fprintln(l.writer, string(b))
	}
}

func (l *Log) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		l.Emit(e)
	}
	return nil
}

func (l *Log) Flush(_ context.Context) error {
	if f, ok := l.writer.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}
