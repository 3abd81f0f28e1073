// Package eventlog is the append-only event store (spec §4.2): one
// gap-free, strictly increasing sequence per (stream_type, stream_id),
// events immutable after append, validated against a schema registry
// keyed by event_type. Every other domain package treats this as its
// source of truth and projects its own read model off it or off
// store rows directly — eventlog itself knows nothing about missions,
// pilots, or files.
package eventlog

import "time"

// StreamType enumerates the logical streams events can belong to.
type StreamType string

const (
	StreamMission    StreamType = "mission"
	StreamSortie     StreamType = "sortie"
	StreamWorkOrder  StreamType = "work_order"
	StreamPilot      StreamType = "pilot"
	StreamFile       StreamType = "file"
	StreamLock       StreamType = "lock"
	StreamCheckpoint StreamType = "checkpoint"
	StreamMailbox    StreamType = "mailbox"
	StreamSystem     StreamType = "system"
)

// Event is one immutable fact recorded against a stream.
type Event struct {
	EventID       string         `json:"event_id"`
	StreamType    StreamType     `json:"stream_type"`
	StreamID      string         `json:"stream_id"`
	Sequence      int64          `json:"sequence"`
	EventType     string         `json:"event_type"`
	Data          map[string]any `json:"data"`
	OccurredAt    time.Time      `json:"occurred_at"`
	RecordedAt    time.Time      `json:"recorded_at"`
	CausationID   string         `json:"causation_id,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	SchemaVersion int            `json:"schema_version"`
}

// AppendInput is everything a caller supplies; Append fills in the
// rest (event_id, sequence, recorded_at, and occurred_at if absent).
type AppendInput struct {
	StreamType    StreamType
	StreamID      string
	EventType     string
	Data          map[string]any
	OccurredAt    time.Time // zero means "now"
	CausationID   string
	CorrelationID string
	Metadata      map[string]any
}
