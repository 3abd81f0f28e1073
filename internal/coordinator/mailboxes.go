package coordinator

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/mailbox"
)

// AppendMailbox posts an event to a pilot's mailbox, or to the shared
// broadcast mailbox when mailboxID is empty (spec §6 Mailboxes/Append).
func (s *Service) AppendMailbox(ctx context.Context, mailboxID, eventType string, data map[string]any, correlationID string) (eventlog.Event, error) {
	var opts []mailbox.PostOption
	if correlationID != "" {
		opts = append(opts, mailbox.WithCorrelationID(correlationID))
	}
	if mailboxID == "" {
		return s.Mailboxes.Broadcast(ctx, eventType, data, opts...)
	}
	return s.Mailboxes.Post(ctx, mailboxID, eventType, data, opts...)
}

// ReadMailbox reads events from a mailbox's stream by stream_id,
// after_sequence, limit (spec §6 Mailboxes/Read) without consuming or
// advancing any cursor.
func (s *Service) ReadMailbox(ctx context.Context, mailboxID string, afterSequence int64, limit int) ([]eventlog.Event, error) {
	return s.Mailboxes.Read(ctx, eventlog.StreamMailbox, mailboxID, afterSequence, limit)
}

// AdvanceCursor records a consumer's acknowledged position in a stream
// (spec §6 Cursors/Advance).
func (s *Service) AdvanceCursor(ctx context.Context, streamType eventlog.StreamType, streamID, consumerID string, newPosition int64) error {
	return s.Mailboxes.Advance(ctx, streamType, streamID, consumerID, newPosition)
}

// GetCursor reports a consumer's current position without advancing it
// (spec §6 Cursors/Get).
func (s *Service) GetCursor(ctx context.Context, streamType eventlog.StreamType, streamID, consumerID string) (int64, error) {
	return s.Mailboxes.Position(ctx, streamType, streamID, consumerID)
}
