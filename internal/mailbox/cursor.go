// Package mailbox implements the cursor/mailbox engine (spec §4.3):
// named consumer cursors over event-log streams with at-least-once,
// per-stream-ordered delivery, plus a thin Post/Broadcast convenience
// over eventlog for the pilot-addressed mailbox stream.
package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

const tableCursors = "cursors"

// Cursor is a consumer's last-acknowledged position in a stream.
type Cursor struct {
	StreamType eventlog.StreamType `json:"stream_type"`
	StreamID   string              `json:"stream_id"`
	ConsumerID string              `json:"consumer_id"`
	Position   int64               `json:"position"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func cursorKey(streamType eventlog.StreamType, streamID, consumerID string) string {
	return fmt.Sprintf("%s:%s:%s", streamType, streamID, consumerID)
}

// position returns the consumer's current position, or 0 if it has
// never advanced against this stream.
func position(ctx context.Context, tx store.Tx, streamType eventlog.StreamType, streamID, consumerID string) (int64, error) {
	var c Cursor
	err := tx.Get(ctx, tableCursors, cursorKey(streamType, streamID, consumerID), &c)
	if ferr.KindOf(err) == ferr.NotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return c.Position, nil
}

// advance persists newPosition for the consumer, rejecting regression.
func advance(ctx context.Context, tx store.Tx, streamType eventlog.StreamType, streamID, consumerID string, newPosition int64) error {
	current, err := position(ctx, tx, streamType, streamID, consumerID)
	if err != nil {
		return err
	}
	if newPosition < current {
		return ferr.New(ferr.CursorRegression, fmt.Sprintf(
			"cursor %s/%s/%s: new position %d is behind current position %d",
			streamType, streamID, consumerID, newPosition, current))
	}
	c := Cursor{
		StreamType: streamType,
		StreamID:   streamID,
		ConsumerID: consumerID,
		Position:   newPosition,
		UpdatedAt:  time.Now().UTC(),
	}
	return tx.Put(ctx, tableCursors, cursorKey(streamType, streamID, consumerID), 0, c)
}
