package mailbox

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
)

// Read returns up to limit events from (streamType, streamID) after
// afterSequence without blocking and without touching any cursor —
// spec §6's Mailboxes/Read operation, which addresses an arbitrary
// stream directly rather than a particular consumer's pending set
// (that is Poll's job).
func (e *Engine) Read(ctx context.Context, streamType eventlog.StreamType, streamID string, afterSequence int64, limit int) ([]eventlog.Event, error) {
	tx, err := e.adapter.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	return e.log.QueryByStream(ctx, tx, streamType, streamID, afterSequence, limit)
}
