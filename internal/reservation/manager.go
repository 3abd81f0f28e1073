package reservation

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/metrics"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// nowFunc is overridable in tests that need to fast-forward expiry
// without sleeping.
var nowFunc = time.Now

// Manager owns reservation and lock state plus the FIFO wait-queues
// contention flows through. One Manager instance is shared by the
// whole server process; its queues are in-memory and reset on
// restart, which is fine because the store itself is the source of
// truth for who holds what — only pending waiters are lost, and they
// simply re-request.
type Manager struct {
	store   store.Adapter
	log     *eventlog.Log
	metrics *metrics.Metrics

	reservationQueue *fifoQueue
	lockQueue        *fifoQueue
}

func New(adapter store.Adapter, log *eventlog.Log, m *metrics.Metrics) *Manager {
	return &Manager{
		store:            adapter,
		log:              log,
		metrics:          m,
		reservationQueue: newFIFOQueue(),
		lockQueue:        newFIFOQueue(),
	}
}

func (m *Manager) emit(ctx context.Context, tx store.Tx, streamType eventlog.StreamType, streamID, eventType string, data map[string]any) error {
	_, err := m.log.Append(ctx, tx, eventlog.AppendInput{
		StreamType: streamType,
		StreamID:   streamID,
		EventType:  eventType,
		Data:       data,
	})
	return err
}

func (m *Manager) withTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := m.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
