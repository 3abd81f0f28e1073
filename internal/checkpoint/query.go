package checkpoint

import (
	"context"

	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// ListByMission returns every checkpoint recorded for missionID,
// newest first.
func (m *Manager) ListByMission(ctx context.Context, missionID string) ([]Checkpoint, error) {
	var out []Checkpoint
	err := m.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tableCheckpoints, store.RangeOptions{Descending: true})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var cp Checkpoint
			if err := decodeInto(row.Value, &cp); err != nil {
				return err
			}
			if cp.MissionID != missionID {
				continue
			}
			out = append(out, cp)
		}
		return nil
	})
	return out, err
}

// Delete removes a checkpoint, freeing the storage it held. Deleting
// an already-consumed checkpoint is allowed — it is historical record
// only at that point, no longer a resume target.
func (m *Manager) Delete(ctx context.Context, checkpointID string) error {
	return m.withTx(ctx, func(tx store.Tx) error {
		return tx.Delete(ctx, tableCheckpoints, checkpointID)
	})
}
