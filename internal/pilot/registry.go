package pilot

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/ids"
	"github.com/v1truv1us/fleettools-sub010/internal/metrics"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// nowFunc is overridable in tests that need to fast-forward past the
// heartbeat timeout without sleeping.
var nowFunc = time.Now

// SweepInterval is the cadence at which SweepTimeouts should be driven
// by a background ticker (mirroring scheduler.SweepInterval).
const SweepInterval = 10 * time.Second

// Registry owns pilot lifecycle and lookup. One instance per process,
// shared by the scheduler for candidate selection.
type Registry struct {
	store            store.Adapter
	log              *eventlog.Log
	metrics          *metrics.Metrics
	heartbeatTimeout time.Duration
}

// New constructs a Registry. heartbeatTimeout is spec §4.5's
// T_heartbeat_timeout, used both to mark a pilot offline and to decide
// whether a callsign collision is stale and evictable.
func New(adapter store.Adapter, log *eventlog.Log, m *metrics.Metrics, heartbeatTimeout time.Duration) *Registry {
	return &Registry{store: adapter, log: log, metrics: m, heartbeatTimeout: heartbeatTimeout}
}

func (r *Registry) withTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Registry) emit(ctx context.Context, tx store.Tx, streamID, eventType string, data map[string]any) error {
	_, err := r.log.Append(ctx, tx, eventlog.AppendInput{
		StreamType: eventlog.StreamPilot,
		StreamID:   streamID,
		EventType:  eventType,
		Data:       data,
	})
	return err
}

// Register admits a new pilot under callsign. A live registration
// under the same callsign fails with Conflict unless its last
// heartbeat is stale, in which case the stale record is evicted first
// (spec §4.5).
func (r *Registry) Register(ctx context.Context, callsign, agentType string, capabilities []Capability, maxWorkload int) (Pilot, error) {
	var out Pilot
	err := r.withTx(ctx, func(tx store.Tx) error {
		existing, err := r.getByCallsignTx(ctx, tx, callsign)
		if err == nil && existing.live() {
			now := nowFunc()
			if now.Sub(existing.LastHeartbeat) <= r.heartbeatTimeout {
				return ferr.New(ferr.Conflict, "callsign already registered and alive: "+callsign)
			}
			if err := r.deregisterTx(ctx, tx, existing, "timeout"); err != nil {
				return err
			}
		} else if err != nil && ferr.KindOf(err) != ferr.NotFound {
			return err
		}

		now := nowFunc()
		out = Pilot{
			PilotID:         ids.Pilot(),
			Callsign:        callsign,
			AgentType:       agentType,
			Status:          StatusIdle,
			Capabilities:    capabilities,
			CurrentWorkload: 0,
			MaxWorkload:     maxWorkload,
			LastHeartbeat:   now,
			CreatedAt:       now,
		}
		if err := tx.Put(ctx, tablePilots, out.PilotID, now.UnixNano(), out); err != nil {
			return err
		}
		return r.emit(ctx, tx, out.PilotID, "pilot_registered", map[string]any{
			"pilot_id":   out.PilotID,
			"callsign":   out.Callsign,
			"agent_type": out.AgentType,
		})
	})
	if err != nil {
		return Pilot{}, err
	}
	return out, nil
}

// Heartbeat refreshes a pilot's liveness timestamp.
func (r *Registry) Heartbeat(ctx context.Context, pilotID string) error {
	return r.withTx(ctx, func(tx store.Tx) error {
		var p Pilot
		if err := tx.Get(ctx, tablePilots, pilotID, &p); err != nil {
			return err
		}
		if !p.live() {
			return ferr.New(ferr.NotFound, "pilot deregistered: "+pilotID)
		}
		p.LastHeartbeat = nowFunc()
		return tx.Put(ctx, tablePilots, pilotID, p.CreatedAt.UnixNano(), p)
	})
}

// UpdateStatus sets a pilot's self-reported status and emits
// pilot_status_changed.
func (r *Registry) UpdateStatus(ctx context.Context, pilotID string, status Status) error {
	return r.withTx(ctx, func(tx store.Tx) error {
		var p Pilot
		if err := tx.Get(ctx, tablePilots, pilotID, &p); err != nil {
			return err
		}
		if !p.live() {
			return ferr.New(ferr.NotFound, "pilot deregistered: "+pilotID)
		}
		prior := p.Status
		p.Status = status
		if err := tx.Put(ctx, tablePilots, pilotID, p.CreatedAt.UnixNano(), p); err != nil {
			return err
		}
		return r.emit(ctx, tx, pilotID, "pilot_status_changed", map[string]any{
			"pilot_id":  pilotID,
			"status":    string(status),
			"from":      string(prior),
			"to":        string(status),
		})
	})
}

// UpdateWorkload sets a pilot's current workload. current must satisfy
// 0 <= current <= max_workload (spec §3's Pilot invariant).
func (r *Registry) UpdateWorkload(ctx context.Context, pilotID string, current int) error {
	return r.withTx(ctx, func(tx store.Tx) error {
		var p Pilot
		if err := tx.Get(ctx, tablePilots, pilotID, &p); err != nil {
			return err
		}
		if !p.live() {
			return ferr.New(ferr.NotFound, "pilot deregistered: "+pilotID)
		}
		if current < 0 || current > p.MaxWorkload {
			return ferr.New(ferr.InvalidInput, "workload out of range for pilot "+pilotID)
		}
		p.CurrentWorkload = current
		return tx.Put(ctx, tablePilots, pilotID, p.CreatedAt.UnixNano(), p)
	})
}

// Deregister removes a pilot from the live set, emitting
// pilot_deregistered(reason=reason).
func (r *Registry) Deregister(ctx context.Context, pilotID, reason string) error {
	return r.withTx(ctx, func(tx store.Tx) error {
		var p Pilot
		if err := tx.Get(ctx, tablePilots, pilotID, &p); err != nil {
			return err
		}
		if !p.live() {
			return nil
		}
		return r.deregisterTx(ctx, tx, p, reason)
	})
}

func (r *Registry) deregisterTx(ctx context.Context, tx store.Tx, p Pilot, reason string) error {
	now := nowFunc()
	p.DeregisteredAt = &now
	if err := tx.Put(ctx, tablePilots, p.PilotID, p.CreatedAt.UnixNano(), p); err != nil {
		return err
	}
	return r.emit(ctx, tx, p.PilotID, "pilot_deregistered", map[string]any{
		"pilot_id": p.PilotID,
		"callsign": p.Callsign,
		"reason":   reason,
	})
}

// List returns every live pilot.
func (r *Registry) List(ctx context.Context) ([]Pilot, error) {
	var out []Pilot
	err := r.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tablePilots, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var p Pilot
			if err := decodeInto(row.Value, &p); err != nil {
				return err
			}
			if p.live() {
				out = append(out, p)
			}
		}
		return nil
	})
	return out, err
}

// GetByCallsign looks up a live pilot by callsign.
func (r *Registry) GetByCallsign(ctx context.Context, callsign string) (Pilot, error) {
	var out Pilot
	err := r.withTx(ctx, func(tx store.Tx) error {
		p, err := r.getByCallsignTx(ctx, tx, callsign)
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (r *Registry) getByCallsignTx(ctx context.Context, tx store.Tx, callsign string) (Pilot, error) {
	rows, err := tx.Range(ctx, tablePilots, store.RangeOptions{})
	if err != nil {
		return Pilot{}, err
	}
	for _, row := range rows {
		var p Pilot
		if err := decodeInto(row.Value, &p); err != nil {
			return Pilot{}, err
		}
		if p.Callsign == callsign && p.live() {
			return p, nil
		}
	}
	return Pilot{}, ferr.New(ferr.NotFound, "no live pilot with callsign: "+callsign)
}

// FindByCapability returns every live, non-full pilot exposing a
// capability whose trigger words overlap words, as a pure index scan
// (spec §4.6's candidate set).
func (r *Registry) FindByCapability(ctx context.Context, words []string) ([]Pilot, error) {
	wanted := make(map[string]bool, len(words))
	for _, w := range words {
		wanted[w] = true
	}
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []Pilot
	for _, p := range all {
		if p.CurrentWorkload >= p.MaxWorkload {
			continue
		}
		if capabilityOverlap(p.Capabilities, wanted) > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func capabilityOverlap(caps []Capability, wanted map[string]bool) int {
	count := 0
	for _, c := range caps {
		for _, w := range c.TriggerWords {
			if wanted[w] {
				count++
			}
		}
	}
	return count
}

// SweepTimeouts deregisters every live pilot whose last heartbeat has
// gone stale past the registry's configured timeout, emitting
// pilot_deregistered(reason=timeout) for each. Returns the deregistered
// pilots so the caller can revert whatever work was assigned to them
// (spec §4.5, §8 scenario 6); this method itself only owns pilot
// state, not the scheduler's.
func (r *Registry) SweepTimeouts(ctx context.Context) ([]Pilot, error) {
	var timedOut []Pilot
	err := r.withTx(ctx, func(tx store.Tx) error {
		rows, err := tx.Range(ctx, tablePilots, store.RangeOptions{})
		if err != nil {
			return err
		}
		for _, row := range rows {
			var p Pilot
			if err := decodeInto(row.Value, &p); err != nil {
				continue
			}
			if !p.live() || !r.IsOffline(p) {
				continue
			}
			if err := r.deregisterTx(ctx, tx, p, "timeout"); err != nil {
				return err
			}
			timedOut = append(timedOut, p)
		}
		return nil
	})
	return timedOut, err
}

// IsOffline reports whether p's last heartbeat has exceeded the
// registry's configured timeout.
func (r *Registry) IsOffline(p Pilot) bool {
	return nowFunc().Sub(p.LastHeartbeat) > r.heartbeatTimeout
}

// GetHealth aggregates h into the spec §4.5 status label, taking
// p's heartbeat staleness into account.
func (r *Registry) GetHealth(p Pilot, h Health) HealthStatus {
	return h.Aggregate(r.IsOffline(p))
}
