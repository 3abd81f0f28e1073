// Package coordinator is the composition root (spec §6): it wires
// every subsystem package behind a single Service, grounded on the
// teacher's Engine[S] (graph/engine.go) — one struct holding every
// collaborator a request needs, built once by New and handed out as
// a value, with background maintenance as cooperative ticker loops
// instead of the teacher's single-workflow frontier loop.
package coordinator

import (
	"context"
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/checkpoint"
	"github.com/v1truv1us/fleettools-sub010/internal/config"
	"github.com/v1truv1us/fleettools-sub010/internal/emit"
	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/learning"
	"github.com/v1truv1us/fleettools-sub010/internal/mailbox"
	"github.com/v1truv1us/fleettools-sub010/internal/metrics"
	"github.com/v1truv1us/fleettools-sub010/internal/orchestrator"
	"github.com/v1truv1us/fleettools-sub010/internal/pilot"
	"github.com/v1truv1us/fleettools-sub010/internal/reservation"
	"github.com/v1truv1us/fleettools-sub010/internal/scheduler"
	"github.com/v1truv1us/fleettools-sub010/internal/store"
)

// Service is the single entry point a transport shell (or a test)
// talks to. Every field is a concrete collaborator, not an interface —
// spec §9's composition-root-singletons note: there is exactly one of
// each, built here, and nothing downstream constructs its own.
type Service struct {
	Config  config.Config
	Store   store.Adapter
	Emitter emit.Emitter

	Log       *eventlog.Log
	Mailboxes *mailbox.Engine
	Locks     *reservation.Manager
	Pilots    *pilot.Registry
	Scheduler *scheduler.Scheduler
	Missions  *orchestrator.Manager
	Learning  *learning.Manager
	Metrics   *metrics.Metrics

	checkpoints *checkpoint.Manager
}

// New builds a fully-wired Service. The caller supplies the persistence
// adapter (already Init'd and self-tested — see cmd/fleetd) and an
// Emitter (emit.Null{} is fine when no observability backend is
// configured); every other collaborator is constructed here, in
// dependency order, exactly once.
func New(cfg config.Config, adapter store.Adapter, emitter emit.Emitter) *Service {
	if emitter == nil {
		emitter = emit.Null{}
	}
	m := metrics.New(nil)
	log := eventlog.New(eventlog.DefaultRegistry())
	mailboxes := mailbox.New(adapter, log)
	locks := reservation.New(adapter, log, m)
	pilots := pilot.New(adapter, log, m, cfg.HeartbeatTimeout)
	sched := scheduler.New(adapter, log, pilots, m)
	learner := learning.New(adapter, log)
	missions := orchestrator.New(adapter, log, sched, learner)
	checkpoints := checkpoint.New(adapter, log, missions, locks, pilots, mailboxes)

	return &Service{
		Config:      cfg,
		Store:       adapter,
		Emitter:     emitter,
		Log:         log,
		Mailboxes:   mailboxes,
		Locks:       locks,
		Pilots:      pilots,
		Scheduler:   sched,
		Missions:    missions,
		Learning:    learner,
		Metrics:     m,
		checkpoints: checkpoints,
	}
}

// RunBackgroundWorkers starts every cooperative sweep loop (spec §9's
// timer-driven background tasks) and blocks until ctx is cancelled.
// cmd/fleetd calls it directly as its final, blocking step.
func (s *Service) RunBackgroundWorkers(ctx context.Context) {
	go s.Locks.RunSweeper(ctx)
	go s.runSchedulerSweeper(ctx)
	go s.runInactivityMonitor(ctx)
	go s.runPilotTimeoutMonitor(ctx)
	<-ctx.Done()
}

func (s *Service) runSchedulerSweeper(ctx context.Context) {
	ticker := time.NewTicker(scheduler.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Scheduler.SweepAcceptanceTimeouts(ctx)
		}
	}
}

func (s *Service) runInactivityMonitor(ctx context.Context) {
	ticker := time.NewTicker(checkpoint.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkpoints.SweepInactivity(ctx, s.Config.InactivityThreshold, s.Config.AutoResume)
		}
	}
}

// runPilotTimeoutMonitor deregisters pilots whose heartbeat has gone
// stale and reverts whatever they had in flight back to pending (spec
// §4.5, §8 scenario 6). This is the one place that link can be made:
// pilot and scheduler don't import each other, so only the composition
// root can drive a pilot-side event into a scheduler-side state change.
func (s *Service) runPilotTimeoutMonitor(ctx context.Context) {
	ticker := time.NewTicker(pilot.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepPilotTimeouts(ctx)
		}
	}
}

// SweepPilotTimeouts runs a single pilot-timeout pass immediately, for
// tests and for an administrative "sweep now" trigger (mirrors
// reservation.Manager.SweepOnce).
func (s *Service) SweepPilotTimeouts(ctx context.Context) {
	timedOut, err := s.Pilots.SweepTimeouts(ctx)
	if err != nil {
		return
	}
	for _, p := range timedOut {
		_ = s.Scheduler.RevertAssignmentsForPilot(ctx, p.PilotID)
		s.observe("pilot", "", p.PilotID, "pilot_deregistered", map[string]any{"reason": "timeout"})
	}
}

func (s *Service) observe(component, missionID, actorID, msg string, meta map[string]any) {
	s.Emitter.Emit(emit.Event{Component: component, MissionID: missionID, ActorID: actorID, Msg: msg, Meta: meta})
}
