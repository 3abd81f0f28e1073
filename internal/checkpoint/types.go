// Package checkpoint snapshots an in-flight mission so it can resume
// after a crash or a context-window loss, adapting the teacher's
// CheckpointV2 shape (graph/checkpoint.go) to the fleet's domain: a
// sortie/work-order state snapshot instead of a generic execution
// state, reservations/locks instead of RNG-deterministic replay, and
// mailbox cursors instead of recorded I/O.
package checkpoint

import (
	"time"

	"github.com/v1truv1us/fleettools-sub010/internal/eventlog"
	"github.com/v1truv1us/fleettools-sub010/internal/orchestrator"
	"github.com/v1truv1us/fleettools-sub010/internal/reservation"
)

// RecoveryContext is the human-readable summary carried alongside the
// structural snapshot: what happened, what's left, and what's
// blocking progress, so a resumed pilot (or a human) can reorient
// without replaying the whole event log.
type RecoveryContext struct {
	MissionSummary string   `json:"mission_summary"`
	LastSteps      []string `json:"last_steps,omitempty"`
	NextSteps      []string `json:"next_steps,omitempty"`
	Blockers       []string `json:"blockers,omitempty"`
	TouchedFiles   []string `json:"touched_files,omitempty"`
}

// MailboxCursorSnapshot captures one pilot's mailbox cursor position
// and the undelivered events past it (sequence > cursor) at snapshot
// time, so resume can replay exactly what was missed.
type MailboxCursorSnapshot struct {
	PilotID     string           `json:"pilot_id"`
	Position    int64            `json:"position"`
	Undelivered []eventlog.Event `json:"undelivered,omitempty"`
}

// Checkpoint is a single-transaction, atomically-written snapshot of
// a mission (spec §4.8).
type Checkpoint struct {
	CheckpointID    string                    `json:"checkpoint_id"`
	MissionID       string                    `json:"mission_id"`
	Label           string                    `json:"label,omitempty"`
	Sorties         []orchestrator.Sortie     `json:"sorties"`
	Reservations    []reservation.Reservation `json:"reservations"`
	Locks           []reservation.Lock        `json:"locks"`
	MailboxCursors  []MailboxCursorSnapshot   `json:"mailbox_cursors,omitempty"`
	RecoveryContext RecoveryContext           `json:"recovery_context"`
	PatternID       string                    `json:"pattern_id,omitempty"`
	PatternVersion  int                       `json:"pattern_version,omitempty"`
	IdempotencyKey  string                    `json:"idempotency_key"`
	CreatedAt       time.Time                 `json:"created_at"`
	ConsumedAt      *time.Time                `json:"consumed_at,omitempty"`
}

// ResumeStep names one step of the seven-step resume protocol, used
// both to report a dry-run plan and to label emitted progress.
type ResumeStep string

const (
	StepValidateCheckpoint  ResumeStep = "validate_checkpoint"
	StepVerifyUnconsumed    ResumeStep = "verify_unconsumed"
	StepRestoreStates       ResumeStep = "restore_states"
	StepReissueHolds        ResumeStep = "reissue_holds"
	StepReplayMailboxEvents ResumeStep = "replay_mailbox_events"
	StepMarkConsumed        ResumeStep = "mark_consumed"
	StepEmitRecovered       ResumeStep = "emit_recovered"
)

// ReissueOutcome records what happened to one held reservation or
// lock during resume: reissued to its original holder with a fresh
// TTL if the holder is still live, or released back into contention
// for reassignment if not.
type ReissueOutcome struct {
	Kind       string `json:"kind"` // "reservation" or "lock"
	Key        string `json:"key"`
	HolderID   string `json:"holder_id"`
	Reissued   bool   `json:"reissued"`
	Reassigned bool   `json:"reassigned"`
}

// ResumePlan describes a resume: for a dry run, what would happen,
// without any side effects; for a real resume, what was done.
type ResumePlan struct {
	CheckpointID          string           `json:"checkpoint_id"`
	MissionID             string           `json:"mission_id"`
	StepsPerformed        []ResumeStep     `json:"steps_performed"`
	SortiesToRestore      int              `json:"sorties_to_restore"`
	HoldsToReissue        []ReissueOutcome `json:"holds_to_reissue"`
	MailboxEventsToReplay int              `json:"mailbox_events_to_replay"`
}

const tableCheckpoints = "checkpoints"
