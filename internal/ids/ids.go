// Package ids generates and validates the fleet's prefixed opaque
// identifiers (spec §6): msn-<uuid>, srt-<uuid>, wo-<uuid>,
// chk-<uuid>, evt-<uuid>, plus tolerance for the legacy evt_<8hex>
// form during migration from older event tables.
package ids

import (
	"regexp"

	"github.com/google/uuid"
)

const (
	MissionPrefix     = "msn"
	SortiePrefix      = "srt"
	WorkOrderPrefix   = "wo"
	CheckpointPrefix  = "chk"
	EventPrefix       = "evt"
	ReservationPrefix = "res"
	LockPrefix        = "lck"
	PatternPrefix     = "pat"
	PilotPrefix       = "plt"
)

var idPattern = regexp.MustCompile(`^([a-z]{2,4})-[0-9a-f-]{36}$`)
var legacyEventPattern = regexp.MustCompile(`^evt_[a-z0-9]{8}$`)

// New returns a freshly generated id of the form "<prefix>-<uuid>".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Mission, Sortie, WorkOrder, Checkpoint, Event generate ids for their
// respective entity kinds.
func Mission() string     { return New(MissionPrefix) }
func Sortie() string      { return New(SortiePrefix) }
func WorkOrder() string   { return New(WorkOrderPrefix) }
func Checkpoint() string  { return New(CheckpointPrefix) }
func Event() string       { return New(EventPrefix) }
func Reservation() string { return New(ReservationPrefix) }
func Lock() string        { return New(LockPrefix) }
func Pattern() string     { return New(PatternPrefix) }
func Pilot() string       { return New(PilotPrefix) }

// Valid reports whether id matches the bit-exact ID format from
// spec §6, or the tolerated legacy event-id form.
func Valid(id string) bool {
	if idPattern.MatchString(id) {
		return true
	}
	return legacyEventPattern.MatchString(id)
}

// HasPrefix reports whether id is a well-formed id with the given prefix.
func HasPrefix(id, prefix string) bool {
	if !idPattern.MatchString(id) {
		return false
	}
	return id[:len(prefix)+1] == prefix+"-"
}
