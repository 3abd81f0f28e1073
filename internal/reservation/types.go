// Package reservation implements the file reservation and keyed lock
// manager (spec §4.4): coarse path-pattern-level reservations and
// fine-grained keyed locks, both TTL-bound, FIFO-fair under
// contention, and swept for expiry every 30s.
package reservation

import "time"

// Reservation is an intent-level hold over a file path pattern.
type Reservation struct {
	ReservationID  string     `json:"reservation_id"`
	FilePath       string     `json:"file_path"`
	HolderCallsign string     `json:"holder_callsign"`
	Exclusive      bool       `json:"exclusive"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	ReleasedAt     *time.Time `json:"released_at,omitempty"`
	Purpose        string     `json:"purpose,omitempty"`
	Checksum       string     `json:"checksum,omitempty"`
}

func (r Reservation) active(now time.Time) bool {
	return r.ReleasedAt == nil && r.ExpiresAt.After(now)
}

// Lock is a fine-grained, keyed exclusive lock with TTL.
type Lock struct {
	LockID     string     `json:"lock_id"`
	LockKey    string     `json:"lock_key"`
	HolderID   string     `json:"holder_id"`
	AcquiredAt time.Time  `json:"acquired_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

func (l Lock) active(now time.Time) bool {
	return l.ReleasedAt == nil && l.ExpiresAt.After(now)
}

const (
	tableReservations = "reservations"
	tableLocks        = "locks"
)

// reasonExpired and reasonForced label release events per spec §4.4.
const (
	reasonExpired = "expired"
	reasonForced  = "forced"
	reasonNormal  = "released"
)
