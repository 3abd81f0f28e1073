package checkpoint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/v1truv1us/fleettools-sub010/internal/ferr"
	"github.com/v1truv1us/fleettools-sub010/internal/orchestrator"
)

// computeIdempotencyKey adapts the teacher's computeIdempotencyKey
// (graph/checkpoint.go): a "sha256:"-prefixed hex digest of
// (mission ID, sorted sortie states, reservation/lock holder keys),
// so two snapshots taken at truly identical mission states hash
// identically, letting Create treat a repeat as a no-op instead of
// writing a duplicate row.
func computeIdempotencyKey(missionID string, sorties []orchestrator.Sortie, reservationKeys, lockKeys []string) (string, error) {
	h := sha256.New()
	h.Write([]byte(missionID))

	sorted := make([]orchestrator.Sortie, len(sorties))
	copy(sorted, sorties)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SortieID < sorted[j].SortieID })
	for _, s := range sorted {
		h.Write([]byte(s.SortieID))
		h.Write([]byte(s.Status))
	}

	keys := append(append([]string{}, reservationKeys...), lockKeys...)
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
	}

	sortedJSON, err := json.Marshal(sorted)
	if err != nil {
		return "", ferr.Wrap(ferr.Internal, "marshal sortie snapshot for idempotency key", err)
	}
	h.Write(sortedJSON)

	var stepBuf [8]byte
	binary.BigEndian.PutUint64(stepBuf[:], uint64(len(sorties)))
	h.Write(stepBuf[:])

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
