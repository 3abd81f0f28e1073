package learning

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// canonicalize lowercases and collapses a work-type token to its
// trivial stem: trailing punctuation and surrounding whitespace
// stripped, per spec §4.9's "lowercasing, stemming trivially on
// whitespace/punctuation" rule.
func canonicalize(workType string) string {
	s := strings.ToLower(strings.TrimSpace(workType))
	return strings.TrimFunc(s, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

// canonicalSequence maps a raw ordered work-type list to its
// canonical form, dropping tokens that canonicalize to empty.
func canonicalSequence(workTypes []string) []string {
	out := make([]string, 0, len(workTypes))
	for _, wt := range workTypes {
		c := canonicalize(wt)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// computePatternHash reuses the teacher's computeIdempotencyKey idiom
// (a "sha256:"-prefixed hex digest over a stable ordered key, see
// internal/checkpoint/idempotency.go) applied to
// pattern_type ∥ mission_type ∥ canonical_sequence instead of a
// mission snapshot, exactly as spec §4.9 defines pattern_hash.
func computePatternHash(patternType, missionType string, canonical []string) string {
	h := sha256.New()
	h.Write([]byte(patternType))
	h.Write([]byte{0})
	h.Write([]byte(missionType))
	h.Write([]byte{0})
	for _, tok := range canonical {
		h.Write([]byte(tok))
		h.Write([]byte{0})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}
