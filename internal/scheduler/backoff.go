package scheduler

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"time"
)

// ComputeBackoff computes spec §4.6's retry delay: exponential
// base*2^attempt capped at maxDelay, plus jitter in [0, base). The
// jitter generator is seeded deterministically from seedID's SHA-256
// digest (grounded on the teacher's computeBackoff/initRNG pair in
// graph/policy.go), so repeated backoff computations for the same
// work order are reproducible in tests without drawing from a single
// process-wide random stream shared across unrelated work orders.
func ComputeBackoff(attempt int, base, maxDelay time.Duration, seedID string) time.Duration {
	delay := base * time.Duration(1<<uint(attempt))
	if delay > maxDelay {
		delay = maxDelay
	}
	if base <= 0 {
		return delay
	}
	rng := seededRNG(seedID)
	jitter := time.Duration(rng.Int63n(int64(base)))
	return delay + jitter
}

func seededRNG(seedID string) *rand.Rand {
	digest := sha256.Sum256([]byte(seedID))
	seed := int64(binary.BigEndian.Uint64(digest[:8]))
	return rand.New(rand.NewSource(seed))
}
