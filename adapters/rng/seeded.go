package rng

import (
	"hash/fnv"
	"math/rand"

	"fundcast/ports"
)

// seededAdapter derives independent deterministic streams by folding a
// stream name into the base seed.
type seededAdapter struct{}

// NewSeededAdapter creates the default RNG adapter.
func NewSeededAdapter() ports.RNGPort {
	return &seededAdapter{}
}

// SeededStream creates a deterministic RNG for a named operation.
func (a *seededAdapter) SeededStream(name string, seed int64) *rand.Rand {
	return rand.New(rand.NewSource(a.StreamSeed(name, seed)))
}

// StreamSeed derives the stream's seed from its name and the base seed.
// FNV keeps distinct names on well-separated streams for any base seed.
func (a *seededAdapter) StreamSeed(name string, seed int64) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return seed ^ int64(h.Sum64())
}
