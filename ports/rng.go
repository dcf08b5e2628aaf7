package ports

import (
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic fits.
// Chains and subsamples draw from named streams so a fitting run is exactly
// reproducible from its manifest's base seed.
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a
	// named operation.
	SeededStream(name string, seed int64) *rand.Rand

	// StreamSeed derives the seed for a named stream without constructing
	// it, for recording in run manifests.
	StreamSeed(name string, seed int64) int64
}
