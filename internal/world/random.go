package world

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// DefaultSeed seeds worlds that were configured without one.
const DefaultSeed = "prototype"

// DeterministicSeedValue derives a stable seed for a labelled random stream.
func DeterministicSeedValue(rootSeed, label string) int64 {
	hasher := fnv.New64a()
	hasher.Write([]byte(rootSeed))
	hasher.Write([]byte{0})
	hasher.Write([]byte(label))
	sum := hasher.Sum64()
	if sum == 0 {
		sum = 1
	}
	return int64(sum)
}

// NewDeterministicRNG returns a random stream that replays identically for the
// same seed and label.
func NewDeterministicRNG(rootSeed, label string) *rand.Rand {
	if rootSeed == "" {
		rootSeed = DefaultSeed
	}
	return rand.New(rand.NewSource(DeterministicSeedValue(rootSeed, label)))
}

// RandomAngle returns an angle in [0, 2π).
func RandomAngle(rng interface{ Float64() float64 }) float64 {
	if rng == nil {
		return 0
	}
	return rng.Float64() * 2 * math.Pi
}

// RandomDistance returns a distance in [min, max). It falls back to the
// midpoint without a random source.
func RandomDistance(rng interface{ Float64() float64 }, min, max float64) float64 {
	if max <= min {
		return min
	}
	if rng == nil {
		return min + (max-min)/2
	}
	return min + rng.Float64()*(max-min)
}
