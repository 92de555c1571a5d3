package noise

import "math/rand/v2"

// Source is the randomness the operators draw from. *rand.Rand satisfies it.
type Source interface {
	// Float64 returns a uniform sample in [0,1).
	Float64() float64
	// IntN returns a uniform sample in [0,n). It panics if n <= 0.
	IntN(n int) int
	Uint64() uint64
}

const pcgStream = 0x9e3779b97f4a7c15

// NewSource returns a deterministic generator for seed.
func NewSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, pcgStream))
}

// NewRandomSource returns a generator seeded from the runtime's entropy.
func NewRandomSource() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
