package dlmath

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// RNG is a seeded random source shared by initialisers and dropout masks.
type RNG struct {
	src  *rand.Rand
	seed uint64
}

// NewRNG creates a generator seeded with seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{src: rand.New(rand.NewSource(seed)), seed: seed}
}

// Seed returns the seed the generator was created with.
func (r *RNG) Seed() uint64 {
	return r.seed
}

// Float64 returns a uniform sample in [0, 1).
func (r *RNG) Float64() float64 {
	return r.src.Float64()
}

// Uint64 returns a raw 64-bit sample, used to derive child generators.
func (r *RNG) Uint64() uint64 {
	return r.src.Uint64()
}

// Normal returns a sampler for N(mu, sigma).
func (r *RNG) Normal(mu, sigma float64) distuv.Normal {
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: r.src}
}

// Uniform returns a sampler for U(min, max).
func (r *RNG) Uniform(min, max float64) distuv.Uniform {
	return distuv.Uniform{Min: min, Max: max, Src: r.src}
}

// Shuffle permutes n elements through swap.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	r.src.Shuffle(n, swap)
}
