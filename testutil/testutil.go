package testutil

import (
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns, as a float32, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// FillUniform fills vec with uniform values in [0, 1).
func (r *RNG) FillUniform(vec []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range vec {
		vec[i] = r.rand.Float32()
	}
}

// FillGaussian fills vec with standard normal values.
func (r *RNG) FillGaussian(vec []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range vec {
		vec[i] = float32(r.rand.NormFloat64())
	}
}

// UniformVectors generates n uniform random vectors of the given dimension.
func (r *RNG) UniformVectors(n, dim int) [][]float32 {
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = make([]float32, dim)
		r.FillUniform(vecs[i])
	}
	return vecs
}

// GaussianVectors generates n standard normal random vectors of the given dimension.
func (r *RNG) GaussianVectors(n, dim int) [][]float32 {
	vecs := make([][]float32, n)
	for i := range vecs {
		vecs[i] = make([]float32, dim)
		r.FillGaussian(vecs[i])
	}
	return vecs
}
