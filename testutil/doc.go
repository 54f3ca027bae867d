// Package testutil provides testing utilities for the ddsp library.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating seeded random vectors so quantizer
// behavior (assignments, restarts) is reproducible across runs.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vec := make([]float32, 16)
//	rng.FillUniform(vec)      // uniform [0, 1)
//	rng.FillGaussian(vec)     // standard normal
//
//	batch := rng.GaussianVectors(128, 16)
package testutil
