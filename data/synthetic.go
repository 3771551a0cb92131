package data

import "math/rand"

// A Regression is one synthetic least-squares sample.
type Regression struct {
	Inputs []float64
	Target float64
}

// SyntheticConfig shapes a synthetic regression dataset.
type SyntheticConfig struct {
	Batches   int
	BatchSize int
	Features  int
	Seed      int64
}

// NewSynthetic builds a deterministic linear-regression dataset: targets
// are a fixed random weight vector applied to random inputs plus noise.
// The same seed always yields the same batches, which is what makes
// resume-determinism testable end to end.
func NewSynthetic(cfg SyntheticConfig) *SliceLoader {
	rng := rand.New(rand.NewSource(cfg.Seed))

	weights := make([]float64, cfg.Features)
	for i := range weights {
		weights[i] = rng.NormFloat64()
	}

	batches := make([]Batch, cfg.Batches)
	for i := range batches {
		samples := make([]Regression, cfg.BatchSize)
		for j := range samples {
			inputs := make([]float64, cfg.Features)
			var target float64
			for k := range inputs {
				inputs[k] = rng.NormFloat64()
				target += weights[k] * inputs[k]
			}
			target += rng.NormFloat64() * 0.01
			samples[j] = Regression{Inputs: inputs, Target: target}
		}
		batches[i] = Batch{
			Index: i,
			Units: cfg.BatchSize,
			Data:  samples,
		}
	}
	return NewSliceLoader(batches)
}
