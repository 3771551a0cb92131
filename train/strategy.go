package train

import "github.com/distml/traincoord/data"

// A Strategy is the distributed-parallelization backend: it owns gradient
// synchronization, collective communication, and whatever wrapping the
// model and loaders need for its parallel mode. The loop depends only on
// this surface, never on a concrete backend.
//
// AllGather and Barrier are collective: every rank must reach the same
// call the same number of times or the group hangs. The loop keeps all
// collective calls on rank-unconditional paths.
type Strategy interface {
	// Rank is this worker's index in the group; rank 0 does logging and
	// checkpoint I/O.
	Rank() int

	// WorldSize is the number of cooperating workers.
	WorldSize() int

	// Setup wraps the model for this parallel mode.
	Setup(m Module) (Module, error)

	// SetupLoaders wraps the per-split loaders for this parallel mode.
	SetupLoaders(loaders map[string]data.Loader) map[string]data.Loader

	// Backward applies the model's pending gradient contribution with
	// the given loss scale and, outside a no-sync scope, synchronizes
	// gradients across ranks.
	Backward(m Module, scale float64) error

	// ClipGradients rescales the model's accumulated gradients to the
	// given max L2 norm. No-op when maxNorm <= 0.
	ClipGradients(m Module, opt Optimizer, maxNorm float64) error

	// AllGather collects a scalar from every rank, ordered by rank.
	AllGather(value float64) []float64

	// Barrier blocks until every rank arrives.
	Barrier()

	// NoSync runs fn with gradient synchronization suppressed when
	// enabled is true. Suppression is a throughput optimization only;
	// results do not depend on it.
	NoSync(m Module, enabled bool, fn func() error) error
}

// MeanAcross gathers a scalar from every rank and returns the arithmetic
// mean. This is the loop's single reduction facade: callers must invoke it
// on every rank identically, which the loop guarantees by never gating the
// call on rank.
func MeanAcross(s Strategy, value float64) float64 {
	values := s.AllGather(value)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
