package strategy

import (
	"github.com/distml/traincoord/collective"
	"github.com/distml/traincoord/data"
	"github.com/distml/traincoord/train"
)

// Replicated is the data-parallel backend: every rank holds a full model
// replica and its own data partition, and gradients are averaged across
// the group at every synchronization boundary.
type Replicated struct {
	world   collective.World
	reducer collective.Reducer

	// noSync suppresses gradient averaging inside a NoSync scope. The
	// loop only ever toggles it from its own goroutine; each rank owns
	// its own Replicated.
	noSync bool
}

// NewReplicated creates a data-parallel backend over the given world,
// using the reducer for gradient averaging.
func NewReplicated(world collective.World, reducer collective.Reducer) *Replicated {
	return &Replicated{world: world, reducer: reducer}
}

func (r *Replicated) Rank() int {
	return r.world.Rank()
}

func (r *Replicated) WorldSize() int {
	return r.world.Size()
}

func (r *Replicated) Setup(m train.Module) (train.Module, error) {
	return m, nil
}

// SetupLoaders passes loaders through unchanged. Partitioning across ranks
// happens where the loaders are built, so the same loader map can be
// handed to any backend.
func (r *Replicated) SetupLoaders(loaders map[string]data.Loader) map[string]data.Loader {
	return loaders
}

// Backward applies the pending gradient contribution and, outside a
// no-sync scope, replaces each rank's gradients with the group mean.
// Modules that do not expose gradients still train; they just stay
// unsynchronized, which only makes sense for size-1 groups.
func (r *Replicated) Backward(m train.Module, scale float64) error {
	backward(m, scale)
	if r.noSync {
		return nil
	}
	carrier, ok := m.(train.GradientCarrier)
	if !ok {
		return nil
	}
	grads := carrier.Gradients()
	carrier.SetGradients(collective.MeanVector(r.world, r.reducer, grads))
	return nil
}

func (r *Replicated) ClipGradients(m train.Module, _ train.Optimizer, maxNorm float64) error {
	clipGradients(m, maxNorm)
	return nil
}

func (r *Replicated) AllGather(value float64) []float64 {
	gathered := collective.AllGather(r.world, []float64{value})
	out := make([]float64, len(gathered))
	for i, vec := range gathered {
		out[i] = vec[0]
	}
	return out
}

func (r *Replicated) Barrier() {
	collective.Barrier(r.world)
}

// NoSync runs fn with gradient averaging suppressed when enabled is true.
// Suppression only saves communication; the averaged result at the next
// boundary is identical either way because every rank accumulates the
// same number of contributions.
func (r *Replicated) NoSync(_ train.Module, enabled bool, fn func() error) error {
	if !enabled {
		return fn()
	}
	r.noSync = true
	defer func() { r.noSync = false }()
	return fn()
}
