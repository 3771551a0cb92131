package strategy

import (
	"github.com/distml/traincoord/data"
	"github.com/distml/traincoord/train"
)

// Single is the degenerate one-worker backend: no collectives, no
// gradient synchronization, identity wrapping. It lets the loop run the
// exact same control flow on a laptop as on a group.
type Single struct{}

// NewSingle creates the single-process backend.
func NewSingle() *Single {
	return &Single{}
}

func (s *Single) Rank() int {
	return 0
}

func (s *Single) WorldSize() int {
	return 1
}

func (s *Single) Setup(m train.Module) (train.Module, error) {
	return m, nil
}

func (s *Single) SetupLoaders(loaders map[string]data.Loader) map[string]data.Loader {
	return loaders
}

func (s *Single) Backward(m train.Module, scale float64) error {
	backward(m, scale)
	return nil
}

func (s *Single) ClipGradients(m train.Module, _ train.Optimizer, maxNorm float64) error {
	clipGradients(m, maxNorm)
	return nil
}

func (s *Single) AllGather(value float64) []float64 {
	return []float64{value}
}

func (s *Single) Barrier() {}

func (s *Single) NoSync(_ train.Module, _ bool, fn func() error) error {
	return fn()
}
