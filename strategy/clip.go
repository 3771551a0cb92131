// Package strategy implements the distributed-parallelization backends
// behind the train.Strategy interface: single-process training and
// replicated data-parallel training over a collective world. Backends are
// looked up by name so configuration can select one without the loop
// knowing any concrete type.
package strategy

import (
	"math"

	"github.com/distml/traincoord/train"
)

// clipGradients rescales a module's accumulated gradients in place to the
// given max L2 norm. Modules that do not expose their gradients are left
// untouched, as are gradients already within the norm.
func clipGradients(m train.Module, maxNorm float64) {
	if maxNorm <= 0 {
		return
	}
	carrier, ok := m.(train.GradientCarrier)
	if !ok {
		return
	}
	grads := carrier.Gradients()
	var sq float64
	for _, g := range grads {
		sq += g * g
	}
	norm := math.Sqrt(sq)
	if norm <= maxNorm {
		return
	}
	scale := maxNorm / norm
	for i := range grads {
		grads[i] *= scale
	}
	carrier.SetGradients(grads)
}

// backward applies the module's pending gradient contribution. Modules
// without backprop are tolerated so forward-only collaborators can run
// under the same loop.
func backward(m train.Module, scale float64) {
	if bp, ok := m.(train.BackpropModule); ok {
		bp.Backward(scale)
	}
}
