// Package train implements the training-loop coordinator: the epoch/batch
// state machine with gradient-accumulation-aware synchronization, periodic
// validation, checkpoint persistence, and batch-exact resumption. Model
// internals, optimizer math, and the collective transport are collaborators
// injected behind the interfaces in this file.
package train

import "github.com/distml/traincoord/data"

// StepOutput is the result of one forward pass.
type StepOutput struct {
	Loss    float64
	Outputs interface{}
}

// A Module is the black-box model being trained.
type Module interface {
	// TrainingStep runs the forward pass for one training batch and
	// leaves a pending gradient contribution to be applied by Backward.
	TrainingStep(batch data.Batch, step int) (StepOutput, error)

	// ValidationStep runs the forward pass for one held-out batch.
	ValidationStep(batch data.Batch, step int) (StepOutput, error)
}

// A BackpropModule can apply the gradient contribution left by the last
// TrainingStep, scaled by the accumulation loss scale.
type BackpropModule interface {
	Backward(scale float64)
}

// A GradientCarrier exposes its accumulated gradients as a flat vector so
// a strategy can average them across ranks or clip them. Modules without
// this capability still train; they just cannot be synchronized or
// clipped.
type GradientCarrier interface {
	Gradients() []float64
	SetGradients([]float64)
}

// A ParamGroup mirrors one optimizer parameter group; the loop only reads
// the learning rate for progress reporting.
type ParamGroup struct {
	LR float64
}

// An Optimizer advances model parameters from accumulated gradients.
type Optimizer interface {
	Step()
	ZeroGrad()
	ParamGroups() []ParamGroup
}

// A Scheduler advances the learning-rate schedule, once per boundary step.
type Scheduler interface {
	Step()
}

// A Stateful collaborator can serialize itself into a checkpoint and
// restore from one. Collaborators without it are silently skipped during
// checkpointing.
type Stateful interface {
	StateDict() ([]byte, error)
	LoadStateDict(data []byte) error
}
