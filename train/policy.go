package train

// An AccumulationPolicy decides, per batch, whether gradients are applied
// (a boundary step) or merely accumulated, and how the loss is scaled.
type AccumulationPolicy struct {
	// Steps is the number of batches accumulated into one optimizer
	// step. 0 or 1 means no accumulation: every batch is a boundary.
	Steps int
}

// A Decision is the per-batch outcome of the policy. Never persisted.
type Decision struct {
	// Boundary reports whether accumulated gradients are applied after
	// this batch: optimizer and scheduler step, gradients zero, step
	// count advances by one.
	Boundary bool

	// LossScale divides the loss before backpropagation so accumulated
	// gradients match the scale of a single large-batch step.
	LossScale float64
}

// Evaluate computes the decision for the batch at iterNum.
func (p AccumulationPolicy) Evaluate(iterNum int) Decision {
	if p.Steps <= 1 {
		return Decision{Boundary: true, LossScale: 1}
	}
	if (iterNum+1)%p.Steps == 0 {
		return Decision{Boundary: true, LossScale: 1}
	}
	return Decision{Boundary: false, LossScale: 1 / float64(p.Steps)}
}
