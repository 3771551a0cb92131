package train

// A ValidationReason records which trigger fired.
type ValidationReason int

const (
	ReasonNone ValidationReason = iota
	ReasonInterval
	ReasonEpochEnd
	ReasonTrainingEnd
)

func (r ValidationReason) String() string {
	switch r {
	case ReasonInterval:
		return "interval"
	case ReasonEpochEnd:
		return "epoch_end"
	case ReasonTrainingEnd:
		return "training_end"
	default:
		return "none"
	}
}

// A ValidationScheduler decides when validation (and its coupled
// checkpoint save) runs. The interval counts boundary optimizer steps,
// not raw batches, so accumulation does not inflate the cadence.
type ValidationScheduler struct {
	// Interval runs validation every Interval boundary steps. 0 disables
	// the interval trigger.
	Interval int

	// OnEpochEnd runs validation when an epoch finishes.
	OnEpochEnd bool

	// OnTrainingEnd runs validation once after the last epoch.
	OnTrainingEnd bool
}

// ShouldRun evaluates the triggers in order: interval (only mid-epoch),
// then epoch end, then training end.
func (v ValidationScheduler) ShouldRun(stepCount int, epochFinished, trainingFinished bool) (bool, ValidationReason) {
	if !epochFinished && !trainingFinished && v.Interval > 0 && stepCount%v.Interval == 0 {
		return true, ReasonInterval
	}
	if v.OnEpochEnd && epochFinished {
		return true, ReasonEpochEnd
	}
	if v.OnTrainingEnd && trainingFinished {
		return true, ReasonTrainingEnd
	}
	return false, ReasonNone
}
