package train

import (
	"time"

	"github.com/pkg/errors"
)

// State is the mutable training record owned exclusively by the loop.
//
// IterNum counts batches consumed across the whole run; StepCount counts
// boundary optimizer steps only. Both are persisted explicitly in every
// checkpoint and restored verbatim: after a resume they must never be
// recomputed from each other.
type State struct {
	IterNum   int
	StepCount int

	Model     Module
	Optimizer Optimizer
	Scheduler Scheduler
}

// Snapshot captures the serializable fields of the state, pulling a state
// dict from every collaborator that is Stateful.
func (s *State) Snapshot(runID string, now time.Time) (*Checkpoint, error) {
	c := &Checkpoint{
		RunID:     runID,
		SavedAt:   now,
		IterNum:   s.IterNum,
		StepCount: s.StepCount,
	}
	var err error
	if c.Model, err = stateDict(s.Model); err != nil {
		return nil, errors.Wrap(err, "model")
	}
	if c.Optimizer, err = stateDict(s.Optimizer); err != nil {
		return nil, errors.Wrap(err, "optimizer")
	}
	if c.Scheduler, err = stateDict(s.Scheduler); err != nil {
		return nil, errors.Wrap(err, "scheduler")
	}
	return c, nil
}

// Restore loads the checkpoint's counters verbatim and hands each
// collaborator its state dict.
func (s *State) Restore(c *Checkpoint) error {
	s.IterNum = c.IterNum
	s.StepCount = c.StepCount
	if err := loadStateDict(s.Model, c.Model); err != nil {
		return errors.Wrap(err, "model")
	}
	if err := loadStateDict(s.Optimizer, c.Optimizer); err != nil {
		return errors.Wrap(err, "optimizer")
	}
	if err := loadStateDict(s.Scheduler, c.Scheduler); err != nil {
		return errors.Wrap(err, "scheduler")
	}
	return nil
}

func stateDict(collaborator interface{}) ([]byte, error) {
	if st, ok := collaborator.(Stateful); ok {
		return st.StateDict()
	}
	return nil, nil
}

func loadStateDict(collaborator interface{}, dict []byte) error {
	if len(dict) == 0 {
		return nil
	}
	if st, ok := collaborator.(Stateful); ok {
		return st.LoadStateDict(dict)
	}
	return nil
}
