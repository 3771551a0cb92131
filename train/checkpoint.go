package train

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// A Checkpoint is a persisted snapshot of the serializable training state.
// Collaborator states are opaque blobs; the coordinator only owns the
// counters and the envelope.
type Checkpoint struct {
	RunID     string    `json:"run_id"`
	SavedAt   time.Time `json:"saved_at"`
	IterNum   int       `json:"iter_num"`
	StepCount int       `json:"step_count"`

	Model     json.RawMessage `json:"model,omitempty"`
	Optimizer json.RawMessage `json:"optimizer,omitempty"`
	Scheduler json.RawMessage `json:"scheduler,omitempty"`
}

// CheckpointName returns the filename for a checkpoint keyed by the
// number of batches consumed when it was taken.
func CheckpointName(iterNum int) string {
	return fmt.Sprintf("iter-%06d-ckpt.json", iterNum)
}

// Save writes the checkpoint into dir and returns the full path.
func (c *Checkpoint) Save(dir string) (string, error) {
	encoded, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encode checkpoint")
	}
	path := filepath.Join(dir, CheckpointName(c.IterNum))
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", errors.Wrapf(err, "write checkpoint %q", path)
	}
	return path, nil
}

// LoadCheckpoint reads a checkpoint from path.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read checkpoint %q", path)
	}
	var c Checkpoint
	if err := json.Unmarshal(encoded, &c); err != nil {
		return nil, errors.Wrapf(err, "decode checkpoint %q", path)
	}
	return &c, nil
}
