package train

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// A RuntimeContext carries the per-rank process identity that would
// otherwise live in ambient environment state: rank, group size, run ID,
// logger, and clock. It is constructed once at startup and injected into
// the loop.
type RuntimeContext struct {
	Rank      int
	WorldSize int

	// RunID identifies the run; all ranks of one run share it.
	RunID string

	// Logger receives this rank's output. Ranks other than 0 are given a
	// no-op logger so the group produces a single log stream.
	Logger *zap.Logger

	// Clock supplies wall time; injectable for tests.
	Clock func() time.Time
}

// NewRuntimeContext builds a context for one rank. Ranks above 0 get a
// no-op logger.
func NewRuntimeContext(rank, worldSize int, runID string, logger *zap.Logger) RuntimeContext {
	if rank != 0 || logger == nil {
		logger = zap.NewNop()
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return RuntimeContext{
		Rank:      rank,
		WorldSize: worldSize,
		RunID:     runID,
		Logger:    logger,
		Clock:     time.Now,
	}
}

// IsMain reports whether this rank is designated for logging and I/O.
func (rc RuntimeContext) IsMain() bool {
	return rc.Rank == 0
}
