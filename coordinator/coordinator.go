// Package coordinator launches a training run: it turns a validated
// configuration into a group of rank workers, each running the training
// loop over its own collaborators, and waits for the group to finish.
package coordinator

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/distml/traincoord/collective"
	"github.com/distml/traincoord/config"
	"github.com/distml/traincoord/data"
	"github.com/distml/traincoord/strategy"
	"github.com/distml/traincoord/train"
)

// A Builder constructs one rank's collaborators. It is called once per
// rank with that rank's runtime context, and must return loaders already
// partitioned for the rank (data.Partition does the strided split).
type Builder func(rc train.RuntimeContext) (train.Module, train.Optimizer,
	train.Scheduler, map[string]data.Loader, error)

// A Coordinator owns one run: configuration, logging, and the worker
// group.
type Coordinator struct {
	cfg    *config.Config
	logger *zap.Logger
	build  Builder
}

// New creates a coordinator. The logger is the run's rank-0 log stream.
func New(cfg *config.Config, logger *zap.Logger, build Builder) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{cfg: cfg, logger: logger, build: build}
}

// Run executes the whole training run and blocks until every rank
// finishes. The first rank error cancels nothing mid-collective; it
// surfaces after the group unwinds, which is why rank failures abort
// their own loop promptly instead of retrying.
func (c *Coordinator) Run() error {
	if err := c.cfg.Validate(); err != nil {
		return c.fail(err)
	}
	runID := uuid.NewString()
	c.logger.Info("starting run",
		zap.String("run_id", runID),
		zap.String("run_name", c.cfg.RunName),
		zap.String("strategy", c.cfg.Strategy),
		zap.Int("world_size", c.cfg.WorldSize))

	if c.cfg.WorldSize <= 1 {
		if err := c.runRank(0, runID, nil); err != nil {
			return c.fail(err)
		}
		return nil
	}

	group := collective.NewGroup(c.cfg.WorldSize)
	worlds := group.Worlds()
	var g errgroup.Group
	for rank := 0; rank < c.cfg.WorldSize; rank++ {
		rank := rank
		g.Go(func() error {
			return c.runRank(rank, runID, worlds[rank])
		})
	}
	if err := g.Wait(); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Coordinator) runRank(rank int, runID string, world collective.World) error {
	rc := train.NewRuntimeContext(rank, c.cfg.WorldSize, runID, c.logger)

	strat, err := strategy.New(c.cfg.Strategy, world, c.reducer())
	if err != nil {
		return errors.Wrapf(err, "rank %d", rank)
	}
	m, opt, sched, loaders, err := c.build(rc)
	if err != nil {
		return errors.Wrapf(err, "rank %d: build collaborators", rank)
	}
	loop, err := train.NewLoop(c.cfg, rc, strat, m, opt, sched, loaders)
	if err != nil {
		return errors.Wrapf(err, "rank %d", rank)
	}
	if err := loop.Run(); err != nil {
		return errors.Wrapf(err, "rank %d", rank)
	}
	return nil
}

func (c *Coordinator) reducer() collective.Reducer {
	switch c.cfg.ReduceAlgo {
	case "naive":
		return collective.NaiveReducer{}
	case "stream":
		return collective.StreamReducer{Granularity: 1 << 10}
	default:
		return collective.TreeReducer{}
	}
}

// fail logs the run failure once, at the coordinator level, before
// returning it to the caller.
func (c *Coordinator) fail(err error) error {
	c.logger.Error("run failed", zap.Error(err))
	return err
}
