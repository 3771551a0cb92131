package train

import (
	"math"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/distml/traincoord/config"
	"github.com/distml/traincoord/data"
)

// Phase is the loop's lifecycle state, exposed for observability.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInitializing
	PhaseTrainingEpoch
	PhaseValidating
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "initializing"
	case PhaseTrainingEpoch:
		return "training_epoch"
	case PhaseValidating:
		return "validating"
	case PhaseFinished:
		return "finished"
	default:
		return "idle"
	}
}

// A Loop runs the full training lifecycle for one rank: epochs of batches
// through the accumulation policy, scheduled validation with coupled
// checkpointing, and batch-exact resumption from a checkpoint.
//
// All ranks of a group execute the same loop over their own data
// partition. Every collective call inside the loop sits on a path taken
// identically by every rank, so the group can never hang on a partial
// collective.
type Loop struct {
	cfg   *config.Config
	rc    RuntimeContext
	strat Strategy

	state   State
	policy  AccumulationPolicy
	sched   ValidationScheduler
	monitor *SpeedMonitor
	loaders map[string]data.Loader

	phase Phase

	// trainStart anchors the elapsed time reported in progress lines.
	trainStart time.Time

	// lastLoss is the most recent training loss, reported at the log
	// interval after a cross-rank mean.
	lastLoss float64
}

// NewLoop assembles a loop from its collaborators. The loaders map must
// contain a "train" split; a "valid" split is optional and its absence
// skips validation while keeping checkpoints.
func NewLoop(cfg *config.Config, rc RuntimeContext, strat Strategy, m Module,
	opt Optimizer, sched Scheduler, loaders map[string]data.Loader) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, ok := loaders["train"]; !ok {
		return nil, errors.New("loaders: missing required split \"train\"")
	}
	return &Loop{
		cfg:   cfg,
		rc:    rc,
		strat: strat,
		state: State{
			Model:     m,
			Optimizer: opt,
			Scheduler: sched,
		},
		policy: AccumulationPolicy{Steps: cfg.GradAccumSteps},
		sched: ValidationScheduler{
			Interval:      cfg.ValidateEveryNSteps,
			OnEpochEnd:    cfg.ValidateOnEpochEnd,
			OnTrainingEnd: cfg.ValidateOnEnd,
		},
		monitor: NewSpeedMonitor(32),
		loaders: loaders,
		phase:   PhaseIdle,
	}, nil
}

// Phase returns the loop's current lifecycle state.
func (l *Loop) Phase() Phase {
	return l.phase
}

// State returns the loop's counters, for inspection after Run.
func (l *Loop) State() (iterNum, stepCount int) {
	return l.state.IterNum, l.state.StepCount
}

// Run executes the whole lifecycle and blocks until training finishes or
// a step fails. A batch error is never retried: it aborts the run, and a
// restart resumes externally from the last checkpoint.
func (l *Loop) Run() error {
	l.phase = PhaseInitializing
	if err := l.initialize(); err != nil {
		return l.fail(errors.Wrap(err, "initialize"))
	}
	if err := l.train(); err != nil {
		return l.fail(errors.Wrap(err, "train"))
	}
	if err := l.maybeValidate(false, true); err != nil {
		return l.fail(errors.Wrap(err, "final validation"))
	}
	l.phase = PhaseFinished
	l.rc.Logger.Info("training finished",
		zap.Int("iter_num", l.state.IterNum),
		zap.Int("step_count", l.state.StepCount))
	return nil
}

// fail logs the aborting error with the loop's position before handing it
// to the caller. Training is never retried from inside the loop.
func (l *Loop) fail(err error) error {
	l.rc.Logger.Error("training run aborted",
		zap.Error(err),
		zap.Stringer("phase", l.phase),
		zap.Int("iter_num", l.state.IterNum),
		zap.Int("step_count", l.state.StepCount))
	return err
}

func (l *Loop) initialize() error {
	wrapped, err := l.strat.Setup(l.state.Model)
	if err != nil {
		return errors.Wrap(err, "strategy setup")
	}
	l.state.Model = wrapped
	l.loaders = l.strat.SetupLoaders(l.loaders)

	// Rank 0 creates the output directory; the barrier keeps other
	// ranks from racing ahead to a checkpoint save against a missing
	// directory.
	if l.rc.IsMain() && l.cfg.OutputDir != "" {
		if err := os.MkdirAll(l.cfg.OutputDir, 0o755); err != nil {
			return errors.Wrapf(err, "create output dir %q", l.cfg.OutputDir)
		}
	}
	l.strat.Barrier()

	if l.cfg.Checkpoint != "" {
		ckpt, err := LoadCheckpoint(l.cfg.Checkpoint)
		if err != nil {
			return err
		}
		if err := l.state.Restore(ckpt); err != nil {
			return errors.Wrapf(err, "restore checkpoint %q", l.cfg.Checkpoint)
		}
		l.rc.Logger.Info("resumed from checkpoint",
			zap.String("path", l.cfg.Checkpoint),
			zap.Int("iter_num", l.state.IterNum),
			zap.Int("step_count", l.state.StepCount))
	} else {
		l.rc.Logger.Info("starting fresh run",
			zap.String("run_id", l.rc.RunID),
			zap.Int("world_size", l.strat.WorldSize()))
	}
	return nil
}

func (l *Loop) train() error {
	loader := l.loaders["train"]
	l.trainStart = l.rc.Clock()
	// The resume budget is the number of batches already consumed; the
	// cursor burns it down across epochs before producing new batches.
	remaining := l.state.IterNum

	for epoch := 0; epoch < l.cfg.Epochs; epoch++ {
		l.phase = PhaseTrainingEpoch

		skip, newRemaining, skipEpoch := AdvanceCursor(loader.Len(), remaining)
		remaining = newRemaining
		if skipEpoch {
			continue
		}

		stream := loader.Stream()
		if skip > 0 {
			stream.Skip(skip)
			l.rc.Logger.Info("resuming mid-epoch",
				zap.Int("epoch", epoch),
				zap.Int("skipped_batches", skip))
		}

		for {
			batch, ok := stream.Next()
			if !ok {
				break
			}
			iterStart := l.rc.Clock()
			if err := l.trainStep(batch); err != nil {
				return errors.Wrapf(err, "iter %d", l.state.IterNum)
			}
			l.monitor.Add(l.rc.Clock(), batch.Units)
			l.logProgress(iterStart, loader.Len())
		}

		if err := l.maybeValidate(true, false); err != nil {
			return errors.Wrapf(err, "epoch %d", epoch)
		}
	}
	return nil
}

// trainStep consumes one batch: forward, scaled backward, and on a
// synchronization boundary the optimizer step, scheduler step, gradient
// zeroing, and the validation check.
func (l *Loop) trainStep(batch data.Batch) error {
	decision := l.policy.Evaluate(l.state.IterNum)

	err := l.strat.NoSync(l.state.Model, !decision.Boundary, func() error {
		out, err := l.state.Model.TrainingStep(batch, l.state.StepCount)
		if err != nil {
			return errors.Wrap(err, "training step")
		}
		l.lastLoss = out.Loss
		return l.strat.Backward(l.state.Model, decision.LossScale)
	})
	if err != nil {
		return err
	}

	l.state.IterNum++
	if !decision.Boundary {
		return nil
	}

	if err := l.strat.ClipGradients(l.state.Model, l.state.Optimizer, l.cfg.GradClip); err != nil {
		return errors.Wrap(err, "clip gradients")
	}
	l.state.Optimizer.Step()
	l.state.Scheduler.Step()
	l.state.Optimizer.ZeroGrad()
	l.state.StepCount++

	return l.maybeValidate(false, false)
}

// maybeValidate consults the scheduler and, when it fires, runs the
// validation pass and saves a checkpoint. Both barriers and the trigger
// itself are deterministic across ranks, so every rank takes this path
// identically.
func (l *Loop) maybeValidate(epochFinished, trainingFinished bool) error {
	run, reason := l.sched.ShouldRun(l.state.StepCount, epochFinished, trainingFinished)
	if !run {
		return nil
	}

	prev := l.phase
	l.phase = PhaseValidating
	defer func() { l.phase = prev }()

	l.strat.Barrier()
	if _, ok := l.loaders["valid"]; ok {
		if err := l.validate(reason); err != nil {
			return errors.Wrap(err, "validate")
		}
	}
	if err := l.saveCheckpoint(); err != nil {
		return errors.Wrap(err, "save checkpoint")
	}
	l.strat.Barrier()
	return nil
}

// validate runs the held-out split on every rank and reports the
// cross-rank mean loss.
func (l *Loop) validate(reason ValidationReason) error {
	start := l.rc.Clock()
	l.rc.Logger.Info("validation started",
		zap.Stringer("reason", reason),
		zap.Int("iter_num", l.state.IterNum))

	stream := l.loaders["valid"].Stream()
	var sum float64
	var count int
	for {
		batch, ok := stream.Next()
		if !ok {
			break
		}
		out, err := l.state.Model.ValidationStep(batch, count)
		if err != nil {
			return errors.Wrapf(err, "validation batch %d", count)
		}
		sum += out.Loss
		count++
	}
	var local float64
	if count > 0 {
		local = sum / float64(count)
	}

	// Every rank contributes to the mean, even one with an empty
	// partition; only the reporting is rank-gated.
	loss := MeanAcross(l.strat, local)
	l.rc.Logger.Info("validation finished",
		zap.Float64("val_loss", loss),
		zap.Float64("val_ppl", math.Exp(loss)),
		zap.Duration("elapsed", l.rc.Clock().Sub(start)),
		zap.Int("iter_num", l.state.IterNum))
	return nil
}

// saveCheckpoint writes a snapshot from rank 0. With no output directory
// configured the save is skipped with a warning rather than failing the
// run.
func (l *Loop) saveCheckpoint() error {
	if l.cfg.OutputDir == "" {
		l.rc.Logger.Warn("no output dir configured, skipping checkpoint",
			zap.Int("iter_num", l.state.IterNum))
		return nil
	}
	if !l.rc.IsMain() {
		return nil
	}
	ckpt, err := l.state.Snapshot(l.rc.RunID, l.rc.Clock())
	if err != nil {
		return errors.Wrap(err, "snapshot state")
	}
	path, err := ckpt.Save(l.cfg.OutputDir)
	if err != nil {
		return err
	}
	l.rc.Logger.Info("checkpoint saved",
		zap.String("path", path),
		zap.Int("iter_num", l.state.IterNum),
		zap.Int("step_count", l.state.StepCount))
	return nil
}

// logProgress emits the periodic training line. The interval gate depends
// only on the batch counter, which advances identically on every rank, so
// the reduction below is reached by the whole group before the rank gate.
func (l *Loop) logProgress(iterStart time.Time, epochLen int) {
	if l.cfg.LogInterval <= 0 || l.state.IterNum%l.cfg.LogInterval != 0 {
		return
	}
	loss := MeanAcross(l.strat, l.lastLoss)
	if !l.rc.IsMain() {
		return
	}
	var lr float64
	if groups := l.state.Optimizer.ParamGroups(); len(groups) > 0 {
		lr = groups[0].LR
	}
	l.rc.Logger.Info("training progress",
		zap.Int("iter", l.state.IterNum),
		zap.Int("total_iters", l.cfg.Epochs*epochLen),
		zap.Float64("loss", loss),
		zap.Duration("iter_time", l.rc.Clock().Sub(iterStart)),
		zap.Duration("elapsed", l.rc.Clock().Sub(l.trainStart)),
		zap.Float64("units_per_sec", l.monitor.Rate()),
		zap.Float64("lr", lr))
}
