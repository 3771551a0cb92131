package app

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/distml/traincoord/config"
	"github.com/distml/traincoord/coordinator"
	"github.com/distml/traincoord/data"
	"github.com/distml/traincoord/train"
)

// demoBuilder constructs the synthetic linear-regression job: a linear
// model, SGD, exponential LR decay, and seeded loaders partitioned per
// rank. It exists so a run can be exercised end to end without an
// external model. The train and validation splits use distinct seeds so
// the held-out loss is honest.
func demoBuilder(cfg *config.Config) coordinator.Builder {
	return func(rc train.RuntimeContext) (train.Module, train.Optimizer,
		train.Scheduler, map[string]data.Loader, error) {
		if cfg.Dataset.Source != "synthetic" {
			return nil, nil, nil, nil,
				errors.Errorf("unknown dataset source %q", cfg.Dataset.Source)
		}
		trainLoader := data.NewSynthetic(data.SyntheticConfig{
			Batches:   cfg.Dataset.TrainBatches,
			BatchSize: cfg.BatchSize,
			Features:  cfg.Dataset.Features,
			Seed:      cfg.Seed,
		})
		validLoader := data.NewSynthetic(data.SyntheticConfig{
			Batches:   cfg.Dataset.ValidBatches,
			BatchSize: cfg.BatchSize,
			Features:  cfg.Dataset.Features,
			Seed:      cfg.Seed + 1,
		})
		loaders := map[string]data.Loader{
			"train": shard(trainLoader, rc),
			"valid": shard(validLoader, rc),
		}

		model := newLinearModel(cfg.Dataset.Features)
		opt := &sgdOptimizer{model: model, lr: cfg.LR}
		sched := &decayScheduler{opt: opt, factor: cfg.LRDecay}
		return model, opt, sched, loaders, nil
	}
}

func shard(loader *data.SliceLoader, rc train.RuntimeContext) data.Loader {
	if rc.WorldSize <= 1 {
		return loader
	}
	stream := loader.Stream()
	batches := make([]data.Batch, 0, loader.Len())
	for {
		b, ok := stream.Next()
		if !ok {
			break
		}
		batches = append(batches, b)
	}
	return data.NewSliceLoader(data.Partition(batches, rc.Rank, rc.WorldSize))
}

// linearModel predicts a scalar target as a weighted sum of inputs and
// trains by mean-squared error.
type linearModel struct {
	weights []float64
	bias    float64

	grads    []float64
	biasGrad float64

	// pending holds the raw gradient of the last forward pass, applied
	// by Backward with the accumulation scale.
	pendingGrads    []float64
	pendingBiasGrad float64
}

func newLinearModel(features int) *linearModel {
	return &linearModel{
		weights:      make([]float64, features),
		grads:        make([]float64, features),
		pendingGrads: make([]float64, features),
	}
}

func (m *linearModel) forward(batch data.Batch) (loss float64, samples []data.Regression) {
	samples = batch.Data.([]data.Regression)
	for _, s := range samples {
		pred := m.bias
		for i, x := range s.Inputs {
			pred += m.weights[i] * x
		}
		diff := pred - s.Target
		loss += diff * diff
	}
	return loss / float64(len(samples)), samples
}

func (m *linearModel) TrainingStep(batch data.Batch, step int) (train.StepOutput, error) {
	loss, samples := m.forward(batch)

	for i := range m.pendingGrads {
		m.pendingGrads[i] = 0
	}
	m.pendingBiasGrad = 0
	scale := 2 / float64(len(samples))
	for _, s := range samples {
		pred := m.bias
		for i, x := range s.Inputs {
			pred += m.weights[i] * x
		}
		diff := (pred - s.Target) * scale
		for i, x := range s.Inputs {
			m.pendingGrads[i] += diff * x
		}
		m.pendingBiasGrad += diff
	}
	return train.StepOutput{Loss: loss}, nil
}

func (m *linearModel) ValidationStep(batch data.Batch, step int) (train.StepOutput, error) {
	loss, _ := m.forward(batch)
	return train.StepOutput{Loss: loss}, nil
}

func (m *linearModel) Backward(scale float64) {
	for i, g := range m.pendingGrads {
		m.grads[i] += g * scale
	}
	m.biasGrad += m.pendingBiasGrad * scale
}

// Gradients flattens weight gradients plus the bias gradient, so
// replicated training can average the whole thing in one reduction.
func (m *linearModel) Gradients() []float64 {
	return append(append([]float64{}, m.grads...), m.biasGrad)
}

func (m *linearModel) SetGradients(grads []float64) {
	copy(m.grads, grads[:len(m.grads)])
	m.biasGrad = grads[len(m.grads)]
}

type linearModelState struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

func (m *linearModel) StateDict() ([]byte, error) {
	return json.Marshal(linearModelState{Weights: m.weights, Bias: m.bias})
}

func (m *linearModel) LoadStateDict(raw []byte) error {
	var state linearModelState
	if err := json.Unmarshal(raw, &state); err != nil {
		return err
	}
	if len(state.Weights) != len(m.weights) {
		return errors.Errorf("checkpoint has %d weights, model has %d",
			len(state.Weights), len(m.weights))
	}
	copy(m.weights, state.Weights)
	m.bias = state.Bias
	return nil
}

type sgdOptimizer struct {
	model *linearModel
	lr    float64
}

func (o *sgdOptimizer) Step() {
	for i, g := range o.model.grads {
		o.model.weights[i] -= o.lr * g
	}
	o.model.bias -= o.lr * o.model.biasGrad
}

func (o *sgdOptimizer) ZeroGrad() {
	for i := range o.model.grads {
		o.model.grads[i] = 0
	}
	o.model.biasGrad = 0
}

func (o *sgdOptimizer) ParamGroups() []train.ParamGroup {
	return []train.ParamGroup{{LR: o.lr}}
}

func (o *sgdOptimizer) StateDict() ([]byte, error) {
	return json.Marshal(map[string]float64{"lr": o.lr})
}

func (o *sgdOptimizer) LoadStateDict(raw []byte) error {
	var state map[string]float64
	if err := json.Unmarshal(raw, &state); err != nil {
		return err
	}
	o.lr = state["lr"]
	return nil
}

// decayScheduler multiplies the learning rate by a constant factor per
// optimizer step. A factor of 1 holds the rate steady.
type decayScheduler struct {
	opt    *sgdOptimizer
	factor float64
}

func (s *decayScheduler) Step() {
	s.opt.lr *= s.factor
}
