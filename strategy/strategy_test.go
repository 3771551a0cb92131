package strategy

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distml/traincoord/collective"
	"github.com/distml/traincoord/data"
	"github.com/distml/traincoord/train"
)

// gradModule is a minimal model exposing gradients for synchronization
// and clipping.
type gradModule struct {
	grads   []float64
	pending float64
}

func (g *gradModule) TrainingStep(batch data.Batch, step int) (train.StepOutput, error) {
	return train.StepOutput{Loss: g.pending}, nil
}

func (g *gradModule) ValidationStep(batch data.Batch, step int) (train.StepOutput, error) {
	return train.StepOutput{Loss: g.pending}, nil
}

func (g *gradModule) Backward(scale float64) {
	for i := range g.grads {
		g.grads[i] += g.pending * scale
	}
}

func (g *gradModule) Gradients() []float64 {
	return append([]float64{}, g.grads...)
}

func (g *gradModule) SetGradients(grads []float64) {
	copy(g.grads, grads)
}

func TestSingleBasics(t *testing.T) {
	s := NewSingle()
	assert.Equal(t, 0, s.Rank())
	assert.Equal(t, 1, s.WorldSize())
	assert.Equal(t, []float64{3.5}, s.AllGather(3.5))
	s.Barrier()

	m := &gradModule{grads: make([]float64, 2), pending: 4}
	require.NoError(t, s.Backward(m, 0.5))
	assert.Equal(t, []float64{2, 2}, m.Gradients())
}

func TestClipGradients(t *testing.T) {
	m := &gradModule{grads: []float64{3, 4}}
	clipGradients(m, 1)
	grads := m.Gradients()
	assert.InDelta(t, 0.6, grads[0], 1e-9)
	assert.InDelta(t, 0.8, grads[1], 1e-9)

	// Within the norm: untouched.
	m = &gradModule{grads: []float64{3, 4}}
	clipGradients(m, 10)
	assert.Equal(t, []float64{3, 4}, m.Gradients())

	// Disabled.
	m = &gradModule{grads: []float64{3, 4}}
	clipGradients(m, 0)
	assert.Equal(t, []float64{3, 4}, m.Gradients())

	norm := math.Sqrt(3*3 + 4*4)
	assert.InDelta(t, 5, norm, 1e-9)
}

func TestReplicatedBackwardAverages(t *testing.T) {
	group := collective.NewGroup(4)
	worlds := group.Worlds()

	var wg sync.WaitGroup
	results := make([][]float64, 4)
	for rank := 0; rank < 4; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			r := NewReplicated(worlds[rank], collective.TreeReducer{})
			m := &gradModule{grads: make([]float64, 2), pending: float64(rank + 1)}
			if err := r.Backward(m, 1); err != nil {
				t.Error(err)
				return
			}
			results[rank] = m.Gradients()
		}(rank)
	}
	wg.Wait()

	// Mean of 1,2,3,4 in every component on every rank.
	for rank := 0; rank < 4; rank++ {
		require.Len(t, results[rank], 2)
		assert.InDelta(t, 2.5, results[rank][0], 1e-9)
		assert.InDelta(t, 2.5, results[rank][1], 1e-9)
	}
}

func TestReplicatedNoSyncSkipsAveraging(t *testing.T) {
	group := collective.NewGroup(2)
	worlds := group.Worlds()

	var wg sync.WaitGroup
	results := make([][]float64, 2)
	for rank := 0; rank < 2; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			r := NewReplicated(worlds[rank], collective.TreeReducer{})
			m := &gradModule{grads: make([]float64, 1), pending: float64(rank + 1)}
			err := r.NoSync(m, true, func() error {
				return r.Backward(m, 1)
			})
			if err != nil {
				t.Error(err)
				return
			}
			results[rank] = m.Gradients()
		}(rank)
	}
	wg.Wait()

	// No averaging: each rank keeps its own contribution.
	assert.Equal(t, []float64{1}, results[0])
	assert.Equal(t, []float64{2}, results[1])
}

func TestReplicatedAllGatherAndBarrier(t *testing.T) {
	group := collective.NewGroup(3)
	worlds := group.Worlds()

	var wg sync.WaitGroup
	results := make([][]float64, 3)
	for rank := 0; rank < 3; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			r := NewReplicated(worlds[rank], collective.TreeReducer{})
			r.Barrier()
			results[rank] = r.AllGather(float64(rank * 10))
			r.Barrier()
		}(rank)
	}
	wg.Wait()

	for rank := 0; rank < 3; rank++ {
		assert.Equal(t, []float64{0, 10, 20}, results[rank])
	}
}

func TestProvider(t *testing.T) {
	s, err := New("single", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &Single{}, s)

	// Size-1 groups fold replicated into the single path.
	s, err = New("replicated", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &Single{}, s)

	group := collective.NewGroup(2)
	s, err = New("replicated", group.Worlds()[0], nil)
	require.NoError(t, err)
	assert.IsType(t, &Replicated{}, s)

	_, err = New("sharded", group.Worlds()[0], nil)
	assert.Error(t, err)

	_, err = New("warp-drive", group.Worlds()[0], nil)
	assert.Error(t, err)
}
