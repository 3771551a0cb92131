package collective

import (
	"math"
	"sync"
	"testing"

	"github.com/distml/traincoord/simnet"
)

// TestMeanGroup checks the mean of per-rank losses over the channel
// transport: four workers holding 1..4 must all see 2.5.
func TestMeanGroup(t *testing.T) {
	values := []float64{1.0, 2.0, 3.0, 4.0}
	group := NewGroup(len(values))
	results := make([]float64, len(values))

	var wg sync.WaitGroup
	for _, world := range group.Worlds() {
		w := world
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[w.Rank()] = Mean(w, NaiveReducer{}, values[w.Rank()])
		}()
	}
	wg.Wait()

	for rank, res := range results {
		if math.Abs(res-2.5) > 1e-9 {
			t.Errorf("rank %d: expected mean 2.5 but got %f", rank, res)
		}
	}
}

// TestMeanSim runs the same four-worker mean over a simulated network.
func TestMeanSim(t *testing.T) {
	values := []float64{1.0, 2.0, 3.0, 4.0}
	loop := simnet.NewLoop()
	hosts := make([]*simnet.Host, len(values))
	for i := range hosts {
		hosts[i] = simnet.NewHost()
	}
	results := make([]float64, len(values))

	SpawnSim(loop, simnet.JitterNetwork{}, hosts, func(w World) {
		results[w.Rank()] = Mean(w, TreeReducer{}, values[w.Rank()])
	})
	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}

	for rank, res := range results {
		if math.Abs(res-2.5) > 1e-9 {
			t.Errorf("rank %d: expected mean 2.5 but got %f", rank, res)
		}
	}
}

func TestMeanSingleRank(t *testing.T) {
	group := NewGroup(1)
	res := Mean(group.Worlds()[0], NaiveReducer{}, 42.0)
	if res != 42.0 {
		t.Errorf("expected 42.0 but got %f", res)
	}
}

func TestMeanVector(t *testing.T) {
	group := NewGroup(3)
	vecs := [][]float64{
		{3.0, 0.0},
		{3.0, 3.0},
		{3.0, 6.0},
	}
	results := make([][]float64, 3)

	var wg sync.WaitGroup
	for _, world := range group.Worlds() {
		w := world
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[w.Rank()] = MeanVector(w, TreeReducer{}, vecs[w.Rank()])
		}()
	}
	wg.Wait()

	for rank, res := range results {
		if math.Abs(res[0]-3.0) > 1e-9 || math.Abs(res[1]-3.0) > 1e-9 {
			t.Errorf("rank %d: expected [3 3] but got %v", rank, res)
		}
	}
}

func TestAllGather(t *testing.T) {
	group := NewGroup(4)
	results := make([][][]float64, 4)

	var wg sync.WaitGroup
	for _, world := range group.Worlds() {
		w := world
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[w.Rank()] = AllGather(w, []float64{float64(w.Rank())})
		}()
	}
	wg.Wait()

	for rank, gathered := range results {
		if len(gathered) != 4 {
			t.Fatalf("rank %d: expected 4 vectors but got %d", rank, len(gathered))
		}
		for src, vec := range gathered {
			if len(vec) != 1 || vec[0] != float64(src) {
				t.Errorf("rank %d: slot %d holds %v", rank, src, vec)
			}
		}
	}
}

// TestBarrier checks that no rank leaves a barrier before every rank has
// entered it.
func TestBarrier(t *testing.T) {
	const numRanks = 8
	group := NewGroup(numRanks)

	var mu sync.Mutex
	entered := 0
	minSeen := numRanks

	var wg sync.WaitGroup
	for _, world := range group.Worlds() {
		w := world
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu.Lock()
			entered++
			mu.Unlock()

			Barrier(w)

			mu.Lock()
			if entered < minSeen {
				minSeen = entered
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if minSeen != numRanks {
		t.Errorf("a rank left the barrier after only %d ranks entered", minSeen)
	}
}
