package collective

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/distml/traincoord/simnet"
)

// RunReducerTests runs a battery of tests on a Reducer over simulated
// networks of various shapes.
func RunReducerTests(t *testing.T, reducer Reducer) {
	for _, numRanks := range []int{1, 2, 5, 15, 16, 17} {
		for _, size := range []int{0, 1337} {
			for _, randomized := range []bool{false, true} {
				testName := fmt.Sprintf("Ranks=%d,Size=%d,Random=%v", numRanks, size, randomized)
				t.Run(testName, func(t *testing.T) {
					loop := simnet.NewLoop()
					vectors := make([][]float64, numRanks)
					hosts := make([]*simnet.Host, numRanks)
					sum := make([]float64, size)
					for i := range hosts {
						vectors[i] = make([]float64, size)
						for j := range vectors[i] {
							vectors[i][j] = rand.NormFloat64()
							sum[j] += vectors[i][j]
						}
						hosts[i] = simnet.NewHost()
					}

					var network simnet.Network
					if randomized {
						network = simnet.JitterNetwork{}
					} else {
						fabric := simnet.NewFairShareFabric(numRanks, 1.0)
						network = simnet.NewFabricNetwork(fabric, hosts, 0.1)
					}

					results := make([][]float64, numRanks)
					SpawnSim(loop, network, hosts, func(w World) {
						results[w.Rank()] = reducer.Allreduce(w, vectors[w.Rank()], Sum)
					})

					if err := loop.Run(); err != nil {
						t.Fatal(err)
					}

					verifyReductionResults(t, results, sum)
				})
			}
		}
	}
}

// RunReducerGroupTests runs the same battery over the in-process channel
// transport, including back-to-back reductions on the same worlds to
// check that consecutive operations cannot interfere.
func RunReducerGroupTests(t *testing.T, reducer Reducer) {
	for _, numRanks := range []int{1, 2, 5, 16} {
		for _, size := range []int{0, 257} {
			testName := fmt.Sprintf("Ranks=%d,Size=%d", numRanks, size)
			t.Run(testName, func(t *testing.T) {
				vectors := make([][]float64, numRanks)
				sum := make([]float64, size)
				for i := range vectors {
					vectors[i] = make([]float64, size)
					for j := range vectors[i] {
						vectors[i][j] = rand.NormFloat64()
						sum[j] += vectors[i][j]
					}
				}

				const rounds = 3
				group := NewGroup(numRanks)
				results := make([][][]float64, rounds)
				for i := range results {
					results[i] = make([][]float64, numRanks)
				}

				done := make(chan struct{})
				for _, world := range group.Worlds() {
					w := world
					go func() {
						defer func() { done <- struct{}{} }()
						for round := 0; round < rounds; round++ {
							results[round][w.Rank()] = reducer.Allreduce(w, vectors[w.Rank()], Sum)
						}
					}()
				}
				for i := 0; i < numRanks; i++ {
					<-done
				}

				for round := 0; round < rounds; round++ {
					verifyReductionResults(t, results[round], sum)
				}
			})
		}
	}
}

func verifyReductionResults(t *testing.T, results [][]float64, expected []float64) {
	for i, res := range results[1:] {
		if len(res) != len(expected) {
			t.Errorf("result %d has length %d but expected %d", i, len(res), len(expected))
			continue
		}
		for j, actual := range res {
			if actual != results[0][j] {
				t.Errorf("result %d is not identical to result 0", i)
				break
			}
		}
	}

	for i, x := range expected {
		if math.Abs(x-results[0][i]) > 1e-5 {
			t.Errorf("sum is incorrect (expected %f but got %f at component %d)",
				x, results[0][i], i)
			break
		}
	}
}
