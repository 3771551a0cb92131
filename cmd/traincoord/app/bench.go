package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/distml/traincoord/collective"
	"github.com/distml/traincoord/simnet"
)

// benchRun describes one simulated cluster configuration.
type benchRun struct {
	Workers int
	Latency float64
	Rate    float64
}

// run drops each simulated worker into its own goroutine on a
// bandwidth-sharing fabric and waits for the group to finish.
func (b *benchRun) run(loop *simnet.Loop, f func(w collective.World)) {
	hosts := make([]*simnet.Host, b.Workers)
	for i := range hosts {
		hosts[i] = simnet.NewHost()
	}
	fabric := simnet.NewFairShareFabric(b.Workers, b.Rate)
	network := simnet.NewFabricNetwork(fabric, hosts, b.Latency)
	collective.SpawnSim(loop, network, hosts, f)
	loop.MustRun()
}

func newBenchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Benchmark gradient-reduction algorithms on simulated clusters",
		Long: "Runs each reduction algorithm over simulated clusters of varying " +
			"size, latency, and link rate, and prints the virtual completion " +
			"times as a markdown table.",
		RunE: func(cmd *cobra.Command, args []string) error {
			runBench(cmd)
			return nil
		},
	}
}

func runBench(cmd *cobra.Command) {
	reducers := []collective.Reducer{
		collective.NaiveReducer{},
		collective.TreeReducer{},
		collective.StreamReducer{Granularity: 1 << 10},
	}
	reducerNames := []string{"Naive", "Tree", "Stream"}
	runs := []benchRun{
		{Workers: 2, Latency: 0.1, Rate: 1e6},
		{Workers: 16, Latency: 1e-3, Rate: 1e6},
		{Workers: 32, Latency: 0.1, Rate: 1e6},
		{Workers: 32, Latency: 0.1, Rate: 1e9},
		{Workers: 32, Latency: 1e-4, Rate: 1e9},
	}
	gradSizes := []int{10, 10000, 10000000}

	out := cmd.OutOrStdout()

	// Markdown table header.
	fmt.Fprint(out, "| Workers | Latency | Link rate | Gradients ")
	for _, name := range reducerNames {
		fmt.Fprintf(out, "| %s ", name)
	}
	fmt.Fprintln(out, "|")
	for i := 0; i < 4+len(reducers); i++ {
		fmt.Fprint(out, "|:--")
	}
	fmt.Fprintln(out, "|")

	for _, b := range runs {
		for _, size := range gradSizes {
			fmt.Fprintf(
				out,
				"| %d | %s | %s | %d ",
				b.Workers,
				strconv.FormatFloat(b.Latency, 'f', -1, 64),
				strconv.FormatFloat(b.Rate, 'E', -1, 64),
				size,
			)
			for _, reducer := range reducers {
				loop := simnet.NewLoop()
				b.run(loop, func(w collective.World) {
					grads := make([]float64, size)
					reducer.Allreduce(w, grads, collective.Sum)
				})
				fmt.Fprintf(out, "| %f ", loop.Time())
			}
			fmt.Fprintln(out, "|")
		}
	}
}
