// Package app wires the traincoord command-line interface.
package app

import "github.com/spf13/cobra"

// NewRootCmd builds the traincoord command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "traincoord",
		Short:        "Distributed training-loop coordinator",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newBenchCmd())
	return root
}
