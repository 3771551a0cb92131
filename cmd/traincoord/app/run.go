package app

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/distml/traincoord/config"
	"github.com/distml/traincoord/coordinator"
)

func newRunCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a training job from a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			return coordinator.New(cfg, logger, demoBuilder(cfg)).Run()
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "traincoord.yaml",
		"path to the run configuration file")
	return cmd
}
