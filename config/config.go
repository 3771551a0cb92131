// Package config defines the coordinator's configuration: an explicit,
// validated structure with required and optional fields declared once and
// checked at construction, before any training step runs.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Dataset describes the synthetic demo dataset built by the CLI. Real
// deployments construct their own loaders and ignore this section.
type Dataset struct {
	Source       string `mapstructure:"source"`
	TrainBatches int    `mapstructure:"train_batches"`
	ValidBatches int    `mapstructure:"valid_batches"`
	Features     int    `mapstructure:"features"`
}

// Config is the full coordinator configuration.
type Config struct {
	RunName   string `mapstructure:"run_name"`
	OutputDir string `mapstructure:"output_dir"`

	// Checkpoint is the path of a checkpoint to resume from; empty for a
	// fresh run.
	Checkpoint string `mapstructure:"checkpoint"`

	// Strategy selects the parallelization mode by provider name.
	Strategy   string `mapstructure:"strategy"`
	WorldSize  int    `mapstructure:"world_size"`
	ReduceAlgo string `mapstructure:"reduce_algo"`

	Epochs         int     `mapstructure:"epochs"`
	BatchSize      int     `mapstructure:"batch_size"`
	GradAccumSteps int     `mapstructure:"grad_accum_steps"`
	GradClip       float64 `mapstructure:"grad_clip"`
	LR             float64 `mapstructure:"lr"`
	LRDecay        float64 `mapstructure:"lr_decay"`

	LogInterval int `mapstructure:"log_interval"`

	ValidateEveryNSteps int  `mapstructure:"validate_every_n_steps"`
	ValidateOnEpochEnd  bool `mapstructure:"validate_on_epoch_end"`
	ValidateOnEnd       bool `mapstructure:"validate_on_end"`

	Seed int64 `mapstructure:"seed"`

	Dataset Dataset `mapstructure:"dataset"`
}

// Default returns a configuration with every optional field at its
// documented default.
func Default() *Config {
	return &Config{
		RunName:        "traincoord",
		Strategy:       "single",
		WorldSize:      1,
		ReduceAlgo:     "tree",
		Epochs:         1,
		BatchSize:      32,
		GradAccumSteps: 1,
		GradClip:       1.0,
		LR:             1e-3,
		LRDecay:        1.0,
		LogInterval:    10,
		ValidateOnEnd:  true,
		Seed:           1,
		Dataset: Dataset{
			Source:       "synthetic",
			TrainBatches: 64,
			ValidBatches: 8,
			Features:     4,
		},
	}
}

// Load reads a YAML config file, applies TRAINCOORD_* environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRAINCOORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("run_name", defaults.RunName)
	v.SetDefault("strategy", defaults.Strategy)
	v.SetDefault("world_size", defaults.WorldSize)
	v.SetDefault("reduce_algo", defaults.ReduceAlgo)
	v.SetDefault("epochs", defaults.Epochs)
	v.SetDefault("batch_size", defaults.BatchSize)
	v.SetDefault("grad_accum_steps", defaults.GradAccumSteps)
	v.SetDefault("grad_clip", defaults.GradClip)
	v.SetDefault("lr", defaults.LR)
	v.SetDefault("lr_decay", defaults.LRDecay)
	v.SetDefault("log_interval", defaults.LogInterval)
	v.SetDefault("validate_on_end", defaults.ValidateOnEnd)
	v.SetDefault("seed", defaults.Seed)
	v.SetDefault("dataset.source", defaults.Dataset.Source)
	v.SetDefault("dataset.train_batches", defaults.Dataset.TrainBatches)
	v.SetDefault("dataset.valid_batches", defaults.Dataset.ValidBatches)
	v.SetDefault("dataset.features", defaults.Dataset.Features)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %q", path)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %q", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field once, up front. Configuration errors are
// hard failures: nothing here is retried or deferred.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return errors.Errorf("config key batch_size: must be a positive integer, got %d", c.BatchSize)
	}
	if c.Epochs <= 0 {
		return errors.Errorf("config key epochs: must be a positive integer, got %d", c.Epochs)
	}
	if c.WorldSize <= 0 {
		return errors.Errorf("config key world_size: must be a positive integer, got %d", c.WorldSize)
	}
	if c.GradAccumSteps < 0 {
		return errors.Errorf("config key grad_accum_steps: must be non-negative, got %d", c.GradAccumSteps)
	}
	if c.ValidateEveryNSteps < 0 {
		return errors.Errorf("config key validate_every_n_steps: must be non-negative, got %d", c.ValidateEveryNSteps)
	}
	if c.LogInterval < 0 {
		return errors.Errorf("config key log_interval: must be non-negative, got %d", c.LogInterval)
	}
	if c.Strategy == "" {
		return errors.New("config key strategy: must not be empty")
	}
	switch c.ReduceAlgo {
	case "naive", "tree", "stream":
	default:
		return errors.Errorf("config key reduce_algo: unknown algorithm %q", c.ReduceAlgo)
	}
	if c.Dataset.Source != "synthetic" {
		return errors.Errorf("config key dataset.source: unknown source %q", c.Dataset.Source)
	}
	return nil
}
