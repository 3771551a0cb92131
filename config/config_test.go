package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"zero world size", func(c *Config) { c.WorldSize = 0 }},
		{"negative accumulation", func(c *Config) { c.GradAccumSteps = -1 }},
		{"negative validation interval", func(c *Config) { c.ValidateEveryNSteps = -1 }},
		{"negative log interval", func(c *Config) { c.LogInterval = -1 }},
		{"empty strategy", func(c *Config) { c.Strategy = "" }},
		{"unknown reducer", func(c *Config) { c.ReduceAlgo = "quantum" }},
		{"unknown dataset", func(c *Config) { c.Dataset.Source = "imagenet" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
run_name: smoke
strategy: replicated
world_size: 4
epochs: 3
grad_accum_steps: 2
validate_every_n_steps: 50
output_dir: /tmp/out
dataset:
  train_batches: 128
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "smoke", cfg.RunName)
	assert.Equal(t, "replicated", cfg.Strategy)
	assert.Equal(t, 4, cfg.WorldSize)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, 2, cfg.GradAccumSteps)
	assert.Equal(t, 50, cfg.ValidateEveryNSteps)
	assert.Equal(t, 128, cfg.Dataset.TrainBatches)

	// Defaults fill the rest.
	assert.Equal(t, "tree", cfg.ReduceAlgo)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.True(t, cfg.ValidateOnEnd)
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("epochs: 0\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
