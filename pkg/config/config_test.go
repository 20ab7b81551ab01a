package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1.0, cfg.Analysis.Resolution)
	assert.Equal(t, int64(42), cfg.Analysis.Seed)
	assert.Equal(t, 12, cfg.Analysis.Runs)
	assert.Equal(t, time.Duration(0), cfg.Analysis.RunTimeout)
	assert.Equal(t, 32, cfg.Louvain.MaxLevels)
	assert.Equal(t, 1e-7, cfg.Louvain.Threshold)
	assert.Equal(t, 12, cfg.Output.TopK)
	assert.Equal(t, 20, cfg.Output.MinCommunityEdges)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "riskgraph.yaml")
	content := `
analysis:
  resolution: 1.5
  seed: 7
  runs: 4
  run_timeout: 2s
output:
  dir: /tmp/out
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1.5, cfg.Analysis.Resolution)
	assert.Equal(t, int64(7), cfg.Analysis.Seed)
	assert.Equal(t, 4, cfg.Analysis.Runs)
	assert.Equal(t, 2*time.Second, cfg.Analysis.RunTimeout)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
	assert.Equal(t, "json", cfg.Logging.Format)
	// untouched keys keep their defaults
	assert.Equal(t, 32, cfg.Louvain.MaxLevels)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("RISKGRAPH_ANALYSIS_RUNS", "3")
	t.Setenv("RISKGRAPH_ANALYSIS_RESOLUTION", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Analysis.Runs)
	assert.Equal(t, 0.5, cfg.Analysis.Resolution)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero runs", func(c *Config) { c.Analysis.Runs = 0 }, "Runs"},
		{"non-positive resolution", func(c *Config) { c.Analysis.Resolution = 0 }, "Resolution"},
		{"negative timeout", func(c *Config) { c.Analysis.RunTimeout = -time.Second }, "RunTimeout"},
		{"empty output dir", func(c *Config) { c.Output.Dir = "" }, "Dir"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }, "Level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("stage", "projection").Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"stage":"projection"`)
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RISKGRAPH_ANALYSIS_SEED=99\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RISKGRAPH_ANALYSIS_SEED") })

	require.NoError(t, LoadEnv(path))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(99), cfg.Analysis.Seed)

	assert.Error(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}
