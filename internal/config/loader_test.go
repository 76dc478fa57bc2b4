package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, NewDefault().AutoLearn.ObservationThreshold, cfg.AutoLearn.ObservationThreshold)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoad_YAMLFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
confidence:
  confirm_delta: 0.08
auto_learn:
  observation_threshold: 25
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.08, cfg.Confidence.ConfirmDelta, 0.001)
	assert.Equal(t, 25, cfg.AutoLearn.ObservationThreshold)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.InDelta(t, 0.95, cfg.Confidence.Max, 0.001)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))
	t.Setenv("INSTINCTD_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_EnvDoubleUnderscoreSection(t *testing.T) {
	t.Setenv("INSTINCTD_AUTO__LEARN_COOLDOWN", "10m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.AutoLearn.Cooldown)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("confidence:\n  confirm_delta: 7\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoad_MalformedYAMLRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{{{"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "logging.level", envTransform("INSTINCTD_LOGGING_LEVEL"))
	assert.Equal(t, "confidence.confirm_delta", envTransform("INSTINCTD_CONFIDENCE_CONFIRM_DELTA"))
	assert.Equal(t, "auto_learn.cooldown", envTransform("INSTINCTD_AUTO__LEARN_COOLDOWN"))
	assert.Equal(t, "base_dir", envTransform("INSTINCTD_BASE__DIR"))
}

func TestEnsureBaseDir(t *testing.T) {
	cfg := NewDefault()
	cfg.BaseDir = filepath.Join(t.TempDir(), "nested", "state")

	require.NoError(t, EnsureBaseDir(cfg))
	info, err := os.Stat(cfg.BaseDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
