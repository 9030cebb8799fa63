package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 5, cfg.MaxConcurrent)
	assert.Equal(t, 300_000, cfg.DefaultTimeoutMS)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TASKRUNNER_MAXCONCURRENT", "9")
	t.Setenv("TASKRUNNER_DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.MaxConcurrent)
	assert.True(t, cfg.Debug)
}
