package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestNewManager_LoadsDefaultsWithNoConfigFile(t *testing.T) {
	resetViper(t)
	m, err := NewManager()
	require.NoError(t, err)

	cfg := m.GetConfig()
	assert.Equal(t, 256, cfg.Encoder.Dimension)
	assert.Equal(t, "local-shingle-hash-v1", cfg.Encoder.ModelID)
	assert.Equal(t, 0.85, cfg.Triage.Tier1Threshold)
	assert.Equal(t, 60, cfg.Retrieval.RRFK)
	assert.Equal(t, 0.5, cfg.Scoring.Weights.VectorSimilarity)
}

func TestNewManager_EnvironmentOverridesDefaults(t *testing.T) {
	resetViper(t)
	require.NoError(t, os.Setenv("DIAGNOSTIC_ENCODER_DIMENSION", "512"))
	t.Cleanup(func() { os.Unsetenv("DIAGNOSTIC_ENCODER_DIMENSION") })

	m, err := NewManager()
	require.NoError(t, err)
	assert.Equal(t, 512, m.GetConfig().Encoder.Dimension)
}

func TestManager_GetDatabaseConnectionString(t *testing.T) {
	resetViper(t)
	m, err := NewManager()
	require.NoError(t, err)

	dsn := m.GetDatabaseConnectionString()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=diagnostic_engine")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestManager_Reload(t *testing.T) {
	resetViper(t)
	m, err := NewManager()
	require.NoError(t, err)

	require.NoError(t, os.Setenv("DIAGNOSTIC_LOGGING_LEVEL", "debug"))
	t.Cleanup(func() { os.Unsetenv("DIAGNOSTIC_LOGGING_LEVEL") })

	require.NoError(t, m.Reload())
	assert.Equal(t, "debug", m.GetConfig().Logging.Level)
}
