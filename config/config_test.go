package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/dletelier/churnpipe/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load([]string{"--customer-data", "customers.csv"})
	require.NoError(t, err)

	assert.Equal(t, "customers.csv", cfg.CustomerData)
	assert.False(t, cfg.Batch)
	assert.Equal(t, 0.4, cfg.Threshold)
	assert.Empty(t, cfg.Output)
	assert.Equal(t, DefaultModelPath, cfg.ModelPath)
	assert.Equal(t, DefaultEncodersPath, cfg.EncodersPath)
	assert.False(t, cfg.Check)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Duration(0), cfg.ScoreTimeout)
}

func TestLoadAllFlags(t *testing.T) {
	cfg, err := Load([]string{
		"--customer-data", "batch.xlsx",
		"--batch",
		"--threshold", "0.55",
		"--output", "out.json",
		"--model-path", "artifacts/model.json",
		"--encoders-path", "artifacts/encoders.json",
		"--log-level", "debug",
		"--score-timeout", "250ms",
	})
	require.NoError(t, err)

	assert.Equal(t, "batch.xlsx", cfg.CustomerData)
	assert.True(t, cfg.Batch)
	assert.Equal(t, 0.55, cfg.Threshold)
	assert.Equal(t, "out.json", cfg.Output)
	assert.Equal(t, "artifacts/model.json", cfg.ModelPath)
	assert.Equal(t, "artifacts/encoders.json", cfg.EncodersPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.ScoreTimeout)
}

func TestLoadCheckModeNeedsNoInput(t *testing.T) {
	cfg, err := Load([]string{"--check"})
	require.NoError(t, err)
	assert.True(t, cfg.Check)
	assert.Empty(t, cfg.CustomerData)
}

func TestLoadMissingCustomerData(t *testing.T) {
	_, err := Load(nil)
	require.Error(t, err)

	var usageErr *pkgerrors.UsageError
	require.ErrorAs(t, err, &usageErr)
	assert.Contains(t, usageErr.Message, "--customer-data")
}

func TestLoadThresholdOutOfRange(t *testing.T) {
	for _, bad := range []string{"-0.1", "1.5"} {
		_, err := Load([]string{"--customer-data", "c.csv", "--threshold", bad})
		require.Error(t, err, "threshold=%s", bad)

		var validationErr *pkgerrors.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Equal(t, "threshold", validationErr.ParamName)
	}
}

func TestLoadInvalidLogLevel(t *testing.T) {
	_, err := Load([]string{"--customer-data", "c.csv", "--log-level", "verbose"})
	require.Error(t, err)

	var validationErr *pkgerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "log-level", validationErr.ParamName)
}

func TestLoadUnknownFlag(t *testing.T) {
	_, err := Load([]string{"--nonsense"})
	require.Error(t, err)

	var usageErr *pkgerrors.UsageError
	assert.ErrorAs(t, err, &usageErr)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("CHURNPIPE_THRESHOLD", "0.6")
	t.Setenv("CHURNPIPE_LOG_LEVEL", "warn")

	cfg, err := Load([]string{"--customer-data", "c.csv"})
	require.NoError(t, err)
	assert.Equal(t, 0.6, cfg.Threshold)
	assert.Equal(t, "warn", cfg.LogLevel)
}
