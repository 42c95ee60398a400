package cmd

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/golowmach/model_problems/LowMach2D"
)

var driftInput = []byte(`
Title: Drifting uniform mixture
NCell: [8, 8]
ProbHi: [0.01, 0.01]
MaxGridSize: 4
MaxSteps: 2
InitType: Uniform
InitT: 600
Velocity: [1.0, 0.0]
Composition: {F: 0.05, O: 0.2, N: 0.75}
hack_nochem: true
dt_max: 1.0e-4
typical_values:
  temp: 2000
`)

func TestRunLowMach(t *testing.T) {
	log.SetLevel(log.WarnLevel)
	var (
		dir        = t.TempDir()
		input      = filepath.Join(dir, "drift.yaml")
		checkpoint = filepath.Join(dir, "restart.yaml")
	)
	require.NoError(t, os.WriteFile(input, driftInput, 0644))
	rc := &RunLM{ICFile: input, CheckpointFile: checkpoint}
	ip, err := processInput(rc)
	require.NoError(t, err)
	assert.Equal(t, "Drifting uniform mixture", ip.Title)
	h, err := RunLowMach(rc, ip)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Step)
	assert.Greater(t, h.Time, 0.)
	rs, err := LowMach2D.ReadRestartState(checkpoint)
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Step)
	assert.Equal(t, h.Time, rs.Time)
	assert.Equal(t, 2000., rs.TypicalValues["temp"])
	{ // A restarted run continues the clock up to the new step count
		rc = &RunLM{ICFile: input, RestartFile: checkpoint, MaxSteps: 3}
		ip, err = processInput(rc)
		require.NoError(t, err)
		assert.Equal(t, 3, ip.MaxSteps)
		h2, err := RunLowMach(rc, ip)
		require.NoError(t, err)
		assert.Equal(t, 3, h2.Step)
		assert.Greater(t, h2.Time, h.Time)
	}
	{ // Stop time limits the last step
		ip.StopTime = 1e-5
		ip.MaxSteps = 100
		h3, err := RunLowMach(&RunLM{}, ip)
		require.NoError(t, err)
		assert.InDelta(t, 1e-5, h3.Time, 1e-18)
	}
}

func TestProcessInputErrors(t *testing.T) {
	_, err := processInput(&RunLM{})
	assert.Error(t, err)
	_, err = processInput(&RunLM{ICFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("sdc_iterMAX: 0\n"), 0644))
	_, err = processInput(&RunLM{ICFile: bad})
	assert.Error(t, err)
}

func TestSetLogLevel(t *testing.T) {
	defer log.SetLevel(log.WarnLevel)
	viper.Set("log_level", "warn")
	viper.Set("verbose", false)
	require.NoError(t, setLogLevel())
	assert.Equal(t, log.WarnLevel, log.GetLevel())
	viper.Set("verbose", true)
	require.NoError(t, setLogLevel())
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	viper.Set("log_level", "loud")
	assert.Error(t, setLogLevel())
	viper.Set("log_level", "info")
	viper.Set("verbose", false)
}
