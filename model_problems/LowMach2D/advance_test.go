package LowMach2D

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLevel logs every phase call and can fail a chosen phase
type recordingLevel struct {
	calls      []string
	failPhase  Phase
	failPass   int
	convergeAt int
}

func newRecordingLevel() *recordingLevel {
	return &recordingLevel{failPhase: PhaseDone, convergeAt: -1}
}

func (r *recordingLevel) record(ph Phase, pass int) error {
	r.calls = append(r.calls, fmt.Sprintf("%s:%d", ph, pass))
	if ph == r.failPhase && pass == r.failPass {
		return ErrDiffusionSolveFailed
	}
	return nil
}

func (r *recordingLevel) LevelIndex() int { return 1 }

func (r *recordingLevel) Setup(time, dt float64) error {
	return r.record(PhaseSetup, 0)
}

func (r *recordingLevel) PredictVelocity(dt float64) (float64, error) {
	return 0.4, r.record(PhasePredictVelocity, 0)
}

func (r *recordingLevel) AdvectScalars(pass int, dt float64) error {
	return r.record(PhaseAdvectScalars, pass)
}

func (r *recordingLevel) Diffuse(pass int, dt float64) (int, error) {
	return 3, r.record(PhaseDiffuse, pass)
}

func (r *recordingLevel) React(pass int, dt float64) (ReactStats, error) {
	return ReactStats{FuncEvals: 10, MaxFuncEvals: 4 + pass, Failures: 1}, r.record(PhaseReact, pass)
}

func (r *recordingLevel) Project(pass int, dt float64) (int, error) {
	return 5, r.record(PhaseProject, pass)
}

func (r *recordingLevel) MacSync(iter int, dt float64) (bool, error) {
	return iter == r.convergeAt, r.record(PhaseSync, iter)
}

func (r *recordingLevel) RefluxAvgDown(iteration, ncycle int, dt float64) error {
	return r.record(PhaseRefluxAvgDown, 0)
}

func TestAdvancePhaseOrder(t *testing.T) {
	var (
		cfg = testConfig()
		lev = newRecordingLevel()
	)
	cfg.SDCIterMax = 2
	cfg.NumMacSyncIter = 3
	stats, err := Advance(lev, cfg, 0, 1e-3, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"SETUP:0", "PREDICT_VELOCITY:0",
		"ADVECT_SCALARS:0", "DIFFUSE:0", "REACT:0", "PROJECT:0",
		"ADVECT_SCALARS:1", "DIFFUSE:1", "REACT:1", "PROJECT:1",
		"SYNC:0", "SYNC:1", "SYNC:2",
		"REFLUX/AVGDOWN:0",
	}, lev.calls)
	assert.Equal(t, AdvanceStats{
		CFL:          0.4,
		SDCPasses:    2,
		SyncIters:    3,
		LinearIters:  16,
		ChemFailures: 2,
		FuncEvals:    20,
		MaxFuncEvals: 5,
	}, stats)
	{ // A converged sync iteration ends the loop
		lev = newRecordingLevel()
		lev.convergeAt = 0
		stats, err = Advance(lev, cfg, 0, 1e-3, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.SyncIters)
		assert.Equal(t, "REFLUX/AVGDOWN:0", lev.calls[len(lev.calls)-1])
		assert.Equal(t, "SYNC:0", lev.calls[len(lev.calls)-2])
	}
	{ // No sync iterations
		cfg.NumMacSyncIter = 0
		lev = newRecordingLevel()
		stats, err = Advance(lev, cfg, 0, 1e-3, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.SyncIters)
		assert.NotContains(t, lev.calls, "SYNC:0")
	}
}

func TestAdvanceError(t *testing.T) {
	var (
		cfg = testConfig()
		lev = newRecordingLevel()
	)
	cfg.SDCIterMax = 3
	lev.failPhase = PhaseDiffuse
	lev.failPass = 1
	_, err := Advance(lev, cfg, 0.5, 1e-4, 1, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDiffusionSolveFailed)
	var ae *AdvanceError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, PhaseDiffuse, ae.Phase)
	assert.Equal(t, 1, ae.Pass)
	assert.Equal(t, 1, ae.Level)
	assert.Equal(t, 0.5, ae.Time)
	assert.Equal(t, 1e-4, ae.Dt)
	assert.Contains(t, err.Error(), "DIFFUSE")
	// Nothing runs after the failing phase
	assert.Equal(t, "DIFFUSE:1", lev.calls[len(lev.calls)-1])
	assert.Equal(t, "UNKNOWN", Phase(200).String())
}
