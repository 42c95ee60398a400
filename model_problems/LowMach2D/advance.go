package LowMach2D

import (
	log "github.com/sirupsen/logrus"
)

type Phase uint8

const (
	PhaseSetup Phase = iota
	PhasePredictVelocity
	PhaseAdvectScalars
	PhaseDiffuse
	PhaseReact
	PhaseProject
	PhaseSync
	PhaseRefluxAvgDown
	PhaseDone
)

var phaseNames = [...]string{
	"SETUP", "PREDICT_VELOCITY", "ADVECT_SCALARS", "DIFFUSE", "REACT", "PROJECT", "SYNC",
	"REFLUX/AVGDOWN", "DONE",
}

func (ph Phase) String() string {
	if int(ph) < len(phaseNames) {
		return phaseNames[ph]
	}
	return "UNKNOWN"
}

/*
ReactingLevel is a level that can be advanced by Advance. The methods are called in the order

	Setup, PredictVelocity, {AdvectScalars, Diffuse, React, Project} x sdc_iterMAX,
	MacSync (until converged, at most num_mac_sync_iter times), RefluxAvgDown
*/
type ReactingLevel interface {
	LevelIndex() int
	Setup(time, dt float64) error
	PredictVelocity(dt float64) (cfl float64, err error)
	AdvectScalars(pass int, dt float64) error
	Diffuse(pass int, dt float64) (linearIters int, err error)
	React(pass int, dt float64) (ReactStats, error)
	Project(pass int, dt float64) (linearIters int, err error)
	MacSync(iter int, dt float64) (converged bool, err error)
	RefluxAvgDown(iteration, ncycle int, dt float64) error
}

type AdvanceStats struct {
	CFL          float64
	SDCPasses    int
	SyncIters    int
	LinearIters  int
	ChemFailures int
	Clipped      int
	FuncEvals    int
	MaxFuncEvals int // Largest count of a single cell integration
}

// Advance runs one time step of lev. The first failing phase aborts the step and is
// reported as an *AdvanceError; the level state is then not a valid starting point.
func Advance(lev ReactingLevel, cfg *Config, time, dt float64, iteration, ncycle int) (stats AdvanceStats, err error) {
	var (
		phase = PhaseSetup
		pass  int
		iters int
	)
	fail := func(e error) error {
		return &AdvanceError{
			Level: lev.LevelIndex(),
			Phase: phase,
			Pass:  pass,
			Time:  time,
			Dt:    dt,
			Err:   e,
		}
	}
	enter := func(ph Phase) {
		phase = ph
		log.Debugf("level %d: %s (pass %d)", lev.LevelIndex(), ph, pass)
	}
	enter(PhaseSetup)
	if err = lev.Setup(time, dt); err != nil {
		return stats, fail(err)
	}
	enter(PhasePredictVelocity)
	if stats.CFL, err = lev.PredictVelocity(dt); err != nil {
		return stats, fail(err)
	}
	for pass = 0; pass < cfg.SDCIterMax; pass++ {
		enter(PhaseAdvectScalars)
		if err = lev.AdvectScalars(pass, dt); err != nil {
			return stats, fail(err)
		}
		enter(PhaseDiffuse)
		if iters, err = lev.Diffuse(pass, dt); err != nil {
			return stats, fail(err)
		}
		stats.LinearIters += iters
		enter(PhaseReact)
		rs, e := lev.React(pass, dt)
		if e != nil {
			return stats, fail(e)
		}
		stats.ChemFailures += rs.Failures
		stats.Clipped += rs.Clipped
		stats.FuncEvals += rs.FuncEvals
		stats.MaxFuncEvals = max(stats.MaxFuncEvals, rs.MaxFuncEvals)
		enter(PhaseProject)
		if iters, err = lev.Project(pass, dt); err != nil {
			return stats, fail(err)
		}
		stats.LinearIters += iters
		stats.SDCPasses++
	}
	pass = cfg.SDCIterMax - 1
	enter(PhaseSync)
	for it := 0; it < cfg.NumMacSyncIter; it++ {
		converged, e := lev.MacSync(it, dt)
		if e != nil {
			return stats, fail(e)
		}
		stats.SyncIters++
		if converged {
			break
		}
	}
	enter(PhaseRefluxAvgDown)
	if err = lev.RefluxAvgDown(iteration, ncycle, dt); err != nil {
		return stats, fail(err)
	}
	enter(PhaseDone)
	return
}
