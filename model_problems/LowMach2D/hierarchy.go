package LowMach2D

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
	"github.com/notargets/golowmach/linsolve"
)

// InitialCondition returns the velocity, temperature and mass fractions at a point
type InitialCondition func(x, y float64) (u, v, T float64, Y []float64)

/*
Hierarchy is a fixed stack of properly nested levels. Level l+1 is refined by RefRatio
from level l and subcycles RefRatio times per level l step. FluxRegs[l] couples levels
l and l+1.
*/
type Hierarchy struct {
	Cfg      *Config
	Chem     chemistry.ChemDriver
	Solver   linsolve.LinearSolver
	Layout   StateLayout
	Species  []string
	RefRatio int
	Geoms    []*grid2D.Geometry
	Levels   []*Level
	FluxRegs []*grid2D.FluxRegister
	Ambient  *AmbientPressure
	Typical  *TypicalValues
	Sync     *SyncCoupler
	Step     int
	Time     float64
	Dt       float64
	DtOld    float64
}

// NewHierarchy builds the levels over the given box arrays, coarsest first. Every fine box
// array must lie within the refined coarse domain and be aligned with the ratio.
func NewHierarchy(cfg *Config, chem chemistry.ChemDriver, solver linsolve.LinearSolver,
	geom0 *grid2D.Geometry, bas []grid2D.BoxArray, refRatio int) (h *Hierarchy, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	if len(bas) == 0 {
		err = fmt.Errorf("a hierarchy needs at least one level")
		return
	}
	if len(bas) > 1 && refRatio < 2 {
		err = fmt.Errorf("refinement ratio must be at least 2, have %d", refRatio)
		return
	}
	species := chem.SpeciesNames()
	h = &Hierarchy{
		Cfg:      cfg,
		Chem:     chem,
		Solver:   solver,
		Layout:   NewStateLayout(len(species)),
		Species:  species,
		RefRatio: refRatio,
		Ambient:  NewAmbientPressure(cfg.P0),
	}
	h.Typical = NewTypicalValues(h.Layout, species)
	h.Sync = NewSyncCoupler(cfg, chem, h.Layout)
	geom := geom0
	for lev, ba := range bas {
		if lev > 0 {
			geom = geom.Refine(refRatio)
			for p, b := range ba {
				if !geom.Domain.ContainsBox(b) {
					err = fmt.Errorf("level %d box %d %v lies outside the domain %v", lev, p, b, geom.Domain)
					return
				}
				if !bas[lev-1].Refine(refRatio).Contains(b.Lo[0], b.Lo[1]) ||
					!bas[lev-1].Refine(refRatio).Contains(b.Hi[0], b.Hi[1]) {
					err = fmt.Errorf("level %d box %d %v is not nested in level %d", lev, p, b, lev-1)
					return
				}
			}
			h.FluxRegs = append(h.FluxRegs, grid2D.NewFluxRegister(ba, h.Geoms[lev-1], refRatio, h.Layout.NFlux()))
		}
		h.Geoms = append(h.Geoms, geom)
		ls := NewLevelState(lev, geom, ba, h.Layout, cfg.ParallelDegree)
		h.Levels = append(h.Levels, newLevel(h, ls))
	}
	return
}

func (h *Hierarchy) FinestLevel() int {
	return len(h.Levels) - 1
}

// InitData fills every level from ic on an isobaric field at the ambient pressure, then
// projects the initial velocity onto the initial divergence constraint
func (h *Hierarchy) InitData(ic InitialCondition) (err error) {
	for _, lv := range h.Levels {
		if err = h.initLevel(lv, ic); err != nil {
			return
		}
	}
	h.averageDownAll()
	h.SetTypicalValues(nil)
	for _, lv := range h.Levels {
		if err = h.initialProjection(lv); err != nil {
			return fmt.Errorf("initial projection of level %d: %w", lv.Level, err)
		}
	}
	h.averageDownAll()
	for _, lv := range h.Levels {
		lv.Old.Copy(lv.New, 0, 0, h.Layout.NComp, NGrowState)
		lv.DivuOld.Copy(lv.DivuNew, 0, 0, 1, 0)
	}
	tMin, tMax := TemperatureStats(h.Levels[0].New, h.Layout)
	log.Infof("initialized %d levels, T in [%.2f, %.2f] K, p_amb = %.6g", len(h.Levels), tMin, tMax, h.Ambient.POld)
	return
}

func (h *Hierarchy) initLevel(lv *Level, ic InitialCondition) (err error) {
	var (
		l    = h.Layout
		R    = h.Chem.RUniversal()
		p0   = h.Ambient.POld
		geom = lv.Geom
	)
	err = lv.New.ForEachPatch(func(p int, fab *grid2D.FArray) (err error) {
		fab.Box.ForEach(func(i, j int) {
			if err != nil {
				return
			}
			u, v, T, Y := ic(geom.CellCenter(i, j))
			if len(Y) != l.NSpec {
				err = fmt.Errorf("initial condition returned %d mass fractions, need %d", len(Y), l.NSpec)
				return
			}
			rho := p0 * h.Chem.MeanMolecularWeight(Y) / (R * T)
			fab.Set(i, j, l.Xvel, u)
			fab.Set(i, j, l.Yvel, v)
			fab.Set(i, j, l.Density, rho)
			for k := 0; k < l.NSpec; k++ {
				fab.Set(i, j, l.Spec(k), rho*Y[k])
			}
			fab.Set(i, j, l.RhoH, rho*h.Chem.MixtureEnthalpy(T, Y))
			fab.Set(i, j, l.Temp, T)
			fab.Set(i, j, l.RhoRT, p0)
		})
		return
	})
	if err != nil {
		return
	}
	lv.Old.Copy(lv.New, 0, 0, l.NComp, NGrowState)
	lv.TimeOld, lv.TimeNew = h.Time, h.Time
	return
}

func (h *Hierarchy) initialProjection(lv *Level) (err error) {
	if err = lv.fillStateGhosts(lv.New, h.Time); err != nil {
		return
	}
	if err = lv.computeDivu(lv.New, 0); err != nil {
		return
	}
	rho := grid2D.NewMultiFab(lv.BA, 1, 1, lv.nPar)
	rho.Copy(lv.New, h.Layout.Density, 0, 1, 1)
	if _, err = lv.projector.ApproximateProject(lv.LevelState, lv.New, rho, 0, lv.DivuNew, 1); err != nil {
		return
	}
	lv.Press.SetVal(0, 0, 1)
	lv.PressOld.SetVal(0, 0, 1)
	lv.DsdtOld.SetVal(0, 0, 1)
	lv.Old.Copy(lv.New, 0, 0, h.Layout.NComp, NGrowState)
	return
}

func (h *Hierarchy) averageDownAll() {
	for lev := h.FinestLevel() - 1; lev >= 0; lev-- {
		h.Sync.AvgDown(h.Levels[lev].LevelState, h.Levels[lev+1].LevelState, h.RefRatio)
	}
}

// SetTypicalValues measures the typical values on level 0, then applies the configured
// overrides and those of a restart, if any
func (h *Hierarchy) SetTypicalValues(restart *RestartState) {
	h.Typical.Reset(h.Levels[0].New)
	h.Typical.Override(h.Cfg.TypicalValues)
	if restart != nil {
		h.Typical.Override(restart.TypicalValues)
	}
	h.Typical.Print()
}

/*
Timestep advances level lev over [time, time+dt], then subcycles the finer levels and
synchronizes lev with lev+1 once they have caught up.
*/
func (h *Hierarchy) Timestep(lev int, time, dt float64, iteration, ncycle int) (stats AdvanceStats, err error) {
	if stats, err = Advance(h.Levels[lev], h.Cfg, time, dt, iteration, ncycle); err != nil {
		return
	}
	log.Debugf("level %d advanced to t = %.6e: %d sdc passes, %d linear iterations", lev, time+dt,
		stats.SDCPasses, stats.LinearIters)
	if lev == h.FinestLevel() {
		return
	}
	var (
		r   = h.RefRatio
		fdt = dt / float64(r)
	)
	for i := 1; i <= r; i++ {
		fs, e := h.Timestep(lev+1, time+float64(i-1)*fdt, fdt, i, r)
		if e != nil {
			return stats, e
		}
		stats.merge(fs)
	}
	if err = h.Sync.SyncLevels(h.Levels[lev].LevelState, h.Levels[lev+1].LevelState, h.FluxRegs[lev], r); err != nil {
		err = &AdvanceError{
			Level: lev,
			Phase: PhaseSync,
			Time:  time,
			Dt:    dt,
			Err:   err,
		}
	}
	return
}

// CoarseTimeStep advances the whole hierarchy by one level 0 step of size dt
func (h *Hierarchy) CoarseTimeStep(dt float64) (stats AdvanceStats, err error) {
	h.Dt = dt
	if stats, err = h.Timestep(0, h.Time, dt, 1, 1); err != nil {
		return
	}
	h.PostCoarseTimeStep(stats)
	return
}

// PostCoarseTimeStep rolls the ambient pressure and the clock over and reports the step
func (h *Hierarchy) PostCoarseTimeStep(stats AdvanceStats) {
	var (
		base = h.Levels[0]
	)
	h.Ambient.PostCoarseTimeStep()
	h.Time += h.Dt
	h.DtOld = h.Dt
	h.Step++
	tMin, tMax := TemperatureStats(base.New, h.Layout)
	log.Infof("step %d: t = %.6e, dt = %.4e, cfl = %.3f, sdc passes = %d, chem failures = %d, clipped T = %d, T in [%.2f, %.2f] K",
		h.Step, h.Time, h.Dt, stats.CFL, stats.SDCPasses, stats.ChemFailures, stats.Clipped, tMin, tMax)
	if stats.FuncEvals > 0 {
		log.Infof("step %d: chemistry function evaluations = %d, max per cell = %d",
			h.Step, stats.FuncEvals, stats.MaxFuncEvals)
	}
	if h.Cfg.ClosedChamber {
		log.Infof("step %d: p_amb = %.6e, dp0/dt = %.6e, thetabar = %.6e", h.Step, h.Ambient.POld,
			h.Ambient.Dp0dt, h.Ambient.Thetabar)
	}
	if h.Cfg.NewTThreshold > 0 {
		if dT := maxTemperatureChange(base.LevelState); dT > h.Cfg.NewTThreshold {
			log.Warnf("step %d: maximum temperature change %.3f K exceeds new_T_threshold %.3f K",
				h.Step, dT, h.Cfg.NewTThreshold)
		}
	}
	SumIntegratedQuantities(h).Log(h.Step, h.Time)
	if n := h.Cfg.ResetTypicalValsInt; n > 0 && h.Step%n == 0 {
		h.SetTypicalValues(nil)
	}
}

func maxTemperatureChange(ls *LevelState) (dT float64) {
	l := ls.Layout
	partials := make([]float64, len(ls.New.Fabs))
	_ = ls.New.ForEachPatch(func(p int, fab *grid2D.FArray) error {
		ofab := ls.Old.Fabs[p]
		fab.Box.ForEach(func(i, j int) {
			partials[p] = math.Max(partials[p], math.Abs(fab.Get(i, j, l.Temp)-ofab.Get(i, j, l.Temp)))
		})
		return nil
	})
	for _, v := range partials {
		dT = math.Max(dT, v)
	}
	return
}

/*
ComputeNewDt returns the level 0 step for the next coarse step: the minimum over levels
of the level estimate scaled by the subcycling factor, limited by init_shrink on the first
step, change_max relative to the previous step and dt_max.
*/
func (h *Hierarchy) ComputeNewDt() (dt float64) {
	var (
		cfg    = h.Cfg
		factor = 1.
	)
	dt = math.Inf(1)
	for _, lv := range h.Levels {
		dt = math.Min(dt, factor*lv.EstTimeStep())
		factor *= float64(h.RefRatio)
	}
	if h.Step == 0 {
		dt *= cfg.InitShrink
	} else if h.DtOld > 0 {
		dt = math.Min(dt, cfg.ChangeMax*h.DtOld)
	}
	dt = math.Min(dt, cfg.DtMax)
	log.Debugf("new dt = %.6e", dt)
	return
}

func (s *AdvanceStats) merge(o AdvanceStats) {
	s.CFL = math.Max(s.CFL, o.CFL)
	s.SDCPasses += o.SDCPasses
	s.SyncIters += o.SyncIters
	s.LinearIters += o.LinearIters
	s.ChemFailures += o.ChemFailures
	s.Clipped += o.Clipped
	s.FuncEvals += o.FuncEvals
	s.MaxFuncEvals = max(s.MaxFuncEvals, o.MaxFuncEvals)
}
