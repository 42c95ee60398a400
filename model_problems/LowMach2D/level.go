package LowMach2D

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/notargets/golowmach/grid2D"
)

// Level advances one level of a Hierarchy. Its phase methods implement ReactingLevel.
type Level struct {
	*LevelState
	h         *Hierarchy
	diffusion *DiffusionEngine
	reactor   *ChemistryAdapter
	projector *Projector
	muOld     grid2D.EdgeMultiFabs // Face viscosity of the old state
	rhs       *grid2D.MultiFab
}

func newLevel(h *Hierarchy, ls *LevelState) (lv *Level) {
	lv = &Level{
		LevelState: ls,
		h:          h,
		diffusion:  NewDiffusionEngine(h.Cfg, h.Chem, h.Solver, h.Layout, h.Typical),
		reactor:    NewChemistryAdapter(h.Cfg, h.Chem, h.Layout, h.Typical),
		projector:  NewProjector(h.Cfg, h.Chem, h.Solver, h.Layout, h.Typical),
		rhs:        grid2D.NewMultiFab(ls.BA, ls.Layout.NFlux(), 0, ls.nPar),
	}
	return
}

func (lv *Level) LevelIndex() int {
	return lv.Level
}

func (lv *Level) coarser() *Level {
	if lv.Level == 0 {
		return nil
	}
	return lv.h.Levels[lv.Level-1]
}

// fillStateGhosts fills every ghost cell of a state MultiFab at time: coarse/fine ghosts
// from the coarser level, then same level neighbors, then physical boundaries
func (lv *Level) fillStateGhosts(state *grid2D.MultiFab, time float64) (err error) {
	nc := lv.Layout.NComp
	if crse := lv.coarser(); crse != nil {
		if err = grid2D.FillPatch(state, lv.Geom, crse.Old, crse.New, crse.TimeOld, crse.TimeNew,
			time, lv.h.RefRatio, 0, nc); err != nil {
			return
		}
	}
	state.FillBoundary(lv.Geom, 0, nc)
	state.FillDomainBoundary(lv.Geom, 0, nc, lv.Layout.Xvel)
	return
}

func (lv *Level) fillPressureGhosts(press *grid2D.MultiFab) (err error) {
	if crse := lv.coarser(); crse != nil {
		if err = grid2D.FillPatch(press, lv.Geom, crse.PressOld, crse.Press, crse.TimeOld, crse.TimeNew,
			lv.TimeOld, lv.h.RefRatio, 0, 1); err != nil {
			return
		}
	}
	press.FillBoundary(lv.Geom, 0, 1)
	press.FillDomainBoundary(lv.Geom, 0, 1, -1)
	return
}

// Setup makes the last new state the old state and clears the per step data
func (lv *Level) Setup(time, dt float64) (err error) {
	var (
		l  = lv.Layout
		nc = l.NComp
	)
	lv.Swap()
	lv.DivuNew.Copy(lv.DivuOld, 0, 0, 1, 0)
	lv.PressOld.Copy(lv.Press, 0, 0, 1, 1)
	lv.TimeOld, lv.TimeNew = time, time+dt
	lv.AllocEdges()
	lv.FuncCount.SetVal(0, 0, 1)
	if lv.Level < len(lv.h.FluxRegs) {
		lv.h.FluxRegs[lv.Level].Clear()
	}
	if err = lv.fillStateGhosts(lv.Old, lv.TimeOld); err != nil {
		return
	}
	if err = lv.fillPressureGhosts(lv.PressOld); err != nil {
		return
	}
	lv.New.Copy(lv.Old, 0, 0, nc, NGrowState)
	if err = lv.diffusion.ComputeDifferentialDiffusionFluxes(lv.Old, lv.Geom, lv.SpecDiffusionFluxn,
		grid2D.NewEdgeMultiFabs(lv.BA, l.NFlux(), lv.nPar), lv.DiffN); err != nil {
		return
	}
	lv.DiffK.Copy(lv.DiffN, 0, 0, l.NFlux(), 0)
	lv.SpecDiffusionFluxk.Copy(lv.SpecDiffusionFluxn, 0, 0, l.NFlux())
	lv.reactor.ComputeInstantaneousReactionRates(lv.Old, lv.IR)
	lv.muOld = faceCoefficients(lv.diffusion.calcDiffusivity(lv.Old), lv.nPar)
	return
}

func (lv *Level) PredictVelocity(dt float64) (cfl float64, err error) {
	return lv.projector.PredictVelocity(lv.LevelState, lv.muOld, lv.Layout.NSpec+1, dt)
}

/*
AdvectScalars advects the conserved scalars of the average of the old state and the lagged
iterate with the MAC velocity, and sets the new density from the advection of mass. After the
first pass the diffusion of the lagged iterate is evaluated first.
*/
func (lv *Level) AdvectScalars(pass int, dt float64) (err error) {
	var (
		l  = lv.Layout
		nf = l.NFlux()
	)
	if pass > 0 {
		if err = lv.fillStateGhosts(lv.New, lv.TimeNew); err != nil {
			return
		}
		if err = lv.diffusion.ComputeDifferentialDiffusionFluxes(lv.New, lv.Geom, lv.SpecDiffusionFluxk,
			grid2D.NewEdgeMultiFabs(lv.BA, nf, lv.nPar), lv.DiffK); err != nil {
			return
		}
	}
	half := grid2D.NewMultiFabLike(lv.Old, l.NComp, NGrowState)
	half.LinComb(0.5, lv.Old, 0, 0.5, lv.New, 0, 0, l.NComp, NGrowState)
	ScalarAdvectiveFluxes(half, l, lv.UMac, lv.EdgeFlux)
	if lv.h.Cfg.DoAddNonunityLeCorrToRhohAdvFlux {
		if err = lv.diffusion.AdvectiveLeCorrection(half, lv.Geom, lv.EdgeFlux); err != nil {
			return
		}
	}
	lv.EdgeFlux.Divergence(lv.Aofs, lv.Geom, 0, 0, nf, -1)
	lv.New.LinComb(1, lv.Old, l.Density, dt, lv.Aofs, 0, l.Density, 1, 0)
	return
}

func (lv *Level) Diffuse(pass int, dt float64) (iters int, err error) {
	if err = lv.fillStateGhosts(lv.New, lv.TimeNew); err != nil {
		return
	}
	lv.SDCDiffusionRHS(lv.rhs, dt)
	if iters, err = lv.diffusion.DifferentialDiffusionUpdate(lv.LevelState, lv.rhs, dt); err != nil {
		return
	}
	lv.SDCForcing()
	return
}

func (lv *Level) React(pass int, dt float64) (stats ReactStats, err error) {
	stats = lv.reactor.AdvanceChemistry(lv.Old, lv.New, lv.Forcing, lv.FuncCount, dt)
	lv.SDCReactionTerm(dt)
	ReactionTerm(lv.RhoYdot, lv.Old, lv.New, lv.Forcing, lv.Layout, dt)
	return
}

// computeDivu sets DivuNew from state, with the closed chamber correction
func (lv *Level) computeDivu(state *grid2D.MultiFab, dt float64) (err error) {
	var (
		l    = lv.Layout
		nf   = l.NFlux()
		D    = grid2D.NewMultiFab(lv.BA, nf, 0, lv.nPar)
		R    = grid2D.NewMultiFab(lv.BA, nf, 0, lv.nPar)
		amb  = lv.h.Ambient
		flux = grid2D.NewEdgeMultiFabs(lv.BA, nf, lv.nPar)
		wbar = grid2D.NewEdgeMultiFabs(lv.BA, nf, lv.nPar)
	)
	if err = lv.diffusion.ComputeDifferentialDiffusionFluxes(state, lv.Geom, flux, wbar, D); err != nil {
		return
	}
	lv.reactor.ComputeInstantaneousReactionRates(state, R)
	lv.projector.CalcDivu(state, D, R, lv.DivuNew, amb.POld, dt)
	if lv.h.Cfg.ClosedChamber {
		theta := grid2D.NewMultiFab(lv.BA, 1, 0, lv.nPar)
		ComputeTheta(state, l, lv.h.Chem, amb.POld, theta)
		if lv.Level == 0 {
			amb.ClosedChamberCorrection(lv.DivuNew, theta, dt)
		} else {
			amb.ApplyDp0dt(lv.DivuNew, theta)
		}
	}
	return
}

func (lv *Level) Project(pass int, dt float64) (iters int, err error) {
	if err = lv.fillStateGhosts(lv.New, lv.TimeNew); err != nil {
		return
	}
	if err = lv.computeDivu(lv.New, dt); err != nil {
		return
	}
	return lv.projector.Project(lv.LevelState, lv.muOld, lv.Layout.NSpec+1, dt)
}

// MacSync recomputes the constraint from the final state and reprojects the new velocity.
// It has converged once the constraint stops changing.
func (lv *Level) MacSync(iter int, dt float64) (converged bool, err error) {
	var (
		l       = lv.Layout
		sPrev   = lv.DivuNew.Clone()
		rhoHalf = grid2D.NewMultiFab(lv.BA, 1, 1, lv.nPar)
		change  float64
	)
	if lv.h.Cfg.DoDiffuseSync {
		RhoHToTemp(lv.New, l, lv.h.Chem, lv.h.Cfg.TempMin, lv.h.Cfg.TempMax, 0)
	}
	if err = lv.fillStateGhosts(lv.New, lv.TimeNew); err != nil {
		return
	}
	if err = lv.computeDivu(lv.New, dt); err != nil {
		return
	}
	sPrev.Saxpy(-1, lv.DivuNew, 0, 0, 1, 0)
	change = sPrev.NormInf(0)
	rhoHalf.LinComb(0.5, lv.Old, l.Density, 0.5, lv.New, l.Density, 0, 1, 1)
	if _, err = lv.projector.ApproximateProject(lv.LevelState, lv.New, rhoHalf, 0, lv.DivuNew, dt); err != nil {
		return
	}
	scale := math.Max(lv.DivuNew.NormInf(0), 1e-300)
	converged = change <= lv.h.Cfg.MacSyncTol*scale
	log.Debugf("level %d mac sync %d: max constraint change %.3e", lv.Level, iter, change)
	return
}

// RefluxAvgDown loads the time integrated fluxes of this step into the flux registers
// shared with the coarser and finer levels. The registers are consumed by the Hierarchy
// once the finer level has completed its subcycles.
func (lv *Level) RefluxAvgDown(iteration, ncycle int, dt float64) (err error) {
	var (
		nf  = lv.Layout.NFlux()
		eff = grid2D.NewEdgeMultiFabs(lv.BA, nf, lv.nPar)
	)
	lv.RefluxFlux(eff)
	if lv.Level < len(lv.h.FluxRegs) {
		if err = lv.h.FluxRegs[lv.Level].CrseInit(eff, 0, 0, nf, -dt); err != nil {
			return
		}
	}
	if lv.Level > 0 {
		if err = lv.h.FluxRegs[lv.Level-1].FineAdd(eff, 0, 0, nf, dt); err != nil {
			return
		}
	}
	lv.DsdtOld.LinComb(1/dt, lv.DivuNew, 0, -1/dt, lv.DivuOld, 0, 0, 1, 0)
	return
}

// EstTimeStep returns the largest stable step of this level, +Inf for a fluid at rest
func (lv *Level) EstTimeStep() (dt float64) {
	var (
		cfg      = lv.h.Cfg
		l        = lv.Layout
		partials = make([]float64, len(lv.New.Fabs))
	)
	_ = lv.New.ForEachPatch(func(p int, fab *grid2D.FArray) error {
		est := math.Inf(1)
		sfab := lv.DivuNew.Fabs[p]
		fab.Box.ForEach(func(i, j int) {
			for d := 0; d < 2; d++ {
				if u := math.Abs(fab.Get(i, j, l.Xvel+d)); u > 0 {
					est = math.Min(est, cfg.CFL*lv.Geom.Dx[d]/u)
				}
			}
			S := sfab.Get(i, j, 0)
			if cfg.DivuCeiling == 2 && S > 0 && fab.Get(i, j, l.Density) > cfg.MinRhoDivuCeiling {
				est = math.Min(est, cfg.DivuDtFactor/S)
			}
		})
		partials[p] = est
		return nil
	})
	dt = math.Inf(1)
	for _, est := range partials {
		dt = math.Min(dt, est)
	}
	if cfg.DivuCeiling == 1 {
		if sMax := lv.DivuNew.Max(0); sMax > 0 {
			dt = math.Min(dt, cfg.DivuDtFactor/sMax)
		}
	}
	return
}
