package LowMach2D

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
)

type ReactStats struct {
	Failures     int
	FuncEvals    int
	MaxFuncEvals int
	Clipped      int
}

func (rs *ReactStats) merge(o ReactStats) {
	rs.Failures += o.Failures
	rs.FuncEvals += o.FuncEvals
	rs.MaxFuncEvals = max(rs.MaxFuncEvals, o.MaxFuncEvals)
	rs.Clipped += o.Clipped
}

// ChemistryAdapter hands the reacting system of every cell to the ChemDriver
type ChemistryAdapter struct {
	cfg    *Config
	chem   chemistry.ChemDriver
	layout StateLayout
	tv     *TypicalValues
}

func NewChemistryAdapter(cfg *Config, chem chemistry.ChemDriver, layout StateLayout, tv *TypicalValues) *ChemistryAdapter {
	return &ChemistryAdapter{
		cfg:    cfg,
		chem:   chem,
		layout: layout,
		tv:     tv,
	}
}

func (ca *ChemistryAdapter) tolerances(rho float64) (tol chemistry.Tolerances) {
	var (
		l  = ca.layout
		ns = l.NSpec
	)
	tol.RTol = ca.cfg.ChemRTol
	tol.ATol = make([]float64, ns+1)
	for k := 0; k < ns; k++ {
		tol.ATol[k] = tol.RTol * ca.tv.Get(l.Spec(k)) * rho
	}
	tol.ATol[ns] = tol.RTol * ca.tv.Get(l.RhoH)
	return
}

/*
AdvanceChemistry integrates the valid cells of old over dt under the forcing force (flux
layout, per unit time) and writes rhoY_k, rhoh, T and rho = sum rhoY_k into next. Function
evaluations are added to funcCount. A cell whose integration fails receives the forcing only
update with non negative species, its temperature comes from the closure.
*/
func (ca *ChemistryAdapter) AdvanceChemistry(old, next, force, funcCount *grid2D.MultiFab, dt float64) (stats ReactStats) {
	var (
		l        = ca.layout
		ns       = l.NSpec
		partials = make([]ReactStats, len(old.Fabs))
	)
	_ = next.ForEachPatch(func(p int, nfab *grid2D.FArray) error {
		var (
			ofab, ffab, cfab = old.Fabs[p], force.Fabs[p], funcCount.Fabs[p]
			cell             = &chemistry.CellState{RhoY: make([]float64, ns)}
			f                = make([]float64, ns+1)
			st               ReactStats
		)
		nfab.Box.ForEach(func(i, j int) {
			for k := 0; k < ns; k++ {
				cell.RhoY[k] = ofab.Get(i, j, l.Spec(k))
				f[k] = ffab.Get(i, j, l.FluxSpec(k))
			}
			cell.RhoH = ofab.Get(i, j, l.RhoH)
			cell.T = ofab.Get(i, j, l.Temp)
			f[ns] = ffab.Get(i, j, l.FluxRhoH())
			var (
				nfev int
				err  error
			)
			if ca.cfg.HackNoChem {
				forcingOnly(cell, f, dt, false)
			} else {
				save := cell.Copy()
				if nfev, err = ca.chem.Integrate(cell, f, dt, ca.tolerances(cell.Rho())); err != nil {
					st.Failures++
					cell = save
					forcingOnly(cell, f, dt, true)
				}
			}
			cfab.Add(i, j, 0, float64(nfev))
			st.FuncEvals += nfev
			st.MaxFuncEvals = max(st.MaxFuncEvals, nfev)
			var rho float64
			for k := 0; k < ns; k++ {
				if ca.cfg.FloorSpecies {
					cell.RhoY[k] = math.Max(cell.RhoY[k], 0)
				}
				rho += cell.RhoY[k]
				nfab.Set(i, j, l.Spec(k), cell.RhoY[k])
			}
			nfab.Set(i, j, l.Density, rho)
			nfab.Set(i, j, l.RhoH, cell.RhoH)
			nfab.Set(i, j, l.Temp, cell.T)
		})
		partials[p] = st
		return nil
	})
	for _, st := range partials {
		stats.merge(st)
	}
	// Integrator temperatures are accepted as the guess; the closure applies the bounds
	cs := RhoHToTemp(next, l, ca.chem, ca.cfg.TempMin, ca.cfg.TempMax, 0)
	stats.Clipped = cs.Clipped
	if stats.Failures > 0 {
		log.Warnf("chemistry: %d cells failed to integrate (%v), forcing only update applied",
			stats.Failures, ErrChemistryIntegrationFailed)
	}
	return
}

// forcingOnly applies z += dt*F; floor clips negative partial densities
func forcingOnly(cell *chemistry.CellState, f []float64, dt float64, floor bool) {
	ns := len(cell.RhoY)
	for k := 0; k < ns; k++ {
		cell.RhoY[k] += dt * f[k]
		if floor {
			cell.RhoY[k] = math.Max(cell.RhoY[k], 0)
		}
	}
	cell.RhoH += dt * f[ns]
}

// ReactionTerm sets rhoYdot_k = (rhoY_k^new - rhoY_k^old)/dt - F_k, the reaction part of the update
func ReactionTerm(rhoYdot, old, next, force *grid2D.MultiFab, l StateLayout, dt float64) {
	_ = rhoYdot.ForEachPatch(func(p int, rfab *grid2D.FArray) error {
		ofab, nfab, ffab := old.Fabs[p], next.Fabs[p], force.Fabs[p]
		rfab.Box.ForEach(func(i, j int) {
			for k := 0; k < l.NSpec; k++ {
				rfab.Set(i, j, k, (nfab.Get(i, j, l.Spec(k))-ofab.Get(i, j, l.Spec(k)))/dt-ffab.Get(i, j, l.FluxSpec(k)))
			}
		})
		return nil
	})
}

// ComputeInstantaneousReactionRates sets R (flux layout) to the production rates of state:
// R_rho = 0, R_k = wdot_k and R_rhoh = 0. All rates vanish under hack_nochem.
func (ca *ChemistryAdapter) ComputeInstantaneousReactionRates(state, R *grid2D.MultiFab) {
	var (
		l  = ca.layout
		ns = l.NSpec
	)
	if ca.cfg.HackNoChem {
		R.SetVal(0, 0, R.NComp)
		return
	}
	_ = R.ForEachPatch(func(p int, rfab *grid2D.FArray) error {
		var (
			sfab = state.Fabs[p]
			Y    = make([]float64, ns)
			wdot = make([]float64, ns)
		)
		rfab.SetVal(0, 0, rfab.NComp)
		rfab.Box.ForEach(func(i, j int) {
			rho := sfab.Get(i, j, l.Density)
			if !(rho > 0) {
				return
			}
			for k := 0; k < ns; k++ {
				Y[k] = sfab.Get(i, j, l.Spec(k)) / rho
			}
			ca.chem.ReactionRates(rho, sfab.Get(i, j, l.Temp), Y, wdot)
			for k := 0; k < ns; k++ {
				rfab.Set(i, j, l.FluxSpec(k), wdot[k])
			}
		})
		return nil
	})
}
