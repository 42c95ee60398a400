package LowMach2D

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/notargets/golowmach/grid2D"
)

const (
	consumptionSuffix = "ConsumptionRate"
	moleFracPrefix    = "X("
)

// PlotVariables lists the derived quantities written with the state, per the plot switches
func (h *Hierarchy) PlotVariables() (names []string) {
	names = append(names, h.Layout.ComponentNames(h.Species)...)
	names = append(names, "divu", "rhoRT")
	for _, sp := range h.Species {
		names = append(names, moleFracPrefix+sp+")")
	}
	if h.Cfg.PlotReactions {
		names = append(names, "FuncCount")
		for _, sp := range h.Species {
			names = append(names, "I_R("+sp+")")
		}
	}
	if h.Cfg.PlotConsumption {
		for _, sp := range h.Cfg.ConsumptionNames {
			names = append(names, sp+consumptionSuffix)
		}
	}
	if h.Cfg.PlotHeatRelease {
		names = append(names, "HeatRelease")
	}
	return
}

/*
Derive returns a single component MultiFab of the named quantity on level lev, computed
from the new time data. Recognized names are the state components, divu, rhoRT, FuncCount,
HeatRelease, X(<species>), I_R(<species>) and <species>ConsumptionRate.
*/
func (h *Hierarchy) Derive(lev int, name string) (mf *grid2D.MultiFab, err error) {
	var (
		ls = h.Levels[lev].LevelState
		l  = h.Layout
	)
	mf = grid2D.NewMultiFab(ls.BA, 1, 0, ls.nPar)
	for c, n := range l.ComponentNames(h.Species) {
		if n == name {
			mf.Copy(ls.New, c, 0, 1, 0)
			return
		}
	}
	switch {
	case name == "divu":
		mf.Copy(ls.DivuNew, 0, 0, 1, 0)
	case name == "rhoRT":
		mf.Copy(ls.New, l.RhoRT, 0, 1, 0)
	case name == "FuncCount":
		mf.Copy(ls.FuncCount, 0, 0, 1, 0)
	case name == "HeatRelease":
		h.heatRelease(ls, mf)
	case strings.HasPrefix(name, moleFracPrefix) && strings.HasSuffix(name, ")"):
		k := h.Chem.SpeciesIndex(strings.TrimSuffix(strings.TrimPrefix(name, moleFracPrefix), ")"))
		if k < 0 {
			return nil, fmt.Errorf("unknown species in %q", name)
		}
		h.moleFraction(ls, k, mf)
	case strings.HasPrefix(name, "I_R(") && strings.HasSuffix(name, ")"):
		k := h.Chem.SpeciesIndex(strings.TrimSuffix(strings.TrimPrefix(name, "I_R("), ")"))
		if k < 0 {
			return nil, fmt.Errorf("unknown species in %q", name)
		}
		mf.Copy(ls.RhoYdot, k, 0, 1, 0)
	case strings.HasSuffix(name, consumptionSuffix):
		k := h.Chem.SpeciesIndex(strings.TrimSuffix(name, consumptionSuffix))
		if k < 0 {
			return nil, fmt.Errorf("unknown species in %q", name)
		}
		mf.LinComb(-1, ls.RhoYdot, k, 0, ls.RhoYdot, k, 0, 1, 0)
	default:
		return nil, fmt.Errorf("no derived quantity named %q", name)
	}
	return
}

// heatRelease sets -sum_k h_k(T) I_R,k
func (h *Hierarchy) heatRelease(ls *LevelState, out *grid2D.MultiFab) {
	l := h.Layout
	_ = out.ForEachPatch(func(p int, ofab *grid2D.FArray) error {
		var (
			sfab, rfab = ls.New.Fabs[p], ls.RhoYdot.Fabs[p]
			hk         = make([]float64, l.NSpec)
		)
		ofab.Box.ForEach(func(i, j int) {
			h.Chem.SpeciesEnthalpies(sfab.Get(i, j, l.Temp), hk)
			var q float64
			for k := 0; k < l.NSpec; k++ {
				q -= hk[k] * rfab.Get(i, j, k)
			}
			ofab.Set(i, j, 0, q)
		})
		return nil
	})
}

func (h *Hierarchy) moleFraction(ls *LevelState, k int, out *grid2D.MultiFab) {
	var (
		l = h.Layout
		W = h.Chem.MolecularWeights()
	)
	_ = out.ForEachPatch(func(p int, ofab *grid2D.FArray) error {
		var (
			sfab = ls.New.Fabs[p]
			Y    = make([]float64, l.NSpec)
		)
		ofab.Box.ForEach(func(i, j int) {
			rho := sfab.Get(i, j, l.Density)
			for n := range Y {
				Y[n] = sfab.Get(i, j, l.Spec(n)) / rho
			}
			ofab.Set(i, j, 0, Y[k]*h.Chem.MeanMolecularWeight(Y)/W[k])
		})
		return nil
	})
}

// IntegratedQuantities are volume integrals over the region not covered by a finer level
type IntegratedQuantities struct {
	Mass            float64
	RhoH            float64
	FuelConsumption float64
}

func SumIntegratedQuantities(h *Hierarchy) (iq IntegratedQuantities) {
	var (
		l    = h.Layout
		fuel = h.Chem.SpeciesIndex(h.Cfg.FuelName)
	)
	for lev, lv := range h.Levels {
		keep := func(i, j int) bool { return true }
		if lev < h.FinestLevel() {
			covered := grid2D.CoveredMask(h.Levels[lev+1].BA, h.RefRatio)
			keep = func(i, j int) bool { return !covered(i, j) }
		}
		vol := lv.Geom.CellVolume()
		iq.Mass += vol * lv.New.SumMasked(l.Density, keep)
		iq.RhoH += vol * lv.New.SumMasked(l.RhoH, keep)
		if fuel >= 0 {
			iq.FuelConsumption -= vol * lv.RhoYdot.SumMasked(fuel, keep)
		}
	}
	return
}

func (iq IntegratedQuantities) Log(step int, time float64) {
	log.Infof("step %d: t = %.6e, mass = %.10e, rhoh = %.10e, fuel consumption = %.6e",
		step, time, iq.Mass, iq.RhoH, iq.FuelConsumption)
}
