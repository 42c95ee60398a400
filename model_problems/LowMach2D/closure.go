package LowMach2D

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
)

const (
	closureMaxIter = 100
	closureTol     = 1e-10
)

// TempFromEnthalpy solves h(T, Y) = h for T inside [tMin, tMax]. A Newton step that leaves
// the current bracket is replaced by bisection. When h lies outside [h(tMin), h(tMax)] the
// temperature is clipped to the violated bound.
func TempFromEnthalpy(chem chemistry.ChemDriver, h float64, Y []float64,
	guess, tMin, tMax float64) (T float64, iters int, clipped bool) {
	var (
		a, b = tMin, tMax
		tol  = closureTol * math.Max(math.Abs(h), 1)
	)
	if math.IsNaN(h) {
		return tMin, 0, true
	}
	if h <= chem.MixtureEnthalpy(tMin, Y) {
		return tMin, 0, true
	}
	if h >= chem.MixtureEnthalpy(tMax, Y) {
		return tMax, 0, true
	}
	T = guess
	if !(T > a && T < b) {
		T = 0.5 * (a + b)
	}
	for iters = 1; iters <= closureMaxIter; iters++ {
		f := chem.MixtureEnthalpy(T, Y) - h
		if math.Abs(f) <= tol {
			return
		}
		// h is monotone increasing in T
		if f > 0 {
			b = T
		} else {
			a = T
		}
		Tn := T - f/chem.MixtureCp(T, Y)
		if !(Tn > a && Tn < b) {
			Tn = 0.5 * (a + b)
		}
		if b-a < closureTol*T {
			T = Tn
			return
		}
		T = Tn
	}
	return
}

type ClosureStats struct {
	Clipped int
	MaxIter int
	MinT    float64
	MaxT    float64
}

func (cs *ClosureStats) merge(o ClosureStats) {
	cs.Clipped += o.Clipped
	cs.MaxIter = max(cs.MaxIter, o.MaxIter)
	cs.MinT = math.Min(cs.MinT, o.MinT)
	cs.MaxT = math.Max(cs.MaxT, o.MaxT)
}

func newClosureStats() ClosureStats {
	return ClosureStats{MinT: math.Inf(1), MaxT: math.Inf(-1)}
}

/*
RhoHToTemp recovers the temperature of every cell of state, over the valid region grown by
nGrow, from rho*h and the species partial densities. The current temperature is the initial
guess. Cells without mass are skipped. The pressure diagnostic RhoRT is updated alongside.
*/
func RhoHToTemp(state *grid2D.MultiFab, layout StateLayout, chem chemistry.ChemDriver,
	tMin, tMax float64, nGrow int) (stats ClosureStats) {
	var (
		partials = make([]ClosureStats, len(state.Fabs))
		ns       = layout.NSpec
		W        = chem.MolecularWeights()
		R        = chem.RUniversal()
	)
	_ = state.ForEachPatch(func(p int, fab *grid2D.FArray) error {
		var (
			Y  = make([]float64, ns)
			st = newClosureStats()
		)
		fab.Box.Grow(nGrow).ForEach(func(i, j int) {
			rho := fab.Get(i, j, layout.Density)
			if !(rho > 0) {
				return
			}
			for k := 0; k < ns; k++ {
				Y[k] = fab.Get(i, j, layout.Spec(k)) / rho
			}
			T, iters, clipped := TempFromEnthalpy(chem, fab.Get(i, j, layout.RhoH)/rho, Y,
				fab.Get(i, j, layout.Temp), tMin, tMax)
			fab.Set(i, j, layout.Temp, T)
			var invW float64
			for k := 0; k < ns; k++ {
				invW += Y[k] / W[k]
			}
			fab.Set(i, j, layout.RhoRT, rho*R*T*invW)
			if clipped {
				st.Clipped++
			}
			st.MaxIter = max(st.MaxIter, iters)
			st.MinT = math.Min(st.MinT, T)
			st.MaxT = math.Max(st.MaxT, T)
		})
		partials[p] = st
		return nil
	})
	stats = newClosureStats()
	for _, st := range partials {
		stats.merge(st)
	}
	if stats.Clipped > 0 {
		log.Warnf("closure: %d cells clipped to [%g, %g] K (%v)", stats.Clipped, tMin, tMax, ErrTemperatureOutOfBounds)
	}
	return
}

// TemperatureStats returns the extreme temperatures over the valid cells of a level
func TemperatureStats(state *grid2D.MultiFab, layout StateLayout) (tMin, tMax float64) {
	return state.Min(layout.Temp), state.Max(layout.Temp)
}
