package LowMach2D

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
)

// failingChem rejects every integration
type failingChem struct {
	*chemistry.Mechanism
}

func (failingChem) Integrate(cell *chemistry.CellState, force []float64, dt float64,
	tol chemistry.Tolerances) (int, error) {
	cell.RhoY[0] = math.NaN()
	return 3, chemistry.ErrNewtonFailed
}

type reactFixture struct {
	l                      StateLayout
	old, next, force, fcnt *grid2D.MultiFab
}

func newReactFixture(chem chemistry.ChemDriver, T float64) (rf *reactFixture) {
	var (
		l    = NewStateLayout(chem.NumSpecies())
		geom = testGeom(4, 1e-2, periodic, periodic)
		ba   = grid2D.ChopDomain(geom.Domain, 2)
	)
	rf = &reactFixture{
		l:     l,
		old:   grid2D.NewMultiFab(ba, l.NComp, NGrowState, 2),
		next:  grid2D.NewMultiFab(ba, l.NComp, NGrowState, 2),
		force: grid2D.NewMultiFab(ba, l.NFlux(), 0, 2),
		fcnt:  grid2D.NewMultiFab(ba, 1, 0, 2),
	}
	setMixture(rf.old, geom, l, chem, 101325, 0, uniformMixture(T, premixedY()))
	rf.next.Copy(rf.old, 0, 0, l.NComp, 0)
	return
}

func TestAdvanceChemistry(t *testing.T) {
	var (
		mech = chemistry.DefaultMechanism()
		dt   = 2e-4
	)
	{ // Stiff integration conserves mass and releases heat
		var (
			cfg = testConfig()
			rf  = newReactFixture(mech, 1500)
			l   = rf.l
			ca  = NewChemistryAdapter(cfg, mech, l, NewTypicalValues(l, mech.SpeciesNames()))
		)
		cfg.FloorSpecies = true
		stats := ca.AdvanceChemistry(rf.old, rf.next, rf.force, rf.fcnt, dt)
		assert.Equal(t, 0, stats.Failures)
		assert.Greater(t, stats.FuncEvals, 0)
		assert.InDelta(t, float64(stats.FuncEvals), rf.fcnt.Sum(0), 1e-9)
		rhoYdot := grid2D.NewMultiFab(rf.old.BA, l.NSpec, 0, 2)
		ReactionTerm(rhoYdot, rf.old, rf.next, rf.force, l, dt)
		for p, fab := range rf.next.Fabs {
			ofab := rf.old.Fabs[p]
			fab.Box.ForEach(func(i, j int) {
				var sumY float64
				for _, y := range massFractions(fab, l, i, j) {
					assert.GreaterOrEqual(t, y, 0.)
					sumY += y
				}
				assert.InDelta(t, 1, sumY, 1e-10)
				assert.InEpsilon(t, ofab.Get(i, j, l.Density), fab.Get(i, j, l.Density), 1e-10)
				assert.Less(t, fab.Get(i, j, l.Spec(0)), ofab.Get(i, j, l.Spec(0)))
				assert.Greater(t, fab.Get(i, j, l.Temp), 1500.)
				assert.InEpsilon(t, ofab.Get(i, j, l.RhoH), fab.Get(i, j, l.RhoH), 1e-10)
				var net, scale float64
				for k := 0; k < l.NSpec; k++ {
					net += rhoYdot.Fabs[p].Get(i, j, k)
					scale += math.Abs(rhoYdot.Fabs[p].Get(i, j, k))
				}
				assert.Greater(t, scale, 0.)
				assert.InDelta(t, 0, net, 1e-8*scale)
			})
		}
	}
	{ // hack_nochem advances by the forcing only
		var (
			cfg = testConfig()
			rf  = newReactFixture(mech, 1500)
			l   = rf.l
			ca  = NewChemistryAdapter(cfg, mech, l, NewTypicalValues(l, mech.SpeciesNames()))
		)
		cfg.HackNoChem = true
		rf.force.SetVal(10, l.FluxSpec(0), 1)
		rf.force.SetVal(-10, l.FluxSpec(3), 1)
		rf.force.SetVal(1e5, l.FluxRhoH(), 1)
		stats := ca.AdvanceChemistry(rf.old, rf.next, rf.force, rf.fcnt, dt)
		assert.Equal(t, 0, stats.FuncEvals)
		for p, fab := range rf.next.Fabs {
			ofab := rf.old.Fabs[p]
			fab.Box.ForEach(func(i, j int) {
				assert.InDelta(t, ofab.Get(i, j, l.Spec(0))+10*dt, fab.Get(i, j, l.Spec(0)), 1e-14)
				assert.InDelta(t, ofab.Get(i, j, l.Spec(3))-10*dt, fab.Get(i, j, l.Spec(3)), 1e-14)
				assert.InDelta(t, ofab.Get(i, j, l.Spec(1)), fab.Get(i, j, l.Spec(1)), 1e-14)
				assert.InEpsilon(t, ofab.Get(i, j, l.RhoH)+1e5*dt, fab.Get(i, j, l.RhoH), 1e-12)
				assert.InEpsilon(t, ofab.Get(i, j, l.Density), fab.Get(i, j, l.Density), 1e-12)
			})
		}
		R := grid2D.NewMultiFab(rf.old.BA, l.NFlux(), 0, 2)
		R.SetVal(1, 0, l.NFlux())
		ca.ComputeInstantaneousReactionRates(rf.old, R)
		for n := 0; n < l.NFlux(); n++ {
			assert.Equal(t, 0., R.NormInf(n))
		}
	}
	{ // A failed cell falls back to the floored forcing only update
		var (
			cfg  = testConfig()
			chem = failingChem{mech}
			rf   = newReactFixture(chem, 1500)
			l    = rf.l
			ca   = NewChemistryAdapter(cfg, chem, l, NewTypicalValues(l, mech.SpeciesNames()))
		)
		// Removes twice the available oxidizer
		_ = rf.force.ForEachPatch(func(p int, fab *grid2D.FArray) error {
			ofab := rf.old.Fabs[p]
			fab.Box.ForEach(func(i, j int) {
				fab.Set(i, j, l.FluxSpec(1), -2*ofab.Get(i, j, l.Spec(1))/dt)
			})
			return nil
		})
		stats := ca.AdvanceChemistry(rf.old, rf.next, rf.force, rf.fcnt, dt)
		assert.Equal(t, rf.old.BA.NumPts(), stats.Failures)
		for p, fab := range rf.next.Fabs {
			ofab := rf.old.Fabs[p]
			fab.Box.ForEach(func(i, j int) {
				assert.Equal(t, 0., fab.Get(i, j, l.Spec(1)))
				assert.Equal(t, ofab.Get(i, j, l.Spec(0)), fab.Get(i, j, l.Spec(0)))
				var rho float64
				for k := 0; k < l.NSpec; k++ {
					rho += fab.Get(i, j, l.Spec(k))
				}
				assert.Equal(t, rho, fab.Get(i, j, l.Density))
				T := fab.Get(i, j, l.Temp)
				assert.False(t, math.IsNaN(T))
				assert.GreaterOrEqual(t, T, cfg.TempMin)
				assert.LessOrEqual(t, T, cfg.TempMax)
			})
		}
	}
}
