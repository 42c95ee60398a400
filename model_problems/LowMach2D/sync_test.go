package LowMach2D

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
	"github.com/notargets/golowmach/types"
)

type twoLevelFixture struct {
	cfg        *Config
	chem       *chemistry.Mechanism
	crse, fine *LevelState
	fr         *grid2D.FluxRegister
	sc         *SyncCoupler
	ratio      int
}

// newTwoLevelFixture covers coarse cells [2,5]x[2,5] of an 8x8 walled box with a fine patch.
// The coarse level holds air at 300 K, the fine level a hotter mixture.
func newTwoLevelFixture() (tf *twoLevelFixture) {
	var (
		wall  = [2]types.BCFLAG{types.BC_Wall, types.BC_Wall}
		cgeom = testGeom(8, 1e-2, wall, wall)
		ratio = 2
		fgeom = cgeom.Refine(ratio)
		cba   = grid2D.ChopDomain(cgeom.Domain, 4)
		fba   = grid2D.BoxArray{grid2D.NewBox([2]int{4, 4}, [2]int{11, 11})}
		chem  = chemistry.DefaultMechanism()
		l     = NewStateLayout(chem.NumSpecies())
	)
	tf = &twoLevelFixture{
		cfg:   testConfig(),
		chem:  chem,
		crse:  NewLevelState(0, cgeom, cba, l, 2),
		fine:  NewLevelState(1, fgeom, fba, l, 1),
		fr:    grid2D.NewFluxRegister(fba, cgeom, ratio, l.NFlux()),
		ratio: ratio,
	}
	tf.sc = NewSyncCoupler(tf.cfg, chem, l)
	setMixture(tf.crse.New, cgeom, l, chem, 101325, 0, uniformMixture(300, premixedY()))
	setMixture(tf.fine.New, fgeom, l, chem, 101325, 0, uniformMixture(900, []float64{0.02, 0.1, 0.2, 0.68}))
	tf.fine.Press.SetVal(3, 0, 1)
	tf.fine.DivuNew.SetVal(-2, 0, 1)
	return
}

// loadMismatch records a coarse x flux of fc and a fine x flux of ff on the fuel component
// over two fine subcycles
func (tf *twoLevelFixture) loadMismatch(t *testing.T, fc, ff, dt float64) {
	var (
		l  = tf.crse.Layout
		nf = l.NFlux()
	)
	tf.fr.Clear()
	tf.crse.AllocEdges()
	tf.fine.AllocEdges()
	tf.crse.EdgeFlux[0].SetVal(fc, l.FluxSpec(0), 1)
	tf.fine.EdgeFlux[0].SetVal(ff, l.FluxSpec(0), 1)
	ceff := grid2D.NewEdgeMultiFabs(tf.crse.BA, nf, 2)
	feff := grid2D.NewEdgeMultiFabs(tf.fine.BA, nf, 1)
	tf.crse.RefluxFlux(ceff)
	tf.fine.RefluxFlux(feff)
	require.NoError(t, tf.fr.CrseInit(ceff, 0, 0, nf, -dt))
	for sub := 0; sub < tf.ratio; sub++ {
		require.NoError(t, tf.fr.FineAdd(feff, 0, 0, nf, dt/float64(tf.ratio)))
	}
}

func closeTo(t *testing.T, want, got float64, msgAndArgs ...interface{}) {
	assert.InDelta(t, want, got, 1e-12*math.Max(math.Abs(want), 1), msgAndArgs...)
}

func TestSyncLevels(t *testing.T) {
	var (
		tf   = newTwoLevelFixture()
		l    = tf.crse.Layout
		dt   = 1e-4
		dx   = tf.crse.Geom.Dx[0]
		fc   = 0.5
		ff   = 0.75
		orig = tf.crse.New.Clone()
	)
	tf.loadMismatch(t, fc, ff, dt)
	require.NoError(t, tf.sc.SyncLevels(tf.crse, tf.fine, tf.fr, tf.ratio))
	assert.Equal(t, grid2D.Cleared, tf.fr.State())
	at := func(mf *grid2D.MultiFab, i, j, n int) float64 {
		return mf.Fabs[mf.BA.Find(i, j)].Get(i, j, n)
	}
	{ // Reflux corrects the fuel of the uncovered neighbours only
		mismatch := (ff - fc) * dt
		closeTo(t, at(orig, 1, 3, l.Spec(0))-mismatch/dx, at(tf.crse.New, 1, 3, l.Spec(0)))
		closeTo(t, at(orig, 6, 4, l.Spec(0))+mismatch/dx, at(tf.crse.New, 6, 4, l.Spec(0)))
		closeTo(t, at(orig, 3, 1, l.Spec(0)), at(tf.crse.New, 3, 1, l.Spec(0)))
		closeTo(t, at(orig, 1, 3, l.Spec(1)), at(tf.crse.New, 1, 3, l.Spec(1)))
	}
	{ // Covered cells take the fine data, temperature follows from the averaged enthalpy
		fineFab := tf.fine.New.Fabs[0]
		for _, n := range []int{l.Density, l.Spec(0), l.RhoH} {
			closeTo(t, fineFab.Get(6, 6, n), at(tf.crse.New, 3, 3, n))
		}
		assert.InDelta(t, 900, at(tf.crse.New, 3, 3, l.Temp), 1e-6)
		closeTo(t, 3, at(tf.crse.Press, 2, 5, 0))
		closeTo(t, -2, at(tf.crse.DivuNew, 5, 2, 0))
		closeTo(t, 0, at(tf.crse.Press, 1, 1, 0))
	}
	{ // Composite fuel mass is conserved
		var (
			covered = grid2D.CoveredMask(tf.fine.BA, tf.ratio)
			keep    = func(i, j int) bool { return !covered(i, j) }
			all     = func(i, j int) bool { return true }
			volC    = tf.crse.Geom.CellVolume()
		)
		before := volC * orig.SumMasked(l.Spec(0), keep)
		after := volC * tf.crse.New.SumMasked(l.Spec(0), keep)
		assert.InDelta(t, before, after, 1e-14)
		fineMass := tf.fine.Geom.CellVolume() * tf.fine.New.SumMasked(l.Spec(0), all)
		assert.InDelta(t, fineMass, volC*tf.crse.New.SumMasked(l.Spec(0), covered), 1e-14)
	}
	{ // A second sync without a new step changes nothing beyond the closure tolerance
		snapshot := tf.crse.New.Clone()
		require.NoError(t, tf.sc.SyncLevels(tf.crse, tf.fine, tf.fr, tf.ratio))
		for p, fab := range tf.crse.New.Fabs {
			fab.Box.ForEach(func(i, j int) {
				for n := 0; n < l.NComp; n++ {
					want := snapshot.Fabs[p].Get(i, j, n)
					assert.InDeltaf(t, want, fab.Get(i, j, n), 1e-9*math.Max(math.Abs(want), 1),
						"comp %d cell (%d,%d)", n, i, j)
				}
			})
		}
	}
	{ // Consuming a register twice without a clear is an error
		tf.loadMismatch(t, fc, ff, dt)
		require.NoError(t, tf.fr.Reflux(tf.crse.New, 0, l.Density, l.NFlux()))
		err := tf.sc.Reflux(tf.crse, tf.fr)
		assert.ErrorIs(t, err, ErrFluxRegisterConsumed)
	}
}

func TestAvgDownChemistryDiagnostics(t *testing.T) {
	for _, avgDownChem := range []bool{false, true} {
		tf := newTwoLevelFixture()
		tf.cfg.AvgDownChem = avgDownChem
		tf.fine.FuncCount.SetVal(8, 0, 1)
		tf.fine.RhoYdot.SetVal(-1.5, 0, tf.fine.Layout.NSpec)
		tf.sc.AvgDown(tf.crse, tf.fine, tf.ratio)
		p := tf.crse.BA.Find(3, 3)
		if avgDownChem {
			assert.Equal(t, 8., tf.crse.FuncCount.Fabs[p].Get(3, 3, 0))
			assert.Equal(t, -1.5, tf.crse.RhoYdot.Fabs[p].Get(3, 3, 2))
		} else {
			assert.Equal(t, 0., tf.crse.FuncCount.Fabs[p].Get(3, 3, 0))
			assert.Equal(t, 0., tf.crse.RhoYdot.Fabs[p].Get(3, 3, 2))
		}
	}
}

func TestClosedChamber(t *testing.T) {
	var (
		chem  = chemistry.DefaultMechanism()
		l     = NewStateLayout(chem.NumSpecies())
		wall  = [2]types.BCFLAG{types.BC_Wall, types.BC_Wall}
		geom  = testGeom(8, 1e-2, wall, wall)
		ba    = grid2D.ChopDomain(geom.Domain, 4)
		st    = grid2D.NewMultiFab(ba, l.NComp, NGrowState, 2)
		S     = grid2D.NewMultiFab(ba, 1, 1, 2)
		theta = grid2D.NewMultiFab(ba, 1, 0, 2)
		p0    = 101325.
		T     = 1200.
		Y     = premixedY()
		qdot  = 2.5e7 // W/m^3
		dt    = 1e-5
		amb   = NewAmbientPressure(p0)
	)
	setMixture(st, geom, l, chem, p0, 0, uniformMixture(T, Y))
	var (
		rho   = p0 * chem.MeanMolecularWeight(Y) / (chem.RUniversal() * T)
		cp    = chem.MixtureCp(T, Y)
		cv    = cp - chem.RUniversal()/chem.MeanMolecularWeight(Y)
		gamma = cp / cv
	)
	// Uniform heat release in a closed box
	S.SetVal(qdot/(rho*cp*T), 0, 1)
	ComputeTheta(st, l, chem, p0, theta)
	closeTo(t, cv/(cp*p0), theta.Max(0))
	dp0dt := amb.ClosedChamberCorrection(S, theta, dt)
	assert.InEpsilon(t, (gamma-1)*qdot, dp0dt, 1e-10)
	assert.InDelta(t, 0, S.NormInf(0), 1e-12*qdot/(rho*cp*T))
	assert.InEpsilon(t, theta.Sum(0)/float64(ba.NumPts()), amb.Thetabar, 1e-14)
	assert.InEpsilon(t, p0+dt*(gamma-1)*qdot, amb.PNew, 1e-12)
	assert.Equal(t, p0, amb.POld)
	amb.PostCoarseTimeStep()
	assert.Equal(t, amb.PNew, amb.POld)
	{ // Finer levels apply the level 0 rate
		Sf := grid2D.NewMultiFab(ba, 1, 0, 1)
		Sf.SetVal(1, 0, 1)
		amb.ApplyDp0dt(Sf, theta)
		closeTo(t, 1-dp0dt*cv/(cp*p0), Sf.Max(0))
	}
}
