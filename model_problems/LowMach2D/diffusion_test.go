package LowMach2D

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
	"github.com/notargets/golowmach/linsolve"
	"github.com/notargets/golowmach/types"
)

func TestAdjustSpecDiffusionFluxes(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 200; trial++ {
		var (
			ns    = 2 + rng.Intn(8)
			gamma = make([]float64, ns)
			yEdge = make([]float64, ns)
			scale float64
		)
		for k := range gamma {
			// Diffusivities spanning several decades
			gamma[k] = (rng.Float64() - 0.5) * math.Pow(10, 4*rng.Float64()-2)
			yEdge[k] = rng.Float64() - 0.1
			scale += math.Abs(gamma[k])
		}
		if trial%10 == 0 {
			for k := range yEdge {
				yEdge[k] = -rng.Float64()
			}
		}
		net := AdjustSpecDiffusionFluxes(gamma, yEdge)
		var sum float64
		for _, g := range gamma {
			sum += g
		}
		assert.InDelta(t, 0, sum, 1e-12*scale)
		assert.Equal(t, sum, net)
	}
	{ // Species absent from the edge keep their flux
		gamma := []float64{1, -3, 0.5}
		AdjustSpecDiffusionFluxes(gamma, []float64{0.5, 0.5, 0})
		assert.Equal(t, 0.5, gamma[2])
		assert.InDelta(t, 1.75, gamma[0], 1e-15)
		assert.InDelta(t, -2.25, gamma[1], 1e-15)
	}
}

// stratified is a periodic field of varying composition and temperature
func stratified(length float64) mixtureFunc {
	return func(x, y float64) (float64, float64, float64, []float64) {
		var (
			sx = math.Sin(2 * math.Pi * x / length)
			cy = math.Cos(2 * math.Pi * y / length)
			yF = 0.03 + 0.02*sx*cy
			yP = 0.1 + 0.05*cy
		)
		return 0, 0, 900 + 400*sx + 200*cy, []float64{yF, 0.2, yP, 0.8 - yF - yP}
	}
}

func newDiffusionLevel(cfg *Config, chem chemistry.ChemDriver, lo, hi [2]types.BCFLAG) (ls *LevelState, de *DiffusionEngine) {
	var (
		l      = NewStateLayout(chem.NumSpecies())
		length = 1e-2
		geom   = testGeom(16, length, lo, hi)
		ba     = grid2D.ChopDomain(geom.Domain, 8)
	)
	ls = NewLevelState(0, geom, ba, l, 2)
	setMixture(ls.New, geom, l, chem, 101325, 0, stratified(length))
	ls.New.FillBoundary(geom, 0, l.NComp)
	ls.New.FillDomainBoundary(geom, 0, l.NComp, l.Xvel)
	tv := NewTypicalValues(l, chem.SpeciesNames())
	tv.Reset(ls.New)
	de = NewDiffusionEngine(cfg, chem, linsolve.NewCGSolver(1e-12, 0), l, tv)
	return
}

func TestComputeDifferentialDiffusionFluxes(t *testing.T) {
	chem := chemistry.DefaultMechanism()
	for _, useWbar := range []bool{false, true} {
		var (
			cfg = testConfig()
		)
		cfg.UseWbar = useWbar
		cfg.CheckMassConservation = true
		ls, de := newDiffusionLevel(cfg, chem, periodic, periodic)
		var (
			l  = ls.Layout
			nf = l.NFlux()
			D  = grid2D.NewMultiFab(ls.BA, nf, 0, 2)
		)
		require.NoError(t, de.ComputeDifferentialDiffusionFluxes(ls.New, ls.Geom, ls.SpecDiffusionFluxn,
			ls.SpecDiffusionFluxWbar, D))
		{ // Species fluxes carry no net mass on any face
			for d := 0; d < 2; d++ {
				for _, fab := range ls.SpecDiffusionFluxn[d].Fabs {
					fab.Box.ForEach(func(i, j int) {
						var sum, scale float64
						for k := 0; k < l.NSpec; k++ {
							g := fab.Get(i, j, l.FluxSpec(k))
							sum += g
							scale += math.Abs(g)
						}
						assert.InDelta(t, 0, sum, 1e-12*scale+1e-300)
						assert.Equal(t, sum, fab.Get(i, j, 0))
					})
				}
			}
		}
		{ // Divergences integrate to zero on a periodic domain
			for n := 0; n < nf; n++ {
				var abs float64
				for _, fab := range D.Fabs {
					fab.Box.ForEach(func(i, j int) { abs += math.Abs(fab.Get(i, j, n)) })
				}
				assert.InDelta(t, 0, D.Sum(n), 1e-10*abs+1e-300)
			}
			assert.Greater(t, D.NormInf(l.FluxSpec(0)), 0.)
			assert.Greater(t, D.NormInf(l.FluxRhoH()), 0.)
		}
		if useWbar {
			assert.Greater(t, ls.SpecDiffusionFluxWbar[0].NormInf(l.FluxSpec(0)), 0.)
		} else {
			assert.Equal(t, 0., ls.SpecDiffusionFluxWbar[0].NormInf(l.FluxSpec(0)))
		}
	}
	{ // Walls carry no diffusive flux
		wall := [2]types.BCFLAG{types.BC_Wall, types.BC_Wall}
		ls, de := newDiffusionLevel(testConfig(), chem, wall, wall)
		D := grid2D.NewMultiFab(ls.BA, ls.Layout.NFlux(), 0, 2)
		require.NoError(t, de.ComputeDifferentialDiffusionFluxes(ls.New, ls.Geom, ls.SpecDiffusionFluxn,
			ls.SpecDiffusionFluxWbar, D))
		for d := 0; d < 2; d++ {
			for _, fab := range ls.SpecDiffusionFluxn[d].Fabs {
				fab.Box.ForEach(func(i, j int) {
					if _, onBoundary := ls.Geom.FaceBC(d, i, j); onBoundary {
						for n := 0; n < ls.Layout.NFlux(); n++ {
							assert.Equal(t, 0., fab.Get(i, j, n))
						}
					}
				})
			}
		}
	}
}

func TestDifferentialDiffusionUpdate(t *testing.T) {
	chem := chemistry.DefaultMechanism()
	for _, hackNoSpecDiff := range []bool{false, true} {
		var (
			cfg = testConfig()
			dt  = 1e-4
		)
		cfg.HackNoSpecDiff = hackNoSpecDiff
		cfg.UnityLe = true
		ls, de := newDiffusionLevel(cfg, chem, periodic, periodic)
		var (
			l   = ls.Layout
			nf  = l.NFlux()
			rhs = grid2D.NewMultiFab(ls.BA, nf, 0, 2)
			old = ls.New.Clone()
		)
		for c := 0; c < nf; c++ {
			rhs.Copy(ls.New, l.StateComp(c), c, 1, 0)
		}
		iters, err := de.DifferentialDiffusionUpdate(ls, rhs, dt)
		require.NoError(t, err)
		assert.Greater(t, iters, 0)
		{ // Conserved totals are unchanged and rho is the species sum
			for c := 0; c < nf; c++ {
				comp := l.StateComp(c)
				assert.InEpsilon(t, old.Sum(comp), ls.New.Sum(comp), 1e-12)
			}
			for _, fab := range ls.New.Fabs {
				fab.Box.ForEach(func(i, j int) {
					var rho float64
					for k := 0; k < l.NSpec; k++ {
						rho += fab.Get(i, j, l.Spec(k))
					}
					assert.InEpsilon(t, rho, fab.Get(i, j, l.Density), 1e-14)
				})
			}
		}
		{ // DiffHat is the update divided by dt
			for _, k := range []int{0, 2} {
				var (
					fc   = l.FluxSpec(k)
					sc   = l.Spec(k)
					diff = 0.
				)
				for p, fab := range ls.New.Fabs {
					fab.Box.ForEach(func(i, j int) {
						want := (fab.Get(i, j, sc) - old.Fabs[p].Get(i, j, sc)) / dt
						diff = math.Max(diff, math.Abs(want-ls.DiffHat.Fabs[p].Get(i, j, fc)))
					})
				}
				assert.Less(t, diff, 1e-8*math.Max(ls.DiffHat.NormInf(fc), 1))
			}
		}
		{ // Diffusion contracts the range of h and of the mass fractions
			assert.Less(t, specificRange(ls.New, l.RhoH, l), specificRange(old, l.RhoH, l))
			if hackNoSpecDiff {
				for k := 0; k < l.NSpec; k++ {
					assert.Equal(t, 0., ls.DiffHat.NormInf(l.FluxSpec(k)))
				}
			} else {
				assert.Less(t, specificRange(ls.New, l.Spec(0), l), specificRange(old, l.Spec(0), l))
			}
		}
	}
}

// specificRange returns max - min of comp divided by density over the valid cells
func specificRange(state *grid2D.MultiFab, comp int, l StateLayout) float64 {
	var (
		lo = math.Inf(1)
		hi = math.Inf(-1)
	)
	for _, fab := range state.Fabs {
		fab.Box.ForEach(func(i, j int) {
			v := fab.Get(i, j, comp) / fab.Get(i, j, l.Density)
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		})
	}
	return hi - lo
}
