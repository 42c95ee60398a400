package LowMach2D

import (
	"os"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
	"github.com/notargets/golowmach/types"
)

func TestMain(m *testing.M) {
	log.SetLevel(log.WarnLevel)
	os.Exit(m.Run())
}

var periodic = [2]types.BCFLAG{types.BC_Periodic, types.BC_Periodic}

func testGeom(n int, length float64, lo, hi [2]types.BCFLAG) *grid2D.Geometry {
	return grid2D.NewGeometry(grid2D.NewBox([2]int{0, 0}, [2]int{n - 1, n - 1}),
		[2]float64{0, 0}, [2]float64{length, length}, types.NewDomainBC(lo, hi))
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.ParallelDegree = 2
	return &cfg
}

type mixtureFunc func(x, y float64) (u, v, T float64, Y []float64)

// setMixture fills state over the valid region grown by nGrow with an isobaric mixture at p0
func setMixture(state *grid2D.MultiFab, geom *grid2D.Geometry, l StateLayout, chem chemistry.ChemDriver,
	p0 float64, nGrow int, f mixtureFunc) {
	R := chem.RUniversal()
	for _, fab := range state.Fabs {
		fab.Box.Grow(nGrow).ForEach(func(i, j int) {
			u, v, T, Y := f(geom.CellCenter(i, j))
			rho := p0 * chem.MeanMolecularWeight(Y) / (R * T)
			fab.Set(i, j, l.Xvel, u)
			fab.Set(i, j, l.Yvel, v)
			fab.Set(i, j, l.Density, rho)
			for k := range Y {
				fab.Set(i, j, l.Spec(k), rho*Y[k])
			}
			fab.Set(i, j, l.RhoH, rho*chem.MixtureEnthalpy(T, Y))
			fab.Set(i, j, l.Temp, T)
			fab.Set(i, j, l.RhoRT, p0)
		})
	}
}

func uniformMixture(T float64, Y []float64) mixtureFunc {
	return func(x, y float64) (float64, float64, float64, []float64) {
		return 0, 0, T, Y
	}
}

// premixedY is a lean fuel/oxidizer mixture in nitrogen
func premixedY() []float64 {
	return []float64{0.05, 0.2, 0, 0.75}
}

// massFractions returns Y of one cell
func massFractions(fab *grid2D.FArray, l StateLayout, i, j int) (Y []float64) {
	rho := fab.Get(i, j, l.Density)
	Y = make([]float64, l.NSpec)
	for k := range Y {
		Y[k] = fab.Get(i, j, l.Spec(k)) / rho
	}
	return
}
