package LowMach2D

import (
	"math"

	"github.com/notargets/golowmach/grid2D"
)

// mcSlope is the monotonized central difference of comp at cell (i,j) in direction d
func mcSlope(fab *grid2D.FArray, comp, d, i, j int) float64 {
	var (
		di, dj = 1, 0
	)
	if d == 1 {
		di, dj = 0, 1
	}
	var (
		c  = fab.Get(i, j, comp)
		dl = c - fab.Get(i-di, j-dj, comp)
		dr = fab.Get(i+di, j+dj, comp) - c
	)
	if dl*dr <= 0 {
		return 0
	}
	dc := 0.5 * (dl + dr)
	return math.Copysign(math.Min(math.Abs(dc), 2*math.Min(math.Abs(dl), math.Abs(dr))), dc)
}

// upwindFaceState reconstructs comp on face (i,j) normal to d from the upwind side
func upwindFaceState(fab *grid2D.FArray, comp, d, i, j int, u float64) float64 {
	il, jl, ih, jh := grid2D.FaceNeighbors(d, i, j)
	if u >= 0 {
		return fab.Get(il, jl, comp) + 0.5*mcSlope(fab, comp, d, il, jl)
	}
	return fab.Get(ih, jh, comp) - 0.5*mcSlope(fab, comp, d, ih, jh)
}

/*
AdvectiveFluxes sets flux[fcomp+n] = umac * phi_face for nComp components of src starting at
scomp. src needs two filled ghost cells.
*/
func AdvectiveFluxes(src *grid2D.MultiFab, scomp, nComp int, umac, flux grid2D.EdgeMultiFabs, fcomp int) {
	for d := 0; d < 2; d++ {
		_ = flux[d].ForEachPatch(func(p int, ffab *grid2D.FArray) error {
			var (
				sfab = src.Fabs[p]
				ufab = umac[d].Fabs[p]
			)
			ffab.Box.ForEach(func(i, j int) {
				u := ufab.Get(i, j, 0)
				for n := 0; n < nComp; n++ {
					if u == 0 {
						ffab.Set(i, j, fcomp+n, 0)
						continue
					}
					ffab.Set(i, j, fcomp+n, u*upwindFaceState(sfab, scomp+n, d, i, j, u))
				}
			})
			return nil
		})
	}
}

// ScalarAdvectiveFluxes fills the flux layout: rhoY_k and rhoh from their face states, rho as
// the sum of the species fluxes
func ScalarAdvectiveFluxes(state *grid2D.MultiFab, l StateLayout, umac, flux grid2D.EdgeMultiFabs) {
	AdvectiveFluxes(state, l.FirstSpec, l.NSpec+1, umac, flux, l.FluxSpec(0))
	for d := 0; d < 2; d++ {
		_ = flux[d].ForEachPatch(func(p int, ffab *grid2D.FArray) error {
			ffab.Box.ForEach(func(i, j int) {
				var rho float64
				for k := 0; k < l.NSpec; k++ {
					rho += ffab.Get(i, j, l.FluxSpec(k))
				}
				ffab.Set(i, j, 0, rho)
			})
			return nil
		})
	}
}

// MacDivergence sets div = div(umac) on valid cells
func MacDivergence(umac grid2D.EdgeMultiFabs, geom *grid2D.Geometry, div *grid2D.MultiFab, dcomp int) {
	umac.Divergence(div, geom, 0, dcomp, 1, 1)
}

/*
VelocityAdvection sets conv (2 components) to the convective term of the velocity in state,

	-(div(umac u) - u div(umac))
*/
func VelocityAdvection(state *grid2D.MultiFab, l StateLayout, umac grid2D.EdgeMultiFabs,
	geom *grid2D.Geometry, conv *grid2D.MultiFab) {
	var (
		nPar = state.Partitions.ParallelDegree
		flux = grid2D.NewEdgeMultiFabs(state.BA, 2, nPar)
		divU = grid2D.NewMultiFabLike(conv, 1, 0)
	)
	AdvectiveFluxes(state, l.Xvel, 2, umac, flux, 0)
	flux.Divergence(conv, geom, 0, 0, 2, -1)
	MacDivergence(umac, geom, divU, 0)
	_ = conv.ForEachPatch(func(p int, cfab *grid2D.FArray) error {
		sfab, dfab := state.Fabs[p], divU.Fabs[p]
		cfab.Box.ForEach(func(i, j int) {
			for n := 0; n < 2; n++ {
				cfab.Add(i, j, n, sfab.Get(i, j, l.Xvel+n)*dfab.Get(i, j, 0))
			}
		})
		return nil
	})
}

// upwindConvection sets conv to -(u.grad)u from cell velocities with first order upwind differences
func upwindConvection(state *grid2D.MultiFab, l StateLayout, geom *grid2D.Geometry, conv *grid2D.MultiFab) {
	_ = conv.ForEachPatch(func(p int, cfab *grid2D.FArray) error {
		sfab := state.Fabs[p]
		cfab.Box.ForEach(func(i, j int) {
			vel := [2]float64{sfab.Get(i, j, l.Xvel), sfab.Get(i, j, l.Yvel)}
			for n := 0; n < 2; n++ {
				var (
					comp = l.Xvel + n
					c    = sfab.Get(i, j, comp)
					sum  float64
				)
				for d := 0; d < 2; d++ {
					var grad float64
					if d == 0 {
						if vel[0] >= 0 {
							grad = c - sfab.Get(i-1, j, comp)
						} else {
							grad = sfab.Get(i+1, j, comp) - c
						}
					} else {
						if vel[1] >= 0 {
							grad = c - sfab.Get(i, j-1, comp)
						} else {
							grad = sfab.Get(i, j+1, comp) - c
						}
					}
					sum += vel[d] * grad / geom.Dx[d]
				}
				cfab.Set(i, j, n, -sum)
			}
		})
		return nil
	})
}

// MaxMacCFL returns max |umac| dt/dx over all faces
func MaxMacCFL(umac grid2D.EdgeMultiFabs, geom *grid2D.Geometry, dt float64) (cfl float64) {
	for d := 0; d < 2; d++ {
		cfl = math.Max(cfl, umac[d].NormInf(0)*dt/geom.Dx[d])
	}
	return
}
