package grid2D

import (
	"github.com/notargets/golowmach/types"
)

// FillDomainBoundary fills ghost cells that lie outside non periodic domain faces.
// velComp is the component index of the x velocity inside [comp, comp+nComp), the y
// velocity follows it; pass -1 when the range holds no velocity. The x direction is
// filled first so that corner ghosts are mirrored from already filled x ghosts.
func (mf *MultiFab) FillDomainBoundary(geom *Geometry, comp, nComp, velComp int) {
	if mf.FaceDir >= 0 {
		panic("FillDomainBoundary is defined for cell centered data only")
	}
	mf.forEachPatch(func(p int, fab *FArray) {
		for d := 0; d < 2; d++ {
			if geom.IsPeriodic(d) {
				continue
			}
			for _, side := range []types.Side{types.Lo, types.Hi} {
				bc := geom.BC[d][side]
				for n := comp; n < comp+nComp; n++ {
					fillSide(fab, geom.Domain, d, side, n, ghostParity(bc, d, n, velComp))
				}
			}
		}
	})
}

type parity uint8

const (
	even parity = iota
	odd
	extrap
)

func ghostParity(bc types.BCFLAG, d, n, velComp int) parity {
	var (
		isVel    = velComp >= 0 && (n == velComp || n == velComp+1)
		isNormal = isVel && n-velComp == d
	)
	switch bc {
	case types.BC_Outflow:
		return extrap
	case types.BC_Wall:
		if isVel {
			return odd
		}
	case types.BC_Slip, types.BC_Symmetry:
		if isNormal {
			return odd
		}
	}
	return even
}

func fillSide(fab *FArray, domain Box, d int, side types.Side, n int, par parity) {
	var (
		t      = 1 - d
		tLo    = fab.GBox.Lo[t]
		tHi    = fab.GBox.Hi[t]
		edge   int
		outDir int
	)
	if side == types.Lo {
		edge, outDir = domain.Lo[d], -1
		if fab.GBox.Lo[d] >= edge {
			return
		}
	} else {
		edge, outDir = domain.Hi[d], 1
		if fab.GBox.Hi[d] <= edge {
			return
		}
	}
	idx := func(along, across int) (i, j int) {
		if d == 0 {
			return along, across
		}
		return across, along
	}
	for m := 1; ; m++ {
		g := edge + outDir*m
		if g < fab.GBox.Lo[d] || g > fab.GBox.Hi[d] {
			break
		}
		src := edge - outDir*(m-1)
		if par == extrap {
			src = edge
		}
		for c := tLo; c <= tHi; c++ {
			gi, gj := idx(g, c)
			si, sj := idx(src, c)
			v := fab.Get(si, sj, n)
			if par == odd {
				v = -v
			}
			fab.Set(gi, gj, n, v)
		}
	}
}
