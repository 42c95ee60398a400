package linsolve

import (
	"github.com/james-bowman/sparse"

	"github.com/notargets/golowmach/grid2D"
	"github.com/notargets/golowmach/types"
)

// cellIndexer numbers the valid cells of a level, patch by patch, i fastest
type cellIndexer struct {
	geom    *grid2D.Geometry
	ba      grid2D.BoxArray
	offsets []int
	N       int
}

func newCellIndexer(geom *grid2D.Geometry, ba grid2D.BoxArray) (ci *cellIndexer) {
	ci = &cellIndexer{
		geom:    geom,
		ba:      ba,
		offsets: make([]int, len(ba)+1),
	}
	for p, b := range ba {
		ci.offsets[p+1] = ci.offsets[p] + b.NumPts()
	}
	ci.N = ci.offsets[len(ba)]
	return
}

func (ci *cellIndexer) Row(p, i, j int) int {
	b := ci.ba[p]
	return ci.offsets[p] + (i - b.Lo[0]) + b.Length(0)*(j-b.Lo[1])
}

// neighbor classifies the cell (i,j) as seen from inside the level
type neighborKind uint8

const (
	valid neighborKind = iota
	physical
	coarseFine
)

func (ci *cellIndexer) neighbor(i, j int) (kind neighborKind, row int) {
	iw, jw, ok := ci.geom.PeriodicWrap(i, j)
	if !ok {
		return physical, -1
	}
	if p := ci.ba.Find(iw, jw); p >= 0 {
		return valid, ci.Row(p, iw, jw)
	}
	return coarseFine, -1
}

// Gather copies comp of the valid cells of mf into a vector
func (ci *cellIndexer) Gather(mf *grid2D.MultiFab, comp int, v []float64) {
	for p, fab := range mf.Fabs {
		fab.Box.ForEach(func(i, j int) {
			v[ci.Row(p, i, j)] = fab.Get(i, j, comp)
		})
	}
}

// Scatter is the inverse of Gather
func (ci *cellIndexer) Scatter(v []float64, mf *grid2D.MultiFab, comp int) {
	for p, fab := range mf.Fabs {
		fab.Box.ForEach(func(i, j int) {
			fab.Set(i, j, comp, v[ci.Row(p, i, j)])
		})
	}
}

// operator is an assembled symmetric system with its Jacobi diagonal
type operator struct {
	A        *sparse.CSR
	diag     []float64
	rhsShift []float64 // contribution of Dirichlet ghost data, moved to the right hand side
	singular bool
}

type faceRule func(bc types.BCFLAG) (dirichlet bool)

/*
assemble builds

	acoef*phi + sum_faces c_f (phi - phi_nb)

with c_f = bcoef*beta_f/dx^2. Neighbors are valid cells (coupled), coarse/fine ghosts
(Dirichlet from the ghost cell value of phi), or physical boundaries handled by rule:
face Dirichlet zero contributes 2*c_f to the diagonal, Neumann contributes nothing.
*/
func assemble(ci *cellIndexer, phi *grid2D.MultiFab, pcomp int,
	acoef func(p, i, j int) float64, bcoef float64, beta grid2D.EdgeMultiFabs, bcomp int,
	rule faceRule) (op *operator) {
	var (
		geom     = ci.geom
		dok      = sparse.NewDOK(ci.N, ci.N)
		anchored bool
	)
	op = &operator{
		diag:     make([]float64, ci.N),
		rhsShift: make([]float64, ci.N),
	}
	for p, fab := range phi.Fabs {
		fab.Box.ForEach(func(i, j int) {
			var (
				row  = ci.Row(p, i, j)
				diag = acoef(p, i, j)
			)
			if diag != 0 {
				anchored = true
			}
			for d := 0; d < 2; d++ {
				for _, dir := range []int{-1, 1} {
					var (
						ni, nj = i, j
						fi, fj = i, j
					)
					if d == 0 {
						ni += dir
						if dir > 0 {
							fi++
						}
					} else {
						nj += dir
						if dir > 0 {
							fj++
						}
					}
					c := bcoef / (geom.Dx[d] * geom.Dx[d])
					if beta[d] != nil {
						c *= beta[d].Fabs[p].Get(fi, fj, bcomp)
					}
					kind, col := ci.neighbor(ni, nj)
					switch kind {
					case valid:
						diag += c
						dok.Set(row, col, dok.At(row, col)-c)
					case coarseFine:
						diag += c
						op.rhsShift[row] += c * fab.Get(ni, nj, pcomp)
						anchored = true
					case physical:
						bc, _ := geom.FaceBC(d, fi, fj)
						if rule(bc) {
							diag += 2 * c
							anchored = true
						}
					}
				}
			}
			dok.Set(row, row, dok.At(row, row)+diag)
			op.diag[row] = dok.At(row, row)
		})
	}
	op.A = dok.ToCSR()
	op.singular = !anchored
	return
}

// fillGhosts fills one layer of ghost cells of phi after a solve: neighbours on the level
// by exchange, physical faces by reflection (odd for face Dirichlet, even for Neumann).
// Coarse/fine ghosts keep the Dirichlet data they carried into the solve.
func fillGhosts(phi *grid2D.MultiFab, geom *grid2D.Geometry, comp int, rule faceRule) {
	phi.FillBoundary(geom, comp, 1)
	_ = phi.ForEachPatch(func(p int, fab *grid2D.FArray) error {
		b := fab.Box
		for d := 0; d < 2; d++ {
			if geom.IsPeriodic(d) {
				continue
			}
			for s, edge := range []int{geom.Domain.Lo[d], geom.Domain.Hi[d]} {
				if b.Lo[d] > edge || b.Hi[d] < edge {
					continue
				}
				var (
					ghost = edge - 1
					sign  = 1.
				)
				if s == int(types.Hi) {
					ghost = edge + 1
				}
				if rule(geom.BC[d][s]) {
					sign = -1.
				}
				t := 1 - d
				for c := b.Lo[t]; c <= b.Hi[t]; c++ {
					var gi, ii [2]int
					gi[d], gi[t] = ghost, c
					ii[d], ii[t] = edge, c
					fab.Set(gi[0], gi[1], comp, sign*fab.Get(ii[0], ii[1], comp))
				}
			}
		}
		return nil
	})
}

func neumannOnly(types.BCFLAG) bool { return false }

func outflowDirichlet(bc types.BCFLAG) bool { return bc == types.BC_Outflow }
