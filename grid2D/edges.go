package grid2D

// EdgeMultiFabs holds face centered data, one MultiFab per face normal direction
type EdgeMultiFabs [2]*MultiFab

func NewEdgeMultiFabs(cellBA BoxArray, nComp, nPar int) (e EdgeMultiFabs) {
	for d := 0; d < 2; d++ {
		e[d] = NewFaceMultiFab(cellBA, d, nComp, 0, nPar)
	}
	return
}

func (e EdgeMultiFabs) SetVal(val float64, comp, nComp int) {
	for d := 0; d < 2; d++ {
		e[d].SetVal(val, comp, nComp)
	}
}

// Copy copies nComp components of src starting at scomp into dcomp
func (e EdgeMultiFabs) Copy(src EdgeMultiFabs, scomp, dcomp, nComp int) {
	for d := 0; d < 2; d++ {
		e[d].Copy(src[d], scomp, dcomp, nComp, 0)
	}
}

// Saxpy computes e[dcomp] += a*src[scomp]
func (e EdgeMultiFabs) Saxpy(a float64, src EdgeMultiFabs, scomp, dcomp, nComp int) {
	for d := 0; d < 2; d++ {
		e[d].Saxpy(a, src[d], scomp, dcomp, nComp, 0)
	}
}

// Divergence sets div[dcomp+n] = scale * sum_d (F_hi - F_lo)/dx_d for the valid cells
// of every patch, reading nComp flux components starting at fcomp
func (e EdgeMultiFabs) Divergence(div *MultiFab, geom *Geometry, fcomp, dcomp, nComp int, scale float64) {
	div.forEachPatch(func(p int, fab *FArray) {
		fx, fy := e[0].Fabs[p], e[1].Fabs[p]
		for n := 0; n < nComp; n++ {
			fab.Box.ForEach(func(i, j int) {
				dFx := (fx.Get(i+1, j, fcomp+n) - fx.Get(i, j, fcomp+n)) / geom.Dx[0]
				dFy := (fy.Get(i, j+1, fcomp+n) - fy.Get(i, j, fcomp+n)) / geom.Dx[1]
				fab.Set(i, j, dcomp+n, scale*(dFx+dFy))
			})
		}
	})
}

// FaceNeighbors returns the cell indices on the low and high side of face (i,j) normal to d
func FaceNeighbors(d, i, j int) (il, jl, ih, jh int) {
	if d == 0 {
		return i - 1, j, i, j
	}
	return i, j - 1, i, j
}
