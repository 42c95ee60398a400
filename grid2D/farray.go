package grid2D

import "fmt"

// FArray holds NComp components over a grown box, component-major with i fastest
type FArray struct {
	Box    Box // Valid region
	GBox   Box // Storage region, Box grown by the ghost width
	NComp  int
	Data   []float64
	nx, ny int
}

func NewFArray(box Box, nGrow, nComp int) (fa *FArray) {
	if !box.Ok() {
		panic(fmt.Errorf("cannot allocate FArray on empty box %v", box))
	}
	gb := box.Grow(nGrow)
	fa = &FArray{
		Box:   box,
		GBox:  gb,
		NComp: nComp,
		nx:    gb.Length(0),
		ny:    gb.Length(1),
	}
	fa.Data = make([]float64, fa.nx*fa.ny*nComp)
	return
}

func (fa *FArray) Index(i, j, n int) int {
	return (i - fa.GBox.Lo[0]) + fa.nx*((j-fa.GBox.Lo[1])+fa.ny*n)
}

func (fa *FArray) Get(i, j, n int) float64 {
	return fa.Data[fa.Index(i, j, n)]
}

func (fa *FArray) Set(i, j, n int, val float64) {
	fa.Data[fa.Index(i, j, n)] = val
}

func (fa *FArray) Add(i, j, n int, val float64) {
	fa.Data[fa.Index(i, j, n)] += val
}

// Comp returns the storage of component n, including ghost cells
func (fa *FArray) Comp(n int) []float64 {
	np := fa.nx * fa.ny
	return fa.Data[n*np : (n+1)*np]
}

func (fa *FArray) SetVal(val float64, comp, nComp int) {
	for n := comp; n < comp+nComp; n++ {
		d := fa.Comp(n)
		for i := range d {
			d[i] = val
		}
	}
}

// CopyFrom copies src over region, reading src at region shifted by -shift
func (fa *FArray) CopyFrom(src *FArray, region Box, shift [2]int, scomp, dcomp, nComp int) {
	for n := 0; n < nComp; n++ {
		for j := region.Lo[1]; j <= region.Hi[1]; j++ {
			for i := region.Lo[0]; i <= region.Hi[0]; i++ {
				fa.Data[fa.Index(i, j, dcomp+n)] = src.Data[src.Index(i-shift[0], j-shift[1], scomp+n)]
			}
		}
	}
}

// Extract packs region into a flat slice, component-major
func (fa *FArray) Extract(region Box, comp, nComp int) (vals []float64) {
	vals = make([]float64, 0, region.NumPts()*nComp)
	for n := comp; n < comp+nComp; n++ {
		for j := region.Lo[1]; j <= region.Hi[1]; j++ {
			for i := region.Lo[0]; i <= region.Hi[0]; i++ {
				vals = append(vals, fa.Data[fa.Index(i, j, n)])
			}
		}
	}
	return
}

// Insert is the inverse of Extract
func (fa *FArray) Insert(region Box, comp, nComp int, vals []float64) {
	var ii int
	for n := comp; n < comp+nComp; n++ {
		for j := region.Lo[1]; j <= region.Hi[1]; j++ {
			for i := region.Lo[0]; i <= region.Hi[0]; i++ {
				fa.Data[fa.Index(i, j, n)] = vals[ii]
				ii++
			}
		}
	}
}
