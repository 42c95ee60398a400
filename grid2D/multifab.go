package grid2D

import (
	"fmt"
	"math"
	"runtime"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/golowmach/utils"
)

// MultiFab is a distributed collection of FArrays, one per box of a BoxArray.
// Patches are assigned to goroutine buckets by a PartitionMap.
type MultiFab struct {
	BA         BoxArray // Valid boxes in the index space of the data (cell or face)
	CellBA     BoxArray // Cell boxes the data is defined on
	NComp      int
	NGrow      int
	FaceDir    int // -1 for cell centered data, otherwise the face normal direction
	Fabs       []*FArray
	Partitions *utils.PartitionMap
	mb         *utils.MailBox[*ghostMsg]
}

type ghostMsg struct {
	dst    int
	region Box
	comp   int
	nComp  int
	vals   []float64
}

func parallelDegree(nPar, nBoxes int) int {
	if nPar <= 0 {
		nPar = runtime.NumCPU()
	}
	if nPar > nBoxes {
		nPar = nBoxes
	}
	if nPar < 1 {
		nPar = 1
	}
	return nPar
}

func NewMultiFab(ba BoxArray, nComp, nGrow, nPar int) (mf *MultiFab) {
	return newMultiFab(ba, ba, -1, nComp, nGrow, nPar)
}

// NewFaceMultiFab allocates data on the faces normal to dir of every cell box
func NewFaceMultiFab(cellBA BoxArray, dir, nComp, nGrow, nPar int) (mf *MultiFab) {
	fba := make(BoxArray, len(cellBA))
	for p, b := range cellBA {
		fba[p] = b.SurroundingFaces(dir)
	}
	return newMultiFab(fba, cellBA, dir, nComp, nGrow, nPar)
}

func newMultiFab(ba, cellBA BoxArray, faceDir, nComp, nGrow, nPar int) (mf *MultiFab) {
	if len(ba) == 0 {
		panic(fmt.Errorf("cannot build a MultiFab on an empty BoxArray"))
	}
	nPar = parallelDegree(nPar, len(ba))
	mf = &MultiFab{
		BA:         ba,
		CellBA:     cellBA,
		NComp:      nComp,
		NGrow:      nGrow,
		FaceDir:    faceDir,
		Fabs:       make([]*FArray, len(ba)),
		Partitions: utils.NewPartitionMap(nPar, len(ba)),
		mb:         utils.NewMailBox[*ghostMsg](nPar),
	}
	for p, b := range ba {
		mf.Fabs[p] = NewFArray(b, nGrow, nComp)
	}
	return
}

// NewMultiFabLike allocates a MultiFab with the same layout and parallel degree
func NewMultiFabLike(src *MultiFab, nComp, nGrow int) *MultiFab {
	return newMultiFab(src.BA, src.CellBA, src.FaceDir, nComp, nGrow, src.Partitions.ParallelDegree)
}

// ForEachPatch runs f for every patch, one goroutine per partition bucket
func (mf *MultiFab) ForEachPatch(f func(p int, fab *FArray) error) error {
	pm := mf.Partitions
	return pm.ParallelDo(func(np int) (err error) {
		kMin, kMax := pm.GetBucketRange(np)
		for p := kMin; p < kMax; p++ {
			if err = f(p, mf.Fabs[p]); err != nil {
				return
			}
		}
		return
	})
}

// forEachPatch is ForEachPatch for bodies that cannot fail
func (mf *MultiFab) forEachPatch(f func(p int, fab *FArray)) {
	_ = mf.ForEachPatch(func(p int, fab *FArray) error {
		f(p, fab)
		return nil
	})
}

func (mf *MultiFab) SetVal(val float64, comp, nComp int) {
	mf.forEachPatch(func(p int, fab *FArray) {
		fab.SetVal(val, comp, nComp)
	})
}

// Copy copies components of src (same BoxArray) including nGrow ghost cells
func (mf *MultiFab) Copy(src *MultiFab, scomp, dcomp, nComp, nGrow int) {
	mf.forEachPatch(func(p int, fab *FArray) {
		fab.CopyFrom(src.Fabs[p], fab.Box.Grow(nGrow), [2]int{}, scomp, dcomp, nComp)
	})
}

// Saxpy computes mf[dcomp] += a*src[scomp] over the valid region grown by nGrow
func (mf *MultiFab) Saxpy(a float64, src *MultiFab, scomp, dcomp, nComp, nGrow int) {
	mf.forEachPatch(func(p int, fab *FArray) {
		sfab := src.Fabs[p]
		for n := 0; n < nComp; n++ {
			fab.Box.Grow(nGrow).ForEach(func(i, j int) {
				fab.Add(i, j, dcomp+n, a*sfab.Get(i, j, scomp+n))
			})
		}
	})
}

// LinComb sets mf[dcomp] = a*x[xcomp] + b*y[ycomp] over the valid region grown by nGrow
func (mf *MultiFab) LinComb(a float64, x *MultiFab, xcomp int, b float64, y *MultiFab, ycomp, dcomp, nComp, nGrow int) {
	mf.forEachPatch(func(p int, fab *FArray) {
		xf, yf := x.Fabs[p], y.Fabs[p]
		for n := 0; n < nComp; n++ {
			fab.Box.Grow(nGrow).ForEach(func(i, j int) {
				fab.Set(i, j, dcomp+n, a*xf.Get(i, j, xcomp+n)+b*yf.Get(i, j, ycomp+n))
			})
		}
	})
}

func (mf *MultiFab) Clone() (r *MultiFab) {
	r = NewMultiFabLike(mf, mf.NComp, mf.NGrow)
	r.Copy(mf, 0, 0, mf.NComp, mf.NGrow)
	return
}

// reduce applies f to the valid data of comp on every patch and returns the partials
func (mf *MultiFab) reduce(comp int, f func(vals []float64) float64) (partials []float64) {
	partials = make([]float64, len(mf.Fabs))
	mf.forEachPatch(func(p int, fab *FArray) {
		partials[p] = f(fab.Extract(fab.Box, comp, 1))
	})
	return
}

func (mf *MultiFab) Min(comp int) float64 {
	return floats.Min(mf.reduce(comp, floats.Min))
}

func (mf *MultiFab) Max(comp int) float64 {
	return floats.Max(mf.reduce(comp, floats.Max))
}

func (mf *MultiFab) Sum(comp int) float64 {
	return floats.Sum(mf.reduce(comp, floats.Sum))
}

func (mf *MultiFab) NormInf(comp int) float64 {
	return floats.Max(mf.reduce(comp, func(v []float64) float64 {
		return floats.Norm(v, math.Inf(1))
	}))
}

// SumMasked sums comp over valid cells for which keep(i,j) is true
func (mf *MultiFab) SumMasked(comp int, keep func(i, j int) bool) float64 {
	partials := make([]float64, len(mf.Fabs))
	mf.forEachPatch(func(p int, fab *FArray) {
		fab.Box.ForEach(func(i, j int) {
			if keep(i, j) {
				partials[p] += fab.Get(i, j, comp)
			}
		})
	})
	return floats.Sum(partials)
}

func (mf *MultiFab) HasNaN(comp, nComp int) (found bool) {
	nan := make([]bool, len(mf.Fabs))
	mf.forEachPatch(func(p int, fab *FArray) {
		nan[p] = utils.IsNan(fab.Extract(fab.Box, comp, nComp))
	})
	for _, b := range nan {
		found = found || b
	}
	return
}

// FillBoundary fills ghost cells that overlap valid cells of other patches on the same
// level, including periodic images. Each bucket posts the strips its patches own to the
// buckets that own the receiving patches, then all buckets wait before unpacking.
func (mf *MultiFab) FillBoundary(geom *Geometry, comp, nComp int) {
	var (
		pm     = mf.Partitions
		shifts = append([][2]int{{0, 0}}, geom.PeriodicShifts()...)
	)
	if mf.FaceDir >= 0 {
		panic("FillBoundary is defined for cell centered data only")
	}
	_ = pm.ParallelDo(func(np int) error {
		qMin, qMax := pm.GetBucketRange(np)
		for q := qMin; q < qMax; q++ {
			src := mf.Fabs[q]
			for p, dst := range mf.Fabs {
				for _, s := range shifts {
					if p == q && s == [2]int{} {
						continue
					}
					region, ok := dst.GBox.Intersect(src.Box.Shift(s))
					if !ok {
						continue
					}
					target, _, _ := pm.GetBucket(p)
					mf.mb.PostMessage(np, target, &ghostMsg{
						dst:    p,
						region: region,
						comp:   comp,
						nComp:  nComp,
						vals:   src.Extract(region.Shift([2]int{-s[0], -s[1]}), comp, nComp),
					})
				}
			}
		}
		mf.mb.DeliverMyMessages(np)
		return nil
	})
	_ = pm.ParallelDo(func(np int) error {
		mf.mb.ReceiveMyMessages(np)
		for _, msg := range mf.mb.ReceiveMsgQs[np].Cells() {
			mf.Fabs[msg.dst].Insert(msg.region, msg.comp, msg.nComp, msg.vals)
		}
		mf.mb.ClearMyMessages(np)
		return nil
	})
}
