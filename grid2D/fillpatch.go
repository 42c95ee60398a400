package grid2D

import (
	"fmt"
)

// FillPatch fills the ghost cells of a fine MultiFab that lie inside the domain but
// outside every fine valid box, from the coarse level. Values are piecewise constant
// in space and linear in time between the coarse old (tOld) and new (tNew) data.
// Ghosts covered by fine valid boxes and ghosts outside the domain are left alone; fill
// them afterwards with FillBoundary and FillDomainBoundary.
func FillPatch(fine *MultiFab, fgeom *Geometry, crseOld, crseNew *MultiFab,
	tOld, tNew, time float64, ratio, comp, nComp int) (err error) {
	var (
		alpha float64
	)
	if tNew > tOld {
		alpha = (time - tOld) / (tNew - tOld)
		alpha = min(max(alpha, 0), 1)
	}
	return fine.ForEachPatch(func(p int, fab *FArray) (err error) {
		fab.GBox.ForEach(func(i, j int) {
			if err != nil || fab.Box.Contains(i, j) {
				return
			}
			iw, jw, ok := fgeom.PeriodicWrap(i, j)
			if !ok || fine.BA.Contains(iw, jw) {
				return
			}
			ic, jc := CoarsenIndex(iw, ratio), CoarsenIndex(jw, ratio)
			cp := crseOld.BA.Find(ic, jc)
			if cp < 0 {
				err = fmt.Errorf("fine ghost (%d,%d) of patch %d is not covered by the coarse level", i, j, p)
				return
			}
			oldFab, newFab := crseOld.Fabs[cp], crseNew.Fabs[cp]
			for n := comp; n < comp+nComp; n++ {
				fab.Set(i, j, n, (1-alpha)*oldFab.Get(ic, jc, n)+alpha*newFab.Get(ic, jc, n))
			}
		})
		return
	})
}

// FillCoarseFineFaces sets ghost cells of fine that lie inside the domain but outside all
// fine valid boxes to val. Used for homogeneous Dirichlet data at coarse/fine interfaces.
func FillCoarseFineFaces(fine *MultiFab, fgeom *Geometry, comp, nComp int, val float64) {
	fine.forEachPatch(func(p int, fab *FArray) {
		fab.GBox.ForEach(func(i, j int) {
			if fab.Box.Contains(i, j) {
				return
			}
			iw, jw, ok := fgeom.PeriodicWrap(i, j)
			if !ok || fine.BA.Contains(iw, jw) {
				return
			}
			for n := comp; n < comp+nComp; n++ {
				fab.Set(i, j, n, val)
			}
		})
	})
}
