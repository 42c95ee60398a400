package grid2D

// AverageDown overwrites coarse cells covered by the fine level with the volume weighted
// average of the ratio x ratio fine cells beneath them. Cells are equal volume on a
// Cartesian level so the weights are uniform.
func AverageDown(fine, crse *MultiFab, ratio, scomp, dcomp, nComp int) {
	var (
		w = 1. / float64(ratio*ratio)
	)
	crse.forEachPatch(func(cp int, cfab *FArray) {
		for fp, fb := range fine.BA {
			region, ok := cfab.Box.Intersect(fb.Coarsen(ratio))
			if !ok {
				continue
			}
			ffab := fine.Fabs[fp]
			for n := 0; n < nComp; n++ {
				region.ForEach(func(ic, jc int) {
					var sum float64
					for jj := 0; jj < ratio; jj++ {
						for ii := 0; ii < ratio; ii++ {
							sum += ffab.Get(ic*ratio+ii, jc*ratio+jj, scomp+n)
						}
					}
					cfab.Set(ic, jc, dcomp+n, w*sum)
				})
			}
		}
	})
}

// CoveredMask reports whether a coarse cell lies under the fine BoxArray
func CoveredMask(fineBA BoxArray, ratio int) func(i, j int) bool {
	cba := fineBA.Coarsen(ratio)
	return func(i, j int) bool {
		return cba.Contains(i, j)
	}
}
