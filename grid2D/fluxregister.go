package grid2D

import (
	"errors"
	"fmt"

	"github.com/notargets/golowmach/types"
)

var (
	ErrFluxRegisterConsumed = errors.New("flux register already consumed by reflux, clear it first")
)

type RegisterState uint8

const (
	Cleared RegisterState = iota
	Accumulating
	Consumed
)

func (rs RegisterState) String() string {
	return [...]string{"Cleared", "Accumulating", "Consumed"}[rs]
}

/*
FluxRegister accumulates, for one coarse/fine level pair, the difference between the
time integrated coarse flux and the area averaged, time integrated fine fluxes through
every coarse face on the boundary of the fine level.

Storage is a strip of coarse cells just outside each face of each fine patch:

	regs[dir][side][finePatch]

The coarse level contributes -F_c*dt_c through CrseInit, each fine subcycle contributes
F_f*dt_f averaged over the ratio fine faces that tile a coarse face through FineAdd.
Reflux adds the mismatch to the coarse cells outside the fine level, then the register
is consumed until the next Clear.
*/
type FluxRegister struct {
	FineBA BoxArray
	Ratio  int
	NComp  int
	CGeom  *Geometry
	regs   [2][2][]*FArray
	state  RegisterState
}

func NewFluxRegister(fineBA BoxArray, cgeom *Geometry, ratio, nComp int) (fr *FluxRegister) {
	fr = &FluxRegister{
		FineBA: fineBA,
		Ratio:  ratio,
		NComp:  nComp,
		CGeom:  cgeom,
	}
	for p, fb := range fineBA {
		if !fb.Coarsenable(ratio) {
			panic(fmt.Errorf("fine box %v of patch %d is not aligned to refinement ratio %d", fb, p, ratio))
		}
	}
	for d := 0; d < 2; d++ {
		for s := 0; s < 2; s++ {
			fr.regs[d][s] = make([]*FArray, len(fineBA))
			for p, fb := range fineBA {
				fr.regs[d][s][p] = NewFArray(stripBox(fb.Coarsen(ratio), d, types.Side(s)), 0, nComp)
			}
		}
	}
	return
}

// stripBox returns the coarse cells adjacent to side s of cb along d
func stripBox(cb Box, d int, s types.Side) (r Box) {
	r = cb
	if s == types.Lo {
		r.Lo[d] = cb.Lo[d] - 1
		r.Hi[d] = cb.Lo[d] - 1
	} else {
		r.Lo[d] = cb.Hi[d] + 1
		r.Hi[d] = cb.Hi[d] + 1
	}
	return
}

// faceOfStripCell returns the index of the coarse face shared by a strip cell and the fine patch
func faceOfStripCell(d int, s types.Side, i, j int) (fi, fj int) {
	fi, fj = i, j
	if s == types.Lo {
		if d == 0 {
			fi++
		} else {
			fj++
		}
	}
	return
}

func (fr *FluxRegister) State() RegisterState { return fr.state }

func (fr *FluxRegister) Clear() {
	for d := 0; d < 2; d++ {
		for s := 0; s < 2; s++ {
			for _, fab := range fr.regs[d][s] {
				fab.SetVal(0, 0, fr.NComp)
			}
		}
	}
	fr.state = Cleared
}

func (fr *FluxRegister) accumulate() (err error) {
	if fr.state == Consumed {
		return ErrFluxRegisterConsumed
	}
	fr.state = Accumulating
	return
}

// CrseInit adds scale times the coarse face fluxes on the fine level boundary. Pass
// scale = -dt_coarse.
func (fr *FluxRegister) CrseInit(flux EdgeMultiFabs, scomp, dcomp, nComp int, scale float64) (err error) {
	if err = fr.accumulate(); err != nil {
		return
	}
	for d := 0; d < 2; d++ {
		fmf := flux[d]
		for s := 0; s < 2; s++ {
			for _, reg := range fr.regs[d][s] {
				reg.Box.ForEach(func(i, j int) {
					fi, fj := faceOfStripCell(d, types.Side(s), i, j)
					cp := fmf.BA.Find(fi, fj)
					if cp < 0 {
						return
					}
					for n := 0; n < nComp; n++ {
						reg.Add(i, j, dcomp+n, scale*fmf.Fabs[cp].Get(fi, fj, scomp+n))
					}
				})
			}
		}
	}
	return
}

// FineAdd adds scale times the fine fluxes on the fine level boundary, averaged over the
// fine faces covering each coarse face. Pass scale = dt_fine for every fine subcycle.
func (fr *FluxRegister) FineAdd(flux EdgeMultiFabs, scomp, dcomp, nComp int, scale float64) (err error) {
	if err = fr.accumulate(); err != nil {
		return
	}
	var (
		r = fr.Ratio
		w = scale / float64(r)
	)
	for d := 0; d < 2; d++ {
		t := 1 - d
		for s := 0; s < 2; s++ {
			for p, fb := range fr.FineBA {
				var (
					reg  = fr.regs[d][s][p]
					ffab = flux[d].Fabs[p]
					face = fb.Lo[d]
				)
				if s == int(types.Hi) {
					face = fb.Hi[d] + 1
				}
				for c := fb.Lo[t]; c <= fb.Hi[t]; c++ {
					var (
						fidx [2]int
						cidx [2]int
					)
					fidx[d], fidx[t] = face, c
					cidx[t] = CoarsenIndex(c, r)
					if s == int(types.Lo) {
						cidx[d] = CoarsenIndex(face, r) - 1
					} else {
						cidx[d] = CoarsenIndex(face-1, r) + 1
					}
					for n := 0; n < nComp; n++ {
						reg.Add(cidx[0], cidx[1], dcomp+n, w*ffab.Get(fidx[0], fidx[1], scomp+n))
					}
				}
			}
		}
	}
	return
}

// Reflux applies the register to the coarse state: a strip cell on the low side of a fine
// patch owns the shared face as its high face so it receives -R/dx, a strip cell on the
// high side receives +R/dx. Strip cells covered by the fine level or lying outside a non
// periodic boundary are skipped. The register is consumed.
func (fr *FluxRegister) Reflux(crse *MultiFab, scomp, dcomp, nComp int) (err error) {
	if fr.state == Consumed {
		return ErrFluxRegisterConsumed
	}
	var (
		covered = CoveredMask(fr.FineBA, fr.Ratio)
		geom    = fr.CGeom
	)
	crse.forEachPatch(func(cp int, cfab *FArray) {
		for d := 0; d < 2; d++ {
			for s := 0; s < 2; s++ {
				sign := -1.
				if s == int(types.Hi) {
					sign = 1.
				}
				for _, reg := range fr.regs[d][s] {
					reg.Box.ForEach(func(i, j int) {
						iw, jw, ok := geom.PeriodicWrap(i, j)
						if !ok || covered(iw, jw) || !cfab.Box.Contains(iw, jw) {
							return
						}
						for n := 0; n < nComp; n++ {
							cfab.Add(iw, jw, dcomp+n, sign*reg.Get(i, j, scomp+n)/geom.Dx[d])
						}
					})
				}
			}
		}
	})
	fr.state = Consumed
	return
}

// Sum returns the total register content of component n over strips that would be applied
func (fr *FluxRegister) Sum(n int) (sum float64) {
	covered := CoveredMask(fr.FineBA, fr.Ratio)
	for d := 0; d < 2; d++ {
		for s := 0; s < 2; s++ {
			for _, reg := range fr.regs[d][s] {
				reg.Box.ForEach(func(i, j int) {
					iw, jw, ok := fr.CGeom.PeriodicWrap(i, j)
					if ok && !covered(iw, jw) {
						sum += reg.Get(i, j, n)
					}
				})
			}
		}
	}
	return
}
