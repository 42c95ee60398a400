package grid2D

import (
	"fmt"
	"strconv"
	"strings"
)

// Box is an inclusive range of cell (or face) indices
type Box struct {
	Lo, Hi [2]int
}

func NewBox(lo, hi [2]int) Box {
	return Box{Lo: lo, Hi: hi}
}

func (b Box) Ok() bool {
	return b.Hi[0] >= b.Lo[0] && b.Hi[1] >= b.Lo[1]
}

func (b Box) Length(d int) int {
	return b.Hi[d] - b.Lo[d] + 1
}

func (b Box) NumPts() int {
	if !b.Ok() {
		return 0
	}
	return b.Length(0) * b.Length(1)
}

func (b Box) Contains(i, j int) bool {
	return i >= b.Lo[0] && i <= b.Hi[0] && j >= b.Lo[1] && j <= b.Hi[1]
}

func (b Box) ContainsBox(o Box) bool {
	return b.Contains(o.Lo[0], o.Lo[1]) && b.Contains(o.Hi[0], o.Hi[1])
}

func (b Box) Grow(n int) Box {
	return Box{
		Lo: [2]int{b.Lo[0] - n, b.Lo[1] - n},
		Hi: [2]int{b.Hi[0] + n, b.Hi[1] + n},
	}
}

func (b Box) GrowDir(d, n int) (r Box) {
	r = b
	r.Lo[d] -= n
	r.Hi[d] += n
	return
}

func (b Box) Shift(shift [2]int) Box {
	return Box{
		Lo: [2]int{b.Lo[0] + shift[0], b.Lo[1] + shift[1]},
		Hi: [2]int{b.Hi[0] + shift[0], b.Hi[1] + shift[1]},
	}
}

func (b Box) Intersect(o Box) (r Box, ok bool) {
	for d := 0; d < 2; d++ {
		r.Lo[d] = max(b.Lo[d], o.Lo[d])
		r.Hi[d] = min(b.Hi[d], o.Hi[d])
	}
	ok = r.Ok()
	return
}

func (b Box) Coarsen(ratio int) (r Box) {
	for d := 0; d < 2; d++ {
		r.Lo[d] = CoarsenIndex(b.Lo[d], ratio)
		r.Hi[d] = CoarsenIndex(b.Hi[d], ratio)
	}
	return
}

func (b Box) Refine(ratio int) (r Box) {
	for d := 0; d < 2; d++ {
		r.Lo[d] = b.Lo[d] * ratio
		r.Hi[d] = (b.Hi[d]+1)*ratio - 1
	}
	return
}

// Coarsenable reports whether the box is aligned to and sized in multiples of ratio
func (b Box) Coarsenable(ratio int) bool {
	return b.Coarsen(ratio).Refine(ratio) == b
}

// SurroundingFaces converts a cell box to the box of faces normal to d that bound it
func (b Box) SurroundingFaces(d int) (r Box) {
	r = b
	r.Hi[d]++
	return
}

// ForEach visits every index of the box, i fastest
func (b Box) ForEach(f func(i, j int)) {
	for j := b.Lo[1]; j <= b.Hi[1]; j++ {
		for i := b.Lo[0]; i <= b.Hi[0]; i++ {
			f(i, j)
		}
	}
}

func (b Box) String() string {
	return fmt.Sprintf("((%d,%d) (%d,%d))", b.Lo[0], b.Lo[1], b.Hi[0], b.Hi[1])
}

// ParseBox reads "ilo,jlo,ihi,jhi"
func ParseBox(s string) (b Box, err error) {
	var (
		fields = strings.Split(s, ",")
		v      [4]int
	)
	if len(fields) != 4 {
		err = fmt.Errorf("box %q must have four comma separated indices", s)
		return
	}
	for n, f := range fields {
		if v[n], err = strconv.Atoi(strings.TrimSpace(f)); err != nil {
			return
		}
	}
	b = NewBox([2]int{v[0], v[1]}, [2]int{v[2], v[3]})
	if !b.Ok() {
		err = fmt.Errorf("box %q is empty", s)
	}
	return
}

// CoarsenIndex is floor division that is correct for negative (ghost) indices
func CoarsenIndex(i, ratio int) int {
	if i >= 0 {
		return i / ratio
	}
	return -((-i - 1) / ratio) - 1
}

type BoxArray []Box

// Find returns the index of the box containing (i,j), or -1
func (ba BoxArray) Find(i, j int) int {
	for p, b := range ba {
		if b.Contains(i, j) {
			return p
		}
	}
	return -1
}

func (ba BoxArray) Contains(i, j int) bool {
	return ba.Find(i, j) >= 0
}

func (ba BoxArray) Coarsen(ratio int) (r BoxArray) {
	r = make(BoxArray, len(ba))
	for p, b := range ba {
		r[p] = b.Coarsen(ratio)
	}
	return
}

func (ba BoxArray) Refine(ratio int) (r BoxArray) {
	r = make(BoxArray, len(ba))
	for p, b := range ba {
		r[p] = b.Refine(ratio)
	}
	return
}

func (ba BoxArray) NumPts() (n int) {
	for _, b := range ba {
		n += b.NumPts()
	}
	return
}

// Disjoint reports whether no two boxes overlap
func (ba BoxArray) Disjoint() bool {
	for p := range ba {
		for q := p + 1; q < len(ba); q++ {
			if _, ok := ba[p].Intersect(ba[q]); ok {
				return false
			}
		}
	}
	return true
}

// ChopDomain splits a box into pieces no longer than maxGridSize in either direction
func ChopDomain(domain Box, maxGridSize int) (ba BoxArray) {
	if maxGridSize <= 0 {
		return BoxArray{domain}
	}
	for jlo := domain.Lo[1]; jlo <= domain.Hi[1]; jlo += maxGridSize {
		jhi := min(jlo+maxGridSize-1, domain.Hi[1])
		for ilo := domain.Lo[0]; ilo <= domain.Hi[0]; ilo += maxGridSize {
			ihi := min(ilo+maxGridSize-1, domain.Hi[0])
			ba = append(ba, NewBox([2]int{ilo, jlo}, [2]int{ihi, jhi}))
		}
	}
	return
}
