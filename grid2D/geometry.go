package grid2D

import (
	"fmt"

	"github.com/notargets/golowmach/types"
)

type Geometry struct {
	Domain         Box
	ProbLo, ProbHi [2]float64
	Dx             [2]float64
	BC             types.DomainBC
}

func NewGeometry(domain Box, probLo, probHi [2]float64, bc types.DomainBC) (g *Geometry) {
	g = &Geometry{
		Domain: domain,
		ProbLo: probLo,
		ProbHi: probHi,
		BC:     bc,
	}
	for d := 0; d < 2; d++ {
		if probHi[d] <= probLo[d] {
			panic(fmt.Errorf("problem extent in direction %d is empty: [%g, %g]", d, probLo[d], probHi[d]))
		}
		g.Dx[d] = (probHi[d] - probLo[d]) / float64(domain.Length(d))
	}
	return
}

// Refine returns the geometry of the next finer level
func (g *Geometry) Refine(ratio int) *Geometry {
	return NewGeometry(g.Domain.Refine(ratio), g.ProbLo, g.ProbHi, g.BC)
}

func (g *Geometry) IsPeriodic(d int) bool {
	return g.BC.Periodic(types.Dir(d))
}

func (g *Geometry) CellCenter(i, j int) (x, y float64) {
	x = g.ProbLo[0] + (float64(i-g.Domain.Lo[0])+0.5)*g.Dx[0]
	y = g.ProbLo[1] + (float64(j-g.Domain.Lo[1])+0.5)*g.Dx[1]
	return
}

func (g *Geometry) CellVolume() float64 {
	return g.Dx[0] * g.Dx[1]
}

// PeriodicWrap maps an index outside the domain back inside along periodic directions.
// ok is false when the index lies outside a non-periodic boundary.
func (g *Geometry) PeriodicWrap(i, j int) (iw, jw int, ok bool) {
	var (
		idx = [2]int{i, j}
	)
	for d := 0; d < 2; d++ {
		n := g.Domain.Length(d)
		if idx[d] < g.Domain.Lo[d] || idx[d] > g.Domain.Hi[d] {
			if !g.IsPeriodic(d) {
				return i, j, false
			}
			off := (idx[d] - g.Domain.Lo[d]) % n
			if off < 0 {
				off += n
			}
			idx[d] = g.Domain.Lo[d] + off
		}
	}
	return idx[0], idx[1], true
}

// PeriodicShifts lists the nonzero domain translations that map periodic images onto the domain
func (g *Geometry) PeriodicShifts() (shifts [][2]int) {
	var (
		sx = []int{0}
		sy = []int{0}
	)
	if g.IsPeriodic(0) {
		sx = append(sx, -g.Domain.Length(0), g.Domain.Length(0))
	}
	if g.IsPeriodic(1) {
		sy = append(sy, -g.Domain.Length(1), g.Domain.Length(1))
	}
	for _, a := range sx {
		for _, b := range sy {
			if a == 0 && b == 0 {
				continue
			}
			shifts = append(shifts, [2]int{a, b})
		}
	}
	return
}

// FaceBC reports which physical (non periodic) boundary the face with normal d
// and face index (i,j) lies on
func (g *Geometry) FaceBC(d, i, j int) (bc types.BCFLAG, onBoundary bool) {
	var (
		idx = [2]int{i, j}
	)
	if g.IsPeriodic(d) {
		return types.BC_Periodic, false
	}
	switch idx[d] {
	case g.Domain.Lo[d]:
		return g.BC[d][types.Lo], true
	case g.Domain.Hi[d] + 1:
		return g.BC[d][types.Hi], true
	}
	return types.BC_None, false
}
