package LowMach2D

import (
	"github.com/notargets/golowmach/grid2D"
)

// LevelState is the data of one AMR level
type LevelState struct {
	Level   int
	Geom    *grid2D.Geometry
	BA      grid2D.BoxArray
	Layout  StateLayout
	Old     *grid2D.MultiFab
	New     *grid2D.MultiFab
	DivuOld *grid2D.MultiFab // Divergence constraint S
	DivuNew *grid2D.MultiFab
	DsdtOld *grid2D.MultiFab
	// Press is the cell centered pressure at the half time, PressOld the one of the previous step
	Press     *grid2D.MultiFab
	PressOld  *grid2D.MultiFab
	FuncCount *grid2D.MultiFab
	RhoYdot   *grid2D.MultiFab
	TimeOld   float64
	TimeNew   float64
	DtOld     float64

	// Edge data, reallocated at the start of every step. Component layout is the flux
	// layout of StateLayout.
	SpecDiffusionFluxn    grid2D.EdgeMultiFabs
	SpecDiffusionFluxnp1  grid2D.EdgeMultiFabs
	SpecDiffusionFluxk    grid2D.EdgeMultiFabs // Lagged fluxes of the current SDC pass
	SpecDiffusionFluxWbar grid2D.EdgeMultiFabs
	EdgeFlux              grid2D.EdgeMultiFabs
	UMac                  grid2D.EdgeMultiFabs

	// SDC terms on valid cells, flux layout
	Aofs    *grid2D.MultiFab // Advection
	DiffN   *grid2D.MultiFab // Diffusion at the old time
	DiffK   *grid2D.MultiFab // Diffusion of the lagged iterate
	DiffHat *grid2D.MultiFab // Implicit diffusion of the current pass
	IR      *grid2D.MultiFab // Reaction term
	Forcing *grid2D.MultiFab
	nPar    int
}

func NewLevelState(level int, geom *grid2D.Geometry, ba grid2D.BoxArray, layout StateLayout, nPar int) (ls *LevelState) {
	nf := layout.NFlux()
	ls = &LevelState{
		Level:     level,
		Geom:      geom,
		BA:        ba,
		Layout:    layout,
		Old:       grid2D.NewMultiFab(ba, layout.NComp, NGrowState, nPar),
		New:       grid2D.NewMultiFab(ba, layout.NComp, NGrowState, nPar),
		DivuOld:   grid2D.NewMultiFab(ba, 1, 1, nPar),
		DivuNew:   grid2D.NewMultiFab(ba, 1, 1, nPar),
		DsdtOld:   grid2D.NewMultiFab(ba, 1, 0, nPar),
		Press:     grid2D.NewMultiFab(ba, 1, 1, nPar),
		PressOld:  grid2D.NewMultiFab(ba, 1, 1, nPar),
		FuncCount: grid2D.NewMultiFab(ba, 1, 0, nPar),
		RhoYdot:   grid2D.NewMultiFab(ba, layout.NSpec, 0, nPar),
		Aofs:      grid2D.NewMultiFab(ba, nf, 0, nPar),
		DiffN:     grid2D.NewMultiFab(ba, nf, 0, nPar),
		DiffK:     grid2D.NewMultiFab(ba, nf, 0, nPar),
		DiffHat:   grid2D.NewMultiFab(ba, nf, 0, nPar),
		IR:        grid2D.NewMultiFab(ba, nf, 0, nPar),
		Forcing:   grid2D.NewMultiFab(ba, nf, 0, nPar),
		nPar:      nPar,
	}
	ls.AllocEdges()
	return
}

// AllocEdges replaces the edge arrays with fresh zeroed storage
func (ls *LevelState) AllocEdges() {
	nf := ls.Layout.NFlux()
	ls.SpecDiffusionFluxn = grid2D.NewEdgeMultiFabs(ls.BA, nf, ls.nPar)
	ls.SpecDiffusionFluxnp1 = grid2D.NewEdgeMultiFabs(ls.BA, nf, ls.nPar)
	ls.SpecDiffusionFluxk = grid2D.NewEdgeMultiFabs(ls.BA, nf, ls.nPar)
	ls.SpecDiffusionFluxWbar = grid2D.NewEdgeMultiFabs(ls.BA, nf, ls.nPar)
	ls.EdgeFlux = grid2D.NewEdgeMultiFabs(ls.BA, nf, ls.nPar)
	ls.UMac = grid2D.NewEdgeMultiFabs(ls.BA, 1, ls.nPar)
}

// Swap makes the new time data the old time data of the next step
func (ls *LevelState) Swap() {
	ls.Old, ls.New = ls.New, ls.Old
	ls.DivuOld, ls.DivuNew = ls.DivuNew, ls.DivuOld
	ls.DtOld = ls.TimeNew - ls.TimeOld
	ls.TimeOld = ls.TimeNew
}

// RefluxFlux sets dst to the conserved flux seen by the flux register:
// advection plus 1/2 (Fn - Fk) plus the implicit diffusion flux
func (ls *LevelState) RefluxFlux(dst grid2D.EdgeMultiFabs) {
	nf := ls.Layout.NFlux()
	dst.Copy(ls.EdgeFlux, 0, 0, nf)
	dst.Saxpy(0.5, ls.SpecDiffusionFluxn, 0, 0, nf)
	dst.Saxpy(-0.5, ls.SpecDiffusionFluxk, 0, 0, nf)
	dst.Saxpy(1, ls.SpecDiffusionFluxnp1, 0, 0, nf)
}
