package types

import (
	"fmt"
	"strings"
)

type BCFLAG uint8

const (
	BC_None BCFLAG = iota
	BC_Periodic
	BC_Wall    // No-slip, adiabatic, impermeable
	BC_Slip    // Free-slip, adiabatic, impermeable
	BC_Outflow // Zero gradient for scalars and velocity, pressure fixed at zero
	BC_Symmetry
)

var BCNameMap = map[string]BCFLAG{
	"periodic": BC_Periodic,
	"wall":     BC_Wall,
	"noslip":   BC_Wall,
	"slip":     BC_Slip,
	"out":      BC_Outflow,
	"outflow":  BC_Outflow,
	"sym":      BC_Symmetry,
	"symmetry": BC_Symmetry,
}

func (bc BCFLAG) String() string {
	names := []string{"None", "Periodic", "Wall", "Slip", "Outflow", "Symmetry"}
	if int(bc) >= len(names) {
		return fmt.Sprintf("BCFLAG(%d)", bc)
	}
	return names[bc]
}

func NewBCFLAG(label string) (bc BCFLAG, err error) {
	var ok bool
	if bc, ok = BCNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown boundary condition %q", label)
	}
	return
}

// Closed reports whether the boundary admits no normal mass flux
func (bc BCFLAG) Closed() bool {
	switch bc {
	case BC_Wall, BC_Slip, BC_Symmetry:
		return true
	}
	return false
}

// Dir is a spatial direction index into per-direction arrays
type Dir uint8

const (
	XDir Dir = iota
	YDir
	NDim = 2
)

func (d Dir) String() string {
	if d == XDir {
		return "X"
	}
	return "Y"
}

// Orthogonal returns the other direction in 2D
func (d Dir) Orthogonal() Dir {
	return 1 - d
}

// Side selects the low or high boundary along a direction
type Side uint8

const (
	Lo Side = iota
	Hi
)

// DomainBC holds the physical boundary flag on each side of each direction
type DomainBC [NDim][2]BCFLAG

func NewDomainBC(lo, hi [NDim]BCFLAG) (dbc DomainBC) {
	for d := 0; d < NDim; d++ {
		dbc[d][Lo] = lo[d]
		dbc[d][Hi] = hi[d]
	}
	return
}

// IsClosed reports whether no boundary of the domain admits normal flow
func (dbc DomainBC) IsClosed() bool {
	for d := 0; d < NDim; d++ {
		for s := 0; s < 2; s++ {
			if dbc[d][s] != BC_Periodic && !dbc[d][s].Closed() {
				return false
			}
		}
	}
	return true
}

func (dbc DomainBC) Periodic(d Dir) bool {
	return dbc[d][Lo] == BC_Periodic && dbc[d][Hi] == BC_Periodic
}
