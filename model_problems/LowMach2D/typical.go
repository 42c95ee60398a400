package LowMach2D

import (
	"math"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/golowmach/grid2D"
)

const typicalYFloor = 1e-8

// TypicalValues holds one magnitude scale per state component. Species scales are in
// mass fraction units.
type TypicalValues struct {
	Names  []string
	Values []float64
	layout StateLayout
	index  map[string]int
}

func NewTypicalValues(layout StateLayout, species []string) (tv *TypicalValues) {
	tv = &TypicalValues{
		Names:  layout.ComponentNames(species),
		Values: make([]float64, layout.NComp),
		layout: layout,
		index:  make(map[string]int),
	}
	for n, name := range tv.Names {
		tv.index[name] = n
		tv.Values[n] = 1
	}
	for k, sp := range species {
		// Species may be looked up by bare name as well
		tv.index[sp] = layout.Spec(k)
	}
	return
}

func (tv *TypicalValues) Get(comp int) float64 {
	return tv.Values[comp]
}

func (tv *TypicalValues) Lookup(name string) (val float64, ok bool) {
	var n int
	if n, ok = tv.index[name]; ok {
		val = tv.Values[n]
	}
	return
}

// Reset recomputes the scales from the valid data of state
func (tv *TypicalValues) Reset(state *grid2D.MultiFab) {
	var (
		l      = tv.layout
		absMax = func(comp int) float64 {
			return math.Max(math.Abs(state.Min(comp)), math.Abs(state.Max(comp)))
		}
		partialY = make([][]float64, len(state.Fabs))
		partialU = make([]float64, len(state.Fabs))
	)
	_ = state.ForEachPatch(func(p int, fab *grid2D.FArray) error {
		partialY[p] = make([]float64, l.NSpec)
		fab.Box.ForEach(func(i, j int) {
			rho := fab.Get(i, j, l.Density)
			if rho > 0 {
				for k := 0; k < l.NSpec; k++ {
					partialY[p][k] = math.Max(partialY[p][k], fab.Get(i, j, l.Spec(k))/rho)
				}
			}
			partialU[p] = math.Max(partialU[p], math.Hypot(fab.Get(i, j, l.Xvel), fab.Get(i, j, l.Yvel)))
		})
		return nil
	})
	speed := floats.Max(partialU)
	if speed == 0 {
		speed = 1
	}
	tv.Values[l.Xvel], tv.Values[l.Yvel] = speed, speed
	for k := 0; k < l.NSpec; k++ {
		var yMax float64
		for p := range partialY {
			yMax = math.Max(yMax, partialY[p][k])
		}
		tv.Values[l.Spec(k)] = math.Max(yMax, typicalYFloor)
	}
	for _, comp := range []int{l.Density, l.RhoH, l.Temp, l.RhoRT} {
		if tv.Values[comp] = absMax(comp); tv.Values[comp] == 0 {
			tv.Values[comp] = 1
		}
	}
}

// Override replaces the scales of the named components, unknown names are logged and ignored
func (tv *TypicalValues) Override(vals map[string]float64) {
	for name, v := range vals {
		n, ok := tv.index[name]
		if !ok {
			log.Warnf("typical values: unknown component %q ignored", name)
			continue
		}
		if v > 0 {
			tv.Values[n] = v
		}
	}
}

// Map returns the name to scale mapping persisted across restarts
func (tv *TypicalValues) Map() (m map[string]float64) {
	m = make(map[string]float64, len(tv.Names))
	for n, name := range tv.Names {
		m[name] = tv.Values[n]
	}
	return
}

func (tv *TypicalValues) Print() {
	names := append([]string{}, tv.Names...)
	sort.Strings(names)
	for _, name := range names {
		log.Infof("typical value %-20s = %g", name, tv.Values[tv.index[name]])
	}
}
