package chemistry

import (
	"fmt"
	"math"
	"strings"

	"github.com/notargets/golowmach/utils"
)

const (
	RUniversal = 8.314462618 // J/(mol K)
	TRef       = 298.15
)

/*
Species carries a linear heat capacity fit, cp = CpA + CpB*T (J/(kg K)), so that

	h(T) = Hf + CpA*(T-TRef) + CpB/2*(T^2-TRef^2)

W is the molecular weight in kg/mol, Le the Lewis number used for rho*D = lambda/(cp*Le).
*/
type Species struct {
	Name     string
	W        float64
	CpA, CpB float64
	Hf       float64
	Le       float64
}

func (sp Species) Cp(T float64) float64 { return sp.CpA + sp.CpB*T }

func (sp Species) Enthalpy(T float64) float64 {
	return sp.Hf + sp.CpA*(T-TRef) + 0.5*sp.CpB*(T*T-TRef*TRef)
}

// Reaction is irreversible with rate A*T^Beta*exp(-Ta/T)*prod(C_k^Reactants_k)
type Reaction struct {
	A, Beta, Ta float64
	Reactants   map[string]int
	Products    map[string]int
}

// TransportFit is a power law in temperature for conductivity and viscosity
type TransportFit struct {
	Lambda0, Mu0 float64 // at T0
	T0, Exponent float64
}

type Mechanism struct {
	Species    []Species
	Reactions  []Reaction
	Props      TransportFit
	TMin, TMax float64
	names      []string
	index      map[string]int
	nuR, nuP   [][]int // [reaction][species]
	w          []float64
}

func NewMechanism(species []Species, reactions []Reaction, tr TransportFit) (m *Mechanism, err error) {
	m = &Mechanism{
		Species:   species,
		Reactions: reactions,
		Props:     tr,
		TMin:      100,
		TMax:      6000,
		index:     make(map[string]int),
	}
	for k, sp := range species {
		if sp.W <= 0 {
			err = fmt.Errorf("species %s has non positive molecular weight %g", sp.Name, sp.W)
			return
		}
		if _, dup := m.index[sp.Name]; dup {
			err = fmt.Errorf("duplicate species %s", sp.Name)
			return
		}
		if sp.Le <= 0 {
			species[k].Le = 1
		}
		m.index[sp.Name] = k
		m.names = append(m.names, sp.Name)
		m.w = append(m.w, sp.W)
	}
	m.nuR = make([][]int, len(reactions))
	m.nuP = make([][]int, len(reactions))
	for r, rx := range reactions {
		m.nuR[r] = make([]int, len(species))
		m.nuP[r] = make([]int, len(species))
		var massIn, massOut float64
		for name, nu := range rx.Reactants {
			k, ok := m.index[name]
			if !ok {
				err = fmt.Errorf("reaction %d names unknown reactant %s", r, name)
				return
			}
			m.nuR[r][k] = nu
			massIn += float64(nu) * species[k].W
		}
		for name, nu := range rx.Products {
			k, ok := m.index[name]
			if !ok {
				err = fmt.Errorf("reaction %d names unknown product %s", r, name)
				return
			}
			m.nuP[r][k] = nu
			massOut += float64(nu) * species[k].W
		}
		if math.Abs(massIn-massOut) > 1e-12*math.Max(massIn, massOut) {
			err = fmt.Errorf("reaction %d does not conserve mass: %g -> %g kg/mol", r, massIn, massOut)
			return
		}
	}
	return
}

// DefaultMechanism is a one step fuel/oxidizer mechanism with an inert diluent:
// F + O -> 2P with N inert
func DefaultMechanism() (m *Mechanism) {
	var err error
	m, err = NewMechanism(
		[]Species{
			{Name: "F", W: 0.016, CpA: 2200, CpB: 0.5, Hf: 5.0e7, Le: 0.9},
			{Name: "O", W: 0.032, CpA: 900, CpB: 0.15, Hf: 0, Le: 1.1},
			{Name: "P", W: 0.024, CpA: 1300, CpB: 0.3, Hf: -1.0e6, Le: 1.0},
			{Name: "N", W: 0.028, CpA: 1000, CpB: 0.15, Hf: 0, Le: 1.0},
		},
		[]Reaction{
			{A: 2e6, Beta: 0, Ta: 15000,
				Reactants: map[string]int{"F": 1, "O": 1},
				Products:  map[string]int{"P": 2}},
		},
		TransportFit{Lambda0: 0.026, Mu0: 1.8e-5, T0: 298.15, Exponent: 0.7},
	)
	if err != nil {
		panic(err)
	}
	return
}

func (m *Mechanism) NumSpecies() int {
	return len(m.Species)
}

func (m *Mechanism) SpeciesNames() []string {
	return m.names
}

func (m *Mechanism) MolecularWeights() []float64 {
	return m.w
}

func (m *Mechanism) RUniversal() float64 {
	return RUniversal
}

func (m *Mechanism) SpeciesIndex(name string) int {
	if k, ok := m.index[name]; ok {
		return k
	}
	if k, ok := m.index[strings.ToUpper(name)]; ok {
		return k
	}
	return -1
}

func (m *Mechanism) MixtureEnthalpy(T float64, Y []float64) (h float64) {
	for k, sp := range m.Species {
		h += Y[k] * sp.Enthalpy(T)
	}
	return
}

func (m *Mechanism) MixtureCp(T float64, Y []float64) (cp float64) {
	for k, sp := range m.Species {
		cp += Y[k] * sp.Cp(T)
	}
	return
}

func (m *Mechanism) SpeciesEnthalpies(T float64, h []float64) {
	for k, sp := range m.Species {
		h[k] = sp.Enthalpy(T)
	}
}

func (m *Mechanism) MeanMolecularWeight(Y []float64) float64 {
	var sum float64
	for k, sp := range m.Species {
		sum += math.Max(Y[k], 0) / sp.W
	}
	if sum == 0 {
		return m.Species[0].W
	}
	return 1 / sum
}

func (m *Mechanism) ReactionRates(rho, T float64, Y, wdot []float64) {
	for k := range wdot {
		wdot[k] = 0
	}
	for r, rx := range m.Reactions {
		q := rx.A * math.Exp(-rx.Ta/T)
		if rx.Beta != 0 {
			q *= math.Pow(T, rx.Beta)
		}
		for k, nu := range m.nuR[r] {
			if nu != 0 {
				q *= utils.POW(rho*math.Max(Y[k], 0)/m.Species[k].W, nu)
			}
		}
		for k, sp := range m.Species {
			if dnu := m.nuP[r][k] - m.nuR[r][k]; dnu != 0 {
				wdot[k] += sp.W * float64(dnu) * q
			}
		}
	}
}

func (m *Mechanism) Transport(T float64, Y, rhoD []float64) (lambda, mu float64) {
	var (
		tr    = m.Props
		scale = math.Pow(T/tr.T0, tr.Exponent)
		cp    = m.MixtureCp(T, Y)
	)
	lambda, mu = tr.Lambda0*scale, tr.Mu0*scale
	for k, sp := range m.Species {
		rhoD[k] = lambda / (cp * sp.Le)
	}
	return
}

// temperature inverts h(T, Y) = h by Newton from guess, failing outside [TMin, TMax]
func (m *Mechanism) temperature(h float64, Y []float64, guess float64) (T float64, err error) {
	T = guess
	if T < m.TMin || T > m.TMax {
		T = 0.5 * (m.TMin + m.TMax)
	}
	for iter := 0; iter < 50; iter++ {
		cp := m.MixtureCp(T, Y)
		if cp <= 0 {
			break
		}
		dT := (h - m.MixtureEnthalpy(T, Y)) / cp
		T += dT
		if T < 0.5*m.TMin || T > 2*m.TMax {
			break
		}
		if math.Abs(dT) < 1e-10*T {
			if T < m.TMin || T > m.TMax {
				break
			}
			return
		}
	}
	err = fmt.Errorf("%w: h = %g, last T = %g", ErrTemperatureRange, h, T)
	return
}
