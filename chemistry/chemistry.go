package chemistry

import (
	"errors"
)

var (
	ErrNewtonFailed     = errors.New("newton iteration failed to converge")
	ErrStepTooSmall     = errors.New("integrator step size fell below the minimum")
	ErrTemperatureRange = errors.New("temperature left the valid range of the thermodynamic fits")
)

// CellState is the reacting state of one cell. RhoY are species partial densities.
type CellState struct {
	RhoY []float64
	RhoH float64
	T    float64
}

func (cs *CellState) Rho() (rho float64) {
	for _, v := range cs.RhoY {
		rho += v
	}
	return
}

func (cs *CellState) Copy() (r *CellState) {
	r = &CellState{
		RhoY: make([]float64, len(cs.RhoY)),
		RhoH: cs.RhoH,
		T:    cs.T,
	}
	copy(r.RhoY, cs.RhoY)
	return
}

// Tolerances control the stiff integrator. ATol has one entry per species followed by
// one for rho*h; a nil ATol uses RTol times the initial magnitude.
type Tolerances struct {
	RTol float64
	ATol []float64
}

// ChemDriver is the thermodynamics, transport and kinetics service consumed by the level
// advance. Implementations are read only after construction and safe for concurrent use.
type ChemDriver interface {
	NumSpecies() int
	SpeciesNames() []string
	// SpeciesIndex returns -1 for unknown names
	SpeciesIndex(name string) int
	MolecularWeights() []float64
	RUniversal() float64
	MixtureEnthalpy(T float64, Y []float64) float64
	MixtureCp(T float64, Y []float64) float64
	SpeciesEnthalpies(T float64, h []float64)
	MeanMolecularWeight(Y []float64) float64
	// ReactionRates fills wdot with the mass production rate of every species
	ReactionRates(rho, T float64, Y, wdot []float64)
	// Transport fills rhoD with the species diffusion coefficients times density
	Transport(T float64, Y, rhoD []float64) (lambda, mu float64)
	// Integrate advances dz/dt = (wdot, 0) + force for z = (rhoY, rhoH) over dt, in place
	Integrate(cell *CellState, force []float64, dt float64, tol Tolerances) (nfev int, err error)
}
