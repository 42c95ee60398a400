package LowMach2D

const NGrowState = 2

/*
StateLayout indexes the state components:

	Xvel, Yvel, Density, rhoY_0 .. rhoY_n-1, RhoH, Temp, RhoRT

Density through RhoH are the conserved scalars. Flux arrays and SDC terms hold exactly
that contiguous range, so flux component c maps to state component Density+c:

	0 = rho, 1..n = rhoY_k, n+1 = rhoh
*/
type StateLayout struct {
	NSpec     int
	Xvel      int
	Yvel      int
	Density   int
	FirstSpec int
	RhoH      int
	Temp      int
	RhoRT     int
	NComp     int
}

func NewStateLayout(nSpec int) StateLayout {
	return StateLayout{
		NSpec:     nSpec,
		Xvel:      0,
		Yvel:      1,
		Density:   2,
		FirstSpec: 3,
		RhoH:      3 + nSpec,
		Temp:      4 + nSpec,
		RhoRT:     5 + nSpec,
		NComp:     6 + nSpec,
	}
}

func (l StateLayout) Spec(k int) int {
	return l.FirstSpec + k
}

// NFlux is the number of conserved scalar components
func (l StateLayout) NFlux() int {
	return l.NSpec + 2
}

func (l StateLayout) FluxSpec(k int) int {
	return 1 + k
}

func (l StateLayout) FluxRhoH() int {
	return l.NSpec + 1
}

// StateComp maps a flux component onto the state
func (l StateLayout) StateComp(fluxComp int) int {
	return l.Density + fluxComp
}

// ComponentNames lists the state component names in layout order
func (l StateLayout) ComponentNames(species []string) (names []string) {
	names = []string{"x_velocity", "y_velocity", "density"}
	for _, sp := range species {
		names = append(names, "rho.Y("+sp+")")
	}
	names = append(names, "rhoh", "temp", "RhoRT")
	return
}
