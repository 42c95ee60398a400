package LowMach2D

import (
	"fmt"
)

// Config is built once from the input file and shared read only by every level and engine
type Config struct {
	UnityLe                          bool
	DoAddNonunityLeCorrToRhohAdvFlux bool
	HackNoChem                       bool
	HackNoSpecDiff                   bool
	UseWbar                          bool
	SDCIterMax                       int
	NumMacSyncIter                   int
	MacSyncTol                       float64
	ClosedChamber                    bool
	FloorSpecies                     bool
	NewTThreshold                    float64
	TempMin, TempMax                 float64 // htt_tempmin, htt_tempmax
	AvgDownChem                      bool
	ResetTypicalValsInt              int
	TypicalValues                    map[string]float64

	// Time step control
	CFL, CFLMax       float64
	InitShrink        float64
	ChangeMax         float64
	DtMax             float64
	DivuCeiling       int
	DivuDtFactor      float64
	MinRhoDivuCeiling float64

	P0                   float64 // Initial ambient pressure
	DpdtFactor           float64
	DoSetRhoToSpeciesSum bool
	DoDiffuseSync        bool

	// Diagnostics
	PlotReactions    bool
	PlotConsumption  bool
	PlotHeatRelease  bool
	ConsumptionNames []string
	FuelName         string

	ParallelDegree        int
	LinearSolverRTol      float64
	ChemRTol              float64
	CheckMassConservation bool
}

func DefaultConfig() Config {
	return Config{
		SDCIterMax:           2,
		NumMacSyncIter:       1,
		MacSyncTol:           1e-8,
		NewTThreshold:        -1,
		TempMin:              250,
		TempMax:              3500,
		CFL:                  0.5,
		CFLMax:               1.0,
		InitShrink:           1.0,
		ChangeMax:            1.1,
		DtMax:                1e20,
		DivuDtFactor:         0.5,
		MinRhoDivuCeiling:    -1,
		P0:                   101325,
		DoSetRhoToSpeciesSum: true,
		FuelName:             "F",
		LinearSolverRTol:     1e-10,
		ChemRTol:             1e-8,
		TypicalValues:        map[string]float64{},
	}
}

func (c Config) Validate() (err error) {
	switch {
	case c.SDCIterMax < 1:
		err = fmt.Errorf("sdc_iterMAX must be at least 1, have %d", c.SDCIterMax)
	case c.NumMacSyncIter < 0:
		err = fmt.Errorf("num_mac_sync_iter must be non negative, have %d", c.NumMacSyncIter)
	case c.TempMin <= 0 || c.TempMax <= c.TempMin:
		err = fmt.Errorf("invalid temperature bounds [%g, %g]", c.TempMin, c.TempMax)
	case c.CFL <= 0 || c.CFL > c.CFLMax:
		err = fmt.Errorf("cfl %g must lie in (0, cfl_max = %g]", c.CFL, c.CFLMax)
	case c.P0 <= 0:
		err = fmt.Errorf("ambient pressure must be positive, have %g", c.P0)
	case c.DivuCeiling < 0 || c.DivuCeiling > 2:
		err = fmt.Errorf("divu_ceiling must be 0, 1 or 2, have %d", c.DivuCeiling)
	case c.ChangeMax < 1:
		err = fmt.Errorf("change_max must be at least 1, have %g", c.ChangeMax)
	}
	return
}
