package InputParameters

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ghodss/yaml"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
	"github.com/notargets/golowmach/model_problems/LowMach2D"
	"github.com/notargets/golowmach/types"
)

type InitType string

const (
	InitUniform InitType = "Uniform"
	InitHotSpot InitType = "HotSpot" // Gaussian temperature bump, used to ignite a premixed charge
	InitLayer   InitType = "Layer"   // Mixing layer, Composition below Y = LayerY, Oxidizer above
)

// Parameters obtained from the YAML input file. Keys follow the solver option names.
type InputParametersLM struct {
	Title       string            `json:"Title"`
	NCell       [2]int            `json:"NCell"`
	ProbLo      [2]float64        `json:"ProbLo"`
	ProbHi      [2]float64        `json:"ProbHi"`
	MaxGridSize int               `json:"MaxGridSize"`
	BCs         map[string]string `json:"BCs"` // Keys XLo, XHi, YLo, YHi
	FineLevels  [][]string        `json:"FineLevels"`
	RefRatio    int               `json:"RefRatio"`
	MaxSteps    int               `json:"MaxSteps"`
	StopTime    float64           `json:"StopTime"`
	PlotInt     int               `json:"PlotInt"`

	InitType    InitType           `json:"InitType"`
	InitT       float64            `json:"InitT"`
	HotT        float64            `json:"HotT"`
	HotRadius   float64            `json:"HotRadius"`
	HotCenter   [2]float64         `json:"HotCenter"`
	Velocity    [2]float64         `json:"Velocity"`
	Composition map[string]float64 `json:"Composition"`
	Oxidizer    map[string]float64 `json:"Oxidizer"`
	LayerY      float64            `json:"LayerY"`

	UnityLe                          bool               `json:"unity_Le"`
	DoAddNonunityLeCorrToRhohAdvFlux bool               `json:"do_add_nonunityLe_corr_to_rhoh_adv_flux"`
	HackNoChem                       bool               `json:"hack_nochem"`
	HackNoSpecDiff                   bool               `json:"hack_nospecdiff"`
	UseWbar                          bool               `json:"use_wbar"`
	SDCIterMax                       int                `json:"sdc_iterMAX"`
	NumMacSyncIter                   int                `json:"num_mac_sync_iter"`
	MacSyncTol                       float64            `json:"mac_sync_tol"`
	ClosedChamber                    bool               `json:"closed_chamber"`
	FloorSpecies                     bool               `json:"floor_species"`
	NewTThreshold                    float64            `json:"new_T_threshold"`
	TempMin                          float64            `json:"htt_tempmin"`
	TempMax                          float64            `json:"htt_tempmax"`
	AvgDownChem                      bool               `json:"avg_down_chem"`
	ResetTypicalValsInt              int                `json:"reset_typical_vals_int"`
	TypicalValues                    map[string]float64 `json:"typical_values"`
	CFL                              float64            `json:"cfl"`
	CFLMax                           float64            `json:"cfl_max"`
	InitShrink                       float64            `json:"init_shrink"`
	ChangeMax                        float64            `json:"change_max"`
	DtMax                            float64            `json:"dt_max"`
	DivuCeiling                      int                `json:"divu_ceiling"`
	DivuDtFactor                     float64            `json:"divu_dt_factor"`
	MinRhoDivuCeiling                float64            `json:"min_rho_divu_ceiling"`
	P0                               float64            `json:"p_amb"`
	DpdtFactor                       float64            `json:"dpdt_factor"`
	DoSetRhoToSpeciesSum             bool               `json:"do_set_rho_to_species_sum"`
	DoDiffuseSync                    bool               `json:"do_diffuse_sync"`
	PlotReactions                    bool               `json:"plot_reactions"`
	PlotConsumption                  bool               `json:"plot_consumption"`
	PlotHeatRelease                  bool               `json:"plot_heat_release"`
	ConsumptionNames                 []string           `json:"consumption_names"`
	FuelName                         string             `json:"fuel_name"`
	ParallelDegree                   int                `json:"parallel_degree"`
	LinearSolverRTol                 float64            `json:"linear_solver_rtol"`
	ChemRTol                         float64            `json:"chem_rtol"`
	CheckMassConservation            bool               `json:"check_mass_conservation"`
}

// NewInputParametersLM returns the defaults that a parsed file overrides
func NewInputParametersLM() (ip *InputParametersLM) {
	cfg := LowMach2D.DefaultConfig()
	ip = &InputParametersLM{
		Title:       "Low Mach Case",
		NCell:       [2]int{32, 32},
		ProbHi:      [2]float64{1e-2, 1e-2},
		MaxGridSize: 16,
		BCs:         map[string]string{"XLo": "periodic", "XHi": "periodic", "YLo": "periodic", "YHi": "periodic"},
		RefRatio:    2,
		MaxSteps:    10,
		StopTime:    math.Inf(1),
		InitType:    InitUniform,
		InitT:       300,
		Composition: map[string]float64{"N": 1},
	}
	ip.SetConfig(cfg)
	return
}

// SetConfig copies the solver options of cfg into the parameters
func (ip *InputParametersLM) SetConfig(cfg LowMach2D.Config) {
	ip.UnityLe = cfg.UnityLe
	ip.DoAddNonunityLeCorrToRhohAdvFlux = cfg.DoAddNonunityLeCorrToRhohAdvFlux
	ip.HackNoChem = cfg.HackNoChem
	ip.HackNoSpecDiff = cfg.HackNoSpecDiff
	ip.UseWbar = cfg.UseWbar
	ip.SDCIterMax = cfg.SDCIterMax
	ip.NumMacSyncIter = cfg.NumMacSyncIter
	ip.MacSyncTol = cfg.MacSyncTol
	ip.ClosedChamber = cfg.ClosedChamber
	ip.FloorSpecies = cfg.FloorSpecies
	ip.NewTThreshold = cfg.NewTThreshold
	ip.TempMin, ip.TempMax = cfg.TempMin, cfg.TempMax
	ip.AvgDownChem = cfg.AvgDownChem
	ip.ResetTypicalValsInt = cfg.ResetTypicalValsInt
	ip.TypicalValues = cfg.TypicalValues
	ip.CFL, ip.CFLMax = cfg.CFL, cfg.CFLMax
	ip.InitShrink = cfg.InitShrink
	ip.ChangeMax = cfg.ChangeMax
	ip.DtMax = cfg.DtMax
	ip.DivuCeiling = cfg.DivuCeiling
	ip.DivuDtFactor = cfg.DivuDtFactor
	ip.MinRhoDivuCeiling = cfg.MinRhoDivuCeiling
	ip.P0 = cfg.P0
	ip.DpdtFactor = cfg.DpdtFactor
	ip.DoSetRhoToSpeciesSum = cfg.DoSetRhoToSpeciesSum
	ip.DoDiffuseSync = cfg.DoDiffuseSync
	ip.PlotReactions = cfg.PlotReactions
	ip.PlotConsumption = cfg.PlotConsumption
	ip.PlotHeatRelease = cfg.PlotHeatRelease
	ip.ConsumptionNames = cfg.ConsumptionNames
	ip.FuelName = cfg.FuelName
	ip.ParallelDegree = cfg.ParallelDegree
	ip.LinearSolverRTol = cfg.LinearSolverRTol
	ip.ChemRTol = cfg.ChemRTol
	ip.CheckMassConservation = cfg.CheckMassConservation
}

func (ip *InputParametersLM) Parse(data []byte) error {
	return yaml.Unmarshal(data, ip)
}

// Config returns the immutable solver configuration
func (ip *InputParametersLM) Config() (cfg LowMach2D.Config) {
	cfg = LowMach2D.Config{
		UnityLe:                          ip.UnityLe,
		DoAddNonunityLeCorrToRhohAdvFlux: ip.DoAddNonunityLeCorrToRhohAdvFlux,
		HackNoChem:                       ip.HackNoChem,
		HackNoSpecDiff:                   ip.HackNoSpecDiff,
		UseWbar:                          ip.UseWbar,
		SDCIterMax:                       ip.SDCIterMax,
		NumMacSyncIter:                   ip.NumMacSyncIter,
		MacSyncTol:                       ip.MacSyncTol,
		ClosedChamber:                    ip.ClosedChamber,
		FloorSpecies:                     ip.FloorSpecies,
		NewTThreshold:                    ip.NewTThreshold,
		TempMin:                          ip.TempMin,
		TempMax:                          ip.TempMax,
		AvgDownChem:                      ip.AvgDownChem,
		ResetTypicalValsInt:              ip.ResetTypicalValsInt,
		TypicalValues:                    make(map[string]float64, len(ip.TypicalValues)),
		CFL:                              ip.CFL,
		CFLMax:                           ip.CFLMax,
		InitShrink:                       ip.InitShrink,
		ChangeMax:                        ip.ChangeMax,
		DtMax:                            ip.DtMax,
		DivuCeiling:                      ip.DivuCeiling,
		DivuDtFactor:                     ip.DivuDtFactor,
		MinRhoDivuCeiling:                ip.MinRhoDivuCeiling,
		P0:                               ip.P0,
		DpdtFactor:                       ip.DpdtFactor,
		DoSetRhoToSpeciesSum:             ip.DoSetRhoToSpeciesSum,
		DoDiffuseSync:                    ip.DoDiffuseSync,
		PlotReactions:                    ip.PlotReactions,
		PlotConsumption:                  ip.PlotConsumption,
		PlotHeatRelease:                  ip.PlotHeatRelease,
		ConsumptionNames:                 append([]string{}, ip.ConsumptionNames...),
		FuelName:                         ip.FuelName,
		ParallelDegree:                   ip.ParallelDegree,
		LinearSolverRTol:                 ip.LinearSolverRTol,
		ChemRTol:                         ip.ChemRTol,
		CheckMassConservation:            ip.CheckMassConservation,
	}
	for k, v := range ip.TypicalValues {
		cfg.TypicalValues[k] = v
	}
	return
}

// DomainBC reads the four boundary names
func (ip *InputParametersLM) DomainBC() (dbc types.DomainBC, err error) {
	var lo, hi [2]types.BCFLAG
	for d, dir := range []string{"X", "Y"} {
		if lo[d], err = types.NewBCFLAG(ip.BCs[dir+"Lo"]); err != nil {
			return dbc, fmt.Errorf("BCs[%sLo]: %w", dir, err)
		}
		if hi[d], err = types.NewBCFLAG(ip.BCs[dir+"Hi"]); err != nil {
			return dbc, fmt.Errorf("BCs[%sHi]: %w", dir, err)
		}
		if (lo[d] == types.BC_Periodic) != (hi[d] == types.BC_Periodic) {
			return dbc, fmt.Errorf("direction %s is periodic on one side only", dir)
		}
	}
	dbc = types.NewDomainBC(lo, hi)
	return
}

// Geometry returns the level 0 geometry and the box arrays of every level, coarsest first
func (ip *InputParametersLM) Geometry() (geom *grid2D.Geometry, bas []grid2D.BoxArray, err error) {
	var dbc types.DomainBC
	if dbc, err = ip.DomainBC(); err != nil {
		return
	}
	for d := 0; d < 2; d++ {
		if ip.NCell[d] < 1 {
			return nil, nil, fmt.Errorf("NCell[%d] must be positive, have %d", d, ip.NCell[d])
		}
		if ip.ProbHi[d] <= ip.ProbLo[d] {
			return nil, nil, fmt.Errorf("empty problem extent in direction %d: [%g, %g]", d, ip.ProbLo[d], ip.ProbHi[d])
		}
	}
	domain := grid2D.NewBox([2]int{0, 0}, [2]int{ip.NCell[0] - 1, ip.NCell[1] - 1})
	geom = grid2D.NewGeometry(domain, ip.ProbLo, ip.ProbHi, dbc)
	bas = append(bas, grid2D.ChopDomain(domain, ip.MaxGridSize))
	for lev, boxes := range ip.FineLevels {
		var ba grid2D.BoxArray
		for _, s := range boxes {
			var b grid2D.Box
			if b, err = grid2D.ParseBox(s); err != nil {
				return nil, nil, fmt.Errorf("FineLevels[%d]: %w", lev, err)
			}
			ba = append(ba, b)
		}
		if !ba.Disjoint() {
			return nil, nil, fmt.Errorf("FineLevels[%d]: boxes overlap", lev)
		}
		bas = append(bas, ba)
	}
	return
}

// massFractions orders a name to mass fraction map by the mechanism species and normalizes it
func massFractions(chem chemistry.ChemDriver, comp map[string]float64) (Y []float64, err error) {
	Y = make([]float64, chem.NumSpecies())
	var sum float64
	for name, y := range comp {
		k := chem.SpeciesIndex(name)
		if k < 0 {
			return nil, fmt.Errorf("unknown species %q", name)
		}
		if y < 0 {
			return nil, fmt.Errorf("negative mass fraction %g for %q", y, name)
		}
		Y[k] = y
		sum += y
	}
	if sum <= 0 {
		return nil, fmt.Errorf("composition is empty")
	}
	for k := range Y {
		Y[k] /= sum
	}
	return
}

// InitialCondition builds the initial field named by InitType for the species of chem
func (ip *InputParametersLM) InitialCondition(chem chemistry.ChemDriver) (ic LowMach2D.InitialCondition, err error) {
	var (
		Y    []float64
		u, v = ip.Velocity[0], ip.Velocity[1]
	)
	if Y, err = massFractions(chem, ip.Composition); err != nil {
		return nil, fmt.Errorf("Composition: %w", err)
	}
	switch ip.InitType {
	case InitUniform:
		ic = func(x, y float64) (float64, float64, float64, []float64) {
			return u, v, ip.InitT, Y
		}
	case InitHotSpot:
		if ip.HotRadius <= 0 {
			return nil, fmt.Errorf("HotSpot needs a positive HotRadius, have %g", ip.HotRadius)
		}
		ic = func(x, y float64) (float64, float64, float64, []float64) {
			r2 := (math.Pow(x-ip.HotCenter[0], 2) + math.Pow(y-ip.HotCenter[1], 2)) / (ip.HotRadius * ip.HotRadius)
			return u, v, ip.InitT + (ip.HotT-ip.InitT)*math.Exp(-r2), Y
		}
	case InitLayer:
		var Yox []float64
		if Yox, err = massFractions(chem, ip.Oxidizer); err != nil {
			return nil, fmt.Errorf("Oxidizer: %w", err)
		}
		width := 0.05 * (ip.ProbHi[1] - ip.ProbLo[1])
		ic = func(x, y float64) (float64, float64, float64, []float64) {
			var (
				w  = 0.5 * (1 + math.Tanh((y-ip.LayerY)/width))
				Ym = make([]float64, len(Y))
			)
			for k := range Ym {
				Ym[k] = (1-w)*Y[k] + w*Yox[k]
			}
			return u, v, ip.InitT + (ip.HotT-ip.InitT)*w, Ym
		}
	default:
		return nil, fmt.Errorf("unknown InitType %q, have %s, %s or %s", ip.InitType, InitUniform, InitHotSpot, InitLayer)
	}
	return
}

func (ip *InputParametersLM) Validate() (err error) {
	if err = ip.Config().Validate(); err != nil {
		return
	}
	if _, _, err = ip.Geometry(); err != nil {
		return
	}
	switch {
	case ip.MaxGridSize < 1:
		err = fmt.Errorf("MaxGridSize must be positive, have %d", ip.MaxGridSize)
	case len(ip.FineLevels) > 0 && ip.RefRatio < 2:
		err = fmt.Errorf("RefRatio must be at least 2, have %d", ip.RefRatio)
	case ip.MaxSteps < 0:
		err = fmt.Errorf("MaxSteps must be non negative, have %d", ip.MaxSteps)
	case ip.InitT <= 0:
		err = fmt.Errorf("InitT must be positive, have %g", ip.InitT)
	case ip.InitType != InitUniform && ip.HotT <= 0:
		err = fmt.Errorf("%s needs a positive HotT, have %g", ip.InitType, ip.HotT)
	}
	return
}

func (ip *InputParametersLM) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%d x %d]\t\t= Level 0 cells\n", ip.NCell[0], ip.NCell[1])
	fmt.Printf("[%g, %g] x [%g, %g]\t= Domain\n", ip.ProbLo[0], ip.ProbHi[0], ip.ProbLo[1], ip.ProbHi[1])
	fmt.Printf("[%d]\t\t\t= Fine levels, refinement ratio %d\n", len(ip.FineLevels), ip.RefRatio)
	fmt.Printf("%8.5f\t\t= CFL\n", ip.CFL)
	fmt.Printf("[%d]\t\t\t= SDC passes\n", ip.SDCIterMax)
	fmt.Printf("[%s]\t\t= InitType\n", ip.InitType)
	fmt.Printf("%8.2f\t\t= Ambient pressure\n", ip.P0)
	var flags []string
	for name, on := range map[string]bool{
		"unity_Le":       ip.UnityLe,
		"hack_nochem":    ip.HackNoChem,
		"hack_nospecdif": ip.HackNoSpecDiff,
		"use_wbar":       ip.UseWbar,
		"closed_chamber": ip.ClosedChamber,
		"floor_species":  ip.FloorSpecies,
		"avg_down_chem":  ip.AvgDownChem,
	} {
		if on {
			flags = append(flags, name)
		}
	}
	sort.Strings(flags)
	fmt.Printf("[%s]\t= Switches\n", strings.Join(flags, ", "))
	keys := make([]string, 0, len(ip.BCs))
	for k := range ip.BCs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, ip.BCs[key])
	}
}
