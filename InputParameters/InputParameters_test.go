package InputParameters

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/golowmach/chemistry"
	"github.com/notargets/golowmach/grid2D"
	"github.com/notargets/golowmach/types"
)

var hotSpotInput = []byte(`
Title: Hot spot ignition
NCell: [16, 32]
ProbLo: [0, 0]
ProbHi: [0.01, 0.02]
MaxGridSize: 8
BCs:
  XLo: periodic
  XHi: periodic
  YLo: wall
  YHi: outflow
FineLevels:
  - ["8,8,15,23", "16,8,23,23"]
RefRatio: 2
MaxSteps: 20
InitType: HotSpot
InitT: 300
HotT: 1500
HotRadius: 0.001
HotCenter: [0.005, 0.01]
Composition:
  F: 1
  O: 4
  N: 15
unity_Le: true
sdc_iterMAX: 3
closed_chamber: false
cfl: 0.4
divu_ceiling: 2
p_amb: 200000.0
typical_values:
  temp: 1800
consumption_names: [F]
`)

func TestInputParameters(t *testing.T) {
	ip := NewInputParametersLM()
	require.NoError(t, ip.Parse(hotSpotInput))
	require.NoError(t, ip.Validate())
	ip.Print()
	assert.Equal(t, "Hot spot ignition", ip.Title)
	assert.Equal(t, [2]int{16, 32}, ip.NCell)
	assert.Equal(t, InitHotSpot, ip.InitType)
	{ // Keys absent from the file keep their defaults
		assert.Equal(t, 1, ip.NumMacSyncIter)
		assert.Equal(t, 250., ip.TempMin)
		assert.True(t, math.IsInf(ip.StopTime, 1))
	}
	cfg := ip.Config()
	assert.True(t, cfg.UnityLe)
	assert.Equal(t, 3, cfg.SDCIterMax)
	assert.Equal(t, 0.4, cfg.CFL)
	assert.Equal(t, 2, cfg.DivuCeiling)
	assert.Equal(t, 2e5, cfg.P0)
	assert.Equal(t, 1800., cfg.TypicalValues["temp"])
	assert.Equal(t, []string{"F"}, cfg.ConsumptionNames)
	cfg.TypicalValues["temp"] = 1
	assert.Equal(t, 1800., ip.TypicalValues["temp"])

	geom, bas, err := ip.Geometry()
	require.NoError(t, err)
	assert.Equal(t, grid2D.NewBox([2]int{0, 0}, [2]int{15, 31}), geom.Domain)
	assert.Equal(t, 0.01/16, geom.Dx[0])
	assert.True(t, geom.IsPeriodic(0))
	assert.False(t, geom.IsPeriodic(1))
	bc, _ := geom.FaceBC(1, 3, 32)
	assert.Equal(t, types.BC_Outflow, bc)
	require.Len(t, bas, 2)
	assert.Equal(t, 16*32, bas[0].NumPts())
	assert.Len(t, bas[0], 8)
	assert.Equal(t, grid2D.NewBox([2]int{16, 8}, [2]int{23, 23}), bas[1][1])

	chem := chemistry.DefaultMechanism()
	ic, err := ip.InitialCondition(chem)
	require.NoError(t, err)
	{ // Peak temperature at the hot spot centre, normalized composition everywhere
		u, v, T, Y := ic(0.005, 0.01)
		assert.Equal(t, 0., u)
		assert.Equal(t, 0., v)
		assert.InDelta(t, 1500, T, 1e-9)
		var sum float64
		for _, y := range Y {
			sum += y
		}
		assert.InDelta(t, 1, sum, 1e-15)
		assert.InDelta(t, 0.05, Y[chem.SpeciesIndex("F")], 1e-15)
		assert.InDelta(t, 0.2, Y[chem.SpeciesIndex("O")], 1e-15)
		_, _, T, _ = ic(0, 0)
		assert.InDelta(t, 300, T, 1e-6)
	}
}

func TestInputParametersLayer(t *testing.T) {
	ip := NewInputParametersLM()
	require.NoError(t, ip.Parse([]byte(`
InitType: Layer
InitT: 300
HotT: 900
LayerY: 0.005
Velocity: [1.5, 0]
Composition: {F: 0.2, N: 0.8}
Oxidizer: {O: 0.23, N: 0.77}
`)))
	require.NoError(t, ip.Validate())
	chem := chemistry.DefaultMechanism()
	ic, err := ip.InitialCondition(chem)
	require.NoError(t, err)
	u, _, T, Y := ic(0.003, 0)
	assert.Equal(t, 1.5, u)
	assert.Less(t, T, 301.)
	assert.InDelta(t, 0.2, Y[chem.SpeciesIndex("F")], 1e-6)
	_, _, T, Y = ic(0.003, 0.005)
	assert.InDelta(t, 600, T, 1e-9)
	assert.InDelta(t, 0.1, Y[chem.SpeciesIndex("F")], 1e-12)
	assert.InDelta(t, 0.115, Y[chem.SpeciesIndex("O")], 1e-12)
}

func TestInputParametersErrors(t *testing.T) {
	chem := chemistry.DefaultMechanism()
	bad := []string{
		"sdc_iterMAX: 0",
		"NCell: [0, 8]",
		"ProbHi: [0, 0.01]",
		"BCs: {XLo: periodic, XHi: wall, YLo: wall, YHi: wall}",
		"BCs: {XLo: bogus, XHi: wall, YLo: wall, YHi: wall}",
		"MaxGridSize: 0",
		`FineLevels: [["0,0,7"]]`,
		`FineLevels: [["0,0,7,7", "4,4,11,11"]]`,
		"FineLevels: [[\"0,0,7,7\"]]\nRefRatio: 1",
		"MaxSteps: -1",
		"InitT: 0",
		"InitType: HotSpot",
	}
	for _, s := range bad {
		ip := NewInputParametersLM()
		require.NoError(t, ip.Parse([]byte(s)), s)
		assert.Error(t, ip.Validate(), s)
	}
	{ // Composition problems surface when the mechanism is known
		for _, s := range []string{
			"Composition: {Z: 1}",
			"Composition: {F: -1, N: 2}",
			"Composition: {N: 0}",
			"InitType: Unknown",
			"InitType: HotSpot\nHotT: 900",
			"InitType: Layer\nHotT: 900\nOxidizer: {}",
		} {
			ip := NewInputParametersLM()
			require.NoError(t, ip.Parse([]byte(s)), s)
			_, err := ip.InitialCondition(chem)
			assert.Error(t, err, s)
		}
	}
	ip := NewInputParametersLM()
	assert.Error(t, ip.Parse([]byte("NCell: [1, 2")))
}
