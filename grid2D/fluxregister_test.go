package grid2D

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/golowmach/types"
)

func TestFluxRegister(t *testing.T) {
	var (
		wall  = [2]types.BCFLAG{types.BC_Wall, types.BC_Wall}
		cgeom = newTestGeom(8, wall, wall)
		cba   = ChopDomain(cgeom.Domain, 4)
		fba   = BoxArray{NewBox([2]int{4, 4}, [2]int{11, 11})}
		ratio = 2
		dtC   = 0.1
		dtF   = dtC / float64(ratio)
		fc    = 1.
		ff    = 2.
	)
	crseFlux := NewEdgeMultiFabs(cba, 1, 2)
	fineFlux := NewEdgeMultiFabs(fba, 1, 1)
	crseFlux[0].SetVal(fc, 0, 1)
	fineFlux[0].SetVal(ff, 0, 1)

	fr := NewFluxRegister(fba, cgeom, ratio, 1)
	fr.Clear()
	assert.Equal(t, Cleared, fr.State())
	require.NoError(t, fr.CrseInit(crseFlux, 0, 0, 1, -dtC))
	for sub := 0; sub < ratio; sub++ {
		require.NoError(t, fr.FineAdd(fineFlux, 0, 0, 1, dtF))
	}
	assert.Equal(t, Accumulating, fr.State())

	state := NewMultiFab(cba, 1, 0, 2)
	state.SetVal(1, 0, 1)
	before := state.Sum(0)
	require.NoError(t, fr.Reflux(state, 0, 0, 1))
	assert.Equal(t, Consumed, fr.State())

	mismatch := (ff - fc) * dtC // per coarse face
	{ // Low side of the fine level loses, high side gains
		p := state.BA.Find(1, 3)
		assert.InDelta(t, 1-mismatch/cgeom.Dx[0], state.Fabs[p].Get(1, 3, 0), 1e-12)
		p = state.BA.Find(6, 4)
		assert.InDelta(t, 1+mismatch/cgeom.Dx[0], state.Fabs[p].Get(6, 4, 0), 1e-12)
		// No y flux mismatch
		p = state.BA.Find(3, 1)
		assert.InDelta(t, 1., state.Fabs[p].Get(3, 1, 0), 1e-12)
		// Covered cells are not touched
		p = state.BA.Find(3, 3)
		assert.Equal(t, 1., state.Fabs[p].Get(3, 3, 0))
	}
	{ // A uniform mismatch through a closed loop conserves the total
		assert.InDelta(t, before, state.Sum(0), 1e-10)
	}
	{ // Consuming twice without a clear is an error
		assert.ErrorIs(t, fr.Reflux(state, 0, 0, 1), ErrFluxRegisterConsumed)
		assert.ErrorIs(t, fr.FineAdd(fineFlux, 0, 0, 1, dtF), ErrFluxRegisterConsumed)
		fr.Clear()
		snapshot := state.Clone()
		require.NoError(t, fr.Reflux(state, 0, 0, 1))
		for p, fab := range state.Fabs {
			assert.Equal(t, snapshot.Fabs[p].Data, fab.Data)
		}
	}
}

func TestFluxRegisterKnownCorrection(t *testing.T) {
	var (
		wall  = [2]types.BCFLAG{types.BC_Wall, types.BC_Wall}
		cgeom = newTestGeom(8, wall, wall)
		cba   = BoxArray{cgeom.Domain}
		fba   = BoxArray{NewBox([2]int{0, 4}, [2]int{7, 11})}
		ratio = 2
		dtC   = 0.5
	)
	// Fine level touches the x lo wall. Only its x hi face and the y faces see coarse cells.
	crseFlux := NewEdgeMultiFabs(cba, 1, 1)
	fineFlux := NewEdgeMultiFabs(fba, 1, 1)
	crseFlux[0].SetVal(3, 0, 1)
	fineFlux[0].SetVal(1, 0, 1)
	fr := NewFluxRegister(fba, cgeom, ratio, 1)
	fr.Clear()
	require.NoError(t, fr.CrseInit(crseFlux, 0, 0, 1, -dtC))
	for sub := 0; sub < ratio; sub++ {
		require.NoError(t, fr.FineAdd(fineFlux, 0, 0, 1, dtC/float64(ratio)))
	}
	// Four coarse faces on x hi, each carries (1-3)*dtC, the x lo strip is outside the wall
	assert.InDelta(t, 4*(1-3)*dtC, fr.Sum(0), 1e-12)
	state := NewMultiFab(cba, 1, 0, 1)
	require.NoError(t, fr.Reflux(state, 0, 0, 1))
	vol := cgeom.CellVolume()
	// Exact conserved correction: the total coarse content changes by the integrated mismatch
	assert.InDelta(t, 4*(1-3)*dtC*cgeom.Dx[1], state.Sum(0)*vol, 1e-12)
	assert.InDelta(t, (1-3)*dtC/cgeom.Dx[0], state.Fabs[0].Get(4, 3, 0), 1e-12)
}
