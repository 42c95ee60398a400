package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypes(t *testing.T) {
	{ // Boundary names
		for label, want := range map[string]BCFLAG{
			"periodic": BC_Periodic,
			" Wall ":   BC_Wall,
			"NOSLIP":   BC_Wall,
			"slip":     BC_Slip,
			"outflow":  BC_Outflow,
			"sym":      BC_Symmetry,
			"Symmetry": BC_Symmetry,
			"out":      BC_Outflow,
		} {
			bc, err := NewBCFLAG(label)
			require.NoError(t, err, label)
			assert.Equal(t, want, bc, label)
		}
		_, err := NewBCFLAG("inflow")
		assert.Error(t, err)
		assert.Equal(t, "Outflow", BC_Outflow.String())
		assert.Equal(t, "BCFLAG(17)", BCFLAG(17).String())
		assert.True(t, BC_Slip.Closed())
		assert.False(t, BC_Outflow.Closed())
		assert.False(t, BC_Periodic.Closed())
	}
	{ // Directions
		assert.Equal(t, YDir, XDir.Orthogonal())
		assert.Equal(t, XDir, YDir.Orthogonal())
		assert.Equal(t, "Y", YDir.String())
	}
	{ // Domain boundaries
		box := NewDomainBC([NDim]BCFLAG{BC_Periodic, BC_Wall}, [NDim]BCFLAG{BC_Periodic, BC_Slip})
		assert.Equal(t, BC_Slip, box[YDir][Hi])
		assert.True(t, box.Periodic(XDir))
		assert.False(t, box.Periodic(YDir))
		assert.True(t, box.IsClosed())
		open := NewDomainBC([NDim]BCFLAG{BC_Wall, BC_Wall}, [NDim]BCFLAG{BC_Wall, BC_Outflow})
		assert.False(t, open.IsClosed())
	}
}
