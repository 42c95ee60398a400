package grid2D

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox(t *testing.T) {
	{ // Coarsening floors negative ghost indices
		assert.Equal(t, -1, CoarsenIndex(-1, 2))
		assert.Equal(t, -1, CoarsenIndex(-2, 2))
		assert.Equal(t, -2, CoarsenIndex(-3, 2))
		assert.Equal(t, 1, CoarsenIndex(3, 2))
	}
	{ // Refine and coarsen round trip
		b := NewBox([2]int{2, 3}, [2]int{5, 7})
		assert.Equal(t, NewBox([2]int{4, 6}, [2]int{11, 15}), b.Refine(2))
		assert.Equal(t, b, b.Refine(2).Coarsen(2))
		assert.True(t, b.Refine(2).Coarsenable(2))
		assert.False(t, NewBox([2]int{1, 0}, [2]int{4, 3}).Coarsenable(2))
	}
	{ // Intersection and containment
		a := NewBox([2]int{0, 0}, [2]int{7, 7})
		b := NewBox([2]int{4, -2}, [2]int{10, 3})
		r, ok := a.Intersect(b)
		require.True(t, ok)
		assert.Equal(t, NewBox([2]int{4, 0}, [2]int{7, 3}), r)
		_, ok = a.Intersect(b.Shift([2]int{10, 0}))
		assert.False(t, ok)
		assert.True(t, a.ContainsBox(r))
		assert.Equal(t, 16, a.Grow(-2).NumPts())
	}
	{ // Faces
		b := NewBox([2]int{0, 0}, [2]int{3, 1})
		assert.Equal(t, NewBox([2]int{0, 0}, [2]int{4, 1}), b.SurroundingFaces(0))
		assert.Equal(t, NewBox([2]int{0, 0}, [2]int{3, 2}), b.SurroundingFaces(1))
		il, jl, ih, jh := FaceNeighbors(1, 2, 1)
		assert.Equal(t, [4]int{2, 0, 2, 1}, [4]int{il, jl, ih, jh})
	}
	{ // ChopDomain tiles without overlap
		dom := NewBox([2]int{0, 0}, [2]int{9, 5})
		ba := ChopDomain(dom, 4)
		assert.Len(t, ba, 6)
		assert.True(t, ba.Disjoint())
		assert.Equal(t, dom.NumPts(), ba.NumPts())
		assert.Equal(t, 5, ba.Find(9, 5))
	}
	{ // Parsing
		b, err := ParseBox(" 0, 0, 15,31")
		require.NoError(t, err)
		assert.Equal(t, NewBox([2]int{0, 0}, [2]int{15, 31}), b)
		_, err = ParseBox("0,0,15")
		assert.Error(t, err)
		_, err = ParseBox("4,0,1,3")
		assert.Error(t, err)
	}
}
