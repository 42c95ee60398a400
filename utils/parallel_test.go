package utils

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionMap(t *testing.T) {
	{ // Bucket sizes differ by at most one and cover the range
		getHisto := func(K, Np int) (histo map[int]int) {
			pm := NewPartitionMap(Np, K)
			histo = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				kMin, kMax := pm.GetBucketRange(np)
				histo[kMax-kMin]++
			}
			return
		}
		assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
		assert.Equal(t, map[int]int{1: 32}, getHisto(32, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
		for n := 64; n < 2000; n++ {
			var total int
			histo := getHisto(n, 7)
			assert.LessOrEqual(t, len(histo), 2)
			for size, count := range histo {
				total += size * count
			}
			assert.Equal(t, n, total)
		}
	}
	{ // Every index is found in the bucket whose range holds it
		for maxIndex := 1; maxIndex < 300; maxIndex++ {
			for _, np := range []int{1, 3, 5, 8} {
				pm := NewPartitionMap(np, maxIndex)
				for k := 0; k < maxIndex; k++ {
					bn, kMin, kMax := pm.GetBucket(k)
					require.GreaterOrEqual(t, bn, 0)
					assert.True(t, k >= kMin && k < kMax)
				}
				bn, _, _ := pm.GetBucket(maxIndex)
				assert.Equal(t, -1, bn)
			}
		}
	}
	{ // ParallelDo visits every bucket and reports the first error
		pm := NewPartitionMap(4, 10)
		var (
			mu      sync.Mutex
			visited = make(map[int]bool)
		)
		require.NoError(t, pm.ParallelDo(func(np int) error {
			mu.Lock()
			visited[np] = true
			mu.Unlock()
			return nil
		}))
		assert.Len(t, visited, 4)
		err := pm.ParallelDo(func(np int) error {
			if np >= 2 {
				return assert.AnError
			}
			return nil
		})
		assert.Equal(t, assert.AnError, err)
	}
}

func TestMailBox(t *testing.T) {
	var (
		np = 3
		mb = NewMailBox[int](np)
		pm = NewPartitionMap(np, np)
	)
	for round := 0; round < 2; round++ {
		// Every bucket sends its number plus 10 times the target to every bucket, itself included
		_ = pm.ParallelDo(func(me int) error {
			for target := 0; target < np; target++ {
				mb.PostMessage(me, target, me+10*target+100*round)
			}
			mb.DeliverMyMessages(me)
			return nil
		})
		got := make([][]int, np)
		_ = pm.ParallelDo(func(me int) error {
			mb.ReceiveMyMessages(me)
			got[me] = append(got[me], mb.ReceiveMsgQs[me].Cells()...)
			mb.ClearMyMessages(me)
			return nil
		})
		for me := 0; me < np; me++ {
			var want []int
			for sender := 0; sender < np; sender++ {
				want = append(want, sender+10*me+100*round)
			}
			assert.ElementsMatch(t, want, got[me], "round %d bucket %d", round, me)
			assert.Equal(t, 0, mb.ReceiveMsgQs[me].Len())
		}
	}
	assert.Panics(t, func() { mb.PostMessage(0, np, 1) })
}
