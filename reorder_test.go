package loader

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingHeap_PopsByLoadID(t *testing.T) {
	var h pendingHeap[string]
	for _, id := range []int{5, 1, 3, 2, 4} {
		heap.Push(&h, pendingLoad[string]{completion: Completion[string]{LoadID: id}})
	}
	for want := 1; want <= 5; want++ {
		pl := heap.Pop(&h).(pendingLoad[string])
		require.Equal(t, want, pl.completion.LoadID)
	}
	require.Zero(t, h.Len())
}
