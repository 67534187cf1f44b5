package loader

// pendingLoad is a finished decode waiting in the reorder buffer for its
// turn to be published. err marks a failed load: it still consumes its
// LoadID slot but never reaches the outward queue.
type pendingLoad[T any] struct {
	completion Completion[T]
	err        error
}

// pendingHeap is a min-heap keyed by LoadID; the root is always the oldest
// unpublished completion.
type pendingHeap[T any] []pendingLoad[T]

func (h pendingHeap[T]) Len() int { return len(h) }

func (h pendingHeap[T]) Less(i, j int) bool {
	return h[i].completion.LoadID < h[j].completion.LoadID
}

func (h pendingHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *pendingHeap[T]) Push(x interface{}) {
	*h = append(*h, x.(pendingLoad[T]))
}

func (h *pendingHeap[T]) Pop() interface{} {
	old := *h
	n := len(old)
	pl := old[n-1]
	old[n-1] = pendingLoad[T]{}
	*h = old[:n-1]
	return pl
}
