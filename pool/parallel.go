package pool

import (
	"fmt"
	"sync/atomic"

	"github.com/imgview/loader/future"
)

// ParallelRange partitions [start, end) into min(workers, end-start)
// contiguous, non-empty, non-overlapping sub-ranges and schedules one work
// item per sub-range, each applying body sequentially over its slice. The
// returned handle completes once every sub-range has finished; completion is
// driven by the last finishing item, so no worker ever blocks waiting for
// siblings. An empty range resolves immediately.
func (p *Pool) ParallelRange(start, end, priority int, body func(i int)) *future.Future[struct{}] {
	if end <= start {
		return future.Completed(struct{}{})
	}

	r := end - start
	n := p.Workers()
	if n > r {
		n = r
	}
	if n < 1 {
		n = 1
	}

	combined := future.New[struct{}]()
	var remaining atomic.Int64
	remaining.Store(int64(n))
	var firstErr atomic.Pointer[error]

	for i := 0; i < n; i++ {
		taskStart := start + r*i/n
		taskEnd := start + r*(i+1)/n
		if taskStart >= taskEnd {
			panic(Namespace + ": parallel range produced an empty sub-range")
		}

		p.post(priority, func() {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("%w: %v", ErrTaskPanicked, rec)
					firstErr.CompareAndSwap(nil, &err)
				}
				if remaining.Add(-1) == 0 {
					if ep := firstErr.Load(); ep != nil {
						_ = combined.Fail(*ep)
					} else {
						_ = combined.Complete(struct{}{})
					}
				}
			}()
			for j := taskStart; j < taskEnd; j++ {
				body(j)
			}
		})
	}
	return combined
}
