package pool

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestParallelRange_VisitsEveryIndexExactlyOnce(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		n       int
	}{
		{name: "more work than workers", workers: 4, n: 1000},
		{name: "fewer items than workers", workers: 8, n: 3},
		{name: "single worker", workers: 1, n: 57},
		{name: "single item", workers: 4, n: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(WithWorkers(tt.workers))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer p.Close()

			visits := make([]atomic.Int32, tt.n)
			f := p.ParallelRange(0, tt.n, 0, func(i int) {
				visits[i].Add(1)
			})
			if _, err := f.Await(); err != nil {
				t.Fatalf("combined handle failed: %v", err)
			}
			for i := range visits {
				if got := visits[i].Load(); got != 1 {
					t.Fatalf("index %d visited %d times, want 1", i, got)
				}
			}
		})
	}
}

func TestParallelRange_EmptyRangeResolvesImmediately(t *testing.T) {
	p, err := New(WithWorkers(2))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close()

	f := p.ParallelRange(5, 5, 0, func(int) { t.Errorf("body must not run for an empty range") })
	if !f.Ready() {
		t.Fatalf("empty range handle not immediately ready")
	}
	if _, err := f.Await(); err != nil {
		t.Fatalf("empty range handle failed: %v", err)
	}
}

func TestParallelRange_NonZeroStart(t *testing.T) {
	p, err := New(WithWorkers(3))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close()

	var sum atomic.Int64
	f := p.ParallelRange(10, 20, 0, func(i int) { sum.Add(int64(i)) })
	if _, err := f.Await(); err != nil {
		t.Fatalf("combined handle failed: %v", err)
	}
	// 10 + 11 + ... + 19
	if got := sum.Load(); got != 145 {
		t.Fatalf("sum = %d, want 145", got)
	}
}

func TestParallelRange_BodyPanicFailsCombinedHandle(t *testing.T) {
	p, err := New(WithWorkers(2))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close()

	f := p.ParallelRange(0, 16, 0, func(i int) {
		if i == 7 {
			panic("bad slice")
		}
	})
	if _, err := f.Await(); !errors.Is(err, ErrTaskPanicked) {
		t.Fatalf("combined handle error = %v, want ErrTaskPanicked", err)
	}
}
