package pool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/imgview/loader/future"
	"github.com/imgview/loader/metrics"
)

// newBlockedPool returns a single-worker pool whose worker is parked inside
// a gate task, so subsequently submitted items accumulate in the queue.
func newBlockedPool(t *testing.T) (p *Pool, release func()) {
	t.Helper()
	p, err := New(WithWorkers(1))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	started := make(chan struct{})
	gate := make(chan struct{})
	Submit(p, 0, func() (struct{}, error) {
		close(started)
		<-gate
		return struct{}{}, nil
	})
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("gate task did not start")
	}
	return p, func() { close(gate) }
}

func TestPool_SubmitRoundTrip(t *testing.T) {
	p, err := New(WithWorkers(4))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close()

	n := 64
	futures := make([]*future.Future[int], 0, n)
	for i := 0; i < n; i++ {
		ii := i
		futures = append(futures, Submit(p, 0, func() (int, error) { return ii * ii, nil }))
	}
	for i, f := range futures {
		v, err := f.Await()
		if err != nil {
			t.Fatalf("task %d failed: %v", i, err)
		}
		if v != i*i {
			t.Fatalf("task %d = %d, want %d", i, v, i*i)
		}
	}
}

func TestPool_PriorityOrder(t *testing.T) {
	p, release := newBlockedPool(t)
	defer p.Close()

	var mu sync.Mutex
	var order []int
	for _, prio := range []int{1, 3, 2, 5, 4} {
		pr := prio
		Submit(p, pr, func() (struct{}, error) {
			mu.Lock()
			order = append(order, pr)
			mu.Unlock()
			return struct{}{}, nil
		})
	}

	release()
	p.AwaitIdle()

	mu.Lock()
	defer mu.Unlock()
	want := []int{5, 4, 3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("executed %d tasks, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("execution order = %v, want %v", order, want)
		}
	}
}

func TestPool_AwaitIdleObservesZeroOutstanding(t *testing.T) {
	p, err := New(WithWorkers(3))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close()

	var ran atomic.Int64
	for i := 0; i < 100; i++ {
		Submit(p, i%7, func() (struct{}, error) {
			time.Sleep(time.Millisecond)
			ran.Add(1)
			return struct{}{}, nil
		})
	}
	p.AwaitIdle()
	if got := p.Outstanding(); got != 0 {
		t.Fatalf("Outstanding after AwaitIdle = %d, want 0", got)
	}
	if got := ran.Load(); got != 100 {
		t.Fatalf("ran %d tasks, want 100", got)
	}
}

func TestPool_AwaitIdleForTimesOut(t *testing.T) {
	p, release := newBlockedPool(t)
	defer p.Close()

	if p.AwaitIdleFor(20 * time.Millisecond) {
		t.Fatalf("AwaitIdleFor reported idle while the gate task was running")
	}
	release()
	if !p.AwaitIdleFor(time.Second) {
		t.Fatalf("AwaitIdleFor timed out after the gate was released")
	}
}

func TestPool_DrainQueueDiscardsUnstarted(t *testing.T) {
	p, release := newBlockedPool(t)
	defer p.Close()

	var ran atomic.Int64
	for i := 0; i < 5; i++ {
		Submit(p, 0, func() (struct{}, error) {
			ran.Add(1)
			return struct{}{}, nil
		})
	}

	if removed := p.DrainQueue(); removed != 5 {
		t.Fatalf("DrainQueue removed %d items, want 5", removed)
	}
	release()
	p.AwaitIdle()
	if got := ran.Load(); got != 0 {
		t.Fatalf("%d drained tasks still ran", got)
	}
}

func TestPool_PanicBecomesTaskError(t *testing.T) {
	p, err := New(WithWorkers(1))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close()

	f := Submit(p, 0, func() (int, error) { panic("kaboom") })
	_, err = f.Await()
	if !errors.Is(err, ErrTaskPanicked) {
		t.Fatalf("Await error = %v, want ErrTaskPanicked", err)
	}
}

func TestPool_StopThenStartBehavesLikeFresh(t *testing.T) {
	p, err := New(WithWorkers(2))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	f := Submit(p, 0, func() (int, error) { return 1, nil })
	if v, err := f.Await(); err != nil || v != 1 {
		t.Fatalf("pre-restart task = (%d, %v)", v, err)
	}

	p.Close()
	if got := p.Workers(); got != 0 {
		t.Fatalf("Workers after Close = %d, want 0", got)
	}

	p.Start(2)
	if got := p.Workers(); got != 2 {
		t.Fatalf("Workers after restart = %d, want 2", got)
	}
	f = Submit(p, 0, func() (int, error) { return 2, nil })
	if v, err := f.Await(); err != nil || v != 2 {
		t.Fatalf("post-restart task = (%d, %v)", v, err)
	}
	p.Close()
}

func TestPool_StopDrainsQueuedWorkFirst(t *testing.T) {
	p, release := newBlockedPool(t)

	var ran atomic.Int64
	for i := 0; i < 8; i++ {
		Submit(p, 0, func() (struct{}, error) {
			ran.Add(1)
			return struct{}{}, nil
		})
	}

	// The stop token sits behind all queued items, so the shrink must not
	// abandon them.
	p.Stop(1)
	release()
	p.AwaitIdle()
	p.wg.Wait()

	if got := ran.Load(); got != 8 {
		t.Fatalf("ran %d queued tasks across shrink, want 8", got)
	}
	if got := p.Workers(); got != 0 {
		t.Fatalf("Workers after shrink = %d, want 0", got)
	}
}

func TestPool_MetricsCounters(t *testing.T) {
	m := metrics.NewBasicProvider()
	p, err := New(WithWorkers(2), WithMetrics(m))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer p.Close()

	for i := 0; i < 10; i++ {
		Submit(p, 0, func() (struct{}, error) { return struct{}{}, nil })
	}
	p.AwaitIdle()

	if got := m.CounterValue("pool.tasks.submitted"); got != 10 {
		t.Fatalf("submitted = %d, want 10", got)
	}
	if got := m.CounterValue("pool.tasks.completed"); got != 10 {
		t.Fatalf("completed = %d, want 10", got)
	}
	if got := m.UpDownValue("pool.tasks.outstanding"); got != 0 {
		t.Fatalf("outstanding gauge = %d, want 0", got)
	}
}

func TestPool_InvalidOptions(t *testing.T) {
	if _, err := New(WithWorkers(-1)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("WithWorkers(-1) error = %v, want ErrInvalidConfig", err)
	}
	if _, err := New(WithLogger(nil)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("WithLogger(nil) error = %v, want ErrInvalidConfig", err)
	}
	if _, err := New(WithMetrics(nil)); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("WithMetrics(nil) error = %v, want ErrInvalidConfig", err)
	}
}
