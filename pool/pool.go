// Package pool implements a resizable worker pool draining a single
// priority-ordered work queue.
//
// Work enters the queue either as a plain submission (Submit) or as the
// resumption of a previously suspended computation (SubmitContinuation);
// both compete for workers strictly by priority, higher values first.
// Ordering among items of equal priority is unspecified.
package pool

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/ygrebnov/errorc"

	"github.com/imgview/loader/future"
	"github.com/imgview/loader/metrics"
)

const Namespace = "pool"

var (
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")
	ErrTaskPanicked  = errors.New(Namespace + ": task panicked")
)

// stop tokens drain behind all real work so a shrink never abandons
// queued items.
const stopPriority = math.MinInt / 2

type workItem struct {
	priority int
	run      func()
	stop     bool
}

// Pool is a set of worker goroutines executing priority-ordered work items.
// All methods are safe for concurrent use. Submission never blocks; the only
// blocking operations are AwaitIdle, AwaitIdleFor, and Continuation.Await.
type Pool struct {
	mu          sync.Mutex // guards queue, live, stopsQueued
	wake        *sync.Cond // signaled on queue push and shrink
	queue       workQueue
	live        int
	stopsQueued int

	// outstanding is tracked under its own lock so submission and idle
	// waiting never contend with queue operations.
	idleMu      sync.Mutex
	outstanding int
	idleCh      chan struct{} // created on 0->1, closed on 1->0

	wg sync.WaitGroup

	log *slog.Logger

	submitted metrics.Counter
	completed metrics.Counter
	drained   metrics.Counter
	inFlight  metrics.UpDownCounter
	depth     metrics.UpDownCounter
}

// New constructs a Pool and starts its workers.
func New(opts ...Option) (*Pool, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	p := &Pool{
		log:       cfg.logger,
		submitted: cfg.metrics.Counter("pool.tasks.submitted", metrics.WithUnit("1")),
		completed: cfg.metrics.Counter("pool.tasks.completed", metrics.WithUnit("1")),
		drained:   cfg.metrics.Counter("pool.tasks.drained", metrics.WithUnit("1")),
		inFlight:  cfg.metrics.UpDownCounter("pool.tasks.outstanding"),
		depth:     cfg.metrics.UpDownCounter("pool.queue.depth"),
	}
	p.wake = sync.NewCond(&p.mu)
	p.Start(cfg.workers)
	return p, nil
}

// Start spawns n additional workers.
func (p *Pool) Start(n int) {
	p.mu.Lock()
	for i := 0; i < n; i++ {
		p.live++
		p.wg.Add(1)
		go p.worker()
	}
	p.mu.Unlock()
}

// Stop asks up to n workers to exit. Surplus workers finish (or skip, when
// the queue is empty) their current iteration and leave; queued work always
// drains before a stop token is consumed.
func (p *Pool) Stop(n int) {
	p.mu.Lock()
	if remaining := p.live - p.stopsQueued; n > remaining {
		n = remaining
	}
	for i := 0; i < n; i++ {
		p.stopsQueued++
		heap.Push(&p.queue, workItem{priority: stopPriority, stop: true})
	}
	p.mu.Unlock()
	p.wake.Broadcast()
}

// Close drains outstanding work, stops every worker, and joins them.
// The pool can be restarted afterwards with Start.
func (p *Pool) Close() {
	p.AwaitIdle()
	p.mu.Lock()
	n := p.live - p.stopsQueued
	p.mu.Unlock()
	p.Stop(n)
	p.wg.Wait()
}

// Workers returns the target live worker count.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live - p.stopsQueued
}

// Outstanding returns the number of submitted work items not yet fully
// executed. A snapshot only, except that a 0 observed after AwaitIdle is
// exact.
func (p *Pool) Outstanding() int {
	p.idleMu.Lock()
	defer p.idleMu.Unlock()
	return p.outstanding
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.queue.Len() == 0 {
			p.wake.Wait()
		}
		item := heap.Pop(&p.queue).(workItem)
		if item.stop {
			p.live--
			p.stopsQueued--
			p.mu.Unlock()
			p.log.Debug(Namespace + ": worker exiting")
			return
		}
		p.mu.Unlock()

		p.depth.Add(-1)
		item.run()
		p.finish()
	}
}

// post enqueues a work item and wakes one waiting worker. Never blocks.
func (p *Pool) post(priority int, run func()) {
	p.enter()
	p.mu.Lock()
	heap.Push(&p.queue, workItem{priority: priority, run: run})
	p.mu.Unlock()
	p.wake.Signal()
	p.submitted.Add(1)
	p.depth.Add(1)
}

func (p *Pool) enter() {
	p.idleMu.Lock()
	if p.outstanding == 0 {
		p.idleCh = make(chan struct{})
	}
	p.outstanding++
	p.idleMu.Unlock()
	p.inFlight.Add(1)
}

func (p *Pool) finish() {
	p.idleMu.Lock()
	p.outstanding--
	if p.outstanding == 0 {
		close(p.idleCh)
	}
	p.idleMu.Unlock()
	p.inFlight.Add(-1)
	p.completed.Add(1)
}

// Submit schedules fn at the given priority and returns a handle to its
// eventual result. Panics inside fn are captured and delivered as
// ErrTaskPanicked failures.
func Submit[R any](p *Pool, priority int, fn func() (R, error)) *future.Future[R] {
	f := future.New[R]()
	p.post(priority, func() {
		defer func() {
			if r := recover(); r != nil {
				_ = f.Fail(fmt.Errorf("%w: %v", ErrTaskPanicked, r))
			}
		}()
		v, err := fn()
		if err != nil {
			_ = f.Fail(err)
			return
		}
		_ = f.Complete(v)
	})
	return f
}

// AwaitIdle blocks until every submitted work item has fully executed.
// Safe to call from any goroutine.
func (p *Pool) AwaitIdle() {
	for {
		p.idleMu.Lock()
		if p.outstanding == 0 {
			p.idleMu.Unlock()
			return
		}
		ch := p.idleCh
		p.idleMu.Unlock()
		<-ch
	}
}

// AwaitIdleFor is AwaitIdle with a soft timeout. It reports whether the pool
// became idle before the timeout elapsed.
func (p *Pool) AwaitIdleFor(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		p.idleMu.Lock()
		if p.outstanding == 0 {
			p.idleMu.Unlock()
			return true
		}
		ch := p.idleCh
		p.idleMu.Unlock()
		select {
		case <-ch:
		case <-timer.C:
			return false
		}
	}
}

// DrainQueue discards all not-yet-started work items and returns how many
// were removed. Items already executing are unaffected; queued stop tokens
// are preserved.
func (p *Pool) DrainQueue() int {
	p.mu.Lock()
	var kept workQueue
	removed := 0
	for _, item := range p.queue {
		if item.stop {
			kept = append(kept, item)
		} else {
			removed++
		}
	}
	heap.Init(&kept)
	p.queue = kept
	p.mu.Unlock()

	for i := 0; i < removed; i++ {
		p.finish()
	}
	p.drained.Add(int64(removed))
	p.depth.Add(int64(-removed))
	return removed
}

// config holds Pool configuration assembled from options.
type config struct {
	workers int
	logger  *slog.Logger
	metrics metrics.Provider
}

func defaultConfig() config {
	return config{
		workers: runtime.NumCPU(),
		logger:  slog.Default(),
		metrics: metrics.NewNoopProvider(),
	}
}

// Option configures a Pool. Use New(opts...) to construct one.
type Option func(*config) error

// WithWorkers sets the initial worker count. Zero keeps the default
// (runtime.NumCPU()).
func WithWorkers(n int) Option {
	return func(cfg *config) error {
		if n < 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithWorkers requires n >= 0"))
		}
		if n > 0 {
			cfg.workers = n
		}
		return nil
	}
}

// WithLogger sets the structured logger used for worker lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) error {
		if l == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithLogger requires a non-nil logger"))
		}
		cfg.logger = l
		return nil
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(m metrics.Provider) Option {
	return func(cfg *config) error {
		if m == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a non-nil provider"))
		}
		cfg.metrics = m
		return nil
	}
}
