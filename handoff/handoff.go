// Package handoff provides a thread-safe FIFO used to move finished results
// from background producers to a consumer. It is a general-purpose
// primitive: any producer/consumer pair may use it independently of the
// loading pipeline.
package handoff

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

const Namespace = "handoff"

// ErrEmpty is returned by the non-blocking accessors when the queue holds no
// items, so callers cannot mistake "empty" for a valid zero value.
var ErrEmpty = errors.New(Namespace + ": queue is empty")

// Queue is a mutex-protected FIFO with a not-empty condition. Push order is
// preserved exactly; Len/Empty/Front are snapshots and give no guarantee
// under concurrent mutation. Safe for multiple producers and consumers.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	buf      *queue.Queue
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{buf: queue.New()}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Push appends v and wakes one waiting consumer.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.buf.Add(v)
	q.mu.Unlock()
	q.notEmpty.Signal()
}

// WaitAndPop blocks until the queue is non-empty, then removes and returns
// the front item.
func (q *Queue[T]) WaitAndPop() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.buf.Length() == 0 {
		q.notEmpty.Wait()
	}
	return q.buf.Remove().(T)
}

// TryPop removes and returns the front item, or ErrEmpty without blocking.
func (q *Queue[T]) TryPop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf.Length() == 0 {
		var zero T
		return zero, ErrEmpty
	}
	return q.buf.Remove().(T), nil
}

// Front returns the front item without removing it, or ErrEmpty.
func (q *Queue[T]) Front() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.buf.Length() == 0 {
		var zero T
		return zero, ErrEmpty
	}
	return q.buf.Peek().(T), nil
}

// Len returns the number of queued items at the time of the call.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.buf.Length()
}

// Empty reports whether the queue held no items at the time of the call.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}
