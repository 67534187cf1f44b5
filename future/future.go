// Package future provides a single-producer, single-consumer deferred value
// with an at-most-one continuation hand-off.
//
// A Future starts pending. Exactly one producer call (Complete or Fail)
// resolves it; the captured value or failure is then delivered exactly once,
// either to a blocked Await call or to a continuation registered via
// OnComplete. Retrieving a result twice is a usage error and fails loudly
// rather than returning stale data.
package future

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
)

const Namespace = "future"

var (
	// ErrAlreadyCompleted is returned by Complete/Fail when the value slot
	// has already been written.
	ErrAlreadyCompleted = errors.New(Namespace + ": value already produced")

	// ErrAlreadyRetrieved is returned by Await when the result has already
	// been consumed once.
	ErrAlreadyRetrieved = errors.New(Namespace + ": result already retrieved")
)

type state int

const (
	statePending state = iota
	stateCompleted
	stateFailed
)

// shared is the state referenced by both the handle and the in-flight
// producer. All transitions happen under mu; done is closed exactly once,
// by the resolving call.
type shared[T any] struct {
	mu        sync.Mutex
	st        state
	val       T
	err       error
	cont      func()
	done      chan struct{}
	retrieved bool
}

// Future is a handle to a value that becomes available later.
type Future[T any] struct {
	s *shared[T]
}

// New returns a pending Future. The caller side that produces the value must
// eventually call Complete or Fail exactly once.
func New[T any]() *Future[T] {
	s := &shared[T]{done: make(chan struct{})}
	// Dropping a handle before its producer resolved it is a usage defect;
	// surface it instead of leaking silently.
	runtime.SetFinalizer(s, finalize[T])
	return &Future[T]{s: s}
}

func finalize[T any](s *shared[T]) {
	s.mu.Lock()
	abandoned := s.st == statePending
	s.mu.Unlock()
	if abandoned {
		slog.Warn(Namespace + ": handle discarded before completion")
	}
}

// Completed returns an already-resolved Future holding v.
func Completed[T any](v T) *Future[T] {
	s := &shared[T]{st: stateCompleted, val: v, done: make(chan struct{})}
	close(s.done)
	return &Future[T]{s: s}
}

// Failed returns an already-resolved Future holding err.
func Failed[T any](err error) *Future[T] {
	s := &shared[T]{st: stateFailed, err: err, done: make(chan struct{})}
	close(s.done)
	return &Future[T]{s: s}
}

// Complete stores v and wakes the consumer. The first resolving call wins;
// subsequent calls return ErrAlreadyCompleted and leave the slot untouched.
func (f *Future[T]) Complete(v T) error {
	return f.resolve(stateCompleted, v, nil)
}

// Fail stores err; it is re-raised exactly once at the point of retrieval.
func (f *Future[T]) Fail(err error) error {
	var zero T
	return f.resolve(stateFailed, zero, err)
}

func (f *Future[T]) resolve(st state, v T, err error) error {
	s := f.s
	s.mu.Lock()
	if s.st != statePending {
		s.mu.Unlock()
		return ErrAlreadyCompleted
	}
	s.st, s.val, s.err = st, v, err
	cont := s.cont
	s.cont = nil
	close(s.done)
	s.mu.Unlock()

	// The continuation reference was claimed under the lock above, so it
	// runs at most once even if a racing registration observed completion.
	if cont != nil {
		cont()
	}
	return nil
}

// Await blocks until the future resolves, then returns the stored value or
// re-raises the stored failure. A second Await on the same handle returns
// ErrAlreadyRetrieved.
func (f *Future[T]) Await() (T, error) {
	s := f.s
	<-s.done
	return f.take()
}

// AwaitContext is Await bounded by ctx. Expiry returns ctx.Err() without
// consuming the result; a later Await can still retrieve it.
func (f *Future[T]) AwaitContext(ctx context.Context) (T, error) {
	s := f.s
	select {
	case <-s.done:
		return f.take()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (f *Future[T]) take() (T, error) {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retrieved {
		var zero T
		return zero, ErrAlreadyRetrieved
	}
	s.retrieved = true
	return s.val, s.err
}

// Ready reports whether the future has resolved. It never blocks and never
// consumes the result.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.s.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the future resolves.
func (f *Future[T]) Done() <-chan struct{} {
	return f.s.done
}

// OnComplete registers interest in the result. If the future has already
// resolved it returns true and fn is not stored: the registrant proceeds
// inline. Otherwise fn is stored and the resolving call invokes it; exactly
// one of the two paths happens. At most one continuation may be registered.
func (f *Future[T]) OnComplete(fn func()) bool {
	s := f.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st != statePending {
		return true
	}
	if s.cont != nil {
		panic(Namespace + ": continuation already registered")
	}
	s.cont = fn
	return false
}
