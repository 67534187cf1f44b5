package pool

// Continuation is a one-shot suspension point resumed through the pool's
// priority queue. The suspended computation blocks in Await until a worker
// delivers the resume token, then runs on that worker's slot; it must call
// Release when the segment ends so the worker becomes free again.
//
// Modeling resumption as token passing (rather than invoking a stored
// callback on the worker's stack) keeps the suspended computation on its own
// goroutine while preserving the pool's bounded concurrency: the delivering
// worker stays occupied for exactly as long as the resumed segment runs.
type Continuation struct {
	ready    chan struct{}
	released chan struct{}
}

// NewContinuation returns a continuation that has not yet been scheduled.
func NewContinuation() *Continuation {
	return &Continuation{
		ready:    make(chan struct{}),
		released: make(chan struct{}),
	}
}

// Await blocks until a worker delivers the resume token.
func (c *Continuation) Await() {
	<-c.ready
}

// Resumed returns a channel closed when the resume token has been delivered,
// for callers that need to select.
func (c *Continuation) Resumed() <-chan struct{} {
	return c.ready
}

// Release ends the resumed segment and frees the delivering worker.
// Must be called exactly once after the token was received.
func (c *Continuation) Release() {
	close(c.released)
}

// SubmitContinuation schedules resumption of a suspended computation at the
// given priority. The resumption re-enters the same priority-ordered queue
// as plain work items rather than running inline on an arbitrary goroutine.
func (p *Pool) SubmitContinuation(c *Continuation, priority int) {
	p.post(priority, func() {
		close(c.ready)
		<-c.released
	})
}

// Acquire blocks until a worker at the given priority picks up the caller
// and returns the release func ending the borrowed segment. Typical use:
//
//	release := p.Acquire(priority)
//	defer release()
//	// ... work that should count against the pool's concurrency ...
func (p *Pool) Acquire(priority int) (release func()) {
	c := NewContinuation()
	p.SubmitContinuation(c, priority)
	c.Await()
	return c.Release
}
