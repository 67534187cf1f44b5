package loader

import (
	"container/heap"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ygrebnov/errorc"

	"github.com/imgview/loader/handoff"
	"github.com/imgview/loader/metrics"
	"github.com/imgview/loader/pool"
)

// DecodeFunc produces the payload for a single load request. It is the
// external collaborator (image decoding, in the surrounding application);
// the pipeline itself never interprets the payload. A non-nil error marks
// the load as failed.
type DecodeFunc[T any] func(path, selector string) (T, error)

// Completion is one finished load, delivered to the consumer in strict
// submission order.
type Completion[T any] struct {
	// LoadID is the sequence number assigned at submission; never reused.
	LoadID int

	// RequestID correlates this completion with log records.
	RequestID uuid.UUID

	Path     string
	Selector string

	// ShallSelect asks the consumer to focus the loaded entry.
	ShallSelect bool

	Value T

	// Replace, when non-nil, identifies a previously published entry this
	// completion supersedes. Carried opaquely; never inspected here.
	Replace any
}

// Loader issues concurrent, variable-latency load requests on a worker pool
// and republishes completions in submission order. Methods are safe for
// concurrent use; Enqueue never blocks the caller beyond directory listing.
type Loader[T any] struct {
	pool      *pool.Pool
	decode    DecodeFunc[T]
	cfg       config
	published *handoff.Queue[Completion[T]]

	// mu guards the reorder buffer and the two sequence counters. It is
	// deliberately separate from the pool's and the published queue's
	// locks, so submitting new work and reordering completions never
	// contend.
	mu            sync.Mutex
	pending       pendingHeap[T]
	nextPublished int
	nextUnsorted  int
	batchStart    time.Time
	batchStartID  int

	// scanMu guards the watched-directory bookkeeping used by Rescan.
	scanMu sync.Mutex
	dirs   map[string]map[string]struct{}
	seen   map[pathSelector]struct{}

	failed       metrics.Counter
	publishedCnt metrics.Counter
	batchSecs    metrics.Histogram
}

// New constructs a Loader running decodes on p.
func New[T any](p *pool.Pool, decode DecodeFunc[T], opts ...Option) (*Loader[T], error) {
	if p == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "New requires a non-nil pool"))
	}
	if decode == nil {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "New requires a non-nil decode func"))
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Loader[T]{
		pool:         p,
		decode:       decode,
		cfg:          cfg,
		published:    handoff.New[Completion[T]](),
		dirs:         make(map[string]map[string]struct{}),
		seen:         make(map[pathSelector]struct{}),
		failed:       cfg.metrics.Counter("loader.loads.failed", metrics.WithUnit("1")),
		publishedCnt: cfg.metrics.Counter("loader.loads.published", metrics.WithUnit("1")),
		batchSecs:    cfg.metrics.Histogram("loader.batch.duration", metrics.WithUnit("seconds")),
	}, nil
}

// Enqueue submits a load request. A directory path is expanded: every file
// inside (recursively, if configured) is enqueued in natural order and the
// directory is remembered for Rescan; only the first file carries
// shallSelect. A plain path is loaded as-is, even if it does not currently
// exist (the decode collaborator reports the failure).
func (l *Loader[T]) Enqueue(path, selector string, shallSelect bool, replace any) {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		l.enqueueDirectory(path, selector, shallSelect)
		return
	}
	l.enqueueFile(path, selector, shallSelect, replace)
}

func (l *Loader[T]) enqueueDirectory(dir, selector string, shallSelect bool) {
	canonical := canonicalPath(dir)
	l.cfg.logger.Info(Namespace+": loading files from directory",
		"dir", canonical, "recursive", l.cfg.recursive)

	files := listFiles(canonical, l.cfg.recursive, l.cfg.logger)
	sortNatural(files)

	l.scanMu.Lock()
	if l.dirs[canonical] == nil {
		l.dirs[canonical] = make(map[string]struct{})
	}
	l.dirs[canonical][selector] = struct{}{}
	for _, f := range files {
		l.seen[pathSelector{path: f, selector: selector}] = struct{}{}
	}
	l.scanMu.Unlock()

	for i, f := range files {
		l.enqueueFile(f, selector, i == 0 && shallSelect, nil)
	}
}

func (l *Loader[T]) enqueueFile(path, selector string, shallSelect bool, replace any) {
	l.mu.Lock()
	// Batch timing starts when the pipeline goes from empty to non-empty
	// and stops when it catches up again.
	if l.nextUnsorted == l.nextPublished {
		l.batchStart = time.Now()
		l.batchStartID = l.nextUnsorted
	}
	loadID := l.nextUnsorted
	l.nextUnsorted++
	l.mu.Unlock()

	requestID := uuid.New()
	priority := l.cfg.priority(loadID)

	go func() {
		release := l.pool.Acquire(priority)
		defer release()

		value, err := l.decode(path, selector)
		if err != nil {
			err = errorc.With(err,
				errorc.String("path", path),
				errorc.String("request_id", requestID.String()),
			)
			l.cfg.logger.Warn(Namespace+": load failed",
				"path", path, "request_id", requestID, "error", err)
			l.failed.Add(1)
		}

		l.mu.Lock()
		heap.Push(&l.pending, pendingLoad[T]{
			completion: Completion[T]{
				LoadID:      loadID,
				RequestID:   requestID,
				Path:        path,
				Selector:    selector,
				ShallSelect: shallSelect,
				Value:       value,
				Replace:     replace,
			},
			err: err,
		})
		l.mu.Unlock()

		if l.publishReady() && l.cfg.notify != nil {
			l.cfg.notify()
		}
	}()
}

// publishReady moves every completion whose turn has come from the reorder
// buffer into the outward queue and reports whether at least one was
// published. Failed loads consume their slot without being published.
func (l *Loader[T]) publishReady() bool {
	published := false

	l.mu.Lock()
	for l.pending.Len() > 0 && l.pending[0].completion.LoadID == l.nextPublished {
		pl := heap.Pop(&l.pending).(pendingLoad[T])
		if pl.err == nil {
			l.published.Push(pl.completion)
			l.publishedCnt.Add(1)
			published = true
		}
		l.nextPublished++
	}
	caughtUp := l.nextPublished == l.nextUnsorted
	batch := l.nextPublished - l.batchStartID
	start := l.batchStart
	l.mu.Unlock()

	if caughtUp && batch > 1 {
		elapsed := time.Since(start)
		l.batchSecs.Record(elapsed.Seconds())
		l.cfg.logger.Info(Namespace+": batch finished",
			"count", batch, "elapsed", elapsed)
	}
	return published
}

// TryPop returns the next published completion, or handoff.ErrEmpty.
func (l *Loader[T]) TryPop() (Completion[T], error) {
	return l.published.TryPop()
}

// Published exposes the outward queue for consumers that want to block.
func (l *Loader[T]) Published() *handoff.Queue[Completion[T]] {
	return l.published
}

// HasPending reports whether any submitted request has not yet been
// published (or, for failed loads, had its slot consumed).
func (l *Loader[T]) HasPending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextPublished != l.nextUnsorted
}

// Rescan diffs every watched directory against the files recorded so far
// and enqueues requests for newly discovered (path, selector) pairs. Fresh
// requests get fresh load IDs and never ask for selection.
func (l *Loader[T]) Rescan() {
	type request struct {
		path     string
		selector string
	}
	var fresh []request

	l.scanMu.Lock()
	for dir, selectors := range l.dirs {
		files := listFiles(dir, l.cfg.recursive, l.cfg.logger)
		sortNatural(files)
		for _, f := range files {
			for selector := range selectors {
				key := pathSelector{path: f, selector: selector}
				if _, ok := l.seen[key]; ok {
					continue
				}
				l.seen[key] = struct{}{}
				fresh = append(fresh, request{path: f, selector: selector})
			}
		}
	}
	l.scanMu.Unlock()

	for _, r := range fresh {
		l.enqueueFile(r.path, r.selector, false, nil)
	}
}
