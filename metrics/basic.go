package metrics

import (
	"sync"
	"sync/atomic"
)

// BasicProvider aggregates measurements in memory. Instruments are created
// on first request and shared by name afterwards; option metadata is kept
// for introspection only.
type BasicProvider struct {
	mu      sync.Mutex
	cvals   map[string]*atomic.Int64
	uvals   map[string]*atomic.Int64
	hists   map[string]*basicHistogram
	configs map[string]InstrumentConfig
}

// NewBasicProvider constructs an empty in-memory provider.
func NewBasicProvider() *BasicProvider {
	return &BasicProvider{
		cvals:   make(map[string]*atomic.Int64),
		uvals:   make(map[string]*atomic.Int64),
		hists:   make(map[string]*basicHistogram),
		configs: make(map[string]InstrumentConfig),
	}
}

func (p *BasicProvider) storeConfig(name string, opts []InstrumentOption) {
	var cfg InstrumentConfig
	for _, o := range opts {
		if o != nil {
			o(&cfg)
		}
	}
	p.configs[name] = cfg
}

// Counter returns the named monotonic counter.
func (p *BasicProvider) Counter(name string, opts ...InstrumentOption) Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.cvals[name]
	if !ok {
		v = &atomic.Int64{}
		p.cvals[name] = v
		p.storeConfig(name, opts)
	}
	return (*basicAdder)(v)
}

// UpDownCounter returns the named up/down counter.
func (p *BasicProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.uvals[name]
	if !ok {
		v = &atomic.Int64{}
		p.uvals[name] = v
		p.storeConfig(name, opts)
	}
	return (*basicAdder)(v)
}

// Histogram returns the named histogram.
func (p *BasicProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()
	h, ok := p.hists[name]
	if !ok {
		h = &basicHistogram{}
		p.hists[name] = h
		p.storeConfig(name, opts)
	}
	return h
}

// CounterValue returns the current value of the named counter, or 0 if it
// was never created.
func (p *BasicProvider) CounterValue(name string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.cvals[name]; ok {
		return v.Load()
	}
	return 0
}

// UpDownValue returns the current value of the named up/down counter, or 0.
func (p *BasicProvider) UpDownValue(name string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.uvals[name]; ok {
		return v.Load()
	}
	return 0
}

// HistSnapshot is an immutable view of a histogram's aggregate state.
type HistSnapshot struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

// HistogramValue returns a snapshot of the named histogram; the zero
// snapshot if it was never created.
func (p *BasicProvider) HistogramValue(name string) HistSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.hists[name]; ok {
		return h.snapshot()
	}
	return HistSnapshot{}
}

type basicAdder atomic.Int64

func (a *basicAdder) Add(n int64) { (*atomic.Int64)(a).Add(n) }

type basicHistogram struct {
	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
}

func (h *basicHistogram) Record(v float64) {
	h.mu.Lock()
	if h.count == 0 {
		h.min, h.max = v, v
	} else {
		if v < h.min {
			h.min = v
		}
		if v > h.max {
			h.max = v
		}
	}
	h.count++
	h.sum += v
	h.mu.Unlock()
}

func (h *basicHistogram) snapshot() HistSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HistSnapshot{Count: h.count, Sum: h.sum, Min: h.min, Max: h.max}
}
