// Package loader implements an ordered background-loading pipeline on top of
// a priority worker pool.
//
// Requests are assigned monotonically increasing load IDs at submission
// time. Each request is decoded concurrently on the pool (newer requests
// outrank older ones by default), and completions are held in a reorder
// buffer until it is their turn: the outward queue only ever receives
// results in strict submission order, regardless of completion order.
// Failed loads consume their slot so ordering still advances, but are not
// published.
//
// The building blocks live in subpackages and are usable on their own:
//   - future: a deferred value with an at-most-one continuation hand-off.
//   - pool: the priority-ordered worker pool.
//   - handoff: the thread-safe FIFO consumed by the downstream reader.
//   - metrics: the instrument surface recorded into by pool and loader.
//
// Pools and loaders are plain values constructed by the embedding
// application and passed to whoever needs them; there is no global state.
package loader
