package queryinfo

import "sync/atomic"

// OutputChannel is the client's output channel contract from spec.md
// §6: it must support non-blocking put and a size query. ProductionGate
// never admits more in-flight work than the channel can accept
// (spec.md §4.3), so TryPush is expected to always succeed in practice;
// it still reports failure defensively rather than blocking.
type OutputChannel struct {
	ch chan ProducedArray
}

func NewOutputChannel(capacity int) *OutputChannel {
	return &OutputChannel{ch: make(chan ProducedArray, capacity)}
}

// TryPush is a non-blocking put.
func (c *OutputChannel) TryPush(pa ProducedArray) bool {
	select {
	case c.ch <- pa:
		return true
	default:
		return false
	}
}

// Len reports current occupancy (spec.md §3's queue_size).
func (c *OutputChannel) Len() int { return len(c.ch) }

// Recv is the client-side consumption half, exposed for tests and for
// the data source façade's public read API.
func (c *OutputChannel) Recv() <-chan ProducedArray { return c.ch }

// WeakHandle is an explicit weak reference to an OutputChannel, per
// spec.md §9's design note: "implement via an explicit weak handle +
// liveness probe on each idle tick; do not rely on language finalizers
// beyond detecting the last strong reference dropped." The client holds
// the strong *OutputChannel; QueriesHandler holds only a WeakHandle and
// probes IsAlive() on its keep-alive tick. Release marks the handle
// dead the moment the client is done (standing in for "last strong
// reference dropped", since Go has no portable weak-pointer-collected
// callback prior to explicit opt-in finalizers).
type WeakHandle struct {
	ch       *OutputChannel
	released atomic.Bool
}

func NewWeakHandle(ch *OutputChannel) *WeakHandle {
	return &WeakHandle{ch: ch}
}

// Release marks the handle dead. Safe to call multiple times.
func (w *WeakHandle) Release() { w.released.Store(true) }

// IsAlive reports whether the handle is still usable.
func (w *WeakHandle) IsAlive() bool { return !w.released.Load() }

// Get returns the underlying channel iff the handle is still alive.
func (w *WeakHandle) Get() (*OutputChannel, bool) {
	if !w.IsAlive() {
		return nil, false
	}
	return w.ch, true
}
