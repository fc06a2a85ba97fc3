// Package priority implements GlobalPrioritiesWatcher (spec.md §4.9): a
// single actor that tracks, across every query in every raster, the gap
// between what a client has pulled and what each piece of pending work
// serves, and exposes a pure priority-key function pool actors call
// directly rather than by message (spec.md §9: "provide the pool actors
// a pure priority function").
package priority

import "github.com/airware/buzzard-go/internal/actor"

// Key is the tie-broken priority ordering spec.md §4.8/§9 describes:
// per-query urgency first, then query age, then a stable tie-breaker of
// (raster, submission sequence, produce-index).
type Key struct {
	Urgency       int // pulled_count-to-produce-index distance; smaller is more urgent
	SubmissionSeq int64
	RasterName    string
	ProduceIndex  int
}

// Less reports whether k should be scheduled before other.
func (k Key) Less(other Key) bool {
	if k.Urgency != other.Urgency {
		return k.Urgency < other.Urgency
	}
	if k.SubmissionSeq != other.SubmissionSeq {
		return k.SubmissionSeq < other.SubmissionSeq
	}
	if k.RasterName != other.RasterName {
		return k.RasterName < other.RasterName
	}
	return k.ProduceIndex < other.ProduceIndex
}

type queryState struct {
	rasterName    string
	submissionSeq int64
	pulledCount   int
}

// Watcher is GlobalPrioritiesWatcher. It is registered as an actor (so
// it participates in new_query/output_queue_update/cancel_this_query
// fan-out like every other downstream actor) but never emits messages
// of its own; its handlers only mutate internal bookkeeping.
type Watcher struct {
	addr     actor.Address
	seq      int64
	byQuery  map[string]*queryState
}

// NewWatcher constructs the singleton watcher, conventionally registered
// at /Priorities/Watcher.
func NewWatcher() *Watcher {
	return &Watcher{
		addr:    actor.Address{Group: "Priorities", Name: "Watcher"},
		byQuery: make(map[string]*queryState),
	}
}

func (w *Watcher) Address() actor.Address { return w.addr }
func (w *Watcher) Alive() bool            { return true }

func (w *Watcher) Handle(title string, args []any) []actor.Msg {
	switch title {
	case "new_query":
		qiID := args[0].(string)
		rasterName := args[1].(string)
		w.seq++
		w.byQuery[qiID] = &queryState{rasterName: rasterName, submissionSeq: w.seq}
	case "output_queue_update":
		qiID := args[0].(string)
		pulledCount := args[1].(int)
		if st, ok := w.byQuery[qiID]; ok {
			st.pulledCount = pulledCount
		}
	case "cancel_this_query":
		qiID := args[0].(string)
		delete(w.byQuery, qiID)
	}
	return nil
}

// PriorityFor is the pure function pool actors call directly to rank a
// waiter serving produceIndex of query qiID.
func (w *Watcher) PriorityFor(qiID string, produceIndex int) Key {
	st, ok := w.byQuery[qiID]
	if !ok {
		// Unknown query (e.g. priority requested before new_query has
		// propagated): treat as maximally unurgent so known queries
		// always win ties.
		return Key{Urgency: 1 << 30, SubmissionSeq: 1 << 62, ProduceIndex: produceIndex}
	}
	return Key{
		Urgency:       produceIndex - st.pulledCount,
		SubmissionSeq: st.submissionSeq,
		RasterName:    st.rasterName,
		ProduceIndex:  produceIndex,
	}
}
