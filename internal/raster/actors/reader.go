package actors

import (
	"context"
	"log/slog"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/cachestore"
	"github.com/airware/buzzard-go/internal/geomodel"
	"github.com/airware/buzzard-go/internal/priority"
	"github.com/airware/buzzard-go/internal/workerpool"
)

// readWaiter is one (query, produce index) pair waiting on cacheFP.
type readWaiter struct {
	qiID   string
	prodID int
}

// Reader performs the actual disk/redis read for a cache tile once
// CacheExtractor knows it exists, submitting the blocking Store.Read
// call to the shared I/O pool rather than running it on the scheduler
// goroutine (spec.md §5: handlers must be non-blocking). It keeps
// per-qi in-flight read bookkeeping (spec.md §9 Open Question, resolved
// in favor of keeping Reader in the cancellation fanout: a cancelled
// query's own in-flight reads are simply discarded on completion rather
// than interrupted mid-flight, since the underlying Store.Read call is
// not itself cancellable once started). No reader.py file survived
// this repo's trimmed original-source excerpt, so this is built
// directly from spec.md §4.7's "Reader::read_this_cache_file(cache_fp)"
// and §9's open question about Reader's place in the cancellation
// fanout.
type Reader struct {
	group     string
	store     cachestore.Store
	pool      *workerpool.Pool
	poolGroup string
	watcher   *priority.Watcher
	log       *slog.Logger

	inFlight  map[string]map[geomodel.Footprint][]readWaiter // qiID -> cacheFP -> waiters
	submitted map[string]map[geomodel.Footprint]bool         // qiID -> cacheFP already in the waiting room
	alive     bool
}

func NewReader(group string, store cachestore.Store, pool *workerpool.Pool, poolGroup string, watcher *priority.Watcher, log *slog.Logger) *Reader {
	return &Reader{
		group:     group,
		store:     store,
		pool:      pool,
		poolGroup: poolGroup,
		watcher:   watcher,
		log:       log,
		inFlight:  make(map[string]map[geomodel.Footprint][]readWaiter),
		submitted: make(map[string]map[geomodel.Footprint]bool),
		alive:     true,
	}
}

func (r *Reader) Address() actor.Address { return actor.Address{Group: r.group, Name: NameReader} }
func (r *Reader) Alive() bool            { return r.alive }

func (r *Reader) Handle(title string, args []any) []actor.Msg {
	switch title {
	case "read_this_cache_file":
		qiID := args[0].(string)
		prodID := args[1].(int)
		cacheFP := args[2].(geomodel.Footprint)
		return r.startRead(qiID, prodID, cacheFP)
	case "cancel_this_query":
		qiID := args[0].(string)
		delete(r.inFlight, qiID)
		delete(r.submitted, qiID)
	}
	return nil
}

// startRead registers (qiID, prodID) against cacheFP and, unless a read
// for this exact (qiID, cacheFP) pair is already in the pool's waiting
// room or working set, joins it. Several waiters accumulating behind
// one in-flight read is the common case once the read itself is
// asynchronous: this is what the waiters slice exists for.
func (r *Reader) startRead(qiID string, prodID int, cacheFP geomodel.Footprint) []actor.Msg {
	byFP, ok := r.inFlight[qiID]
	if !ok {
		byFP = make(map[geomodel.Footprint][]readWaiter)
		r.inFlight[qiID] = byFP
	}
	byFP[cacheFP] = append(byFP[cacheFP], readWaiter{qiID: qiID, prodID: prodID})

	subByFP, ok := r.submitted[qiID]
	if !ok {
		subByFP = make(map[geomodel.Footprint]bool)
		r.submitted[qiID] = subByFP
	}
	if subByFP[cacheFP] {
		return nil
	}
	subByFP[cacheFP] = true

	store := r.store
	src := r.Address()
	ready := func() *workerpool.Task {
		fut := r.pool.ApplyAsync(func() (any, error) {
			return store.Read(context.Background(), cacheFP)
		})
		return &workerpool.Task{
			Future: fut,
			OnComplete: func(result any, err error) []actor.Msg {
				return r.completeRead(qiID, cacheFP, result, err)
			},
		}
	}
	waiter := workerpool.Waiter{Priority: r.watcher.PriorityFor(qiID, prodID), Ready: ready}
	return []actor.Msg{actor.NewMsg(src, actor.Target("/"+r.poolGroup+"/Pool"), "join_waiting_room", waiter)}
}

func (r *Reader) completeRead(qiID string, cacheFP geomodel.Footprint, result any, err error) []actor.Msg {
	byFP, still := r.inFlight[qiID]
	if !still {
		return nil // cancelled while the read was in flight
	}
	pending, ok := byFP[cacheFP]
	if !ok {
		return nil
	}
	delete(byFP, cacheFP)
	if len(byFP) == 0 {
		delete(r.inFlight, qiID)
	}
	if subByFP, ok := r.submitted[qiID]; ok {
		delete(subByFP, cacheFP)
		if len(subByFP) == 0 {
			delete(r.submitted, qiID)
		}
	}

	src := r.Address()
	var out []actor.Msg
	for _, w := range pending {
		if err != nil {
			r.log.Error("cache tile read failed", "cache_fp", cacheFP.Key(), "err", err)
			out = append(out, actor.NewMsg(src, NameCacheExtractor, "received_cache_array", w.qiID, w.prodID, cacheFP, cachestore.Array{}, err))
		} else {
			out = append(out, actor.NewMsg(src, NameCacheExtractor, "received_cache_array", w.qiID, w.prodID, cacheFP, result.(cachestore.Array), nil))
		}
	}
	return out
}
