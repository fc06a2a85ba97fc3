package actors

import (
	"log/slog"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/queryinfo"
)

// queryRecord is QueriesHandler's per-query mutable state (spec.md §3):
// a weak handle to the client's output channel, produced_count,
// queue_size, and a reorder buffer standing in for the original
// source's produce_arrays_dict.
type queryRecord struct {
	qi            *queryinfo.QueryInfos
	weak          *queryinfo.WeakHandle
	producedCount int
	queueSize     int
	reorder       *queryinfo.Reorderer
}

// QueriesHandler is the entry point for external submissions (spec.md
// §4.2), grounded directly on
// original_source/buzzard/_actors/cached/queries_handler.py.
type QueriesHandler struct {
	group   string
	log     *slog.Logger
	queries map[string]*queryRecord
	alive   bool
}

func NewQueriesHandler(group string, log *slog.Logger) *QueriesHandler {
	return &QueriesHandler{
		group:   group,
		log:     log,
		queries: make(map[string]*queryRecord),
		alive:   true,
	}
}

func (h *QueriesHandler) Address() actor.Address { return actor.Address{Group: h.group, Name: NameQueriesHandler} }
func (h *QueriesHandler) Alive() bool             { return h.alive }

// HandleExt implements ext_receive_new_query: builds the query record
// and kicks off the gates. Submissions arrive here directly from a
// client, or from TopLevel's regular Handle path once it has ensured
// the raster group exists (see receiveNewQuery).
func (h *QueriesHandler) HandleExt(title string, args []any) []actor.Msg {
	if title == "new_query" {
		return h.receiveNewQuery(args)
	}
	return nil
}

func (h *QueriesHandler) receiveNewQuery(args []any) []actor.Msg {
	weak := args[0].(*queryinfo.WeakHandle)
	qi := args[1].(*queryinfo.QueryInfos)
	h.queries[qi.ID] = &queryRecord{qi: qi, weak: weak, reorder: queryinfo.NewReorderer()}

	src := h.Address()
	// register_query must precede make_those_arrays: ProductionGate's
	// resulting produce_this_array dispatch is pushed as a pile on
	// top of this one and would otherwise reach Producer before it
	// knows about qi.
	out := []actor.Msg{
		actor.NewMsg(src, watcherAddr, "new_query", qi.ID, qi.RasterName),
		actor.NewMsg(src, NameProducer, "register_query", qi),
		actor.NewMsg(src, NameProductionGate, "make_those_arrays", qi),
	}
	if len(qi.ListOfCacheFP) > 0 {
		out = append(out, actor.NewMsg(src, NameCacheSupervisor, "make_those_cache_tiles_available", qi))
	}
	return out
}

// Tick implements ext_receive_nothing: probe each live channel's weak
// handle and observed size, emitting output_queue_update on change or
// cancelling the query if its channel has died.
func (h *QueriesHandler) Tick() []actor.Msg {
	var out []actor.Msg
	src := h.Address()
	for id, rec := range h.queries {
		ch, alive := rec.weak.Get()
		if !alive {
			out = append(out, h.cancel(id, rec)...)
			continue
		}
		size := ch.Len()
		if size != rec.queueSize {
			rec.queueSize = size
			pulled := rec.producedCount - size
			out = append(out,
				actor.NewMsg(src, NameProductionGate, "output_queue_update", id, rec.producedCount, size),
				actor.NewMsg(src, NameComputationGate, "output_queue_update", id, rec.producedCount, size),
				actor.NewMsg(src, watcherAddr, "output_queue_update", id, pulled),
			)
		}
	}
	return out
}

// Handle implements receive_made_this_array and receive_die.
func (h *QueriesHandler) Handle(title string, args []any) []actor.Msg {
	switch title {
	case "new_query":
		// Internal re-dispatch from TopLevel, once it has ensured this
		// raster's group is registered (the public submission path goes
		// through HandleExt instead).
		return h.receiveNewQuery(args)
	case "made_this_array":
		return h.receiveMadeThisArray(args)
	case "die":
		h.alive = false
		var out []actor.Msg
		for id, rec := range h.queries {
			out = append(out, h.cancel(id, rec)...)
		}
		return out
	}
	return nil
}

func (h *QueriesHandler) receiveMadeThisArray(args []any) []actor.Msg {
	qiID := args[0].(string)
	prodID := args[1].(int)
	pa := queryinfo.ProducedArray{ProdID: prodID}
	if args[2] != nil {
		pa.Array = args[2]
	}
	if err, ok := args[3].(error); ok {
		pa.Err = err
	}

	rec, ok := h.queries[qiID]
	if !ok {
		return nil
	}
	rec.reorder.Add(pa)

	ch, alive := rec.weak.Get()
	if !alive {
		return h.cancel(qiID, rec)
	}

	for _, ready := range rec.reorder.Drain() {
		ch.TryPush(ready)
		rec.producedCount++
		if ready.Err != nil {
			// spec.md §7 PoolTaskFailed: the query is cancelled once its
			// failure record has been delivered.
			return h.cancel(qiID, rec)
		}
	}

	if rec.producedCount >= len(rec.qi.ListOfProduceFP) {
		delete(h.queries, qiID)
	}
	return nil
}

// cancel fans cancel_this_query out to every downstream actor and drops
// the local record (spec.md §4.2, §5 Cancellation).
func (h *QueriesHandler) cancel(qiID string, rec *queryRecord) []actor.Msg {
	delete(h.queries, qiID)
	src := h.Address()
	out := make([]actor.Msg, 0, len(cancelFanout)+1)
	out = append(out, actor.NewDroppableMsg(src, watcherAddr, "cancel_this_query", qiID))
	for _, name := range cancelFanout {
		out = append(out, actor.NewDroppableMsg(src, actor.Target(name), "cancel_this_query", qiID))
	}
	return out
}
