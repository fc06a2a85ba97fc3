package actors

import (
	"context"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/cachestore"
	"github.com/airware/buzzard-go/internal/geomodel"
	"github.com/airware/buzzard-go/internal/queryinfo"
)

// pendingAssembly is one produce tile's in-progress set of cache-tile
// reads (spec.md §4.8: "assemble its cache-tile array set").
type pendingAssembly struct {
	qi        *queryinfo.QueryInfos
	qiID      string
	prodID    int
	produceFP geomodel.Footprint
	remaining map[geomodel.Footprint]bool
	arrays    map[geomodel.Footprint]cachestore.Array
}

// CacheExtractor bridges cache-tile readiness (which may still be
// in-flight through Computer/Merger/Writer when a produce task is
// admitted, since admission is gated only by output-queue backpressure)
// to Reader reads. No cache_extractor.py file survived this repo's
// trimmed original-source excerpt, so this is built directly from
// spec.md §4.7's "CacheExtractor emits Reader::read_this_cache_file
// (cache_fp) for each absent-from-memory tile, and waits for
// readbacks".
type CacheExtractor struct {
	group  string
	raster *geomodel.Raster
	store  cachestore.Store

	ready         map[geomodel.Footprint]bool
	failed        map[geomodel.Footprint]error
	waitingOnTile map[geomodel.Footprint][]*pendingAssembly
	pending       map[string]map[int]*pendingAssembly
	alive         bool
}

func NewCacheExtractor(group string, raster *geomodel.Raster, store cachestore.Store) *CacheExtractor {
	return &CacheExtractor{
		group:         group,
		raster:        raster,
		store:         store,
		ready:         make(map[geomodel.Footprint]bool),
		failed:        make(map[geomodel.Footprint]error),
		waitingOnTile: make(map[geomodel.Footprint][]*pendingAssembly),
		pending:       make(map[string]map[int]*pendingAssembly),
		alive:         true,
	}
}

func (e *CacheExtractor) Address() actor.Address {
	return actor.Address{Group: e.group, Name: NameCacheExtractor}
}
func (e *CacheExtractor) Alive() bool { return e.alive }

func (e *CacheExtractor) Handle(title string, args []any) []actor.Msg {
	switch title {
	case "assemble_those_cache_files":
		qi := args[0].(*queryinfo.QueryInfos)
		prodID := args[1].(int)
		produceFP := args[2].(geomodel.Footprint)
		return e.assemble(qi, prodID, produceFP)
	case "cache_file_ready":
		cacheFP := args[0].(geomodel.Footprint)
		return e.onTileReady(cacheFP)
	case "cache_file_failed":
		cacheFP := args[0].(geomodel.Footprint)
		err := args[1].(error)
		return e.onTileFailed(cacheFP, err)
	case "received_cache_array":
		qiID := args[0].(string)
		prodID := args[1].(int)
		cacheFP := args[2].(geomodel.Footprint)
		arr := args[3].(cachestore.Array)
		var err error
		if args[4] != nil {
			err = args[4].(error)
		}
		return e.onArrayReceived(qiID, prodID, cacheFP, arr, err)
	case "cancel_this_query":
		qiID := args[0].(string)
		delete(e.pending, qiID)
	}
	return nil
}

func (e *CacheExtractor) assemble(qi *queryinfo.QueryInfos, prodID int, produceFP geomodel.Footprint) []actor.Msg {
	qiID := qi.ID
	covering := e.raster.CacheFPsOfProduceFP(produceFP)
	pa := &pendingAssembly{
		qi:        qi,
		qiID:      qiID,
		prodID:    prodID,
		produceFP: produceFP,
		remaining: make(map[geomodel.Footprint]bool, len(covering)),
		arrays:    make(map[geomodel.Footprint]cachestore.Array, len(covering)),
	}

	src := e.Address()
	var out []actor.Msg
	for _, tile := range covering {
		if err, failed := e.failed[tile]; failed {
			out = append(out, actor.NewMsg(src, NameProducer, "produce_failed", qiID, prodID, err))
			return out
		}
		pa.remaining[tile] = true
	}

	byProd, ok := e.pending[qiID]
	if !ok {
		byProd = make(map[int]*pendingAssembly)
		e.pending[qiID] = byProd
	}
	byProd[prodID] = pa

	for tile := range pa.remaining {
		if e.ready[tile] {
			out = append(out, actor.NewMsg(src, NameReader, "read_this_cache_file", qiID, prodID, tile))
			continue
		}
		if exists, _ := e.store.Exists(context.Background(), tile); exists {
			e.ready[tile] = true
			out = append(out, actor.NewMsg(src, NameReader, "read_this_cache_file", qiID, prodID, tile))
			continue
		}
		e.waitingOnTile[tile] = append(e.waitingOnTile[tile], pa)
	}
	return out
}

func (e *CacheExtractor) onTileReady(cacheFP geomodel.Footprint) []actor.Msg {
	e.ready[cacheFP] = true
	waiters := e.waitingOnTile[cacheFP]
	delete(e.waitingOnTile, cacheFP)

	src := e.Address()
	var out []actor.Msg
	for _, pa := range waiters {
		if byProd, ok := e.pending[pa.qiID]; ok {
			if _, still := byProd[pa.prodID]; still {
				out = append(out, actor.NewMsg(src, NameReader, "read_this_cache_file", pa.qiID, pa.prodID, cacheFP))
			}
		}
	}
	return out
}

func (e *CacheExtractor) onTileFailed(cacheFP geomodel.Footprint, err error) []actor.Msg {
	e.failed[cacheFP] = err
	waiters := e.waitingOnTile[cacheFP]
	delete(e.waitingOnTile, cacheFP)

	src := e.Address()
	var out []actor.Msg
	for _, pa := range waiters {
		byProd, ok := e.pending[pa.qiID]
		if !ok {
			continue
		}
		if _, still := byProd[pa.prodID]; !still {
			continue
		}
		delete(byProd, pa.prodID)
		out = append(out, actor.NewMsg(src, NameProducer, "produce_failed", pa.qiID, pa.prodID, err))
	}
	return out
}

func (e *CacheExtractor) onArrayReceived(qiID string, prodID int, cacheFP geomodel.Footprint, arr cachestore.Array, err error) []actor.Msg {
	byProd, ok := e.pending[qiID]
	if !ok {
		return nil
	}
	pa, ok := byProd[prodID]
	if !ok {
		return nil
	}

	src := e.Address()
	if err != nil {
		delete(byProd, prodID)
		return []actor.Msg{actor.NewMsg(src, NameProducer, "produce_failed", qiID, prodID, err)}
	}

	pa.arrays[cacheFP] = arr
	delete(pa.remaining, cacheFP)
	if len(pa.remaining) > 0 {
		return nil
	}
	delete(byProd, prodID)
	return []actor.Msg{actor.NewMsg(src, NameResampler, "resample", pa.qi, prodID, pa.produceFP, pa.arrays)}
}
