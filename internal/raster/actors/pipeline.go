package actors

import (
	"log/slog"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/cachestore"
	"github.com/airware/buzzard-go/internal/geomodel"
	"github.com/airware/buzzard-go/internal/priority"
	"github.com/airware/buzzard-go/internal/workerpool"
)

// NewRasterPipeline constructs all twelve actors that share one
// raster's registry group (spec.md §2's component table), wired against
// a shared cache store, compute pool, and priority watcher. TopLevel
// calls this once per raster on first query; tests call it directly to
// wire an isolated pipeline.
func NewRasterPipeline(
	group string,
	raster *geomodel.Raster,
	store cachestore.Store,
	pool *workerpool.Pool,
	poolGroup string,
	ioPool *workerpool.Pool,
	ioPoolGroup string,
	watcher *priority.Watcher,
	fetcher PrimitiveFetcher,
	computeFn ComputeFn,
	srcNodata *float64,
	log *slog.Logger,
) []actor.Actor {
	if log == nil {
		log = slog.Default()
	}
	return []actor.Actor{
		NewQueriesHandler(group, log),
		NewProductionGate(group),
		NewComputationGate(group),
		NewCacheSupervisor(group, store, log),
		NewComputer(group, raster, pool, poolGroup, watcher, fetcher, computeFn),
		NewComputeAccumulator(group, raster),
		NewMerger(group, raster),
		NewWriter(group, store, ioPool, ioPoolGroup, watcher, log),
		NewReader(group, store, ioPool, ioPoolGroup, watcher, log),
		NewCacheExtractor(group, raster, store),
		NewResampler(group, srcNodata),
		NewProducer(group),
	}
}

// Addresses returns the twelve registry addresses a raster group
// occupies, used by TopLevel to unregister a closed raster's actors.
func Addresses(group string) []actor.Address {
	names := []string{
		NameQueriesHandler, NameProductionGate, NameComputationGate, NameCacheSupervisor,
		NameComputer, NameComputeAccumulator, NameMerger, NameWriter, NameReader,
		NameCacheExtractor, NameResampler, NameProducer,
	}
	out := make([]actor.Address, len(names))
	for i, n := range names {
		out[i] = actor.Address{Group: group, Name: n}
	}
	return out
}
