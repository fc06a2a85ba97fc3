// Package actors implements the twelve per-raster actors of spec.md
// §2's component table: QueriesHandler, ProductionGate,
// ComputationGate, CacheSupervisor, Computer, ComputeAccumulator,
// Merger, Writer, Reader, CacheExtractor, Resampler, Producer. All
// twelve actors for one raster share a single registry group named
// after the raster, so every cross-actor message within a raster uses
// a bare Target (resolved against the sender's own group per
// spec.md §9).
package actors

// Actor names within a raster's group, used as both registration names
// and bare message targets.
const (
	NameQueriesHandler    = "QueriesHandler"
	NameProductionGate    = "ProductionGate"
	NameComputationGate   = "ComputationGate"
	NameCacheSupervisor   = "CacheSupervisor"
	NameComputer          = "Computer"
	NameComputeAccumulator = "ComputeAccumulator"
	NameMerger            = "Merger"
	NameWriter            = "Writer"
	NameReader            = "Reader"
	NameCacheExtractor    = "CacheExtractor"
	NameResampler         = "Resampler"
	NameProducer          = "Producer"
)

// cancelFanout lists every downstream actor QueriesHandler cancels a
// query against (spec.md §9 supplemented features: the original fanout
// list kept verbatim, including Reader, which holds per-qi in-flight
// read bookkeeping — see reader.go).
var cancelFanout = []string{
	NameProductionGate,
	NameProducer,
	NameResampler,
	NameCacheExtractor,
	NameReader,
	NameCacheSupervisor,
	NameComputationGate,
	NameComputer,
}

const watcherAddr = "/Priorities/Watcher"
