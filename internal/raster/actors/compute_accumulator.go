package actors

import (
	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/cachestore"
	"github.com/airware/buzzard-go/internal/geomodel"
)

// accumulation is the per-cache-tile merge-readiness record: which
// compute tiles it still needs, which have arrived, and the first error
// seen among them.
type accumulation struct {
	cacheFP  geomodel.Footprint
	missing  map[geomodel.Footprint]bool
	arrays   map[geomodel.Footprint]cachestore.Array
	err      error
}

// ComputeAccumulator groups scattered Computer completions back into
// per-cache-tile sets (spec.md §4.6), grounded on
// original_source/buzzard/_actor_computation_accumulator.py.
// One cache tile may be fed by several compute tiles (or, for an
// already-aligned grid, exactly one); accumulation here is keyed by
// cache tile, registered the moment ComputationGate admits it.
type ComputeAccumulator struct {
	group  string
	raster *geomodel.Raster
	// byComputeFP indexes the in-flight cache tiles waiting on each
	// compute tile, since done_one_compute only reports the compute tile.
	byComputeFP map[geomodel.Footprint][]geomodel.Footprint
	records     map[geomodel.Footprint]*accumulation
	alive       bool
}

func NewComputeAccumulator(group string, raster *geomodel.Raster) *ComputeAccumulator {
	return &ComputeAccumulator{
		group:       group,
		raster:      raster,
		byComputeFP: make(map[geomodel.Footprint][]geomodel.Footprint),
		records:     make(map[geomodel.Footprint]*accumulation),
		alive:       true,
	}
}

func (a *ComputeAccumulator) Address() actor.Address {
	return actor.Address{Group: a.group, Name: NameComputeAccumulator}
}
func (a *ComputeAccumulator) Alive() bool { return a.alive }

func (a *ComputeAccumulator) Handle(title string, args []any) []actor.Msg {
	switch title {
	case "compute_this_array":
		cacheFP := args[0].(geomodel.Footprint)
		return a.register(cacheFP)
	case "done_one_compute":
		computeFP := args[0].(geomodel.Footprint)
		array := args[1].(cachestore.Array)
		var err error
		if args[2] != nil {
			err = args[2].(error)
		}
		return a.receiveDone(computeFP, array, err)
	}
	return nil
}

// register opens an accumulation record for cacheFP the moment
// ComputationGate admits it, so done_one_compute arrivals for its
// compute tiles (which may race register itself) always find a home.
func (a *ComputeAccumulator) register(cacheFP geomodel.Footprint) []actor.Msg {
	if _, ok := a.records[cacheFP]; ok {
		return nil
	}
	computeFPs := a.raster.ComputeFPsOfCacheFP(cacheFP)
	rec := &accumulation{
		cacheFP: cacheFP,
		missing: make(map[geomodel.Footprint]bool, len(computeFPs)),
		arrays:  make(map[geomodel.Footprint]cachestore.Array, len(computeFPs)),
	}
	for _, cfp := range computeFPs {
		rec.missing[cfp] = true
		a.byComputeFP[cfp] = append(a.byComputeFP[cfp], cacheFP)
	}
	a.records[cacheFP] = rec
	return nil
}

func (a *ComputeAccumulator) receiveDone(computeFP geomodel.Footprint, array cachestore.Array, err error) []actor.Msg {
	var out []actor.Msg
	src := a.Address()
	for _, cacheFP := range a.byComputeFP[computeFP] {
		rec, ok := a.records[cacheFP]
		if !ok {
			continue
		}
		delete(rec.missing, computeFP)
		if err != nil && rec.err == nil {
			rec.err = err
		} else if err == nil {
			rec.arrays[computeFP] = array
		}
		if len(rec.missing) == 0 {
			if rec.err != nil {
				out = append(out, actor.NewMsg(src, NameCacheExtractor, "cache_file_failed", cacheFP, rec.err))
			} else {
				out = append(out, actor.NewMsg(src, NameMerger, "schedule_one_merge", cacheFP, rec.arrays))
			}
			delete(a.records, cacheFP)
		}
	}
	delete(a.byComputeFP, computeFP)
	return out
}
