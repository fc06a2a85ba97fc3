package actors

import (
	"context"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/cachestore"
	"github.com/airware/buzzard-go/internal/geomodel"
	"github.com/airware/buzzard-go/internal/priority"
	"github.com/airware/buzzard-go/internal/schedulererr"
	"github.com/airware/buzzard-go/internal/workerpool"
)

// ComputeStatus is the original source's _ComputationTileStatus enum:
// stand_by -> working -> computed.
type ComputeStatus int

const (
	StandBy ComputeStatus = iota
	Working
	Computed
)

// PrimitiveFetcher resolves one primitive's footprint into an array.
// The full bounded/ordered primitive channel contract of spec.md §6 is
// out of scope for the compute function itself; this is the narrow
// synchronous slice of it Computer actually needs.
type PrimitiveFetcher func(ctx context.Context, primitiveName string, fp geomodel.Footprint) (cachestore.Array, error)

// ComputeFn executes one compute tile given its primitive inputs. This
// is the worker-pool task body; the numeric kernel itself is out of
// scope (spec.md §1).
type ComputeFn func(computeFP geomodel.Footprint, primitiveArrays map[string]cachestore.Array) (cachestore.Array, error)

// computeTask is the explicit per-compute-tile state object spec.md §9
// calls for, replacing the source's closure-captured mutable state with
// three named lifecycle methods.
type computeTask struct {
	computer     *Computer
	computeFP    geomodel.Footprint
	primitiveFPs map[string]geomodel.Footprint
}

// ready is invoked by PoolActor when the waiter reaches the front of
// the waiting room. If the tile's status has already advanced past
// stand_by, it declines (spec.md §4.6: "pull and discard primitive
// arrays... and return without submitting" — here there is nothing yet
// pulled to discard, since the pull itself is deferred into the pool
// task below). Both the primitive pull and the compute call happen
// inside the submitted task's own goroutine, never on the scheduler
// goroutine that invoked this handler (spec.md §5: handlers must be
// non-blocking; primitive fetches may be disk or network I/O).
func (t *computeTask) ready() *workerpool.Task {
	c := t.computer
	if c.status[t.computeFP] != StandBy {
		return nil
	}
	c.status[t.computeFP] = Working

	computeFP := t.computeFP
	primitiveFPs := t.primitiveFPs
	fetcher := c.fetcher
	computeFn := c.computeFn
	fut := c.pool.ApplyAsync(func() (any, error) {
		ctx := context.Background()
		primArrays := make(map[string]cachestore.Array, len(primitiveFPs))
		for name, fp := range primitiveFPs {
			arr, err := fetcher(ctx, name, fp)
			if err != nil {
				return nil, err
			}
			primArrays[name] = arr
		}
		return computeFn(computeFP, primArrays)
	})
	return &workerpool.Task{Future: fut, OnComplete: t.onComplete}
}

func (t *computeTask) onComplete(result any, err error) []actor.Msg {
	c := t.computer
	c.status[t.computeFP] = Computed
	src := c.Address()
	if err != nil {
		wrapped := schedulererr.NewPoolTaskFailed(t.computeFP.Key(), err)
		return []actor.Msg{actor.NewMsg(src, NameComputeAccumulator, "done_one_compute", t.computeFP, cachestore.Array{}, wrapped)}
	}
	return []actor.Msg{actor.NewMsg(src, NameComputeAccumulator, "done_one_compute", t.computeFP, result.(cachestore.Array), nil)}
}

// Computer owns, per raster, the compute-tile dedup status and submits
// compute tasks to the compute pool's waiting room (spec.md §4.6),
// grounded on original_source/buzzard/_actor_computer.py's
// ActorComputer.
type Computer struct {
	group     string
	raster    *geomodel.Raster
	pool      *workerpool.Pool
	poolGroup string
	watcher   *priority.Watcher
	fetcher   PrimitiveFetcher
	computeFn ComputeFn
	status    map[geomodel.Footprint]ComputeStatus
	alive     bool
}

func NewComputer(group string, raster *geomodel.Raster, pool *workerpool.Pool, poolGroup string, watcher *priority.Watcher, fetcher PrimitiveFetcher, computeFn ComputeFn) *Computer {
	return &Computer{
		group:     group,
		raster:    raster,
		pool:      pool,
		poolGroup: poolGroup,
		watcher:   watcher,
		fetcher:   fetcher,
		computeFn: computeFn,
		status:    make(map[geomodel.Footprint]ComputeStatus),
		alive:     true,
	}
}

func (c *Computer) Address() actor.Address { return actor.Address{Group: c.group, Name: NameComputer} }
func (c *Computer) Alive() bool            { return c.alive }

func (c *Computer) Handle(title string, args []any) []actor.Msg {
	switch title {
	case "compute_this_array":
		cacheFP := args[0].(geomodel.Footprint)
		return c.scheduleCacheFP(cacheFP)
	case "cancel_this_query":
		// Submitted tasks run to completion regardless (spec.md §5):
		// Computer keeps no per-query record to drop here, since
		// compute_fps_status is deliberately shared dedup state across
		// every live query of the raster.
	}
	return nil
}

func (c *Computer) scheduleCacheFP(cacheFP geomodel.Footprint) []actor.Msg {
	var out []actor.Msg
	src := c.Address()
	for _, computeFP := range c.raster.ComputeFPsOfCacheFP(cacheFP) {
		if _, seen := c.status[computeFP]; seen {
			continue // already submitted at most once, spec.md invariant 4
		}
		c.status[computeFP] = StandBy
		task := &computeTask{computer: c, computeFP: computeFP, primitiveFPs: c.raster.ToCollectOfComputeFP(computeFP)}
		waiter := workerpool.Waiter{
			Priority: c.watcher.PriorityFor("", 0),
			Ready:    task.ready,
		}
		out = append(out, actor.NewMsg(src, actor.Target("/"+c.poolGroup+"/Pool"), "join_waiting_room", waiter))
	}
	return out
}
