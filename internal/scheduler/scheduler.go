// Package scheduler is the public facade over the actor system: one
// Scheduler per process, owning the cooperative actor.Scheduler
// goroutine, the GlobalPrioritiesWatcher, the compute worker pool
// actor, and TopLevel. It is the only package callers outside this
// module need to import, mirroring the original source's DataSource
// entry point (spec.md §6).
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/cachestore"
	"github.com/airware/buzzard-go/internal/geomodel"
	"github.com/airware/buzzard-go/internal/priority"
	"github.com/airware/buzzard-go/internal/queryinfo"
	"github.com/airware/buzzard-go/internal/rastersource"
	"github.com/airware/buzzard-go/internal/schedulererr"
	"github.com/airware/buzzard-go/internal/toplevel"
	"github.com/airware/buzzard-go/internal/workerpool"
)

// topLevelAddr is TopLevel's fixed routing target, used for every
// public submission this facade makes.
const topLevelAddr = actor.Target("/" + toplevel.GroupName + "/" + toplevel.Name)

// RasterLoader resolves a raster descriptor by name. *rastercatalog.Catalog
// satisfies this; tests substitute a fake to avoid a live Postgres.
type RasterLoader interface {
	Get(ctx context.Context, name string) (*geomodel.Raster, []string, error)
}

// Scheduler owns one actor.Scheduler goroutine and every raster
// pipeline it bootstraps on demand.
type Scheduler struct {
	sched   *actor.Scheduler
	catalog RasterLoader
	log     *slog.Logger
}

// Config bundles what New needs to assemble a running Scheduler.
type Config struct {
	Catalog   RasterLoader
	Store     cachestore.Store
	Pool      *workerpool.Pool
	PoolGroup string
	// IOPool and IOPoolGroup back Reader/Writer's cache-file I/O. If
	// IOPool is nil, Pool/PoolGroup are reused for I/O as well (fine for
	// tests and small demos; production deployments should give I/O its
	// own pool so a slow disk or Redis round-trip never starves compute
	// admission, and vice versa).
	IOPool      *workerpool.Pool
	IOPoolGroup string
	ComputeFn   toplevel.ComputeFnResolver
	SrcNodata   *float64
	// Primitives resolves GDAL-readable dataset paths into pixel windows
	// for primitives registered with a SourcePath in the catalog. Nil is
	// fine for rasters whose primitives are all pipeline-backed.
	Primitives *rastersource.Source
	IdleSleep  time.Duration
	Log        *slog.Logger
}

// New assembles and starts the scheduler loop in its own goroutine. The
// caller must eventually call Stop.
func New(cfg Config) *Scheduler {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	idleSleep := cfg.IdleSleep
	if idleSleep <= 0 {
		idleSleep = 50 * time.Millisecond
	}

	ioPool, ioPoolGroup := cfg.IOPool, cfg.IOPoolGroup
	if ioPool == nil {
		ioPool, ioPoolGroup = cfg.Pool, cfg.PoolGroup
	}

	watcher := priority.NewWatcher()
	poolActor := workerpool.NewPoolActor(cfg.PoolGroup, cfg.Pool)
	top := toplevel.NewTopLevel(cfg.Store, cfg.Pool, cfg.PoolGroup, ioPool, ioPoolGroup, watcher, cfg.ComputeFn, cfg.SrcNodata, cfg.Primitives, log)

	sched := actor.NewScheduler(log, idleSleep)
	sched.Submit(actor.Register(top))
	sched.Submit(actor.Register(watcher))
	sched.Submit(actor.Register(poolActor))
	if ioPoolGroup != cfg.PoolGroup {
		sched.Submit(actor.Register(workerpool.NewPoolActor(ioPoolGroup, ioPool)))
	}

	go sched.Run()

	return &Scheduler{sched: sched, catalog: cfg.Catalog, log: log}
}

// NewQuery validates and submits a client request (spec.md §6's
// ext_receive_new_query). Descriptor resolution and QueryInfos
// construction both happen synchronously here, outside the scheduler
// goroutine, since neither is safe to run inside a handler: catalog
// lookup is blocking database I/O, and validation failures must be
// reported as a schedulererr.UserInputError from this very call rather
// than delivered asynchronously (spec.md §7).
func (s *Scheduler) NewQuery(
	ctx context.Context,
	rasterName string,
	produceFPs []geomodel.Footprint,
	bandIDs []geomodel.BandID,
	dstNodata *float64,
	interp queryinfo.Interpolation,
	maxQueueSize int,
) (*queryinfo.OutputChannel, error) {
	if err := s.sched.Err(); err != nil {
		return nil, err
	}

	raster, _, err := s.catalog.Get(ctx, rasterName)
	if err != nil {
		return nil, schedulererr.NewUserInputError("unknown raster %q: %v", rasterName, err)
	}

	qi, err := queryinfo.New(raster, produceFPs, bandIDs, dstNodata, interp, maxQueueSize)
	if err != nil {
		return nil, schedulererr.NewUserInputError("%v", err)
	}

	ch := queryinfo.NewOutputChannel(maxQueueSize)
	weak := queryinfo.NewWeakHandle(ch)
	s.sched.Submit(actor.NewMsg(actor.Address{}, topLevelAddr, "new_query", raster, weak, qi))
	return ch, nil
}

// CloseRaster cancels every live query against rasterName and tears
// down its pipeline.
func (s *Scheduler) CloseRaster(rasterName string) {
	s.sched.Submit(actor.NewMsg(actor.Address{}, topLevelAddr, "close_raster", rasterName))
}

// Err returns the scheduler's SchedulerCrashed error once its run loop
// has terminated abnormally, nil otherwise (spec.md §7).
func (s *Scheduler) Err() error { return s.sched.Err() }

// Stop requests the scheduler loop to exit after its current step and
// blocks until it has.
func (s *Scheduler) Stop() {
	s.sched.Stop()
	<-s.sched.Done()
}
