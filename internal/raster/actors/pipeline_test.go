package actors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/cachestore"
	"github.com/airware/buzzard-go/internal/geomodel"
	"github.com/airware/buzzard-go/internal/priority"
	"github.com/airware/buzzard-go/internal/queryinfo"
	"github.com/airware/buzzard-go/internal/workerpool"
)

// memStore is a minimal in-memory cachestore.Store fake for exercising
// the pipeline end to end without touching a filesystem.
type memStore struct {
	mu   sync.Mutex
	data map[string]cachestore.Array
}

func newMemStore() *memStore { return &memStore{data: make(map[string]cachestore.Array)} }

func (m *memStore) Exists(_ context.Context, fp geomodel.Footprint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[fp.Key()]
	return ok, nil
}

func (m *memStore) Read(_ context.Context, fp geomodel.Footprint) (cachestore.Array, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[fp.Key()], nil
}

func (m *memStore) WriteAtomic(_ context.Context, fp geomodel.Footprint, arr cachestore.Array) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[fp.Key()] = arr
	return nil
}

// singleTileRaster builds a raster whose produce, cache and compute
// grids are all one tile, so a single produce request needs exactly
// one compute task with no primitives.
func singleTileRaster(name string) *geomodel.Raster {
	working := geomodel.Footprint{OriginX: 0, OriginY: 0, ScaleX: 1, ScaleY: -1, Width: 4, Height: 4}
	grid := geomodel.TileGrid{Working: working, TileW: 4, TileH: 4}
	return &geomodel.Raster{
		Name:        name,
		Bands:       []geomodel.BandSchema{{DType: "float32"}},
		StoredFP:    working,
		ProduceGrid: grid,
		CacheGrid:   grid,
		ComputeGrid: grid,
	}
}

func wireRaster(t *testing.T, group string, raster *geomodel.Raster, store cachestore.Store, computePool *workerpool.Pool, poolGroup string, watcher *priority.Watcher) []actor.Actor {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	computeFn := func(computeFP geomodel.Footprint, _ map[string]cachestore.Array) (cachestore.Array, error) {
		data := make([]float64, computeFP.Width*computeFP.Height)
		for i := range data {
			data[i] = float64(i)
		}
		return cachestore.Array{Data: data, Width: computeFP.Width, Height: computeFP.Height, Bands: 1}, nil
	}
	fetcher := func(_ context.Context, _ string, fp geomodel.Footprint) (cachestore.Array, error) {
		return cachestore.Array{}, nil
	}
	return NewRasterPipeline(group, raster, store, computePool, poolGroup, computePool, poolGroup, watcher, fetcher, computeFn, nil, log)
}

// TestScenarioB_NoCacheComputesWritesAndDelivers covers the no-cache
// path of spec.md §8 scenario B with a single produce footprint:
// nothing is cached yet, so the query must flow through
// Computer/Merger/Writer before the array comes back on the output
// channel, and the cache tile must be written. Admission in waves under
// max_queue_size is not exercised here.
func TestScenarioB_NoCacheComputesWritesAndDelivers(t *testing.T) {
	const group = "R1"
	const poolGroup = "PoolCompute"

	raster := singleTileRaster("r1")
	store := newMemStore()
	pool := workerpool.NewPool(2)
	watcher := priority.NewWatcher()
	poolActor := workerpool.NewPoolActor(poolGroup, pool)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := actor.NewScheduler(log, time.Millisecond)
	for _, a := range wireRaster(t, group, raster, store, pool, poolGroup, watcher) {
		sched.Submit(actor.Register(a))
	}
	sched.Submit(actor.Register(watcher))
	sched.Submit(actor.Register(poolActor))

	go sched.Run()
	defer sched.Stop()

	produceFP := raster.ProduceGrid.Working
	qi, err := queryinfo.New(raster, []geomodel.Footprint{produceFP}, nil, nil, queryinfo.InterpolationNone, 4)
	require.NoError(t, err)

	ch := queryinfo.NewOutputChannel(4)
	weak := queryinfo.NewWeakHandle(ch)

	sched.Submit(actor.NewMsg(actor.Address{}, actor.Target("/"+group+"/QueriesHandler"), "new_query", weak, qi))

	select {
	case pa := <-ch.Recv():
		require.NoError(t, pa.Err)
		require.Equal(t, 0, pa.ProdID)
		arr, ok := pa.Array.(cachestore.Array)
		require.True(t, ok)
		require.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, arr.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for produced array")
	}

	exists, err := store.Exists(context.Background(), raster.CacheGrid.Working)
	require.NoError(t, err)
	require.True(t, exists, "cache tile should have been written")
}

// TestScenarioA_CachedAllPresent covers spec.md §8 scenario A: the
// cache tile already exists on disk, so the query should resolve
// without ever reaching Computer.
func TestScenarioA_CachedAllPresent(t *testing.T) {
	const group = "R1"
	const poolGroup = "PoolCompute"

	raster := singleTileRaster("r1")
	store := newMemStore()
	prewritten := make([]float64, 16)
	for i := range prewritten {
		prewritten[i] = 9
	}
	require.NoError(t, store.WriteAtomic(context.Background(), raster.CacheGrid.Working, cachestore.Array{
		Data: prewritten, Width: 4, Height: 4, Bands: 1,
	}))
	pool := workerpool.NewPool(2)
	watcher := priority.NewWatcher()
	poolActor := workerpool.NewPoolActor(poolGroup, pool)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := actor.NewScheduler(log, time.Millisecond)
	for _, a := range wireRaster(t, group, raster, store, pool, poolGroup, watcher) {
		sched.Submit(actor.Register(a))
	}
	sched.Submit(actor.Register(watcher))
	sched.Submit(actor.Register(poolActor))

	go sched.Run()
	defer sched.Stop()

	produceFP := raster.ProduceGrid.Working
	qi, err := queryinfo.New(raster, []geomodel.Footprint{produceFP}, nil, nil, queryinfo.InterpolationNone, 4)
	require.NoError(t, err)

	ch := queryinfo.NewOutputChannel(4)
	weak := queryinfo.NewWeakHandle(ch)
	sched.Submit(actor.NewMsg(actor.Address{}, actor.Target("/"+group+"/QueriesHandler"), "new_query", weak, qi))

	select {
	case pa := <-ch.Recv():
		require.NoError(t, pa.Err)
		arr := pa.Array.(cachestore.Array)
		require.Equal(t, prewritten, arr.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for produced array")
	}
}

// wireRasterCounting is like wireRaster but lets the caller supply its
// own computeFn (to count submissions) and fetcher (to inject
// failures), for scenarios C and E.
func wireRasterCounting(raster *geomodel.Raster, store cachestore.Store, computePool *workerpool.Pool, poolGroup string, watcher *priority.Watcher, group string, computeFn ComputeFn, fetcher PrimitiveFetcher) []actor.Actor {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRasterPipeline(group, raster, store, computePool, poolGroup, computePool, poolGroup, watcher, fetcher, computeFn, nil, log)
}

// TestScenarioC_ConcurrentIdenticalQueriesDedupCompute covers spec.md §8
// scenario C: two concurrent identical queries against the same
// uncached raster must trigger exactly one compute submission per
// compute tile, and both clients receive the full stream.
func TestScenarioC_ConcurrentIdenticalQueriesDedupCompute(t *testing.T) {
	const group = "R1"
	const poolGroup = "PoolCompute"

	raster := singleTileRaster("r1")
	store := newMemStore()
	pool := workerpool.NewPool(2)
	watcher := priority.NewWatcher()
	poolActor := workerpool.NewPoolActor(poolGroup, pool)

	var computeCalls int64
	computeFn := func(computeFP geomodel.Footprint, _ map[string]cachestore.Array) (cachestore.Array, error) {
		atomic.AddInt64(&computeCalls, 1)
		data := make([]float64, computeFP.Width*computeFP.Height)
		for i := range data {
			data[i] = float64(i)
		}
		return cachestore.Array{Data: data, Width: computeFP.Width, Height: computeFP.Height, Bands: 1}, nil
	}
	fetcher := func(_ context.Context, _ string, fp geomodel.Footprint) (cachestore.Array, error) {
		return cachestore.Array{}, nil
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := actor.NewScheduler(log, time.Millisecond)
	for _, a := range wireRasterCounting(raster, store, pool, poolGroup, watcher, group, computeFn, fetcher) {
		sched.Submit(actor.Register(a))
	}
	sched.Submit(actor.Register(watcher))
	sched.Submit(actor.Register(poolActor))

	go sched.Run()
	defer sched.Stop()

	produceFP := raster.ProduceGrid.Working
	results := make([]<-chan queryinfo.ProducedArray, 0, 2)
	for i := 0; i < 2; i++ {
		qi, err := queryinfo.New(raster, []geomodel.Footprint{produceFP}, nil, nil, queryinfo.InterpolationNone, 4)
		require.NoError(t, err)
		ch := queryinfo.NewOutputChannel(4)
		weak := queryinfo.NewWeakHandle(ch)
		sched.Submit(actor.NewMsg(actor.Address{}, actor.Target("/"+group+"/QueriesHandler"), "new_query", weak, qi))
		results = append(results, ch.Recv())
	}

	for _, r := range results {
		select {
		case pa := <-r:
			require.NoError(t, pa.Err)
			require.Equal(t, 0, pa.ProdID)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for produced array")
		}
	}

	require.Equal(t, int64(1), atomic.LoadInt64(&computeCalls), "compute tile should be submitted at most once across both queries")
}

// TestScenarioD_CancelledQueryDeliversNothingFurther covers spec.md §8
// scenario D: once the client's channel is released (collected), the
// query must be cancelled on the next idle tick and no array for it
// reaches the channel.
func TestScenarioD_CancelledQueryDeliversNothingFurther(t *testing.T) {
	const group = "R1"
	const poolGroup = "PoolCompute"

	raster := singleTileRaster("r1")
	store := newMemStore()
	// Pre-write the cache tile so nothing races the compute path; the
	// cancellation must win before Producer ever gets to deliver it.
	prewritten := make([]float64, 16)
	require.NoError(t, store.WriteAtomic(context.Background(), raster.CacheGrid.Working, cachestore.Array{
		Data: prewritten, Width: 4, Height: 4, Bands: 1,
	}))
	pool := workerpool.NewPool(2)
	watcher := priority.NewWatcher()
	poolActor := workerpool.NewPoolActor(poolGroup, pool)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := actor.NewScheduler(log, time.Millisecond)
	for _, a := range wireRaster(t, group, raster, store, pool, poolGroup, watcher) {
		sched.Submit(actor.Register(a))
	}
	sched.Submit(actor.Register(watcher))
	sched.Submit(actor.Register(poolActor))

	go sched.Run()
	defer sched.Stop()

	produceFP := raster.ProduceGrid.Working
	qi, err := queryinfo.New(raster, []geomodel.Footprint{produceFP}, nil, nil, queryinfo.InterpolationNone, 4)
	require.NoError(t, err)

	ch := queryinfo.NewOutputChannel(4)
	weak := queryinfo.NewWeakHandle(ch)
	weak.Release() // simulate the client's last strong reference being dropped
	sched.Submit(actor.NewMsg(actor.Address{}, actor.Target("/"+group+"/QueriesHandler"), "new_query", weak, qi))

	// Give the scheduler several idle ticks to notice the dead handle
	// and cancel, then confirm nothing ever lands on the channel.
	select {
	case pa := <-ch.Recv():
		t.Fatalf("cancelled query should not deliver an array, got %+v", pa)
	case <-time.After(300 * time.Millisecond):
	}
}

// TestScenarioE_PoolTaskFailureCancelsOnlyAffectedQuery covers spec.md
// §8 scenario E: a compute task failure surfaces a failure record on
// the affected query's channel and cancels it, while an unrelated query
// on its own raster group proceeds normally.
func TestScenarioE_PoolTaskFailureCancelsOnlyAffectedQuery(t *testing.T) {
	const poolGroup = "PoolCompute"
	pool := workerpool.NewPool(2)
	watcher := priority.NewWatcher()
	poolActor := workerpool.NewPoolActor(poolGroup, pool)

	failRaster := singleTileRaster("fails")
	okRaster := singleTileRaster("ok")
	failStore := newMemStore()
	okStore := newMemStore()

	failComputeFn := func(computeFP geomodel.Footprint, _ map[string]cachestore.Array) (cachestore.Array, error) {
		return cachestore.Array{}, errors.New("boom: compute task failed")
	}
	okComputeFn := func(computeFP geomodel.Footprint, _ map[string]cachestore.Array) (cachestore.Array, error) {
		return cachestore.Array{Data: make([]float64, computeFP.Width*computeFP.Height), Width: computeFP.Width, Height: computeFP.Height, Bands: 1}, nil
	}
	noopFetcher := func(_ context.Context, _ string, fp geomodel.Footprint) (cachestore.Array, error) {
		return cachestore.Array{}, nil
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := actor.NewScheduler(log, time.Millisecond)
	for _, a := range wireRasterCounting(failRaster, failStore, pool, poolGroup, watcher, "RFail", failComputeFn, noopFetcher) {
		sched.Submit(actor.Register(a))
	}
	for _, a := range wireRasterCounting(okRaster, okStore, pool, poolGroup, watcher, "ROK", okComputeFn, noopFetcher) {
		sched.Submit(actor.Register(a))
	}
	sched.Submit(actor.Register(watcher))
	sched.Submit(actor.Register(poolActor))

	go sched.Run()
	defer sched.Stop()

	failQI, err := queryinfo.New(failRaster, []geomodel.Footprint{failRaster.ProduceGrid.Working}, nil, nil, queryinfo.InterpolationNone, 4)
	require.NoError(t, err)
	failCh := queryinfo.NewOutputChannel(4)
	sched.Submit(actor.NewMsg(actor.Address{}, actor.Target("/RFail/QueriesHandler"), "new_query", queryinfo.NewWeakHandle(failCh), failQI))

	okQI, err := queryinfo.New(okRaster, []geomodel.Footprint{okRaster.ProduceGrid.Working}, nil, nil, queryinfo.InterpolationNone, 4)
	require.NoError(t, err)
	okCh := queryinfo.NewOutputChannel(4)
	sched.Submit(actor.NewMsg(actor.Address{}, actor.Target("/ROK/QueriesHandler"), "new_query", queryinfo.NewWeakHandle(okCh), okQI))

	select {
	case pa := <-failCh.Recv():
		require.Error(t, pa.Err, "failed compute task should surface a failure record")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for failure record")
	}

	select {
	case pa := <-okCh.Recv():
		require.NoError(t, pa.Err, "unrelated query must be unaffected by the other raster's failure")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for unrelated query's produced array")
	}
}

// TestScenarioF_MisalignedFootprintWithNoInterpolationIsUserInputError
// covers spec.md §8 scenario F: a produce footprint that doesn't align
// with the raster's grid, submitted with interpolation=none, must fail
// synchronously with no scheduler state change — queryinfo.New itself
// is the synchronous validation boundary scheduler.NewQuery wraps in a
// schedulererr.UserInputError.
func TestScenarioF_MisalignedFootprintWithNoInterpolationIsUserInputError(t *testing.T) {
	raster := singleTileRaster("r1")
	misaligned := geomodel.Footprint{OriginX: 0.5, OriginY: 0, ScaleX: 1, ScaleY: -1, Width: 4, Height: 4}

	_, err := queryinfo.New(raster, []geomodel.Footprint{misaligned}, nil, nil, queryinfo.InterpolationNone, 4)
	require.Error(t, err)
	require.Contains(t, fmt.Sprintf("%v", err), "not grid-aligned")
}
