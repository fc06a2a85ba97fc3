// Command schedulerdemo exercises the tile-production scheduler
// end to end against a real Postgres raster catalog and either a disk
// or Redis cache backend, following the teacher's cmd/geo-index
// cobra-rootCmd-with-PersistentPreRunE shape.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/airware/buzzard-go/internal/cachestore"
	"github.com/airware/buzzard-go/internal/config"
	"github.com/airware/buzzard-go/internal/geomodel"
	"github.com/airware/buzzard-go/internal/queryinfo"
	"github.com/airware/buzzard-go/internal/raster/actors"
	"github.com/airware/buzzard-go/internal/rastercatalog"
	"github.com/airware/buzzard-go/internal/rastersource"
	"github.com/airware/buzzard-go/internal/scheduler"
	"github.com/airware/buzzard-go/internal/workerpool"
)

var (
	cacheBackend   string
	tiles          int
	primitivePath  string
	primitiveBand  int
	cfg            config.Config
	catalog        *rastercatalog.Catalog
	log            *slog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "schedulerdemo",
		Short: "Drive the tile production scheduler against a demo raster",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(log)

			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded

			ctx := context.Background()
			cat, err := rastercatalog.New(ctx, cfg.PostgresDSN, log)
			if err != nil {
				return fmt.Errorf("connect catalog: %w", err)
			}
			if err := cat.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure catalog schema: %w", err)
			}
			catalog = cat
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if catalog != nil {
				catalog.Close()
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&cacheBackend, "cache", "disk", "Cache tile backend: disk or redis")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Register the demo raster descriptor in the catalog",
		RunE:  runSeed,
	}
	seedCmd.Flags().IntVar(&tiles, "tiles", 3, "Produce grid width/height in tiles")
	seedCmd.Flags().StringVar(&primitivePath, "primitive-path", "", "Optional GDAL-readable dataset path to register as a source-backed primitive")
	seedCmd.Flags().IntVar(&primitiveBand, "primitive-band", 1, "Band to read from --primitive-path")
	rootCmd.AddCommand(seedCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Submit one query for the demo raster and print every produced tile",
		RunE:  runQuery,
	}
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// demoRasterName is the single raster this demo seeds and queries.
const demoRasterName = "demo-dem"

// demoRaster builds an n x n tile working grid, with cache and compute
// grids matching the produce grid one-to-one (the simplest nontrivial
// topology: one compute tile feeds exactly one cache tile). When
// srcPath is non-empty, the raster also declares one source-backed
// primitive reading directly off that GDAL dataset, so a real run can
// exercise rastersource.Source end to end rather than just the
// synthetic compute kernel.
func demoRaster(tilesPerSide int, srcPath string, srcBand int) *geomodel.Raster {
	const tile = 256
	working := geomodel.Footprint{
		OriginX: 0, OriginY: 0,
		ScaleX: 1, ScaleY: -1,
		Width:  tile * tilesPerSide,
		Height: tile * tilesPerSide,
	}
	grid := geomodel.TileGrid{Working: working, TileW: tile, TileH: tile}
	r := &geomodel.Raster{
		Name:        demoRasterName,
		Bands:       []geomodel.BandSchema{{DType: "float32"}},
		StoredFP:    working,
		ProduceGrid: grid,
		CacheGrid:   grid,
		ComputeGrid: grid,
	}
	if srcPath != "" {
		r.Primitives = []geomodel.Primitive{{Name: "elevation", SourcePath: srcPath, SourceBand: srcBand}}
	}
	return r
}

func runSeed(cmd *cobra.Command, args []string) error {
	raster := demoRaster(tiles, primitivePath, primitiveBand)
	if err := raster.Validate(); err != nil {
		return fmt.Errorf("invalid demo raster: %w", err)
	}
	if err := catalog.Put(cmd.Context(), raster); err != nil {
		return fmt.Errorf("seed demo raster: %w", err)
	}
	fmt.Printf("seeded raster %q (%dx%d tiles)\n", demoRasterName, tiles, tiles)
	return nil
}

// openStore constructs the cache backend named by --cache.
func openStore() (cachestore.Store, error) {
	switch cacheBackend {
	case "disk":
		return cachestore.NewDiskStore(cfg.DiskCacheRoot, log)
	case "redis":
		return cachestore.NewRedisStore(cfg.RedisURL, 24*time.Hour)
	default:
		return nil, fmt.Errorf("unknown --cache backend %q (want disk or redis)", cacheBackend)
	}
}

// demoComputeFn is the synthetic kernel this demo uses in place of the
// real elevation/weather/imagery math spec.md §1 keeps out of scope. If
// an "elevation" primitive was collected for this tile (--primitive-path
// was set at seed time), its values pass through unchanged; otherwise
// the tile is filled with its own pixel index, so a run's output is
// easy to eyeball for correctness either way.
func demoComputeFn(computeFP geomodel.Footprint, primitives map[string]cachestore.Array) (cachestore.Array, error) {
	if elev, ok := primitives["elevation"]; ok {
		return elev, nil
	}
	data := make([]float64, computeFP.Width*computeFP.Height)
	for i := range data {
		data[i] = float64(i)
	}
	return cachestore.Array{Data: data, Width: computeFP.Width, Height: computeFP.Height, Bands: 1}, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}

	computePool := workerpool.NewPool(cfg.ComputePoolSize)
	ioPool := workerpool.NewPool(cfg.IOPoolSize)
	primitives := rastersource.NewSource(cfg.IOPoolSize)
	defer primitives.Close()

	sched := scheduler.New(scheduler.Config{
		Catalog:     catalog,
		Store:       store,
		Pool:        computePool,
		PoolGroup:   "PoolCompute",
		IOPool:      ioPool,
		IOPoolGroup: "PoolIO",
		ComputeFn: func(raster *geomodel.Raster) actors.ComputeFn {
			return demoComputeFn
		},
		Primitives: primitives,
		IdleSleep:  cfg.IdleSleep,
		Log:        log,
	})
	defer sched.Stop()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	raster, _, err := catalog.Get(ctx, demoRasterName)
	if err != nil {
		return fmt.Errorf("load demo raster (did you run `seed` first?): %w", err)
	}
	produceFPs := raster.ProduceGrid.Tiles()

	ch, err := sched.NewQuery(ctx, demoRasterName, produceFPs, nil, nil, queryinfo.InterpolationNone, len(produceFPs))
	if err != nil {
		return fmt.Errorf("submit query: %w", err)
	}

	remaining := len(produceFPs)
	for remaining > 0 {
		select {
		case pa := <-ch.Recv():
			if pa.Err != nil {
				return fmt.Errorf("produce index %d failed: %w", pa.ProdID, pa.Err)
			}
			arr := pa.Array.(cachestore.Array)
			fmt.Printf("produced tile %d: %dx%d, first pixel %g\n", pa.ProdID, arr.Width, arr.Height, arr.Data[0])
			remaining--
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for %d remaining tiles", remaining)
		case <-time.After(100 * time.Millisecond):
			if err := sched.Err(); err != nil {
				return fmt.Errorf("scheduler crashed: %w", err)
			}
		}
	}
	return nil
}
