// Package rastercatalog is a Postgres-backed registry of raster
// descriptors, so the scheduler's data source façade can look a Raster
// up by name instead of requiring callers to construct one by hand on
// every query. Uses the same pgxpool.Pool + slog, one-method-per-statement
// shape as this module's other Postgres-backed components.
package rastercatalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/airware/buzzard-go/internal/geomodel"
)

// Catalog stores and retrieves raster descriptors in a single table,
// keyed by name, with the tile-grid parameters serialized as JSON —
// the grid shapes themselves are small and rarely change, so a
// normalized schema would add ceremony without benefit here.
type Catalog struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// New connects to Postgres using dsn, via the usual
// pgxpool.ParseConfig/NewWithConfig shape.
func New(ctx context.Context, dsn string, log *slog.Logger) (*Catalog, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("rastercatalog: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("rastercatalog: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("rastercatalog: ping: %w", err)
	}
	return &Catalog{pool: pool, log: log}, nil
}

// EnsureSchema creates the catalog table if it does not already exist.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS raster_descriptors (
			name        TEXT PRIMARY KEY,
			descriptor  JSONB NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("rastercatalog: ensure schema: %w", err)
	}
	return nil
}

// descriptorDoc is the JSON-serializable projection of a Raster; it
// excludes the spatial index (rebuilt lazily) and stores primitives
// only as primitiveDoc references, never as embedded raster descriptors.
type descriptorDoc struct {
	Name        string               `json:"name"`
	Bands       []geomodel.BandSchema `json:"bands"`
	StoredFP    geomodel.Footprint   `json:"stored_fp"`
	ProduceGrid gridDoc              `json:"produce_grid"`
	CacheGrid   gridDoc              `json:"cache_grid"`
	ComputeGrid gridDoc              `json:"compute_grid"`
	Primitives  []primitiveDoc       `json:"primitives"`
}

// primitiveDoc is the JSON-serializable projection of a primitive
// reference: either a named upstream raster pipeline (resolved by the
// caller against the catalog) or a GDAL-readable dataset path/band
// pair, read directly with no pipeline of its own.
type primitiveDoc struct {
	Name       string `json:"name"`
	SourcePath string `json:"source_path,omitempty"`
	SourceBand int    `json:"source_band,omitempty"`
}

type gridDoc struct {
	Working        geomodel.Footprint `json:"working"`
	TileW          int                `json:"tile_w"`
	TileH          int                `json:"tile_h"`
}

// Put upserts a raster descriptor.
func (c *Catalog) Put(ctx context.Context, r *geomodel.Raster) error {
	var prims []primitiveDoc
	for _, p := range r.Primitives {
		prims = append(prims, primitiveDoc{Name: p.Name, SourcePath: p.SourcePath, SourceBand: p.SourceBand})
	}
	doc := descriptorDoc{
		Name:        r.Name,
		Bands:       r.Bands,
		StoredFP:    r.StoredFP,
		ProduceGrid: gridDoc{r.ProduceGrid.Working, r.ProduceGrid.TileW, r.ProduceGrid.TileH},
		CacheGrid:   gridDoc{r.CacheGrid.Working, r.CacheGrid.TileW, r.CacheGrid.TileH},
		ComputeGrid: gridDoc{r.ComputeGrid.Working, r.ComputeGrid.TileW, r.ComputeGrid.TileH},
		Primitives:  prims,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("rastercatalog: marshal %s: %w", r.Name, err)
	}
	_, err = c.pool.Exec(ctx, `
		INSERT INTO raster_descriptors (name, descriptor, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET descriptor = EXCLUDED.descriptor, updated_at = now()
	`, r.Name, raw)
	if err != nil {
		return fmt.Errorf("rastercatalog: upsert %s: %w", r.Name, err)
	}
	c.log.Info("raster descriptor stored", "raster", r.Name)
	return nil
}

// Get loads a raster descriptor by name. A primitive backed by a
// GDAL-readable source path is returned fully resolved (no further
// lookup needed); a primitive backed by another raster pipeline is
// returned unresolved (name only, in the second return value) since
// resolving it may require recursively loading other catalog entries —
// the caller (TopLevel) is responsible for that.
func (c *Catalog) Get(ctx context.Context, name string) (*geomodel.Raster, []string, error) {
	var raw []byte
	err := c.pool.QueryRow(ctx, `SELECT descriptor FROM raster_descriptors WHERE name = $1`, name).Scan(&raw)
	if err != nil {
		return nil, nil, fmt.Errorf("rastercatalog: get %s: %w", name, err)
	}
	var doc descriptorDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("rastercatalog: unmarshal %s: %w", name, err)
	}
	r := &geomodel.Raster{
		Name:     doc.Name,
		Bands:    doc.Bands,
		StoredFP: doc.StoredFP,
		ProduceGrid: geomodel.TileGrid{Working: doc.ProduceGrid.Working, TileW: doc.ProduceGrid.TileW, TileH: doc.ProduceGrid.TileH},
		CacheGrid:   geomodel.TileGrid{Working: doc.CacheGrid.Working, TileW: doc.CacheGrid.TileW, TileH: doc.CacheGrid.TileH},
		ComputeGrid: geomodel.TileGrid{Working: doc.ComputeGrid.Working, TileW: doc.ComputeGrid.TileW, TileH: doc.ComputeGrid.TileH},
	}

	var unresolved []string
	for _, p := range doc.Primitives {
		r.Primitives = append(r.Primitives, geomodel.Primitive{Name: p.Name, SourcePath: p.SourcePath, SourceBand: p.SourceBand})
		if p.SourcePath == "" {
			unresolved = append(unresolved, p.Name)
		}
	}
	return r, unresolved, nil
}

// Close releases the underlying connection pool.
func (c *Catalog) Close() { c.pool.Close() }
