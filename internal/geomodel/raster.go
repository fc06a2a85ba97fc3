package geomodel

import "fmt"

// MaskKind enumerates how a band's validity mask is stored, per
// spec.md §3's band schema.
type MaskKind int

const (
	MaskNone MaskKind = iota
	MaskPerDataset
	MaskPerBand
)

// BandSchema describes one band's dtype, nodata value, and mask kind.
type BandSchema struct {
	DType    string // e.g. "uint8", "float32" — kept as a string, dtype
	         // arithmetic itself is resampling's concern, out of scope.
	Nodata   *float64
	MaskKind MaskKind
}

// Primitive names an upstream raster whose arrays feed a compute
// function for this raster (spec.md §3). A primitive is either another
// live raster pipeline (Raster set, arrays pulled from its own cache)
// or a plain on-disk dataset (SourcePath/SourceBand set, arrays read
// directly via a GDAL source) — the latter covers the common case of a
// static external input (e.g. a terrain or land-cover layer) that has
// no pipeline of its own to query.
type Primitive struct {
	Name   string
	Raster *Raster

	// SourcePath and SourceBand identify a GDAL-readable dataset this
	// primitive is read from directly, in place of a live pipeline.
	// SourceBand is empty/zero for a Raster-backed primitive.
	SourcePath string
	SourceBand int
}

// Raster is the immutable descriptor of one source (spec.md §3). It
// partitions its working footprint into three tile grids and exposes
// pure functions relating tiles across those grids.
type Raster struct {
	Name   string
	Bands  []BandSchema

	StoredFP Footprint
	// StoredToWorking is nil when the stored and working footprints
	// coincide (the common case); non-nil only for rasters that
	// reproject or rescale between storage and the working grid.
	StoredToWorking *Transform

	ProduceGrid TileGrid
	CacheGrid   TileGrid
	ComputeGrid TileGrid

	Primitives []Primitive

	cacheIndex *TileIndex
}

// Transform is a placeholder for a stored-to-working affine remap; the
// remap arithmetic itself belongs to the out-of-scope geometry
// collaborator (spec.md §1), so only the presence/absence matters here.
type Transform struct {
	Description string
}

// WorkingFootprint returns the raster's working-grid footprint (the
// union of its produce grid's tiling), i.e. the grid all three
// partitions share.
func (r *Raster) WorkingFootprint() Footprint {
	return r.ProduceGrid.Working
}

// BuildCacheIndex constructs (once) an R-tree spatial index over the
// raster's cache-grid tiles, used by CacheSupervisor/CacheExtractor to
// resolve covering tiles in O(log n) rather than a linear scan. Grounded
// on github.com/tidwall/rtree, an indirect dependency of the teacher's
// dependency pack promoted to direct use here.
func (r *Raster) BuildCacheIndex() *TileIndex {
	if r.cacheIndex == nil {
		r.cacheIndex = NewTileIndex(r.CacheGrid.Tiles())
	}
	return r.cacheIndex
}

// CacheFPsOfProduceFP returns every cache tile whose bounds intersect
// the given produce footprint, using the spatial index when available.
func (r *Raster) CacheFPsOfProduceFP(produceFP Footprint) []Footprint {
	idx := r.BuildCacheIndex()
	return idx.Covering(produceFP)
}

// ComputeFPsOfCacheFP returns every compute tile that contributes to the
// given cache tile.
func (r *Raster) ComputeFPsOfCacheFP(cacheFP Footprint) []Footprint {
	var out []Footprint
	for _, c := range r.ComputeGrid.Tiles() {
		if c.Intersects(cacheFP) {
			out = append(out, c)
		}
	}
	return out
}

// CacheFPsOfComputeFP returns every cache tile that the given compute
// tile feeds (the inverse relation of ComputeFPsOfCacheFP).
func (r *Raster) CacheFPsOfComputeFP(computeFP Footprint) []Footprint {
	var out []Footprint
	for _, c := range r.CacheGrid.Tiles() {
		if computeFP.Intersects(c) {
			out = append(out, c)
		}
	}
	return out
}

// ToCollectOfComputeFP returns, for each primitive this raster depends
// on, the footprint that must be collected from that primitive before
// computeFP can be computed. Primitive footprints default to computeFP
// itself (same-grid primitives); rasters with a reprojecting primitive
// would override this, which is out of scope here.
func (r *Raster) ToCollectOfComputeFP(computeFP Footprint) map[string]Footprint {
	out := make(map[string]Footprint, len(r.Primitives))
	for _, p := range r.Primitives {
		out[p.Name] = computeFP
	}
	return out
}

// Validate checks structural invariants a UserInputError should catch
// synchronously: at least one band, grids present.
func (r *Raster) Validate() error {
	if len(r.Bands) == 0 {
		return fmt.Errorf("raster %q: no bands declared", r.Name)
	}
	if r.ProduceGrid.TileW <= 0 || r.ProduceGrid.TileH <= 0 {
		return fmt.Errorf("raster %q: invalid produce grid tile shape", r.Name)
	}
	if r.CacheGrid.TileW <= 0 || r.CacheGrid.TileH <= 0 {
		return fmt.Errorf("raster %q: invalid cache grid tile shape", r.Name)
	}
	if r.ComputeGrid.TileW <= 0 || r.ComputeGrid.TileH <= 0 {
		return fmt.Errorf("raster %q: invalid compute grid tile shape", r.Name)
	}
	return nil
}
