// Package geomodel implements the raster/footprint geometry that
// spec.md §1 lists as an external collaborator ("assumed available as
// pure functions"), but gives a concrete, exercisable shape to: affine
// grids, tile-grid partitioning, and band identifier normalization.
//
// Corner and bounds arithmetic is built on github.com/paulmach/orb, the
// teacher pack's indirect geo dependency, promoted here to direct use.
package geomodel

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Footprint is an axis-aligned raster window: an affine grid (origin +
// per-pixel scale) plus an integer pixel shape. Two footprints share
// identity iff their grid and shape coincide exactly (spec.md §3);
// Footprint is a plain comparable struct so it can be used directly as
// a map key with Go's built-in exact-equality semantics.
type Footprint struct {
	OriginX, OriginY   float64
	ScaleX, ScaleY     float64
	Width, Height      int
}

// NewFootprint constructs a Footprint, rejecting degenerate grids and
// non-positive pixel shapes. This is the synchronous validation point
// behind spec.md §7's UserInputError for "bad footprint".
func NewFootprint(originX, originY, scaleX, scaleY float64, width, height int) (Footprint, error) {
	if width <= 0 || height <= 0 {
		return Footprint{}, fmt.Errorf("footprint: non-positive shape (%d, %d)", width, height)
	}
	if scaleX == 0 || scaleY == 0 {
		return Footprint{}, fmt.Errorf("footprint: degenerate scale (%g, %g)", scaleX, scaleY)
	}
	return Footprint{
		OriginX: originX, OriginY: originY,
		ScaleX: scaleX, ScaleY: scaleY,
		Width: width, Height: height,
	}, nil
}

// Bounds returns the footprint's axis-aligned extent as an orb.Bound,
// used by geomodel.TileIndex for spatial queries.
func (f Footprint) Bounds() orb.Bound {
	x0, y0 := f.OriginX, f.OriginY
	x1 := x0 + f.ScaleX*float64(f.Width)
	y1 := y0 + f.ScaleY*float64(f.Height)
	return orb.Bound{
		Min: orb.Point{math.Min(x0, x1), math.Min(y0, y1)},
		Max: orb.Point{math.Max(x0, x1), math.Max(y0, y1)},
	}
}

// SameGrid reports whether two footprints share the exact same affine
// grid (origin and scale), independent of shape. A produce footprint
// that is SameGrid as the raster's working grid needs no resampling.
func (f Footprint) SameGrid(other Footprint) bool {
	return f.OriginX == other.OriginX && f.OriginY == other.OriginY &&
		f.ScaleX == other.ScaleX && f.ScaleY == other.ScaleY
}

// AlignedWith reports whether f's origin falls on an integer multiple of
// grid's pixel scale relative to grid's origin, i.e. f could be read
// from grid without resampling. interpolation=none requires this.
func (f Footprint) AlignedWith(grid Footprint) bool {
	if f.ScaleX != grid.ScaleX || f.ScaleY != grid.ScaleY {
		return false
	}
	dx := (f.OriginX - grid.OriginX) / grid.ScaleX
	dy := (f.OriginY - grid.OriginY) / grid.ScaleY
	return isNearInt(dx) && isNearInt(dy)
}

func isNearInt(v float64) bool {
	return math.Abs(v-math.Round(v)) < 1e-9
}

// Intersects reports whether two footprints' bounds overlap.
func (f Footprint) Intersects(other Footprint) bool {
	a, b := f.Bounds(), other.Bounds()
	return a.Min[0] < b.Max[0] && b.Min[0] < a.Max[0] &&
		a.Min[1] < b.Max[1] && b.Min[1] < a.Max[1]
}

// TileGrid partitions a working footprint into a regular grid of equal
// sized tiles, used for produce/cache/compute grid derivation.
type TileGrid struct {
	Working  Footprint
	TileW    int
	TileH    int
}

// Tiles enumerates every tile footprint in row-major order.
func (g TileGrid) Tiles() []Footprint {
	if g.TileW <= 0 || g.TileH <= 0 {
		return nil
	}
	var out []Footprint
	for y := 0; y < g.Working.Height; y += g.TileH {
		h := g.TileH
		if y+h > g.Working.Height {
			h = g.Working.Height - y
		}
		for x := 0; x < g.Working.Width; x += g.TileW {
			w := g.TileW
			if x+w > g.Working.Width {
				w = g.Working.Width - x
			}
			out = append(out, Footprint{
				OriginX: g.Working.OriginX + float64(x)*g.Working.ScaleX,
				OriginY: g.Working.OriginY + float64(y)*g.Working.ScaleY,
				ScaleX:  g.Working.ScaleX,
				ScaleY:  g.Working.ScaleY,
				Width:   w,
				Height:  h,
			})
		}
	}
	return out
}

// TilesCovering returns every tile of the grid whose bounds intersect fp,
// used as the linear-scan fallback/reference implementation that
// TileIndex's R-tree lookup is checked against.
func (g TileGrid) TilesCovering(fp Footprint) []Footprint {
	var out []Footprint
	for _, t := range g.Tiles() {
		if t.Intersects(fp) {
			out = append(out, t)
		}
	}
	return out
}

// Key returns a stable string identity for a footprint, used wherever a
// string key (cache file paths, map keys logged via slog) is more
// convenient than the struct itself.
func (f Footprint) Key() string {
	return fmt.Sprintf("%g_%g_%g_%g_%dx%d", f.OriginX, f.OriginY, f.ScaleX, f.ScaleY, f.Width, f.Height)
}
