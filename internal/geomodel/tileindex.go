package geomodel

import "github.com/tidwall/rtree"

// TileIndex is a spatial index over a raster's cache-grid tiles,
// grounded on github.com/tidwall/rtree — the teacher pack's indirect
// R-tree dependency, promoted to a direct dependency here because
// CacheSupervisor and CacheExtractor both need "which tiles cover this
// footprint" at query time, not just at grid-construction time.
type TileIndex struct {
	tr    rtree.RTreeG[Footprint]
	tiles []Footprint
}

// NewTileIndex builds an index over the given tiles.
func NewTileIndex(tiles []Footprint) *TileIndex {
	idx := &TileIndex{tiles: tiles}
	for _, t := range tiles {
		b := t.Bounds()
		idx.tr.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, t)
	}
	return idx
}

// Covering returns every indexed tile whose bounds intersect fp.
func (idx *TileIndex) Covering(fp Footprint) []Footprint {
	b := fp.Bounds()
	var out []Footprint
	idx.tr.Search(
		[2]float64{b.Min[0], b.Min[1]},
		[2]float64{b.Max[0], b.Max[1]},
		func(_, _ [2]float64, tile Footprint) bool {
			if tile.Intersects(fp) {
				out = append(out, tile)
			}
			return true
		},
	)
	return out
}

// Len reports how many tiles are indexed.
func (idx *TileIndex) Len() int { return len(idx.tiles) }
