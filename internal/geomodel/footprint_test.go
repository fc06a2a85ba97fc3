package geomodel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFootprintEqualityIsExact(t *testing.T) {
	a, err := NewFootprint(0, 0, 1, 1, 10, 10)
	require.NoError(t, err)
	b, err := NewFootprint(0, 0, 1, 1, 10, 10)
	require.NoError(t, err)
	c, err := NewFootprint(0, 0, 1, 1, 11, 10)
	require.NoError(t, err)

	require.Equal(t, a, b, "identical params must compare equal")
	require.NotEqual(t, a, c, "differing shape must compare unequal")

	m := map[Footprint]int{a: 1}
	m[b] = 2
	require.Len(t, m, 1, "equal footprints must hash to the same map key")
}

func TestNewFootprintRejectsDegenerateInputs(t *testing.T) {
	tests := []struct {
		name                     string
		w, h                     int
		sx, sy                   float64
	}{
		{"zero width", 0, 10, 1, 1},
		{"negative height", 10, -1, 1, 1},
		{"zero scale x", 10, 10, 0, 1},
		{"zero scale y", 10, 10, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFootprint(0, 0, tt.sx, tt.sy, tt.w, tt.h)
			require.Error(t, err)
		})
	}
}

func TestFootprintAlignedWith(t *testing.T) {
	grid, err := NewFootprint(0, 0, 2, 2, 100, 100)
	require.NoError(t, err)

	aligned, err := NewFootprint(4, 6, 2, 2, 10, 10)
	require.NoError(t, err)
	require.True(t, aligned.AlignedWith(grid))

	misaligned, err := NewFootprint(5, 6, 2, 2, 10, 10)
	require.NoError(t, err)
	require.False(t, misaligned.AlignedWith(grid))
}

func TestTileGridTilesCoversWholeExtent(t *testing.T) {
	working, err := NewFootprint(0, 0, 1, 1, 10, 10)
	require.NoError(t, err)
	grid := TileGrid{Working: working, TileW: 4, TileH: 4}

	tiles := grid.Tiles()
	// 10/4 -> 3 columns (4,4,2), 3 rows -> 9 tiles, last row/col partial.
	require.Len(t, tiles, 9)

	var area int
	for _, tl := range tiles {
		area += tl.Width * tl.Height
	}
	require.Equal(t, 100, area, "tiles must exactly partition the working extent with no overlap")
}

func TestTileGridTilesCovering(t *testing.T) {
	working, err := NewFootprint(0, 0, 1, 1, 10, 10)
	require.NoError(t, err)
	grid := TileGrid{Working: working, TileW: 5, TileH: 5}

	fp, err := NewFootprint(3, 3, 1, 1, 4, 4)
	require.NoError(t, err)

	covering := grid.TilesCovering(fp)
	require.NotEmpty(t, covering)
	for _, c := range covering {
		require.True(t, c.Intersects(fp))
	}
}
