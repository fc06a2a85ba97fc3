package queryinfo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/airware/buzzard-go/internal/geomodel"
)

func newTestRaster(t *testing.T) *geomodel.Raster {
	t.Helper()
	working, err := geomodel.NewFootprint(0, 0, 1, 1, 16, 16)
	require.NoError(t, err)
	grid := geomodel.TileGrid{Working: working, TileW: 4, TileH: 4}
	return &geomodel.Raster{
		Name:        "dem",
		Bands:       []geomodel.BandSchema{{DType: "float32"}},
		StoredFP:    working,
		ProduceGrid: grid,
		CacheGrid:   grid,
		ComputeGrid: grid,
	}
}

func TestNewQueryInfosMonotoneCacheFPMap(t *testing.T) {
	raster := newTestRaster(t)
	all, err := geomodel.ParseIntBandID(-1)
	require.NoError(t, err)

	f0, err := geomodel.NewFootprint(0, 0, 1, 1, 4, 4)
	require.NoError(t, err)
	f1, err := geomodel.NewFootprint(4, 4, 1, 1, 8, 8)
	require.NoError(t, err)

	qi, err := New(raster, []geomodel.Footprint{f0, f1}, []geomodel.BandID{all}, nil, InterpolationNearest, 2)
	require.NoError(t, err)
	require.True(t, qi.IsCacheFPMonotone())
	require.NotEmpty(t, qi.ListOfCacheFP)
	require.NotEmpty(t, qi.ID)
}

func TestNewQueryInfosRejectsZeroMaxQueueSize(t *testing.T) {
	raster := newTestRaster(t)
	f0, err := geomodel.NewFootprint(0, 0, 1, 1, 4, 4)
	require.NoError(t, err)
	_, err = New(raster, []geomodel.Footprint{f0}, nil, nil, InterpolationNearest, 0)
	require.Error(t, err)
}

func TestNewQueryInfosRejectsMisalignedFootprintWithNoInterpolation(t *testing.T) {
	raster := newTestRaster(t)
	misaligned, err := geomodel.NewFootprint(0.5, 0.5, 1, 1, 4, 4)
	require.NoError(t, err)
	_, err = New(raster, []geomodel.Footprint{misaligned}, nil, nil, InterpolationNone, 1)
	require.Error(t, err)
}

func TestEqualityKeyCoalescesIdenticalQueries(t *testing.T) {
	raster := newTestRaster(t)
	f0, err := geomodel.NewFootprint(0, 0, 1, 1, 4, 4)
	require.NoError(t, err)

	qi1, err := New(raster, []geomodel.Footprint{f0}, nil, nil, InterpolationNearest, 1)
	require.NoError(t, err)
	qi2, err := New(raster, []geomodel.Footprint{f0}, nil, nil, InterpolationNearest, 1)
	require.NoError(t, err)

	require.NotEqual(t, qi1.ID, qi2.ID, "distinct submissions get distinct correlation ids")
	require.Equal(t, qi1.EqualityKey(), qi2.EqualityKey(), "structurally identical queries must coalesce")
}
