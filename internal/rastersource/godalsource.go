// Package rastersource reads pixel windows out of real on-disk raster
// datasets via GDAL, for use as Raster primitive input (spec.md §3's
// "primitives are named upstream rasters whose arrays feed the compute
// function"). Adapted from the GLO90Reader elevation-tile reader this
// module's cache and catalog layers also descend from: a package-level
// mutex serializing all GDAL calls (libtiff/GDAL are not goroutine-safe),
// an LRU of open datasets to bound file-handle and memory use, and a
// singleflight.Group so concurrent requests for the same window collapse
// into one disk read.
package rastersource

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
	"golang.org/x/sync/singleflight"

	"github.com/airware/buzzard-go/internal/geomodel"
)

// gdalMu serializes every call into GDAL across the whole process:
// GDAL/libtiff are not safe to call concurrently from multiple
// goroutines.
var gdalMu sync.Mutex

type cachedDataset struct {
	path string
	ds   *godal.Dataset
}

// Source reads windows from one or more GDAL datasets on disk, caching
// open datasets in an LRU (bounded file handles) and deduplicating
// concurrent reads of the same window via singleflight.
type Source struct {
	mu       sync.Mutex
	lru      *list.List
	byPath   map[string]*list.Element
	maxOpen  int
	sf       singleflight.Group
}

// NewSource constructs a Source that keeps at most maxOpen datasets
// open at once.
func NewSource(maxOpen int) *Source {
	if maxOpen <= 0 {
		maxOpen = 16
	}
	return &Source{
		lru:     list.New(),
		byPath:  make(map[string]*list.Element),
		maxOpen: maxOpen,
	}
}

func (s *Source) open(path string) (*godal.Dataset, error) {
	s.mu.Lock()
	if el, ok := s.byPath[path]; ok {
		s.lru.MoveToFront(el)
		ds := el.Value.(*cachedDataset).ds
		s.mu.Unlock()
		return ds, nil
	}
	s.mu.Unlock()

	gdalMu.Lock()
	ds, err := godal.Open(path)
	gdalMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("rastersource: open %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.byPath[path]; ok {
		// Lost a race to open the same path; keep the winner, close ours.
		gdalMu.Lock()
		ds.Close()
		gdalMu.Unlock()
		return el.Value.(*cachedDataset).ds, nil
	}
	el := s.lru.PushFront(&cachedDataset{path: path, ds: ds})
	s.byPath[path] = el
	s.evictLocked()
	return ds, nil
}

func (s *Source) evictLocked() {
	for s.lru.Len() > s.maxOpen {
		back := s.lru.Back()
		if back == nil {
			return
		}
		cd := back.Value.(*cachedDataset)
		s.lru.Remove(back)
		delete(s.byPath, cd.path)
		gdalMu.Lock()
		cd.ds.Close()
		gdalMu.Unlock()
	}
}

// ReadWindow reads one band's pixel window for fp out of the dataset at
// path, collapsing concurrent identical requests via singleflight
// (the same double-checked pattern GLO90Reader used around its own
// sfGroup.Do call).
func (s *Source) ReadWindow(ctx context.Context, path string, band int, fp geomodel.Footprint) ([]float64, error) {
	key := fmt.Sprintf("%s|%d|%s", path, band, fp.Key())
	v, err, _ := s.sf.Do(key, func() (any, error) {
		ds, err := s.open(path)
		if err != nil {
			return nil, err
		}

		gdalMu.Lock()
		defer gdalMu.Unlock()

		bands := ds.Bands()
		if band < 1 || band > len(bands) {
			return nil, fmt.Errorf("rastersource: band %d out of range (have %d)", band, len(bands))
		}
		buf := make([]float64, fp.Width*fp.Height)
		gt := ds.GeoTransform()
		xOff, yOff := pixelOffset(gt, fp)
		if err := bands[band-1].Read(xOff, yOff, buf, fp.Width, fp.Height); err != nil {
			return nil, fmt.Errorf("rastersource: read window: %w", err)
		}
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

// pixelOffset converts a footprint's geographic origin into the
// dataset's pixel/line offset via its geotransform: the same inverse
// affine arithmetic GLO90Reader performed per sample point, here
// applied once for a whole window origin.
func pixelOffset(gt [6]float64, fp geomodel.Footprint) (int, int) {
	// gt: [originX, pixelWidth, 0, originY, 0, pixelHeight]
	x := int((fp.OriginX - gt[0]) / gt[1])
	y := int((fp.OriginY - gt[3]) / gt[5])
	return x, y
}

// Close closes every dataset currently held open.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	gdalMu.Lock()
	defer gdalMu.Unlock()
	for el := s.lru.Front(); el != nil; el = el.Next() {
		el.Value.(*cachedDataset).ds.Close()
	}
	s.lru.Init()
	s.byPath = make(map[string]*list.Element)
}
