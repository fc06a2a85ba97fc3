// Package queryinfo implements QueryInfos ("qi"), the immutable
// snapshot of one client request (spec.md §3), its output channel
// plumbing, and the out-of-order array reorder buffer QueriesHandler
// uses to deliver arrays in strict produce-index order.
package queryinfo

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/airware/buzzard-go/internal/geomodel"
)

// CacheComputation is present on a QueryInfos iff at least one of its
// cache tiles is missing on disk (spec.md §3).
type CacheComputation struct {
	// MissingCacheFPs are the cache tiles this query must compute,
	// grouped by CacheSupervisor after an existence check.
	MissingCacheFPs []geomodel.Footprint
}

// QueryInfos is the immutable per-request descriptor. Two QueryInfos
// with identical parameters produce equal EqualityKey values (spec.md
// §3); the struct itself is not comparable with ==.
type QueryInfos struct {
	ID string // google/uuid-backed correlation id, not part of equality

	RasterName            string
	ListOfProduceFP        []geomodel.Footprint
	ListOfCacheFP          []geomodel.Footprint
	DictOfMinProdIdxPerCacheFP map[geomodel.Footprint]int

	BandIDs       []geomodel.BandID
	DstNodata     *float64
	Interpolation Interpolation
	MaxQueueSize  int

	CacheComputation *CacheComputation
}

// Interpolation enumerates spec.md §6's resampling algorithm set.
type Interpolation int

const (
	InterpolationNone Interpolation = iota
	InterpolationArea
	InterpolationNearest
	InterpolationLinear
	InterpolationCubic
	InterpolationLanczos4
)

func (i Interpolation) String() string {
	switch i {
	case InterpolationNone:
		return "none"
	case InterpolationArea:
		return "area"
	case InterpolationNearest:
		return "nearest"
	case InterpolationLinear:
		return "linear"
	case InterpolationCubic:
		return "cubic"
	case InterpolationLanczos4:
		return "lanczos4"
	default:
		return "unknown"
	}
}

// New validates and builds a QueryInfos from a client submission,
// computing ListOfCacheFP and DictOfMinProdIdxPerCacheFP from the
// raster descriptor. Returns a plain error for any synchronous
// validation failure; scheduler.NewQuery wraps it in a
// schedulererr.UserInputError (spec.md §7).
func New(raster *geomodel.Raster, produceFPs []geomodel.Footprint, bandIDs []geomodel.BandID, dstNodata *float64, interp Interpolation, maxQueueSize int) (*QueryInfos, error) {
	if maxQueueSize <= 0 {
		return nil, fmt.Errorf("queryinfo: max_queue_size must be > 0, got %d", maxQueueSize)
	}
	if len(produceFPs) == 0 {
		return nil, fmt.Errorf("queryinfo: no produce footprints given")
	}
	if interp == InterpolationNone {
		for _, fp := range produceFPs {
			if !fp.AlignedWith(raster.WorkingFootprint()) {
				return nil, fmt.Errorf("queryinfo: footprint %s is not grid-aligned and interpolation=none", fp.Key())
			}
		}
	}

	minProdIdx := make(map[geomodel.Footprint]int)
	var orderedCacheFPs []geomodel.Footprint
	seen := make(map[geomodel.Footprint]bool)
	for prodIdx, pfp := range produceFPs {
		for _, cfp := range raster.CacheFPsOfProduceFP(pfp) {
			if !seen[cfp] {
				seen[cfp] = true
				orderedCacheFPs = append(orderedCacheFPs, cfp)
				minProdIdx[cfp] = prodIdx
			}
			// minProdIdx[cfp] already set to the first (smallest)
			// produce index that touches it, since we iterate prodIdx
			// in increasing order and only set it once, satisfying the
			// monotone-along-ListOfCacheFP invariant (spec.md §3.3).
		}
	}

	return &QueryInfos{
		ID:                         uuid.NewString(),
		RasterName:                 raster.Name,
		ListOfProduceFP:            produceFPs,
		ListOfCacheFP:              orderedCacheFPs,
		DictOfMinProdIdxPerCacheFP: minProdIdx,
		BandIDs:                    bandIDs,
		DstNodata:                  dstNodata,
		Interpolation:              interp,
		MaxQueueSize:               maxQueueSize,
	}, nil
}

// EqualityKey returns a value comparable with ==, equal for two
// structurally identical queries (spec.md §3). ID is deliberately
// excluded, since each submission gets a fresh correlation id.
// priority.Watcher tracks queries by ID and does not use this key, so
// identical queries are not coalesced in prioritization.
type EqualityKey struct {
	RasterName    string
	ProduceKey    string
	BandKey       string
	Interpolation Interpolation
	MaxQueueSize  int
	HasDstNodata  bool
	DstNodata     float64
}

func (qi *QueryInfos) EqualityKey() EqualityKey {
	produceKey := ""
	for _, fp := range qi.ListOfProduceFP {
		produceKey += fp.Key() + "|"
	}
	bandKey := ""
	for _, b := range qi.BandIDs {
		bandKey += fmt.Sprintf("%d:%d,", b.Kind, b.Index)
	}
	k := EqualityKey{
		RasterName:    qi.RasterName,
		ProduceKey:    produceKey,
		BandKey:       bandKey,
		Interpolation: qi.Interpolation,
		MaxQueueSize:  qi.MaxQueueSize,
	}
	if qi.DstNodata != nil {
		k.HasDstNodata = true
		k.DstNodata = *qi.DstNodata
	}
	return k
}

// IsCacheFPMonotone checks invariant 3 of spec.md §3: evaluated along
// ListOfCacheFP, DictOfMinProdIdxPerCacheFP must be non-decreasing.
func (qi *QueryInfos) IsCacheFPMonotone() bool {
	last := -1
	for _, cfp := range qi.ListOfCacheFP {
		v := qi.DictOfMinProdIdxPerCacheFP[cfp]
		if v < last {
			return false
		}
		last = v
	}
	return true
}
