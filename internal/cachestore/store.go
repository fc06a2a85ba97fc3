// Package cachestore implements spec.md §6's cache file contract
// (exists/read/write_atomic) behind one Store interface, with two
// concrete backends: a filesystem store (gob-encoded tile files,
// atomic temp-file-and-rename writes, an in-memory existence cache),
// and a Redis-backed store for a distributed tile cache.
package cachestore

import (
	"context"

	"github.com/airware/buzzard-go/internal/geomodel"
)

// Array is the concrete in-memory payload the scheduler pipelines
// around: a flat row-major pixel buffer plus shape. The real numeric
// dtype handling belongs to the out-of-scope resampling collaborator;
// Store only needs to move bytes around faithfully.
type Array struct {
	Data          []float64
	Width, Height int
	Bands         int
}

// Store is spec.md §6's cache file contract: for a given cache
// footprint there is a deterministic path; exists, read, write_atomic
// are the only required operations.
type Store interface {
	Exists(ctx context.Context, cacheFP geomodel.Footprint) (bool, error)
	Read(ctx context.Context, cacheFP geomodel.Footprint) (Array, error)
	WriteAtomic(ctx context.Context, cacheFP geomodel.Footprint, arr Array) error
}
