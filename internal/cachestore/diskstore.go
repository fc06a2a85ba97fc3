package cachestore

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/airware/buzzard-go/internal/geomodel"
)

// DiskStore persists cache tiles under a root directory, one file per
// tile keyed by its footprint. Writes go to a temporary name, are
// fsync'd, then renamed into place (spec.md §4.6's Writer contract:
// "write to a temporary name, fsync, rename, so concurrent readers see
// either the old absence or the new file"). The on-disk encoding itself
// (gob) is an implementation detail the cache file contract
// deliberately leaves unspecified.
type DiskStore struct {
	root string
	log  *slog.Logger

	mu    sync.Mutex
	exist map[string]bool // existence cache, invalidated on write
}

// NewDiskStore constructs a DiskStore rooted at dir, creating it if
// necessary.
func NewDiskStore(dir string, log *slog.Logger) (*DiskStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cachestore: create root %s: %w", dir, err)
	}
	return &DiskStore{root: dir, log: log, exist: make(map[string]bool)}, nil
}

func (s *DiskStore) path(cacheFP geomodel.Footprint) string {
	return filepath.Join(s.root, cacheFP.Key()+".tile")
}

func (s *DiskStore) Exists(_ context.Context, cacheFP geomodel.Footprint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := cacheFP.Key()
	if v, ok := s.exist[key]; ok {
		return v, nil
	}
	_, err := os.Stat(s.path(cacheFP))
	if err == nil {
		s.exist[key] = true
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		s.exist[key] = false
		return false, nil
	}
	return false, fmt.Errorf("cachestore: stat %s: %w", cacheFP.Key(), err)
}

func (s *DiskStore) Read(_ context.Context, cacheFP geomodel.Footprint) (Array, error) {
	f, err := os.Open(s.path(cacheFP))
	if err != nil {
		return Array{}, fmt.Errorf("cachestore: read %s: %w", cacheFP.Key(), err)
	}
	defer f.Close()

	var arr Array
	if err := gob.NewDecoder(f).Decode(&arr); err != nil {
		return Array{}, fmt.Errorf("cachestore: decode %s: %w", cacheFP.Key(), err)
	}
	return arr, nil
}

// WriteAtomic implements spec.md §4.6's publication ordering: a cache
// tile is written at most once; any reader that observes the file sees
// the complete, correct bytes.
func (s *DiskStore) WriteAtomic(_ context.Context, cacheFP geomodel.Footprint, arr Array) error {
	final := s.path(cacheFP)
	tmp := final + fmt.Sprintf(".tmp-%d", os.Getpid())

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("cachestore: create temp for %s: %w", cacheFP.Key(), err)
	}
	if err := gob.NewEncoder(f).Encode(arr); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("cachestore: encode %s: %w", cacheFP.Key(), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("cachestore: fsync %s: %w", cacheFP.Key(), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cachestore: close %s: %w", cacheFP.Key(), err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("cachestore: rename into place %s: %w", cacheFP.Key(), err)
	}

	s.mu.Lock()
	s.exist[cacheFP.Key()] = true
	s.mu.Unlock()

	s.log.Debug("wrote cache tile",
		"tile", cacheFP.Key(),
		"bytes", humanize.Bytes(uint64(len(arr.Data)*8)),
	)
	return nil
}
