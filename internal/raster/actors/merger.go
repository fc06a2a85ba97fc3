package actors

import (
	"fmt"
	"math"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/cachestore"
	"github.com/airware/buzzard-go/internal/geomodel"
)

// Merger blits a cache tile's compute-tile pieces into one contiguous
// array (spec.md §4.6: "assembles the full cache-tile array from its
// compute-tile pieces (positional blit)"). No merger.py file survived
// this repo's trimmed original-source excerpt, so this is built
// directly from that sentence, generalized from spec.md's implicit
// single-band case to raster.Bands bands.
type Merger struct {
	group  string
	raster *geomodel.Raster
	alive  bool
}

func NewMerger(group string, raster *geomodel.Raster) *Merger {
	return &Merger{group: group, raster: raster, alive: true}
}

func (m *Merger) Address() actor.Address { return actor.Address{Group: m.group, Name: NameMerger} }
func (m *Merger) Alive() bool            { return m.alive }

func (m *Merger) Handle(title string, args []any) []actor.Msg {
	if title != "schedule_one_merge" {
		return nil
	}
	cacheFP := args[0].(geomodel.Footprint)
	pieces := args[1].(map[geomodel.Footprint]cachestore.Array)

	merged, err := blit(cacheFP, pieces, len(m.raster.Bands))
	src := m.Address()
	if err != nil {
		return []actor.Msg{actor.NewMsg(src, NameCacheExtractor, "cache_file_failed", cacheFP, err)}
	}
	return []actor.Msg{actor.NewMsg(src, NameWriter, "write", cacheFP, merged)}
}

// blit copies every piece into a destination array sized to dst,
// positioned by its footprint's pixel offset relative to dst's origin.
func blit(dst geomodel.Footprint, pieces map[geomodel.Footprint]cachestore.Array, bands int) (cachestore.Array, error) {
	out := cachestore.Array{
		Data:   make([]float64, dst.Width*dst.Height*bands),
		Width:  dst.Width,
		Height: dst.Height,
		Bands:  bands,
	}
	for fp, arr := range pieces {
		offX := int(math.Round((fp.OriginX - dst.OriginX) / dst.ScaleX))
		offY := int(math.Round((fp.OriginY - dst.OriginY) / dst.ScaleY))
		if offX < 0 || offY < 0 || offX+fp.Width > dst.Width || offY+fp.Height > dst.Height {
			return cachestore.Array{}, fmt.Errorf("compute tile %s lies outside cache tile %s", fp.Key(), dst.Key())
		}
		for b := 0; b < bands; b++ {
			for y := 0; y < fp.Height; y++ {
				srcRow := arr.Data[(b*fp.Height+y)*fp.Width : (b*fp.Height+y)*fp.Width+fp.Width]
				dstStart := (b*dst.Height+offY+y)*dst.Width + offX
				copy(out.Data[dstStart:dstStart+fp.Width], srcRow)
			}
		}
	}
	return out, nil
}
