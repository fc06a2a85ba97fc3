package actors

import (
	"context"
	"log/slog"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/cachestore"
	"github.com/airware/buzzard-go/internal/geomodel"
	"github.com/airware/buzzard-go/internal/queryinfo"
)

// collectMissing checks existence of every cache tile qi needs, in
// order, returning those absent from the store.
func collectMissing(ctx context.Context, store cachestore.Store, qi *queryinfo.QueryInfos) []geomodel.Footprint {
	var missing []geomodel.Footprint
	for _, cacheFP := range qi.ListOfCacheFP {
		exists, err := store.Exists(ctx, cacheFP)
		if err != nil || !exists {
			missing = append(missing, cacheFP)
		}
	}
	return missing
}

// CacheSupervisor decides which cache tiles already exist versus must
// be computed (spec.md §4.4).
type CacheSupervisor struct {
	group     string
	store     cachestore.Store
	log       *slog.Logger
	cancelled map[string]bool
	alive     bool
}

func NewCacheSupervisor(group string, store cachestore.Store, log *slog.Logger) *CacheSupervisor {
	return &CacheSupervisor{group: group, store: store, log: log, cancelled: make(map[string]bool), alive: true}
}

func (s *CacheSupervisor) Address() actor.Address {
	return actor.Address{Group: s.group, Name: NameCacheSupervisor}
}
func (s *CacheSupervisor) Alive() bool { return s.alive }

func (s *CacheSupervisor) Handle(title string, args []any) []actor.Msg {
	switch title {
	case "make_those_cache_tiles_available":
		qi := args[0].(*queryinfo.QueryInfos)
		return s.checkExistence(qi)
	case "cancel_this_query":
		qiID := args[0].(string)
		s.cancelled[qiID] = true
	}
	return nil
}

// checkExistence performs the existence check for every cache tile of
// qi. Existing tiles need no action: a produce task's CacheExtractor
// will emit a Reader request for them when needed. Missing tiles are
// grouped into qi.CacheComputation and forwarded to ComputationGate.
func (s *CacheSupervisor) checkExistence(qi *queryinfo.QueryInfos) []actor.Msg {
	ctx := context.Background()
	mcfps := collectMissing(ctx, s.store, qi)
	if s.cancelled[qi.ID] {
		// Cancellation for qi was already received; drop the result,
		// per spec.md §4.4.
		return nil
	}
	if len(mcfps) == 0 {
		return nil
	}
	qi.CacheComputation = &queryinfo.CacheComputation{MissingCacheFPs: mcfps}
	src := s.Address()
	return []actor.Msg{actor.NewMsg(src, NameComputationGate, "compute_those_cache_files", qi)}
}
