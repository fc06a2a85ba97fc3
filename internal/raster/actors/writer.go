package actors

import (
	"context"
	"log/slog"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/cachestore"
	"github.com/airware/buzzard-go/internal/geomodel"
	"github.com/airware/buzzard-go/internal/priority"
	"github.com/airware/buzzard-go/internal/workerpool"
)

// Writer persists one merged cache tile atomically (spec.md §3,
// invariant 5: "written at most once"), submitting the blocking
// WriteAtomic call to the shared I/O pool instead of running it on the
// scheduler goroutine (spec.md §5). No writer-side source file
// survived this repo's trimmed original-source excerpt, so this is
// built directly from spec.md §4.6's "emits Writer::write(cache_fp,
// array)" and internal/cachestore's atomic-rename contract.
type Writer struct {
	group     string
	store     cachestore.Store
	pool      *workerpool.Pool
	poolGroup string
	watcher   *priority.Watcher
	log       *slog.Logger
	alive     bool
}

func NewWriter(group string, store cachestore.Store, pool *workerpool.Pool, poolGroup string, watcher *priority.Watcher, log *slog.Logger) *Writer {
	return &Writer{group: group, store: store, pool: pool, poolGroup: poolGroup, watcher: watcher, log: log, alive: true}
}

func (w *Writer) Address() actor.Address { return actor.Address{Group: w.group, Name: NameWriter} }
func (w *Writer) Alive() bool            { return w.alive }

func (w *Writer) Handle(title string, args []any) []actor.Msg {
	if title != "write" {
		return nil
	}
	cacheFP := args[0].(geomodel.Footprint)
	arr := args[1].(cachestore.Array)

	store := w.store
	src := w.Address()
	ready := func() *workerpool.Task {
		fut := w.pool.ApplyAsync(func() (any, error) {
			return nil, store.WriteAtomic(context.Background(), cacheFP, arr)
		})
		return &workerpool.Task{
			Future: fut,
			OnComplete: func(_ any, err error) []actor.Msg {
				if err != nil {
					w.log.Error("cache tile write failed", "cache_fp", cacheFP.Key(), "err", err)
					return []actor.Msg{actor.NewMsg(src, NameCacheExtractor, "cache_file_failed", cacheFP, err)}
				}
				return []actor.Msg{actor.NewMsg(src, NameCacheExtractor, "cache_file_ready", cacheFP)}
			},
		}
	}
	waiter := workerpool.Waiter{Priority: w.watcher.PriorityFor("", 0), Ready: ready}
	return []actor.Msg{actor.NewMsg(src, actor.Target("/"+w.poolGroup+"/Pool"), "join_waiting_room", waiter)}
}
