package workerpool

import (
	"container/heap"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/priority"
)

// Waiter is one entry in a PoolActor's waiting room: a priority key and
// a callback invoked when the pool has a free slot. Ready may decide
// not to submit anything (e.g. a compute tile whose status has already
// advanced past stand_by — spec.md §4.6) by returning a nil Task.
type Waiter struct {
	Priority priority.Key
	Ready    func() *Task
}

// Task is a submitted unit of work: its Future plus the completion
// callback that turns its result into outgoing messages.
type Task struct {
	Future     *Future
	OnComplete func(result any, err error) []actor.Msg
}

type waiterHeap []Waiter

func (h waiterHeap) Len() int            { return len(h) }
func (h waiterHeap) Less(i, j int) bool  { return h[i].Priority.Less(h[j].Priority) }
func (h waiterHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *waiterHeap) Push(x any)         { *h = append(*h, x.(Waiter)) }
func (h *waiterHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// PoolActor models one worker pool as a priority-ordered waiting room
// (a container/heap; waiters with equal keys are not kept in arrival
// order) plus a working set of submitted tasks (spec.md §4.8). It is a KeepAliver:
// each scheduler tick it reaps completed tasks and, if capacity allows,
// admits the next highest-priority waiter.
type PoolActor struct {
	addr    actor.Address
	pool    *Pool
	waiting waiterHeap
	working []*Task
}

// NewPoolActor constructs a PoolActor backed by pool, conventionally
// registered at /PoolXxx/Pool so /Pool*/Name wildcard fan-out reaches
// every pool group.
func NewPoolActor(group string, pool *Pool) *PoolActor {
	return &PoolActor{
		addr: actor.Address{Group: group, Name: "Pool"},
		pool: pool,
	}
}

func (p *PoolActor) Address() actor.Address { return p.addr }
func (p *PoolActor) Alive() bool            { return true }

// Handle implements receive_join_waiting_room, the only message a
// PoolActor accepts directly (everything else happens on its tick).
func (p *PoolActor) Handle(title string, args []any) []actor.Msg {
	if title == "join_waiting_room" {
		w := args[0].(Waiter)
		heap.Push(&p.waiting, w)
	}
	return nil
}

// Tick implements spec.md §4.8's per-iteration pool step: reap ready
// tasks from the working set, then admit the next waiter if capacity
// allows.
func (p *PoolActor) Tick() []actor.Msg {
	var out []actor.Msg

	remaining := p.working[:0]
	for _, t := range p.working {
		if t.Future.IsReady() {
			result, err := t.Future.Result()
			out = append(out, t.OnComplete(result, err)...)
			continue
		}
		remaining = append(remaining, t)
	}
	p.working = remaining

	if len(p.working) < p.pool.Capacity() && p.waiting.Len() > 0 {
		w := heap.Pop(&p.waiting).(Waiter)
		if task := w.Ready(); task != nil {
			p.working = append(p.working, task)
		}
	}

	return out
}

// Occupancy reports the working-set size, used in tests and logs.
func (p *PoolActor) Occupancy() int { return len(p.working) }

// WaitingRoomLen reports the waiting-room size.
func (p *PoolActor) WaitingRoomLen() int { return p.waiting.Len() }
