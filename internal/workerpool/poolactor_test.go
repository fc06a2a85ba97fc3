package workerpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/airware/buzzard-go/internal/actor"
	"github.com/airware/buzzard-go/internal/priority"
)

func waitFuture(t *testing.T, f *Future) {
	t.Helper()
	for i := 0; i < 1000 && !f.IsReady(); i++ {
		time.Sleep(time.Millisecond)
	}
	require.True(t, f.IsReady(), "future did not become ready in time")
}

func TestPoolActorOrdersWaitingRoomByPriority(t *testing.T) {
	pool := NewPool(1)
	pa := NewPoolActor("PoolCompute", pool)

	var order []string
	mkWaiter := func(name string, urgency int) Waiter {
		return Waiter{
			Priority: priority.Key{Urgency: urgency},
			Ready: func() *Task {
				order = append(order, name)
				fut := pool.ApplyAsync(func() (any, error) { return name, nil })
				return &Task{Future: fut, OnComplete: func(result any, err error) []actor.Msg { return nil }}
			},
		}
	}

	pa.Handle("join_waiting_room", []any{mkWaiter("low-urgency", 10)})
	pa.Handle("join_waiting_room", []any{mkWaiter("high-urgency", 1)})
	require.Equal(t, 2, pa.WaitingRoomLen())

	pa.Tick() // admits the single free slot: highest priority (smallest urgency) first
	require.Equal(t, []string{"high-urgency"}, order)
	require.Equal(t, 1, pa.Occupancy())

	waitFuture(t, pa.working[0].Future)
	pa.Tick() // reaps the finished task, frees the slot, admits the next waiter
	require.Equal(t, []string{"high-urgency", "low-urgency"}, order)
}

func TestPoolActorTickReturnsCompletionMessages(t *testing.T) {
	pool := NewPool(1)
	pa := NewPoolActor("PoolCompute", pool)

	pa.Handle("join_waiting_room", []any{Waiter{
		Ready: func() *Task {
			fut := pool.ApplyAsync(func() (any, error) { return "array", nil })
			return &Task{Future: fut, OnComplete: func(result any, err error) []actor.Msg {
				return []actor.Msg{actor.NewMsg(actor.Address{}, "/Raster1/Accumulator", "done_one_compute", result)}
			}}
		},
	}})
	pa.Tick()
	waitFuture(t, pa.working[0].Future)

	msgs := pa.Tick()
	require.Len(t, msgs, 1)
	require.Equal(t, "done_one_compute", msgs[0].Title)
}

func TestPoolActorReadyMayDeclineToSubmit(t *testing.T) {
	pool := NewPool(1)
	pa := NewPoolActor("PoolCompute", pool)
	pa.Handle("join_waiting_room", []any{Waiter{Ready: func() *Task { return nil }}})
	pa.Tick()
	require.Equal(t, 0, pa.Occupancy())
}
