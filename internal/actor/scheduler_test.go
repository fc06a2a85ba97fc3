package actor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder is a minimal test actor: Handle appends its invocation to a
// shared log and optionally returns a canned response.
type recorder struct {
	addr     Address
	alive    bool
	log      *[]string
	response func(title string, args []any) []Msg
}

func (r *recorder) Address() Address { return r.addr }
func (r *recorder) Alive() bool      { return r.alive }
func (r *recorder) Handle(title string, args []any) []Msg {
	*r.log = append(*r.log, r.addr.String()+"#"+title)
	if r.response != nil {
		return r.response(title, args)
	}
	return nil
}

func newRecorder(addr Address, log *[]string) *recorder {
	return &recorder{addr: addr, alive: true, log: log}
}

func TestSchedulerBareNameResolvesWithinSenderGroup(t *testing.T) {
	var log []string
	sched := NewScheduler(nil, time.Millisecond)
	b := newRecorder(Address{Group: "Raster1", Name: "B"}, &log)
	sched.reg.Register(b)

	sched.piles = append(sched.piles, pile{kind: pileReceive, msgs: []Msg{
		NewMsg(Address{Group: "Raster1", Name: "A"}, "B", "ping"),
	}})

	for sched.stepPiles() {
	}
	require.Equal(t, []string{"/Raster1/B#ping"}, log)
}

func TestSchedulerExactAddressDroppableIsSilent(t *testing.T) {
	sched := NewScheduler(nil, time.Millisecond)
	sched.piles = append(sched.piles, pile{kind: pileReceive, msgs: []Msg{
		NewDroppableMsg(Address{}, "/Raster1/Missing", "ping"),
	}})
	require.NotPanics(t, func() {
		for sched.stepPiles() {
		}
	})
}

func TestSchedulerExactAddressNonDroppablePanics(t *testing.T) {
	sched := NewScheduler(nil, time.Millisecond)
	sched.piles = append(sched.piles, pile{kind: pileReceive, msgs: []Msg{
		NewMsg(Address{}, "/Raster1/Missing", "ping"),
	}})
	require.Panics(t, func() {
		for sched.stepPiles() {
		}
	})
}

func TestSchedulerWildcardFansOutAcrossPoolGroups(t *testing.T) {
	var log []string
	sched := NewScheduler(nil, time.Millisecond)
	sched.reg.Register(newRecorder(Address{Group: "PoolCompute", Name: "Worker"}, &log))
	sched.reg.Register(newRecorder(Address{Group: "PoolIO", Name: "Worker"}, &log))
	sched.reg.Register(newRecorder(Address{Group: "Raster1", Name: "Worker"}, &log))

	sched.piles = append(sched.piles, pile{kind: pileReceive, msgs: []Msg{
		NewMsg(Address{}, "/Pool*/Worker", "tick"),
	}})
	for sched.stepPiles() {
	}
	require.ElementsMatch(t, []string{"/PoolCompute/Worker#tick", "/PoolIO/Worker#tick"}, log)
}

func TestSchedulerHandlerOutputIsPushedAsNewPile(t *testing.T) {
	var log []string
	sched := NewScheduler(nil, time.Millisecond)
	chain := newRecorder(Address{Group: "G", Name: "Chain"}, &log)
	chain.response = func(title string, args []any) []Msg {
		if title == "start" {
			return []Msg{NewMsg(chain.addr, "Chain", "next")}
		}
		return nil
	}
	sched.reg.Register(chain)
	sched.piles = append(sched.piles, pile{kind: pileReceive, msgs: []Msg{
		NewMsg(Address{}, "/G/Chain", "start"),
	}})
	for sched.stepPiles() {
	}
	require.Equal(t, []string{"/G/Chain#start", "/G/Chain#next"}, log)
}

// keepAliver is a minimal KeepAliver test actor.
type keepAliver struct {
	*recorder
	ticks *int
}

func (k *keepAliver) Tick() []Msg {
	*k.ticks++
	return nil
}

func TestSchedulerKeepAliveRoundRobinTicksOnePerIteration(t *testing.T) {
	var log []string
	sched := NewScheduler(nil, time.Millisecond)
	var ticksA, ticksB int
	a := &keepAliver{recorder: newRecorder(Address{Group: "G", Name: "A"}, &log), ticks: &ticksA}
	b := &keepAliver{recorder: newRecorder(Address{Group: "G", Name: "B"}, &log), ticks: &ticksB}
	sched.reg.Register(a)
	sched.reg.Register(b)

	sched.stepKeepAlive()
	require.Equal(t, 1, ticksA+ticksB)
	sched.stepKeepAlive()
	require.Equal(t, 2, ticksA+ticksB)
	require.Equal(t, 1, ticksA)
	require.Equal(t, 1, ticksB)
}

func TestSchedulerRunStopsOnRequest(t *testing.T) {
	sched := NewScheduler(nil, time.Millisecond)
	go sched.Run()
	sched.Stop()
	select {
	case <-sched.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop in time")
	}
}

func TestSchedulerCrashIsCapturedAndReported(t *testing.T) {
	var log []string
	sched := NewScheduler(nil, time.Millisecond)
	bad := newRecorder(Address{Group: "G", Name: "Bad"}, &log)
	bad.response = func(title string, args []any) []Msg {
		panic("boom")
	}
	sched.reg.Register(bad)
	sched.piles = append(sched.piles, pile{kind: pileReceive, msgs: []Msg{
		NewMsg(Address{}, "/G/Bad", "explode"),
	}})

	go sched.Run()
	select {
	case <-sched.Done():
	case <-time.After(time.Second):
		t.Fatal("scheduler did not crash in time")
	}
	require.Error(t, sched.Err())
}
