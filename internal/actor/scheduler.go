package actor

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/airware/buzzard-go/internal/schedulererr"
)

type pileKind int

const (
	pileReceive pileKind = iota
	pileExtReceive
)

type pile struct {
	kind pileKind
	msgs []Msg
}

// Scheduler runs the single cooperative loop described in spec.md §4.1,
// on one dedicated goroutine per data source. All actor handlers
// execute on that goroutine, strictly serially.
type Scheduler struct {
	log       *slog.Logger
	reg       *Registry
	inbox     *Inbox
	idleSleep time.Duration

	piles     []pile
	ringCur   int

	stop      atomic.Bool
	crashOnce sync.Once
	crashErr  error
	crashCh   chan struct{}

	done chan struct{}
}

// NewScheduler constructs a scheduler with the given idle-sleep
// duration (spec.md §4.1 step 4 specifies ~50ms).
func NewScheduler(log *slog.Logger, idleSleep time.Duration) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		log:       log,
		reg:       NewRegistry(),
		inbox:     NewInbox(),
		idleSleep: idleSleep,
		crashCh:   make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Submit enqueues an external message (an ext_receive_* submission) for
// processing. Safe to call from any goroutine.
func (s *Scheduler) Submit(m Msg) {
	s.inbox.Push(m)
}

// Err returns the error that crashed the scheduler, if any. The owning
// data source calls this on every subsequent public call per spec.md
// §7's SchedulerCrashed contract.
func (s *Scheduler) Err() error {
	select {
	case <-s.crashCh:
		return s.crashErr
	default:
		return nil
	}
}

// Stop requests the loop to exit after its current step.
func (s *Scheduler) Stop() {
	s.stop.Store(true)
}

// Done is closed when the loop has returned, whether by Stop or crash.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

// Run executes the scheduler loop until Stop is called or a handler
// panics/returns an unrecoverable condition. It is meant to be launched
// in its own goroutine: `go sched.Run()`.
func (s *Scheduler) Run() {
	defer close(s.done)
	defer func() {
		if r := recover(); r != nil {
			err := schedulererr.NewSchedulerCrashed(fmt.Errorf("scheduler handler panicked: %v", r))
			s.crashOnce.Do(func() {
				s.crashErr = err
				close(s.crashCh)
			})
			s.log.Error("scheduler crashed", "error", err)
		}
	}()

	for {
		if s.stop.Load() {
			return
		}

		if s.stepPiles() {
			continue
		}
		if s.stop.Load() {
			return
		}

		if s.stepExternal() {
			continue
		}
		if s.stop.Load() {
			return
		}

		if s.stepKeepAlive() {
			continue
		}
		if s.stop.Load() {
			return
		}

		time.Sleep(s.idleSleep)
	}
}

// stepPiles runs step 1: drain the top pile by one message. Returns true
// if work was done (so the loop should immediately re-check for more).
func (s *Scheduler) stepPiles() bool {
	for len(s.piles) > 0 {
		top := &s.piles[len(s.piles)-1]
		if len(top.msgs) == 0 {
			s.piles = s.piles[:len(s.piles)-1]
			continue
		}
		msg := top.msgs[0]
		top.msgs = top.msgs[1:]
		s.dispatch(msg, top.kind)
		return true
	}
	return false
}

// stepExternal runs step 2: ingest at most one external message.
func (s *Scheduler) stepExternal() bool {
	msg, ok := s.inbox.PopFront()
	if !ok {
		return false
	}
	s.dispatch(msg, pileExtReceive)
	return true
}

// stepKeepAlive runs step 3: tick exactly one keep-alive actor per
// iteration, advancing a persistent round-robin cursor.
func (s *Scheduler) stepKeepAlive() bool {
	all := s.reg.All()
	if len(all) == 0 {
		return false
	}
	for i := 0; i < len(all); i++ {
		idx := (s.ringCur + i) % len(all)
		a, ok := s.reg.Lookup(all[idx])
		if !ok {
			continue
		}
		ka, ok := a.(KeepAliver)
		if !ok {
			continue
		}
		s.ringCur = (idx + 1) % len(all)
		msgs := ka.Tick()
		s.afterHandler(a)
		if len(msgs) > 0 {
			s.piles = append(s.piles, pile{kind: pileReceive, msgs: msgs})
			return true
		}
		return false
	}
	return false
}

// dispatch resolves msg's target(s) and invokes the appropriate handler
// kind on each, per spec.md §4.1 step 1's three resolution forms.
func (s *Scheduler) dispatch(msg Msg, kind pileKind) {
	if msg.Title == RegisterTitle {
		for _, arg := range msg.Args {
			if rm, ok := arg.(registerMsg); ok {
				s.reg.Register(rm.actor)
			}
		}
		return
	}
	if msg.Title == UnregisterTitle {
		addrs := msg.Target.Resolve(s.reg, Address{})
		for _, addr := range addrs {
			s.reg.Unregister(addr)
		}
		return
	}

	targets := msg.Target.Resolve(s.reg, msg.Source)
	var produced []Msg
	matched := false
	for _, addr := range targets {
		a, ok := s.reg.Lookup(addr)
		if !ok {
			continue
		}
		matched = true
		var out []Msg
		switch kind {
		case pileExtReceive:
			ext, ok := a.(ExtReceiver)
			if !ok {
				s.log.Warn("actor has no ext_receive handler", "actor", addr, "title", msg.Title)
				continue
			}
			out = ext.HandleExt(msg.Title, msg.Args)
		default:
			out = a.Handle(msg.Title, msg.Args)
		}
		s.afterHandler(a)
		produced = append(produced, out...)
	}
	if !matched && !msg.Droppable {
		panic(fmt.Sprintf("actor: unresolved non-droppable target %q for title %q", msg.Target, msg.Title))
	}
	if len(produced) > 0 {
		s.piles = append(s.piles, pile{kind: pileReceive, msgs: produced})
	}
}

// afterHandler implements spec.md §4.1 step 5's immediate unregistration
// of actors that went not-alive.
func (s *Scheduler) afterHandler(a Actor) {
	if !a.Alive() {
		s.reg.Unregister(a.Address())
	}
}
