package actor

// Actor is the capability every scheduler participant must implement:
// intra-scheduler message handling. Handlers must never block and must
// complete in bounded time (spec.md §5).
type Actor interface {
	Address() Address
	// Handle dispatches a receive_<title> message and returns any
	// messages the handler emits.
	Handle(title string, args []any) []Msg
	// Alive reports whether the actor should remain registered. The
	// scheduler checks this after every handler invocation (spec.md
	// §4.1 step 5) and unregisters the actor the moment it goes false.
	Alive() bool
}

// ExtReceiver is the optional capability for actors that accept
// synchronous external submissions (ext_receive_* handlers).
type ExtReceiver interface {
	Actor
	HandleExt(title string, args []any) []Msg
}

// KeepAliver is the optional capability for actors that want an idle
// poll tick (ext_receive_nothing). The scheduler advances a single
// round-robin cursor across every registered KeepAliver and ticks
// exactly one per loop iteration (spec.md §4.1 step 3).
type KeepAliver interface {
	Actor
	Tick() []Msg
}
