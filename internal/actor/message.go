package actor

// Msg is a single scheduler message: a routing target, a handler title,
// positional arguments, and a droppable flag. spec.md §9 calls for a
// tagged variant over title rather than string dispatch in hot paths;
// Title stays a string here (it names a receive_/ext_receive_ method),
// but Args is untyped per-title payload decided by each actor package,
// keeping this package free of per-domain knowledge.
type Msg struct {
	// Source is the emitting actor's address, used to resolve bare-name
	// targets within the sender's own group (spec.md §4.1 step 1).
	// Zero value is fine for messages that only ever use absolute
	// targets.
	Source    Address
	Target    Target
	Title     string
	Args      []any
	Droppable bool
}

// NewMsg builds a non-droppable message emitted by source.
func NewMsg(source Address, target Target, title string, args ...any) Msg {
	return Msg{Source: source, Target: target, Title: title, Args: args}
}

// NewDroppableMsg builds a message whose target may legitimately resolve
// to no actor (e.g. a dead query's downstream actors having already torn
// themselves down).
func NewDroppableMsg(source Address, target Target, title string, args ...any) Msg {
	return Msg{Source: source, Target: target, Title: title, Args: args, Droppable: true}
}

// registerMsg is the internal message shape used to add an actor to the
// registry via the normal pile mechanism, mirroring the original
// source's treatment of registration as just another message rather
// than a side API (spec.md §9 supplemented features).
type registerMsg struct {
	actor Actor
}

// RegisterTitle is the reserved title used for self-registration
// messages; no domain actor may define a handler with this name.
const RegisterTitle = "__register__"

// Register returns the message an actor emits (typically from TopLevel)
// to add itself to the scheduler's registry.
func Register(a Actor) Msg {
	return Msg{Title: RegisterTitle, Args: []any{registerMsg{actor: a}}}
}

// UnregisterTitle is the reserved title an actor's handler result may
// include to request immediate deregistration (spec.md §4.1 step 5:
// "if a handler leaves its actor in a not-alive state, unregister it
// immediately").
const UnregisterTitle = "__unregister__"

// Unregister returns the message that removes addr from the registry.
func Unregister(addr Address) Msg {
	return Msg{Target: Target(addr.String()), Title: UnregisterTitle}
}
