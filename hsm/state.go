package hsm

// Signal discriminates events delivered to state handlers. Values below
// SignalUser are reserved by the runtime.
type Signal uint16

const (
	// SignalEntry is delivered to a state when a transition enters it.
	SignalEntry Signal = iota
	// SignalExit is delivered to a state when a transition leaves it.
	SignalExit
	// SignalInit probes a freshly entered state for a default child
	// transition while Begin runs.
	SignalInit
	// SignalUser is the first signal value available to applications.
	SignalUser
)

// Event carries a signal and an optional payload into a dispatch call.
// Events are short-lived values; handlers must not retain the payload
// beyond the dispatch that delivered it.
type Event struct {
	Signal  Signal
	Payload any
}

// Handler reacts to one event on behalf of its state and tells the
// machine how the event was consumed.
type Handler func(Event) Result

// State is one node of a machine's hierarchy. A nil parent marks the
// root. States are immutable after construction and may be shared by
// value across dispatches.
type State struct {
	name    string
	parent  *State
	handler Handler
}

// NewState builds a state named name under parent. The root state is
// built with a nil parent.
func NewState(name string, parent *State, handler Handler) *State {
	return &State{name: name, parent: parent, handler: handler}
}

func (s *State) Name() string { return s.name }

// Parent returns the superstate, or nil for the root.
func (s *State) Parent() *State { return s.parent }

type resultKind uint8

const (
	kindHandled resultKind = iota
	kindIgnored
	kindSuper
	kindTransition
	kindInit
)

// Result is returned by handlers to report how an event was consumed.
// The zero value is equivalent to Handled().
type Result struct {
	kind   resultKind
	target *State
}

// Handled reports the event as consumed with no state change.
func Handled() Result { return Result{kind: kindHandled} }

// Ignored drops the event without consulting any superstate.
func Ignored() Result { return Result{kind: kindIgnored} }

// Super defers the event to the state's superstate.
func Super() Result { return Result{kind: kindSuper} }

// Transition requests a state change. The machine runs exit actions from
// the active state up to the least common ancestor of the transition
// source and target, then entry actions down to target.
func Transition(target *State) Result {
	return Result{kind: kindTransition, target: target}
}

// Init requests a default transition into a child state. Only valid in
// response to SignalInit while the machine processes Begin.
func Init(child *State) Result {
	return Result{kind: kindInit, target: child}
}
