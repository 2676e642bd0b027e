// Package hsm implements a hierarchical state machine runtime. States
// are values linked to their superstates; handlers return how an event
// was consumed; the machine sequences exit and entry actions across
// transitions, crossing each state boundary exactly once.
//
// Machines are not safe for concurrent use, and Dispatch must not be
// re-entered from inside a handler. Callers that receive events in
// interrupt-style contexts queue them and dispatch from a single loop.
package hsm

import "errors"

// MaxDepth bounds every walk along superstate links. A chain that fails
// to reach the root within MaxDepth hops is treated as corrupt.
const MaxDepth = 32

var (
	ErrNotBegun     = errors.New("machine not begun")
	ErrAlreadyBegun = errors.New("machine already begun")
	ErrHierarchy    = errors.New("state chain does not reach the root")
	ErrInitial      = errors.New("initial handler must return a transition")
	ErrInit         = errors.New("init result outside begin")
)

// Machine tracks the active state of one hierarchy and runs the
// dispatch algorithm over it.
type Machine struct {
	initial Handler
	current *State
}

// New returns a machine whose Begin call runs initial to choose the
// starting state.
func New(initial Handler) *Machine {
	return &Machine{initial: initial}
}

// Current returns the active state, or nil before Begin.
func (m *Machine) Current() *State { return m.current }

// Begin starts the machine: the initial handler receives ev and must
// return a transition; the machine enters the target from the root
// downward, then follows Init results into default children.
func (m *Machine) Begin(ev Event) error {
	if m.current != nil {
		return ErrAlreadyBegun
	}
	if m.initial == nil {
		return ErrInitial
	}
	r := m.initial(ev)
	if r.kind != kindTransition || r.target == nil {
		return ErrInitial
	}
	path, err := chain(r.target)
	if err != nil {
		return err
	}
	for i := len(path) - 1; i >= 0; i-- {
		path[i].handler(Event{Signal: SignalEntry})
	}
	m.current = r.target

	for {
		r := m.current.handler(Event{Signal: SignalInit})
		if r.kind != kindInit {
			return nil
		}
		down, err := descend(m.current, r.target)
		if err != nil {
			return err
		}
		for _, s := range down {
			s.handler(Event{Signal: SignalEntry})
		}
		m.current = r.target
	}
}

// Dispatch delivers ev to the active state, walking superstate links on
// Super results. A transition result runs exit actions from the active
// state up to the boundary, then entry actions down to the target.
//
// On error the machine is left in its prior state with no entry or exit
// actions run; callers treat any error as state-machine corruption.
func (m *Machine) Dispatch(ev Event) error {
	if m.current == nil {
		return ErrNotBegun
	}
	s := m.current
	for depth := 0; depth <= MaxDepth; depth++ {
		r := s.handler(ev)
		switch r.kind {
		case kindHandled, kindIgnored:
			return nil
		case kindSuper:
			if s.parent == nil {
				return ErrHierarchy
			}
			s = s.parent
		case kindTransition:
			return m.transition(s, r.target)
		case kindInit:
			return ErrInit
		}
	}
	return ErrHierarchy
}

// transition moves the machine from its active state into target, with
// src being the state whose handler requested the move.
func (m *Machine) transition(src, target *State) error {
	exits, entries, err := route(m.current, src, target)
	if err != nil {
		return err
	}
	for _, s := range exits {
		s.handler(Event{Signal: SignalExit})
	}
	for _, s := range entries {
		s.handler(Event{Signal: SignalEntry})
	}
	m.current = target
	return nil
}

// route computes the exit and entry sequences for a transition taken at
// src into target while cur is active. The boundary state is the least
// common ancestor of src and target; a self-transition treats the
// parent of src as the boundary so the state exits and re-enters.
func route(cur, src, target *State) (exits, entries []*State, err error) {
	if target == nil {
		return nil, nil, ErrHierarchy
	}
	curChain, err := chain(cur)
	if err != nil {
		return nil, nil, err
	}
	tgtChain, err := chain(target)
	if err != nil {
		return nil, nil, err
	}

	var boundary *State
	if src == target {
		boundary = src.parent
	} else {
		srcChain, err := chain(src)
		if err != nil {
			return nil, nil, err
		}
		boundary = firstCommon(srcChain, tgtChain)
		if boundary == nil {
			return nil, nil, ErrHierarchy
		}
	}

	found := boundary == nil
	for _, s := range curChain {
		if s == boundary {
			found = true
			break
		}
		exits = append(exits, s)
	}
	if !found {
		return nil, nil, ErrHierarchy
	}

	for _, s := range tgtChain {
		if s == boundary {
			break
		}
		entries = append(entries, s)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return exits, entries, nil
}

// chain returns s and its ancestors up to the root, innermost first.
func chain(s *State) ([]*State, error) {
	if s == nil {
		return nil, ErrHierarchy
	}
	var out []*State
	for ; s != nil; s = s.parent {
		if len(out) > MaxDepth {
			return nil, ErrHierarchy
		}
		out = append(out, s)
	}
	return out, nil
}

// firstCommon returns the innermost state of a that also appears in b.
func firstCommon(a, b []*State) *State {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return x
			}
		}
	}
	return nil
}

// descend returns the states strictly below from down to to, in entry
// order. to must be a strict descendant of from.
func descend(from, to *State) ([]*State, error) {
	if to == nil || to == from {
		return nil, ErrHierarchy
	}
	var down []*State
	for s := to; s != from; s = s.parent {
		if s == nil || len(down) > MaxDepth {
			return nil, ErrHierarchy
		}
		down = append(down, s)
	}
	for i, j := 0, len(down)-1; i < j; i, j = i+1, j-1 {
		down[i], down[j] = down[j], down[i]
	}
	return down, nil
}
