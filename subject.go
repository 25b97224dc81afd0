package substrates

import "sync/atomic"

var subjectIDSeq uint64

func nextSubjectID() uint64 {
	return atomic.AddUint64(&subjectIDSeq, 1)
}

// Kind identifies which engine entity a Subject is attached to. It exists
// purely for diagnostics (signal fields, log lines); it plays no part in
// Subject equality or ordering.
type Kind string

// The entity kinds every Subject in the engine may carry.
const (
	KindCircuit      Kind = "circuit"
	KindConduit      Kind = "conduit"
	KindChannel      Kind = "channel"
	KindPipe         Kind = "pipe"
	KindSubscription Kind = "subscription"
	KindScope        Kind = "scope"
	KindReservoir    Kind = "reservoir"
	KindCell         Kind = "cell"
	KindCortex       Kind = "cortex"
)

// Subject is the (id, name, kind, state, enclosure) identity triple
// attached to every Cortex, Circuit, Conduit, Channel, Subscription, Scope,
// Reservoir, and Cell. id is globally unique and stable for the life of
// the process; name need not be unique.
type Subject struct {
	id        uint64
	name      *Name
	kind      Kind
	state     *State
	enclosure *Subject
}

// newSubject allocates a fresh Subject. enclosure may be nil for a
// top-level entity (the Cortex itself, or an entity constructed without an
// owner; a Circuit created from Cortex is enclosed by the Cortex).
func newSubject(name *Name, kind Kind, enclosure *Subject) *Subject {
	return &Subject{
		id:        nextSubjectID(),
		name:      name,
		kind:      kind,
		state:     NewState(),
		enclosure: enclosure,
	}
}

// ID returns this Subject's process-unique, stable identifier.
func (s *Subject) ID() uint64 { return s.id }

// Name returns this Subject's Name. It need not be unique across Subjects.
func (s *Subject) Name() *Name { return s.name }

// Kind reports which engine entity this Subject identifies.
func (s *Subject) Kind() Kind { return s.kind }

// State returns the associative metadata attached to this Subject.
func (s *Subject) State() *State { return s.state }

// Enclosure returns the Subject of the entity that owns this one, or nil
// at the top of the ownership chain.
func (s *Subject) Enclosure() *Subject { return s.enclosure }

// withState returns a Subject carrying an updated State, used internally
// whenever a component's metadata changes; Subjects themselves are
// otherwise immutable after creation.
func (s *Subject) withState(state *State) *Subject {
	return &Subject{id: s.id, name: s.name, kind: s.kind, state: state, enclosure: s.enclosure}
}

// CompareTo orders Subjects so that any ancestor sorts strictly before its
// descendant. Unrelated Subjects (neither within the other's enclosure
// chain) are ordered by id, which is total but otherwise
// implementation-defined, matching §3's "siblings ordered
// implementation-defined but total."
func (s *Subject) CompareTo(other *Subject) int {
	if s == other {
		return 0
	}
	if other.within(s) {
		return -1
	}
	if s.within(other) {
		return 1
	}
	switch {
	case s.id < other.id:
		return -1
	case s.id > other.id:
		return 1
	default:
		return 0
	}
}

// Within reports whether other occurs in s's enclosure chain strictly
// above s.
func (s *Subject) Within(other *Subject) bool { return s.within(other) }

func (s *Subject) within(other *Subject) bool {
	for e := s.enclosure; e != nil; e = e.enclosure {
		if e == other {
			return true
		}
	}
	return false
}
