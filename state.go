package substrates

// SlotType tags the kind of value carried in a Slot, distinguishing
// primitive tags from reference tags per §3.
type SlotType int

// Primitive and reference tag values for Slot.
const (
	TypeBool SlotType = iota
	TypeInt
	TypeInt64
	TypeFloat64
	TypeString
	TypeName
	TypeRef
)

// Slot is an immutable (name, type, value) triple. Construct one with
// NewSlot or NewEnumSlot; Slots are value types and safe to share.
type Slot struct {
	name  *Name
	typ   SlotType
	value interface{}
}

// NewSlot builds a Slot, inferring the SlotType from value's concrete Go
// type (bool, int, int64, float64, string, *Name map to their matching
// primitive tag; anything else is tagged TypeRef), per §4.2's
// "state(name, primitiveOrRef) builds a slot with the primitive tag of the
// argument."
func NewSlot(name *Name, value interface{}) Slot {
	return Slot{name: name, typ: tagOf(value), value: value}
}

func tagOf(value interface{}) SlotType {
	switch value.(type) {
	case bool:
		return TypeBool
	case int:
		return TypeInt
	case int64:
		return TypeInt64
	case float64:
		return TypeFloat64
	case string:
		return TypeString
	case *Name:
		return TypeName
	default:
		return TypeRef
	}
}

// NewEnumSlot builds the (name(EnumClass), TypeName, name(enum.Name()))
// slot described in §4.2 for a Go value that identifies itself via a
// String() method (the idiomatic Go stand-in for a Java enum constant).
// class names the enum's type; member is its String() name, both interned
// through pool.
func NewEnumSlot(pool *Pool, class, member string) (Slot, error) {
	className, err := pool.Of(class)
	if err != nil {
		return Slot{}, err
	}
	memberName, err := pool.Of(member)
	if err != nil {
		return Slot{}, err
	}
	return Slot{name: className, typ: TypeName, value: memberName}, nil
}

// Name returns the Slot's key Name.
func (s Slot) Name() *Name { return s.name }

// Type returns the Slot's tag.
func (s Slot) Type() SlotType { return s.typ }

// Value returns the Slot's carried value.
func (s Slot) Value() interface{} { return s.value }

func (s Slot) key() (interface{}, SlotType) { return s.name, s.typ }

func (s Slot) equal(o Slot) bool {
	if s.name != o.name || s.typ != o.typ {
		return false
	}
	return valueEqual(s.value, o.value)
}

// State is a persistent, immutable singly linked list of Slots, head
// first (most recent). The zero value is not valid; use NewState.
type State struct {
	head *slotNode
}

type slotNode struct {
	slot Slot
	next *slotNode
}

// NewState returns the empty State.
func NewState() *State { return &State{} }

// With returns a State with slot prepended, reusing this State
// (reference-equal return) when slot already equals the current head —
// the idempotent-prepend rule of §4.2/invariant 7.
func (st *State) With(slot Slot) *State {
	if st.head != nil && st.head.slot.equal(slot) {
		return st
	}
	return &State{head: &slotNode{slot: slot, next: st.head}}
}

// Value scans head-first for the first Slot whose (name, type) matches
// template's, returning it. If no Slot matches, template itself is
// returned as the embedded default, matching §4.2's "value(template): ...
// else template's embedded default."
func (st *State) Value(template Slot) Slot {
	key, typ := template.key()
	for n := st.head; n != nil; n = n.next {
		if k, t := n.slot.key(); k == key && t == typ {
			return n.slot
		}
	}
	return template
}

// Values streams every Slot matching template's (name, type), head-first
// (newest to oldest).
func (st *State) Values(template Slot) []Slot {
	key, typ := template.key()
	var out []Slot
	for n := st.head; n != nil; n = n.next {
		if k, t := n.slot.key(); k == key && t == typ {
			out = append(out, n.slot)
		}
	}
	return out
}

// Stream returns every Slot in this State, head-first.
func (st *State) Stream() []Slot {
	out := make([]Slot, 0, st.Len())
	for n := st.head; n != nil; n = n.next {
		out = append(out, n.slot)
	}
	return out
}

// Len returns the number of Slots in this State, without deduplication.
func (st *State) Len() int {
	n := 0
	for c := st.head; c != nil; c = c.next {
		n++
	}
	return n
}

// Compact returns a new State retaining, for each distinct (name, type)
// key, only the head-most (most recent) occurrence. The result's Len()
// equals the number of distinct keys, and for every key k present in st,
// compacted.Value(k) == st.Value(k) (invariant 8).
func (st *State) Compact() *State {
	type key struct {
		name interface{}
		typ  SlotType
	}
	seen := make(map[key]bool)
	var survivors []Slot
	for n := st.head; n != nil; n = n.next {
		k := key{n.slot.name, n.slot.typ}
		if seen[k] {
			continue
		}
		seen[k] = true
		survivors = append(survivors, n.slot)
	}
	// Rebuild head-to-tail so the new State's own head-first walk still
	// yields survivors in their original relative order.
	out := &State{}
	for i := len(survivors) - 1; i >= 0; i-- {
		out.head = &slotNode{slot: survivors[i], next: out.head}
	}
	return out
}
