package substrates

import "sync"

var cellPool = NewPool()

// cellOutletName keys the single internal Channel every Cell's outlet
// Conduit creates; Cells never expose Conduit pooling to callers, so one
// fixed name per Cell instance is sufficient.
var cellOutletName = cellPool.MustOf("cell.outlet")

// Cell is the experimental hierarchical bidirectional node of §4.7: it
// receives emissions of I (it is a Pipe[I]), adapts them via an
// ingress composer into the outlet type O (the egress composer is run but
// its Pipe is not on the delivery path; see NewCell), and is itself
// subscribable for O
// (it is a Source[O]). Cells pool same-typed children by Name exactly as
// a Conduit pools Channels; a child's emissions flow upward into its
// parent's outlet, so a Subscriber attached to an ancestor observes every
// descendant's emissions.
type Cell[I, O any] struct {
	subject *Subject
	circuit *Circuit
	outlet  *Conduit[O]
	inPipe  Pipe[I]
	outBase Pipe[O]

	childMu  sync.Mutex
	children map[*Name]*cellChildEntry[O]
}

type cellChildEntry[O any] struct {
	once  sync.Once
	child *Cell[O, O]
}

// NewCell constructs a Cell[I,O] owned by circuit. ingress receives the
// handle to the Cell's single outlet Channel and must return the Pipe[I]
// that Cell.Emit forwards every incoming value to; egress receives the
// same handle, and the Pipe[O] it returns is kept as the outlet Conduit's
// Percept. Cell never emits into that Pipe itself: values reach the
// outlet's subscribers without passing through egress. Both composers run
// exactly once, when the outlet Channel is first built.
func NewCell[I, O any](circuit *Circuit, name *Name, ingress func(*ChannelHandle[O]) Pipe[I], egress func(*ChannelHandle[O]) Pipe[O]) (*Cell[I, O], error) {
	if circuit == nil || ingress == nil || egress == nil {
		return nil, newValidationError("NewCell", ErrNilArgument)
	}

	cell := &Cell[I, O]{
		circuit:  circuit,
		children: make(map[*Name]*cellChildEntry[O]),
	}
	cell.subject = newSubject(name, KindCell, circuit.Subject())

	composer := func(h *ChannelHandle[O]) Percept {
		base, err := h.Pipe()
		if err != nil {
			base = Identity[O]()
		}
		cell.outBase = base
		cell.inPipe = ingress(h)
		return egress(h)
	}

	outlet := newConduit[O](name, circuit, composer, nil)
	if _, err := outlet.Percept(cellOutletName); err != nil {
		return nil, err
	}
	cell.outlet = outlet
	return cell, nil
}

// Subject returns this Cell's identity.
func (c *Cell[I, O]) Subject() *Subject { return c.subject }

// Emit implements Pipe[I]: it forwards v to the ingress-built Pipe[I],
// which every call to NewCell guarantees is populated before NewCell
// returns.
func (c *Cell[I, O]) Emit(v I) {
	c.inPipe.Emit(v)
}

// Subscribe implements Source[O]: Subscribers attached here observe every
// emission reaching this Cell's outlet, including ones that arrived via
// a descendant Child.
func (c *Cell[I, O]) Subscribe(fn Subscriber[O]) (*Subscription, error) {
	return c.outlet.Subscribe(fn)
}

// Child returns the same-typed child Cell[O,O] pooled under name,
// constructing it on first access. The child's outlet is subscribed with a
// Pipe into this Cell's own outlet Channel, so every value delivered to the
// child's subscribers also reaches this Cell's subscribers, giving
// ancestors visibility into descendant emissions per §4.7.
func (c *Cell[I, O]) Child(name *Name, ingress func(*ChannelHandle[O]) Pipe[O], egress func(*ChannelHandle[O]) Pipe[O]) (*Cell[O, O], error) {
	if name == nil || ingress == nil || egress == nil {
		return nil, newValidationError("Cell.Child", ErrNilArgument)
	}

	c.childMu.Lock()
	entry, ok := c.children[name]
	if !ok {
		entry = &cellChildEntry[O]{}
		c.children[name] = entry
	}
	c.childMu.Unlock()

	var err error
	entry.once.Do(func() {
		entry.child, err = NewCell[O, O](c.circuit, name, ingress, egress)
		if err != nil || c.outBase == nil {
			return
		}
		parentOutlet := c.outBase
		_, err = entry.child.Subscribe(func(_ *Subject, r *Registrar[O]) {
			_ = r.Register(parentOutlet)
		})
	})
	if err != nil {
		return nil, err
	}
	return entry.child, nil
}
