package substrates

import (
	"fmt"
	"sync/atomic"
)

// Percept marks any user-facing observable entity a Composer may return.
// A Pipe is the simplest Percept; Conduits commonly return richer,
// domain-specific types that merely hold a Pipe inside.
type Percept = interface{}

// Composer builds a Conduit's Percept for one Channel. It runs exactly
// once per Channel, the first time Conduit.Percept is called for that
// Name; concurrent first-callers for the same Name block on each other
// and receive the identical Percept instance.
type Composer[E any] func(*ChannelHandle[E]) Percept

// Channel is the per-(Conduit,Name) routing node described in §4.5: it
// holds the currently installed subscriber-derived Pipe list for its
// emissions and rebuilds that list lazily, on the Circuit worker, the
// first time it is emitted to after the owning Conduit's subscriber set
// changes.
type Channel[E any] struct {
	subject      *Subject
	conduit      *Conduit[E]
	outward      Pipe[E] // the async(+flow) Pipe returned to callers
	builtVersion uint64  // worker-only; no synchronization needed
	rebuilt      bool
	pipes        []Pipe[E]
}

func newChannel[E any](name *Name, conduit *Conduit[E]) *Channel[E] {
	return &Channel[E]{
		subject: newSubject(name, KindChannel, conduit.subject),
		conduit: conduit,
	}
}

// Subject returns this Channel's identity.
func (ch *Channel[E]) Subject() *Subject { return ch.subject }

// ensureBuilt rebuilds ch.pipes if the owning Conduit's subscriber set has
// changed since the last rebuild. Must only ever be called on the owning
// Circuit's worker goroutine — it is reached exclusively through emit,
// which is itself only ever invoked as a scheduled Circuit task.
func (ch *Channel[E]) ensureBuilt() {
	subs, version := ch.conduit.subscriberSnapshot()
	if ch.rebuilt && ch.builtVersion == version {
		return
	}

	live := int32(1)
	var pipes []Pipe[E]
	reg := &Registrar[E]{live: &live, pipes: &pipes}
	for _, entry := range subs {
		ch.invokeSubscriber(entry, reg)
	}
	atomic.StoreInt32(&live, 0)

	ch.pipes = pipes
	ch.builtVersion = version
	ch.rebuilt = true
}

func (ch *Channel[E]) invokeSubscriber(entry *subscriberEntry[E], reg *Registrar[E]) {
	defer func() {
		if r := recover(); r != nil {
			ch.conduit.reportHandlerFailure(ch.subject, fmt.Errorf("subscriber callback panic: %v", r))
		}
	}()
	entry.fn(ch.subject, reg)
}

// emit walks the current pipe list, rebuilding it first if stale. It must
// only run on the Circuit worker.
func (ch *Channel[E]) emit(v E) {
	ch.ensureBuilt()
	for _, p := range ch.pipes {
		ch.deliver(p, v)
	}
}

func (ch *Channel[E]) deliver(p Pipe[E], v E) {
	defer func() {
		if r := recover(); r != nil {
			ch.conduit.reportHandlerFailure(ch.subject, fmt.Errorf("handler panic: %v", r))
		}
	}()
	p.Emit(v)
}

// ChannelHandle is the temporal reference to a Channel a Composer
// receives. It is valid only for the duration of the Composer call; the
// only thing safe to retain past that call is the Pipe obtained from it.
type ChannelHandle[E any] struct {
	ch   *Channel[E]
	live int32
}

func newChannelHandle[E any](ch *Channel[E]) *ChannelHandle[E] {
	return &ChannelHandle[E]{ch: ch, live: 1}
}

func (h *ChannelHandle[E]) invalidate() { atomic.StoreInt32(&h.live, 0) }

func (h *ChannelHandle[E]) checkLive(op string) error {
	if atomic.LoadInt32(&h.live) == 0 {
		return newValidationError(op, ErrTemporalExpired)
	}
	return nil
}

// Pipe returns the Channel's emission sink: emitting to it schedules
// delivery on the owning Circuit's worker, through any Flow the owning
// Conduit was configured with, then out to the Channel's current
// subscriber-derived Pipe list.
func (h *ChannelHandle[E]) Pipe() (Pipe[E], error) {
	if err := h.checkLive("ChannelHandle.Pipe"); err != nil {
		return nil, err
	}
	return h.ch.outward, nil
}

// Subject returns the Channel's identity.
func (h *ChannelHandle[E]) Subject() (*Subject, error) {
	if err := h.checkLive("ChannelHandle.Subject"); err != nil {
		return nil, err
	}
	return h.ch.subject, nil
}
