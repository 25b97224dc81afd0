package substrates

import (
	"context"
	"sync"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
)

// Hook event keys for a Conduit's hookz.Hooks[ConduitEvent].
const (
	ConduitEventSubscribed     = hookz.Key("conduit.subscribed")
	ConduitEventUnsubscribed   = hookz.Key("conduit.unsubscribed")
	ConduitEventHandlerFailure = hookz.Key("conduit.handler-failure")
)

// Source is anything that can be subscribed to for a stream of emissions
// of type E. Conduit and Cell both implement Source.
type Source[E any] interface {
	Subscribe(Subscriber[E]) (*Subscription, error)
	Subject() *Subject
}

type channelEntry[E any] struct {
	once    sync.Once
	channel *Channel[E]
	percept Percept
	err     error
}

type subscriberEntry[E any] struct {
	id uint64
	fn Subscriber[E]
}

// Conduit is the Percept factory and Channel pool for one emission type:
// it owns a name-to-Channel pool, a subscriber set with a version
// counter, and an optional Flow shared by every Channel it creates.
// Different Conduits hold independent pools — the same Name in two
// Conduits yields two distinct Percepts.
type Conduit[E any] struct {
	subject  *Subject
	circuit  *Circuit
	composer Composer[E]
	flow     *Flow[E]

	poolMu sync.Mutex
	pool   map[*Name]*channelEntry[E]

	subMu       sync.Mutex
	subscribers []*subscriberEntry[E]
	version     uint64
	nextSubID   uint64

	hooks *conduitHooks[E]
}

func newConduit[E any](name *Name, circuit *Circuit, composer Composer[E], configureFlow func(*Flow[E])) *Conduit[E] {
	c := &Conduit[E]{
		subject:  newSubject(name, KindConduit, circuit.Subject()),
		circuit:  circuit,
		composer: composer,
		pool:     make(map[*Name]*channelEntry[E]),
		hooks:    newConduitHooks[E](),
	}
	if configureFlow != nil {
		flow := NewFlow[E]().withClock(circuit.clock)
		configureFlow(flow)
		c.flow = flow
	}
	return c
}

// Subject returns this Conduit's identity.
func (c *Conduit[E]) Subject() *Subject { return c.subject }

// Percept returns the cached Percept for name, building it (and the
// Channel behind it) on first access. Concurrent first-callers for the
// same name block on each other and receive the identical instance
// (invariant 2); the same name in a different Conduit always yields a
// distinct instance (invariant 3).
func (c *Conduit[E]) Percept(name *Name) (Percept, error) {
	if name == nil {
		return nil, newValidationError("Conduit.Percept", ErrNilArgument)
	}

	c.poolMu.Lock()
	entry, ok := c.pool[name]
	if !ok {
		entry = &channelEntry[E]{}
		c.pool[name] = entry
	}
	c.poolMu.Unlock()

	entry.once.Do(func() {
		ch := newChannel(name, c)
		var target Pipe[E] = PipeFunc[E](ch.emit)
		if c.flow != nil {
			target = c.flow.Apply(target)
		}
		ch.outward = CircuitPipe[E](c.circuit, target)

		handle := newChannelHandle(ch)
		entry.percept = c.composer(handle)
		handle.invalidate()
		entry.channel = ch
	})
	return entry.percept, entry.err
}

// Subscribe attaches fn to this Conduit: fn runs for each Channel's next
// rebuild (immediately eligible for Channels that already exist, and for
// any Channel created afterward, the first time each is next emitted to).
// Attaching never retroactively delivers past emissions.
func (c *Conduit[E]) Subscribe(fn Subscriber[E]) (*Subscription, error) {
	if fn == nil {
		return nil, newValidationError("Conduit.Subscribe", ErrNilArgument)
	}

	c.subMu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subscribers = append(c.subscribers, &subscriberEntry[E]{id: id, fn: fn})
	c.version++
	c.subMu.Unlock()

	c.hooks.fireSubscribed(c.subject)

	subject := newSubject(nil, KindSubscription, c.subject)
	return &Subscription{
		subject: subject,
		closeFn: func() error {
			c.subMu.Lock()
			for i, e := range c.subscribers {
				if e.id == id {
					c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
					break
				}
			}
			c.version++
			c.subMu.Unlock()
			c.hooks.fireUnsubscribed(c.subject)
			return nil
		},
	}, nil
}

// OnSubscribed registers fn to run whenever a Subscriber attaches to this
// Conduit, via hookz.
func (c *Conduit[E]) OnSubscribed(fn func(context.Context, ConduitEvent) error) error {
	_, err := c.hooks.hooks.Hook(ConduitEventSubscribed, fn)
	return err
}

// OnUnsubscribed registers fn to run whenever a Subscriber detaches from
// this Conduit, via hookz.
func (c *Conduit[E]) OnUnsubscribed(fn func(context.Context, ConduitEvent) error) error {
	_, err := c.hooks.hooks.Hook(ConduitEventUnsubscribed, fn)
	return err
}

// OnHandlerError registers fn to run whenever one of this Conduit's
// Channels absorbs a panicking Subscriber callback (during a rebuild) or a
// panicking handler Pipe (during delivery), via hookz.
func (c *Conduit[E]) OnHandlerError(fn func(context.Context, ConduitEvent) error) error {
	_, err := c.hooks.hooks.Hook(ConduitEventHandlerFailure, fn)
	return err
}

// Metrics returns this Conduit's metricz.Registry (currently empty of
// counters of its own; channels report through the owning Circuit's
// registry, consistent with metricz's per-owner registry convention).
func (c *Conduit[E]) Metrics() *metricz.Registry { return c.hooks.metrics }

// Close releases this Conduit's hookz.Hooks, per the per-connector
// observability-shutdown convention every pack connector follows.
func (c *Conduit[E]) Close() error {
	c.hooks.hooks.Close()
	return nil
}

func (c *Conduit[E]) subscriberSnapshot() ([]*subscriberEntry[E], uint64) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	snap := make([]*subscriberEntry[E], len(c.subscribers))
	copy(snap, c.subscribers)
	return snap, c.version
}

func (c *Conduit[E]) reportHandlerFailure(subject *Subject, err error) {
	failure := &HandlerFailure{Subject: subject, Err: err}
	c.circuit.metrics.registry.Counter(MetricCircuitFailuresTotal).Inc()
	capitan.Warn(context.Background(), SignalConduitHandlerFailure,
		FieldConduitName.Field(c.subject.Name().String()),
		FieldChannelName.Field(subject.Name().String()),
		FieldError.Field(failure.Error()),
	)
	c.hooks.fireHandlerError(c.subject, subject, err)
}

// ConduitEvent is the event payload delivered to Conduit hooks.
type ConduitEvent struct {
	Subject *Subject
	Channel *Subject
	Err     error
}

// conduitHooks wraps a hookz.Hooks[ConduitEvent] plus the metricz.Registry
// every pack connector pairs with its hooks.
type conduitHooks[E any] struct {
	hooks   *hookz.Hooks[ConduitEvent]
	metrics *metricz.Registry
}

func newConduitHooks[E any]() *conduitHooks[E] {
	return &conduitHooks[E]{
		hooks:   hookz.New[ConduitEvent](),
		metrics: metricz.New(),
	}
}

func (h *conduitHooks[E]) fireSubscribed(subject *Subject) {
	_ = h.hooks.Emit(context.Background(), ConduitEventSubscribed, ConduitEvent{Subject: subject}) //nolint:errcheck // hook errors are observational only.
}

func (h *conduitHooks[E]) fireUnsubscribed(subject *Subject) {
	_ = h.hooks.Emit(context.Background(), ConduitEventUnsubscribed, ConduitEvent{Subject: subject}) //nolint:errcheck // hook errors are observational only.
}

func (h *conduitHooks[E]) fireHandlerError(subject, channel *Subject, err error) {
	ev := ConduitEvent{Subject: subject, Channel: channel, Err: err}
	_ = h.hooks.Emit(context.Background(), ConduitEventHandlerFailure, ev) //nolint:errcheck // hook errors are observational only.
}
