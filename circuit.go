package substrates

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// task is a unit of worker-only work.
type task func()

// Circuit is the single-writer executor described in §4.6: one dedicated
// worker goroutine, a concurrency-safe ingress queue external goroutines
// enqueue onto, and a worker-only transit queue that recursive emits from
// inside the worker use instead. Transit is always drained ahead of
// ingress, giving the depth-first cascade ordering of S2.
type Circuit struct {
	subjectMu sync.RWMutex
	subject   *Subject
	clock     clockz.Clock

	ingressMu sync.Mutex
	ingressCV *sync.Cond
	ingress   []task
	closed    int32 // atomic

	transit []task // worker-goroutine-only; no synchronization needed

	workerID  uint64 // set once by run(), read-only after workerSet.Wait returns
	workerSet sync.WaitGroup

	closeOnce sync.Once
	metrics   *circuitMetrics

	subMu           sync.Mutex
	stateSubscriber []*stateSubscriberEntry
	nextStateSubID  uint64
}

type stateSubscriberEntry struct {
	id uint64
	fn func(*Subject)
}

type circuitMetrics struct {
	registry *metricz.Registry
	tracer   *tracez.Tracer
}

func newCircuitMetrics() *circuitMetrics {
	registry := metricz.New()
	registry.Counter(MetricCircuitEmittedTotal)
	registry.Counter(MetricCircuitFailuresTotal)
	registry.Gauge(MetricCircuitIngressDepth)
	return &circuitMetrics{
		registry: registry,
		tracer:   tracez.New(),
	}
}

func newCircuit(name *Name, enclosure *Subject, clock clockz.Clock) *Circuit {
	if clock == nil {
		clock = clockz.RealClock
	}
	c := &Circuit{
		subject: newSubject(name, KindCircuit, enclosure),
		clock:   clock,
		metrics: newCircuitMetrics(),
	}
	c.ingressCV = sync.NewCond(&c.ingressMu)
	c.workerSet.Add(1)
	go c.run()
	c.workerSet.Wait()

	capitan.Info(context.Background(), SignalCircuitStarted,
		FieldCircuitName.Field(nameOrAnonymous(name)))
	return c
}

// Subject returns this Circuit's identity.
func (c *Circuit) Subject() *Subject {
	c.subjectMu.RLock()
	defer c.subjectMu.RUnlock()
	return c.subject
}

// UpdateState attaches slot to this Circuit's Subject metadata and notifies
// every state Subscriber registered via Subscribe.
func (c *Circuit) UpdateState(slot Slot) {
	c.subjectMu.Lock()
	c.subject = c.subject.withState(c.subject.State().With(slot))
	subject := c.subject
	c.subjectMu.Unlock()

	c.subMu.Lock()
	entries := append([]*stateSubscriberEntry(nil), c.stateSubscriber...)
	c.subMu.Unlock()
	for _, e := range entries {
		e.fn(subject)
	}
}

// Subscribe registers fn to run whenever this Circuit's Subject metadata
// changes via UpdateState, and immediately once with the current Subject.
func (c *Circuit) Subscribe(fn func(subject *Subject)) *Subscription {
	c.subMu.Lock()
	c.nextStateSubID++
	id := c.nextStateSubID
	c.stateSubscriber = append(c.stateSubscriber, &stateSubscriberEntry{id: id, fn: fn})
	c.subMu.Unlock()

	fn(c.Subject())

	subject := newSubject(nil, KindSubscription, c.Subject())
	return &Subscription{
		subject: subject,
		closeFn: func() error {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			for i, e := range c.stateSubscriber {
				if e.id == id {
					c.stateSubscriber = append(c.stateSubscriber[:i], c.stateSubscriber[i+1:]...)
					break
				}
			}
			return nil
		},
	}
}

func (c *Circuit) run() {
	c.workerID = goroutineID()
	c.workerSet.Done()
	for {
		t, ok := c.next()
		if !ok {
			return
		}
		c.execute(t)
	}
}

// next blocks until a task is available or the Circuit is closed with an
// empty ingress queue, preferring transit over ingress per the causality
// invariant of §4.6.
func (c *Circuit) next() (task, bool) {
	if len(c.transit) > 0 {
		t := c.transit[0]
		c.transit = c.transit[1:]
		return t, true
	}

	c.ingressMu.Lock()
	for len(c.ingress) == 0 {
		if atomic.LoadInt32(&c.closed) == 1 {
			c.ingressMu.Unlock()
			return nil, false
		}
		c.ingressCV.Wait()
	}
	t := c.ingress[0]
	c.ingress = c.ingress[1:]
	c.ingressMu.Unlock()
	return t, true
}

func (c *Circuit) execute(t task) {
	_, span := c.metrics.tracer.StartSpan(context.Background(), SpanCircuitExecute)
	defer span.Finish()
	defer func() {
		if r := recover(); r != nil {
			c.metrics.registry.Counter(MetricCircuitFailuresTotal).Inc()
			capitan.Warn(context.Background(), SignalCircuitPanic,
				FieldCircuitName.Field(nameOrAnonymous(c.Subject().Name())),
			)
		}
	}()
	t()
}

// Metrics returns this Circuit's metricz.Registry (emission, failure, and
// ingress-depth counters/gauges), per the ambient observability stack.
func (c *Circuit) Metrics() *metricz.Registry { return c.metrics.registry }

// Tracer returns this Circuit's tracez.Tracer, under which every scheduled
// task executes as a SpanCircuitExecute span.
func (c *Circuit) Tracer() *tracez.Tracer { return c.metrics.tracer }

// onWorker reports whether the caller is running on this Circuit's own
// worker goroutine.
func (c *Circuit) onWorker() bool { return goroutineID() == c.workerID }

// schedule enqueues t, routing to the worker-only transit queue when
// called from the worker itself (cascading emits) and to the
// concurrency-safe ingress queue otherwise. Silently drops t once the
// Circuit is closed, per §7's "closed-circuit emit is not an error," and
// reports whether t was actually accepted so callers can keep counters
// that track accepted work from double-counting dropped emits.
func (c *Circuit) schedule(t task) bool {
	if atomic.LoadInt32(&c.closed) == 1 {
		return false
	}
	if c.onWorker() {
		c.transit = append(c.transit, t)
		return true
	}
	c.ingressMu.Lock()
	if atomic.LoadInt32(&c.closed) == 1 {
		c.ingressMu.Unlock()
		return false
	}
	c.ingress = append(c.ingress, t)
	c.metrics.registry.Gauge(MetricCircuitIngressDepth).Set(float64(len(c.ingress)))
	c.ingressMu.Unlock()
	c.ingressCV.Signal()
	return true
}

// CircuitPipe returns the async Pipe described in §4.3: every Emit
// schedules target.Emit(v) onto the owning Circuit, making arbitrarily
// deep or cyclic chains stack-safe (S3).
func CircuitPipe[E any](c *Circuit, target Pipe[E]) Pipe[E] {
	return PipeFunc[E](func(v E) {
		if c.schedule(func() { target.Emit(v) }) {
			c.metrics.registry.Counter(MetricCircuitEmittedTotal).Inc()
		}
	})
}

// CircuitFlowPipe installs a per-invocation Flow pipeline in front of
// target: configureFlow runs once, immediately, building operator state
// local to this one Pipe and never shared with any Conduit's channels.
func CircuitFlowPipe[E any](c *Circuit, target Pipe[E], configureFlow func(*Flow[E])) Pipe[E] {
	flow := NewFlow[E]().withClock(c.clock)
	if configureFlow != nil {
		configureFlow(flow)
	}
	wrapped := flow.Apply(target)
	return CircuitPipe[E](c, wrapped)
}

// NewConduit creates an anonymous Conduit[E] owned by c.
func NewConduit[E any](c *Circuit, composer Composer[E]) (*Conduit[E], error) {
	if composer == nil {
		return nil, newValidationError("NewConduit", ErrNilArgument)
	}
	return newConduit[E](nil, c, composer, nil), nil
}

// NewNamedConduit creates a named Conduit[E] owned by c.
func NewNamedConduit[E any](c *Circuit, name *Name, composer Composer[E]) (*Conduit[E], error) {
	if composer == nil {
		return nil, newValidationError("NewNamedConduit", ErrNilArgument)
	}
	return newConduit[E](name, c, composer, nil), nil
}

// NewFlowConduit creates a named Conduit[E] whose Channels all share one
// Flow pipeline, configured once via configureFlow, per the "instantiated
// once per channel, state shared across the conduit" rule of §4.3/S5.
func NewFlowConduit[E any](c *Circuit, name *Name, composer Composer[E], configureFlow func(*Flow[E])) (*Conduit[E], error) {
	if composer == nil || configureFlow == nil {
		return nil, newValidationError("NewFlowConduit", ErrNilArgument)
	}
	return newConduit[E](name, c, composer, configureFlow), nil
}

// Await blocks the calling goroutine until every item enqueued on this
// Circuit strictly before the call to Await (plus whatever those items
// cascade into via transit) has been processed: a sentinel task is
// scheduled onto ingress and Await waits for the worker to reach it. It
// fails with a ValidationError wrapping ErrAwaitFromCircuit when called
// from the Circuit's own worker, which would otherwise deadlock. After the
// Circuit is closed, Await returns promptly without blocking.
func (c *Circuit) Await() error {
	if c.onWorker() {
		return newValidationError("Circuit.Await", ErrAwaitFromCircuit)
	}
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil
	}

	done := make(chan struct{})
	c.ingressMu.Lock()
	if atomic.LoadInt32(&c.closed) == 1 {
		c.ingressMu.Unlock()
		return nil
	}
	c.ingress = append(c.ingress, func() { close(done) })
	c.ingressMu.Unlock()
	c.ingressCV.Signal()

	<-done
	return nil
}

// AwaitTimeout is Await bounded by d, measured against this Circuit's Clock
// (clockz.RealClock by default). It returns a ValidationError wrapping
// ErrAwaitTimeout if d elapses before the worker reaches the sentinel task,
// per §5's note that an implementation MAY bound Await with a timeout.
func (c *Circuit) AwaitTimeout(d time.Duration) error {
	if c.onWorker() {
		return newValidationError("Circuit.AwaitTimeout", ErrAwaitFromCircuit)
	}
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil
	}

	done := make(chan struct{})
	c.ingressMu.Lock()
	if atomic.LoadInt32(&c.closed) == 1 {
		c.ingressMu.Unlock()
		return nil
	}
	c.ingress = append(c.ingress, func() { close(done) })
	c.ingressMu.Unlock()
	c.ingressCV.Signal()

	select {
	case <-done:
		return nil
	case <-c.clock.After(d):
		return newValidationError("Circuit.AwaitTimeout", ErrAwaitTimeout)
	}
}

// Close is idempotent and non-blocking: it marks the Circuit terminal and
// wakes the worker, which drains any already-enqueued ingress items
// best-effort and then exits. Close never waits on pending work.
func (c *Circuit) Close() error {
	c.closeOnce.Do(func() {
		atomic.StoreInt32(&c.closed, 1)
		c.ingressMu.Lock()
		c.ingressCV.Broadcast()
		c.ingressMu.Unlock()
		c.metrics.tracer.Close()
		capitan.Info(context.Background(), SignalCircuitClosed,
			FieldCircuitName.Field(nameOrAnonymous(c.Subject().Name())))
	})
	return nil
}

func nameOrAnonymous(n *Name) string {
	if n == nil {
		return "<anonymous>"
	}
	return n.String()
}
