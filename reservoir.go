package substrates

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
)

// Capture pairs an emission with the Subject of the Channel it arrived on
// and the time it was captured, the unit Reservoir buffers and hands back
// from Drain.
type Capture[E any] struct {
	Subject  *Subject
	Emission E
	Captured time.Time
}

// Reservoir incrementally captures a Source's emissions: Drain returns
// only what arrived since the previous Drain (or since construction, for
// the first call), per S6.
type Reservoir[E any] struct {
	subject *Subject
	sub     *Subscription

	mu      sync.Mutex
	buffer  []Capture[E]
	closed  bool
	metrics *metricz.Registry
	clock   clockz.Clock
}

// NewReservoir subscribes to source immediately and begins buffering every
// subsequent emission across all of its Channels.
func NewReservoir[E any](source Source[E]) (*Reservoir[E], error) {
	if source == nil {
		return nil, newValidationError("NewReservoir", ErrNilArgument)
	}

	r := &Reservoir[E]{
		subject: newSubject(nil, KindReservoir, source.Subject()),
		metrics: metricz.New(),
		clock:   clockz.RealClock,
	}
	r.metrics.Counter(MetricReservoirCapturedTotal)
	r.metrics.Counter(MetricReservoirDrainedTotal)
	r.metrics.Gauge(MetricReservoirBuffered)

	sub, err := source.Subscribe(func(subject *Subject, reg *Registrar[E]) {
		_ = reg.Register(PipeFunc[E](func(v E) {
			r.capture(subject, v)
		}))
	})
	if err != nil {
		return nil, err
	}
	r.sub = sub
	return r, nil
}

// Subject returns this Reservoir's identity.
func (r *Reservoir[E]) Subject() *Subject { return r.subject }

func (r *Reservoir[E]) capture(subject *Subject, v E) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.buffer = append(r.buffer, Capture[E]{Subject: subject, Emission: v, Captured: r.clock.Now()})
	depth := len(r.buffer)
	r.mu.Unlock()

	r.metrics.Counter(MetricReservoirCapturedTotal).Inc()
	r.metrics.Gauge(MetricReservoirBuffered).Set(float64(depth))
}

// Drain atomically removes and returns every Capture buffered since the
// previous Drain. The returned slice is this Reservoir's own, safe to
// retain; Drain never returns it again.
func (r *Reservoir[E]) Drain() []Capture[E] {
	r.mu.Lock()
	out := r.buffer
	r.buffer = nil
	r.mu.Unlock()

	r.metrics.Counter(MetricReservoirDrainedTotal).Inc()
	r.metrics.Gauge(MetricReservoirBuffered).Set(0)
	capitan.Info(context.Background(), SignalReservoirDrained,
		FieldReservoirName.Field(nameOrAnonymous(r.subject.Name())),
		FieldDrainedCount.Field(len(out)),
	)
	return out
}

// Close unsubscribes from the underlying Source and discards any buffered,
// undrained Captures. Idempotent.
func (r *Reservoir[E]) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.buffer = nil
	r.mu.Unlock()

	if r.sub != nil {
		return r.sub.Close()
	}
	return nil
}
