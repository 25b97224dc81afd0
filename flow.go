package substrates

import (
	"math/rand"
	"sync"

	"github.com/zoobzio/clockz"
)

// Operator is one stage of a Flow pipeline: given the emitted value and
// the next Pipe downstream, it decides whether, and with what value, to
// forward. Operators built by Flow's own methods (Diff, Guard, Sift, ...)
// close over their own mutable state; that state is allocated once, when
// the configuring method runs, and is shared by every Pipe later produced
// from this Flow via Apply — this is what lets a Flow installed at
// Conduit scope share operator state across every channel of that
// Conduit (§4.4, verified by scenario S5).
type Operator[E any] func(value E, next Pipe[E])

// Flow is a type-preserving, stateful operator pipeline. Build one with
// NewFlow, chain operator methods in the order they should run, and
// produce a concrete Pipe for a given downstream target with Apply.
// Composition order matches declaration order: the first configured
// operator sees each emission first.
type Flow[E any] struct {
	mu    sync.RWMutex
	ops   []Operator[E]
	clock clockz.Clock
}

// NewFlow returns an empty Flow, its SampleRate seed drawn from
// clockz.RealClock.
func NewFlow[E any]() *Flow[E] {
	return &Flow[E]{clock: clockz.RealClock}
}

// withClock overrides the Clock used to seed SampleRate, so a Flow
// installed on a Circuit or Conduit draws its seed from the same Clock the
// owning Circuit schedules against rather than the process-wide default.
func (f *Flow[E]) withClock(clock clockz.Clock) *Flow[E] {
	if clock != nil {
		f.clock = clock
	}
	return f
}

// Apply produces a Pipe[E] that routes every emission through this Flow's
// operators, in declared order, finally forwarding to target. Apply may be
// called repeatedly (once per Channel, when a Flow is shared at Conduit
// scope): each call returns a fresh Pipe wrapper, but every wrapper shares
// the same operator state.
func (f *Flow[E]) Apply(target Pipe[E]) Pipe[E] {
	f.mu.RLock()
	ops := make([]Operator[E], len(f.ops))
	copy(ops, f.ops)
	f.mu.RUnlock()

	p := target
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		next := p
		p = PipeFunc[E](func(v E) { op(v, next) })
	}
	return p
}

func (f *Flow[E]) add(op Operator[E]) *Flow[E] {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.mu.Unlock()
	return f
}

// Insert adds op at position i in the operator list (appending if i is out
// of range), for runtime flow reconfiguration. This is additive sugar over
// the documented operator set (§9 supplement 1); it changes nothing about
// operator semantics.
func (f *Flow[E]) Insert(i int, op Operator[E]) *Flow[E] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i > len(f.ops) {
		i = len(f.ops)
	}
	f.ops = append(f.ops, nil)
	copy(f.ops[i+1:], f.ops[i:])
	f.ops[i] = op
	return f
}

// Replace swaps the operator at position i for op, a no-op if i is out of
// range.
func (f *Flow[E]) Replace(i int, op Operator[E]) *Flow[E] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= 0 && i < len(f.ops) {
		f.ops[i] = op
	}
	return f
}

// Diff suppresses any emission equal, by value-equality, to the previously
// forwarded value. The first emission is always forwarded.
func (f *Flow[E]) Diff() *Flow[E] {
	var mu sync.Mutex
	var prev E
	first := true
	return f.add(func(v E, next Pipe[E]) {
		mu.Lock()
		if first || !valueEqual(prev, v) {
			first = false
			prev = v
			mu.Unlock()
			next.Emit(v)
			return
		}
		mu.Unlock()
	})
}

// DiffFrom is Diff with a supplied prior baseline: an emission equal to
// initial is suppressed even though nothing has been forwarded yet.
func (f *Flow[E]) DiffFrom(initial E) *Flow[E] {
	var mu sync.Mutex
	prev := initial
	return f.add(func(v E, next Pipe[E]) {
		mu.Lock()
		if !valueEqual(prev, v) {
			prev = v
			mu.Unlock()
			next.Emit(v)
			return
		}
		mu.Unlock()
	})
}

// Guard forwards an emission iff pred holds for it.
func (f *Flow[E]) Guard(pred func(E) bool) *Flow[E] {
	return f.add(func(v E, next Pipe[E]) {
		if pred(v) {
			next.Emit(v)
		}
	})
}

// GuardFrom is a stateful guard comparing each emission against the most
// recently forwarded value (initial, before anything has been forwarded).
func (f *Flow[E]) GuardFrom(initial E, cmp func(prev, next E) bool) *Flow[E] {
	var mu sync.Mutex
	prev := initial
	return f.add(func(v E, next Pipe[E]) {
		mu.Lock()
		ok := cmp(prev, v)
		if ok {
			prev = v
		}
		mu.Unlock()
		if ok {
			next.Emit(v)
		}
	})
}

// Sift configures a composable range/extrema filter via the Sift builder
// passed to configure. cmp orders two values of E the way sort.Interface
// conventionally does: negative if a < b, zero if equal, positive if
// a > b.
func (f *Flow[E]) Sift(cmp func(a, b E) int, configure func(*Sift[E])) *Flow[E] {
	s := newSift(cmp)
	configure(s)
	return f.add(func(v E, next Pipe[E]) {
		if s.test(v) {
			next.Emit(v)
		}
	})
}

// Sample forwards every n-th emission, starting at the n-th (1-based).
// Sample(1) forwards every emission.
func (f *Flow[E]) Sample(n int) *Flow[E] {
	if n < 1 {
		n = 1
	}
	var mu sync.Mutex
	count := 0
	return f.add(func(v E, next Pipe[E]) {
		mu.Lock()
		count++
		hit := count%n == 0
		mu.Unlock()
		if hit {
			next.Emit(v)
		}
	})
}

// SampleRate forwards each emission independently with probability r
// (0<=r<=1), using a pseudorandom source seeded once per Flow instance —
// the probabilistic counterpart to Sample's deterministic n-th-value form
// (§9 supplement 4; Go has no operator overloading so the spec's single
// "sample(r)" is two named constructors here).
func (f *Flow[E]) SampleRate(r float64) *Flow[E] {
	if r < 0 {
		r = 0
	}
	if r > 1 {
		r = 1
	}
	src := rand.New(rand.NewSource(f.clock.Now().UnixNano())) //nolint:gosec // non-cryptographic sampling only.
	var mu sync.Mutex
	return f.add(func(v E, next Pipe[E]) {
		mu.Lock()
		pass := src.Float64() < r
		mu.Unlock()
		if pass {
			next.Emit(v)
		}
	})
}

// Skip drops the first k emissions and forwards every one after. Skip(0)
// is the identity operator.
func (f *Flow[E]) Skip(k int) *Flow[E] {
	var mu sync.Mutex
	remaining := k
	return f.add(func(v E, next Pipe[E]) {
		mu.Lock()
		if remaining > 0 {
			remaining--
			mu.Unlock()
			return
		}
		mu.Unlock()
		next.Emit(v)
	})
}

// Limit forwards only the first k emissions and drops every one after.
func (f *Flow[E]) Limit(k int) *Flow[E] {
	var mu sync.Mutex
	remaining := k
	return f.add(func(v E, next Pipe[E]) {
		mu.Lock()
		if remaining <= 0 {
			mu.Unlock()
			return
		}
		remaining--
		mu.Unlock()
		next.Emit(v)
	})
}

// Reduce maintains an accumulator seeded at seed, updating it on every
// emission as acc = fn(acc, v) and forwarding the updated accumulator.
func (f *Flow[E]) Reduce(seed E, fn func(acc, v E) E) *Flow[E] {
	var mu sync.Mutex
	acc := seed
	return f.add(func(v E, next Pipe[E]) {
		mu.Lock()
		acc = fn(acc, v)
		out := acc
		mu.Unlock()
		next.Emit(out)
	})
}

// Peek invokes fn(v) as a side effect and forwards v unchanged.
func (f *Flow[E]) Peek(fn func(E)) *Flow[E] {
	return f.add(func(v E, next Pipe[E]) {
		fn(v)
		next.Emit(v)
	})
}

// ForwardTo tees each emission to p and also forwards it unchanged
// downstream. (Named ForwardTo rather than Forward to avoid shadowing the
// package-level Pipe constructors of the same flavor.)
func (f *Flow[E]) ForwardTo(p Pipe[E]) *Flow[E] {
	return f.add(func(v E, next Pipe[E]) {
		p.Emit(v)
		next.Emit(v)
	})
}

// ReplaceWith forwards fn(v) in place of v. (Named ReplaceWith to avoid
// colliding with Flow.Replace, the operator-list-splice supplement above.)
func (f *Flow[E]) ReplaceWith(fn func(E) E) *Flow[E] {
	return f.add(func(v E, next Pipe[E]) {
		next.Emit(fn(v))
	})
}

// valueEqual compares two values with ==, treating dynamic types Go
// cannot compare (e.g. a slice-valued E) as always-unequal rather than
// panicking. Shared with State's idempotent-prepend rule.
func valueEqual(a, b interface{}) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
