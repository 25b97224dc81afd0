package substrates

import "sync"

// Resource is anything with a release operation. Circuits, Subscriptions,
// Reservoirs, and Scopes themselves all satisfy Resource, so any of them
// can be registered with a Scope.
type Resource interface {
	Close() error
}

// ResourceFunc adapts a plain func() error into a Resource.
type ResourceFunc func() error

// Close implements Resource.
func (f ResourceFunc) Close() error { return f() }

// Scope is a LIFO registry of Resources: closing a Scope closes every
// registered Resource in reverse registration order, so that a resource
// never outlives something it depends on that was registered before it.
type Scope struct {
	subject *Subject

	mu        sync.Mutex
	closed    bool
	resources []Resource
}

// newScope constructs a Scope whose Subject is enclosed by parent (nil for
// a root scope).
func newScope(name *Name, enclosure *Subject) *Scope {
	s := &Scope{}
	s.subject = newSubject(name, KindScope, enclosure)
	return s
}

// Subject returns this Scope's identity.
func (s *Scope) Subject() *Subject { return s.subject }

// Register ties r's lifetime to this Scope: r is closed when the Scope
// closes, in LIFO order relative to other registered resources. Register
// returns r unchanged, so registration can be chained with construction.
// Register fails with a LifecycleError once the Scope is closed.
func (s *Scope) Register(r Resource) (Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, newLifecycleError("Scope.Register", ErrScopeClosed)
	}
	s.resources = append(s.resources, r)
	return r, nil
}

// NewScope creates an anonymous child Scope, registered with this Scope so
// that closing the parent closes the child. Fails with a LifecycleError if
// this Scope is already closed.
func (s *Scope) NewScope() (*Scope, error) {
	return s.NewNamedScope(nil)
}

// NewNamedScope is Scope.NewScope with an explicit child Name.
func (s *Scope) NewNamedScope(name *Name) (*Scope, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, newLifecycleError("Scope.NewScope", ErrScopeClosed)
	}
	s.mu.Unlock()

	child := newScope(name, s.subject)
	if _, err := s.Register(child); err != nil {
		return nil, err
	}
	return child, nil
}

// Within reports whether other is an ancestor of this Scope.
func (s *Scope) Within(other *Scope) bool {
	return s.subject.Within(other.subject)
}

// Closure returns a memoized one-shot adapter over r: calling Consume on
// the result runs fn(r) exactly once and then closes r exactly once, even
// if fn panics. After this Scope closes, the returned Closure's Consume
// becomes an inert no-op — it neither invokes fn nor double-closes r.
func (s *Scope) Closure(r Resource) *Closure {
	return &Closure{scope: s, resource: r}
}

// Close releases every Resource registered with this Scope, most recently
// registered first, and marks the Scope closed. Close is idempotent: a
// second call is a no-op. A failing Resource.Close does not prevent the
// remaining resources from being closed; every non-nil error is collected
// and returned together as a MultiError.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	resources := s.resources
	s.resources = nil
	s.mu.Unlock()

	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		if err := resources[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return &MultiError{Errors: errs}
}

func (s *Scope) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MultiError collects the non-nil errors from closing several Resources
// during Scope.Close, none of which aborts the others.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	msg := "substrates: multiple resources failed to close:"
	for _, e := range m.Errors {
		msg += " " + e.Error() + ";"
	}
	return msg
}

// Closure is a memoized one-shot adapter returned by Scope.Closure. See
// Scope.Closure for the contract.
type Closure struct {
	scope    *Scope
	resource Resource
	once     sync.Once
}

// Consume runs fn(resource) and then closes resource, both exactly once,
// regardless of how many times Consume is called or whether fn panics. If
// the owning Scope has already closed, Consume is an inert no-op.
func (c *Closure) Consume(fn func(Resource)) {
	if c.scope.isClosed() {
		return
	}
	c.once.Do(func() {
		var recovered interface{}
		func() {
			defer func() { recovered = recover() }()
			fn(c.resource)
		}()
		c.resource.Close() //nolint:errcheck // best-effort; Scope.Close already reports resource errors.
		if recovered != nil {
			panic(recovered)
		}
	})
}
