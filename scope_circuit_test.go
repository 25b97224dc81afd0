package substrates

import "testing"

// S7 — a Scope cascades Close across a Subscription and a Circuit
// registered within it: the subscription stops delivering, the circuit
// stops accepting new work, and a Closure obtained from the Scope before it
// closed is left inert.
func TestScopeCascadeClosesSubscriptionAndCircuit(t *testing.T) {
	scope := newScope(nil, nil)
	c := newCircuit(nil, nil, nil)
	if _, err := scope.Register(c); err != nil {
		t.Fatalf("Register circuit: %v", err)
	}

	conduit, err := NewConduit[int](c, echoComposer)
	if err != nil {
		t.Fatalf("NewConduit: %v", err)
	}

	count := 0
	sub, err := conduit.Subscribe(func(_ *Subject, r *Registrar[int]) {
		_ = r.Register(PipeFunc[int](func(int) { count++ }))
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if _, err := scope.Register(sub); err != nil {
		t.Fatalf("Register subscription: %v", err)
	}

	pool := NewPool()
	name, _ := pool.Of("ch")
	percept, err := conduit.Percept(name)
	if err != nil {
		t.Fatalf("Percept: %v", err)
	}
	p := percept.(Pipe[int])

	p.Emit(1)
	if err := c.Await(); err != nil {
		t.Fatalf("Await: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	closure := scope.Closure(ResourceFunc(func() error { return nil }))

	if err := scope.Close(); err != nil {
		t.Fatalf("scope.Close: %v", err)
	}

	// Circuit is closed: further emissions are silently dropped.
	p.Emit(2)
	if count != 1 {
		t.Fatalf("count = %d after scope close, want unchanged 1: circuit should be closed", count)
	}

	// Re-deriving from the scope now fails with a lifecycle error.
	if _, err := scope.NewScope(); err == nil {
		t.Fatal("NewScope on a closed Scope should fail")
	}

	// A Closure built before the close is now inert.
	ran := false
	closure.Consume(func(Resource) { ran = true })
	if ran {
		t.Fatal("Closure.Consume after the owning Scope has closed must be inert")
	}
}
