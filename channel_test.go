package substrates

import (
	"errors"
	"testing"
)

func TestChannelHandleExpiresAfterComposerReturns(t *testing.T) {
	c := newTestCircuit(t)
	var captured *ChannelHandle[int]
	conduit, err := NewConduit[int](c, func(h *ChannelHandle[int]) Percept {
		captured = h
		p, _ := h.Pipe()
		return p
	})
	if err != nil {
		t.Fatalf("NewConduit: %v", err)
	}
	pool := NewPool()
	name, _ := pool.Of("ch")
	if _, err := conduit.Percept(name); err != nil {
		t.Fatalf("Percept: %v", err)
	}

	if _, err := captured.Pipe(); err == nil {
		t.Fatal("ChannelHandle.Pipe() must fail once the Composer call that received it has returned")
	} else if !errors.Is(err, ErrTemporalExpired) {
		t.Fatalf("expected ErrTemporalExpired, got %v", err)
	}
	if _, err := captured.Subject(); err == nil {
		t.Fatal("ChannelHandle.Subject() must fail once the Composer call that received it has returned")
	}
}

func TestChannelRebuildsLazilyOnSubscriberChange(t *testing.T) {
	c := newTestCircuit(t)
	conduit, err := NewConduit[int](c, echoComposer)
	if err != nil {
		t.Fatalf("NewConduit: %v", err)
	}
	pool := NewPool()
	name, _ := pool.Of("ch")
	percept, err := conduit.Percept(name)
	if err != nil {
		t.Fatalf("Percept: %v", err)
	}
	p := percept.(Pipe[int])

	var firstCount, secondCount int
	_, err = conduit.Subscribe(func(_ *Subject, r *Registrar[int]) {
		_ = r.Register(PipeFunc[int](func(int) { firstCount++ }))
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	p.Emit(1)
	if err := c.Await(); err != nil {
		t.Fatalf("Await: %v", err)
	}
	if firstCount != 1 {
		t.Fatalf("firstCount = %d, want 1", firstCount)
	}

	_, err = conduit.Subscribe(func(_ *Subject, r *Registrar[int]) {
		_ = r.Register(PipeFunc[int](func(int) { secondCount++ }))
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	p.Emit(2)
	if err := c.Await(); err != nil {
		t.Fatalf("Await: %v", err)
	}
	if firstCount != 2 {
		t.Fatalf("firstCount = %d after rebuild, want 2 (existing subscribers keep receiving)", firstCount)
	}
	if secondCount != 1 {
		t.Fatalf("secondCount = %d, want 1 (new subscriber only sees post-subscribe emissions)", secondCount)
	}
}

func TestRegistrarRejectsRegisterAfterComposerWindowCloses(t *testing.T) {
	c := newTestCircuit(t)
	conduit, err := NewConduit[int](c, echoComposer)
	if err != nil {
		t.Fatalf("NewConduit: %v", err)
	}
	pool := NewPool()
	name, _ := pool.Of("ch")
	percept, err := conduit.Percept(name)
	if err != nil {
		t.Fatalf("Percept: %v", err)
	}
	p := percept.(Pipe[int])

	var escaped *Registrar[int]
	_, err = conduit.Subscribe(func(_ *Subject, r *Registrar[int]) {
		escaped = r
		_ = r.Register(Identity[int]())
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	p.Emit(1)
	if err := c.Await(); err != nil {
		t.Fatalf("Await: %v", err)
	}

	if err := escaped.Register(Identity[int]()); err == nil {
		t.Fatal("Registrar.Register after its subscriber callback window ends should fail")
	}
}
