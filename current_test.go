package substrates

import (
	"errors"
	"testing"
)

func TestCurrentIDAndNameOnConstructingGoroutine(t *testing.T) {
	pool := NewPool()
	name, _ := pool.Of("job")
	cur := newCurrent(name)

	id, err := cur.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if id == 0 {
		t.Fatal("Current.ID should be non-zero")
	}
	got, err := cur.Name()
	if err != nil {
		t.Fatalf("Name: %v", err)
	}
	if got != name {
		t.Fatalf("Name = %v, want %v", got, name)
	}
}

func TestCurrentCrossGoroutineAccessFails(t *testing.T) {
	cur := newCurrent(nil)

	errCh := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := cur.ID()
		errCh <- err
	}()
	<-done

	err := <-errCh
	if err == nil {
		t.Fatal("accessing a Current from a goroutine other than the one that created it should fail")
	}
	if !errors.Is(err, ErrCurrentCrossThread) {
		t.Fatalf("expected ErrCurrentCrossThread, got %v", err)
	}
}

func TestCurrentStringNeverFailsCrossGoroutine(t *testing.T) {
	pool := NewPool()
	name, _ := pool.Of("job")
	cur := newCurrent(name)

	done := make(chan string, 1)
	go func() {
		done <- cur.String()
	}()
	s := <-done
	if s == "" {
		t.Fatal("Current.String should never fail, even cross-goroutine")
	}
}
