package substrates

import (
	"fmt"
	"sync/atomic"
)

var currentIDSeq uint64

// Current is a thread-local (goroutine-local, by convention) identity
// view: a Current value is valid only on the goroutine that obtained it
// from Cortex.Current and must never be read or stored by another
// goroutine. This resolves the Open Question in §9 — the reference
// implementation throws Unsupported from current(); this implementation
// returns a real, stable (id, name) view instead.
//
// Go has no goroutine-local storage, so the enforcement is best-effort: a
// Current records the goroutine id (via a runtime.Stack parse, the
// standard pragmatic technique for this exact problem in Go) that created
// it and every accessor re-checks against the calling goroutine, returning
// ErrCurrentCrossThread rather than silently returning stale identity.
type Current struct {
	id      uint64
	name    *Name
	gid     uint64
}

// newCurrent allocates a Current bound to the calling goroutine.
func newCurrent(name *Name) *Current {
	return &Current{
		id:   atomic.AddUint64(&currentIDSeq, 1),
		name: name,
		gid:  goroutineID(),
	}
}

// ID returns the stable identifier for this thread-of-execution view.
func (c *Current) ID() (uint64, error) {
	if err := c.checkThread(); err != nil {
		return 0, err
	}
	return c.id, nil
}

// Name returns the Name associated with this Current, typically the name
// given to Cortex.Current.
func (c *Current) Name() (*Name, error) {
	if err := c.checkThread(); err != nil {
		return nil, err
	}
	return c.name, nil
}

func (c *Current) checkThread() error {
	if goroutineID() != c.gid {
		return newValidationError("Current", ErrCurrentCrossThread)
	}
	return nil
}

// String is a best-effort debug rendering; unlike the accessors it does
// not fail across goroutines, since it is meant for logging only.
func (c *Current) String() string {
	nm := "<unnamed>"
	if c.name != nil {
		nm = c.name.String()
	}
	return fmt.Sprintf("current[%d]:%s", c.id, nm)
}
