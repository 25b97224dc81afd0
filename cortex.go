package substrates

import (
	"os"
	"sync"

	"github.com/zoobzio/clockz"
)

// spiProviderEnv names the single environment variable that selects which
// registered Provider builds the process Cortex singleton, per §6's
// "implementation selection is via one environment/system property."
const spiProviderEnv = "SUBSTRATES_SPI_PROVIDER"

// Provider constructs a Cortex. Register one with RegisterProvider so
// tests (or alternate deployments) can substitute a deterministic
// implementation without the caller's code changing (§9's "expose a
// provider indirection so tests can substitute a deterministic
// implementation").
type Provider func() (*Cortex, error)

var (
	providersMu sync.Mutex
	providers   = map[string]Provider{
		"default": func() (*Cortex, error) { return newCortex(clockz.RealClock), nil },
	}
)

// RegisterProvider makes a named Provider available for selection via
// spiProviderEnv. Registering under a name that already exists replaces
// the prior Provider.
func RegisterProvider(name string, p Provider) {
	providersMu.Lock()
	defer providersMu.Unlock()
	providers[name] = p
}

var (
	singletonOnce sync.Once
	singleton     *Cortex
	singletonErr  error
)

// GetCortex returns the process Cortex singleton (§6's `cortex()`),
// constructing it on first call via whichever Provider spiProviderEnv
// names, or "default" if the variable is unset.
func GetCortex() (*Cortex, error) {
	singletonOnce.Do(func() {
		name := os.Getenv(spiProviderEnv)
		if name == "" {
			name = "default"
		}
		providersMu.Lock()
		p, ok := providers[name]
		providersMu.Unlock()
		if !ok {
			singletonErr = newValidationError("GetCortex", ErrUnknownSPIProvider)
			return
		}
		singleton, singletonErr = p()
	})
	return singleton, singletonErr
}

// Cortex is the process-wide entry point and factory described in §6: it
// interns Names through its own Pool and creates Circuits, Scopes, Pipes,
// Subscribers, and Reservoirs. Obtain the singleton via GetCortex; Cortex
// itself is also safe to construct directly (newCortex) wherever a test
// wants an isolated instance instead of the shared singleton.
type Cortex struct {
	subject   *Subject
	pool      *Pool
	rootScope *Scope
	clock     clockz.Clock
}

func newCortex(clock clockz.Clock) *Cortex {
	if clock == nil {
		clock = clockz.RealClock
	}
	subject := newSubject(nil, KindCortex, nil)
	return &Cortex{
		subject:   subject,
		pool:      NewPool(),
		rootScope: newScope(nil, subject),
		clock:     clock,
	}
}

// Subject returns this Cortex's identity.
func (c *Cortex) Subject() *Subject { return c.subject }

// Pool returns this Cortex's Name pool — the pool every Name this Cortex
// hands out (or interns on request) is interned through.
func (c *Cortex) Pool() *Pool { return c.pool }

// Name interns s through this Cortex's Pool (§6's `name(...)`).
func (c *Cortex) Name(s string) (*Name, error) { return c.pool.Of(s) }

// NewCircuit creates an anonymous Circuit.
func (c *Cortex) NewCircuit() (*Circuit, error) {
	return newCircuit(nil, c.subject, c.clock), nil
}

// NewNamedCircuit creates a named Circuit.
func (c *Cortex) NewNamedCircuit(name *Name) (*Circuit, error) {
	if name == nil {
		return nil, newValidationError("Cortex.NewNamedCircuit", ErrNilArgument)
	}
	return newCircuit(name, c.subject, c.clock), nil
}

// NewScope creates an anonymous root Scope, registered with this Cortex's
// own root Scope so that nothing outlives the Cortex.
func (c *Cortex) NewScope() (*Scope, error) {
	return c.rootScope.NewScope()
}

// NewNamedScope creates a named root Scope.
func (c *Cortex) NewNamedScope(name *Name) (*Scope, error) {
	return c.rootScope.NewNamedScope(name)
}

// Slot builds a Slot tagged from value's concrete type (§6's
// `slot(...)`).
func (c *Cortex) Slot(name *Name, value interface{}) Slot {
	return NewSlot(name, value)
}

// State returns a fresh, empty State (§6's `state()`).
func (c *Cortex) State() *State { return NewState() }

// Current returns a Current bound to the calling goroutine (§6's
// `current()`; see current.go for the Open Question this resolves).
func (c *Cortex) Current(name *Name) *Current { return newCurrent(name) }

// CortexPipe returns a Receptor-wrapped Pipe[E] (§6's `pipe(receptor)`).
func CortexPipe[E any](receptor func(E)) Pipe[E] {
	return Receptor(receptor)
}

// CortexTransformPipe returns a transforming Pipe[I] that applies f and
// forwards to target (§6's `pipe(f, target)`).
func CortexTransformPipe[I, O any](f func(I) O, target Pipe[O]) Pipe[I] {
	return Transform(f, target)
}

// CortexSubscriber names a Subscriber for diagnostics (§6's
// `subscriber(name, (subject,registrar)→void)`); the Name currently has
// no effect beyond documentation value at the call site, since Subscriber
// itself carries no identity slot.
func CortexSubscriber[E any](name *Name, fn Subscriber[E]) Subscriber[E] {
	return fn
}

// CortexReservoir creates a Reservoir over source (§6's
// `reservoir(source)`).
func CortexReservoir[E any](source Source[E]) (*Reservoir[E], error) {
	return NewReservoir(source)
}
