package substrates

import (
	"strings"
	"sync"
)

// DefaultDelimiter joins Name segments when no separator is supplied to
// Path. Substrates never interprets this character specially outside of
// display and parsing of dotted strings passed to Of.
const DefaultDelimiter = "."

// Name is a hierarchical, interned identifier. Two Names built from equal
// segment sequences are the same *Name value: equality and hashing reduce
// to pointer identity, never to string comparison. Obtain Names through a
// Pool (conventionally the process Cortex's Pool, via GetCortex and
// Cortex.Name) —
// never construct one directly.
type Name struct {
	part   string
	parent *Name
	depth  int
	path   string
}

// Part returns this Name's last segment.
func (n *Name) Part() string { return n.part }

// Parent returns the enclosing Name, or nil for a root (depth-1) Name.
func (n *Name) Parent() *Name { return n.parent }

// Depth returns the number of segments, root-to-self, starting at 1 for a
// single-segment Name.
func (n *Name) Depth() int { return n.depth }

// Path renders the full segment sequence joined by sep.
func (n *Name) Path(sep string) string {
	if sep == DefaultDelimiter {
		return n.path
	}
	return strings.Join(n.segments(), sep)
}

// String renders the path using DefaultDelimiter.
func (n *Name) String() string { return n.path }

func (n *Name) segments() []string {
	segs := make([]string, n.depth)
	for cur := n; cur != nil; cur = cur.parent {
		segs[cur.depth-1] = cur.part
	}
	return segs
}

// Iter returns the segment chain from this Name up to its root, current
// first. The returned slice is a fresh copy; mutating it does not affect
// the pool.
func (n *Name) Iter() []*Name {
	out := make([]*Name, 0, n.depth)
	for cur := n; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	return out
}

// Pool is a concurrent canonicalizing map from segment path to the single
// interned *Name instance for that path. A Pool is the Name pool described
// in §4.1: every distinct segment sequence maps to exactly one *Name for
// the Pool's lifetime (the process, for the default Pool returned by
// Cortex).
type Pool struct {
	mu    sync.RWMutex
	index map[string]*Name
}

// NewPool creates an empty Name pool.
func NewPool() *Pool {
	return &Pool{index: make(map[string]*Name)}
}

// Of interns the dot-delimited path s, splitting on DefaultDelimiter, and
// returns its Name. Empty segments (leading, trailing, or doubled
// delimiters) are rejected.
func (p *Pool) Of(s string) (*Name, error) {
	if s == "" {
		return nil, newValidationError("Pool.Of", ErrEmptyNameSegment)
	}
	return p.OfSegments(strings.Split(s, DefaultDelimiter))
}

// MustOf is Of, panicking on error. Intended for package-level name table
// initialization where the segment list is a compile-time constant.
func (p *Pool) MustOf(s string) *Name {
	n, err := p.Of(s)
	if err != nil {
		panic(err)
	}
	return n
}

// OfSegments interns an explicit segment sequence.
func (p *Pool) OfSegments(segments []string) (*Name, error) {
	if len(segments) == 0 {
		return nil, newValidationError("Pool.OfSegments", ErrEmptyNameSegment)
	}
	for _, s := range segments {
		if s == "" {
			return nil, newValidationError("Pool.OfSegments", ErrEmptyNameSegment)
		}
	}
	path := strings.Join(segments, DefaultDelimiter)

	p.mu.RLock()
	if n, ok := p.index[path]; ok {
		p.mu.RUnlock()
		return n, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if n, ok := p.index[path]; ok {
		return n, nil
	}

	var parent *Name
	if len(segments) > 1 {
		// Build (or reuse) every ancestor so that Parent()/Iter() walk a
		// fully interned chain, without recursing through the exported,
		// re-locking Of/OfSegments.
		var err error
		parent, err = p.internLocked(segments[:len(segments)-1])
		if err != nil {
			return nil, err
		}
	}
	n := &Name{
		part:   segments[len(segments)-1],
		parent: parent,
		depth:  len(segments),
		path:   path,
	}
	p.index[path] = n
	return n, nil
}

// internLocked interns segments assuming p.mu is already held for writing.
func (p *Pool) internLocked(segments []string) (*Name, error) {
	path := strings.Join(segments, DefaultDelimiter)
	if n, ok := p.index[path]; ok {
		return n, nil
	}
	var parent *Name
	if len(segments) > 1 {
		var err error
		parent, err = p.internLocked(segments[:len(segments)-1])
		if err != nil {
			return nil, err
		}
	}
	n := &Name{
		part:   segments[len(segments)-1],
		parent: parent,
		depth:  len(segments),
		path:   path,
	}
	p.index[path] = n
	return n, nil
}

// Child interns name.path + "." + suffix and returns the resulting Name.
func (p *Pool) Child(name *Name, suffix string) (*Name, error) {
	if name == nil {
		return nil, newValidationError("Pool.Child", ErrNilArgument)
	}
	if suffix == "" {
		return nil, newValidationError("Pool.Child", ErrEmptyNameSegment)
	}
	segs := append(name.segments(), strings.Split(suffix, DefaultDelimiter)...)
	return p.OfSegments(segs)
}

// Name concatenates name's segments with suffix's and interns the result,
// implementing §4.1's "name(suffix) concatenates sequences before
// interning."
func (p *Pool) Name(name *Name, suffix *Name) (*Name, error) {
	if name == nil || suffix == nil {
		return nil, newValidationError("Pool.Name", ErrNilArgument)
	}
	segs := append(name.segments(), suffix.segments()...)
	return p.OfSegments(segs)
}
