// Package substrates provides a low-latency, in-process event-routing
// runtime: named, interned identifiers; a single-writer execution engine
// with depth-first cascade ordering; and a subscriber/channel topology
// that rebuilds lazily as subscriptions change.
//
// # Overview
//
// substrates is built around a small set of cooperating components:
//
//   - Name / Pool: hierarchical, interned identifiers with O(1) identity
//     comparison.
//   - State / Slot: an immutable, persistent association list attached to
//     every engine entity's Subject.
//   - Scope / Closure: a LIFO resource registry with guaranteed,
//     one-shot release.
//   - Pipe: the single-method emission sink every value ultimately flows
//     through — identity, receptor, transforming, async, and
//     flow-configured variants.
//   - Flow: a type-preserving, stateful operator pipeline (diff, guard,
//     sift, sample, skip, limit, reduce, peek, tee, replace).
//   - Conduit / Channel: a Percept factory and per-name routing node that
//     rebuilds its subscriber-derived pipe list lazily, on demand.
//   - Circuit: the single-writer executor — one worker goroutine, a
//     concurrency-safe ingress queue, and a worker-only transit queue
//     that gives cascading emissions depth-first priority over new
//     external work.
//   - Cell: an experimental hierarchical bidirectional node built from
//     the same Pipe/Channel primitives.
//   - Cortex: the process entry point and factory.
//
// # Execution model
//
// A caller obtains a Pipe from a Conduit's Percept and calls Emit. Emit
// never runs subscriber code on the caller's own goroutine: it schedules
// the value onto the owning Circuit, whose single worker goroutine
// dequeues it, rebuilds the target Channel's pipe list if the Conduit's
// subscriber set has changed since the last rebuild, and delivers the
// value to each subscriber-installed Pipe in turn. Emissions a handler
// makes from inside the worker are enqueued onto a transit queue that
// always drains ahead of new external (ingress) work, so a cascading
// chain started by one external emission completes, depth-first, before
// the Circuit looks at its next external emission.
//
// # Error handling
//
// Calling code sees synchronous errors only for programming mistakes:
// nil arguments, empty Name segments, awaiting a Circuit from its own
// worker, or touching a temporal handle (Channel, Registrar, Current)
// outside its valid window. The Sift builder is temporal too but is not
// checked: using it after its configure call returns raises no error. Failures raised by a Pipe, Subscriber,
// or Composer running on a Circuit's worker are absorbed there: they
// never propagate to an emitter, never stop the worker, and never affect
// the delivery order of unrelated emissions. They are instead routed to
// this package's diagnostic sink (a capitan signal plus the owning
// Conduit's hookz event), exactly as a production service's internal
// handler failures would be logged and alerted on rather than crashing
// the caller.
//
// # Observability
//
// Every Circuit carries its own metricz.Registry (emission counts,
// handler-failure counts, ingress depth) and tracez.Tracer; Conduits
// expose hookz hooks for subscription and handler-failure events; and
// capitan signals are emitted for circuit lifecycle transitions and
// absorbed handler failures, independent of whatever logging a caller's
// own diagnostic pipe does with the values flowing through it.
package substrates
