package substrates

import (
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Signal constants for substrates diagnostic events. Signals follow the
// pattern: <component>.<event>.
const (
	// Circuit signals.
	SignalCircuitStarted Signal = "circuit.started"
	SignalCircuitClosed  Signal = "circuit.closed"
	SignalCircuitPanic   Signal = "circuit.panic"

	// Conduit signals.
	SignalConduitHandlerFailure Signal = "conduit.handler-failure"

	// Scope signals.
	SignalScopeCloseError Signal = "scope.close-error"

	// Reservoir signals.
	SignalReservoirCaptured Signal = "reservoir.captured"
	SignalReservoirDrained  Signal = "reservoir.drained"
)

// Signal is a local alias of capitan.Signal, kept so the constants above
// read as domain vocabulary rather than a borrowed type.
type Signal = capitan.Signal

// Common field keys using capitan's primitive key types, mirroring the
// field-key convention the rest of the dependency stack uses to avoid
// custom struct serialization in diagnostic events.
var (
	FieldCircuitName   = capitan.NewStringKey("circuit_name")
	FieldConduitName    = capitan.NewStringKey("conduit_name")
	FieldChannelName    = capitan.NewStringKey("channel_name")
	FieldScopeName      = capitan.NewStringKey("scope_name")
	FieldReservoirName  = capitan.NewStringKey("reservoir_name")
	FieldError          = capitan.NewStringKey("error")
	FieldQueueDepth     = capitan.NewIntKey("queue_depth")
	FieldDrainedCount   = capitan.NewIntKey("drained_count")
)

// Metric keys for the Circuit's metricz registry.
const (
	MetricCircuitEmittedTotal  = metricz.Key("circuit.emitted.total")
	MetricCircuitFailuresTotal = metricz.Key("circuit.handler_failures.total")
	MetricCircuitIngressDepth  = metricz.Key("circuit.ingress.depth")
)

// Metric keys for the Reservoir's metricz registry.
const (
	MetricReservoirCapturedTotal = metricz.Key("reservoir.captured.total")
	MetricReservoirDrainedTotal  = metricz.Key("reservoir.drained.total")
	MetricReservoirBuffered      = metricz.Key("reservoir.buffered")
)

// Trace span keys for the Circuit's tracez tracer.
const (
	SpanCircuitExecute = tracez.Key("circuit.execute")
)

