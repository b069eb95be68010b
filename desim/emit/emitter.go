// Package emit provides event emission and observability for simulation runs.
package emit

import "context"

// Emitter receives and processes observability events from a simulation run.
//
// Emitters enable pluggable observability backends:
// - Logging: stdout, files, syslog.
// - Distributed tracing: OpenTelemetry, Jaeger, Zipkin.
// - Metrics: Prometheus, StatsD.
// - Analytics: DataDog, New Relic.
//
// Implementations should be:
// - Non-blocking: avoid slowing down dispatch.
// - Thread-safe: the kernel dispatches on a single goroutine, but an
//   emitter may still be shared across concurrent runs.
// - Resilient: handle failures gracefully (don't crash the run).
//
// Common patterns:
// - Buffering: collect events and flush in batches.
// - Filtering: only emit events matching criteria (e.g., errors only).
// - Multi-emit: fan out to multiple backends.
// - Sampling: emit only a percentage of events for high-volume runs.
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	//
	// Implementations should not block dispatch. If the backend is
	// unavailable or slow, events should be buffered, dropped with error
	// logging, or sent asynchronously. Emit should not panic; errors should
	// be logged internally.
	Emit(event Event)

	// EmitBatch sends multiple events in a single operation for improved
	// performance, amortizing overhead across a burst of dispatches.
	// Implementations should process events in order (preserve
	// happened-before relationships) and handle partial failures
	// gracefully rather than returning early. Returns error only on
	// catastrophic failures (e.g., configuration errors); individual event
	// failures should be logged but not returned.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush ensures all buffered events are sent to the backend. Call this
	// before process shutdown or at run completion to avoid losing
	// buffered events. Implementations should block until all buffered
	// events are sent or ctx is done, and should be safe to call more than
	// once.
	Flush(ctx context.Context) error
}
