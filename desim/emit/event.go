package emit

// Event represents an observability event emitted during a simulation run.
//
// Events provide insight into scheduler behavior:
//   - Event dispatch start/complete
//   - Process state transitions
//   - Errors
//   - Store rendezvous (get/put wait and resolution)
//   - Checkpoint dump operations
//
// Events are emitted to an Emitter, which can log them, forward them to
// OpenTelemetry, buffer them for inspection, or discard them entirely.
type Event struct {
	// RunID identifies the simulation run that emitted this event.
	RunID string

	// Time is the simulation's logical clock value (Timestamp) when this
	// event was emitted. Zero for run-level events that precede the first
	// dispatch.
	Time int64

	// EventID identifies the scheduler event this observability event
	// concerns. Empty for run-level events (run start, run complete).
	EventID string

	// ProcessType identifies which process type was dispatched. Empty for
	// run-level events.
	ProcessType string

	// Msg is a short machine-stable description, e.g. "dispatch",
	// "store_wait", "checkpoint_dump".
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": wall-clock time spent in the handler
	//   - "error": error detail string
	//   - "store_id": the Store a rendezvous event concerns
	//   - "dump_path": the checkpoint key written
	Meta map[string]interface{}
}
