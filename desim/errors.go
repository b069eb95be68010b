// Package desim implements a deterministic discrete-event simulation kernel:
// a priority-ordered event scheduler, bounded rendezvous stores, and a
// delta-encoded checkpoint/history engine.
package desim

import "errors"

// Sentinel errors for the conditions named in the error taxonomy. Callers
// should use errors.Is against these, or errors.As against *PastScheduleError
// and *CheckpointIOError for the cases that carry extra context.
var (
	// ErrUnknownProcessType is returned when an event's process type is not
	// registered in the simulation's process registry.
	ErrUnknownProcessType = errors.New("desim: unknown process type")

	// ErrUnknownStep is returned when a process's current step name has no
	// matching handler in its ProcessDefinition.
	ErrUnknownStep = errors.New("desim: unknown step")

	// ErrStoreNotFound is returned by Get/Put against an unregistered store id.
	ErrStoreNotFound = errors.New("desim: store not found")

	// ErrMissingPayload signals an internal invariant violation: a dequeued
	// put request or buffered item carried no payload.
	ErrMissingPayload = errors.New("desim: missing payload")

	// ErrUnsupportedDiscipline is returned when a store is configured with a
	// discipline other than FIFO or LIFO.
	ErrUnsupportedDiscipline = errors.New("desim: unsupported queue discipline")

	// ErrNoProgress indicates the scheduler has no Scheduled event left to
	// fire and no pending Waiting placeholders; the run is complete.
	ErrNoProgress = errors.New("desim: no runnable events remain")

	// ErrCorruptCheckpoint indicates a checkpoint file failed to parse or
	// referenced a base snapshot that could not be reconciled.
	ErrCorruptCheckpoint = errors.New("desim: corrupt checkpoint")
)

// PastScheduleError is returned by ScheduleEvent when an event is scheduled
// strictly before the simulation's current time.
type PastScheduleError struct {
	CurrentTime Timestamp
	ScheduledAt Timestamp
	EventID     EventID
}

func (e *PastScheduleError) Error() string {
	return "desim: cannot schedule event " + string(e.EventID) +
		" at scheduledAt < currentTime (" + e.ScheduledAt.String() + " < " + e.CurrentTime.String() + ")"
}

// CheckpointIOError wraps a failure to read or write a checkpoint dump or
// the run manifest. It always carries the underlying I/O error in Cause.
type CheckpointIOError struct {
	Op    string // "read" or "write"
	Path  string
	Cause error
}

func (e *CheckpointIOError) Error() string {
	return "desim: checkpoint " + e.Op + " failed for " + e.Path + ": " + e.Cause.Error()
}

func (e *CheckpointIOError) Unwrap() error { return e.Cause }
