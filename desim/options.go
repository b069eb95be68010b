package desim

import (
	"time"

	"github.com/lattice-sim/desim/desim/emit"
	"github.com/lattice-sim/desim/desim/persist"
)

// RunOptions configures a RunSimulation / RunSimulationWithDeltas call.
//
// Functional Options provide the extensible configuration surface:
//
//	sim, stats, err := desim.RunSimulation(ctx, sim,
//	    desim.WithUntilTime(1000),
//	    desim.WithDumpInterval(50),
//	    desim.WithBackend(backend),
//	)
//
// The zero value runs to completion (no time/event bound), with no pacing,
// no checkpointing, and an auto-generated run id.
type RunOptions struct {
	// UntilTime halts the run at the first step boundary at or after this
	// logical time. Zero (the default) means no time bound.
	UntilTime Timestamp
	hasUntilTime bool

	// UntilEvent halts the run as soon as this event id has transitioned to
	// Finished.
	UntilEvent EventID

	// Rate, if positive, is a pacing hint: the runner sleeps 1/Rate seconds
	// between steps. Zero (the default) means run as fast as possible.
	Rate float64

	// RunID names this run for manifest and dump-key purposes. A random one
	// is generated if empty.
	RunID string

	// RunDirectory is the key prefix under which a Backend stores this run's
	// manifest and dumps (e.g. "runs/<runId>/"). Defaults to "runs/<runId>/".
	RunDirectory string

	// Backend is where manifests and dumps are written. A nil Backend
	// disables checkpointing entirely (the runner keeps everything
	// in-memory and returns it at the end).
	Backend persist.Backend

	// DumpInterval is the number of accumulated deltas that triggers a
	// checkpoint write. Must be ≥ 1 when Backend is set; defaults to 100.
	DumpInterval int

	// RunMetadata is opaque caller-supplied metadata persisted in the run
	// manifest.
	RunMetadata map[string]any

	// Emitter receives the runner's "dispatch" and "checkpoint_dump"
	// observability events as the run progresses. Defaults to a
	// NullEmitter, which discards everything.
	Emitter emit.Emitter

	// Metrics receives Prometheus-compatible instrumentation. Nil disables
	// metric recording.
	Metrics *Metrics
}

// Option mutates a RunOptions being built up by RunSimulation/
// RunSimulationWithDeltas.
type Option func(*RunOptions)

// WithUntilTime halts the run at the first step boundary at or after t.
func WithUntilTime(t Timestamp) Option {
	return func(o *RunOptions) { o.UntilTime = t; o.hasUntilTime = true }
}

// WithUntilEvent halts the run once id has fired (reached Finished).
func WithUntilEvent(id EventID) Option {
	return func(o *RunOptions) { o.UntilEvent = id }
}

// WithRate sets a pacing hint in Hz: the runner sleeps 1/rate between steps.
func WithRate(hz float64) Option {
	return func(o *RunOptions) { o.Rate = hz }
}

// WithRunID sets the run's identifier, used in manifest and dump paths.
func WithRunID(id string) Option {
	return func(o *RunOptions) { o.RunID = id }
}

// WithRunDirectory sets the key prefix a Backend stores this run under.
func WithRunDirectory(dir string) Option {
	return func(o *RunOptions) { o.RunDirectory = dir }
}

// WithBackend enables checkpointing against the given Backend.
func WithBackend(b persist.Backend) Option {
	return func(o *RunOptions) { o.Backend = b }
}

// WithDumpInterval sets how many accumulated deltas trigger a checkpoint
// write. n must be ≥ 1.
func WithDumpInterval(n int) Option {
	return func(o *RunOptions) {
		if n < 1 {
			n = 1
		}
		o.DumpInterval = n
	}
}

// WithRunMetadata attaches opaque metadata to the run manifest.
func WithRunMetadata(md map[string]any) Option {
	return func(o *RunOptions) { o.RunMetadata = md }
}

// WithEmitter routes the runner's dispatch and checkpoint-dump events to e.
func WithEmitter(e emit.Emitter) Option {
	return func(o *RunOptions) { o.Emitter = e }
}

// WithMetrics enables Prometheus instrumentation for the run.
func WithMetrics(m *Metrics) Option {
	return func(o *RunOptions) { o.Metrics = m }
}

// resolveOptions applies opts over documented defaults.
func resolveOptions(opts []Option) RunOptions {
	o := RunOptions{DumpInterval: 100, Emitter: emit.NewNullEmitter()}
	for _, apply := range opts {
		apply(&o)
	}
	if o.RunID == "" {
		o.RunID = string(NewEventID())
	}
	if o.RunDirectory == "" {
		o.RunDirectory = "runs/" + o.RunID + "/"
	}
	return o
}

// terminate reports whether the run loop should stop after observing next.
func (o RunOptions) terminate(next *Simulation) bool {
	if o.hasUntilTime && next.CurrentTime >= o.UntilTime {
		return true
	}
	if o.UntilEvent != "" {
		if status, ok := next.Timeline.Status[o.UntilEvent]; ok && status == Finished {
			return true
		}
	}
	return false
}

// pacingDelay returns the inter-step sleep duration implied by Rate, or zero
// if no pacing was requested.
func (o RunOptions) pacingDelay() time.Duration {
	if o.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / o.Rate)
}
