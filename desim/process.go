package desim

import "context"

// ProcessState is the mutable state of a running process: which process
// type it belongs to, which step it is currently parked at, and its data.
// A ProcessState is created at an event's first dispatch and lives under
// that event's id until the event is pruned as Finished with no surviving
// reference.
type ProcessState struct {
	Type ProcessType `json:"type"`
	Step StepName    `json:"step"`
	Data StateData   `json:"data,omitempty"`
}

// StepResult is what a StepHandler returns: the process's new state and any
// events it wishes to schedule (including waiting placeholders).
type StepResult struct {
	State ProcessState
	Next  []Event
}

// StepHandler is a pure transformation from the current simulation
// snapshot, the firing event, and the process's incoming state to a
// StepResult. Handlers must not block, sleep, or read the wall clock: the
// only suspension mechanism is returning a waiting Event to be resumed by a
// Store rendezvous.
type StepHandler func(ctx context.Context, sim *Simulation, ev Event, state ProcessState) (StepResult, error)

// ProcessDefinition is an immutable named state machine: an initial step
// and a table of step handlers. Once registered it is never mutated.
type ProcessDefinition struct {
	Type    ProcessType
	Initial StepName
	Steps   map[StepName]StepHandler
}

// step looks up a handler by name, returning ErrUnknownStep if absent.
func (d ProcessDefinition) step(name StepName) (StepHandler, error) {
	h, ok := d.Steps[name]
	if !ok {
		return nil, ErrUnknownStep
	}
	return h, nil
}

// noopStep is the single handler backing NoneProcessType: it finishes the
// event with no further work and no state of interest.
func noopStep(_ context.Context, _ *Simulation, _ Event, state ProcessState) (StepResult, error) {
	return StepResult{State: state}, nil
}

// noneDefinition is always present in a fresh registry.
func noneDefinition() ProcessDefinition {
	return ProcessDefinition{
		Type:    NoneProcessType,
		Initial: noneStep,
		Steps:   map[StepName]StepHandler{noneStep: noopStep},
	}
}

// Registry holds ProcessType -> ProcessDefinition. Registering an existing
// type replaces the previous definition (last-writer-wins); no attempt is
// made to migrate processes already dispatched under the old definition.
type Registry struct {
	defs map[ProcessType]ProcessDefinition
}

// NewRegistry returns a Registry pre-seeded with NoneProcessType.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[ProcessType]ProcessDefinition)}
	r.Register(noneDefinition())
	return r
}

// Register installs (or replaces) a ProcessDefinition.
func (r *Registry) Register(def ProcessDefinition) {
	r.defs[def.Type] = def
}

// Lookup returns the definition for a process type, or ErrUnknownProcessType.
func (r *Registry) Lookup(t ProcessType) (ProcessDefinition, error) {
	def, ok := r.defs[t]
	if !ok {
		return ProcessDefinition{}, ErrUnknownProcessType
	}
	return def, nil
}

// clone returns a shallow copy suitable for attaching to a successor
// Simulation snapshot; ProcessDefinition values themselves are immutable
// once registered so only the map needs copying.
func (r *Registry) clone() *Registry {
	cp := &Registry{defs: make(map[ProcessType]ProcessDefinition, len(r.defs))}
	for k, v := range r.defs {
		cp.defs[k] = v
	}
	return cp
}
