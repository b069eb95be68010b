package desim

import "github.com/google/uuid"

// Simulation is the full state of a run at a point in logical time: the
// clock, the event timeline, every live process's state, every registered
// store, and the process registry. Between steps a Simulation is treated as
// immutable; Dispatch (see scheduler.go) takes one by value-ish clone and
// returns the successor, which is what makes delta computation possible.
type Simulation struct {
	CurrentTime Timestamp                `json:"currentTime"`
	Timeline    Timeline                 `json:"timeline"`
	State       map[EventID]ProcessState `json:"state"`
	Stores      map[StoreID]Store        `json:"stores"`

	// Registry is deliberately excluded from serialization: step handlers
	// are executable code and cannot be persisted portably. A loaded
	// Simulation must have a registry re-attached by the caller before it
	// can resume dispatch; see Design Notes on persistence of handler code.
	Registry *Registry `json:"-"`

	// Metrics and RunID are, like Registry, run-local instrumentation
	// plumbing rather than simulation state, and excluded from
	// serialization for the same reason. RunSimulationWithDeltas attaches
	// them once before the run loop starts if RunOptions.Metrics is set;
	// Get/Put read them to record store_wait_seconds.
	Metrics *Metrics `json:"-"`
	RunID   string   `json:"-"`

	seq uint64 // count of ids minted by nextEventID; the scheduler's tiebreak does not read it
}

// WithRegistry returns a shallow copy of s with its Registry replaced. Used
// after loading a checkpoint (whose JSON carries no handler code) to
// re-associate process definitions before resuming dispatch.
func (s *Simulation) WithRegistry(r *Registry) *Simulation {
	out := *s
	out.Registry = r
	return &out
}

// InitializeSimulation returns an empty Simulation at time 0 with a fresh
// registry (pre-seeded with NoneProcessType) and no stores.
func InitializeSimulation() *Simulation {
	return &Simulation{
		CurrentTime: 0,
		Timeline:    newTimeline(),
		State:       make(map[EventID]ProcessState),
		Stores:      make(map[StoreID]Store),
		Registry:    NewRegistry(),
	}
}

// RegisterProcess installs a ProcessDefinition into the simulation's
// registry. Registering an existing type replaces it (last-writer-wins).
func (s *Simulation) RegisterProcess(def ProcessDefinition) {
	s.Registry.Register(def)
}

// RegisterStore adds a Store to the simulation, keyed by its ID.
func (s *Simulation) RegisterStore(store Store) {
	s.Stores[store.ID] = store
}

// NewStoreID mints a fresh, opaque store identifier.
func NewStoreID() StoreID { return StoreID(uuid.NewString()) }

// NewEventID mints a fresh, opaque event identifier.
func NewEventID() EventID { return EventID(uuid.NewString()) }

// nextEventID is the in-step id source; kept as a method so future
// implementations could swap in a deterministic sequence keyed off seq
// without touching call sites.
func (s *Simulation) nextEventID() EventID {
	s.seq++
	return NewEventID()
}

// newChildEvent builds (but does not schedule or insert) an Event whose
// Parent is parent.ID. ScheduledAt, Priority, Waiting and Process are taken
// from spec as given; a zero ScheduledAt is not replaced by the current time.
func (s *Simulation) newChildEvent(parent Event, spec EventSpec) Event {
	id := parent.ID
	return Event{
		ID:          s.nextEventID(),
		Parent:      &id,
		ScheduledAt: spec.ScheduledAt,
		Priority:    spec.Priority,
		WaitingFlag: spec.Waiting,
		Process:     spec.Process,
	}
}

// CreateEvent mints a brand-new Event (no automatic parent) from a spec.
// It does not schedule the event; call ScheduleEvent (or let the
// dispatcher do so via a step handler's Next list) to make it live.
func CreateEvent(spec EventSpec) Event {
	return Event{
		ID:          NewEventID(),
		Parent:      spec.Parent,
		ScheduledAt: spec.ScheduledAt,
		Priority:    spec.Priority,
		WaitingFlag: spec.Waiting,
		Process:     spec.Process,
	}
}

// ScheduleEvent inserts ev into the simulation's timeline as Scheduled
// (or Waiting, if ev.Waiting() is set). It fails with *PastScheduleError if
// ev.ScheduledAt is strictly before the current time; Waiting placeholders
// carrying the current time satisfy this trivially.
func (s *Simulation) ScheduleEvent(ev Event) error {
	if ev.ScheduledAt < s.CurrentTime {
		return &PastScheduleError{CurrentTime: s.CurrentTime, ScheduledAt: ev.ScheduledAt, EventID: ev.ID}
	}
	status := Scheduled
	if ev.Waiting() {
		status = Waiting
	}
	s.Timeline.insert(ev, status)
	return nil
}

// clone returns a successor snapshot: every field that dispatch may mutate
// is deep-enough copied so the original sim value remains usable for delta
// computation against the result.
func (s *Simulation) clone() *Simulation {
	out := &Simulation{
		CurrentTime: s.CurrentTime,
		Timeline:    s.Timeline.clone(),
		State:       make(map[EventID]ProcessState, len(s.State)),
		Stores:      make(map[StoreID]Store, len(s.Stores)),
		Registry:    s.Registry.clone(),
		Metrics:     s.Metrics,
		RunID:       s.RunID,
		seq:         s.seq,
	}
	for k, v := range s.State {
		out.State[k] = v
	}
	for k, v := range s.Stores {
		out.Stores[k] = v.clone()
	}
	return out
}
