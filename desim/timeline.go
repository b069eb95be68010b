package desim

// Transition is one append-only audit-trail entry: event id moved to a new
// EventState at a given logical time.
type Transition struct {
	ID    EventID    `json:"id"`
	State EventState `json:"state"`
	At    Timestamp  `json:"at"`
}

// Timeline holds the three coordinated collections that make up a
// simulation's event history: the event records, their current status, and
// the append-only transition log. Every key in Status has a matching entry
// in Events, and the last Transition for any id equals its current Status.
type Timeline struct {
	Events      map[EventID]Event      `json:"events"`
	Status      map[EventID]EventState `json:"status"`
	Transitions []Transition           `json:"transitions"`
}

// newTimeline returns an empty, initialized Timeline.
func newTimeline() Timeline {
	return Timeline{
		Events: make(map[EventID]Event),
		Status: make(map[EventID]EventState),
	}
}

// clone returns a deep-enough copy so mutating the result never affects the
// source: Events/Status maps and the Transitions slice are copied.
func (t Timeline) clone() Timeline {
	out := Timeline{
		Events:      make(map[EventID]Event, len(t.Events)),
		Status:      make(map[EventID]EventState, len(t.Status)),
		Transitions: make([]Transition, len(t.Transitions)),
	}
	for k, v := range t.Events {
		out.Events[k] = v
	}
	for k, v := range t.Status {
		out.Status[k] = v
	}
	copy(out.Transitions, t.Transitions)
	return out
}

// insert adds a new event with the given initial status and records the
// corresponding transition.
func (t *Timeline) insert(ev Event, status EventState) {
	t.Events[ev.ID] = ev
	t.Status[ev.ID] = status
	t.Transitions = append(t.Transitions, Transition{ID: ev.ID, State: status, At: t.currentStatusTime(ev, status)})
}

// currentStatusTime picks the timestamp to stamp a transition with: waiting
// placeholders are stamped at their ScheduledAt (the time they were parked),
// everything else likewise uses ScheduledAt since the clock only advances to
// an event's own ScheduledAt when it fires.
func (t *Timeline) currentStatusTime(ev Event, status EventState) Timestamp {
	if status == Finished && ev.FinishedAt != nil {
		return *ev.FinishedAt
	}
	return ev.ScheduledAt
}

// transition moves an existing event to a new status, recording both the
// status map update and the audit-trail entry. Use finish for the Finished
// case since that also needs to stamp FinishedAt on the Event record.
func (t *Timeline) transition(id EventID, status EventState, at Timestamp) {
	t.Status[id] = status
	t.Transitions = append(t.Transitions, Transition{ID: id, State: status, At: at})
}

// finish marks an event Finished, stamping FinishedAt and appending the
// transition record.
func (t *Timeline) finish(id EventID, at Timestamp) {
	ev := t.Events[id]
	ev.FinishedAt = &at
	t.Events[id] = ev
	t.transition(id, Finished, at)
}
