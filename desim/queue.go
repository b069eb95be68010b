package desim

import "context"

// Discipline is the dequeue order a Store applies uniformly to its buffer,
// getRequests, and putRequests.
type Discipline string

const (
	FIFO Discipline = "FIFO"
	LIFO Discipline = "LIFO"
)

// unlimited marks a Store with no capacity bound.
const unlimited = -1

// Store is a bounded rendezvous queue between producer and consumer
// events. At most one of Buffer, GetRequests, PutRequests is non-empty at a
// time in blocking mode; |Buffer| never exceeds Capacity.
type Store struct {
	ID          StoreID     `json:"id"`
	Capacity    int         `json:"capacity"` // unlimited (-1) means +Inf
	Blocking    bool        `json:"blocking"`
	Discipline  Discipline  `json:"discipline"`
	Buffer      []Event     `json:"buffer"`
	GetRequests []Event     `json:"getRequests"`
	PutRequests []Event     `json:"putRequests"`
}

// StoreSpec configures a new Store. Zero value yields the documented
// defaults: capacity 1, blocking, FIFO.
type StoreSpec struct {
	Capacity   int // 0 (unset) means the default of 1; Unbounded() (-1) means no bound
	Blocking   *bool
	Discipline Discipline
}

// Unbounded returns the capacity value meaning "no bound", for use in a
// StoreSpec.Capacity field.
func Unbounded() int { return unlimited }

// InitializeStore builds a Store from a spec, applying documented defaults.
func InitializeStore(id StoreID, spec StoreSpec) Store {
	capacity := spec.Capacity
	if capacity == 0 {
		capacity = 1
	}
	blocking := true
	if spec.Blocking != nil {
		blocking = *spec.Blocking
	}
	discipline := spec.Discipline
	if discipline == "" {
		discipline = FIFO
	}
	return Store{
		ID:         id,
		Capacity:   capacity,
		Blocking:   blocking,
		Discipline: discipline,
	}
}

// hasRoom reports whether a non-blocking put may append to the buffer.
func hasRoom(s Store) bool {
	return s.Capacity == unlimited || len(s.Buffer) < s.Capacity
}

func (s Store) clone() Store {
	out := s
	out.Buffer = append([]Event(nil), s.Buffer...)
	out.GetRequests = append([]Event(nil), s.GetRequests...)
	out.PutRequests = append([]Event(nil), s.PutRequests...)
	return out
}

// dequeue removes and returns one element per discipline: FIFO takes index
// 0 (oldest), LIFO takes the last index (newest).
func dequeue(items []Event, d Discipline) (Event, []Event, error) {
	switch d {
	case FIFO:
		return items[0], items[1:], nil
	case LIFO:
		last := len(items) - 1
		return items[last], items[:last], nil
	default:
		return Event{}, nil, ErrUnsupportedDiscipline
	}
}

// RendezvousOutcome is the result of a Get or Put operation: the event the
// caller should treat as its own continuation (Step), plus any other
// waiter that was unblocked as a side effect (Resume).
type RendezvousOutcome struct {
	Step   Event
	Resume []Event
}

// observeStoreWait records how long a just-woken waiter (parked at
// parkedAt) spent blocked on storeID, labeled by which operation it was
// parked under ("get" or "put"). No-op if the run has no Metrics attached.
func observeStoreWait(sim *Simulation, storeID StoreID, op string, parkedAt Timestamp) {
	if sim.Metrics == nil {
		return
	}
	sim.Metrics.ObserveStoreWait(sim.RunID, storeID, op, float64(sim.CurrentTime-parkedAt))
}

// Get attempts to take one item from storeID on behalf of event. It returns
// the caller's continuation event (either an immediately-firing event
// carrying the dequeued payload, or a Waiting placeholder if the store was
// empty) plus any producer that was unblocked.
func Get(ctx context.Context, sim *Simulation, event Event, storeID StoreID) (RendezvousOutcome, error) {
	st, ok := sim.Stores[storeID]
	if !ok {
		return RendezvousOutcome{}, ErrStoreNotFound
	}
	if st.Discipline != FIFO && st.Discipline != LIFO {
		return RendezvousOutcome{}, ErrUnsupportedDiscipline
	}

	if len(st.Buffer) > 0 {
		item, rest, err := dequeue(st.Buffer, st.Discipline)
		if err != nil {
			return RendezvousOutcome{}, err
		}
		if item.Process.Data == nil {
			return RendezvousOutcome{}, ErrMissingPayload
		}
		st.Buffer = rest
		sim.Stores[storeID] = st

		step := sim.newChildEvent(event, EventSpec{
			ScheduledAt: sim.CurrentTime,
			Process:     ProcessCall{Data: item.Process.Data},
		})
		return RendezvousOutcome{Step: step}, nil
	}

	if len(st.PutRequests) > 0 {
		waiter, rest, err := dequeue(st.PutRequests, st.Discipline)
		if err != nil {
			return RendezvousOutcome{}, err
		}
		if waiter.Process.Data == nil {
			return RendezvousOutcome{}, ErrMissingPayload
		}
		st.PutRequests = rest
		sim.Stores[storeID] = st
		sim.Timeline.finish(waiter.ID, sim.CurrentTime)
		observeStoreWait(sim, storeID, "put", waiter.ScheduledAt)

		step := sim.newChildEvent(event, EventSpec{
			ScheduledAt: sim.CurrentTime,
			Process:     ProcessCall{Data: waiter.Process.Data},
		})
		resume := sim.newChildEvent(waiter, EventSpec{
			ScheduledAt: sim.CurrentTime,
		})
		return RendezvousOutcome{Step: step, Resume: []Event{resume}}, nil
	}

	placeholder := sim.newChildEvent(event, EventSpec{
		ScheduledAt: sim.CurrentTime,
		Waiting:     true,
	})
	st.GetRequests = append(st.GetRequests, placeholder)
	sim.Stores[storeID] = st
	return RendezvousOutcome{Step: placeholder}, nil
}

// Both Get and Put return newly-minted events (Step, and any Resume) without
// inserting them into the Timeline: insertion is the dispatcher's job,
// uniformly for every event a step handler returns in its Next list (a
// Waiting Step/Resume is parked with no due time; anything else goes
// through the ordinary ScheduleEvent validation path). The one exception is
// an existing waiter being unblocked: that event already lives in the
// Timeline, so the rendezvous marks it Finished directly.

// Put attempts to hand payload to storeID on behalf of event, mirroring
// Get's three branches: wake a waiting consumer, buffer non-blocking, or
// park as a waiting producer.
func Put(ctx context.Context, sim *Simulation, event Event, storeID StoreID, payload StateData) (RendezvousOutcome, error) {
	st, ok := sim.Stores[storeID]
	if !ok {
		return RendezvousOutcome{}, ErrStoreNotFound
	}
	if st.Discipline != FIFO && st.Discipline != LIFO {
		return RendezvousOutcome{}, ErrUnsupportedDiscipline
	}

	if len(st.GetRequests) > 0 {
		waiter, rest, err := dequeue(st.GetRequests, st.Discipline)
		if err != nil {
			return RendezvousOutcome{}, err
		}
		st.GetRequests = rest
		sim.Stores[storeID] = st
		sim.Timeline.finish(waiter.ID, sim.CurrentTime)
		observeStoreWait(sim, storeID, "get", waiter.ScheduledAt)

		// Mirrors Get's matching branch: the caller's own continuation (Step)
		// carries no payload of its own, and the unblocked consumer (Resume)
		// receives payload in its continuation.
		step := sim.newChildEvent(event, EventSpec{ScheduledAt: sim.CurrentTime})
		resume := sim.newChildEvent(waiter, EventSpec{
			ScheduledAt: sim.CurrentTime,
			Process:     ProcessCall{Data: payload},
		})
		return RendezvousOutcome{Step: step, Resume: []Event{resume}}, nil
	}

	if !st.Blocking && hasRoom(st) {
		// The buffered record is a plain payload carrier: it never enters
		// the Timeline because it never fires on its own.
		buffered := sim.newChildEvent(event, EventSpec{
			ScheduledAt: sim.CurrentTime,
			Process:     ProcessCall{Data: payload},
		})
		st.Buffer = append(st.Buffer, buffered)
		sim.Stores[storeID] = st

		step := sim.newChildEvent(event, EventSpec{ScheduledAt: sim.CurrentTime})
		return RendezvousOutcome{Step: step}, nil
	}

	placeholder := sim.newChildEvent(event, EventSpec{
		ScheduledAt: sim.CurrentTime,
		Waiting:     true,
		Process:     ProcessCall{Data: payload},
	})
	st.PutRequests = append(st.PutRequests, placeholder)
	sim.Stores[storeID] = st
	return RendezvousOutcome{Step: placeholder}, nil
}
