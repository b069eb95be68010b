package desim

import (
	"container/heap"
	"context"
)

// dueItem is one Scheduled event as tracked by the selection heap: its
// sort key is (ScheduledAt, Priority, seq), seq being the insertion-order
// tiebreaker recommended by the spec for otherwise-equal keys.
type dueItem struct {
	id       EventID
	at       Timestamp
	priority int
	seq      uint64
}

// dueHeap is a min-heap over dueItem ordered lexicographically by
// (at, priority, seq), giving the scheduler's selection rule: earliest
// time first, lower priority numbers first at equal time, insertion order
// as the final, deterministic tiebreaker.
type dueHeap []dueItem

func (h dueHeap) Len() int { return len(h) }
func (h dueHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h dueHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *dueHeap) Push(x any)        { *h = append(*h, x.(dueItem)) }
func (h *dueHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// buildDueHeap scans the timeline for every Scheduled event and returns a
// heap ready for repeated popping. Rebuilding per dispatch keeps the
// Simulation snapshot free of scheduler-only bookkeeping, at the cost of an
// O(n) scan; runs large enough to care should keep a persistent heap
// alongside the snapshot instead.
func buildDueHeap(sim *Simulation) *dueHeap {
	h := make(dueHeap, 0, len(sim.Timeline.Status))
	for id, status := range sim.Timeline.Status {
		if status != Scheduled {
			continue
		}
		ev := sim.Timeline.Events[id]
		h = append(h, dueItem{id: id, at: ev.ScheduledAt, priority: ev.Priority, seq: eventSeq(sim, id)})
	}
	heap.Init(&h)
	return &h
}

// eventSeq recovers an insertion-order key for tiebreaking. Transitions are
// append-only, so an event's first ("Scheduled" or "Waiting") transition
// index is a stable proxy for when it was created.
func eventSeq(sim *Simulation, id EventID) uint64 {
	for i, tr := range sim.Timeline.Transitions {
		if tr.ID == id {
			return uint64(i)
		}
	}
	return ^uint64(0)
}

// SelectNext returns the id of the next event due to fire, per the
// selection rule: smallest (scheduledAt, priority) among Scheduled events,
// insertion order breaking remaining ties. ok is false if none remain.
func SelectNext(sim *Simulation) (EventID, bool) {
	h := buildDueHeap(sim)
	if h.Len() == 0 {
		return "", false
	}
	return (*h)[0].id, true
}

// resolveStartState implements the inheritance rule (spec 4.1): pick the
// ProcessState a firing event should start from, given any state already
// stored under its own id, its parent's state (if any), and the process
// registry's initial step.
func resolveStartState(sim *Simulation, ev Event) (ProcessState, error) {
	if existing, ok := sim.State[ev.ID]; ok {
		// continuation: resume stored state, shallow-merge incoming data over it.
		return ProcessState{
			Type: existing.Type,
			Step: existing.Step,
			Data: mergeData(existing.Data, ev.Process.Data),
		}, nil
	}

	processType := ev.Process.Type
	if processType == "" {
		processType = NoneProcessType
	}

	if ev.Parent != nil {
		if parentState, ok := sim.State[*ev.Parent]; ok {
			if ev.Process.InheritStep && parentState.Type == processType {
				// fork: same process, same step, child's data layered on top.
				return ProcessState{
					Type: parentState.Type,
					Step: parentState.Step,
					Data: mergeData(parentState.Data, ev.Process.Data),
				}, nil
			}
			// exec: new process, starts at its own initial step, inherits
			// the parent's data underneath the event's own data.
			def, err := sim.Registry.Lookup(processType)
			if err != nil {
				return ProcessState{}, err
			}
			return ProcessState{
				Type: processType,
				Step: def.Initial,
				Data: mergeData(parentState.Data, ev.Process.Data),
			}, nil
		}
		// Parent reference is dangling (pruned, or never had stored state):
		// fall back to the brand-new branch below, per the design note that
		// the scheduler must tolerate dangling parents without panicking.
	}

	// execve: brand-new process, only the event's own data.
	def, err := sim.Registry.Lookup(processType)
	if err != nil {
		return ProcessState{}, err
	}
	return ProcessState{Type: processType, Step: def.Initial, Data: ev.Process.Data}, nil
}

// DispatchResult reports what happened when Dispatch fired one event.
type DispatchResult struct {
	Fired EventID
	Next  *Simulation
	More  bool
}

// Dispatch pops and fires the single next-due event against sim, returning
// the successor Simulation. It never mutates sim itself. If no Scheduled
// event remains, More is false and Next equals sim unchanged.
func Dispatch(ctx context.Context, sim *Simulation) (DispatchResult, error) {
	id, ok := SelectNext(sim)
	if !ok {
		return DispatchResult{Next: sim, More: false}, nil
	}

	next := sim.clone()
	ev := next.Timeline.Events[id]
	next.CurrentTime = ev.ScheduledAt

	state, err := resolveStartState(next, ev)
	if err != nil {
		return DispatchResult{}, err
	}

	def, err := next.Registry.Lookup(state.Type)
	if err != nil {
		return DispatchResult{}, err
	}
	handler, err := def.step(state.Step)
	if err != nil {
		return DispatchResult{}, err
	}

	result, err := handler(ctx, next, ev, state)
	if err != nil {
		return DispatchResult{}, err
	}

	next.Timeline.finish(ev.ID, next.CurrentTime)
	next.State[ev.ID] = result.State

	for _, n := range result.Next {
		if n.Waiting() {
			next.Timeline.insert(n, Waiting)
			continue
		}
		if err := next.ScheduleEvent(n); err != nil {
			return DispatchResult{}, err
		}
	}

	_, more := SelectNext(next)
	return DispatchResult{Fired: ev.ID, Next: next, More: more}, nil
}
