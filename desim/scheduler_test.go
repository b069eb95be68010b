package desim

import (
	"context"
	"testing"
)

func echoDefinition(pt ProcessType) ProcessDefinition {
	return ProcessDefinition{
		Type:    pt,
		Initial: "run",
		Steps: map[StepName]StepHandler{
			"run": func(_ context.Context, _ *Simulation, _ Event, state ProcessState) (StepResult, error) {
				return StepResult{State: state}, nil
			},
		},
	}
}

// TestSelectNext_PriorityOrdering exercises S1: among events due at the same
// time, the lower priority number fires first.
func TestSelectNext_PriorityOrdering(t *testing.T) {
	sim := InitializeSimulation()
	low := CreateEvent(EventSpec{ScheduledAt: 5, Priority: 10})
	high := CreateEvent(EventSpec{ScheduledAt: 5, Priority: 1})
	later := CreateEvent(EventSpec{ScheduledAt: 6, Priority: 0})

	for _, ev := range []Event{low, high, later} {
		if err := sim.ScheduleEvent(ev); err != nil {
			t.Fatalf("ScheduleEvent error: %v", err)
		}
	}

	id, ok := SelectNext(sim)
	if !ok {
		t.Fatal("expected a selectable event")
	}
	if id != high.ID {
		t.Errorf("SelectNext = %v, want the higher-priority (lower number) event at the earliest time", id)
	}
}

func TestSelectNext_InsertionOrderTiebreak(t *testing.T) {
	sim := InitializeSimulation()
	first := CreateEvent(EventSpec{ScheduledAt: 1, Priority: 1})
	second := CreateEvent(EventSpec{ScheduledAt: 1, Priority: 1})

	if err := sim.ScheduleEvent(first); err != nil {
		t.Fatal(err)
	}
	if err := sim.ScheduleEvent(second); err != nil {
		t.Fatal(err)
	}

	id, ok := SelectNext(sim)
	if !ok || id != first.ID {
		t.Errorf("SelectNext = %v, ok=%v, want %v first (insertion order tiebreak)", id, ok, first.ID)
	}
}

func TestSelectNext_NoneRemaining(t *testing.T) {
	sim := InitializeSimulation()
	if _, ok := SelectNext(sim); ok {
		t.Error("expected ok=false on an empty timeline")
	}
}

// TestScheduleEvent_PastScheduleRejected exercises S4: scheduling an event
// strictly before the current time fails.
func TestScheduleEvent_PastScheduleRejected(t *testing.T) {
	sim := InitializeSimulation()
	sim.CurrentTime = 10

	ev := CreateEvent(EventSpec{ScheduledAt: 5})
	err := sim.ScheduleEvent(ev)
	if err == nil {
		t.Fatal("expected an error scheduling an event before the current time")
	}
	pastErr, ok := err.(*PastScheduleError)
	if !ok {
		t.Fatalf("error type = %T, want *PastScheduleError", err)
	}
	if pastErr.CurrentTime != 10 || pastErr.ScheduledAt != 5 {
		t.Errorf("PastScheduleError = %+v, want CurrentTime=10 ScheduledAt=5", pastErr)
	}
}

func TestScheduleEvent_AtCurrentTimeAllowed(t *testing.T) {
	sim := InitializeSimulation()
	sim.CurrentTime = 10
	ev := CreateEvent(EventSpec{ScheduledAt: 10})
	if err := sim.ScheduleEvent(ev); err != nil {
		t.Errorf("scheduling at exactly the current time should be allowed: %v", err)
	}
}

func TestDispatch_NoEventsLeavesSimUnchanged(t *testing.T) {
	sim := InitializeSimulation()
	result, err := Dispatch(context.Background(), sim)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if result.More {
		t.Error("expected More=false with no scheduled events")
	}
	if result.Next != sim {
		t.Error("expected Next to alias sim unchanged when nothing fires")
	}
}

func TestDispatch_ExecveFreshProcess(t *testing.T) {
	sim := InitializeSimulation()
	sim.RegisterProcess(echoDefinition("widget"))

	ev := CreateEvent(EventSpec{ScheduledAt: 0, Process: ProcessCall{Type: "widget", Data: StateData{"v": 1}}})
	if err := sim.ScheduleEvent(ev); err != nil {
		t.Fatal(err)
	}

	result, err := Dispatch(context.Background(), sim)
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	state := result.Next.State[ev.ID]
	if state.Type != "widget" {
		t.Errorf("Type = %q, want widget", state.Type)
	}
	if state.Step != "run" {
		t.Errorf("Step = %q, want run (the process's initial step)", state.Step)
	}
	if state.Data["v"] != 1 {
		t.Errorf("Data[v] = %v, want 1", state.Data["v"])
	}
	if sim.Timeline.Status[ev.ID] == Finished {
		t.Error("Dispatch must not mutate the input sim")
	}
	if result.Next.Timeline.Status[ev.ID] != Finished {
		t.Error("expected the fired event to be Finished in the successor snapshot")
	}
}

func TestDispatch_ForkInheritsParentStep(t *testing.T) {
	sim := InitializeSimulation()
	sim.RegisterProcess(ProcessDefinition{
		Type:    "worker",
		Initial: "start",
		Steps: map[StepName]StepHandler{
			"start": func(_ context.Context, s *Simulation, ev Event, state ProcessState) (StepResult, error) {
				child := s.newChildEvent(ev, EventSpec{
					ScheduledAt: s.CurrentTime + 1,
					Process:     ProcessCall{Type: "worker", InheritStep: true},
				})
				return StepResult{State: ProcessState{Type: "worker", Step: "mid"}, Next: []Event{child}}, nil
			},
			"mid": func(_ context.Context, _ *Simulation, _ Event, state ProcessState) (StepResult, error) {
				return StepResult{State: state}, nil
			},
		},
	})

	parent := CreateEvent(EventSpec{ScheduledAt: 0, Process: ProcessCall{Type: "worker"}})
	if err := sim.ScheduleEvent(parent); err != nil {
		t.Fatal(err)
	}

	first, err := Dispatch(context.Background(), sim)
	if err != nil {
		t.Fatalf("first Dispatch error: %v", err)
	}

	second, err := Dispatch(context.Background(), first.Next)
	if err != nil {
		t.Fatalf("second Dispatch error: %v", err)
	}

	childID := second.Fired
	childState := second.Next.State[childID]
	if childState.Step != "mid" {
		t.Errorf("forked child Step = %q, want it to resume the parent's current step (mid)", childState.Step)
	}
}

func TestResolveStartState_Continuation(t *testing.T) {
	sim := InitializeSimulation()
	id := EventID("e1")
	sim.State[id] = ProcessState{Type: "x", Step: "two", Data: StateData{"a": 1}}

	ev := Event{ID: id, Process: ProcessCall{Data: StateData{"b": 2}}}
	state, err := resolveStartState(sim, ev)
	if err != nil {
		t.Fatalf("resolveStartState error: %v", err)
	}
	if state.Step != "two" {
		t.Errorf("Step = %q, want two (resumed from stored state)", state.Step)
	}
	if state.Data["a"] != 1 || state.Data["b"] != 2 {
		t.Errorf("Data = %v, want merged a=1 b=2", state.Data)
	}
}

func TestResolveStartState_ExecNewProcessType(t *testing.T) {
	sim := InitializeSimulation()
	sim.RegisterProcess(echoDefinition("child-type"))

	parentID := EventID("parent")
	sim.State[parentID] = ProcessState{Type: "parent-type", Data: StateData{"inherited": true}}

	ev := Event{
		ID:     "child",
		Parent: &parentID,
		Process: ProcessCall{
			Type:        "child-type",
			InheritStep: false,
			Data:        StateData{"own": true},
		},
	}
	state, err := resolveStartState(sim, ev)
	if err != nil {
		t.Fatalf("resolveStartState error: %v", err)
	}
	if state.Type != "child-type" {
		t.Errorf("Type = %q, want child-type (exec to new process type)", state.Type)
	}
	if state.Step != "run" {
		t.Errorf("Step = %q, want the new process's initial step", state.Step)
	}
	if state.Data["inherited"] != true || state.Data["own"] != true {
		t.Errorf("Data = %v, want both inherited and own keys present", state.Data)
	}
}

func TestResolveStartState_DanglingParentFallsBackToExecve(t *testing.T) {
	sim := InitializeSimulation()
	sim.RegisterProcess(echoDefinition("orphan-type"))

	missingParent := EventID("gone")
	ev := Event{
		ID:      "child",
		Parent:  &missingParent,
		Process: ProcessCall{Type: "orphan-type", Data: StateData{"x": 1}},
	}
	state, err := resolveStartState(sim, ev)
	if err != nil {
		t.Fatalf("resolveStartState error: %v", err)
	}
	if state.Type != "orphan-type" || state.Step != "run" {
		t.Errorf("state = %+v, want a fresh execve of orphan-type at its initial step", state)
	}
	if state.Data["x"] != 1 {
		t.Errorf("Data = %v, want x=1", state.Data)
	}
}

func TestResolveStartState_UnknownProcessType(t *testing.T) {
	sim := InitializeSimulation()
	ev := Event{ID: "e1", Process: ProcessCall{Type: "nonexistent"}}
	if _, err := resolveStartState(sim, ev); err != ErrUnknownProcessType {
		t.Errorf("err = %v, want ErrUnknownProcessType", err)
	}
}
