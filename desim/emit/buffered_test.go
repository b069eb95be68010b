// Package emit provides event emission and observability for simulation runs.
package emit

import (
	"testing"
	"time"
)

func TestBufferedEmitter_StoresEvents(t *testing.T) {
	t.Run("stores single event", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		event := Event{
			RunID:       "run-001",
			Time:        1,
			ProcessType: "patient",
			Msg:         "dispatch",
		}

		emitter.Emit(event)

		history := emitter.GetHistory("run-001")
		if len(history) != 1 {
			t.Fatalf("expected 1 event, got %d", len(history))
		}
		if history[0].ProcessType != "patient" {
			t.Errorf("expected ProcessType = 'patient', got %q", history[0].ProcessType)
		}
	})

	t.Run("stores multiple events", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", Time: 0, ProcessType: "patient", Msg: "dispatch"},
			{RunID: "run-001", Time: 0, ProcessType: "patient", Msg: "store_wait"},
			{RunID: "run-001", Time: 1, ProcessType: "doctor", Msg: "dispatch"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		history := emitter.GetHistory("run-001")
		if len(history) != 3 {
			t.Fatalf("expected 3 events, got %d", len(history))
		}
	})

	t.Run("isolates events by runID", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		emitter.Emit(Event{RunID: "run-001", Msg: "event1"})
		emitter.Emit(Event{RunID: "run-002", Msg: "event2"})
		emitter.Emit(Event{RunID: "run-001", Msg: "event3"})

		history1 := emitter.GetHistory("run-001")
		history2 := emitter.GetHistory("run-002")

		if len(history1) != 2 {
			t.Errorf("expected 2 events for run-001, got %d", len(history1))
		}
		if len(history2) != 1 {
			t.Errorf("expected 1 event for run-002, got %d", len(history2))
		}
	})

	t.Run("returns empty slice for unknown runID", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		history := emitter.GetHistory("unknown-run")
		if history == nil {
			t.Error("expected empty slice, got nil")
		}
		if len(history) != 0 {
			t.Errorf("expected 0 events, got %d", len(history))
		}
	})
}

func TestBufferedEmitter_GetHistoryWithFilter(t *testing.T) {
	t.Run("filters by processType", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", ProcessType: "patient", Msg: "event1"},
			{RunID: "run-001", ProcessType: "doctor", Msg: "event2"},
			{RunID: "run-001", ProcessType: "patient", Msg: "event3"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		filter := HistoryFilter{ProcessType: "patient"}
		history := emitter.GetHistoryWithFilter("run-001", filter)

		if len(history) != 2 {
			t.Fatalf("expected 2 events, got %d", len(history))
		}
		for _, event := range history {
			if event.ProcessType != "patient" {
				t.Errorf("expected ProcessType = 'patient', got %q", event.ProcessType)
			}
		}
	})

	t.Run("filters by message", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", Msg: "dispatch"},
			{RunID: "run-001", Msg: "checkpoint_dump"},
			{RunID: "run-001", Msg: "dispatch"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		filter := HistoryFilter{Msg: "dispatch"}
		history := emitter.GetHistoryWithFilter("run-001", filter)

		if len(history) != 2 {
			t.Fatalf("expected 2 events, got %d", len(history))
		}
		for _, event := range history {
			if event.Msg != "dispatch" {
				t.Errorf("expected Msg = 'dispatch', got %q", event.Msg)
			}
		}
	})

	t.Run("filters by time range", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", Time: 0, Msg: "event0"},
			{RunID: "run-001", Time: 1, Msg: "event1"},
			{RunID: "run-001", Time: 2, Msg: "event2"},
			{RunID: "run-001", Time: 3, Msg: "event3"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		minTime := int64(1)
		maxTime := int64(2)
		filter := HistoryFilter{MinTime: &minTime, MaxTime: &maxTime}
		history := emitter.GetHistoryWithFilter("run-001", filter)

		if len(history) != 2 {
			t.Fatalf("expected 2 events, got %d", len(history))
		}
		if history[0].Time != 1 || history[1].Time != 2 {
			t.Error("expected times 1 and 2")
		}
	})

	t.Run("combines multiple filters", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", Time: 1, ProcessType: "patient", Msg: "dispatch"},
			{RunID: "run-001", Time: 1, ProcessType: "doctor", Msg: "dispatch"},
			{RunID: "run-001", Time: 2, ProcessType: "patient", Msg: "dispatch"},
			{RunID: "run-001", Time: 1, ProcessType: "patient", Msg: "checkpoint_dump"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		at := int64(1)
		filter := HistoryFilter{
			ProcessType: "patient",
			Msg:         "dispatch",
			MinTime:     &at,
			MaxTime:     &at,
		}
		history := emitter.GetHistoryWithFilter("run-001", filter)

		if len(history) != 1 {
			t.Fatalf("expected 1 event, got %d", len(history))
		}
		if history[0].Time != 1 || history[0].ProcessType != "patient" || history[0].Msg != "dispatch" {
			t.Error("expected event with time=1, processType=patient, msg=dispatch")
		}
	})

	t.Run("empty filter returns all events", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		events := []Event{
			{RunID: "run-001", Msg: "event1"},
			{RunID: "run-001", Msg: "event2"},
			{RunID: "run-001", Msg: "event3"},
		}

		for _, event := range events {
			emitter.Emit(event)
		}

		filter := HistoryFilter{}
		history := emitter.GetHistoryWithFilter("run-001", filter)

		if len(history) != 3 {
			t.Fatalf("expected 3 events, got %d", len(history))
		}
	})
}

func TestBufferedEmitter_Clear(t *testing.T) {
	t.Run("clears all events for runID", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		emitter.Emit(Event{RunID: "run-001", Msg: "event1"})
		emitter.Emit(Event{RunID: "run-002", Msg: "event2"})

		emitter.Clear("run-001")

		history1 := emitter.GetHistory("run-001")
		history2 := emitter.GetHistory("run-002")

		if len(history1) != 0 {
			t.Errorf("expected 0 events for run-001, got %d", len(history1))
		}
		if len(history2) != 1 {
			t.Errorf("expected 1 event for run-002, got %d", len(history2))
		}
	})

	t.Run("clears all events when runID is empty", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		emitter.Emit(Event{RunID: "run-001", Msg: "event1"})
		emitter.Emit(Event{RunID: "run-002", Msg: "event2"})

		emitter.Clear("")

		history1 := emitter.GetHistory("run-001")
		history2 := emitter.GetHistory("run-002")

		if len(history1) != 0 || len(history2) != 0 {
			t.Error("expected all events to be cleared")
		}
	})
}

func TestBufferedEmitter_ThreadSafety(t *testing.T) {
	t.Run("concurrent emit and read", func(t *testing.T) {
		emitter := NewBufferedEmitter()

		done := make(chan bool)
		for i := 0; i < 10; i++ {
			go func(_ int) {
				for j := 0; j < 100; j++ {
					emitter.Emit(Event{
						RunID: "run-001",
						Time:  int64(j),
						Msg:   "concurrent_event",
					})
				}
				done <- true
			}(i)
		}

		readDone := make(chan bool)
		go func() {
			for i := 0; i < 100; i++ {
				emitter.GetHistory("run-001")
				time.Sleep(1 * time.Millisecond)
			}
			readDone <- true
		}()

		for i := 0; i < 10; i++ {
			<-done
		}
		<-readDone

		history := emitter.GetHistory("run-001")
		if len(history) != 1000 {
			t.Errorf("expected 1000 events, got %d", len(history))
		}
	})
}

func TestBufferedEmitter_InterfaceContract(_ *testing.T) {
	var _ Emitter = NewBufferedEmitter()
}
