package desim

import (
	"errors"
	"testing"
)

func TestPastScheduleError_Message(t *testing.T) {
	err := &PastScheduleError{CurrentTime: 10, ScheduledAt: 5, EventID: "ev-1"}
	msg := err.Error()
	if msg == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestCheckpointIOError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &CheckpointIOError{Op: "write", Path: "runs/x/run.json", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to match the wrapped Cause via Unwrap")
	}
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrUnknownProcessType,
		ErrUnknownStep,
		ErrStoreNotFound,
		ErrMissingPayload,
		ErrUnsupportedDiscipline,
		ErrNoProgress,
		ErrCorruptCheckpoint,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %d unexpectedly matches sentinel %d", i, j)
			}
		}
	}
}
