// Package emit provides event emission and observability for simulation runs.
package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter implements Emitter by writing structured log output to a
// writer, in either human-readable text or JSON-lines form.
//
// Example text output:
//
//	[dispatch] runID=run-001 t=42 eventID=ev-7 processType=triage
//
// Example JSON output:
//
//	{"runID":"run-001","time":42,"eventID":"ev-7","processType":"triage","msg":"dispatch","meta":null}
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a new LogEmitter. A nil writer defaults to os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := json.Marshal(struct {
		RunID       string                 `json:"runID"`
		Time        int64                  `json:"time"`
		EventID     string                 `json:"eventID"`
		ProcessType string                 `json:"processType"`
		Msg         string                 `json:"msg"`
		Meta        map[string]interface{} `json:"meta"`
	}{
		RunID:       event.RunID,
		Time:        event.Time,
		EventID:     event.EventID,
		ProcessType: event.ProcessType,
		Msg:         event.Msg,
		Meta:        event.Meta,
	})
	if err != nil {
		_, _ = fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}
	_, _ = fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	_, _ = fmt.Fprintf(l.writer, "[%s] runID=%s t=%d eventID=%s processType=%s",
		event.Msg, event.RunID, event.Time, event.EventID, event.ProcessType)

	if len(event.Meta) > 0 {
		metaJSON, err := json.Marshal(event.Meta)
		if err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			_, _ = fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}

	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes every event in order. In text mode events are emitted one
// per line; in JSON mode as JSONL.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, event := range events {
		if l.jsonMode {
			l.emitJSON(event)
		} else {
			l.emitText(event)
		}
	}
	return nil
}

// Flush is a no-op: LogEmitter writes directly to its writer with no
// internal buffering. Wrap the writer in a bufio.Writer and flush that
// directly if buffering is needed.
func (l *LogEmitter) Flush(_ context.Context) error {
	return nil
}
