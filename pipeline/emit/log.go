package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes events to a writer, either as human-readable text or as
// newline-delimited JSON.
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter returns a LogEmitter writing to writer (os.Stdout if nil).
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		l.emitJSON(event)
		return
	}
	l.emitText(event)
}

func (l *LogEmitter) emitJSON(event Event) {
	payload := map[string]any{
		"run_id":        event.RunID,
		"pipeline_name": event.PipelineName,
		"executor_id":   event.ExecutorID,
		"event_type":    event.EventType,
		"content_id":    event.ContentID,
		"data":          event.Data,
		"timestamp":     event.Timestamp,
	}
	if event.Err != nil {
		payload["error"] = event.Err.Error()
	}
	b, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(l.writer, `{"event_type":"emit_error","error":%q}`+"\n", err.Error())
		return
	}
	fmt.Fprintln(l.writer, string(b))
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s] run=%s executor=%s content=%s", event.EventType, event.RunID, event.ExecutorID, event.ContentID)
	if event.Err != nil {
		fmt.Fprintf(l.writer, " error=%q", event.Err.Error())
	}
	if len(event.Data) > 0 {
		if b, err := json.Marshal(event.Data); err == nil {
			fmt.Fprintf(l.writer, " data=%s", string(b))
		}
	}
	fmt.Fprintln(l.writer)
}

func (l *LogEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		l.Emit(e)
	}
	return nil
}

func (l *LogEmitter) Flush(ctx context.Context) error { return nil }
