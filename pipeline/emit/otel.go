package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each event into a zero-duration OpenTelemetry span,
// giving every executor invocation a point in a trace alongside whatever
// spans the surrounding application creates.
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter returns an OTelEmitter using tracer to start spans, e.g.
// otel.Tracer("contentflow").
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.EventType)
	defer span.End()

	span.SetAttributes(
		attribute.String("run_id", event.RunID),
		attribute.String("pipeline_name", event.PipelineName),
		attribute.String("executor_id", event.ExecutorID),
		attribute.String("content_id", event.ContentID),
	)
	for k, v := range event.Data {
		span.SetAttributes(attribute.String("data."+k, fmt.Sprint(v)))
	}
	if event.Err != nil {
		span.RecordError(event.Err)
		span.SetStatus(codes.Error, event.Err.Error())
	}
}

func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		o.Emit(e)
	}
	return nil
}

func (o *OTelEmitter) Flush(ctx context.Context) error { return nil }
