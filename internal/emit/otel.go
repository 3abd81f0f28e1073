package emit

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTel implements Emitter by creating an OpenTelemetry span per event.
// Events represent points in time, so each span is started and ended
// immediately rather than left open across an operation.
type OTel struct {
	tracer trace.Tracer
}

func NewOTel(tracer trace.Tracer) *OTel {
	return &OTel{tracer: tracer}
}

func (o *OTel) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()
	o.annotate(span, event)
}

func (o *OTel) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, event.Msg)
		o.annotate(span, event)
		span.End()
	}
	return nil
}

func (o *OTel) Flush(ctx context.Context) error {
	type flusher interface{ ForceFlush(context.Context) error }
	if f, ok := otel.GetTracerProvider().(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}

func (o *OTel) annotate(span trace.Span, event Event) {
	span.SetAttributes(
		attribute.String("fleet.component", event.Component),
		attribute.String("fleet.mission_id", event.MissionID),
		attribute.String("fleet.actor_id", event.ActorID),
	)
	for key, value := range event.Meta {
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String("fleet."+key, v))
		case int:
			span.SetAttributes(attribute.Int("fleet."+key, v))
		case int64:
			span.SetAttributes(attribute.Int64("fleet."+key, v))
		case float64:
			span.SetAttributes(attribute.Float64("fleet."+key, v))
		case bool:
			span.SetAttributes(attribute.Bool("fleet."+key, v))
		case time.Duration:
			span.SetAttributes(attribute.Int64("fleet."+key+"_ms", int64(v/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String("fleet."+key, fmt.Sprintf("%v", v)))
		}
	}
	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}
