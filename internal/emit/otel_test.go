package emit

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOTelEmit(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTel(tp.Tracer("test"))
	emitter.Emit(Event{
		Component: "scheduler",
		MissionID: "msn-1",
		ActorID:   "wo-1",
		Msg:       "work_order_assigned",
		Meta:      map[string]any{"pilot_id": "viper-1"},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "work_order_assigned" {
		t.Errorf("span name = %q, want %q", span.Name, "work_order_assigned")
	}
	attrs := attributeMap(span.Attributes)
	if got := attrs["fleet.mission_id"]; got != "msn-1" {
		t.Errorf("mission_id = %v, want %q", got, "msn-1")
	}
	if got := attrs["fleet.actor_id"]; got != "wo-1" {
		t.Errorf("actor_id = %v, want %q", got, "wo-1")
	}
	if got := attrs["fleet.pilot_id"]; got != "viper-1" {
		t.Errorf("pilot_id = %v, want %q", got, "viper-1")
	}
	if !span.EndTime.After(span.StartTime) {
		t.Error("span was not ended")
	}
}

func TestOTelEmitWithError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTel(tp.Tracer("test"))
	emitter.Emit(Event{
		Component: "scheduler",
		ActorID:   "wo-1",
		Msg:       "work_order_failed",
		Meta:      map[string]any{"error": "build failed"},
	})

	span := exporter.GetSpans()[0]
	if span.Status.Code != codes.Error {
		t.Errorf("status code = %v, want %v", span.Status.Code, codes.Error)
	}
	if span.Status.Description != "build failed" {
		t.Errorf("status description = %q, want %q", span.Status.Description, "build failed")
	}
	if len(span.Events) == 0 {
		t.Error("expected a recorded error event")
	}
}

func TestOTelEmitBatch(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTel(tp.Tracer("test"))
	events := []Event{
		{Component: "scheduler", ActorID: "wo-1", Msg: "work_order_created"},
		{Component: "scheduler", ActorID: "wo-1", Msg: "work_order_assigned"},
		{Component: "pilot", ActorID: "viper-1", Msg: "pilot_registered"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 3 {
		t.Fatalf("expected 3 spans, got %d", len(spans))
	}
	want := []string{"work_order_created", "work_order_assigned", "pilot_registered"}
	for i, span := range spans {
		if span.Name != want[i] {
			t.Errorf("span[%d] name = %q, want %q", i, span.Name, want[i])
		}
	}
}

func TestOTelFlush(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	prior := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prior)

	emitter := NewOTel(tp.Tracer("test"))
	emitter.Emit(Event{Component: "scheduler", Msg: "work_order_created"})

	if err := emitter.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(exporter.GetSpans()) != 1 {
		t.Errorf("expected 1 span after flush, got %d", len(exporter.GetSpans()))
	}
}

func TestOTelMetadataTypes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	emitter := NewOTel(tp.Tracer("test"))
	emitter.Emit(Event{
		Component: "scheduler",
		Msg:       "test_types",
		Meta: map[string]any{
			"string_val": "hello",
			"int_val":    42,
			"bool_val":   true,
		},
	})

	attrs := attributeMap(exporter.GetSpans()[0].Attributes)
	if got := attrs["fleet.string_val"]; got != "hello" {
		t.Errorf("string_val = %v, want %q", got, "hello")
	}
	if got := attrs["fleet.int_val"]; got != int64(42) {
		t.Errorf("int_val = %v, want %d", got, 42)
	}
	if got := attrs["fleet.bool_val"]; got != true {
		t.Errorf("bool_val = %v, want %t", got, true)
	}
}

func attributeMap(attrs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}
