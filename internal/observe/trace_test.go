package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })
	return exp
}

func TestStartSpan(t *testing.T) {
	exp := withTestTracer(t)

	ctx, span := StartSpan(context.Background(), "resolve turn")
	if CorrelationID(ctx) == "" {
		t.Error("expected a trace ID inside the span")
	}
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "resolve turn" {
		t.Errorf("unexpected exported spans: %+v", spans)
	}
}

func TestCorrelationID_NoSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("expected empty correlation ID without a span, got %q", got)
	}
}

func TestLogger_EnrichedInsideSpan(t *testing.T) {
	withTestTracer(t)

	if Logger(context.Background()) == nil {
		t.Fatal("expected a logger without a span")
	}

	ctx, span := StartSpan(context.Background(), "chat")
	defer span.End()
	if Logger(ctx) == nil {
		t.Fatal("expected an enriched logger inside a span")
	}
}
