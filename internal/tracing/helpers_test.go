package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs a recording provider for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return recorder
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for _, a := range attrs {
		out[string(a.Key)] = a.Value.Emit()
	}
	return out
}

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
		wantName  string
	}{
		{"query items", "media_items", DBOperationQuery, "query media_items"},
		{"upsert item", "media_items", DBOperationInsert, "insert media_items"},
		{"replace edges", "similar_items", DBOperationExec, "exec similar_items"},
		{"no table", "", DBOperationQuery, "query"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := recordSpans(t)

			_, endSpan := StartDBSpan(context.Background(), tt.table, tt.operation)
			endSpan(nil)

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]
			if span.Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", span.Name(), tt.wantName)
			}
			if span.InstrumentationScope().Name != DBTracerName {
				t.Errorf("scope = %q, want %q", span.InstrumentationScope().Name, DBTracerName)
			}
			attrs := attrMap(span.Attributes())
			if attrs["db.system"] != "postgresql" || attrs["db.operation"] != string(tt.operation) {
				t.Errorf("unexpected attributes %v", attrs)
			}
			if _, ok := attrs["db.sql.table"]; ok != (tt.table != "") {
				t.Errorf("db.sql.table presence = %v for table %q", ok, tt.table)
			}
		})
	}
}

func TestStartSpan(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
	}{
		{"success", nil, codes.Unset},
		{"failure", errors.New("vector index unavailable"), codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := recordSpans(t)

			_, endSpan := StartSpan(context.Background(), "ranking.search", attribute.Int("limit", 10))
			endSpan(tt.err)

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]
			if span.Name() != "ranking.search" || span.InstrumentationScope().Name != TracerName {
				t.Errorf("unexpected span %q scope %q", span.Name(), span.InstrumentationScope().Name)
			}
			if attrMap(span.Attributes())["limit"] != "10" {
				t.Errorf("missing limit attribute: %v", span.Attributes())
			}
			if span.Status().Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", span.Status().Code, tt.wantStatus)
			}
			if tt.err != nil && len(span.Events()) == 0 {
				t.Error("expected the error to be recorded as an event")
			}
		})
	}
}

func TestAddEventAndSetAttributes(t *testing.T) {
	recorder := recordSpans(t)

	ctx, endSpan := StartSpan(context.Background(), "materialize.run")
	SetAttributes(ctx, attribute.String("profile", "mixed"), attribute.Int("top_k", 20))
	AddEvent(ctx, "progress", attribute.Int("processed", 100))
	endSpan(nil)

	span := recorder.Ended()[0]
	attrs := attrMap(span.Attributes())
	if attrs["profile"] != "mixed" || attrs["top_k"] != "20" {
		t.Errorf("unexpected attributes %v", attrs)
	}
	events := span.Events()
	if len(events) != 1 || events[0].Name != "progress" {
		t.Fatalf("unexpected events %+v", events)
	}
	if attrMap(events[0].Attributes)["processed"] != "100" {
		t.Errorf("unexpected event attributes %v", events[0].Attributes)
	}
}

func TestHelpers_NoSpanInContext(t *testing.T) {
	// Must not panic on a context without a span.
	AddEvent(context.Background(), "ignored")
	SetAttributes(context.Background(), attribute.Bool("ignored", true))
}
