package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("component", "session")).Debug(context.Background(), "hazards refreshed",
		Int("count", 3),
		Float64("nearest_km", 1.5),
		Duration("took", 2*time.Millisecond),
		Bool("critical", true),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "hazards refreshed" || rec["component"] != "session" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["count"] != float64(3) || rec["critical"] != true || rec["error"] != "boom" {
		t.Fatalf("unexpected fields: %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "dropped")
	log.Warn(context.Background(), "kept")
	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Fatalf("level filtering failed: %q", buf.String())
	}
}

func TestEnsureRequestIDIsUUID(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("request id %q is not a UUID: %v", id, err)
	}
	again, same := EnsureRequestID(ctx)
	if same != id || RequestIDFromContext(again) != id {
		t.Fatalf("existing request id should be reused")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background(), nil) == nil {
		t.Fatalf("FromContext must never return nil")
	}
	stored := Noop().With(String("k", "v"))
	ctx := ContextWithLogger(context.Background(), stored)
	if FromContext(ctx, nil) != stored {
		t.Fatalf("FromContext should return the stored logger")
	}
}

func TestTraceIDsAreAttached(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Output: &buf})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	log.With(String("component", "nbi")).Info(ctx, "predict", Duration("took", 1500*time.Millisecond), SimTime(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["trace_id"] != sc.TraceID().String() || rec["span_id"] != sc.SpanID().String() {
		t.Fatalf("trace ids missing: %v", rec)
	}
	if rec["took"] != "1.5s" {
		t.Fatalf("duration rendered as %v, want 1.5s", rec["took"])
	}
	if rec["sim_time"] != "2025-06-01T12:00:00Z" {
		t.Fatalf("sim_time = %v", rec["sim_time"])
	}
}

func TestNoTraceIDsWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Output: &buf}).Info(context.Background(), "plain")
	if strings.Contains(buf.String(), "trace_id") {
		t.Fatalf("unexpected trace_id: %q", buf.String())
	}
}
