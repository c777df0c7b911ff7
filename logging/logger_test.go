package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/wyfcoding/montecarlo/contextx"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&TraceHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "simulation finished")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if rec["trace_id"] != traceID.String() {
		t.Errorf("expected trace_id %s, got %v", traceID, rec["trace_id"])
	}
	if rec["span_id"] != spanID.String() {
		t.Errorf("expected span_id %s, got %v", spanID, rec["span_id"])
	}
}

func TestTraceHandlerWithoutSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&TraceHandler{Handler: slog.NewJSONHandler(&buf, nil)})
	logger.Info("no span")
	if strings.Contains(buf.String(), "trace_id") {
		t.Errorf("did not expect trace_id without an active span: %s", buf.String())
	}
}

func TestTraceHandlerInjectsRequestAndRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&TraceHandler{Handler: slog.NewJSONHandler(&buf, nil)})
	ctx := contextx.WithRunID(contextx.WithRequestID(context.Background(), "req-1"), "run-abc")
	logger.InfoContext(ctx, "pipeline finished")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["request_id"] != "req-1" || rec["run_id"] != "run-abc" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestSetLevel(t *testing.T) {
	SetLevel("error")
	if level.Level() != slog.LevelError {
		t.Errorf("expected error level, got %v", level.Level())
	}
	SetLevel("bogus")
	if level.Level() != slog.LevelInfo {
		t.Errorf("unknown level should fall back to info, got %v", level.Level())
	}
}

func TestFanoutHandlerRespectsTargetLevels(t *testing.T) {
	var debugBuf, errorBuf bytes.Buffer
	h := newMultiHandler(
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	logger := slog.New(h).With("component", "sim")
	logger.Info("chunk done")

	if !strings.Contains(debugBuf.String(), "chunk done") {
		t.Errorf("debug target should receive info record")
	}
	if errorBuf.Len() != 0 {
		t.Errorf("error target should not receive info record, got %q", errorBuf.String())
	}
	if !strings.Contains(debugBuf.String(), "component=sim") {
		t.Errorf("attributes should propagate to targets: %q", debugBuf.String())
	}
}
