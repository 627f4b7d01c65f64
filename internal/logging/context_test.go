package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run-1")
	ctx = WithNodeID(ctx, "node-7")

	if got := RunID(ctx); got != "run-1" {
		t.Errorf("RunID = %q, want run-1", got)
	}
	if got := NodeID(ctx); got != "node-7" {
		t.Errorf("NodeID = %q, want node-7", got)
	}
}

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	if got := RunID(ctx); got != "" {
		t.Errorf("RunID on empty ctx = %q, want empty", got)
	}
	if got := NodeID(ctx); got != "" {
		t.Errorf("NodeID on empty ctx = %q, want empty", got)
	}
}

func TestCorrelationHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, nil)
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithNodeID(WithRunID(context.Background(), "run-42"), "n1")
	logger.InfoContext(ctx, "evaluating")

	out := buf.String()
	if !strings.Contains(out, "run_id=run-42") {
		t.Errorf("expected run_id attribute, got: %s", out)
	}
	if !strings.Contains(out, "node_id=n1") {
		t.Errorf("expected node_id attribute, got: %s", out)
	}
}

func TestCorrelationHandlerNoIDs(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, nil)
	logger := slog.New(NewCorrelationHandler(inner))

	logger.InfoContext(context.Background(), "plain")

	out := buf.String()
	if strings.Contains(out, "run_id") || strings.Contains(out, "node_id") {
		t.Errorf("expected no correlation attributes, got: %s", out)
	}
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := WithRunID(context.Background(), "run-9")
	LogWith(ctx, logger).Info("seeded")

	if !strings.Contains(buf.String(), "run_id=run-9") {
		t.Errorf("expected run_id attribute, got: %s", buf.String())
	}
}
