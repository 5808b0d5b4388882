package log

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
)

func TestGetLoggerFromContext(t *testing.T) {
	ctx := ContextWithLogger(context.Background(), logr.Discard())

	got := GetLoggerFromContextWithName(ctx, "")
	if got.GetSink() != logr.Discard().GetSink() {
		t.Fatalf("expected the logger stored in the context")
	}

	// no logger in the context falls back to a fresh one
	fallback := GetLoggerFromContextWithName(context.Background(), "fuse")
	if fallback.GetSink() == nil {
		t.Fatalf("expected a usable fallback logger")
	}
}

func TestQuiet(t *testing.T) {
	ctx := Quiet(context.Background())
	logger, err := logr.FromContext(ctx)
	if err != nil {
		t.Fatalf("expected a logger in the context: %v", err)
	}
	if logger.Enabled() {
		t.Fatalf("discard logger should not be enabled")
	}
}
