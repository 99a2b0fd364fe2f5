package observability

import (
	"context"
	"testing"
)

func TestSetupTracingReturnsWorkingShutdown(t *testing.T) {
	shutdown, err := SetupTracing(context.Background())
	if err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a non-nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestTracerStartsASpan(t *testing.T) {
	if _, err := SetupTracing(context.Background()); err != nil {
		t.Fatalf("SetupTracing: %v", err)
	}
	ctx, span := Tracer().Start(context.Background(), "test-span")
	if ctx == nil {
		t.Fatal("expected a non-nil context")
	}
	span.End()
}
