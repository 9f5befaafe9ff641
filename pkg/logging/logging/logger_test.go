package logging

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger("prod", "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestFromContextPrefersRequestLogger(t *testing.T) {
	reqLogger := zaptest.NewLogger(t)
	ctx := WithLogger(context.Background(), reqLogger)

	if got := FromContext(ctx); got != reqLogger {
		t.Fatalf("expected request logger from context")
	}
	if got := L(context.Background()); got == nil {
		t.Fatalf("expected default logger, got nil")
	}
}
