package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestFromContext_RoundTrip(t *testing.T) {
	stored := zap.NewNop()
	ctx := ContextWithLogger(context.Background(), stored)

	if got := FromContext(ctx, zap.NewNop()); got != stored {
		t.Error("expected the stored logger back")
	}
}

func TestFromContext_Fallback(t *testing.T) {
	fallback := zap.NewNop()

	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Error("expected the fallback logger for a bare context")
	}
	if got := FromContext(context.Background(), nil); got == nil {
		t.Error("expected a usable logger even without fallback")
	}
}
