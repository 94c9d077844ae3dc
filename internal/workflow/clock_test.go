package workflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestJitterClockWait(t *testing.T) {
	clock := NewJitterClock(10)
	if err := clock.Wait(context.Background(), 5*time.Millisecond); err != nil {
		t.Fatalf("wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := clock.Wait(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := clock.Wait(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("zero wait ignored cancellation: %v", err)
	}
}
