package workflow

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
)

// JitterClock waits with normally distributed jitter around the requested
// interval so many runs sharing a scheduler do not poll in lockstep.
type JitterClock struct {
	percent int
}

// NewJitterClock returns a clock whose jitter standard deviation is percent
// of each wait.
func NewJitterClock(percent int) JitterClock {
	if percent < 0 {
		percent = 0
	}
	return JitterClock{percent: percent}
}

func (JitterClock) Now() time.Time { return time.Now() }

// Wait blocks for roughly d or until ctx is done.
func (c JitterClock) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	stdev := d * time.Duration(c.percent) / 100
	ticker := jitterbug.New(d, &jitterbug.Norm{Stdev: stdev})
	defer ticker.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ticker.C:
		return nil
	}
}
