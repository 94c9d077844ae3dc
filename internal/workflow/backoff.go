package workflow

import "time"

// backoff stretches the wait between passes while nothing changes. After
// idlePasses unchanged passes the interval doubles on every further idle
// pass, up to max. Any change restores the base interval.
type backoff struct {
	base       time.Duration
	max        time.Duration
	idlePasses int

	idle    int
	current time.Duration
}

func newBackoff(base, max time.Duration, idlePasses int) *backoff {
	if max < base {
		max = base
	}
	return &backoff{base: base, max: max, idlePasses: idlePasses, current: base}
}

// next records the outcome of a pass and returns the wait before the next one.
func (b *backoff) next(changed bool) time.Duration {
	if changed {
		b.idle = 0
		b.current = b.base
		return b.current
	}
	b.idle++
	if b.idlePasses > 0 && b.idle > b.idlePasses {
		b.current *= 2
		if b.current > b.max {
			b.current = b.max
		}
	}
	return b.current
}
