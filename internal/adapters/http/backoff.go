package http

import (
	"context"
	"math/rand"
	"time"
)

// Default retry schedule for messages a client rejected with a server error.
const (
	DefaultRetryAttempts  = 3
	DefaultBackoffInitial = 200 * time.Millisecond
	DefaultBackoffMax     = 2 * time.Second
)

// backoff implements exponential backoff with jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, current: initial}
}

// Sleep waits for the current delay, then doubles it up to max. It returns
// false if ctx ended first.
func (b *backoff) Sleep(ctx context.Context) bool {
	// ±20%
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	t := time.NewTimer(time.Duration(float64(b.current) + jitter))
	defer t.Stop()

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (b *backoff) Reset() {
	b.current = b.initial
}
