package scheduler

import (
	"context"
	"time"
)

// Clock abstracts time so ticks can be tested without sleeping
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, whichever comes first
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock returns the wall clock
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Pacer spaces sends so that at most rateLimit contacts go out per minute.
// The delay is added after every contact whatever the send took, so the
// achieved rate is at or below the ceiling.
type Pacer struct {
	interval time.Duration
	clock    Clock
}

// NewPacer creates a pacer for rateLimit messages per minute
func NewPacer(rateLimit int, clock Clock) *Pacer {
	if rateLimit <= 0 {
		rateLimit = 1
	}
	if clock == nil {
		clock = RealClock()
	}
	return &Pacer{
		interval: time.Minute / time.Duration(rateLimit),
		clock:    clock,
	}
}

// Interval returns the pause taken after each contact
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait sleeps one interval. Only cancellation of ctx cuts it short.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.clock.Sleep(ctx, p.interval)
}
