package clock

import (
	"context"
	"sync"
	"time"

	kclock "k8s.io/utils/clock"
	testingclock "k8s.io/utils/clock/testing"
)

// Clock reads the current time and sleeps with cancellation.
type Clock interface {
	kclock.PassiveClock

	// Sleep blocks for d or until ctx is done, whichever comes first.
	// It returns ctx.Err() when the context ended the wait.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real is the production Clock.
type Real struct {
	kclock.RealClock
}

// New returns the real clock.
func New() Clock {
	return Real{}
}

// Sleep implements Clock.
func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fake is a Clock whose Sleep advances time instantly.
// It records every requested sleep so tests can assert on settle delays.
type Fake struct {
	*testingclock.FakeClock

	mu     sync.Mutex
	sleeps []time.Duration
}

// NewFake returns a fake clock starting at t.
func NewFake(t time.Time) *Fake {
	return &Fake{FakeClock: testingclock.NewFakeClock(t)}
}

// Sleep implements Clock.
func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()

	f.Step(d)
	return nil
}

// Sleeps returns a copy of the durations passed to Sleep, in call order.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.sleeps))
	copy(out, f.sleeps)
	return out
}

// Slept returns the total duration passed to Sleep.
func (f *Fake) Slept() time.Duration {
	var total time.Duration
	for _, d := range f.Sleeps() {
		total += d
	}
	return total
}
