package netutil

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/routeros-upgrade/internal/util/clock"
)

// Waiter polls a Probe until the host answers or a timeout elapses.
type Waiter struct {
	Probe Probe

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Progress, if set, is called after every unsuccessful probe.
	Progress func(host string, elapsed time.Duration)
}

// NewWaiter returns a Waiter using probe and the real clock.
func NewWaiter(probe Probe) *Waiter {
	return &Waiter{Probe: probe, Clock: clock.New()}
}

// Wait probes host every pollInterval until it is reachable or timeout has
// elapsed. Probe errors mean "not yet". The returned duration is measured
// from the start of the wait. A cancelled ctx ends the wait as unreachable.
func (w *Waiter) Wait(ctx context.Context, host string, timeout, pollInterval time.Duration) (bool, time.Duration) {
	log := logr.FromContextOrDiscard(ctx)
	clk := w.Clock
	if clk == nil {
		clk = clock.New()
	}

	start := clk.Now()
	for {
		err := w.Probe.Probe(ctx, host)
		elapsed := clk.Since(start)
		if err == nil {
			log.V(1).Info("Host reachable", "host", host, "elapsed", elapsed.String())
			return true, elapsed
		}
		if elapsed >= timeout {
			return false, elapsed
		}

		log.V(1).Info("Waiting for host", "host", host, "elapsed", elapsed.Round(time.Second).String(), "error", err.Error())
		if w.Progress != nil {
			w.Progress(host, elapsed)
		}

		if err := clk.Sleep(ctx, pollInterval); err != nil {
			return false, clk.Since(start)
		}
	}
}
