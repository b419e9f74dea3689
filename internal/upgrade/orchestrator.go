package upgrade

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/routeros-upgrade/internal/platform/ssh"
	"github.com/imamik/routeros-upgrade/internal/routeros"
	"github.com/imamik/routeros-upgrade/internal/util/clock"
)

// Phase identifies one upgrade cycle.
type Phase string

const (
	PhaseOS       Phase = "os"
	PhaseFirmware Phase = "firmware"
)

// State is a step of a phase.
type State string

const (
	StateDiscovering    State = "Discovering"
	StateCheckingUpdate State = "CheckingUpdate"
	StateUpgrading      State = "Upgrading"
	StateRebooting      State = "Rebooting"
	StateWaitingReboot  State = "WaitingReboot"
	StateVerifying      State = "Verifying"
	StateSucceeded      State = "Succeeded"
	StateFailed         State = "Failed"
)

// Outcome is the result of one phase on one host.
type Outcome struct {
	Success bool

	// Version is the version running after the phase, empty when unknown.
	Version string

	// Previous is the version found during discovery.
	Previous string

	// Pending is set in dry-run mode when an upgrade is available.
	Pending bool

	// RebootTime is how long the device took to answer after a reboot.
	RebootTime time.Duration

	Err error
}

// Waiter blocks until host answers or timeout elapses.
type Waiter interface {
	Wait(ctx context.Context, host string, timeout, pollInterval time.Duration) (bool, time.Duration)
}

// StateFunc observes state transitions.
type StateFunc func(host string, phase Phase, state State)

// Orchestrator runs upgrade phases against devices.
type Orchestrator struct {
	connector ssh.Connector
	waiter    Waiter
	clock     clock.Clock
	opts      Options
	onState   StateFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the clock used for settle delays.
func WithClock(clk clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clk
	}
}

// WithStateFunc registers a state transition observer. It may be called
// from several goroutines when hosts run in parallel.
func WithStateFunc(fn StateFunc) Option {
	return func(o *Orchestrator) {
		o.onState = fn
	}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(connector ssh.Connector, waiter Waiter, opts Options, options ...Option) *Orchestrator {
	o := &Orchestrator{
		connector: connector,
		waiter:    waiter,
		clock:     clock.New(),
		opts:      opts,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Options returns the phase options.
func (o *Orchestrator) Options() Options {
	return o.opts
}

type phaseRun struct {
	o     *Orchestrator
	host  string
	phase Phase
	log   logr.Logger
}

func (o *Orchestrator) begin(ctx context.Context, host string, phase Phase) (context.Context, *phaseRun) {
	log := logr.FromContextOrDiscard(ctx).WithValues("phase", string(phase))
	return logr.NewContext(ctx, log), &phaseRun{o: o, host: host, phase: phase, log: log}
}

func (r *phaseRun) enter(state State) {
	r.log.V(1).Info("State", "state", string(state))
	if r.o.onState != nil {
		r.o.onState(r.host, r.phase, state)
	}
}

func (r *phaseRun) sleep(ctx context.Context, d time.Duration, what string) error {
	if d <= 0 {
		return nil
	}
	r.log.V(1).Info("Waiting", "for", what, "duration", d.String())
	return r.o.clock.Sleep(ctx, d)
}

func (r *phaseRun) fail(out Outcome, err error) Outcome {
	out.Success = false
	out.Err = err
	r.log.Error(err, "Upgrade failed")
	r.enter(StateFailed)
	return out
}

func (r *phaseRun) succeed(out Outcome) Outcome {
	out.Success = true
	out.Err = nil
	r.enter(StateSucceeded)
	return out
}

// awaitReboot waits for the device to come back, then reconnects and reads
// the post-reboot state with read. The session is released before returning.
func (r *phaseRun) awaitReboot(ctx context.Context, read func(context.Context, ssh.Session) error) (time.Duration, error) {
	opts := r.o.opts

	r.enter(StateWaitingReboot)
	up, elapsed := r.o.waiter.Wait(ctx, r.host, opts.RebootTimeout, opts.PollInterval)
	if !up {
		return elapsed, fmt.Errorf("%w: %s not reachable within %s", ErrTimeout, r.host, opts.RebootTimeout)
	}
	r.log.Info("Host back online", "after", elapsed.Round(time.Second).String())

	r.enter(StateVerifying)
	if err := r.sleep(ctx, opts.BootGrace, "boot to complete"); err != nil {
		return elapsed, err
	}
	return elapsed, ssh.WithSession(ctx, r.o.connector, r.host, func(s ssh.Session) error {
		return read(ctx, s)
	})
}

func missing(host, attribute string) error {
	return fmt.Errorf("%w: %s did not report %s", ErrParse, host, attribute)
}

func token(raw string) string {
	return routeros.ParseVersion(raw).String()
}
