package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/routeros-upgrade/internal/metrics"
	"github.com/imamik/routeros-upgrade/internal/upgrade"
	"github.com/imamik/routeros-upgrade/internal/util/async"
)

// Exit codes of a batch run.
const (
	ExitOK      = 0 // every attempted phase succeeded
	ExitFailed  = 1 // at least one host phase failed
	ExitAborted = 2 // stopped by StopOnConnectFailure
	ExitUsage   = 3 // invalid invocation or configuration
)

// Phaser runs the upgrade phases for one host.
type Phaser interface {
	UpgradeOS(ctx context.Context, host string) upgrade.Outcome
	UpgradeFirmware(ctx context.Context, host string) upgrade.Outcome
}

// Config controls batch behaviour.
type Config struct {
	// Parallelism is the number of hosts upgraded at once. Values below one mean one.
	Parallelism int

	// StopOnConnectFailure aborts the batch on the first host that cannot be reached.
	StopOnConnectFailure bool

	// SkipFirmware disables the firmware phase.
	SkipFirmware bool

	// HostDeadline bounds the total time spent on one host. Zero means no bound.
	HostDeadline time.Duration
}

// Result is the outcome of one host.
type Result struct {
	Host     string
	OS       upgrade.Outcome
	Firmware upgrade.Outcome

	// FirmwareAttempted is false when the OS phase failed or firmware was skipped.
	FirmwareAttempted bool

	// Skipped is set for hosts not started because the batch was aborted.
	Skipped bool
}

// Failed reports whether any attempted phase of the host failed.
func (r Result) Failed() bool {
	if r.Skipped {
		return false
	}
	return !r.OS.Success || (r.FirmwareAttempted && !r.Firmware.Success)
}

// Report is the outcome of a batch.
type Report struct {
	RunID   string
	Results []Result
	Aborted bool
}

// ExitCode maps the report to a process exit code.
func (r Report) ExitCode() int {
	if r.Aborted {
		return ExitAborted
	}
	for _, res := range r.Results {
		if res.Failed() {
			return ExitFailed
		}
	}
	return ExitOK
}

// Runner upgrades hosts in batches.
type Runner struct {
	phaser   Phaser
	cfg      Config
	metrics  *metrics.Recorder
	onResult func(Result)
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics records phase results and reboot durations.
func WithMetrics(m *metrics.Recorder) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithResultFunc is called once per host as soon as its result is known.
// Calls are serialized.
func WithResultFunc(fn func(Result)) Option {
	return func(r *Runner) {
		r.onResult = fn
	}
}

// NewRunner creates a batch runner.
func NewRunner(phaser Phaser, cfg Config, opts ...Option) *Runner {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	r := &Runner{phaser: phaser, cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type indexed struct {
	index  int
	result Result
}

// Run upgrades hosts and returns their results in input order.
func (r *Runner) Run(ctx context.Context, runID string, hosts []string) Report {
	log := logr.FromContextOrDiscard(ctx).WithValues("run", runID)
	r.metrics.SetHosts(len(hosts))

	var aborted atomic.Bool
	results := make(chan indexed, len(hosts))

	tasks := make([]async.Task, len(hosts))
	for i, host := range hosts {
		tasks[i] = async.Task{
			Name: host,
			Func: func(ctx context.Context) error {
				if aborted.Load() {
					results <- indexed{i, Result{Host: host, Skipped: true}}
					return nil
				}
				res := r.runHost(logr.NewContext(ctx, log.WithValues("host", host)), host)
				if r.cfg.StopOnConnectFailure && connectFailed(res) {
					if !aborted.Swap(true) {
						log.Info("Connection failed, stopping batch", "host", host)
					}
				}
				results <- indexed{i, res}
				return nil
			},
		}
	}

	go func() {
		_ = async.RunParallel(ctx, tasks, r.cfg.Parallelism)
		close(results)
	}()

	report := Report{RunID: runID, Results: make([]Result, len(hosts))}
	for item := range results {
		report.Results[item.index] = item.result
		r.record(item.result)
		if r.onResult != nil {
			r.onResult(item.result)
		}
	}
	report.Aborted = aborted.Load()
	return report
}

func (r *Runner) runHost(ctx context.Context, host string) Result {
	if r.cfg.HostDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.HostDeadline)
		defer cancel()
	}

	res := Result{Host: host}
	res.OS = r.phaser.UpgradeOS(ctx, host)
	if !res.OS.Success || r.cfg.SkipFirmware {
		return res
	}

	res.FirmwareAttempted = true
	res.Firmware = r.phaser.UpgradeFirmware(ctx, host)
	return res
}

func (r *Runner) record(res Result) {
	if res.Skipped {
		r.metrics.ObservePhase(string(upgrade.PhaseOS), "skipped")
		return
	}
	r.metrics.ObservePhase(string(upgrade.PhaseOS), result(res.OS))
	r.metrics.ObserveReboot(string(upgrade.PhaseOS), res.OS.RebootTime)
	if res.FirmwareAttempted {
		r.metrics.ObservePhase(string(upgrade.PhaseFirmware), result(res.Firmware))
		r.metrics.ObserveReboot(string(upgrade.PhaseFirmware), res.Firmware.RebootTime)
	}
}

func result(o upgrade.Outcome) string {
	switch {
	case o.Success && o.Pending:
		return "pending"
	case o.Success:
		return "success"
	case o.Err != nil:
		return upgrade.Kind(o.Err)
	default:
		return "error"
	}
}

func connectFailed(res Result) bool {
	return errors.Is(res.OS.Err, upgrade.ErrConnect) ||
		(res.FirmwareAttempted && errors.Is(res.Firmware.Err, upgrade.ErrConnect))
}
