package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/routeros-upgrade/internal/metrics"
	"github.com/imamik/routeros-upgrade/internal/routeros"
	fakes "github.com/imamik/routeros-upgrade/internal/testing"
	"github.com/imamik/routeros-upgrade/internal/upgrade"
	"github.com/imamik/routeros-upgrade/internal/util/clock"
	"github.com/imamik/routeros-upgrade/internal/util/netutil"
)

// scriptedPhaser returns canned outcomes per host and records calls.
type scriptedPhaser struct {
	mu       sync.Mutex
	os       map[string]upgrade.Outcome
	firmware map[string]upgrade.Outcome
	calls    []string
	delay    time.Duration
}

func newScriptedPhaser() *scriptedPhaser {
	return &scriptedPhaser{
		os:       make(map[string]upgrade.Outcome),
		firmware: make(map[string]upgrade.Outcome),
	}
}

func (p *scriptedPhaser) UpgradeOS(_ context.Context, host string) upgrade.Outcome {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "os:"+host)
	if out, ok := p.os[host]; ok {
		return out
	}
	return upgrade.Outcome{Success: true, Version: "7.15"}
}

func (p *scriptedPhaser) UpgradeFirmware(_ context.Context, host string) upgrade.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "fw:"+host)
	if out, ok := p.firmware[host]; ok {
		return out
	}
	return upgrade.Outcome{Success: true, Version: "7.15"}
}

func (p *scriptedPhaser) recorded() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func failed(err error) upgrade.Outcome {
	return upgrade.Outcome{Err: err}
}

var errConnect = fmt.Errorf("%w to r2:22: no route to host", upgrade.ErrConnect)

func TestRun_AllSucceed(t *testing.T) {
	p := newScriptedPhaser()
	report := NewRunner(p, Config{}).Run(context.Background(), "run-1", []string{"r1", "r2"})

	assert.Equal(t, []string{"os:r1", "fw:r1", "os:r2", "fw:r2"}, p.recorded())
	require.Len(t, report.Results, 2)
	assert.Equal(t, "r1", report.Results[0].Host)
	assert.True(t, report.Results[0].FirmwareAttempted)
	assert.Equal(t, "run-1", report.RunID)
	assert.False(t, report.Aborted)
	assert.Equal(t, ExitOK, report.ExitCode())
}

func TestRun_FirmwareNeverAfterFailedOS(t *testing.T) {
	p := newScriptedPhaser()
	p.os["r1"] = failed(upgrade.ErrTimeout)

	report := NewRunner(p, Config{}).Run(context.Background(), "run", []string{"r1", "r2"})

	assert.NotContains(t, p.recorded(), "fw:r1")
	assert.Contains(t, p.recorded(), "fw:r2", "a failed host does not stop the batch")
	assert.False(t, report.Results[0].FirmwareAttempted)
	assert.True(t, report.Results[0].Failed())
	assert.Equal(t, ExitFailed, report.ExitCode())
}

func TestRun_FirmwareFailureFailsBatch(t *testing.T) {
	p := newScriptedPhaser()
	p.firmware["r1"] = failed(upgrade.ErrRegression)

	report := NewRunner(p, Config{}).Run(context.Background(), "run", []string{"r1"})

	assert.True(t, report.Results[0].OS.Success)
	assert.False(t, report.Results[0].Firmware.Success)
	assert.Equal(t, ExitFailed, report.ExitCode())
}

func TestRun_SkipFirmware(t *testing.T) {
	p := newScriptedPhaser()
	report := NewRunner(p, Config{SkipFirmware: true}).Run(context.Background(), "run", []string{"r1"})

	assert.Equal(t, []string{"os:r1"}, p.recorded())
	assert.False(t, report.Results[0].FirmwareAttempted)
	assert.Equal(t, ExitOK, report.ExitCode())
}

func TestRun_ConnectFailureContinuesByDefault(t *testing.T) {
	p := newScriptedPhaser()
	p.os["r2"] = failed(errConnect)

	report := NewRunner(p, Config{}).Run(context.Background(), "run", []string{"r1", "r2", "r3"})

	assert.Contains(t, p.recorded(), "os:r3")
	assert.False(t, report.Aborted)
	assert.False(t, report.Results[2].Skipped)
	assert.Equal(t, ExitFailed, report.ExitCode())
}

func TestRun_StopOnConnectFailure(t *testing.T) {
	p := newScriptedPhaser()
	p.os["r2"] = failed(errConnect)

	report := NewRunner(p, Config{StopOnConnectFailure: true}).Run(context.Background(), "run", []string{"r1", "r2", "r3", "r4"})

	assert.Equal(t, []string{"os:r1", "fw:r1", "os:r2"}, p.recorded())
	assert.True(t, report.Aborted)
	require.Len(t, report.Results, 4)
	assert.False(t, report.Results[0].Skipped)
	assert.False(t, report.Results[1].Skipped)
	assert.True(t, report.Results[2].Skipped)
	assert.True(t, report.Results[3].Skipped)
	assert.Equal(t, "r4", report.Results[3].Host)
	assert.Equal(t, ExitAborted, report.ExitCode())
}

func TestRun_StopOnConnectFailureIgnoresOtherErrors(t *testing.T) {
	p := newScriptedPhaser()
	p.os["r1"] = failed(upgrade.ErrParse)

	report := NewRunner(p, Config{StopOnConnectFailure: true}).Run(context.Background(), "run", []string{"r1", "r2"})

	assert.False(t, report.Aborted)
	assert.Contains(t, p.recorded(), "os:r2")
	assert.Equal(t, ExitFailed, report.ExitCode())
}

func TestRun_ParallelKeepsInputOrderAndPerHostSequence(t *testing.T) {
	p := newScriptedPhaser()
	p.delay = 5 * time.Millisecond
	hosts := []string{"r1", "r2", "r3", "r4", "r5", "r6"}

	var seen atomic.Int32
	report := NewRunner(p, Config{Parallelism: 3}, WithResultFunc(func(Result) { seen.Add(1) })).
		Run(context.Background(), "run", hosts)

	require.Len(t, report.Results, len(hosts))
	for i, h := range hosts {
		assert.Equal(t, h, report.Results[i].Host)
	}
	assert.Equal(t, int32(len(hosts)), seen.Load())

	calls := p.recorded()
	for _, h := range hosts {
		osIdx, fwIdx := -1, -1
		for i, c := range calls {
			switch c {
			case "os:" + h:
				osIdx = i
			case "fw:" + h:
				fwIdx = i
			}
		}
		require.NotEqual(t, -1, osIdx)
		assert.Less(t, osIdx, fwIdx, "firmware of %s must follow its OS phase", h)
	}
}

type deadlinePhaser struct {
	deadlines chan time.Duration
}

func (p deadlinePhaser) UpgradeOS(ctx context.Context, _ string) upgrade.Outcome {
	if dl, ok := ctx.Deadline(); ok {
		p.deadlines <- time.Until(dl)
	} else {
		p.deadlines <- 0
	}
	return upgrade.Outcome{Err: errors.New("stop")}
}

func (p deadlinePhaser) UpgradeFirmware(context.Context, string) upgrade.Outcome {
	return upgrade.Outcome{}
}

func TestRun_HostDeadline(t *testing.T) {
	p := deadlinePhaser{deadlines: make(chan time.Duration, 1)}
	NewRunner(p, Config{HostDeadline: time.Hour}).Run(context.Background(), "run", []string{"r1"})

	d := <-p.deadlines
	assert.Greater(t, d, 59*time.Minute)
	assert.LessOrEqual(t, d, time.Hour)
}

func TestRun_RecordsMetrics(t *testing.T) {
	p := newScriptedPhaser()
	p.os["r1"] = upgrade.Outcome{Success: true, Version: "7.15", RebootTime: 40 * time.Second}
	p.os["r2"] = failed(errConnect)
	m := metrics.NewRecorder()

	NewRunner(p, Config{StopOnConnectFailure: true}, WithMetrics(m)).
		Run(context.Background(), "run", []string{"r1", "r2", "r3"})

	reg := m.Registry()
	families, err := reg.Gather()
	require.NoError(t, err)

	got := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "routeros_upgrade_phase_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range metric.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			got[labels["phase"]+"/"+labels["result"]] = metric.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{
		"os/success":       1,
		"firmware/success": 1,
		"os/connect":       1,
		"os/skipped":       1,
	}, got)
	n, err := testutil.GatherAndCount(reg, "routeros_upgrade_reboot_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExitCode(t *testing.T) {
	ok := Result{Host: "r1", OS: upgrade.Outcome{Success: true}}
	bad := Result{Host: "r2", OS: upgrade.Outcome{Err: upgrade.ErrTimeout}}
	skipped := Result{Host: "r3", Skipped: true}

	assert.Equal(t, ExitOK, Report{}.ExitCode())
	assert.Equal(t, ExitOK, Report{Results: []Result{ok}}.ExitCode())
	assert.Equal(t, ExitFailed, Report{Results: []Result{ok, bad}}.ExitCode())
	assert.Equal(t, ExitAborted, Report{Results: []Result{bad, skipped}, Aborted: true}.ExitCode())
}

// TestRun_EndToEnd drives the real orchestrator against scripted devices.
func TestRun_EndToEnd(t *testing.T) {
	conn := fakes.NewFakeConnector()
	conn.Device("r1").
		Respond(routeros.ResourcePrint.Line, "version: 7.14 (stable)\narchitecture-name: arm64\n").
		Respond(routeros.UpdatePrint.Line, "installed-version: 7.14\nlatest-version: 7.15\n").
		Respond(routeros.RouterboardPrint.Line, "current-firmware: 7.14\nupgrade-firmware: 7.14\n").
		OnStart(routeros.UpdateInstall.Line, func(d *fakes.FakeDevice) {
			d.Respond(routeros.ResourcePrint.Line, "version: 7.15 (stable)\narchitecture-name: arm64\n")
			d.Respond(routeros.RouterboardPrint.Line, "current-firmware: 7.14\nupgrade-firmware: 7.15\n")
		}).
		OnStart(routeros.Reboot.Line, func(d *fakes.FakeDevice) {
			d.Respond(routeros.RouterboardPrint.Line, "current-firmware: 7.15\nupgrade-firmware: 7.15\n")
		})
	conn.Device("r2").Unreachable()
	conn.Device("r3").
		Respond(routeros.ResourcePrint.Line, "version: 7.15 (stable)\narchitecture-name: arm64\n").
		Respond(routeros.UpdatePrint.Line, "installed-version: 7.15\nlatest-version: 7.15\n").
		Respond(routeros.RouterboardPrint.Line, "current-firmware: 7.15\nupgrade-firmware: 7.15\n")

	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	waiter := &netutil.Waiter{Probe: fakes.NewFakeProbe(nil), Clock: clk}
	orch := upgrade.NewOrchestrator(conn, waiter, upgrade.DefaultOptions(), upgrade.WithClock(clk))

	report := NewRunner(orch, Config{}).Run(fakes.TestContext(t), "run", []string{"r1", "r2", "r3"})

	r1, r2, r3 := report.Results[0], report.Results[1], report.Results[2]
	assert.True(t, r1.OS.Success)
	assert.Equal(t, "7.15", r1.OS.Version)
	assert.True(t, r1.Firmware.Success)
	assert.Equal(t, "7.15", r1.Firmware.Version)

	assert.False(t, r2.OS.Success)
	assert.ErrorIs(t, r2.OS.Err, upgrade.ErrConnect)
	assert.False(t, r2.FirmwareAttempted)

	assert.True(t, r3.OS.Success)
	assert.True(t, r3.Firmware.Success)
	assert.False(t, conn.Device("r3").Issued(routeros.Reboot.Line))

	assert.Equal(t, ExitFailed, report.ExitCode())
	for _, h := range []string{"r1", "r2", "r3"} {
		assert.Zero(t, conn.Device(h).OpenSessions(), h)
	}
}
