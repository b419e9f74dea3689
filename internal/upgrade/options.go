package upgrade

import "time"

// Options holds phase timing and behaviour.
type Options struct {
	// RebootTimeout bounds the wait for the device to answer after a reboot.
	RebootTimeout time.Duration

	// PollInterval is the delay between reachability probes.
	PollInterval time.Duration

	// UpdateCheckDelay is waited after check-for-updates so the device can
	// reach the update server before the result is printed.
	UpdateCheckDelay time.Duration

	// InstallSettle is waited after starting the install, before polling,
	// so the device is already down when the first probe runs.
	InstallSettle time.Duration

	// FirmwareRebootDelay separates routerboard upgrade from the reboot.
	FirmwareRebootDelay time.Duration

	// RebootSettle is waited after an explicit reboot, before polling.
	RebootSettle time.Duration

	// BootGrace is waited after the device answers, before reconnecting.
	BootGrace time.Duration

	// DryRun stops each phase after discovery and reports whether an
	// upgrade is pending. No install, upgrade or reboot commands are sent.
	DryRun bool
}

// DefaultOptions returns the timings RouterOS devices need in practice.
func DefaultOptions() Options {
	return Options{
		RebootTimeout:       180 * time.Second,
		PollInterval:        5 * time.Second,
		UpdateCheckDelay:    10 * time.Second,
		InstallSettle:       30 * time.Second,
		FirmwareRebootDelay: 15 * time.Second,
		RebootSettle:        5 * time.Second,
		BootGrace:           5 * time.Second,
	}
}

// Budget is the worst-case time one phase spends sleeping and waiting,
// excluding connection attempts and command round-trips.
func (o Options) Budget() time.Duration {
	install := o.InstallSettle
	if fw := o.FirmwareRebootDelay + o.RebootSettle; fw > install {
		install = fw
	}
	return o.UpdateCheckDelay + install + o.RebootTimeout + o.PollInterval + o.BootGrace
}
