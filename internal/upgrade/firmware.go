package upgrade

import (
	"context"
	"fmt"

	"github.com/imamik/routeros-upgrade/internal/platform/ssh"
	"github.com/imamik/routeros-upgrade/internal/routeros"
)

// UpgradeFirmware upgrades the RouterBOOT firmware on host to the version
// staged by the installed packages, then reboots to activate it.
func (o *Orchestrator) UpgradeFirmware(ctx context.Context, host string) Outcome {
	ctx, run := o.begin(ctx, host, PhaseFirmware)
	var out Outcome

	run.enter(StateDiscovering)
	var (
		target   string
		rebooted bool
		upToDate bool
	)
	err := ssh.WithSession(ctx, o.connector, host, func(s ssh.Session) error {
		rb, err := routeros.Query[routeros.Routerboard](ctx, s, routeros.RouterboardPrint)
		if err != nil {
			return err
		}
		if !routeros.Present(rb.CurrentFirmware) {
			return missing(host, "current-firmware")
		}
		if !routeros.Present(rb.UpgradeFirmware) {
			return missing(host, "upgrade-firmware")
		}
		out.Previous = token(*rb.CurrentFirmware)
		target = *rb.UpgradeFirmware
		run.log.Info("Checking firmware version",
			"current", *rb.CurrentFirmware,
			"upgrade", target,
			"model", routeros.Value(rb.Model))

		if routeros.ParseVersion(*rb.CurrentFirmware).AtLeast(routeros.ParseVersion(target)) {
			upToDate = true
			return nil
		}
		if o.opts.DryRun {
			return nil
		}

		run.enter(StateUpgrading)
		run.log.Info("Upgrading firmware", "from", *rb.CurrentFirmware, "to", target)
		if err := s.Start(routeros.RouterboardUpgrade.Line); err != nil {
			return err
		}
		if err := run.sleep(ctx, o.opts.FirmwareRebootDelay, "firmware to be staged"); err != nil {
			return err
		}

		run.enter(StateRebooting)
		run.log.Info("Rebooting")
		rebooted = true
		if err := s.Start(routeros.Reboot.Line); err != nil {
			return err
		}
		return run.sleep(ctx, o.opts.RebootSettle, "reboot to start")
	})
	if err != nil {
		return run.fail(out, err)
	}

	switch {
	case upToDate:
		run.log.Info("Firmware already up to date", "version", out.Previous)
		out.Version = out.Previous
		return run.succeed(out)
	case !rebooted:
		run.log.Info("Firmware upgrade available", "from", out.Previous, "to", target)
		out.Version = out.Previous
		out.Pending = true
		return run.succeed(out)
	}

	var current string
	out.RebootTime, err = run.awaitReboot(ctx, func(ctx context.Context, s ssh.Session) error {
		rb, err := routeros.Query[routeros.Routerboard](ctx, s, routeros.RouterboardPrint)
		if err != nil {
			return err
		}
		if !routeros.Present(rb.CurrentFirmware) {
			return missing(host, "current-firmware")
		}
		current = *rb.CurrentFirmware
		return nil
	})
	if err != nil {
		return run.fail(out, err)
	}

	out.Version = token(current)
	if routeros.ParseVersion(current).Less(routeros.ParseVersion(target)) {
		return run.fail(out, fmt.Errorf("%w: %s firmware is %s, expected %s", ErrRegression, host, out.Version, token(target)))
	}
	run.log.Info("Firmware upgraded", "version", out.Version)
	return run.succeed(out)
}
