package upgrade

import (
	"context"
	"fmt"

	"github.com/imamik/routeros-upgrade/internal/platform/ssh"
	"github.com/imamik/routeros-upgrade/internal/routeros"
)

// UpgradeOS upgrades the RouterOS packages on host to the latest version
// offered by its update channel.
func (o *Orchestrator) UpgradeOS(ctx context.Context, host string) Outcome {
	ctx, run := o.begin(ctx, host, PhaseOS)
	var out Outcome

	run.enter(StateDiscovering)
	var (
		update    routeros.PackageUpdate
		installed bool
	)
	err := ssh.WithSession(ctx, o.connector, host, func(s ssh.Session) error {
		res, err := routeros.Query[routeros.Resource](ctx, s, routeros.ResourcePrint)
		if err != nil {
			return err
		}
		if !routeros.Present(res.Version) {
			return missing(host, "version")
		}
		if !routeros.Present(res.ArchitectureName) {
			return missing(host, "architecture-name")
		}
		out.Previous = token(*res.Version)
		run.log.Info("Checking RouterOS version",
			"version", *res.Version,
			"architecture", res.Architecture(),
			"board", routeros.Value(res.BoardName))
		if bad := routeros.Value(res.BadBlocks); bad != "" && bad != "0%" {
			run.log.Info("Storage reports bad blocks", "badBlocks", bad)
		}

		run.enter(StateCheckingUpdate)
		if err := s.Start(routeros.CheckForUpdates.Line); err != nil {
			return err
		}
		if err := run.sleep(ctx, o.opts.UpdateCheckDelay, "update check"); err != nil {
			return err
		}
		update, err = routeros.Query[routeros.PackageUpdate](ctx, s, routeros.UpdatePrint)
		if err != nil {
			return err
		}
		if !routeros.Present(update.LatestVersion) {
			run.log.Info("Update check did not complete", "status", routeros.Value(update.Status))
			return missing(host, "latest-version")
		}

		if routeros.Value(update.InstalledVersion) == *update.LatestVersion {
			return nil
		}
		if o.opts.DryRun {
			return nil
		}

		run.enter(StateUpgrading)
		run.log.Info("Upgrading RouterOS",
			"from", routeros.Value(update.InstalledVersion),
			"to", *update.LatestVersion)
		installed = true
		if err := s.Start(routeros.UpdateInstall.Line); err != nil {
			return err
		}
		// The install runs on this connection until the device goes down.
		return run.sleep(ctx, o.opts.InstallSettle, "install to start")
	})
	if err != nil {
		return run.fail(out, err)
	}

	latest := routeros.Value(update.LatestVersion)
	switch {
	case routeros.Value(update.InstalledVersion) == latest:
		run.log.Info("RouterOS already up to date", "version", latest)
		out.Version = latest
		return run.succeed(out)
	case !installed:
		run.log.Info("RouterOS upgrade available", "from", routeros.Value(update.InstalledVersion), "to", latest)
		out.Version = out.Previous
		out.Pending = true
		return run.succeed(out)
	}

	var current string
	out.RebootTime, err = run.awaitReboot(ctx, func(ctx context.Context, s ssh.Session) error {
		res, err := routeros.Query[routeros.Resource](ctx, s, routeros.ResourcePrint)
		if err != nil {
			return err
		}
		if !routeros.Present(res.Version) {
			return missing(host, "version")
		}
		current = *res.Version
		return nil
	})
	if err != nil {
		return run.fail(out, err)
	}

	out.Version = token(current)
	if routeros.ParseVersion(current).Less(routeros.ParseVersion(latest)) {
		return run.fail(out, fmt.Errorf("%w: %s runs %s, expected %s", ErrRegression, host, out.Version, latest))
	}
	run.log.Info("RouterOS upgraded", "version", out.Version)
	return run.succeed(out)
}
