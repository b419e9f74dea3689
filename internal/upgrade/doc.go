// Package upgrade drives RouterOS package and RouterBOOT firmware upgrades
// on a single device.
//
// Each phase discovers the installed version, triggers the upgrade if one is
// available, waits for the device to reboot and come back, then reconnects
// and verifies that the new version is running:
//
//	Discovering → CheckingUpdate → Upgrading → WaitingReboot → Verifying → Succeeded | Failed
//
// The firmware phase reads the staged firmware version directly instead of
// checking for updates, and must reboot the device explicitly. Package
// installs reboot on their own. The connection that started an install or
// reboot stays open through the settle delay, since RouterOS stops a console
// command when its channel closes.
//
// Phases never return errors past the host boundary. Failures are reported in
// Outcome.Err, wrapping one of ErrConnect, ErrParse, ErrTimeout or
// ErrRegression. Every session is closed before a phase returns.
package upgrade
