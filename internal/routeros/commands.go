package routeros

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
)

// Command is a fixed console command line and the attributes read from its output.
// Commands that are only triggered carry no attributes.
type Command struct {
	Line       string
	Attributes AttributeSet
}

var (
	// ResourcePrint reports the running RouterOS version and hardware.
	ResourcePrint = Command{
		Line:       "/system resource print",
		Attributes: NewAttributeSet("version", "architecture-name", "board-name", "bad-blocks", "uptime"),
	}

	// CheckForUpdates asks the device to contact the update server once.
	CheckForUpdates = Command{Line: "/system package update check-for-updates once"}

	// UpdatePrint reports the result of the last update check.
	UpdatePrint = Command{
		Line:       "/system package update print",
		Attributes: NewAttributeSet("installed-version", "latest-version", "status", "channel"),
	}

	// UpdateInstall downloads the latest packages and reboots on its own.
	UpdateInstall = Command{Line: "/system package update install"}

	// RouterboardPrint reports the RouterBOOT firmware versions.
	RouterboardPrint = Command{
		Line:       "/system routerboard print",
		Attributes: NewAttributeSet("current-firmware", "upgrade-firmware", "model", "routerboard"),
	}

	// RouterboardUpgrade stages the firmware shipped with the installed packages.
	// It takes effect only after an explicit reboot.
	RouterboardUpgrade = Command{Line: "/system routerboard upgrade"}

	// Reboot restarts the device.
	Reboot = Command{Line: "/system reboot"}
)

// Resource is the decoded output of ResourcePrint.
type Resource struct {
	Version          *string `mapstructure:"version"`
	ArchitectureName *string `mapstructure:"architecture_name"`
	BoardName        *string `mapstructure:"board_name"`
	BadBlocks        *string `mapstructure:"bad_blocks"`
	Uptime           *string `mapstructure:"uptime"`
}

// Architecture returns the architecture name, reporting Cloud Hosted Router
// boards as x86 the way the package mirrors name them.
func (r Resource) Architecture() string {
	if Value(r.BoardName) == "CHR" {
		return "x86"
	}
	return Value(r.ArchitectureName)
}

// PackageUpdate is the decoded output of UpdatePrint.
type PackageUpdate struct {
	InstalledVersion *string `mapstructure:"installed_version"`
	LatestVersion    *string `mapstructure:"latest_version"`
	Status           *string `mapstructure:"status"`
	Channel          *string `mapstructure:"channel"`
}

// Routerboard is the decoded output of RouterboardPrint.
type Routerboard struct {
	CurrentFirmware *string `mapstructure:"current_firmware"`
	UpgradeFirmware *string `mapstructure:"upgrade_firmware"`
	Model           *string `mapstructure:"model"`
	Routerboard     *string `mapstructure:"routerboard"`
}

// Runner executes one console command and returns its output.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// Query runs cmd on r and decodes the requested attributes into T.
// The logger is taken from ctx.
func Query[T any](ctx context.Context, r Runner, cmd Command) (T, error) {
	var zero T
	out, err := r.Run(ctx, cmd.Line)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", cmd.Line, err)
	}
	rec, err := ParseString(out, cmd.Attributes, logr.FromContextOrDiscard(ctx))
	if err != nil {
		return zero, fmt.Errorf("%s: %w", cmd.Line, err)
	}
	return Decode[T](rec)
}
