// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing
// and flag binding. Command execution is delegated to handler functions in the
// handlers package.
package commands

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/imamik/routeros-upgrade/cmd/routeros-upgrade/handlers"
	"github.com/imamik/routeros-upgrade/internal/config"
)

// flags holds the raw flag values. Only flags set on the command line
// override the configuration file and environment.
type flags struct {
	configPath    string
	timeout       int
	sshRetries    int
	rebootTimeout int
	username      string
	password      string
	verbose       int
	sshStop       bool
	dryRun        bool
	skipFirmware  bool
	parallel      int
	port          int
	probe         string
	privileged    bool
	metricsFile   string
	noColor       bool
}

// Root returns the root command. It upgrades every host given as argument
// and carries the version and completion subcommands.
func Root() *cobra.Command {
	cmd, _ := newRoot()
	return cmd
}

func newRoot() (*cobra.Command, *flags) {
	f := &flags{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "routeros-upgrade [flags] HOST...",
		Short: "Upgrade RouterOS and RouterBOOT firmware on MikroTik devices",
		Long: `Upgrade RouterOS and RouterBOOT firmware on MikroTik devices over SSH.

For each host, in the order given:
1. Check the update channel and install the latest RouterOS release
2. Wait for the device to reboot and verify the installed version
3. Upgrade the RouterBOOT firmware and reboot again if it is behind

The firmware is only touched after a successful RouterOS upgrade.

Exit codes:
  0  every attempted phase succeeded
  1  at least one host failed
  2  the batch was stopped after a connection failure (--sshstop)
  3  invalid invocation or configuration

Settings are read from --config, then ROUTEROS_* environment variables, then
flags. The password is taken from --password, ROUTEROS_PASSWORD or an
interactive prompt.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return handlers.Upgrade(cmd.Context(), handlers.UpgradeOptions{
				ConfigPath:  f.configPath,
				Hosts:       args,
				PasswordSet: cmd.Flags().Changed("password"),
				Apply:       f.apply(cmd.Flags()),
			})
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML file with default settings")
	fs.IntVarP(&f.timeout, "timeout", "t", int(defaults.Timeout/time.Second), "SSH connect and command timeout in seconds")
	fs.IntVarP(&f.sshRetries, "sshretries", "R", defaults.SSHRetries, "SSH connection retries")
	fs.IntVarP(&f.rebootTimeout, "reboot-timeout", "r", int(defaults.RebootTimeout/time.Second), "Seconds to wait for a device to come back after a reboot")
	fs.StringVarP(&f.username, "username", "u", "", "SSH username (defaults to the local user)")
	fs.StringVarP(&f.password, "password", "p", "", "SSH password")
	fs.CountVarP(&f.verbose, "verbose", "v", "Increase verbosity (repeat up to -vvv)")
	fs.BoolVarP(&f.sshStop, "sshstop", "s", false, "Stop the batch on the first host that cannot be reached")
	fs.BoolVarP(&f.dryRun, "dry-run", "n", false, "Check for upgrades without installing anything")
	fs.BoolVar(&f.skipFirmware, "skip-firmware", false, "Upgrade RouterOS only")
	fs.IntVarP(&f.parallel, "parallel", "P", defaults.Parallel, "Number of hosts upgraded at once")
	fs.IntVar(&f.port, "port", defaults.Port, "SSH port")
	fs.StringVar(&f.probe, "probe", defaults.Probe, "Reachability probe after reboot: icmp or tcp")
	fs.BoolVar(&f.privileged, "privileged", false, "Use raw ICMP sockets for the icmp probe")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd, f
}

// apply returns a function copying the flags set on the command line into a
// configuration.
func (f *flags) apply(fs *pflag.FlagSet) func(*config.Config) {
	return func(cfg *config.Config) {
		set := func(name string, fn func()) {
			if fs.Changed(name) {
				fn()
			}
		}
		set("timeout", func() { cfg.Timeout = time.Duration(f.timeout) * time.Second })
		set("sshretries", func() { cfg.SSHRetries = f.sshRetries })
		set("reboot-timeout", func() { cfg.RebootTimeout = time.Duration(f.rebootTimeout) * time.Second })
		set("username", func() { cfg.Username = f.username })
		set("password", func() { cfg.Password = f.password })
		set("verbose", func() { cfg.Verbosity = f.verbose })
		set("sshstop", func() { cfg.StopOnConnectFailure = f.sshStop })
		set("dry-run", func() { cfg.DryRun = f.dryRun })
		set("skip-firmware", func() { cfg.SkipFirmware = f.skipFirmware })
		set("parallel", func() { cfg.Parallel = f.parallel })
		set("port", func() { cfg.Port = f.port })
		set("probe", func() { cfg.Probe = f.probe })
		set("privileged", func() { cfg.Privileged = f.privileged })
		set("metrics-file", func() { cfg.MetricsFile = f.metricsFile })
		set("no-color", func() { cfg.NoColor = f.noColor })
	}
}
