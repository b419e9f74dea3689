package config

import (
	"os/user"
	"time"

	"github.com/imamik/routeros-upgrade/internal/upgrade"
)

// Probe kinds.
const (
	ProbeICMP = "icmp"
	ProbeTCP  = "tcp"
)

// Config is the configuration of one run.
type Config struct {
	Username string `mapstructure:"username" validate:"required"`

	// Password is never loaded from a file.
	Password string `mapstructure:"-"`

	Port          int           `mapstructure:"port" validate:"min=1,max=65535"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	SSHRetries    int           `mapstructure:"ssh_retries" validate:"min=0,max=100"`
	RebootTimeout time.Duration `mapstructure:"reboot_timeout" validate:"gt=0"`
	PollInterval  time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	Probe         string        `mapstructure:"probe" validate:"oneof=icmp tcp"`
	Privileged    bool          `mapstructure:"privileged"`
	Parallel      int           `mapstructure:"parallel" validate:"min=1,max=64"`

	StopOnConnectFailure bool `mapstructure:"stop_on_connect_failure"`
	SkipFirmware         bool `mapstructure:"skip_firmware"`
	DryRun               bool `mapstructure:"dry_run"`

	Verbosity   int    `mapstructure:"verbosity" validate:"min=0"`
	NoColor     bool   `mapstructure:"no_color"`
	MetricsFile string `mapstructure:"metrics_file"`

	Delays Delays `mapstructure:"delays"`
}

// Delays are the fixed waits around device reboots.
type Delays struct {
	UpdateCheck    time.Duration `mapstructure:"update_check" validate:"min=0"`
	InstallSettle  time.Duration `mapstructure:"install_settle" validate:"min=0"`
	FirmwareReboot time.Duration `mapstructure:"firmware_reboot" validate:"min=0"`
	RebootSettle   time.Duration `mapstructure:"reboot_settle" validate:"min=0"`
	BootGrace      time.Duration `mapstructure:"boot_grace" validate:"min=0"`
}

// Default returns the built-in configuration. The username defaults to the
// local user.
func Default() *Config {
	opts := upgrade.DefaultOptions()
	cfg := &Config{
		Port:          22,
		Timeout:       10 * time.Second,
		SSHRetries:    10,
		RebootTimeout: opts.RebootTimeout,
		PollInterval:  opts.PollInterval,
		Probe:         ProbeICMP,
		Parallel:      1,
		Delays: Delays{
			UpdateCheck:    opts.UpdateCheckDelay,
			InstallSettle:  opts.InstallSettle,
			FirmwareReboot: opts.FirmwareRebootDelay,
			RebootSettle:   opts.RebootSettle,
			BootGrace:      opts.BootGrace,
		},
	}
	if u, err := user.Current(); err == nil {
		cfg.Username = u.Username
	}
	return cfg
}

// UpgradeOptions returns the phase options for the orchestrator.
func (c *Config) UpgradeOptions() upgrade.Options {
	return upgrade.Options{
		RebootTimeout:       c.RebootTimeout,
		PollInterval:        c.PollInterval,
		UpdateCheckDelay:    c.Delays.UpdateCheck,
		InstallSettle:       c.Delays.InstallSettle,
		FirmwareRebootDelay: c.Delays.FirmwareReboot,
		RebootSettle:        c.Delays.RebootSettle,
		BootGrace:           c.Delays.BootGrace,
		DryRun:              c.DryRun,
	}
}

// ConnectBudget is the worst-case time of one connection: every attempt
// times out and retry n waits n seconds.
func (c *Config) ConnectBudget() time.Duration {
	attempts := time.Duration(c.SSHRetries + 1)
	retries := time.Duration(c.SSHRetries)
	return attempts*c.Timeout + retries*(retries+1)/2*time.Second
}

// HostDeadline bounds the total time spent on one host: both phases, each
// with two connections, a handful of command round-trips, the settle delays
// and the reboot wait.
func (c *Config) HostDeadline() time.Duration {
	const commandsPerPhase = 4
	phase := 2*c.ConnectBudget() + commandsPerPhase*c.Timeout + c.UpgradeOptions().Budget()
	return 2 * phase
}
