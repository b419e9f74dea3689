package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/imamik/routeros-upgrade/internal/batch"
	"github.com/imamik/routeros-upgrade/internal/config"
	"github.com/imamik/routeros-upgrade/internal/logging"
	"github.com/imamik/routeros-upgrade/internal/metrics"
	"github.com/imamik/routeros-upgrade/internal/platform/ssh"
	"github.com/imamik/routeros-upgrade/internal/ui/report"
	"github.com/imamik/routeros-upgrade/internal/upgrade"
	"github.com/imamik/routeros-upgrade/internal/util/clock"
	"github.com/imamik/routeros-upgrade/internal/util/netutil"
)

// Factory functions for dependency injection in tests.
var (
	newConnector = func(cfg *config.Config, clk clock.Clock) (ssh.Connector, error) {
		return ssh.NewClient(&ssh.Config{
			Port:           cfg.Port,
			User:           cfg.Username,
			Password:       cfg.Password,
			DialTimeout:    cfg.Timeout,
			CommandTimeout: cfg.Timeout,
			MaxRetries:     cfg.SSHRetries,
			Clock:          clk,
		})
	}

	newProbe = func(cfg *config.Config) netutil.Probe {
		if cfg.Probe == config.ProbeTCP {
			return netutil.TCPProbe{Port: cfg.Port, Timeout: cfg.Timeout}
		}
		return netutil.ICMPProbe{Privileged: cfg.Privileged}
	}

	newClock = clock.New

	readPassword = promptPassword

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// UpgradeOptions contains options for the upgrade command.
type UpgradeOptions struct {
	ConfigPath string
	Hosts      []string

	// PasswordSet is true when the password was given on the command line,
	// even if empty.
	PasswordSet bool

	// Apply copies explicitly set flags into the configuration.
	Apply func(*config.Config)
}

// Upgrade handles the root command.
//
// It layers the configuration, upgrades every host through the batch runner,
// prints a summary and returns an *ExitError for any non-zero exit code.
func Upgrade(ctx context.Context, opts UpgradeOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return usageError(err)
	}

	color := !cfg.NoColor && isInteractiveTTY()
	log, flush := logging.New(logging.Options{
		Verbosity: cfg.Verbosity,
		Color:     color,
		Output:    stderr,
	})
	defer flush()

	runID := uuid.NewString()
	ctx = logr.NewContext(ctx, log)

	clk := newClock()
	connector, err := newConnector(cfg, clk)
	if err != nil {
		return usageError(fmt.Errorf("failed to create SSH client: %w", err))
	}

	printer := report.NewPrinter(stdout, report.NewStyler(color), report.Width(os.Stdout, 80))

	waiter := &netutil.Waiter{
		Probe:    newProbe(cfg),
		Clock:    clk,
		Progress: printer.Progress,
	}
	orchestrator := upgrade.NewOrchestrator(connector, waiter, cfg.UpgradeOptions(),
		upgrade.WithClock(clk),
		upgrade.WithStateFunc(printer.State),
	)

	recorder := metrics.NewRecorder()
	runner := batch.NewRunner(orchestrator, batch.Config{
		Parallelism:          cfg.Parallel,
		StopOnConnectFailure: cfg.StopOnConnectFailure,
		SkipFirmware:         cfg.SkipFirmware,
		HostDeadline:         cfg.HostDeadline(),
	},
		batch.WithMetrics(recorder),
		batch.WithResultFunc(printer.Result),
	)

	log.V(1).Info("starting run", "run", runID, "hosts", len(opts.Hosts), "parallel", cfg.Parallel, "dryRun", cfg.DryRun)
	rep := runner.Run(ctx, runID, opts.Hosts)
	printer.Summary(rep)

	if cfg.MetricsFile != "" {
		recorder.MarkRun(clk.Now())
		if err := recorder.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Error(err, "failed to write metrics", "path", cfg.MetricsFile)
		}
	}

	if code := rep.ExitCode(); code != ExitOK {
		return &ExitError{Code: code}
	}
	return nil
}

// loadConfig applies defaults, the config file, the environment and flags
// in that order, asks for a missing password and validates the result.
func loadConfig(opts UpgradeOptions) (*config.Config, error) {
	if len(opts.Hosts) == 0 {
		return nil, errors.New("at least one host is required")
	}
	for _, h := range opts.Hosts {
		if strings.TrimSpace(h) == "" {
			return nil, errors.New("host names must not be empty")
		}
	}

	cfg := config.Default()
	if opts.ConfigPath != "" {
		if err := config.LoadFile(cfg, opts.ConfigPath); err != nil {
			return nil, err
		}
	}
	config.ApplyEnv(cfg)
	if opts.Apply != nil {
		opts.Apply(cfg)
	}

	if !opts.PasswordSet && cfg.Password == "" {
		if _, ok := os.LookupEnv(config.EnvPassword); !ok {
			pw, err := readPassword(cfg.Username)
			if err != nil {
				return nil, err
			}
			cfg.Password = pw
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// promptPassword reads the password from the terminal. Without a terminal
// the password stays empty.
func promptPassword(username string) (string, error) {
	fd := int(os.Stdin.Fd()) // #nosec G115
	if !term.IsTerminal(fd) {
		return "", nil
	}
	_, _ = fmt.Fprintf(os.Stderr, "Password for %s: ", username)
	pw, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// isInteractiveTTY returns true if stdout is connected to a terminal.
func isInteractiveTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
