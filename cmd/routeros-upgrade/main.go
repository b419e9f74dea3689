// Package main is the entry point for the routeros-upgrade CLI.
//
// routeros-upgrade brings MikroTik RouterOS devices to the latest release of
// their update channel over SSH, then upgrades the RouterBOOT firmware to
// match. Hosts are processed in the order given.
//
// For detailed usage information, run:
//
//	routeros-upgrade --help
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/routeros-upgrade/cmd/routeros-upgrade/commands"
	"github.com/imamik/routeros-upgrade/cmd/routeros-upgrade/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var exitErr *handlers.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return handlers.ExitUsage
}
