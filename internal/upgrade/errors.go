package upgrade

import (
	"errors"

	"github.com/imamik/routeros-upgrade/internal/platform/ssh"
)

var (
	// ErrConnect means every SSH connection attempt to the host failed.
	ErrConnect = ssh.ErrConnect

	// ErrParse means a required attribute was missing from command output.
	ErrParse = errors.New("required attribute missing")

	// ErrTimeout means the host did not come back within the reboot timeout.
	ErrTimeout = errors.New("host did not come back online")

	// ErrRegression means the version after reboot is older than expected.
	ErrRegression = errors.New("upgrade did not take effect")
)

// Kind names the error class of err for reports and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConnect):
		return "connect"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRegression):
		return "regression"
	default:
		return "error"
	}
}
