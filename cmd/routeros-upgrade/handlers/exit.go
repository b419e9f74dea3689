package handlers

import (
	"fmt"

	"github.com/imamik/routeros-upgrade/internal/batch"
)

// Process exit codes.
const (
	ExitOK      = batch.ExitOK
	ExitFailed  = batch.ExitFailed
	ExitAborted = batch.ExitAborted
	ExitUsage   = batch.ExitUsage
)

// ExitError carries the process exit code out of a command. Err is printed
// when set; batch failures are already reported and carry no Err.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}
