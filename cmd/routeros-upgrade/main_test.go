package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/imamik/routeros-upgrade/cmd/routeros-upgrade/handlers"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, handlers.ExitFailed, exitCode(&handlers.ExitError{Code: handlers.ExitFailed}))
	assert.Equal(t, handlers.ExitAborted, exitCode(&handlers.ExitError{Code: handlers.ExitAborted}))
	assert.Equal(t, handlers.ExitUsage, exitCode(errors.New(`unknown flag: --bogus`)))
}
