// Package logging builds the run logger: logr on top of zap.
//
// Verbosity follows the -v count. V(0) carries progress and results,
// V(1) narrates each step, V(2) adds parsed device attributes and V(3) echoes
// raw console lines.
package logging

import (
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MaxVerbosity is the highest level anything is logged at.
const MaxVerbosity = 3

// Options configures the logger.
type Options struct {
	Verbosity int

	// Color enables ANSI level colors. Callers decide based on the terminal.
	Color bool

	// Output defaults to stderr.
	Output io.Writer
}

// New returns a logger and a flush function to call before exit.
func New(opts Options) (logr.Logger, func()) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	v := opts.Verbosity
	if v < 0 {
		v = 0
	}
	if v > MaxVerbosity {
		v = MaxVerbosity
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if opts.Color {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encCfg.CallerKey = ""
	encCfg.StacktraceKey = ""

	// zapr maps V(n) to zap level -n.
	level := zap.NewAtomicLevelAt(zapcore.Level(-v))
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(out), level)
	zl := zap.New(core)

	return zapr.NewLogger(zl), func() { _ = zl.Sync() }
}
