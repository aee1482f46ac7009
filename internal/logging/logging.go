// Package logging sets up the process-wide zap logger and the warning/error
// tallies the driver reads to choose the exit code.
package logging

import (
	"os"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Counters tracks warnings and errors across an entire run, shared by every
// component the driver wires up.
type Counters struct {
	warnings atomic.Int64
	errors   atomic.Int64
}

func (c *Counters) Warn()  { c.warnings.Add(1) }
func (c *Counters) Error() { c.errors.Add(1) }

func (c *Counters) Warnings() int64 { return c.warnings.Load() }
func (c *Counters) Errors() int64   { return c.errors.Load() }

// Logger bundles a zap.SugaredLogger with the run-wide counters so that a
// Warnw/Errorw call also increments the tally used for the final exit-code
// decision.
type Logger struct {
	*zap.SugaredLogger
	Counters *Counters
}

// New builds a Logger at the given level, writing to logFile when set
// (otherwise stderr), matching the --log-level/--log-file global options.
func New(level string, logFile string) (*Logger, error) {
	zlvl, err := zapcore.ParseLevel(level)
	if err != nil {
		zlvl = zapcore.InfoLevel
	}

	var ws zapcore.WriteSyncer
	if logFile != "" {
		f, ferr := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if ferr != nil {
			return nil, ferr
		}
		ws = zapcore.AddSync(f)
	} else {
		ws = zapcore.AddSync(os.Stderr)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, zlvl)

	l := zap.New(core)
	return &Logger{SugaredLogger: l.Sugar(), Counters: &Counters{}}, nil
}

// Warnw logs at warn level and increments the warning tally.
func (l *Logger) Warnw(msg string, kv ...interface{}) {
	l.Counters.Warn()
	l.SugaredLogger.Warnw(msg, kv...)
}

// Errorw logs at error level and increments the error tally.
func (l *Logger) Errorw(msg string, kv ...interface{}) {
	l.Counters.Error()
	l.SugaredLogger.Errorw(msg, kv...)
}
