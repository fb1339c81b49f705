// Package log builds the logr.Logger every ODB component accepts by
// constructor injection, backed by zap (go.uber.org/zap) and bridged
// via go-logr/zapr so domain packages depend only on the logr interface.
package log

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the logger a service boot sequence builds once and
// threads through every constructor.
type Options struct {
	Development bool
	Level       int // zapcore level: 0=info, -1=debug, 1=warn, 2=error
	ServiceName string
}

// DevelopmentOptions returns console-encoded, debug-level options
// suitable for local runs and tests.
func DevelopmentOptions() Options {
	return Options{Development: true, Level: -1, ServiceName: "odb"}
}

// NewLogger builds a logr.Logger per opts. Production builds use JSON
// encoding at the requested level; development builds use a
// human-readable console encoder.
func NewLogger(opts Options) logr.Logger {
	var cfg zap.Config
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapcore.Level(opts.Level))

	zl, err := cfg.Build()
	if err != nil {
		// A logger that cannot be built is a boot-time defect; fall back
		// to a no-op logger rather than panicking the caller.
		return logr.Discard()
	}
	if opts.ServiceName != "" {
		zl = zl.Named(opts.ServiceName)
	}
	return zapr.NewLogger(zl)
}

// Sync flushes any buffered log entries. Call before process exit.
func Sync(logger logr.Logger) {
	if sink, ok := logger.GetSink().(zapr.Underlier); ok {
		_ = sink.GetUnderlying().Sync()
	}
}
