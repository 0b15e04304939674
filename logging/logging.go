// Package logging adapts zap to the schemamigrate.Logger interface and builds
// the loggers used by the migrate command.
package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/getpup/schemamigrate"
)

// ZapLogger implements schemamigrate.Logger on a zap logger. Alternating
// key/value arguments become structured fields.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZap wraps l. A nil l yields a no-op logger.
func NewZap(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{sugar: l.Sugar()}
}

func (z *ZapLogger) Debug(ctx context.Context, msg string, args ...interface{}) {
	z.sugar.Debugw(msg, args...)
}

func (z *ZapLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	z.sugar.Infow(msg, args...)
}

func (z *ZapLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	z.sugar.Errorw(msg, args...)
}

// Sync flushes buffered log entries.
func (z *ZapLogger) Sync() error {
	return z.sugar.Sync()
}

var _ schemamigrate.Logger = (*ZapLogger)(nil)

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.Set(s); err != nil {
		return level, fmt.Errorf("unknown log level %q; supported levels are debug, info, warn, error", s)
	}
	return level, nil
}

// New builds a zap logger writing to stderr. format is "json" or "console".
func New(level zapcore.Level, format string) (*zap.Logger, error) {
	var conf zap.Config
	switch format {
	case "", "console":
		conf = zap.NewDevelopmentConfig()
		conf.DisableStacktrace = true
	case "json":
		conf = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q; supported formats are console, json", format)
	}

	conf.Level = zap.NewAtomicLevelAt(level)
	conf.OutputPaths = []string{"stderr"}
	return conf.Build()
}
