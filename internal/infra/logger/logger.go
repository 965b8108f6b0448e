// Package logger implements waLog.Logger on top of zap.
package logger

import (
	"strings"

	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger implements waLog.Logger with structured zap output. The module path
// is carried as the "module" field.
type Logger struct {
	module string
	base   *zap.Logger
	sugar  *zap.SugaredLogger
}

// New creates a production JSON logger at the given level.
func New(module string, level string) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	cfg.DisableStacktrace = true
	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return FromZap(module, base), nil
}

// FromZap wraps an existing zap logger.
func FromZap(module string, base *zap.Logger) *Logger {
	l := &Logger{module: module, base: base}
	l.sugar = base.Sugar()
	if module != "" {
		l.sugar = base.With(zap.String("module", module)).Sugar()
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return FromZap("", zap.NewNop())
}

// ParseLevel converts debug|info|warn|error to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Sub creates a sub-logger with a new module name.
func (l *Logger) Sub(module string) waLog.Logger {
	newModule := module
	if l.module != "" {
		newModule = l.module + "/" + module
	}
	return FromZap(newModule, l.base)
}

func (l *Logger) Debugf(msg string, args ...interface{}) { l.sugar.Debugf(msg, args...) }
func (l *Logger) Infof(msg string, args ...interface{})  { l.sugar.Infof(msg, args...) }
func (l *Logger) Warnf(msg string, args ...interface{})  { l.sugar.Warnf(msg, args...) }
func (l *Logger) Errorf(msg string, args ...interface{}) { l.sugar.Errorf(msg, args...) }

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// Ensure Logger implements waLog.Logger.
var _ waLog.Logger = (*Logger)(nil)
