// Package logger builds the process-wide zap logger.
//
// Console output is the colored development layout; an optional log file gets
// JSON records at the same level. Init installs the result as zap's global
// logger so packages can use zap.S() once argument parsing is done.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLevel is used when no level was parsed.
const DefaultLevel = "info"

// offLevel is above every level zap emits.
const offLevel = zapcore.FatalLevel + 1

// ParseLevel maps a --log-level name to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace", "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "critical":
		return zapcore.DPanicLevel, nil
	case "off":
		return offLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
}

// Options configures New.
type Options struct {
	Level   string
	File    string    // JSON log file, appended; empty disables
	Console io.Writer // defaults to os.Stdout
}

// New builds a logger from opts. An unknown level falls back to info and is
// reported together with the logger so the caller can still log it.
func New(opts Options) (*zap.Logger, error) {
	level, levelErr := ParseLevel(opts.Level)

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(console), level),
	}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zap.New(zapcore.NewTee(cores...)), fmt.Errorf("open log file %s: %w", opts.File, err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.DPanicLevel))
	return logger, levelErr
}

// Init builds a logger, installs it globally and returns its sugared form.
// The returned logger is always usable, even alongside an error.
func Init(opts Options) (*zap.SugaredLogger, error) {
	logger, err := New(opts)
	zap.ReplaceGlobals(logger)
	return logger.Sugar(), err
}
