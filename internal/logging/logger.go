// Package logging builds the zap loggers used across platen.
// The CLI constructs one logger at startup from the site's logging config;
// library packages receive it (or a Named child) instead of constructing
// their own. Tests use Nop().
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options mirrors config.LoggingConfig without importing it, to keep this
// package dependency-free within the module.
type Options struct {
	Level   string // debug, info, warn, error
	Format  string // console, json
	File    string // optional log file path; empty means stderr only
	Verbose bool   // forces debug level regardless of Level
}

// New constructs a zap logger from the given options.
func New(opts Options) (*zap.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q (want console or json)", opts.Format)
	}

	sink := zapcore.Lock(os.Stderr)
	core := zapcore.NewCore(enc, sink, level)

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level)
		core = zapcore.NewTee(core, fileCore)
	}

	return zap.New(core), nil
}

// Nop returns a no-op logger for tests and quiet paths.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}
