// Package logging wires the storage core to zerolog, in the style of
// cuemby-warren's pkg/log: a package-level logger, a small Config to select
// JSON vs console output, and per-subsystem child loggers carrying a
// "component" field.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance. Call Init before using it; the zero
// value writes JSON to os.Stdout at info level so packages that forget to
// call Init still produce usable output.
var Logger = zerolog.New(os.Stdout).Level(zerolog.InfoLevel).With().Timestamp().Logger()

// Level mirrors the handful of levels the storage core actually emits.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config configures the global logger.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init (re)configures the global logger. Safe to call multiple times, e.g.
// once from a CLI entry point and again from a test harness.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagging every entry with the given
// subsystem name (e.g. "txn", "kv", "cdc", "store").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}
