// Package log configures the process-wide zerolog logger for the
// corelens CLI. Diagnostic reports go to stdout; logging goes to
// stderr so piped report output stays clean.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	// Verbose enables debug-level logging.
	Verbose bool

	// Output overrides the log destination. Defaults to os.Stderr
	// wrapped in a console writer.
	Output io.Writer
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the global logger exactly once. Commands
// call it after flag parsing; anything logging earlier gets the
// defaults.
func Configure(cfg Config) {
	once.Do(func() {
		level := zerolog.InfoLevel
		if cfg.Verbose {
			level = zerolog.DebugLevel
		} else if env := os.Getenv("DRGNTOOLS_LOG_LEVEL"); env != "" {
			if parsed, err := zerolog.ParseLevel(env); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)

		writer := cfg.Output
		if writer == nil {
			writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
		}

		base = zerolog.New(writer).With().Timestamp().Logger()
	})
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	Configure(Config{})
	return base
}

// WithComponent returns a child logger annotated with the given
// component name ("runner", "sandbox", ...).
func WithComponent(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}
