// Package logger builds the single zerolog.Logger the trading engine
// threads through every component (broker, scheduler, strategy engine,
// repositories) as an explicit dependency, plus a global mirror for the
// handful of call sites (signal handlers, init-time panics in main)
// that run before a logger has been constructed and passed down.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration. Level is re-read from config.Load
// once it's available, since the very first log lines (config loading
// itself) have to use a bootstrap default.
type Config struct {
	Level  string // debug, info, warn, error
	Pretty bool   // Enable pretty console output for local/dev runs
}

// New builds a structured logger. Reconstructing it after config.Load
// (as cmd/server/main.go does) picks up the configured level/pretty
// mode in place of the info-level bootstrap defaults main starts with.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	l := zerolog.New(output).
		With().
		Timestamp().
		Caller().
		Logger()
	SetGlobalLogger(l)
	return l
}

// SetGlobalLogger mirrors l into zerolog's package-level Logger, so
// anything logging through zerolog/log's global functions before main
// threads a *zerolog.Logger down still matches the configured level
// and output format.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
