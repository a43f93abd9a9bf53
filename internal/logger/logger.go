// Package logger configures the process-global structured logger and hands
// out component-scoped children of it.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process-global logger. Initialize must be called once at
// startup before any component logger is used.
var Log zerolog.Logger

// Initialize configures the global logger from a level name and a
// pretty/JSON output switch.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().
		Str("service", "signalstudio").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// GetLogger returns the global logger.
func GetLogger() *zerolog.Logger {
	return &Log
}

// Security returns a logger scoped to auth/session events.
func Security() *zerolog.Logger {
	l := Log.With().Str("component", "security").Logger()
	return &l
}

// Recording returns a logger scoped to the lazy session manager.
func Recording() *zerolog.Logger {
	l := Log.With().Str("component", "recording").Logger()
	return &l
}

// Tasks returns a logger scoped to the convert/concat pipeline.
func Tasks() *zerolog.Logger {
	l := Log.With().Str("component", "tasks").Logger()
	return &l
}

// Sandbox returns a logger scoped to the analysis sandbox.
func Sandbox() *zerolog.Logger {
	l := Log.With().Str("component", "sandbox").Logger()
	return &l
}

// Storage returns a logger scoped to the file store.
func Storage() *zerolog.Logger {
	l := Log.With().Str("component", "storage").Logger()
	return &l
}

// HTTP returns a logger scoped to the HTTP boundary.
func HTTP() *zerolog.Logger {
	l := Log.With().Str("component", "http").Logger()
	return &l
}

// Metrics returns a logger scoped to the metrics collector.
func Metrics() *zerolog.Logger {
	l := Log.With().Str("component", "metrics").Logger()
	return &l
}

// Database returns a logger scoped to the SQLite layer.
func Database() *zerolog.Logger {
	l := Log.With().Str("component", "database").Logger()
	return &l
}
