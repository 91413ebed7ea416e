/*
Package log provides the daemon's structured logging, built on zerolog the
same way the teacher corpus's pkg/log does: a package-level logger
initialized once via Init, plus helpers that attach job-scoped fields
(transaction and role) instead of the teacher's cluster-scoped ones
(node/service/task).
*/
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/saxa/pkbrokerd/internal/jobtypes"
)

// Logger is the global logger instance, initialized by Init.
var Logger zerolog.Logger

// Level names a logging threshold.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
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

// WithComponent creates a child logger tagged with a subsystem name, e.g.
// "engine" or "txlist".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithTID creates a child logger tagged with a transaction id.
func WithTID(tid jobtypes.TID) zerolog.Logger {
	return Logger.With().Str("tid", string(tid)).Logger()
}

// WithRole creates a child logger tagged with a job role.
func WithRole(role jobtypes.Role) zerolog.Logger {
	return Logger.With().Str("role", string(role)).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}
