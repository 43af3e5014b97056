// Package logging builds the structured logger shared by the engine and its
// components. Components receive a *log.Logger and never own output setup.
package logging

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// Prefix tags every log line emitted by ml.
const Prefix = "ml"

// New returns a logger writing to w at the named level. Unknown level names
// fall back to warn so a typo never silences errors.
func New(w io.Writer, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix: Prefix,
	})
	logger.SetLevel(ParseLevel(level))
	return logger
}

// ParseLevel maps a config or flag value to a log level.
func ParseLevel(level string) log.Level {
	parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return log.WarnLevel
	}
	return parsed
}

// LevelForVerbosity maps a repeated -v count onto a level name.
func LevelForVerbosity(base string, verbosity int) string {
	switch {
	case verbosity >= 2:
		return "debug"
	case verbosity == 1:
		return "info"
	default:
		return base
	}
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return Discard()
	}
	return logger
}
