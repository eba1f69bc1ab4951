// Package logging provides the process-wide structured logger, independent
// of the per-run event bus in pkg/events (which carries deployment lifecycle
// events, not operational log lines about the engine itself).
package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger type used throughout hostfleet.
type Logger = *logrus.Logger

// Fields carries structured key/value context on a log line.
type Fields = logrus.Fields

// ParseLevel maps the config file's log.level string onto a logrus level,
// defaulting to Info for an empty or unrecognized value.
func ParseLevel(level string) logrus.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return logrus.DebugLevel
	case "WARN", "WARNING":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// New creates a logger with the given level, formatted as JSON so log lines
// compose cleanly with the rotating file sinks in pkg/events.
func New(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(level)
	return logger
}

// WithService keeps the call shape of frameworks/pkg/logging.NewLoggerWithService
// and returns logger itself: WithField builds a logrus.Entry whose Logger is
// the parent logger, so the "service" field is not attached to later entries.
func WithService(logger *logrus.Logger, service string) *logrus.Logger {
	return logger.WithField("service", service).Logger
}
