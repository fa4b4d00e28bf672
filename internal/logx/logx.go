// Package logx configures the process-wide zerolog logger.
package logx

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps debug|info|warn|error to a zerolog level. Anything else
// is info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Setup installs a console logger on w (stdout when nil) as the global
// logger.
func Setup(level string, noColor bool, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: noColor}
	l := zerolog.New(out).Level(ParseLevel(level)).With().Timestamp().Logger()
	log.Logger = l
	return l
}

// JSON installs a JSON logger on w, for running under a log collector.
func JSON(level string, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	l := zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
	log.Logger = l
	return l
}
