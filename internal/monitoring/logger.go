// Package monitoring is the QA engine's package-level diagnostic logger. It
// wraps github.com/charmbracelet/log so the severities spec.md §7 assigns
// to error kinds (soft-skip, numerical-degeneracy, fatal/severe) are
// distinguishable, which a bare log.Printf cannot express.
//
// The default logger writes to stderr; tests or an embedding driver may
// replace it wholesale with SetLogger.
package monitoring

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the subset of charmbracelet/log's API the engine depends on,
// narrowed to keep call sites independent of the concrete logger type.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

func newDefault() Logger {
	return charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Level:           charmlog.InfoLevel,
	})
}

var std = newDefault()

// SetLogger replaces the package logger. Passing nil restores the default.
func SetLogger(l Logger) {
	if l == nil {
		std = newDefault()
		return
	}
	std = l
}

// Debugf logs a soft-skip event (spec §7: "logged, no result emitted, no
// failure").
func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }

// Infof logs routine progress, not tied to any spec §7 error kind.
func Infof(format string, args ...interface{}) { std.Infof(format, args...) }

// Warnf logs a numerical-degeneracy condition (spec §7: "logged warning;
// proceed with the unsanitized value").
func Warnf(format string, args ...interface{}) { std.Warnf(format, args...) }

// Errorf logs an input-structural, semantic-precondition, or storage error
// (spec §7: severe/fatal to the current metric, channel, or insert, but the
// run as a whole continues).
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }
