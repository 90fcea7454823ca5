// Package log provides the module's single logrus entry point. The server
// (accept loop and connection lifecycle) and the client worker pool log
// through this package rather than importing logrus directly, so the chosen level
// conventions (Debug for protocol events, Warn/Error for failures, never
// Info for per-request noise) stay in one place.
package log

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	std = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	l.Level = logrus.InfoLevel
	return l
}

// SetLevel adjusts the package-wide logger's level.
func SetLevel(level logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	std.Level = level
}

// SetOutput replaces the package-wide logger's destination.
func SetOutput(w interface{ Write([]byte) (int, error) }) {
	mu.Lock()
	defer mu.Unlock()
	std.Out = w
}

// With returns an Entry, prefixed with the given fields, for attaching
// per-connection or per-request context (e.g. "conn_id", "host").
func With(fields logrus.Fields) *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	return std.WithFields(fields)
}

func Debugf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	std.Debugf(format, args...)
}

func Warnf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	std.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	std.Errorf(format, args...)
}
