package logger

import (
	"fmt"
	"io"
	"os"
)

// Logger takes in a message and tag pairs.
type Logger interface {
	Debug(msg string, tags ...interface{})
	Info(msg string, tags ...interface{})
	Warn(msg string, tags ...interface{})
	Error(msg string, tags ...interface{})
}

type logger struct{ out io.Writer }

// New creates a logger that writes to stdout.
func New() Logger { return &logger{os.Stdout} }

func (l *logger) print(msg string, tags ...interface{}) {
	fmt.Fprintln(l.out, append([]interface{}{msg}, tags...))
}

// Debug creates a debug log entry.
func (l *logger) Debug(msg string, tags ...interface{}) { l.print(msg, tags...) }

// Info creates an info log entry.
func (l *logger) Info(msg string, tags ...interface{}) { l.print(msg, tags...) }

// Warn creates a warn log entry.
func (l *logger) Warn(msg string, tags ...interface{}) { l.print(msg, tags...) }

// Error creates an error log entry.
func (l *logger) Error(msg string, tags ...interface{}) { l.print(msg, tags...) }

// WithRayID returns a Logger that prepends a ray_id tag pair to every
// entry, so a call site that already carries a request's cache ray id
// (internal/cache.RequestContext.RayID; the cache wrapper's debug log
// is the one caller) doesn't have to repeat it.
func WithRayID(l Logger, rayID string) Logger {
	return &rayIDLogger{Logger: l, rayID: rayID}
}

type rayIDLogger struct {
	Logger
	rayID string
}

func (l *rayIDLogger) tagged(tags []interface{}) []interface{} {
	return append([]interface{}{"ray_id", l.rayID}, tags...)
}

func (l *rayIDLogger) Debug(msg string, tags ...interface{}) { l.Logger.Debug(msg, l.tagged(tags)...) }
func (l *rayIDLogger) Info(msg string, tags ...interface{})  { l.Logger.Info(msg, l.tagged(tags)...) }
func (l *rayIDLogger) Warn(msg string, tags ...interface{})  { l.Logger.Warn(msg, l.tagged(tags)...) }
func (l *rayIDLogger) Error(msg string, tags ...interface{}) { l.Logger.Error(msg, l.tagged(tags)...) }
