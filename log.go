package nemulo

import (
	"fmt"
	"io"
	"os"

	"github.com/logrusorgru/aurora"
)

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Public
//
//
//
//////////////////////////////////////////////////////////////////////////////

// Level represents a logging level.
type Level uint32

// Possible logging levels. Each level includes the ones above it.
const (
	LevelError Level = iota + 1
	LevelWarn
	LevelInfo
	LevelDebug
)

// LoggerInterface is an interface that should be implemented by loggers used
// with the library. Logger provides a basic implementation, but it's also
// compatible with libraries such as Logrus.
type LoggerInterface interface {
	// Debugf logs a debug message using Printf conventions.
	Debugf(format string, v ...interface{})

	// Errorf logs a warning message using Printf conventions.
	Errorf(format string, v ...interface{})

	// Infof logs an informational message using Printf conventions.
	Infof(format string, v ...interface{})

	// Warnf logs a warning message using Printf conventions.
	Warnf(format string, v ...interface{})
}

// Logger is a basic implementation of LoggerInterface.
type Logger struct {
	// Color colorizes level tags in output with ANSI escapes.
	Color bool

	// Level is the minimum logging level that will be emitted by this logger.
	//
	// For example, a Level set to LevelWarn will emit warnings and errors, but
	// not informational or debug messages.
	//
	// Always set this with a constant like LevelWarn because the individual
	// values are not guaranteed to be stable.
	Level Level

	// Out is where debug and informational messages are written. Defaults to
	// stdout. Warnings and errors always go to Err.
	Out io.Writer

	// Err is where warnings and errors are written. Defaults to stderr.
	Err io.Writer
}

// ParseLevel converts a level name like "debug" or "warn" into a Level.
func ParseLevel(name string) (Level, error) {
	switch name {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	}

	return 0, fmt.Errorf("unknown log level: %q", name)
}

// Debugf logs a debug message using Printf conventions.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if l.Level >= LevelDebug {
		l.printf(l.stdout(), l.au().Faint("[DEBUG]"), format, v...)
	}
}

// Errorf logs a warning message using Printf conventions.
func (l *Logger) Errorf(format string, v ...interface{}) {
	// Unlike the other levels, an error is always printed as long as the
	// level is set to something.
	if l.Level >= LevelError {
		l.printf(l.stderr(), l.au().Red("[ERROR]"), format, v...)
	}
}

// Infof logs an informational message using Printf conventions.
func (l *Logger) Infof(format string, v ...interface{}) {
	if l.Level >= LevelInfo {
		l.printf(l.stdout(), l.au().Cyan("[INFO] "), format, v...)
	}
}

// Warnf logs a warning message using Printf conventions.
func (l *Logger) Warnf(format string, v ...interface{}) {
	if l.Level >= LevelWarn {
		l.printf(l.stderr(), l.au().Yellow("[WARN] "), format, v...)
	}
}

//////////////////////////////////////////////////////////////////////////////
//
//
//
// Private
//
//
//
//////////////////////////////////////////////////////////////////////////////

func (l *Logger) au() aurora.Aurora {
	return aurora.NewAurora(l.Color)
}

func (l *Logger) printf(w io.Writer, tag aurora.Value, format string, v ...interface{}) {
	fmt.Fprintf(w, "%v %s\n", tag, fmt.Sprintf(format, v...))
}

func (l *Logger) stderr() io.Writer {
	if l.Err != nil {
		return l.Err
	}
	return os.Stderr
}

func (l *Logger) stdout() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stdout
}

// Ensure that Logger conforms to LoggerInterface.
var _ LoggerInterface = &Logger{}
