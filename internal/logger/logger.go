// Package logger is the analyzer's leveled logger, a thin layer over the
// standard log package.
//
// Levels, least to most verbose:
//
//	Error < Info < Debug < Trace
//
// Messages are written as `event=name key=value ...` so they can be grepped
// and split on whitespace:
//
//	logger.SetVerbosity(2)
//	logger.Infof("event=plan_strategy name=%q legs=%d", name, n)
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// Level is a logging verbosity level.
type Level int

const (
	Error Level = iota // failures
	Info               // lifecycle events
	Debug              // per-request and per-leg detail
	Trace              // per-iteration detail
)

var current atomic.Int32

func init() {
	current.Store(int32(Info))
	log.SetOutput(os.Stderr)
	// 2026/01/25 15:42:10 planner.go:87 [INFO]  event=plan_strategy ...
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}

// SetVerbosity sets the global verbosity. Values outside the known range are
// clamped.
func SetVerbosity(v int) {
	if v < int(Error) {
		v = int(Error)
	}
	if v > int(Trace) {
		v = int(Trace)
	}
	current.Store(int32(v))
}

// Verbosity returns the active level.
func Verbosity() Level {
	return Level(current.Load())
}

// SetOutput redirects log output, mainly for tests.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// ParseLevel accepts a level name (error, info, debug, trace) or its number.
func ParseLevel(v string) (Level, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "error":
		return Error, nil
	case "info", "":
		return Info, nil
	case "debug":
		return Debug, nil
	case "trace":
		return Trace, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < int(Error) || n > int(Trace) {
		return Info, fmt.Errorf("unknown log level %q", v)
	}
	return Level(n), nil
}

func logf(l Level, prefix, format string, args ...any) {
	if Level(current.Load()) >= l {
		// depth 3: log.Output <- logf <- Infof <- caller
		_ = log.Output(3, fmt.Sprintf(prefix+format, args...))
	}
}

// Errorf logs a failure that needs attention.
func Errorf(format string, args ...any) {
	logf(Error, "[ERROR] ", format, args...)
}

// Warnf logs a recoverable problem. It shares the Info threshold.
func Warnf(format string, args ...any) {
	logf(Info, "[WARN]  ", format, args...)
}

// Infof logs a lifecycle event.
func Infof(format string, args ...any) {
	logf(Info, "[INFO]  ", format, args...)
}

func Debugf(format string, args ...any) {
	logf(Debug, "[DEBUG] ", format, args...)
}

func Tracef(format string, args ...any) {
	logf(Trace, "[TRACE] ", format, args...)
}
