// Package logs implements the small leveled-logging backend used by every
// dagchaind subsystem. It follows the btcsuite/kaspad convention: a single
// Backend fans out formatted lines to one or more io.Writers, and each
// subsystem gets its own tagged Logger with an independently configurable
// level.
package logs

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level is a logging priority.
type Level uint32

// Logging levels, lowest to highest priority.
const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
	LevelOff
)

var levelStrings = map[Level]string{
	LevelTrace:    "TRC",
	LevelDebug:    "DBG",
	LevelInfo:     "INF",
	LevelWarn:     "WRN",
	LevelError:    "ERR",
	LevelCritical: "CRT",
	LevelOff:      "OFF",
}

// String returns the short, fixed-width form of the level.
func (l Level) String() string {
	if s, ok := levelStrings[l]; ok {
		return s
	}
	return "UNK"
}

// LevelFromString parses a level name, defaulting to LevelInfo when the
// string is not recognised.
func LevelFromString(s string) (l Level, ok bool) {
	switch strings.ToLower(s) {
	case "trace":
		return LevelTrace, true
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	case "critical":
		return LevelCritical, true
	case "off":
		return LevelOff, true
	}
	return LevelInfo, false
}

// BackendWriter is a sink that only receives lines at or above minLevel.
type BackendWriter struct {
	w        io.Writer
	minLevel Level
}

// NewBackendWriter wraps w so it only receives records whose level is >= minLevel.
func NewBackendWriter(w io.Writer, minLevel Level) *BackendWriter {
	return &BackendWriter{w: w, minLevel: minLevel}
}

// NewAllLevelsBackendWriter wraps w so it receives every record.
func NewAllLevelsBackendWriter(w io.Writer) *BackendWriter {
	return NewBackendWriter(w, LevelTrace)
}

// NewErrorBackendWriter wraps w so it only receives Error and Critical records.
func NewErrorBackendWriter(w io.Writer) *BackendWriter {
	return NewBackendWriter(w, LevelError)
}

// Backend multiplexes formatted log lines to a set of BackendWriters.
type Backend struct {
	mu      sync.Mutex
	writers []*BackendWriter
}

// NewBackend creates a Backend writing to the given writers.
func NewBackend(writers []*BackendWriter) *Backend {
	return &Backend{writers: writers}
}

func (b *Backend) write(level Level, tag, msg string) {
	line := fmt.Sprintf("%s [%s] %s %s\n",
		time.Now().UTC().Format("2006-01-02 15:04:05.000"), level, tag, msg)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, bw := range b.writers {
		if level >= bw.minLevel {
			io.WriteString(bw.w, line)
		}
	}
}

// Logger returns a tagged Logger backed by b, defaulting to LevelInfo.
func (b *Backend) Logger(tag string) Logger {
	return &logger{backend: b, tag: tag, level: uint32(LevelInfo)}
}

// Logger is a per-subsystem leveled logger.
type Logger interface {
	Tracef(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Criticalf(format string, args ...interface{})

	Trace(args ...interface{})
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Critical(args ...interface{})

	Level() Level
	SetLevel(level Level)
}

type logger struct {
	backend *Backend
	tag     string
	level   uint32
}

func (l *logger) Level() Level      { return Level(l.level) }
func (l *logger) SetLevel(lv Level) { l.level = uint32(lv) }

func (l *logger) logf(level Level, format string, args ...interface{}) {
	if level < l.Level() {
		return
	}
	l.backend.write(level, l.tag, fmt.Sprintf(format, args...))
}

func (l *logger) log(level Level, args ...interface{}) {
	if level < l.Level() {
		return
	}
	l.backend.write(level, l.tag, fmt.Sprint(args...))
}

func (l *logger) Tracef(format string, args ...interface{})    { l.logf(LevelTrace, format, args...) }
func (l *logger) Debugf(format string, args ...interface{})    { l.logf(LevelDebug, format, args...) }
func (l *logger) Infof(format string, args ...interface{})     { l.logf(LevelInfo, format, args...) }
func (l *logger) Warnf(format string, args ...interface{})     { l.logf(LevelWarn, format, args...) }
func (l *logger) Errorf(format string, args ...interface{})    { l.logf(LevelError, format, args...) }
func (l *logger) Criticalf(format string, args ...interface{}) { l.logf(LevelCritical, format, args...) }

func (l *logger) Trace(args ...interface{})    { l.log(LevelTrace, args...) }
func (l *logger) Debug(args ...interface{})    { l.log(LevelDebug, args...) }
func (l *logger) Info(args ...interface{})     { l.log(LevelInfo, args...) }
func (l *logger) Warn(args ...interface{})     { l.log(LevelWarn, args...) }
func (l *logger) Error(args ...interface{})    { l.log(LevelError, args...) }
func (l *logger) Critical(args ...interface{}) { l.log(LevelCritical, args...) }

// Disabled is a Logger that discards everything; used as a zero value so
// packages can log before InitLogRotators/SetLevel wiring happens without a
// nil-pointer panic.
var Disabled Logger = NewBackend([]*BackendWriter{NewAllLevelsBackendWriter(io.Discard)}).Logger("OFF")
