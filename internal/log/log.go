// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package log provides logging utilities for the call-tree profiler.
package log

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DataDog/dd-calltree-go/internal/version"
)

// Level specifies the logging level that the log package prints at.
type Level int

const (
	// LevelDebug represents debug level messages.
	LevelDebug Level = iota
	// LevelInfo represents informational messages.
	LevelInfo
	// LevelWarn represents warning and errors.
	LevelWarn
	// LevelError represents errors only.
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger implementations are able to log given messages that the profiler might
// output.
type Logger interface {
	// Log prints the given message.
	Log(msg string)
}

var prefixMsg = fmt.Sprintf("Datadog CallTree %s", version.Tag)

var (
	mu             sync.RWMutex // guards below fields
	levelThreshold = LevelWarn
	logger         Logger = newDefaultLogger()
)

func init() {
	if v, err := strconv.ParseBool(os.Getenv("DD_TRACE_DEBUG")); err == nil && v {
		levelThreshold = LevelDebug
	}
	setLoggingRate(os.Getenv("DD_LOGGING_RATE"))
}

// UseLogger sets l as the active logger and returns a function to restore the
// previous logger. The return value is mostly useful when testing.
func UseLogger(l Logger) (undo func()) {
	mu.Lock()
	defer mu.Unlock()
	old := logger
	logger = l
	return func() {
		mu.Lock()
		defer mu.Unlock()
		logger = old
	}
}

// SetLevel sets the given lvl as the log threshold.
func SetLevel(lvl Level) {
	mu.Lock()
	defer mu.Unlock()
	levelThreshold = lvl
}

// DebugEnabled returns true if debug log messages are enabled.
func DebugEnabled() bool {
	mu.RLock()
	lvl := levelThreshold
	mu.RUnlock()
	return lvl <= LevelDebug
}

func enabled(lvl Level) bool {
	mu.RLock()
	defer mu.RUnlock()
	return lvl >= levelThreshold
}

// Debug prints the given message if the level is LevelDebug.
func Debug(fmt string, a ...interface{}) {
	if !enabled(LevelDebug) {
		return
	}
	printMsg(LevelDebug, fmt, a...)
}

// Info prints an informational message.
func Info(fmt string, a ...interface{}) {
	if !enabled(LevelInfo) {
		return
	}
	printMsg(LevelInfo, fmt, a...)
}

// Warn prints a warning message.
func Warn(fmt string, a ...interface{}) {
	if !enabled(LevelWarn) {
		return
	}
	printMsg(LevelWarn, fmt, a...)
}

var (
	errmu   sync.RWMutex                // guards below fields
	erragg  = map[string]*errorReport{} // aggregated errors
	errrate = time.Minute               // the rate at which errors are reported
	erron   bool                        // true if errors are being aggregated
)

func setLoggingRate(v string) {
	if v == "" {
		return
	}
	if sec, err := strconv.ParseInt(v, 10, 64); err != nil || sec < 0 {
		Warn("Invalid value for DD_LOGGING_RATE: %q", v)
	} else {
		errrate = time.Duration(sec) * time.Second
	}
}

type errorReport struct {
	first time.Time // time when first error occurred
	err   error
	count uint64
}

// defaultErrorLimit specifies the maximum number of errors gathered in a report.
const defaultErrorLimit = 200

// Error reports an error. Errors get aggregated by format and logged
// once a minute or once every DD_LOGGING_RATE number of seconds.
func Error(format string, a ...interface{}) {
	key := format // format should 99.9% of the time be constant
	if reachedLimit(key) {
		// avoid too much lock contention on spammy errors
		return
	}
	errmu.Lock()
	defer errmu.Unlock()
	report, ok := erragg[key]
	if !ok {
		erragg[key] = &errorReport{
			err:   fmt.Errorf(format, a...),
			first: time.Now(),
		}
		report = erragg[key]
	}
	report.count++
	if errrate == 0 {
		flushLocked()
		return
	}
	if !erron {
		erron = true
		time.AfterFunc(errrate, Flush)
	}
}

// reachedLimit reports whether the maximum count has been reached for this key.
func reachedLimit(key string) bool {
	errmu.RLock()
	e, ok := erragg[key]
	confirm := ok && e.count > defaultErrorLimit
	errmu.RUnlock()
	return confirm
}

// Flush flushes and resets all aggregated errors to the logger.
func Flush() {
	errmu.Lock()
	defer errmu.Unlock()
	flushLocked()
}

func flushLocked() {
	for _, report := range erragg {
		msg := fmt.Sprintf("%v", report.err)
		if report.count > defaultErrorLimit {
			msg += fmt.Sprintf(", %d+ additional messages skipped (first occurrence: %s)", defaultErrorLimit, report.first.Format(time.RFC822))
		} else if report.count > 1 {
			msg += fmt.Sprintf(", %d additional messages skipped (first occurrence: %s)", report.count-1, report.first.Format(time.RFC822))
		}
		printMsg(LevelError, "%s", msg)
	}
	for k := range erragg {
		delete(erragg, k)
	}
	erron = false
}

func printMsg(lvl Level, format string, a ...interface{}) {
	msg := fmt.Sprintf("%s %s: %s", prefixMsg, lvl, fmt.Sprintf(format, a...))
	mu.RLock()
	defer mu.RUnlock()
	if ll, ok := logger.(*defaultLogger); ok {
		ll.logAt(lvl, msg)
		return
	}
	logger.Log(msg)
}

// defaultLogger writes through a dedicated logrus logger so that the
// application's own logrus configuration is left untouched.
type defaultLogger struct{ l *logrus.Logger }

func newDefaultLogger() *defaultLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.DebugLevel) // filtering happens in this package
	l.SetFormatter(&logrus.TextFormatter{
		DisableQuote:           true,
		FullTimestamp:          true,
		DisableLevelTruncation: true,
	})
	return &defaultLogger{l: l}
}

func (p *defaultLogger) Log(msg string) { p.l.Print(msg) }

func (p *defaultLogger) logAt(lvl Level, msg string) {
	switch lvl {
	case LevelDebug:
		p.l.Debug(msg)
	case LevelInfo:
		p.l.Info(msg)
	case LevelWarn:
		p.l.Warn(msg)
	default:
		p.l.Error(msg)
	}
}

// DiscardLogger discards every call to Log().
type DiscardLogger struct{}

// Log implements Logger.
func (d DiscardLogger) Log(_ string) {}

// RecordLogger records every call to Log() and makes it available via Logs().
type RecordLogger struct {
	m      sync.Mutex
	logs   []string
	ignore []string // a log is ignored if it contains a string in ignored
}

// Ignore adds substrings to the ignore field of RecordLogger, allowing
// the RecordLogger to ignore attempts to log strings with certain substrings.
func (r *RecordLogger) Ignore(substrings ...string) {
	r.m.Lock()
	defer r.m.Unlock()
	r.ignore = append(r.ignore, substrings...)
}

// Log implements Logger.
func (r *RecordLogger) Log(msg string) {
	r.m.Lock()
	defer r.m.Unlock()
	for _, ignored := range r.ignore {
		if strings.Contains(msg, ignored) {
			return
		}
	}
	r.logs = append(r.logs, msg)
}

// Logs returns the ordered list of logs recorded by the logger.
func (r *RecordLogger) Logs() []string {
	r.m.Lock()
	defer r.m.Unlock()
	copied := make([]string, len(r.logs))
	copy(copied, r.logs)
	return copied
}

// Reset resets the logger's internal logs
func (r *RecordLogger) Reset() {
	r.m.Lock()
	defer r.m.Unlock()
	r.logs = r.logs[:0]
	r.ignore = r.ignore[:0]
}
