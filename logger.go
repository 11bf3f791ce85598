package timely

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the logging contract Initialize hands to every worker it
// starts (built by Config.LogFn, or NewDefaultLogger when that is nil).
// The Cluster allocator backend takes a *logrus.Logger instead, and the
// progress tracker does not log.
// Grounded on pkg/mcast/definition.DefaultLogger's method set, generalized
// into an interface so callers can swap in their own sink (e.g. the
// logrus-backed LogrusLogger below) without touching worker construction.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	// ToggleDebug enables or disables Debug/Debugf output, returning the
	// new state.
	ToggleDebug(enabled bool) bool
}

const calldepth = 3

// DefaultLogger is the logger every worker uses when the caller's Config
// leaves LogFn nil: a thin level-prefixing wrapper around the standard
// library's *log.Logger, matching DefaultLogger's prefixing scheme
// (`[LEVEL] message`) and its default-off Debug level.
type DefaultLogger struct {
	*log.Logger
	debug bool
}

// NewDefaultLogger returns a logger writing to stderr with debug output
// disabled, the same defaults DefaultLogger.NewDefaultLogger uses.
func NewDefaultLogger(name string) *DefaultLogger {
	return &DefaultLogger{Logger: log.New(os.Stderr, name+": ", log.LstdFlags)}
}

func level(prefix, message string) string {
	return fmt.Sprintf("[%s] %s", prefix, message)
}

func (l *DefaultLogger) Info(v ...interface{})  { l.Output(calldepth, level("INFO", fmt.Sprint(v...))) }
func (l *DefaultLogger) Infof(format string, v ...interface{}) {
	l.Output(calldepth, level("INFO", fmt.Sprintf(format, v...)))
}
func (l *DefaultLogger) Warn(v ...interface{}) { l.Output(calldepth, level("WARN", fmt.Sprint(v...))) }
func (l *DefaultLogger) Warnf(format string, v ...interface{}) {
	l.Output(calldepth, level("WARN", fmt.Sprintf(format, v...)))
}
func (l *DefaultLogger) Error(v ...interface{}) {
	l.Output(calldepth, level("ERROR", fmt.Sprint(v...)))
}
func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.Output(calldepth, level("ERROR", fmt.Sprintf(format, v...)))
}
func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.Output(calldepth, level("DEBUG", fmt.Sprint(v...)))
	}
}
func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.Output(calldepth, level("DEBUG", fmt.Sprintf(format, v...)))
	}
}
func (l *DefaultLogger) Fatal(v ...interface{}) {
	l.Output(calldepth, level("FATAL", fmt.Sprint(v...)))
	os.Exit(1)
}
func (l *DefaultLogger) Fatalf(format string, v ...interface{}) {
	l.Output(calldepth, level("FATAL", fmt.Sprintf(format, v...)))
	os.Exit(1)
}
func (l *DefaultLogger) ToggleDebug(enabled bool) bool {
	l.debug = enabled
	return l.debug
}

// LogrusLogger adapts a *logrus.Logger to the Logger contract, so
// structured-logging callers (e.g. the Cluster backend's connection
// lifecycle events) can plug straight into a worker's configured sink
// instead of going through DefaultLogger's plain-text prefixing.
type LogrusLogger struct {
	*logrus.Logger
}

// NewLogrusLogger wraps l, leaving its level and formatter untouched.
func NewLogrusLogger(l *logrus.Logger) *LogrusLogger {
	return &LogrusLogger{Logger: l}
}

// Info, Infof, Warn, Warnf, Error, Errorf, Debug, Debugf, Fatal and Fatalf
// are all promoted directly from the embedded *logrus.Logger, which already
// matches Logger's method set.

// ToggleDebug flips between logrus' Debug and Info levels, returning
// whether debug logging is now enabled.
func (l *LogrusLogger) ToggleDebug(enabled bool) bool {
	if enabled {
		l.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.Logger.SetLevel(logrus.InfoLevel)
	}
	return enabled
}
