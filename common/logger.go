// Leveled status logging for all slurmgpu components.
//
// By default messages go to stderr.  The daemon redirects the logger to the
// Unix syslog once it has started, so that interactive commands stay quiet on
// the terminal while the long-running service logs like any other system
// daemon.

package common

import (
	"fmt"
	"log/syslog"
	"os"
	"sync"
)

type LogLevel int

const (
	LogLevelCritical LogLevel = iota
	LogLevelError
	LogLevelWarning
	LogLevelInfo
)

type StatusLogger struct {
	mu    sync.Mutex
	level LogLevel
	sys   *syslog.Writer
}

// MT: Constant after initialization; thread-safe
var Log = Default()

func Default() *StatusLogger {
	return &StatusLogger{level: LogLevelWarning}
}

func (l *StatusLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetUnderlying routes all subsequent messages to the given syslog writer
// instead of stderr.
func (l *StatusLogger) SetUnderlying(w *syslog.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sys = w
}

func (l *StatusLogger) Infof(format string, args ...any) {
	l.emit(LogLevelInfo, "INFO", format, args...)
}

func (l *StatusLogger) Warningf(format string, args ...any) {
	l.emit(LogLevelWarning, "WARNING", format, args...)
}

func (l *StatusLogger) Errorf(format string, args ...any) {
	l.emit(LogLevelError, "ERROR", format, args...)
}

func (l *StatusLogger) Criticalf(format string, args ...any) {
	l.emit(LogLevelCritical, "CRITICAL", format, args...)
}

func (l *StatusLogger) emit(level LogLevel, tag, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level > l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.sys != nil {
		switch level {
		case LogLevelCritical:
			l.sys.Crit(msg)
		case LogLevelError:
			l.sys.Err(msg)
		case LogLevelWarning:
			l.sys.Warning(msg)
		default:
			l.sys.Info(msg)
		}
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %s\n", tag, msg)
}
