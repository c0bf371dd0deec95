// Package logger provides a leveled, file-backed logger shared by all packages.
//
// The logger is process-wide: Init configures it once at startup and every
// package logs through the package-level functions. Until Init is called, and
// whenever the configured path is empty, output is discarded.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel is the minimum severity that is written.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the lower-case name of the level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

const (
	maxLogSizeMB  = 10
	maxLogBackups = 3
)

var (
	mu     sync.Mutex
	out    = log.New(io.Discard, "", log.LstdFlags|log.Lmicroseconds)
	level  = LevelWarning
	closer io.Closer
)

// Init opens the log file at path and sets the minimum level.
// The file is rotated once it grows past maxLogSizeMB.
func Init(path string, lvl LogLevel) error {
	mu.Lock()
	defer mu.Unlock()
	return initLocked(path, lvl)
}

// Reinit closes the current log file and opens a new one.
func Reinit(path string, lvl LogLevel) error {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	return initLocked(path, lvl)
}

// Close flushes and closes the log file. Subsequent output is discarded.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func initLocked(path string, lvl LogLevel) error {
	level = lvl
	path = strings.TrimSpace(path)
	if path == "" {
		out.SetOutput(io.Discard)
		return nil
	}

	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
	}
	// Touch the file so a bad path fails here rather than on the first write.
	if _, err := w.Write(nil); err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	out.SetOutput(w)
	closer = w
	return nil
}

func closeLocked() {
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
	out.SetOutput(io.Discard)
}

// SetOutput redirects log output to w. Used by tests.
func SetOutput(w io.Writer, lvl LogLevel) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	level = lvl
	out.SetOutput(w)
}

func logf(lvl LogLevel, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if lvl < level {
		return
	}
	out.Printf("[%s] %s", strings.ToUpper(lvl.String()), fmt.Sprintf(format, args...))
}

// Debug logs at debug level.
func Debug(format string, args ...interface{}) {
	logf(LevelDebug, format, args...)
}

// Info logs at info level.
func Info(format string, args ...interface{}) {
	logf(LevelInfo, format, args...)
}

// Warning logs at warning level.
func Warning(format string, args ...interface{}) {
	logf(LevelWarning, format, args...)
}

// Error logs at error level.
func Error(format string, args ...interface{}) {
	logf(LevelError, format, args...)
}

// ErrorWithErr logs at error level and appends the error.
func ErrorWithErr(err error, format string, args ...interface{}) {
	logf(LevelError, "%s error=%v", fmt.Sprintf(format, args...), err)
}

// ParseLevel converts a level name to a LogLevel, defaulting to warning.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warning", "warn":
		return LevelWarning
	case "error":
		return LevelError
	default:
		return LevelWarning
	}
}
