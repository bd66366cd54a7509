// Package log provides structured logging for Switchboard.
// Entries are timestamped lines with a level, a category, and key=value
// fields, appended to a log file. Logging is off unless the CLI enables
// it via --debug or the SWITCHBOARD_DEBUG env var.
package log

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// Category groups related log messages.
type Category string

const (
	CatConfig   Category = "config"   // Configuration loading/saving
	CatDispatch Category = "dispatch" // Dispatch table mutations and lookups
	CatLibrary  Category = "library"  // Session and registrar activity
	CatManifest Category = "manifest" // Manifest loading and commits
	CatJournal  Category = "journal"  // Registration journal writes
	CatDB       Category = "db"       // Database operations
	CatWatcher  Category = "watcher"  // File watcher events
	CatCache    Category = "cache"    // Cache operations
	CatCLI      Category = "cli"      // Command execution
)

// Logger appends structured lines to a file.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	enabled  bool
	minLevel Level
}

var (
	global *Logger
	once   sync.Once
)

// Init opens the log file and installs the global logger. The returned
// cleanup closes the file. Only the first call does anything; later
// calls error so a misconfigured double-init is visible.
func Init(path string) (func(), error) {
	var initErr error
	ran := false
	once.Do(func() {
		ran = true
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G304: path is user-controlled debug log path
		if err != nil {
			initErr = err
			return
		}
		global = &Logger{file: f, enabled: true, minLevel: LevelDebug}
	})
	if initErr != nil {
		return nil, initErr
	}
	if !ran || global == nil {
		return nil, fmt.Errorf("logger already initialized")
	}
	return func() { _ = global.file.Close() }, nil
}

// SetEnabled toggles logging on/off.
func SetEnabled(enabled bool) {
	if global == nil {
		return
	}
	global.mu.Lock()
	global.enabled = enabled
	global.mu.Unlock()
}

// SetMinLevel drops entries below level.
func SetMinLevel(level Level) {
	if global == nil {
		return
	}
	global.mu.Lock()
	global.minLevel = level
	global.mu.Unlock()
}

// Debug logs at debug level.
func Debug(cat Category, msg string, fields ...any) {
	global.emit(LevelDebug, cat, msg, fields)
}

// Info logs at info level.
func Info(cat Category, msg string, fields ...any) {
	global.emit(LevelInfo, cat, msg, fields)
}

// Warn logs at warning level.
func Warn(cat Category, msg string, fields ...any) {
	global.emit(LevelWarn, cat, msg, fields)
}

// Error logs at error level.
func Error(cat Category, msg string, fields ...any) {
	global.emit(LevelError, cat, msg, fields)
}

// ErrorErr logs an error with the error value appended as a field.
func ErrorErr(cat Category, msg string, err error, fields ...any) {
	errText := "<nil>"
	if err != nil {
		errText = err.Error()
	}
	global.emit(LevelError, cat, msg, append(fields, "error", errText))
}

// emit formats and writes one line:
//
//	2025-12-06T10:45:00 [ERROR] [dispatch] message key=value key2=value2
//
// Fields pair up key then value; an orphan trailing key is written with
// a <missing> value rather than dropped.
func (l *Logger) emit(level Level, cat Category, msg string, fields []any) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled || level < l.minLevel {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().Format("2006-01-02T15:04:05"))
	fmt.Fprintf(&b, " [%s] [%s] %s", level, cat, msg)
	for len(fields) >= 2 {
		fmt.Fprintf(&b, " %v=%v", fields[0], fields[1])
		fields = fields[2:]
	}
	if len(fields) == 1 {
		fmt.Fprintf(&b, " %v=<missing>", fields[0])
	}
	b.WriteByte('\n')

	_, _ = l.file.WriteString(b.String())
}
