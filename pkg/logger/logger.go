// Package logger writes levelled, area-filtered log lines to a rotating file.
// Nothing is written until Initialize has run, so library code and tests can
// log freely.
package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antibyte/retrocpc/pkg/configuration"
)

// LogLevel definiert die verschiedenen Log-Level
type LogLevel int32

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return fmt.Sprintf("LEVEL%d", int32(l))
}

// LogArea definiert die verschiedenen Log-Bereiche
type LogArea string

const (
	AreaVM        LogArea = "vm"
	AreaTimer     LogArea = "timer"
	AreaScheduler LogArea = "scheduler"
	AreaWindow    LogArea = "window"
	AreaSound     LogArea = "sound"
	AreaDriver    LogArea = "driver"
	AreaStorage   LogArea = "storage"
	AreaServer    LogArea = "server"
	AreaAuth      LogArea = "auth"
	AreaConfig    LogArea = "config"
	AreaGeneral   LogArea = "general"
)

// ListAreas gibt alle verfügbaren Bereiche zurück
func ListAreas() []LogArea {
	return []LogArea{
		AreaVM, AreaTimer, AreaScheduler, AreaWindow, AreaSound,
		AreaDriver, AreaStorage, AreaServer, AreaAuth, AreaConfig, AreaGeneral,
	}
}

// Logger owns the log file. The enable flags are read on every call from
// the VM hot path and are therefore atomics; the file is behind mu.
type Logger struct {
	enabled atomic.Bool
	level   atomic.Int32
	areas   map[LogArea]*atomic.Bool

	mu            sync.Mutex
	file          *os.File
	logPath       string
	maxSize       int64
	rotationCount int
	size          int64
}

var (
	globalLogger *Logger
	initOnce     sync.Once
)

// Initialize opens the log file configured in [Debug].
func Initialize() error {
	var err error
	initOnce.Do(func() {
		l := newLogger()
		l.loadConfig()
		if err = l.open(); err == nil {
			globalLogger = l
		}
	})
	return err
}

func newLogger() *Logger {
	l := &Logger{areas: make(map[LogArea]*atomic.Bool)}
	for _, area := range ListAreas() {
		l.areas[area] = new(atomic.Bool)
	}
	return l
}

func (l *Logger) loadConfig() {
	l.enabled.Store(configuration.GetBool("Debug", "enable_debug_logging", true))
	l.level.Store(int32(parseLogLevel(configuration.GetString("Debug", "log_level", "INFO"))))

	l.mu.Lock()
	l.logPath = configuration.GetString("Debug", "log_file", "debug.log")
	l.maxSize = int64(configuration.GetInt("Debug", "max_log_size_mb", 10)) << 20
	l.rotationCount = configuration.GetInt("Debug", "log_rotation_count", 3)
	l.mu.Unlock()

	for area, on := range l.areas {
		on.Store(configuration.GetBool("Debug", "log_"+string(area), false))
	}
}

// open öffnet die Log-Datei zum Anhängen
func (l *Logger) open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.openLocked(os.O_APPEND)
}

func (l *Logger) openLocked(mode int) error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if err := os.MkdirAll(filepath.Dir(l.logPath), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|mode, 0644)
	if err != nil {
		return err
	}
	l.file = f
	l.size = 0
	if st, err := f.Stat(); err == nil {
		l.size = st.Size()
	}
	return nil
}

// rotateLocked shifts debug.log -> debug.log.1 -> ... and drops the oldest.
func (l *Logger) rotateLocked() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.rotationCount > 0 {
		os.Remove(fmt.Sprintf("%s.%d", l.logPath, l.rotationCount))
		for i := l.rotationCount - 1; i >= 1; i-- {
			os.Rename(fmt.Sprintf("%s.%d", l.logPath, i), fmt.Sprintf("%s.%d", l.logPath, i+1))
		}
		os.Rename(l.logPath, l.logPath+".1")
	}
	return l.openLocked(os.O_TRUNC)
}

func (l *Logger) shouldLog(level LogLevel, area LogArea) bool {
	if !l.enabled.Load() || LogLevel(l.level.Load()) > level {
		return false
	}
	on, ok := l.areas[area]
	return ok && on.Load()
}

// write formats one line; skip is the number of frames above write that
// belong to the logger itself.
func (l *Logger) write(skip int, level LogLevel, area LogArea, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	_, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		file = "?"
	}
	entry := fmt.Sprintf("[%s] %s [%s:%d] [%s] %s\n",
		time.Now().Format("2006-01-02 15:04:05.000"),
		level, filepath.Base(file), line, strings.ToUpper(string(area)), message)

	l.mu.Lock()
	if l.file != nil {
		if n, err := l.file.WriteString(entry); err == nil {
			l.size += int64(n)
			if l.maxSize > 0 && l.size > l.maxSize {
				if err := l.rotateLocked(); err != nil {
					log.Printf("[ERROR] [LOGGER] rotation failed: %v", err)
				}
			}
		}
	}
	l.mu.Unlock()

	// Warnungen zusätzlich ins Standard-Log
	if level >= WARN {
		log.Printf("[%s] [%s] %s", level, strings.ToUpper(string(area)), message)
	}
}

// logf is the entry point of every public function; skip counts the
// wrappers between the caller and logf.
func logf(skip int, level LogLevel, area LogArea, format string, args ...interface{}) {
	if l := globalLogger; l != nil && l.shouldLog(level, area) {
		l.write(skip+1, level, area, format, args...)
	}
}

func Debug(area LogArea, format string, args ...interface{}) { logf(1, DEBUG, area, format, args...) }
func Info(area LogArea, format string, args ...interface{})  { logf(1, INFO, area, format, args...) }
func Warn(area LogArea, format string, args ...interface{})  { logf(1, WARN, area, format, args...) }
func Error(area LogArea, format string, args ...interface{}) { logf(1, ERROR, area, format, args...) }

// Fatal logs regardless of level and area switches and exits.
func Fatal(area LogArea, format string, args ...interface{}) {
	if l := globalLogger; l != nil {
		l.write(1, FATAL, area, format, args...)
	}
	log.Fatalf("[FATAL] [%s] %s", strings.ToUpper(string(area)), fmt.Sprintf(format, args...))
}

// Kurzformen für häufig verwendete Bereiche

func DriverDebug(format string, args ...interface{}) { logf(1, DEBUG, AreaDriver, format, args...) }

func StorageDebug(format string, args ...interface{}) { logf(1, DEBUG, AreaStorage, format, args...) }
func StorageInfo(format string, args ...interface{})  { logf(1, INFO, AreaStorage, format, args...) }

func ServerDebug(format string, args ...interface{}) { logf(1, DEBUG, AreaServer, format, args...) }
func ServerInfo(format string, args ...interface{})  { logf(1, INFO, AreaServer, format, args...) }
func ServerWarn(format string, args ...interface{})  { logf(1, WARN, AreaServer, format, args...) }
func ServerError(format string, args ...interface{}) { logf(1, ERROR, AreaServer, format, args...) }

func AuthInfo(format string, args ...interface{}) { logf(1, INFO, AreaAuth, format, args...) }
func AuthWarn(format string, args ...interface{}) { logf(1, WARN, AreaAuth, format, args...) }

func ConfigInfo(format string, args ...interface{}) { logf(1, INFO, AreaConfig, format, args...) }

// Scope prefixes every message with a fixed tag, e.g. a session id, so that
// interleaved VM sessions stay readable in one log file.
type Scope struct {
	area   LogArea
	prefix string
}

// For returns a Scope writing to area with "[tag] " in front of each message.
func For(area LogArea, tag string) Scope {
	return Scope{area: area, prefix: "[" + tag + "] "}
}

func (s Scope) Debug(format string, args ...interface{}) { logf(1, DEBUG, s.area, s.prefix+format, args...) }
func (s Scope) Info(format string, args ...interface{})  { logf(1, INFO, s.area, s.prefix+format, args...) }
func (s Scope) Warn(format string, args ...interface{})  { logf(1, WARN, s.area, s.prefix+format, args...) }
func (s Scope) Error(format string, args ...interface{}) { logf(1, ERROR, s.area, s.prefix+format, args...) }

// Enabled reports whether a message of the given level would be written for the
// scope's area. Callers use it to skip building expensive debug arguments.
func (s Scope) Enabled(level LogLevel) bool {
	l := globalLogger
	return l != nil && l.shouldLog(level, s.area)
}

// ReloadConfig re-reads the [Debug] switches; the log file stays open.
func ReloadConfig() error {
	l := globalLogger
	if l == nil {
		return fmt.Errorf("logger not initialized")
	}
	l.loadConfig()
	return nil
}

// SetArea switches one area on or off at runtime.
func SetArea(area LogArea, on bool) {
	if l := globalLogger; l != nil {
		if flag, ok := l.areas[area]; ok {
			flag.Store(on)
		}
	}
}

func parseLogLevel(level string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	}
	return INFO
}

// Close schließt die Log-Datei
func Close() {
	l := globalLogger
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
