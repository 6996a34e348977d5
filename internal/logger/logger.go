// Package logger provides leveled logging on top of the standard log package.
// Output goes to stderr so command output on stdout stays clean.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a logging level.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "INFO"
	}
}

// ParseLevel maps a config value to a Level; unknown values are InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

type Logger struct {
	mu     sync.Mutex
	level  Level
	json   bool
	logger *log.Logger
}

var defaultLogger = newLogger(os.Stderr, InfoLevel, "text")

func newLogger(w io.Writer, level Level, format string) *Logger {
	l := &Logger{level: level, json: strings.ToLower(format) == "json"}
	flags := log.LstdFlags | log.Lmicroseconds
	if l.json {
		flags = 0
	}
	l.logger = log.New(w, "", flags)
	return l
}

// Init configures the default logger. format is "text" or "json".
func Init(level, format string) {
	SetOutput(os.Stderr, level, format)
}

// SetOutput points the default logger at w.
func SetOutput(w io.Writer, level, format string) {
	l := newLogger(w, ParseLevel(level), format)
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.level = l.level
	defaultLogger.json = l.json
	defaultLogger.logger = l.logger
}

func (l *Logger) output(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.json {
		line, _ := json.Marshal(map[string]string{
			"time":  time.Now().UTC().Format(time.RFC3339Nano),
			"level": strings.ToLower(level.String()),
			"msg":   msg,
		})
		_ = l.logger.Output(3, string(line))
		return
	}
	_ = l.logger.Output(3, "["+level.String()+"] "+msg)
}

func Debug(format string, args ...interface{}) { defaultLogger.output(DebugLevel, format, args...) }
func Info(format string, args ...interface{})  { defaultLogger.output(InfoLevel, format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.output(WarnLevel, format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.output(ErrorLevel, format, args...) }

// Fatal logs at ErrorLevel and exits.
func Fatal(format string, args ...interface{}) {
	defaultLogger.output(ErrorLevel, format, args...)
	os.Exit(1)
}
