package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var logLevelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var logrusLevels = map[LogLevel]logrus.Level{
	LevelDebug: logrus.DebugLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelWarn:  logrus.WarnLevel,
	LevelError: logrus.ErrorLevel,
}

// New builds a logger writing to out. format is "json" or "text".
func New(out io.Writer, level LogLevel, format string) *Logger {
	backend := logrus.New()
	backend.SetOutput(out)
	if strings.EqualFold(format, "json") {
		backend.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05.000"})
	} else {
		backend.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	}
	backend.SetLevel(logrusLevels[level])
	return &Logger{MinLevel: level, backend: backend}
}

// NewFromEnv reads the textual level/format used by LOG_LEVEL and LOG_FORMAT.
func NewFromEnv(level, format string) *Logger {
	return New(os.Stdout, ParseLevel(level), format)
}

// Discard is a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return New(io.Discard, LevelError, "text")
}

func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLogLevel sets the minimum log level
func (l *Logger) SetLogLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.MinLevel = level
	if l.backend != nil {
		l.backend.SetLevel(logrusLevels[level])
	}
}

func (l *Logger) log(level LogLevel, component, message string, args ...interface{}) {
	if level < l.MinLevel {
		return
	}

	l.mu.Lock()
	if l.backend == nil {
		l.backend = logrus.New()
		l.backend.SetLevel(logrusLevels[l.MinLevel])
	}
	backend := l.backend
	l.mu.Unlock()

	entry := logrus.NewEntry(backend)
	if component != "" {
		entry = entry.WithField("component", component)
	}
	entry.Log(logrusLevels[level], fmt.Sprintf(message, args...))
}

// Debug logs a debug message
func (l *Logger) Debug(component, message string, args ...interface{}) {
	l.log(LevelDebug, component, message, args...)
}

// Info logs an info message
func (l *Logger) Info(component, message string, args ...interface{}) {
	l.log(LevelInfo, component, message, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(component, message string, args ...interface{}) {
	l.log(LevelWarn, component, message, args...)
}

// Error logs an error message
func (l *Logger) Error(component, message string, args ...interface{}) {
	l.log(LevelError, component, message, args...)
}

// Fatal logs an error message and exits
func (l *Logger) Fatal(component, message string, args ...interface{}) {
	l.log(LevelError, component, message, args...)
	os.Exit(1)
}

// Name returns the textual level, as printed in startup banners.
func (level LogLevel) Name() string {
	return logLevelNames[level]
}
