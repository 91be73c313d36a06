package core

import (
	"fmt"
	"log"
	"strings"
)

// Logger is the structured logger used by runners and routines.
// Implementations can forward to logrus, zap, slog and the like.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is a key-value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F creates a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// defaultLogger is used by routines that have no logger of their own.
var defaultLogger Logger = NewDefaultLogger()

// DefaultLogger writes through the standard log package as
// "[LEVEL] msg {key: value, ...}".
type DefaultLogger struct {
	// Verbose enables Debug output.
	Verbose bool
}

// NewDefaultLogger creates a DefaultLogger with Debug output disabled.
func NewDefaultLogger() *DefaultLogger {
	return &DefaultLogger{}
}

func (l *DefaultLogger) Debug(msg string, fields ...Field) {
	if l.Verbose {
		l.write("DEBUG", msg, fields)
	}
}

func (l *DefaultLogger) Info(msg string, fields ...Field)  { l.write("INFO", msg, fields) }
func (l *DefaultLogger) Warn(msg string, fields ...Field)  { l.write("WARN", msg, fields) }
func (l *DefaultLogger) Error(msg string, fields ...Field) { l.write("ERROR", msg, fields) }

func (l *DefaultLogger) write(level, msg string, fields []Field) {
	log.Println(formatLogLine(level, msg, fields))
}

func formatLogLine(level, msg string, fields []Field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	if len(fields) == 0 {
		return b.String()
	}
	b.WriteString(" {")
	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", f.Key, f.Value)
	}
	b.WriteString("}")
	return b.String()
}

// NoOpLogger discards everything. Useful in tests.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
