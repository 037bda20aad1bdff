package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type contextKey string

// RequestIDKey is the context key under which the HTTP layer stores the request ID
const RequestIDKey contextKey = "request_id"

// Logger provides structured logging capabilities
type Logger struct {
	entry *logrus.Entry
}

// LoggerConfig contains configuration for the logger
type LoggerConfig struct {
	Level     string `json:"level"` // debug, info, warn, error
	Component string `json:"component"`
	Output    string `json:"output"` // "stdout", "stderr", or file path
	Format    string `json:"format"` // "json" or "text"
}

// NewLogger creates a new logger instance
func NewLogger(config *LoggerConfig) *Logger {
	if config == nil {
		config = &LoggerConfig{
			Level:     "info",
			Component: "system",
			Output:    "stdout",
			Format:    "json",
		}
	}

	base := logrus.New()
	base.SetOutput(openOutput(config.Output))

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if strings.EqualFold(config.Format, "text") {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	component := config.Component
	if component == "" {
		component = "system"
	}
	return &Logger{entry: base.WithField("component", component)}
}

// NewTestLogger returns a logger writing text to w, for assertions on output
func NewTestLogger(w io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return &Logger{entry: base.WithField("component", "test")}
}

func openOutput(output string) io.Writer {
	switch output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		if file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666); err == nil {
			return file
		}
		return os.Stdout
	}
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithComponent creates a logger with a specific component name
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// WithError attaches err to the logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

// WithContext attaches the request ID carried by ctx, if any
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return l.WithField("request_id", id)
	}
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(message string) {
	l.entry.Debug(message)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(message string) {
	l.entry.Info(message)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string) {
	l.entry.Warn(message)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(message string, err error) {
	if err != nil {
		l.entry.WithError(err).Error(message)
		return
	}
	l.entry.Error(message)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(message string, err error) {
	l.entry.WithError(err).Fatal(message)
}

// Fatalf logs a formatted fatal message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

// LogOperation logs the start and end of an operation
func (l *Logger) LogOperation(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	logger := l.WithContext(ctx).WithField("operation", operation)
	logger.Debug("Operation started")

	err := fn()
	logger = logger.WithField("duration_ms", time.Since(start).Milliseconds())
	if err != nil {
		logger.Error("Operation failed", err)
	} else {
		logger.Debug("Operation completed")
	}
	return err
}

// PerformanceLogger provides performance-specific logging
type PerformanceLogger struct {
	logger *Logger
}

// NewPerformanceLogger creates a new performance logger
func NewPerformanceLogger(logger *Logger) *PerformanceLogger {
	return &PerformanceLogger{logger: logger.WithComponent("performance")}
}

// LogSlowOperation logs operations that exceed a threshold
func (pl *PerformanceLogger) LogSlowOperation(operation string, duration time.Duration, threshold time.Duration) {
	if duration <= threshold {
		return
	}
	pl.logger.WithFields(map[string]interface{}{
		"operation":    operation,
		"duration_ms":  duration.Milliseconds(),
		"threshold_ms": threshold.Milliseconds(),
	}).Warn("Slow operation detected")
}

// LogHTTPRequest logs HTTP request details
func (pl *PerformanceLogger) LogHTTPRequest(method, path string, statusCode int, duration time.Duration, size int64) {
	logger := pl.logger.WithFields(map[string]interface{}{
		"method":      method,
		"path":        path,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
		"size_bytes":  size,
	})
	switch {
	case statusCode >= 500:
		logger.Error("HTTP request failed", nil)
	case statusCode >= 400:
		logger.Warn("HTTP request rejected")
	default:
		logger.Info("HTTP request completed")
	}
}

var (
	globalLogger *Logger
	globalOnce   sync.Once
	globalMu     sync.RWMutex
)

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(config *LoggerConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = NewLogger(config)
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	globalOnce.Do(func() {
		globalMu.Lock()
		if globalLogger == nil {
			globalLogger = NewLogger(nil)
		}
		globalMu.Unlock()
	})
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}
