// Package logger provides structured logging utilities backed by logrus
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds logger configuration
type Config struct {
	Level      string `mapstructure:"level" yaml:"level"`             // debug, info, warn, error, fatal
	Format     string `mapstructure:"format" yaml:"format"`           // text or json
	Output     string `mapstructure:"output" yaml:"output"`           // stdout, stderr, or file path
	TimeFormat string `mapstructure:"time_format" yaml:"time_format"` // RFC3339, RFC3339Nano, etc
}

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	return l
}

// Init initializes the logger with configuration
func Init(cfg Config) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	timeFormat := strings.TrimSpace(cfg.TimeFormat)
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timeFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	default:
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timeFormat})
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "", "stdout":
		base.SetOutput(os.Stdout)
	case "stderr":
		base.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			base.SetOutput(os.Stdout)
			base.Warnf("logger: failed to open log file %s: %v", cfg.Output, err)
			return
		}
		base.SetOutput(f)
	}
}

// SetOutput redirects all log output, mostly useful in tests
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// Logrus exposes the underlying logger for libraries that want a *logrus.Logger
func Logrus() *logrus.Logger {
	return base
}

func Debug(msg string) { base.Debug(msg) }

func Debugf(format string, args ...interface{}) { base.Debugf(format, args...) }

// Info logs info message
func Info(msg string) { base.Info(msg) }

// Infof logs formatted info message
func Infof(format string, args ...interface{}) { base.Infof(format, args...) }

// Warn logs warning message
func Warn(msg string) { base.Warn(msg) }

// Warnf logs formatted warning message
func Warnf(format string, args ...interface{}) { base.Warnf(format, args...) }

// Error logs error message
func Error(msg string) { base.Error(msg) }

// Errorf logs formatted error message
func Errorf(format string, args ...interface{}) { base.Errorf(format, args...) }

// Fatal logs fatal message and exits
func Fatal(msg string) { base.Fatal(msg) }

// Fatalf logs formatted fatal message and exits
func Fatalf(format string, args ...interface{}) { base.Fatalf(format, args...) }

// WithFields returns a log message with structured fields
func WithFields(fields map[string]interface{}) *FieldLogger {
	return &FieldLogger{entry: base.WithFields(logrus.Fields(fields))}
}

// FieldLogger allows structured logging with fields
type FieldLogger struct {
	entry *logrus.Entry
}

func (l *FieldLogger) Debug(msg string) { l.entry.Debug(msg) }

func (l *FieldLogger) Info(msg string) { l.entry.Info(msg) }

func (l *FieldLogger) Warn(msg string) { l.entry.Warn(msg) }

func (l *FieldLogger) Error(msg string) { l.entry.Error(msg) }

// WithError attaches err under the "error" key
func (l *FieldLogger) WithError(err error) *FieldLogger {
	return &FieldLogger{entry: l.entry.WithError(err)}
}

// HTTP logs HTTP protocol activity
func HTTP(method, path string, status, latencyMs int) {
	WithFields(map[string]interface{}{
		"protocol": "http",
		"method":   method,
		"path":     path,
		"status":   status,
		"latency":  latencyMs,
	}).Info(fmt.Sprintf("HTTP %s %s %d - %dms", method, path, status, latencyMs))
}

// WebSocket logs WebSocket activity
func WebSocket(topic, event string, clients int) {
	WithFields(map[string]interface{}{
		"protocol": "websocket",
		"topic":    topic,
		"event":    event,
		"clients":  clients,
	}).Debug(fmt.Sprintf("WebSocket [%s] %s", topic, event))
}

// Document logs a persistence write against a named document
func Document(name, op, revision string) {
	WithFields(map[string]interface{}{
		"document": name,
		"op":       op,
		"revision": revision,
	}).Info(fmt.Sprintf("document %s %s", name, op))
}

type contextKey string

// RequestIDKey is the context key under which the HTTP layer stores request ids
const RequestIDKey contextKey = "request_id"

// WithRequestID extracts request ID from context and logs with it
func WithRequestID(ctx context.Context) *FieldLogger {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return WithFields(map[string]interface{}{
			"request_id": requestID,
		})
	}
	return WithFields(nil)
}
