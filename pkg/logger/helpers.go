package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest records an outbound HTTP exchange at a level matching its status.
func LogRequest(l Logger, method, url string, statusCode int, elapsed time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": elapsed.Milliseconds(),
	}

	switch {
	case statusCode >= 500 || statusCode == 0:
		l.ErrorWithFields("HTTP request failed", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request rejected", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogComponentStart logs a component start with its effective settings.
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	l = l.WithField("component", component)
	if len(settings) > 0 {
		l = l.WithFields(settings)
	}
	l.Debug("Component started")
}

// RedactURL hides the passkey query value so feed URLs can be logged.
func RedactURL(raw string) string {
	return redactQuery(raw, "passkey")
}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
