// Package logger holds the process-wide structured logger used by code that is not
// handed one explicitly, such as the CLI entry point and Lambda handlers.
package logger

import (
	"sync"

	"github.com/theory-cloud/sfntasks/pkg/observability"
	"github.com/theory-cloud/sfntasks/pkg/sanitization"
)

var (
	globalMu     sync.RWMutex
	globalLogger = observability.NewNoOpLogger()
)

// Logger returns the global structured logger singleton.
func Logger() observability.StructuredLogger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLogger replaces the global structured logger singleton.
//
// Passing nil resets the logger to a no-op implementation.
func SetLogger(next observability.StructuredLogger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = observability.OrNoOp(next)
}

// ForStateMachine returns the global logger scoped to a state machine.
func ForStateMachine(name string) observability.StructuredLogger {
	return Logger().WithStateMachine(name)
}

// SanitizeJSON returns a sanitized JSON string for safe logging of execution input and output.
func SanitizeJSON(jsonBytes []byte) string {
	return sanitization.SanitizeJSON(jsonBytes)
}

// TaskToken returns a loggable fingerprint of a task token.
func TaskToken(token string) string {
	return sanitization.TaskTokenFingerprint(token)
}
