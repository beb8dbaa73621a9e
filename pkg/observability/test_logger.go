package observability

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/theory-cloud/sfntasks/pkg/sanitization"
)

// Scope holds the Step Functions identifiers attached to a log line.
type Scope struct {
	StateMachine string
	ExecutionArn string
	State        string
	MessageID    string
	TraceID      string
}

// Fields returns the non-empty identifiers keyed by their log field names.
func (s Scope) Fields() map[string]string {
	out := map[string]string{}
	for key, value := range map[string]string{
		"state_machine": s.StateMachine,
		"execution_arn": s.ExecutionArn,
		"state":         s.State,
		"message_id":    s.MessageID,
		"trace_id":      s.TraceID,
	} {
		if value != "" {
			out[key] = value
		}
	}
	return out
}

func (s Scope) apply(entry *LogEntry) {
	entry.StateMachine = s.StateMachine
	entry.ExecutionArn = s.ExecutionArn
	entry.State = s.State
	entry.MessageID = s.MessageID
	entry.TraceID = s.TraceID
}

type testLoggerCore struct {
	mu      sync.Mutex
	entries []LogEntry

	entriesLogged  atomic.Int64
	flushCount     atomic.Int64
	lastFlushNanos atomic.Int64
}

// TestLogger records entries in memory so tests can assert on them.
//
// Derived loggers (via With* calls) share the same underlying core.
type TestLogger struct {
	core *testLoggerCore

	fields   map[string]any
	sanitize SanitizerFunc
	scope    Scope

	closed atomic.Bool
}

var _ StructuredLogger = (*TestLogger)(nil)

func NewTestLogger() *TestLogger {
	return &TestLogger{
		core:     &testLoggerCore{},
		fields:   map[string]any{},
		sanitize: sanitization.SanitizeFieldValue,
	}
}

func (l *TestLogger) Entries() []LogEntry {
	if l == nil || l.core == nil {
		return nil
	}
	l.core.mu.Lock()
	defer l.core.mu.Unlock()
	out := make([]LogEntry, len(l.core.entries))
	copy(out, l.core.entries)
	return out
}

// Messages returns the logged messages in order.
func (l *TestLogger) Messages() []string {
	entries := l.Entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func (l *TestLogger) Debug(message string, fields ...map[string]any) {
	l.log("debug", message, fields...)
}
func (l *TestLogger) Info(message string, fields ...map[string]any) {
	l.log("info", message, fields...)
}
func (l *TestLogger) Warn(message string, fields ...map[string]any) {
	l.log("warn", message, fields...)
}
func (l *TestLogger) Error(message string, fields ...map[string]any) {
	l.log("error", message, fields...)
}

func (l *TestLogger) WithField(key string, value any) StructuredLogger {
	return l.WithFields(map[string]any{key: value})
}

func (l *TestLogger) WithFields(fields map[string]any) StructuredLogger {
	next := l.clone()
	for k, v := range fields {
		next.fields[k] = v
	}
	return next
}

func (l *TestLogger) WithStateMachine(name string) StructuredLogger {
	next := l.clone()
	next.scope.StateMachine = name
	return next
}

func (l *TestLogger) WithExecutionArn(arn string) StructuredLogger {
	next := l.clone()
	next.scope.ExecutionArn = arn
	return next
}

func (l *TestLogger) WithState(name string) StructuredLogger {
	next := l.clone()
	next.scope.State = name
	return next
}

func (l *TestLogger) WithMessageID(messageID string) StructuredLogger {
	next := l.clone()
	next.scope.MessageID = messageID
	return next
}

func (l *TestLogger) WithTraceID(traceID string) StructuredLogger {
	next := l.clone()
	next.scope.TraceID = traceID
	return next
}

func (l *TestLogger) Flush(ctx context.Context) error {
	if l == nil || l.core == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.core.flushCount.Add(1)
	l.core.lastFlushNanos.Store(time.Now().UnixNano())
	return nil
}

func (l *TestLogger) Close() error {
	if l == nil {
		return nil
	}
	l.closed.Store(true)
	return nil
}

func (l *TestLogger) IsHealthy() bool {
	return l != nil && l.core != nil && !l.closed.Load()
}

func (l *TestLogger) GetStats() LoggerStats {
	if l == nil || l.core == nil {
		return LoggerStats{}
	}
	return LoggerStats{
		LastFlush:     time.Unix(0, l.core.lastFlushNanos.Load()),
		EntriesLogged: l.core.entriesLogged.Load(),
		FlushCount:    l.core.flushCount.Load(),
	}
}

func (l *TestLogger) clone() *TestLogger {
	if l == nil {
		return NewTestLogger()
	}
	nextFields := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		nextFields[k] = v
	}
	return &TestLogger{
		core:     l.core,
		fields:   nextFields,
		sanitize: l.sanitize,
		scope:    l.scope,
	}
}

func (l *TestLogger) log(level string, message string, fields ...map[string]any) {
	if l == nil || l.core == nil || l.closed.Load() {
		return
	}

	sanitize := l.sanitize
	if sanitize == nil {
		sanitize = sanitization.SanitizeFieldValue
	}
	merged := make(map[string]any, len(l.fields))
	for k, v := range l.fields {
		merged[k] = sanitize(k, v)
	}
	for _, set := range fields {
		for k, v := range set {
			merged[k] = sanitize(k, v)
		}
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   sanitization.SanitizeLogString(message),
		Fields:    merged,
	}
	l.scope.apply(&entry)

	l.core.entriesLogged.Add(1)
	l.core.mu.Lock()
	l.core.entries = append(l.core.entries, entry)
	l.core.mu.Unlock()
}
