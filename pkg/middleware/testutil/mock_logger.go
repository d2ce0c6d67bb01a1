// Package testutil holds test doubles shared by middleware and server tests.
package testutil

import (
	"context"
	"sync"

	"github.com/nimburion/devserver/pkg/middleware"
	"github.com/nimburion/devserver/pkg/observability/logger"
)

// MockLogger captures log entries for assertions. Safe for concurrent use.
type MockLogger struct {
	mu     sync.Mutex
	fields map[string]interface{}
	sink   *sink
}

type sink struct {
	mu   sync.Mutex
	logs []LogEntry
}

// LogEntry represents a single captured log entry.
type LogEntry struct {
	Level  string
	Msg    string
	Fields map[string]interface{}
}

// NewMockLogger creates an empty MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{sink: &sink{}}
}

func (m *MockLogger) Debug(msg string, args ...any) { m.record("debug", msg, args) }
func (m *MockLogger) Info(msg string, args ...any)  { m.record("info", msg, args) }
func (m *MockLogger) Warn(msg string, args ...any)  { m.record("warn", msg, args) }
func (m *MockLogger) Error(msg string, args ...any) { m.record("error", msg, args) }

// With returns a child whose entries carry the given fields and share the parent's sink.
func (m *MockLogger) With(args ...any) logger.Logger {
	m.mu.Lock()
	fields := make(map[string]interface{}, len(m.fields))
	for k, v := range m.fields {
		fields[k] = v
	}
	m.mu.Unlock()
	for k, v := range argsToMap(args) {
		fields[k] = v
	}
	return &MockLogger{fields: fields, sink: m.ensureSink()}
}

// WithContext adds request_id when ctx carries one.
func (m *MockLogger) WithContext(ctx context.Context) logger.Logger {
	if ctx != nil {
		if id, ok := ctx.Value(middleware.RequestIDKey).(string); ok && id != "" {
			return m.With("request_id", id)
		}
	}
	return m
}

// Entries returns a snapshot of everything logged through m and its children.
func (m *MockLogger) Entries() []LogEntry {
	s := m.ensureSink()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

// Find returns the entries with the given message.
func (m *MockLogger) Find(msg string) []LogEntry {
	var out []LogEntry
	for _, e := range m.Entries() {
		if e.Msg == msg {
			out = append(out, e)
		}
	}
	return out
}

func (m *MockLogger) record(level, msg string, args []any) {
	fields := argsToMap(args)
	m.mu.Lock()
	for k, v := range m.fields {
		if _, ok := fields[k]; !ok {
			fields[k] = v
		}
	}
	m.mu.Unlock()

	s := m.ensureSink()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, LogEntry{Level: level, Msg: msg, Fields: fields})
}

func (m *MockLogger) ensureSink() *sink {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sink == nil {
		m.sink = &sink{}
	}
	return m.sink
}

func argsToMap(args []any) map[string]interface{} {
	fields := make(map[string]interface{})
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	return fields
}
