package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/timkado/api/site-freshness-service/internal/domain"
)

// MockLogger implements domain.Logger and records every entry.
type MockLogger struct {
	logEntries []LogEntry
	mu         sync.RWMutex

	InfoCount  int64
	WarnCount  int64
	ErrorCount int64
	DebugCount int64
}

// LogEntry is one recorded log call.
type LogEntry struct {
	Level     string
	Message   string
	Fields    map[string]any
	Timestamp time.Time
}

// NewMockLogger creates a new mock logger
func NewMockLogger() *MockLogger {
	return &MockLogger{
		logEntries: make([]LogEntry, 0),
	}
}

// Info implements domain.Logger
func (m *MockLogger) Info(ctx context.Context, msg string, fields ...any) {
	atomic.AddInt64(&m.InfoCount, 1)
	m.addLogEntry("INFO", msg, fields...)
}

// Warn implements domain.Logger
func (m *MockLogger) Warn(ctx context.Context, msg string, fields ...any) {
	atomic.AddInt64(&m.WarnCount, 1)
	m.addLogEntry("WARN", msg, fields...)
}

// Error implements domain.Logger
func (m *MockLogger) Error(ctx context.Context, msg string, fields ...any) {
	atomic.AddInt64(&m.ErrorCount, 1)
	m.addLogEntry("ERROR", msg, fields...)
}

// Debug implements domain.Logger
func (m *MockLogger) Debug(ctx context.Context, msg string, fields ...any) {
	atomic.AddInt64(&m.DebugCount, 1)
	m.addLogEntry("DEBUG", msg, fields...)
}

// Fatal implements domain.Logger
func (m *MockLogger) Fatal(ctx context.Context, msg string, fields ...any) {
	atomic.AddInt64(&m.ErrorCount, 1)
	m.addLogEntry("FATAL", msg, fields...)
}

// With implements domain.Logger
func (m *MockLogger) With(fields ...any) domain.Logger {
	return m
}

func (m *MockLogger) addLogEntry(level, msg string, fields ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fieldMap := make(map[string]any)
	for i := 0; i+1 < len(fields); i += 2 {
		if key, ok := fields[i].(string); ok {
			fieldMap[key] = fields[i+1]
		}
	}

	m.logEntries = append(m.logEntries, LogEntry{
		Level:     level,
		Message:   msg,
		Fields:    fieldMap,
		Timestamp: time.Now(),
	})
}

// GetLogEntriesByLevel returns log entries filtered by level
func (m *MockLogger) GetLogEntriesByLevel(level string) []LogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []LogEntry
	for _, entry := range m.logEntries {
		if entry.Level == level {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// HasMessage reports whether any entry at level carries msg.
func (m *MockLogger) HasMessage(level, msg string) bool {
	for _, e := range m.GetLogEntriesByLevel(level) {
		if e.Message == msg {
			return true
		}
	}
	return false
}
