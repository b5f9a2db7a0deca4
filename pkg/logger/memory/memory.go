// Package memory provides a capturing log backend for tests.
package memory

import (
	"sync"
)

// Entry is one captured log record.
type Entry struct {
	Level   string
	Message string
	Keyvals []any
}

// MemoryLogger records everything it receives. Safe for concurrent use.
type MemoryLogger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLogger creates an empty capture backend.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Entries returns a copy of everything logged so far.
func (m *MemoryLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

func (m *MemoryLogger) record(level, message string, keyvals []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Level: level, Message: message, Keyvals: keyvals})
}

// Log records a message at the default level.
func (m *MemoryLogger) Log(message string, keyvals ...any) {
	m.record("log", message, keyvals)
}

// Debug records a message at DEBUG level.
func (m *MemoryLogger) Debug(message string, keyvals ...any) {
	m.record("debug", message, keyvals)
}

// Info records a message at INFO level.
func (m *MemoryLogger) Info(message string, keyvals ...any) {
	m.record("info", message, keyvals)
}

// Warn records a message at WARN level.
func (m *MemoryLogger) Warn(message string, keyvals ...any) {
	m.record("warn", message, keyvals)
}

// Error records a message at ERROR level.
func (m *MemoryLogger) Error(message string, keyvals ...any) {
	m.record("error", message, keyvals)
}

// Fatal records a message at FATAL level. Unlike a real backend it does
// not terminate, a test asserting on fatals still has to finish.
func (m *MemoryLogger) Fatal(message string, keyvals ...any) {
	m.record("fatal", message, keyvals)
}
