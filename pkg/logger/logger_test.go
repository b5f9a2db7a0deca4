package logger

import (
	"testing"

	"github.com/skeinhq/skein/backend/pkg/logger/memory"
)

func TestLoggerFansOutToAllBackends(t *testing.T) {
	first := memory.NewMemoryLogger()
	second := memory.NewMemoryLogger()
	Init(first, second)
	defer Init()

	Info("hello", "answer", 42)

	for _, backend := range []*memory.MemoryLogger{first, second} {
		entries := backend.Entries()
		if len(entries) != 1 {
			t.Fatalf("expected 1 entry, got %d", len(entries))
		}
		if entries[0].Level != "info" || entries[0].Message != "hello" {
			t.Fatalf("unexpected entry: %+v", entries[0])
		}
		if len(entries[0].Keyvals) != 2 || entries[0].Keyvals[0] != "answer" {
			t.Fatalf("unexpected keyvals: %+v", entries[0].Keyvals)
		}
	}
}

func TestLoggerLevels(t *testing.T) {
	backend := memory.NewMemoryLogger()
	Init(backend)
	defer Init()

	Log("l")
	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	entries := backend.Entries()
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}
	wantLevels := []string{"log", "debug", "info", "warn", "error"}
	for i, want := range wantLevels {
		if entries[i].Level != want {
			t.Fatalf("entry %d: expected level %q, got %q", i, want, entries[i].Level)
		}
	}
}

func TestLoggerBeforeInitIsNoOp(t *testing.T) {
	Init()
	singleton = nil

	// Must not panic.
	Info("dropped")
	Warn("dropped")
	Error("dropped")
}
