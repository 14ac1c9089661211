package gtrace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnableWritesEventsAndCloseFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "trace.json")
	if err := Enable(path); err != nil {
		t.Fatal(err)
	}
	Event("test-span", 0).Done()
	if err := Close(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 || b[0] != '[' {
		t.Fatalf("expected trace file starting with '[', got %q", b)
	}
}

func TestCloseWithoutEnableIsNoop(t *testing.T) {
	Sink(discardWriter{})
	if err := Close(); err != nil {
		t.Fatal(err)
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
