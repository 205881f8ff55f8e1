package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileOutputAndDebugGate(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, false)
	l.Info("scan %d", 1)
	l.Warning("variant %s skipped", "inv")
	l.Debug("hidden")

	b, err := os.ReadFile(filepath.Join(dir, "info.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "INFO") || !strings.Contains(string(b), "scan 1") {
		t.Fatalf("info.log missing entry: %q", b)
	}
	if strings.Contains(string(b), "hidden") {
		t.Fatalf("debug line written with debug off")
	}
	w, _ := os.ReadFile(filepath.Join(dir, "warning.log"))
	if !strings.Contains(string(w), "variant inv skipped") {
		t.Fatalf("warning.log missing entry: %q", w)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	if l.DebugEnabled() {
		t.Fatalf("discard logger should not be in debug mode")
	}
	l.Error("nothing %v", "here")
}
