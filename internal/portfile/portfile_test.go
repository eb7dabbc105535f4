package portfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/replx/schema"
)

func TestReadWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)
	if err := Write(path, 7888); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	port, err := Read(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if port != 7888 {
		t.Fatalf("expected 7888, got %d", port)
	}
}

func TestReadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)
	_, err := Read(path)
	if !errors.Is(err, schema.ErrNoPortFile) {
		t.Fatalf("expected ErrNoPortFile, got %v", err)
	}
	if !strings.Contains(err.Error(), path) {
		t.Fatalf("expected error to name %s, got %v", path, err)
	}
}

func TestFindMatchesWrappedSentinel(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := Write(filepath.Join(root, DefaultName), 40404); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	// Every miss on the way up returns the sentinel wrapped with the
	// probed path; the walk must keep climbing regardless.
	port, err := Find(nested, "")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if port != 40404 {
		t.Fatalf("expected 40404, got %d", port)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultName)
	if err := os.WriteFile(path, []byte("not a port\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := Read(path); err == nil {
		t.Fatalf("expected parse error")
	}
	if err := os.WriteFile(path, []byte("123456\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := Read(path); err == nil {
		t.Fatalf("expected range error")
	}
}

func TestFindWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "app")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := Write(filepath.Join(root, DefaultName), 50505); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	port, err := Find(nested, "")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if port != 50505 {
		t.Fatalf("expected 50505, got %d", port)
	}
}

func TestFindMissingEverywhere(t *testing.T) {
	_, err := Find(t.TempDir(), ".no-such-port-file-name")
	if !errors.Is(err, schema.ErrNoPortFile) {
		t.Fatalf("expected ErrNoPortFile, got %v", err)
	}
}
