package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
)

func TestWithRequestAddsFields(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	log := WithRequest(ctx, "conn1", "42")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["conn"] != "conn1" {
		t.Fatalf("expected conn field, got %+v", entry)
	}
	if entry["req"] != "42" {
		t.Fatalf("expected req field, got %+v", entry)
	}
}

func TestWithConnSkipsDuplicateMarker(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	ctx := ContextWithConnLogger(context.Background(), logger.With("conn", "conn1"), "conn1")
	log := WithConn(ctx, "conn1")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["conn"] != "conn1" {
		t.Fatalf("expected conn field, got %+v", entry)
	}
}

func TestWithPeerAddsFields(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	log := WithPeer(logger, "localhost", 7888)
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["host"] != "localhost" {
		t.Fatalf("expected host field, got %+v", entry)
	}
	if entry["port"] != float64(7888) {
		t.Fatalf("expected port field, got %+v", entry)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
