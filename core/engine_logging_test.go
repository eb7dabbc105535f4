package core

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/replx/schema"
)

func TestRequestLogsCarryConnAndRequestIDs(t *testing.T) {
	capture := newLogCapture(t)
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
		MinLevel:      pslog.TraceLevel,
	})
	engine, err := NewEngine(schema.EngineConfig{RequestTimeout: 5 * time.Second}, EngineDeps{
		Dialer: pipeDialer(basicPeer),
		Logger: logger,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ctx := context.Background()
	connResp, err := engine.Connect(ctx, schema.ConnectRequest{Port: 7888})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := engine.Eval(ctx, schema.EvalRequest{Conn: connResp.Conn.ID, Code: "(+ 1 2)"}); err != nil {
		t.Fatalf("Eval: %v", err)
	}

	found := false
	for _, entry := range capture.Entries() {
		if entry.Message != "request sent" {
			continue
		}
		if entry.Fields["op"] != "eval" {
			continue
		}
		found = true
		if entry.Fields["conn"] != string(connResp.Conn.ID) {
			t.Fatalf("request log missing conn id: %s", entry.Raw)
		}
		if req, _ := entry.Fields["req"].(string); req == "" {
			t.Fatalf("request log missing request id: %s", entry.Raw)
		}
	}
	if !found {
		t.Fatalf("no eval request log captured in %d entries", len(capture.Entries()))
	}
}

type logEntry struct {
	Level   string
	Message string
	Fields  map[string]any
	Raw     string
}

type logCapture struct {
	t     *testing.T
	mu    sync.Mutex
	buf   bytes.Buffer
	lines []string
}

func newLogCapture(t *testing.T) *logCapture {
	t.Helper()
	return &logCapture{t: t}
}

func (c *logCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = c.buf.Write(p)
	for {
		data := c.buf.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		line := string(data[:idx])
		c.lines = append(c.lines, line)
		c.buf.Next(idx + 1)
	}
	return len(p), nil
}

func (c *logCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len() > 0 {
		c.lines = append(c.lines, c.buf.String())
		c.buf.Reset()
	}
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *logCapture) Entries() []logEntry {
	lines := c.Lines()
	entries := make([]logEntry, 0, len(lines))
	for _, line := range lines {
		entries = append(entries, parseLogEntry(line))
	}
	return entries
}

func parseLogEntry(line string) logEntry {
	payload := map[string]any{}
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		return logEntry{Raw: line}
	}
	level := ""
	if value, ok := payload["level"].(string); ok {
		level = value
	} else if value, ok := payload["lvl"].(string); ok {
		level = value
	}
	message := ""
	if value, ok := payload["message"].(string); ok {
		message = value
	} else if value, ok := payload["msg"].(string); ok {
		message = value
	}
	return logEntry{Level: level, Message: message, Fields: payload, Raw: line}
}
