package mockeval

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"
)

type client struct {
	conn net.Conn
	r    *bufio.Reader
	t    *testing.T
}

func dialServer(t *testing.T) *client {
	t.Helper()
	srv, err := Listen("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", srv.Port()), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &client{conn: conn, r: bufio.NewReader(conn), t: t}
}

func (c *client) send(frame map[string]any) {
	c.t.Helper()
	encoded, err := json.Marshal(frame)
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	if _, err := c.conn.Write(append(encoded, '\n')); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *client) recv() map[string]any {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(line, &frame); err != nil {
		c.t.Fatalf("decode %q: %v", line, err)
	}
	return frame
}

// recvUntilDone collects frames for one request id up to the terminal
// one.
func (c *client) recvUntilDone() []map[string]any {
	c.t.Helper()
	var frames []map[string]any
	for i := 0; i < 10; i++ {
		frame := c.recv()
		frames = append(frames, frame)
		if hasStatus(frame, "done") {
			return frames
		}
	}
	c.t.Fatalf("no terminal frame in %d responses", len(frames))
	return nil
}

func hasStatus(frame map[string]any, flag string) bool {
	switch status := frame["status"].(type) {
	case string:
		return status == flag
	case []any:
		for _, item := range status {
			if item == flag {
				return true
			}
		}
	}
	return false
}

func (c *client) clone() {
	c.t.Helper()
	c.send(map[string]any{"op": "clone", "id": "1"})
	reply := c.recv()
	if session, _ := reply["new-session"].(string); session == "" {
		c.t.Fatalf("clone reply = %v", reply)
	}
}

func TestCloneRequiredBeforeOps(t *testing.T) {
	c := dialServer(t)
	c.send(map[string]any{"op": "eval", "id": "1", "code": "(+ 1 2)"})
	reply := c.recv()
	if !hasStatus(reply, "error") {
		t.Fatalf("expected error before clone, got %v", reply)
	}
}

func TestEvalArithmeticAndOutput(t *testing.T) {
	c := dialServer(t)
	c.clone()

	c.send(map[string]any{"op": "eval", "id": "2", "code": "(+ 1 2)"})
	frames := c.recvUntilDone()
	found := false
	for _, frame := range frames {
		if frame["value"] == "3" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no value 3 in %v", frames)
	}

	c.send(map[string]any{"op": "eval", "id": "3", "code": `(println "hi")`})
	frames = c.recvUntilDone()
	if frames[0]["out"] != "hi\n" {
		t.Fatalf("out frame = %v", frames[0])
	}
}

func TestEvalIncompleteAndError(t *testing.T) {
	c := dialServer(t)
	c.clone()

	c.send(map[string]any{"op": "eval", "id": "2", "code": "(+ 1"})
	if reply := c.recv(); !hasStatus(reply, "incomplete") {
		t.Fatalf("expected incomplete, got %v", reply)
	}

	c.send(map[string]any{"op": "eval", "id": "3", "code": "(boom)"})
	if frames := c.recvUntilDone(); !hasStatus(frames[len(frames)-1], "error") {
		t.Fatalf("expected error, got %v", frames)
	}
}

func TestNamespaceOps(t *testing.T) {
	c := dialServer(t)
	c.clone()

	c.send(map[string]any{"op": "using-ns", "id": "2", "ns": "app.core"})
	if reply := c.recv(); reply["ns"] != "app.core" {
		t.Fatalf("using-ns reply = %v", reply)
	}

	c.send(map[string]any{"op": "ns-list", "id": "3"})
	reply := c.recv()
	if _, ok := reply["namespaces"].([]any); !ok {
		t.Fatalf("ns-list reply = %v", reply)
	}
	if reply["current-ns"] != "app.core" {
		t.Fatalf("current-ns = %v, want app.core", reply["current-ns"])
	}
}

func TestInfoAndComplete(t *testing.T) {
	c := dialServer(t)
	c.clone()

	c.send(map[string]any{"op": "info", "id": "2", "symbol": "println"})
	reply := c.recv()
	if doc, _ := reply["doc"].(string); doc == "" || reply["name"] != "println" {
		t.Fatalf("info reply = %v", reply)
	}

	c.send(map[string]any{"op": "complete", "id": "3", "prefix": "print"})
	reply = c.recv()
	completions, _ := reply["completions"].([]any)
	if len(completions) == 0 {
		t.Fatalf("complete reply = %v", reply)
	}
}

func TestInspectNavigation(t *testing.T) {
	c := dialServer(t)
	c.clone()

	c.send(map[string]any{"op": "inspect-start", "id": "2", "code": "[10 20 30]"})
	root := c.recv()
	handle, _ := root["handle"].(string)
	if handle == "" {
		t.Fatalf("inspect-start reply = %v", root)
	}
	summary, _ := root["summary"].(map[string]any)
	if summary["count"] != float64(3) {
		t.Fatalf("root summary = %v", summary)
	}

	c.send(map[string]any{"op": "inspect-nav", "id": "3", "handle": handle, "path": "1"})
	child := c.recv()
	childSummary, _ := child["summary"].(map[string]any)
	if childSummary["value"] != "20" {
		t.Fatalf("child summary = %v", childSummary)
	}

	c.send(map[string]any{"op": "inspect-nav", "id": "4", "handle": handle, "path": "9"})
	if reply := c.recv(); !hasStatus(reply, "error") {
		t.Fatalf("expected nav error, got %v", reply)
	}
}

func TestTranspileNamesTarget(t *testing.T) {
	c := dialServer(t)
	c.clone()
	c.send(map[string]any{"op": "transpile", "id": "2", "code": "(+ 1 2)"})
	reply := c.recv()
	if source, _ := reply["go-source"].(string); source == "" {
		t.Fatalf("transpile reply = %v", reply)
	}
}
