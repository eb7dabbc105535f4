package core

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/replx/schema"
)

// peerFunc scripts the remote side: given a decoded request frame it
// returns the frames to send back, and whether to drop the transport
// afterwards.
type peerFunc func(frame map[string]any) (replies []map[string]any, drop bool)

func servePeer(conn net.Conn, peer peerFunc) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var frame map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
			continue
		}
		replies, drop := peer(frame)
		for _, reply := range replies {
			encoded, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			if _, err := conn.Write(append(encoded, '\n')); err != nil {
				return
			}
		}
		if drop {
			return
		}
	}
}

func pipeDialer(peer peerFunc) Dialer {
	return func(ctx context.Context, host string, port int) (net.Conn, error) {
		client, server := net.Pipe()
		go servePeer(server, peer)
		return client, nil
	}
}

// basicPeer answers the handshake and a small fixed eval vocabulary.
func basicPeer(frame map[string]any) ([]map[string]any, bool) {
	id, _ := frame["id"].(string)
	switch frame["op"] {
	case "clone":
		return []map[string]any{{"id": id, "new-session": "sess-1", "status": "done"}}, false
	case "close":
		return []map[string]any{{"id": id, "status": "done"}}, false
	case "eval":
		code, _ := frame["code"].(string)
		switch code {
		case "(+ 1 2)":
			return []map[string]any{
				{"id": id, "out": "building...\n"},
				{"id": id, "value": "3", "ns": "user"},
				{"id": id, "status": []string{"done"}},
			}, false
		case "(boom)":
			return []map[string]any{
				{"id": id, "error": "kaboom", "status": []string{"done", "error"}},
			}, false
		case "(+ 1":
			return []map[string]any{
				{"id": id, "status": []string{"done", "error", "incomplete"}},
			}, false
		case "(in-ns 'app.core)":
			return []map[string]any{
				{"id": id, "value": "#namespace[app.core]", "ns": "app.core", "status": "done"},
			}, false
		}
		return []map[string]any{{"id": id, "value": "nil", "status": "done"}}, false
	}
	return []map[string]any{{"id": id, "status": "done"}}, false
}

// captureSink records published events for assertions.
type captureSink struct {
	mu       sync.Mutex
	statuses []schema.StatusEvent
	conns    []schema.ConnEvent
}

func (s *captureSink) OnTranscript(schema.TranscriptEvent) {}
func (s *captureSink) OnInspector(schema.InspectorEvent)   {}

func (s *captureSink) OnConnEvent(event schema.ConnEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns = append(s.conns, event)
}

func (s *captureSink) OnStatus(event schema.StatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, event)
}

func (s *captureSink) statusKinds() []schema.StatusKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := make([]schema.StatusKind, 0, len(s.statuses))
	for _, event := range s.statuses {
		kinds = append(kinds, event.Kind)
	}
	return kinds
}

func newTestEngine(t *testing.T, peer peerFunc, sink EventSink) *Engine {
	t.Helper()
	engine, err := NewEngine(schema.EngineConfig{RequestTimeout: 5 * time.Second}, EngineDeps{
		Dialer: pipeDialer(peer),
		Sink:   sink,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectEvalDisconnect(t *testing.T) {
	engine := newTestEngine(t, basicPeer, nil)
	ctx := context.Background()

	connected, err := engine.Connect(ctx, schema.ConnectRequest{Host: "localhost", Port: 7888})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if connected.Conn.Session != "sess-1" {
		t.Fatalf("session = %q, want sess-1", connected.Conn.Session)
	}
	if !connected.Conn.Active {
		t.Fatalf("new connection not active")
	}
	if connected.Conn.Namespace != "user" {
		t.Fatalf("initial namespace = %q", connected.Conn.Namespace)
	}

	evaled, err := engine.Eval(ctx, schema.EvalRequest{Code: "(+ 1 2)"})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !evaled.HasValue || evaled.Value != "3" {
		t.Fatalf("eval result = %+v, want value 3", evaled)
	}
	if evaled.NS != "user" {
		t.Fatalf("eval ns = %q", evaled.NS)
	}

	transcript, err := engine.GetTranscript(ctx, schema.GetTranscriptRequest{})
	if err != nil {
		t.Fatalf("GetTranscript: %v", err)
	}
	text := strings.Join(transcript.Transcript.Lines, "\n")
	if !strings.Contains(text, "building...") {
		t.Fatalf("streamed output missing from transcript:\n%s", text)
	}
	if !strings.Contains(text, "=> 3") {
		t.Fatalf("result line missing from transcript:\n%s", text)
	}
	if strings.Index(text, "building...") > strings.Index(text, "=> 3") {
		t.Fatalf("output rendered after result:\n%s", text)
	}

	if _, err := engine.Disconnect(ctx, schema.DisconnectRequest{}); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	listed, err := engine.ListConns(ctx, schema.ListConnsRequest{})
	if err != nil {
		t.Fatalf("ListConns: %v", err)
	}
	if len(listed.Conns) != 0 {
		t.Fatalf("connections survived disconnect: %+v", listed.Conns)
	}
	if _, err := engine.Eval(ctx, schema.EvalRequest{Code: "(+ 1 2)"}); !errors.Is(err, schema.ErrNotConnected) {
		t.Fatalf("eval after disconnect = %v, want ErrNotConnected", err)
	}
}

func TestEvalRemoteErrorKeepsConnection(t *testing.T) {
	engine := newTestEngine(t, basicPeer, nil)
	ctx := context.Background()
	if _, err := engine.Connect(ctx, schema.ConnectRequest{Port: 7888}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	failed, err := engine.Eval(ctx, schema.EvalRequest{Code: "(boom)"})
	if err != nil {
		t.Fatalf("remote error became a transport error: %v", err)
	}
	if failed.Err != "kaboom" {
		t.Fatalf("eval error = %q, want kaboom", failed.Err)
	}

	incomplete, err := engine.Eval(ctx, schema.EvalRequest{Code: "(+ 1"})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !incomplete.Incomplete {
		t.Fatalf("incomplete flag not surfaced: %+v", incomplete)
	}

	ok, err := engine.Eval(ctx, schema.EvalRequest{Code: "(+ 1 2)"})
	if err != nil || ok.Value != "3" {
		t.Fatalf("connection unusable after remote error: %+v, %v", ok, err)
	}
}

func TestNamespaceTracksResponses(t *testing.T) {
	engine := newTestEngine(t, basicPeer, nil)
	ctx := context.Background()
	if _, err := engine.Connect(ctx, schema.ConnectRequest{Port: 7888}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	evaled, err := engine.Eval(ctx, schema.EvalRequest{Code: "(in-ns 'app.core)"})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if evaled.NS != "app.core" {
		t.Fatalf("eval ns = %q, want app.core", evaled.NS)
	}

	transcript, err := engine.GetTranscript(ctx, schema.GetTranscriptRequest{})
	if err != nil {
		t.Fatalf("GetTranscript: %v", err)
	}
	if transcript.Transcript.PromptLabel != "app.core" {
		t.Fatalf("prompt label = %q, want app.core", transcript.Transcript.PromptLabel)
	}

	listed, _ := engine.ListConns(ctx, schema.ListConnsRequest{})
	if listed.Conns[0].Namespace != "app.core" {
		t.Fatalf("connection namespace = %q", listed.Conns[0].Namespace)
	}
}

func TestDisconnectFailsPendingRequests(t *testing.T) {
	sink := &captureSink{}
	peer := func(frame map[string]any) ([]map[string]any, bool) {
		id, _ := frame["id"].(string)
		switch frame["op"] {
		case "clone":
			return []map[string]any{{"id": id, "new-session": "sess-1", "status": "done"}}, false
		case "eval":
			// Drop the transport with the request unanswered.
			return nil, true
		}
		return []map[string]any{{"id": id, "status": "done"}}, false
	}
	engine := newTestEngine(t, peer, sink)
	ctx := context.Background()
	if _, err := engine.Connect(ctx, schema.ConnectRequest{Port: 7888}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := engine.Eval(ctx, schema.EvalRequest{Code: "(hang)"})
	if !errors.Is(err, schema.ErrConnClosed) {
		t.Fatalf("eval on dropped transport = %v, want ErrConnClosed", err)
	}

	waitFor(t, "disconnect status", func() bool {
		for _, kind := range sink.statusKinds() {
			if kind == schema.StatusDisconnect {
				return true
			}
		}
		return false
	})

	listed, _ := engine.ListConns(ctx, schema.ListConnsRequest{})
	if len(listed.Conns) != 0 {
		t.Fatalf("dropped connection still listed: %+v", listed.Conns)
	}
}

func TestSubmitInputStreamsIntoTranscript(t *testing.T) {
	engine := newTestEngine(t, basicPeer, nil)
	ctx := context.Background()
	if _, err := engine.Connect(ctx, schema.ConnectRequest{Port: 7888}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if _, err := engine.InsertInput(ctx, schema.InsertInputRequest{Text: "(+ 1 2)"}); err != nil {
		t.Fatalf("InsertInput: %v", err)
	}
	submitted, err := engine.SubmitInput(ctx, schema.SubmitInputRequest{})
	if err != nil {
		t.Fatalf("SubmitInput: %v", err)
	}
	if submitted.Code != "(+ 1 2)" {
		t.Fatalf("submitted code = %q", submitted.Code)
	}

	waitFor(t, "detached eval result", func() bool {
		snap, err := engine.GetTranscript(ctx, schema.GetTranscriptRequest{})
		if err != nil {
			return false
		}
		return strings.Contains(strings.Join(snap.Transcript.Lines, "\n"), "=> 3")
	})

	history, err := engine.GetHistory(ctx, schema.GetHistoryRequest{})
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history.Entries) != 1 || history.Entries[0] != "(+ 1 2)" {
		t.Fatalf("history = %v", history.Entries)
	}

	// A blank submission re-renders the prompt and evaluates nothing.
	blank, err := engine.SubmitInput(ctx, schema.SubmitInputRequest{})
	if err != nil {
		t.Fatalf("blank SubmitInput: %v", err)
	}
	if blank.Code != "" {
		t.Fatalf("blank submission carried code %q", blank.Code)
	}
}

func TestInspectFlow(t *testing.T) {
	peer := func(frame map[string]any) ([]map[string]any, bool) {
		id, _ := frame["id"].(string)
		switch frame["op"] {
		case "clone":
			return []map[string]any{{"id": id, "new-session": "sess-1", "status": "done"}}, false
		case "inspect-start":
			return []map[string]any{{
				"id":      id,
				"handle":  "h1",
				"summary": map[string]any{"type": "PersistentVector", "count": 2, "preview": []string{"1", "2"}},
				"status":  "done",
			}}, false
		case "inspect-nav":
			if frame["path"] == "9" {
				return []map[string]any{{"id": id, "error": "index out of bounds", "status": []string{"done", "error"}}}, false
			}
			return []map[string]any{{
				"id":      id,
				"handle":  "h2",
				"summary": map[string]any{"type": "Long", "value": "2"},
				"status":  "done",
			}}, false
		}
		return []map[string]any{{"id": id, "status": "done"}}, false
	}
	engine := newTestEngine(t, peer, nil)
	ctx := context.Background()
	if _, err := engine.Connect(ctx, schema.ConnectRequest{Port: 7888}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	if _, err := engine.InspectNav(ctx, schema.InspectNavRequest{Segment: "0"}); !errors.Is(err, schema.ErrInspectorClosed) {
		t.Fatalf("nav without session = %v, want ErrInspectorClosed", err)
	}

	opened, err := engine.InspectStart(ctx, schema.InspectStartRequest{Code: "[1 2]"})
	if err != nil {
		t.Fatalf("InspectStart: %v", err)
	}
	if opened.Inspector.State != schema.InspectorViewing || opened.Inspector.Handle != "h1" {
		t.Fatalf("inspect root = %+v", opened.Inspector)
	}

	nested, err := engine.InspectNav(ctx, schema.InspectNavRequest{Segment: "1"})
	if err != nil {
		t.Fatalf("InspectNav: %v", err)
	}
	if nested.Inspector.Handle != "h2" || nested.Inspector.Depth != 2 {
		t.Fatalf("nested view = %+v", nested.Inspector)
	}

	// A failed navigation leaves the session in place.
	if _, err := engine.InspectNav(ctx, schema.InspectNavRequest{Segment: "9"}); !errors.Is(err, schema.ErrRemote) {
		t.Fatalf("bad segment = %v, want ErrRemote", err)
	}

	back, err := engine.InspectBack(ctx, schema.InspectBackRequest{})
	if err != nil {
		t.Fatalf("InspectBack: %v", err)
	}
	if back.Inspector.Handle != "h1" || back.Inspector.Depth != 1 {
		t.Fatalf("back view = %+v", back.Inspector)
	}
	if !strings.Contains(strings.Join(back.Inspector.Lines, "\n"), "Count: 2") {
		t.Fatalf("retained root summary missing: %v", back.Inspector.Lines)
	}

	quit, err := engine.InspectQuit(ctx, schema.InspectQuitRequest{})
	if err != nil {
		t.Fatalf("InspectQuit: %v", err)
	}
	if quit.Inspector.State != schema.InspectorClosed {
		t.Fatalf("quit view = %+v", quit.Inspector)
	}
	if _, err := engine.InspectQuit(ctx, schema.InspectQuitRequest{}); err != nil {
		t.Fatalf("double quit: %v", err)
	}
}

func TestResolveTargets(t *testing.T) {
	engine := newTestEngine(t, basicPeer, nil)
	ctx := context.Background()

	if _, err := engine.Eval(ctx, schema.EvalRequest{Code: "(+ 1 2)"}); !errors.Is(err, schema.ErrNotConnected) {
		t.Fatalf("eval without connection = %v, want ErrNotConnected", err)
	}
	if _, err := engine.Eval(ctx, schema.EvalRequest{Conn: "nope", Code: "(+ 1 2)"}); !errors.Is(err, schema.ErrConnNotFound) {
		t.Fatalf("eval on unknown conn = %v, want ErrConnNotFound", err)
	}
	if _, err := engine.Eval(ctx, schema.EvalRequest{Code: "  "}); !errors.Is(err, schema.ErrEmptyInput) {
		t.Fatalf("blank eval = %v, want ErrEmptyInput", err)
	}
}

func TestMultiConnActivation(t *testing.T) {
	engine := newTestEngine(t, basicPeer, nil)
	ctx := context.Background()

	first, err := engine.Connect(ctx, schema.ConnectRequest{Port: 7888})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	second, err := engine.Connect(ctx, schema.ConnectRequest{Port: 7889})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	listed, _ := engine.ListConns(ctx, schema.ListConnsRequest{})
	if len(listed.Conns) != 2 {
		t.Fatalf("conns = %d, want 2", len(listed.Conns))
	}
	if listed.Active != second.Conn.ID {
		t.Fatalf("active = %s, want the newest connection", listed.Active)
	}

	activated, err := engine.ActivateConn(ctx, schema.ActivateConnRequest{Conn: first.Conn.ID})
	if err != nil {
		t.Fatalf("ActivateConn: %v", err)
	}
	if !activated.Conn.Active || activated.Conn.ID != first.Conn.ID {
		t.Fatalf("activation snapshot = %+v", activated.Conn)
	}

	// Ops with no explicit target follow the active marker.
	if _, err := engine.Eval(ctx, schema.EvalRequest{Code: "(+ 1 2)"}); err != nil {
		t.Fatalf("eval on re-activated conn: %v", err)
	}
}

func TestDecodeFailureStatusSurfaced(t *testing.T) {
	sink := &captureSink{}
	peer := func(frame map[string]any) ([]map[string]any, bool) {
		id, _ := frame["id"].(string)
		return []map[string]any{{"id": id, "new-session": "sess-1", "status": "done"}}, false
	}
	engine, err := NewEngine(schema.EngineConfig{DecodeFailThreshold: 3}, EngineDeps{
		Dialer: func(ctx context.Context, host string, port int) (net.Conn, error) {
			client, server := net.Pipe()
			go func() {
				defer server.Close()
				scanner := bufio.NewScanner(server)
				for scanner.Scan() {
					var frame map[string]any
					if err := json.Unmarshal(scanner.Bytes(), &frame); err != nil {
						continue
					}
					if frame["op"] == "clone" {
						replies, _ := peer(frame)
						for _, reply := range replies {
							encoded, _ := json.Marshal(reply)
							if _, err := server.Write(append(encoded, '\n')); err != nil {
								return
							}
						}
						// Now emit garbage past the threshold.
						if _, err := server.Write([]byte("not json\n{broken\n%%%\n")); err != nil {
							return
						}
					}
				}
			}()
			return client, nil
		},
		Sink: sink,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if _, err := engine.Connect(context.Background(), schema.ConnectRequest{Port: 7888}); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	waitFor(t, "decode failure status", func() bool {
		for _, kind := range sink.statusKinds() {
			if kind == schema.StatusDecodeFailure {
				return true
			}
		}
		return false
	})
}
