package replx

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/replx/core"
	"pkt.systems/replx/internal/mockeval"
	"pkt.systems/replx/schema"
)

type recordingSink struct {
	mu          sync.Mutex
	transcripts int
	conns       []schema.ConnEventType
}

func (s *recordingSink) OnTranscript(schema.TranscriptEvent) {
	s.mu.Lock()
	s.transcripts++
	s.mu.Unlock()
}

func (s *recordingSink) OnConnEvent(event schema.ConnEvent) {
	s.mu.Lock()
	s.conns = append(s.conns, event.Type)
	s.mu.Unlock()
}

func (s *recordingSink) OnStatus(schema.StatusEvent)       {}
func (s *recordingSink) OnInspector(schema.InspectorEvent) {}

func (s *recordingSink) connTypes() []schema.ConnEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.ConnEventType(nil), s.conns...)
}

func TestClientLifecycle(t *testing.T) {
	srv, err := mockeval.Listen("127.0.0.1:0", nil)
	if err != nil {
		t.Fatalf("mock listen: %v", err)
	}
	go srv.Serve()
	defer srv.Close()

	extra := &recordingSink{}
	client, err := NewClient(ClientConfig{}, ClientDeps{EventSink: extra})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := client.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := client.Start(ctx); err == nil {
		t.Fatalf("expected second start to be rejected")
	}

	svc := client.Service()
	resp, err := svc.Connect(ctx, schema.ConnectRequest{Host: "127.0.0.1", Port: srv.Port()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	eval, err := svc.Eval(ctx, schema.EvalRequest{Conn: resp.Conn.ID, Code: "(+ 20 22)"})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if eval.Value != "42" {
		t.Fatalf("eval value = %q, want 42", eval.Value)
	}

	// The bus and the extra sink both see engine events.
	events, unsubscribe := client.Bus().Subscribe(resp.Conn.ID)
	defer unsubscribe()
	if _, err := svc.Eval(ctx, schema.EvalRequest{Conn: resp.Conn.ID, Code: "(* 6 7)"}); err != nil {
		t.Fatalf("second eval: %v", err)
	}
	select {
	case <-events:
	case <-time.After(2 * time.Second):
		t.Fatalf("bus subscriber saw no event")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := client.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := client.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	types := extra.connTypes()
	var opened, closed bool
	for _, typ := range types {
		if typ == schema.ConnOpened {
			opened = true
		}
		if typ == schema.ConnClosed {
			closed = true
		}
	}
	if !opened || !closed {
		t.Fatalf("extra sink missed lifecycle events: %v", types)
	}
}

func TestClientWaitBeforeStart(t *testing.T) {
	client, err := NewClient(ClientConfig{}, ClientDeps{})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Wait(); err == nil || !strings.Contains(err.Error(), "not started") {
		t.Fatalf("expected not-started error, got %v", err)
	}
}

func TestFanoutSkipsNilSinks(t *testing.T) {
	sink := &recordingSink{}
	fan := eventFanout{sinks: []core.EventSink{nil, sink}}
	fan.OnTranscript(schema.TranscriptEvent{})
	fan.OnConnEvent(schema.ConnEvent{Type: schema.ConnOpened})
	if sink.transcripts != 1 || len(sink.connTypes()) != 1 {
		t.Fatalf("fanout did not reach sink")
	}
}
