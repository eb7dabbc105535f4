package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"

	"pkt.systems/replx/internal/logx"
	"pkt.systems/replx/internal/wire"
	"pkt.systems/replx/schema"
)

// Dialer establishes the transport to an evaluator peer.
type Dialer func(ctx context.Context, host string, port int) (net.Conn, error)

// EventSink receives engine events. The eventbus satisfies this.
type EventSink interface {
	OnTranscript(schema.TranscriptEvent)
	OnConnEvent(schema.ConnEvent)
	OnStatus(schema.StatusEvent)
	OnInspector(schema.InspectorEvent)
}

// EngineDeps carries the engine's collaborators. Zero fields get
// working defaults.
type EngineDeps struct {
	Dialer Dialer
	Sink   EventSink
	Logger pslog.Logger
}

// Engine is the client core: it owns every connection, correlates
// responses to requests, and maintains per-connection transcripts and
// inspect sessions. One mutex serializes all state mutation; response
// handlers run to completion under it, so op handlers never observe a
// half-applied response.
type Engine struct {
	cfg  schema.EngineConfig
	dial Dialer
	sink EventSink
	log  pslog.Logger

	mu     sync.Mutex
	conns  map[schema.ConnID]*conn
	order  []schema.ConnID
	active schema.ConnID
}

// NewEngine constructs an engine from config and dependencies.
func NewEngine(cfg schema.EngineConfig, deps EngineDeps) (*Engine, error) {
	cfg, err := schema.NormalizeEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	dial := deps.Dialer
	if dial == nil {
		dial = func(ctx context.Context, host string, port int) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		}
	}
	sink := deps.Sink
	if sink == nil {
		sink = nopSink{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = logx.Ctx(context.Background())
	}
	return &Engine{
		cfg:   cfg,
		dial:  dial,
		sink:  sink,
		log:   logger,
		conns: make(map[schema.ConnID]*conn),
	}, nil
}

// Run sweeps for orphaned requests until the context ends. The engine
// works without it; running it adds the periodic eviction of requests
// whose terminal response never arrived.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.cfg.RequestTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := e.EvictExpired(); n > 0 {
				e.log.Warn("evicted orphaned requests", "count", n)
			}
		}
	}
}

// Connect dials the peer, starts the receive loop, and performs the
// session handshake. The new connection becomes active.
func (e *Engine) Connect(ctx context.Context, req schema.ConnectRequest) (schema.ConnectResponse, error) {
	host := req.Host
	if host == "" {
		host = "127.0.0.1"
	}
	if req.Port <= 0 {
		return schema.ConnectResponse{}, fmt.Errorf("%w: port is required", schema.ErrConnect)
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.cfg.DialTimeout)
	transport, err := e.dial(dialCtx, host, req.Port)
	cancel()
	if err != nil {
		return schema.ConnectResponse{}, fmt.Errorf("%w: dial %s:%d: %v", schema.ErrConnect, host, req.Port, err)
	}

	id := schema.ConnID(newConnID())
	log := logx.WithPeer(e.log.With("conn", id), host, req.Port)
	c := &conn{
		id:         id,
		host:       host,
		port:       req.Port,
		ns:         e.cfg.DefaultNamespace,
		transport:  transport,
		decoder:    wire.NewDecoder(e.cfg.DecodeFailThreshold, log),
		pending:    newCorrelator(),
		transcript: newTranscript(string(e.cfg.DefaultNamespace), e.cfg.PromptSuffix, e.cfg.TranscriptMaxBytes),
		history:    newHistory(e.cfg.HistoryMax),
		inspector:  newInspectorSession(),
		log:        log,
	}
	e.mu.Lock()
	e.conns[id] = c
	e.order = append(e.order, id)
	e.mu.Unlock()
	go e.readLoop(c)

	resp, err := e.call(ctx, c, schema.OpClone, nil, nil)
	if err == nil && resp.Status.Error() {
		err = fmt.Errorf("peer refused session: %s", resp.Err)
	}
	if err != nil {
		e.mu.Lock()
		c.closing = true
		e.mu.Unlock()
		e.handleDisconnect(c, nil)
		return schema.ConnectResponse{}, fmt.Errorf("%w: %v", schema.ErrConnect, err)
	}
	session := resp.String("new-session")
	if session == "" {
		session = resp.String("session")
	}

	e.mu.Lock()
	c.session = session
	e.active = id
	c.transcript.EnsurePromptVisible()
	snap := c.snapshotLocked(true)
	tsnap := c.transcript.Snapshot(0)
	e.mu.Unlock()

	log.Info("connected", "session", session)
	e.sink.OnConnEvent(schema.ConnEvent{Conn: id, Type: schema.ConnOpened, Snap: snap})
	e.sink.OnConnEvent(schema.ConnEvent{Conn: id, Type: schema.ConnActivated, Snap: snap})
	e.sink.OnTranscript(schema.TranscriptEvent{Conn: id, Transcript: tsnap})
	return schema.ConnectResponse{Conn: snap}, nil
}

// Disconnect sends a best-effort close op and tears the connection
// down. Teardown is not contingent on the peer acknowledging.
func (e *Engine) Disconnect(ctx context.Context, req schema.DisconnectRequest) (schema.DisconnectResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.DisconnectResponse{}, err
	}
	e.mu.Lock()
	c.closing = true
	snap := c.snapshotLocked(false)
	e.mu.Unlock()

	closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if _, err := e.call(closeCtx, c, schema.OpClose, nil, nil); err != nil {
		c.log.Debug("close op unacknowledged", "err", err)
	}
	cancel()

	e.handleDisconnect(c, nil)
	return schema.DisconnectResponse{Conn: snap}, nil
}

// ListConns reports live connections in open order.
func (e *Engine) ListConns(ctx context.Context, req schema.ListConnsRequest) (schema.ListConnsResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := schema.ListConnsResponse{Active: e.active}
	for _, id := range e.order {
		c := e.conns[id]
		out.Conns = append(out.Conns, c.snapshotLocked(id == e.active))
	}
	return out, nil
}

// ActivateConn moves the active marker.
func (e *Engine) ActivateConn(ctx context.Context, req schema.ActivateConnRequest) (schema.ActivateConnResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.ActivateConnResponse{}, err
	}
	e.mu.Lock()
	e.active = c.id
	snap := c.snapshotLocked(true)
	e.mu.Unlock()
	e.sink.OnConnEvent(schema.ConnEvent{Conn: c.id, Type: schema.ConnActivated, Snap: snap})
	return schema.ActivateConnResponse{Conn: snap}, nil
}

// Shutdown disconnects every connection.
func (e *Engine) Shutdown(ctx context.Context) {
	e.mu.Lock()
	ids := append([]schema.ConnID(nil), e.order...)
	e.mu.Unlock()
	for _, id := range ids {
		if _, err := e.Disconnect(ctx, schema.DisconnectRequest{Conn: id}); err != nil {
			e.log.Debug("shutdown disconnect", "conn", id, "err", err)
		}
	}
}

// resolve maps an optional connection id to a live conn. An empty id
// targets the active connection.
func (e *Engine) resolve(id schema.ConnID) (*conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id == "" {
		if e.active == "" {
			return nil, schema.ErrNotConnected
		}
		id = e.active
	}
	c, ok := e.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrConnNotFound, id)
	}
	return c, nil
}

// Internal status flags on synthesized terminal responses. Never sent
// on the wire.
const (
	statusConnGone = "replx/conn-closed"
	statusTimedOut = "replx/timed-out"
)

// call registers a request, sends it, and waits for the terminal
// response. Non-terminal responses go to stream, which runs under the
// engine mutex. Fields of partial responses are merged so a value
// arriving before the bare done frame is not lost. When the context
// ends first, the pending entry is evicted so a late terminal response
// is dropped instead of handled.
func (e *Engine) call(ctx context.Context, c *conn, op schema.Op, payload map[string]any, stream func(*conn, schema.Response)) (schema.Response, error) {
	if _, ok := ctx.Deadline(); !ok && e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}

	id := nextRequestID()
	ctx = logx.ContextWithConnLogger(ctx, c.log, c.id)
	log := logx.WithRequest(ctx, c.id, id)
	ctx = logx.ContextWithRequest(ctx, id)
	done := make(chan schema.Response, 1)
	acc := schema.Response{Status: schema.StatusSet{}, Fields: map[string]any{}}
	handler := func(resp schema.Response) {
		if stream != nil && !resp.Status.Done() {
			stream(c, resp)
		}
		mergeResponse(&acc, resp)
		if resp.Status.Done() {
			select {
			case done <- acc:
			default:
			}
		}
	}

	e.mu.Lock()
	if c.removed {
		e.mu.Unlock()
		return schema.Response{}, fmt.Errorf("%s request: %w", op, schema.ErrConnClosed)
	}
	c.pending.register(id, op, handler)
	session := c.session
	e.mu.Unlock()

	req := schema.Request{Op: op, ID: id, Session: session, Payload: payload}
	if err := c.write(req); err != nil {
		e.mu.Lock()
		c.pending.evict(id)
		e.mu.Unlock()
		return schema.Response{}, err
	}
	log.Trace("request sent", "op", op)

	select {
	case resp := <-done:
		switch {
		case resp.Status.Has(statusConnGone):
			return resp, fmt.Errorf("%s request: %w", op, schema.ErrConnClosed)
		case resp.Status.Has(statusTimedOut):
			return resp, fmt.Errorf("%s request: %w", op, schema.ErrRequestTimeout)
		}
		return resp, nil
	case <-ctx.Done():
		e.mu.Lock()
		evicted := c.pending.evict(id)
		e.mu.Unlock()
		if evicted {
			log.Warn("request abandoned", "op", op, "cause", ctx.Err())
			e.sink.OnStatus(schema.StatusEvent{
				Conn:    c.id,
				Kind:    schema.StatusRequestTimeout,
				Message: fmt.Sprintf("%s request %s abandoned: %v", op, id, ctx.Err()),
			})
		}
		return schema.Response{}, fmt.Errorf("%s request: %w", op, schema.ErrRequestTimeout)
	}
}

// mergeResponse folds a partial response into the accumulated view of
// its request. Out is not accumulated; output chunks are streamed.
func mergeResponse(acc *schema.Response, resp schema.Response) {
	for key, value := range resp.Fields {
		acc.Fields[key] = value
	}
	for flag := range resp.Status {
		acc.Status[flag] = struct{}{}
	}
	if resp.ID != "" {
		acc.ID = resp.ID
	}
	if resp.HasValue() {
		acc.Value = resp.Value
	}
	if resp.Err != "" {
		acc.Err = resp.Err
	}
	if resp.NS != "" {
		acc.NS = resp.NS
	}
	delete(acc.Fields, "out")
}

// readLoop owns the transport read side and the decoder. It runs until
// the transport fails or closes.
func (e *Engine) readLoop(c *conn) {
	buf := make([]byte, 32*1024)
	for {
		n, err := c.transport.Read(buf)
		if n > 0 {
			e.handleChunk(c, buf[:n])
		}
		if err != nil {
			e.handleDisconnect(c, err)
			return
		}
	}
}

func (e *Engine) handleChunk(c *conn, chunk []byte) {
	responses, err := c.decoder.Feed(chunk)
	if err != nil {
		var drop *wire.DropError
		if errors.As(err, &drop) {
			c.log.Warn("persistent decode failures", "dropped", drop.Dropped)
			e.sink.OnStatus(schema.StatusEvent{Conn: c.id, Kind: schema.StatusDecodeFailure, Message: err.Error()})
		}
	}
	for _, resp := range responses {
		e.dispatch(c, resp)
	}
}

// dispatch routes one decoded response: the conn's namespace tracks
// any ns the response carries, then the correlated handler runs.
// Responses for unknown or already-terminated ids are dropped.
func (e *Engine) dispatch(c *conn, resp schema.Response) {
	e.mu.Lock()
	if c.removed {
		e.mu.Unlock()
		return
	}
	before := c.transcript.revision()
	if resp.NS != "" && resp.NS != c.ns {
		c.ns = resp.NS
		c.transcript.SetLabel(string(resp.NS))
	}
	if handler := c.pending.take(resp); handler != nil {
		handler(resp)
	} else if resp.ID != "" {
		c.log.Debug("response for unknown request dropped", "req", resp.ID)
	}
	changed := c.transcript.revision() != before
	var tsnap schema.TranscriptSnapshot
	if changed {
		tsnap = c.transcript.Snapshot(0)
	}
	e.mu.Unlock()
	if changed {
		e.sink.OnTranscript(schema.TranscriptEvent{Conn: c.id, Transcript: tsnap})
	}
}

// handleDisconnect removes the conn from the registry and fails every
// pending request with a synthesized terminal response. Idempotent;
// both the read loop and explicit close funnel through it.
func (e *Engine) handleDisconnect(c *conn, cause error) {
	e.mu.Lock()
	if c.removed {
		e.mu.Unlock()
		return
	}
	c.removed = true
	delete(e.conns, c.id)
	for i, id := range e.order {
		if id == c.id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	if e.active == c.id {
		e.active = ""
	}
	closing := c.closing
	orphans := c.pending.drain()
	for _, entry := range orphans {
		entry.handler(schema.Response{
			ID:     entry.id,
			Status: schema.NewStatusSet(schema.StatusDone, schema.StatusError, statusConnGone),
			Err:    schema.ErrConnClosed.Error(),
			Fields: map[string]any{},
		})
	}
	snap := c.snapshotLocked(false)
	e.mu.Unlock()

	if err := c.transport.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.log.Debug("transport close", "err", err)
	}
	if closing {
		c.log.Info("connection closed")
	} else {
		msg := "connection closed by peer"
		if cause != nil && !errors.Is(cause, io.EOF) {
			msg = cause.Error()
		}
		c.log.Warn("disconnected", "pending_failed", len(orphans), "cause", msg)
		e.sink.OnStatus(schema.StatusEvent{Conn: c.id, Kind: schema.StatusDisconnect, Message: msg})
	}
	e.sink.OnConnEvent(schema.ConnEvent{Conn: c.id, Type: schema.ConnClosed, Snap: snap})
}

// EvictExpired fails every pending request older than the request
// timeout. Returns the number evicted.
func (e *Engine) EvictExpired() int {
	cutoff := time.Now().Add(-e.cfg.RequestTimeout)
	var events []schema.StatusEvent
	count := 0
	e.mu.Lock()
	for _, id := range e.order {
		c := e.conns[id]
		for _, entry := range c.pending.expired(cutoff) {
			entry.handler(schema.Response{
				ID:     entry.id,
				Status: schema.NewStatusSet(schema.StatusDone, schema.StatusError, statusTimedOut),
				Err:    schema.ErrRequestTimeout.Error(),
				Fields: map[string]any{},
			})
			events = append(events, schema.StatusEvent{
				Conn:    id,
				Kind:    schema.StatusRequestTimeout,
				Message: fmt.Sprintf("%s request %s timed out", entry.op, entry.id),
			})
			count++
		}
	}
	e.mu.Unlock()
	for _, event := range events {
		e.sink.OnStatus(event)
	}
	return count
}

// applyTerminal renders the terminal outcome of an evaluation into the
// connection's transcript.
func (e *Engine) applyTerminal(c *conn, resp schema.Response) {
	e.mu.Lock()
	if c.removed {
		e.mu.Unlock()
		return
	}
	before := c.transcript.revision()
	renderTerminal(c.transcript, resp)
	changed := c.transcript.revision() != before
	var tsnap schema.TranscriptSnapshot
	if changed {
		tsnap = c.transcript.Snapshot(0)
	}
	e.mu.Unlock()
	if changed {
		e.sink.OnTranscript(schema.TranscriptEvent{Conn: c.id, Transcript: tsnap})
	}
}

func renderTerminal(t *transcript, resp schema.Response) {
	switch {
	case resp.Status.Incomplete():
		msg := resp.Err
		if msg == "" {
			msg = "incomplete form"
		}
		t.AppendError(msg)
	case resp.Status.Error() || resp.Err != "":
		msg := resp.Err
		if msg == "" {
			msg = strings.Join(resp.Status.Flags(), " ")
		}
		t.AppendError(msg)
	case resp.HasValue():
		t.AppendResult(resp.Value)
	default:
		t.EnsurePromptVisible()
	}
}

// streamOut splices streamed output chunks into the transcript. Runs
// under the engine mutex as a call stream callback.
func streamOut(c *conn, resp schema.Response) {
	if resp.Out != "" {
		c.transcript.AppendOutput(resp.Out)
	}
}

type nopSink struct{}

func (nopSink) OnTranscript(schema.TranscriptEvent) {}
func (nopSink) OnConnEvent(schema.ConnEvent)        {}
func (nopSink) OnStatus(schema.StatusEvent)         {}
func (nopSink) OnInspector(schema.InspectorEvent)   {}
