package core

import (
	"context"
	"strings"

	"pkt.systems/replx/schema"
)

// summaryFromResponse reads the value summary from a terminal inspect
// response. Peers either nest it under a summary mapping or flatten it
// into the frame.
func summaryFromResponse(resp schema.Response) schema.ValueSummary {
	if raw := resp.Map("summary"); raw != nil {
		return schema.SummaryFromWire(raw)
	}
	return schema.SummaryFromWire(resp.Fields)
}

// InspectStart evaluates a form and opens an inspect session on its
// value. An already-open session is replaced.
func (e *Engine) InspectStart(ctx context.Context, req schema.InspectStartRequest) (schema.InspectStartResponse, error) {
	if strings.TrimSpace(req.Code) == "" {
		return schema.InspectStartResponse{}, schema.ErrEmptyInput
	}
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.InspectStartResponse{}, err
	}
	resp, err := e.call(ctx, c, schema.OpInspectStart, map[string]any{
		"code": req.Code,
		"ns":   string(e.currentNS(c)),
	}, nil)
	if err != nil {
		return schema.InspectStartResponse{}, err
	}
	if err := remoteErr(resp); err != nil {
		return schema.InspectStartResponse{}, err
	}
	entry := inspectEntry{
		handle:  schema.Handle(resp.String("handle")),
		summary: summaryFromResponse(resp),
	}
	e.mu.Lock()
	c.inspector.open(entry)
	snap := c.inspector.Snapshot()
	e.mu.Unlock()
	e.sink.OnInspector(schema.InspectorEvent{Conn: c.id, Inspector: snap})
	return schema.InspectStartResponse{Inspector: snap}, nil
}

// InspectNav descends into the current value by an index-or-key path
// segment. A failed navigation leaves the session where it was.
func (e *Engine) InspectNav(ctx context.Context, req schema.InspectNavRequest) (schema.InspectNavResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.InspectNavResponse{}, err
	}
	e.mu.Lock()
	current, viewing := c.inspector.current()
	e.mu.Unlock()
	if !viewing {
		return schema.InspectNavResponse{}, schema.ErrInspectorClosed
	}
	resp, err := e.call(ctx, c, schema.OpInspectNav, map[string]any{
		"handle": string(current.handle),
		"path":   req.Segment,
	}, nil)
	if err != nil {
		return schema.InspectNavResponse{}, err
	}
	if err := remoteErr(resp); err != nil {
		return schema.InspectNavResponse{}, err
	}
	entry := inspectEntry{
		handle:  schema.Handle(resp.String("handle")),
		summary: summaryFromResponse(resp),
	}
	if entry.handle == "" {
		entry.handle = current.handle
	}
	e.mu.Lock()
	c.inspector.push(entry)
	snap := c.inspector.Snapshot()
	e.mu.Unlock()
	e.sink.OnInspector(schema.InspectorEvent{Conn: c.id, Inspector: snap})
	return schema.InspectNavResponse{Inspector: snap}, nil
}

// InspectBack pops one navigation level, restoring the retained parent
// summary without refetching. At the root it is a no-op.
func (e *Engine) InspectBack(ctx context.Context, req schema.InspectBackRequest) (schema.InspectBackResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.InspectBackResponse{}, err
	}
	e.mu.Lock()
	if !c.inspector.viewing() {
		e.mu.Unlock()
		return schema.InspectBackResponse{}, schema.ErrInspectorClosed
	}
	c.inspector.back()
	snap := c.inspector.Snapshot()
	e.mu.Unlock()
	e.sink.OnInspector(schema.InspectorEvent{Conn: c.id, Inspector: snap})
	return schema.InspectBackResponse{Inspector: snap}, nil
}

// InspectQuit closes the inspect session. Quitting an already-closed
// session is a no-op.
func (e *Engine) InspectQuit(ctx context.Context, req schema.InspectQuitRequest) (schema.InspectQuitResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.InspectQuitResponse{}, err
	}
	e.mu.Lock()
	wasViewing := c.inspector.viewing()
	c.inspector.quit()
	snap := c.inspector.Snapshot()
	e.mu.Unlock()
	if wasViewing {
		e.sink.OnInspector(schema.InspectorEvent{Conn: c.id, Inspector: snap})
	}
	return schema.InspectQuitResponse{Inspector: snap}, nil
}
