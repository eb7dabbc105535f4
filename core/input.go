package core

import (
	"context"
	"strings"

	"pkt.systems/replx/schema"
)

// GetTranscript snapshots the transcript view for a viewport limit.
func (e *Engine) GetTranscript(ctx context.Context, req schema.GetTranscriptRequest) (schema.GetTranscriptResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.GetTranscriptResponse{}, err
	}
	e.mu.Lock()
	snap := c.transcript.Snapshot(req.Limit)
	e.mu.Unlock()
	return schema.GetTranscriptResponse{Transcript: snap}, nil
}

// ScrollTranscript adjusts the scrollback view. Scrolling is local to
// the view; no event is published for it.
func (e *Engine) ScrollTranscript(ctx context.Context, req schema.ScrollTranscriptRequest) (schema.ScrollTranscriptResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.ScrollTranscriptResponse{}, err
	}
	e.mu.Lock()
	c.transcript.Scroll(req.Delta, req.Limit)
	snap := c.transcript.Snapshot(req.Limit)
	e.mu.Unlock()
	return schema.ScrollTranscriptResponse{Transcript: snap}, nil
}

// InsertInput appends typed text to the pending input region.
func (e *Engine) InsertInput(ctx context.Context, req schema.InsertInputRequest) (schema.InsertInputResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.InsertInputResponse{}, err
	}
	e.mu.Lock()
	c.transcript.InsertPending(req.Text)
	snap := c.transcript.Snapshot(0)
	e.mu.Unlock()
	e.sink.OnTranscript(schema.TranscriptEvent{Conn: c.id, Transcript: snap})
	return schema.InsertInputResponse{Transcript: snap}, nil
}

// EraseInput removes trailing runes of pending input. A non-positive
// count erases one rune.
func (e *Engine) EraseInput(ctx context.Context, req schema.EraseInputRequest) (schema.EraseInputResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.EraseInputResponse{}, err
	}
	runes := req.Runes
	if runes <= 0 {
		runes = 1
	}
	e.mu.Lock()
	c.transcript.ErasePending(runes)
	snap := c.transcript.Snapshot(0)
	e.mu.Unlock()
	e.sink.OnTranscript(schema.TranscriptEvent{Conn: c.id, Transcript: snap})
	return schema.EraseInputResponse{Transcript: snap}, nil
}

// SubmitInput seals the pending input into the log and evaluates it in
// the background. Completion streams into the transcript rather than
// blocking the submitter. Blank input just re-renders the prompt.
func (e *Engine) SubmitInput(ctx context.Context, req schema.SubmitInputRequest) (schema.SubmitInputResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.SubmitInputResponse{}, err
	}
	e.mu.Lock()
	code := c.transcript.Submit()
	blank := strings.TrimSpace(code) == ""
	if blank {
		c.transcript.EnsurePromptVisible()
	} else {
		c.history.Append(code)
	}
	ns := c.ns
	snap := c.transcript.Snapshot(0)
	e.mu.Unlock()
	e.sink.OnTranscript(schema.TranscriptEvent{Conn: c.id, Transcript: snap})
	if blank {
		return schema.SubmitInputResponse{Code: ""}, nil
	}
	go e.evalDetached(c, code, ns)
	return schema.SubmitInputResponse{Code: code}, nil
}

// GetHistory returns submitted forms for the connection, oldest first.
func (e *Engine) GetHistory(ctx context.Context, req schema.GetHistoryRequest) (schema.GetHistoryResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.GetHistoryResponse{}, err
	}
	e.mu.Lock()
	entries := c.history.Entries()
	e.mu.Unlock()
	return schema.GetHistoryResponse{Entries: entries}, nil
}
