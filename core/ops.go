package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/replx/schema"
)

// remoteErr converts an error-flagged terminal response into a Go
// error for the query ops, where a peer failure means the query has no
// answer. Evaluation ops instead report peer errors as data.
func remoteErr(resp schema.Response) error {
	if resp.Status.Incomplete() {
		msg := resp.Err
		if msg == "" {
			msg = "form is not complete"
		}
		return fmt.Errorf("%w: %s", schema.ErrIncomplete, msg)
	}
	if resp.Status.Error() || resp.Err != "" {
		msg := resp.Err
		if msg == "" {
			msg = strings.Join(resp.Status.Flags(), " ")
		}
		return fmt.Errorf("%w: %s", schema.ErrRemote, msg)
	}
	return nil
}

func (e *Engine) currentNS(c *conn) schema.Namespace {
	e.mu.Lock()
	defer e.mu.Unlock()
	return c.ns
}

// Eval evaluates one code form. Streamed output and the terminal
// outcome render into the connection's transcript; the peer's error or
// incomplete flag comes back as response data, not a Go error, because
// the connection stays usable.
func (e *Engine) Eval(ctx context.Context, req schema.EvalRequest) (schema.EvalResponse, error) {
	if strings.TrimSpace(req.Code) == "" {
		return schema.EvalResponse{}, schema.ErrEmptyInput
	}
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.EvalResponse{}, err
	}
	ns := req.NS
	if ns != "" {
		if ns, err = schema.NormalizeNamespace(string(ns)); err != nil {
			return schema.EvalResponse{}, err
		}
	} else {
		ns = e.currentNS(c)
	}

	resp, err := e.call(ctx, c, schema.OpEval, map[string]any{
		"code": req.Code,
		"ns":   string(ns),
	}, streamOut)
	if err != nil {
		return schema.EvalResponse{}, err
	}
	e.applyTerminal(c, resp)
	out := schema.EvalResponse{
		Value:      resp.Value,
		HasValue:   resp.HasValue(),
		NS:         resp.NS,
		Err:        resp.Err,
		Incomplete: resp.Status.Incomplete(),
	}
	if out.NS == "" {
		out.NS = ns
	}
	return out, nil
}

// LoadFile evaluates a whole file. The file is read locally and its
// contents travel in the request, so the peer needs no filesystem
// access to the client's sources.
func (e *Engine) LoadFile(ctx context.Context, req schema.LoadFileRequest) (schema.LoadFileResponse, error) {
	if strings.TrimSpace(req.Path) == "" {
		return schema.LoadFileResponse{}, schema.ErrEmptyInput
	}
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.LoadFileResponse{}, err
	}
	contents, err := os.ReadFile(req.Path)
	if err != nil {
		return schema.LoadFileResponse{}, fmt.Errorf("load file: %w", err)
	}

	resp, err := e.call(ctx, c, schema.OpLoadFile, map[string]any{
		"file":      string(contents),
		"file-name": filepath.Base(req.Path),
		"file-path": req.Path,
	}, streamOut)
	if err != nil {
		return schema.LoadFileResponse{}, err
	}
	e.applyTerminal(c, resp)
	out := schema.LoadFileResponse{
		Value:      resp.Value,
		HasValue:   resp.HasValue(),
		NS:         resp.NS,
		Err:        resp.Err,
		Incomplete: resp.Status.Incomplete(),
	}
	if out.NS == "" {
		out.NS = e.currentNS(c)
	}
	return out, nil
}

// SetNamespace switches the connection's current namespace via the
// peer, so only namespaces the peer accepts become current.
func (e *Engine) SetNamespace(ctx context.Context, req schema.SetNamespaceRequest) (schema.SetNamespaceResponse, error) {
	ns, err := schema.NormalizeNamespace(string(req.NS))
	if err != nil {
		return schema.SetNamespaceResponse{}, err
	}
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.SetNamespaceResponse{}, err
	}
	resp, err := e.call(ctx, c, schema.OpUsingNS, map[string]any{"ns": string(ns)}, nil)
	if err != nil {
		return schema.SetNamespaceResponse{}, err
	}
	if err := remoteErr(resp); err != nil {
		return schema.SetNamespaceResponse{}, err
	}
	if resp.NS != "" {
		ns = resp.NS
	}
	var tsnap schema.TranscriptSnapshot
	e.mu.Lock()
	changed := c.ns != ns
	if changed {
		c.ns = ns
		c.transcript.SetLabel(string(ns))
		tsnap = c.transcript.Snapshot(0)
	}
	e.mu.Unlock()
	if changed {
		e.sink.OnTranscript(schema.TranscriptEvent{Conn: c.id, Transcript: tsnap})
	}
	return schema.SetNamespaceResponse{NS: ns}, nil
}

// ListNamespaces lists namespaces the peer knows.
func (e *Engine) ListNamespaces(ctx context.Context, req schema.ListNamespacesRequest) (schema.ListNamespacesResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.ListNamespacesResponse{}, err
	}
	resp, err := e.call(ctx, c, schema.OpNSList, nil, nil)
	if err != nil {
		return schema.ListNamespacesResponse{}, err
	}
	if err := remoteErr(resp); err != nil {
		return schema.ListNamespacesResponse{}, err
	}
	list := resp.Strings("namespaces")
	if list == nil {
		list = resp.Strings("ns-list")
	}
	current := schema.Namespace(resp.String("current-ns"))
	if current == "" {
		current = e.currentNS(c)
	}
	return schema.ListNamespacesResponse{Namespaces: list, Current: current}, nil
}

// SymbolInfo looks up metadata for a symbol in the current namespace.
func (e *Engine) SymbolInfo(ctx context.Context, req schema.SymbolInfoRequest) (schema.SymbolInfoResponse, error) {
	if strings.TrimSpace(req.Symbol) == "" {
		return schema.SymbolInfoResponse{}, schema.ErrEmptyInput
	}
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.SymbolInfoResponse{}, err
	}
	resp, err := e.call(ctx, c, schema.OpInfo, map[string]any{
		"symbol": req.Symbol,
		"ns":     string(e.currentNS(c)),
	}, nil)
	if err != nil {
		return schema.SymbolInfoResponse{}, err
	}
	if err := remoteErr(resp); err != nil {
		return schema.SymbolInfoResponse{}, err
	}
	return schema.SymbolInfoResponse{Info: schema.InfoFromWire(resp)}, nil
}

// Macroexpand expands a macro form once and returns the rendering.
func (e *Engine) Macroexpand(ctx context.Context, req schema.MacroexpandRequest) (schema.MacroexpandResponse, error) {
	if strings.TrimSpace(req.Code) == "" {
		return schema.MacroexpandResponse{}, schema.ErrEmptyInput
	}
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.MacroexpandResponse{}, err
	}
	resp, err := e.call(ctx, c, schema.OpMacroexpand, map[string]any{
		"code": req.Code,
		"ns":   string(e.currentNS(c)),
	}, nil)
	if err != nil {
		return schema.MacroexpandResponse{}, err
	}
	if err := remoteErr(resp); err != nil {
		return schema.MacroexpandResponse{}, err
	}
	expansion := resp.String("expansion")
	if expansion == "" && resp.HasValue() {
		expansion = resp.Value
	}
	return schema.MacroexpandResponse{Expansion: expansion}, nil
}

// Transpile returns the generated target-language source for a form.
// The peer names the target by key convention: any field whose name
// ends in "-source" carries generated source for that target.
func (e *Engine) Transpile(ctx context.Context, req schema.TranspileRequest) (schema.TranspileResponse, error) {
	if strings.TrimSpace(req.Code) == "" {
		return schema.TranspileResponse{}, schema.ErrEmptyInput
	}
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.TranspileResponse{}, err
	}
	resp, err := e.call(ctx, c, schema.OpTranspile, map[string]any{
		"code": req.Code,
		"ns":   string(e.currentNS(c)),
	}, nil)
	if err != nil {
		return schema.TranspileResponse{}, err
	}
	if err := remoteErr(resp); err != nil {
		return schema.TranspileResponse{}, err
	}
	out := schema.TranspileResponse{Source: resp.String("source")}
	if out.Source == "" {
		for key, value := range resp.Fields {
			target, ok := strings.CutSuffix(key, "-source")
			if !ok || target == "" {
				continue
			}
			if source, ok := value.(string); ok {
				out.Source = source
				out.Target = target
				break
			}
		}
	}
	return out, nil
}

// FindDef locates the definition of a symbol.
func (e *Engine) FindDef(ctx context.Context, req schema.FindDefRequest) (schema.FindDefResponse, error) {
	if strings.TrimSpace(req.Symbol) == "" {
		return schema.FindDefResponse{}, schema.ErrEmptyInput
	}
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.FindDefResponse{}, err
	}
	resp, err := e.call(ctx, c, schema.OpFindDef, map[string]any{
		"symbol": req.Symbol,
		"ns":     string(e.currentNS(c)),
	}, nil)
	if err != nil {
		return schema.FindDefResponse{}, err
	}
	if err := remoteErr(resp); err != nil {
		return schema.FindDefResponse{}, err
	}
	loc := schema.DefLocation{File: resp.String("file")}
	if line, ok := resp.Int("line"); ok {
		loc.Line = line
	}
	if col, ok := resp.Int("column"); ok {
		loc.Col = col
	}
	return schema.FindDefResponse{Location: loc}, nil
}

// Complete returns completion candidates for a prefix. Candidates may
// arrive as bare strings or as mappings with a candidate field.
func (e *Engine) Complete(ctx context.Context, req schema.CompleteRequest) (schema.CompleteResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.CompleteResponse{}, err
	}
	resp, err := e.call(ctx, c, schema.OpComplete, map[string]any{
		"prefix": req.Prefix,
		"ns":     string(e.currentNS(c)),
	}, nil)
	if err != nil {
		return schema.CompleteResponse{}, err
	}
	if err := remoteErr(resp); err != nil {
		return schema.CompleteResponse{}, err
	}
	var completions []string
	if raw, ok := resp.Fields["completions"].([]any); ok {
		for _, item := range raw {
			switch entry := item.(type) {
			case string:
				completions = append(completions, entry)
			case map[string]any:
				if candidate, ok := entry["candidate"].(string); ok {
					completions = append(completions, candidate)
				}
			}
		}
	}
	return schema.CompleteResponse{Completions: completions}, nil
}

// Protocols lists protocols known to the peer.
func (e *Engine) Protocols(ctx context.Context, req schema.ProtocolsRequest) (schema.ProtocolsResponse, error) {
	c, err := e.resolve(req.Conn)
	if err != nil {
		return schema.ProtocolsResponse{}, err
	}
	resp, err := e.call(ctx, c, schema.OpProtocols, nil, nil)
	if err != nil {
		return schema.ProtocolsResponse{}, err
	}
	if err := remoteErr(resp); err != nil {
		return schema.ProtocolsResponse{}, err
	}
	return schema.ProtocolsResponse{Protocols: schema.ProtocolsFromWire(resp.Map("protocols"))}, nil
}

// evalDetached runs a submitted form to completion in the background,
// rendering its outcome into the transcript.
func (e *Engine) evalDetached(c *conn, code string, ns schema.Namespace) {
	resp, err := e.call(context.Background(), c, schema.OpEval, map[string]any{
		"code": code,
		"ns":   string(ns),
	}, streamOut)
	if err != nil {
		if errors.Is(err, schema.ErrConnClosed) {
			return
		}
		e.applyTerminal(c, schema.Response{
			Status: schema.NewStatusSet(schema.StatusDone, schema.StatusError),
			Err:    err.Error(),
			Fields: map[string]any{},
		})
		return
	}
	e.applyTerminal(c, resp)
}
