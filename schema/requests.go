package schema

// Connection lifecycle.

// ConnectRequest describes a request to open a connection. An empty
// Conn field on the other request types targets the active connection.
type ConnectRequest struct {
	Host string
	Port int
}

// ConnectResponse reports the opened connection.
type ConnectResponse struct {
	Conn ConnSnapshot
}

// DisconnectRequest describes a request to close a connection.
type DisconnectRequest struct {
	Conn ConnID
}

// DisconnectResponse reports the closed connection snapshot.
type DisconnectResponse struct {
	Conn ConnSnapshot
}

// ListConnsRequest describes a request to list live connections.
type ListConnsRequest struct{}

// ListConnsResponse reports live connections and the active marker.
type ListConnsResponse struct {
	Conns  []ConnSnapshot
	Active ConnID
}

// ActivateConnRequest describes a request to move the active marker.
type ActivateConnRequest struct {
	Conn ConnID
}

// ActivateConnResponse reports the activated connection snapshot.
type ActivateConnResponse struct {
	Conn ConnSnapshot
}

// Evaluation.

// EvalRequest describes a code evaluation.
type EvalRequest struct {
	Conn ConnID
	Code string
	// NS overrides the connection's current namespace when set.
	NS Namespace
}

// EvalResponse reports the terminal outcome of an evaluation. A peer
// error or incomplete flag is data, not a Go error: the connection
// stays usable.
type EvalResponse struct {
	Value      string
	HasValue   bool
	NS         Namespace
	Err        string
	Incomplete bool
}

// LoadFileRequest describes a whole-file evaluation.
type LoadFileRequest struct {
	Conn ConnID
	Path string
}

// LoadFileResponse reports the terminal outcome, shaped like eval.
type LoadFileResponse struct {
	Value      string
	HasValue   bool
	NS         Namespace
	Err        string
	Incomplete bool
}

// Namespaces.

// SetNamespaceRequest describes a namespace switch.
type SetNamespaceRequest struct {
	Conn ConnID
	NS   Namespace
}

// SetNamespaceResponse reports the namespace now current.
type SetNamespaceResponse struct {
	NS Namespace
}

// ListNamespacesRequest describes a namespace listing.
type ListNamespacesRequest struct {
	Conn ConnID
}

// ListNamespacesResponse reports known namespaces and the current one.
type ListNamespacesResponse struct {
	Namespaces []string
	Current    Namespace
}

// Symbol queries.

// SymbolInfoRequest describes a symbol metadata lookup.
type SymbolInfoRequest struct {
	Conn   ConnID
	Symbol string
}

// SymbolInfoResponse reports symbol metadata.
type SymbolInfoResponse struct {
	Info SymbolInfo
}

// MacroexpandRequest describes a macroexpansion.
type MacroexpandRequest struct {
	Conn ConnID
	Code string
}

// MacroexpandResponse reports the expansion.
type MacroexpandResponse struct {
	Expansion string
}

// TranspileRequest describes a transpilation.
type TranspileRequest struct {
	Conn ConnID
	Code string
}

// TranspileResponse reports the generated source and, when the peer
// names one, the target language.
type TranspileResponse struct {
	Source string
	Target string
}

// FindDefRequest describes a definition lookup.
type FindDefRequest struct {
	Conn   ConnID
	Symbol string
}

// FindDefResponse reports the definition location.
type FindDefResponse struct {
	Location DefLocation
}

// CompleteRequest describes a completion lookup.
type CompleteRequest struct {
	Conn   ConnID
	Prefix string
}

// CompleteResponse reports completion candidates.
type CompleteResponse struct {
	Completions []string
}

// ProtocolsRequest describes a protocol listing.
type ProtocolsRequest struct {
	Conn ConnID
}

// ProtocolsResponse reports protocols by name.
type ProtocolsResponse struct {
	Protocols map[string]ProtocolInfo
}

// Inspector.

// InspectStartRequest describes the start of an inspect session.
type InspectStartRequest struct {
	Conn ConnID
	Code string
}

// InspectStartResponse reports the inspect session view.
type InspectStartResponse struct {
	Inspector InspectorSnapshot
}

// InspectNavRequest describes navigation into the inspected value by
// an index-or-key path segment.
type InspectNavRequest struct {
	Conn    ConnID
	Segment string
}

// InspectNavResponse reports the inspect session view.
type InspectNavResponse struct {
	Inspector InspectorSnapshot
}

// InspectBackRequest describes popping one navigation level.
type InspectBackRequest struct {
	Conn ConnID
}

// InspectBackResponse reports the inspect session view.
type InspectBackResponse struct {
	Inspector InspectorSnapshot
}

// InspectQuitRequest describes closing the inspect session.
type InspectQuitRequest struct {
	Conn ConnID
}

// InspectQuitResponse reports the closed session view.
type InspectQuitResponse struct {
	Inspector InspectorSnapshot
}

// Transcript view and input.

// GetTranscriptRequest describes a transcript snapshot fetch.
type GetTranscriptRequest struct {
	Conn  ConnID
	Limit int
}

// GetTranscriptResponse reports the transcript snapshot.
type GetTranscriptResponse struct {
	Transcript TranscriptSnapshot
}

// ScrollTranscriptRequest describes a scrollback adjustment.
type ScrollTranscriptRequest struct {
	Conn  ConnID
	Delta int
	Limit int
}

// ScrollTranscriptResponse reports the transcript after scrolling.
type ScrollTranscriptResponse struct {
	Transcript TranscriptSnapshot
}

// InsertInputRequest describes typing into the pending input region.
type InsertInputRequest struct {
	Conn ConnID
	Text string
}

// InsertInputResponse reports the transcript after the edit.
type InsertInputResponse struct {
	Transcript TranscriptSnapshot
}

// EraseInputRequest describes erasing trailing runes of pending input.
type EraseInputRequest struct {
	Conn  ConnID
	Runes int
}

// EraseInputResponse reports the transcript after the edit.
type EraseInputResponse struct {
	Transcript TranscriptSnapshot
}

// SubmitInputRequest describes submitting the pending input for
// evaluation. Submission is fire-and-forget: completion streams into
// the transcript.
type SubmitInputRequest struct {
	Conn ConnID
}

// SubmitInputResponse reports the submitted code payload.
type SubmitInputResponse struct {
	Code string
}

// GetHistoryRequest describes a submitted-form history fetch.
type GetHistoryRequest struct {
	Conn ConnID
}

// GetHistoryResponse reports submitted forms, oldest first.
type GetHistoryResponse struct {
	Entries []string
}
