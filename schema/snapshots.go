package schema

// SpanKind styles a region of transcript text.
type SpanKind string

const (
	// SpanPrompt styles the namespace prompt at the transcript tail.
	SpanPrompt SpanKind = "prompt"
	// SpanInput styles user-typed code.
	SpanInput SpanKind = "input"
	// SpanOutput styles streamed evaluator output.
	SpanOutput SpanKind = "output"
	// SpanResult styles rendered result lines.
	SpanResult SpanKind = "result"
	// SpanError styles error lines.
	SpanError SpanKind = "error"
)

// Span marks a half-open [Start, End) byte range of the transcript log.
type Span struct {
	Start int
	End   int
	Kind  SpanKind
}

// ConnSnapshot is a read-only view of connection state for transports.
type ConnSnapshot struct {
	ID        ConnID
	Host      string
	Port      int
	Session   string
	Namespace Namespace
	Active    bool
	Pending   int
}

// TranscriptSnapshot represents the current scrollback view of a
// connection's transcript.
type TranscriptSnapshot struct {
	Lines        []string
	TotalLines   int
	ScrollOffset int
	AtBottom     bool
	// PendingInput is the user-typed, not-yet-submitted text at the
	// transcript tail.
	PendingInput string
	// PromptLabel is the namespace label rendered before the prompt
	// separator.
	PromptLabel string
}

// InspectorState names an inspect session state.
type InspectorState string

const (
	// InspectorClosed indicates no inspect session is open.
	InspectorClosed InspectorState = "closed"
	// InspectorViewing indicates a value is being viewed.
	InspectorViewing InspectorState = "viewing"
)

// InspectorSnapshot is a read-only view of an inspect session.
type InspectorSnapshot struct {
	State  InspectorState
	Handle Handle
	// Depth is the navigation history length; 1 means at the root.
	Depth int
	// Lines is the rendered summary of the current value.
	Lines []string
}
