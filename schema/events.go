package schema

// TranscriptEvent signals that a connection's transcript end moved.
type TranscriptEvent struct {
	Conn       ConnID
	Transcript TranscriptSnapshot
}

// ConnEventType names a connection lifecycle transition.
type ConnEventType string

const (
	// ConnOpened indicates a connection entered the registry.
	ConnOpened ConnEventType = "opened"
	// ConnClosed indicates a connection left the registry.
	ConnClosed ConnEventType = "closed"
	// ConnActivated indicates the active marker moved to a connection.
	ConnActivated ConnEventType = "activated"
)

// ConnEvent signals a connection lifecycle transition.
type ConnEvent struct {
	Conn ConnID
	Type ConnEventType
	Snap ConnSnapshot
}

// StatusKind classifies an ephemeral status message.
type StatusKind string

const (
	// StatusDecodeFailure reports repeated malformed inbound frames.
	StatusDecodeFailure StatusKind = "decode-failure"
	// StatusRequestTimeout reports an evicted orphaned request.
	StatusRequestTimeout StatusKind = "request-timeout"
	// StatusDisconnect reports unexpected transport termination.
	StatusDisconnect StatusKind = "disconnect"
)

// StatusEvent carries an ephemeral status message for a connection.
type StatusEvent struct {
	Conn    ConnID
	Kind    StatusKind
	Message string
}

// InspectorEvent signals that an inspect session changed.
type InspectorEvent struct {
	Conn      ConnID
	Inspector InspectorSnapshot
}
