package schema

import "errors"

var (
	// ErrConnect indicates the transport could not be established.
	ErrConnect = errors.New("connect failed")
	// ErrNotConnected indicates an operation was attempted without a live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrConnNotFound indicates a connection id does not name a live connection.
	ErrConnNotFound = errors.New("connection not found")
	// ErrConnClosed indicates the connection closed while requests were pending.
	ErrConnClosed = errors.New("connection closed")
	// ErrRequestTimeout indicates a terminal response never arrived in time.
	ErrRequestTimeout = errors.New("request timed out")
	// ErrDecodeFailure indicates repeated malformed frames on a connection.
	ErrDecodeFailure = errors.New("protocol decode failure")
	// ErrRemote indicates the peer reported an error status.
	ErrRemote = errors.New("evaluation error")
	// ErrIncomplete indicates the submitted code was not a complete form.
	ErrIncomplete = errors.New("incomplete form")
	// ErrInspectorClosed indicates an inspector operation without an open session.
	ErrInspectorClosed = errors.New("inspector not open")
	// ErrEmptyInput indicates an empty code payload.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidNamespace indicates a malformed namespace name.
	ErrInvalidNamespace = errors.New("invalid namespace")
	// ErrNoPortFile indicates peer discovery found no sidecar port file.
	ErrNoPortFile = errors.New("port file not found")
)
