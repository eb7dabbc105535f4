package schema

import "sort"

// Status flags a response may carry. A status set is tested for
// membership, never for order or exact shape.
const (
	// StatusDone marks the terminal response for a request id.
	StatusDone = "done"
	// StatusError marks a response reporting a peer-side error.
	StatusError = "error"
	// StatusIncomplete marks input that was not a complete form.
	StatusIncomplete = "incomplete"
)

// StatusSet is the normalized set of status flags on a response.
type StatusSet map[string]struct{}

// NewStatusSet builds a set from the given flags.
func NewStatusSet(flags ...string) StatusSet {
	set := make(StatusSet, len(flags))
	for _, flag := range flags {
		if flag == "" {
			continue
		}
		set[flag] = struct{}{}
	}
	return set
}

// NormalizeStatus converts a decoded status value into a set. The wire
// may carry a single string or a sequence of strings; both normalize to
// the same set.
func NormalizeStatus(value any) StatusSet {
	switch v := value.(type) {
	case string:
		return NewStatusSet(v)
	case []string:
		return NewStatusSet(v...)
	case []any:
		set := make(StatusSet, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				set[s] = struct{}{}
			}
		}
		return set
	default:
		return StatusSet{}
	}
}

// Has reports whether the set contains the flag.
func (s StatusSet) Has(flag string) bool {
	_, ok := s[flag]
	return ok
}

// Done reports whether the response is terminal for its id.
func (s StatusSet) Done() bool { return s.Has(StatusDone) }

// Error reports whether the peer flagged an error.
func (s StatusSet) Error() bool { return s.Has(StatusError) }

// Incomplete reports whether the peer flagged incomplete input.
func (s StatusSet) Incomplete() bool { return s.Has(StatusIncomplete) }

// Flags returns the flags in sorted order.
func (s StatusSet) Flags() []string {
	flags := make([]string, 0, len(s))
	for flag := range s {
		flags = append(flags, flag)
	}
	sort.Strings(flags)
	return flags
}

// Request is one outgoing protocol message.
type Request struct {
	Op      Op
	ID      RequestID
	Session string
	// Payload holds op-specific fields merged into the frame.
	Payload map[string]any
}

// Response is one decoded inbound protocol message. Known fields are
// lifted from the frame; Fields retains the complete decoded mapping
// for op-specific lookups.
type Response struct {
	ID     RequestID
	Status StatusSet
	Value  string
	Out    string
	Err    string
	NS     Namespace
	Fields map[string]any
}

// HasValue reports whether the frame carried a value field at all,
// distinguishing an absent value from an empty rendering.
func (r Response) HasValue() bool {
	_, ok := r.Fields["value"]
	return ok
}

// String looks up an op-specific string field from the frame.
func (r Response) String(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

// Strings looks up an op-specific sequence of strings from the frame.
func (r Response) Strings(key string) []string {
	raw, ok := r.Fields[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Int looks up an op-specific integer field from the frame. JSON
// numbers decode as float64.
func (r Response) Int(key string) (int, bool) {
	switch v := r.Fields[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// Map looks up an op-specific nested mapping from the frame.
func (r Response) Map(key string) map[string]any {
	m, _ := r.Fields[key].(map[string]any)
	return m
}
