package core

import (
	"fmt"

	"pkt.systems/replx/schema"
)

// inspectEntry pairs a handle with the summary fetched for it, so
// back-navigation can restore the prior view without a refetch.
type inspectEntry struct {
	handle  schema.Handle
	summary schema.ValueSummary
}

// inspectorSession is the handle-addressed remote value browser for
// one connection. States are closed (empty history) and viewing (the
// last history entry is current).
type inspectorSession struct {
	history []inspectEntry
}

func newInspectorSession() *inspectorSession {
	return &inspectorSession{}
}

func (s *inspectorSession) viewing() bool {
	return len(s.history) > 0
}

func (s *inspectorSession) current() (inspectEntry, bool) {
	if len(s.history) == 0 {
		return inspectEntry{}, false
	}
	return s.history[len(s.history)-1], true
}

// open resets history to the given root entry.
func (s *inspectorSession) open(entry inspectEntry) {
	s.history = []inspectEntry{entry}
}

// push records a successful navigation.
func (s *inspectorSession) push(entry inspectEntry) {
	s.history = append(s.history, entry)
}

// back pops one level. Popping past the root is a no-op.
func (s *inspectorSession) back() {
	if len(s.history) > 1 {
		s.history = s.history[:len(s.history)-1]
	}
}

// quit discards the session.
func (s *inspectorSession) quit() {
	s.history = nil
}

func (s *inspectorSession) Snapshot() schema.InspectorSnapshot {
	entry, ok := s.current()
	if !ok {
		return schema.InspectorSnapshot{State: schema.InspectorClosed}
	}
	return schema.InspectorSnapshot{
		State:  schema.InspectorViewing,
		Handle: entry.handle,
		Depth:  len(s.history),
		Lines:  renderSummary(entry.summary),
	}
}

// renderSummary renders the facets a summary carries. The facets are
// additive, not mutually exclusive: a value may be primitive, sized,
// keyed, and structured at once, and every present facet is shown.
func renderSummary(summary schema.ValueSummary) []string {
	var lines []string
	if summary.Type != "" {
		lines = append(lines, "Type: "+summary.Type)
	}
	if summary.HasValue {
		lines = append(lines, "Value: "+summary.Value)
	}
	if summary.Count >= 0 {
		lines = append(lines, fmt.Sprintf("Count: %d", summary.Count))
		for i, item := range summary.Preview {
			lines = append(lines, fmt.Sprintf("  [%d] %s", i, item))
		}
	}
	if len(summary.Keys) > 0 {
		lines = append(lines, "Keys:")
		for _, key := range summary.Keys {
			lines = append(lines, "  "+key)
		}
	}
	if len(summary.Attrs) > 0 {
		lines = append(lines, "Attributes:")
		for _, attr := range summary.Attrs {
			lines = append(lines, "  "+attr)
		}
	}
	if len(lines) == 0 {
		lines = append(lines, "(no description)")
	}
	return lines
}
