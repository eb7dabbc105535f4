package core

import "strings"

// inputHistory keeps submitted forms for console recall. Consecutive
// duplicates and blank forms are not recorded.
type inputHistory struct {
	entries []string
	max     int
}

func newHistory(max int) *inputHistory {
	if max <= 0 {
		max = 200
	}
	return &inputHistory{max: max}
}

func (h *inputHistory) Append(entry string) bool {
	if h == nil {
		return false
	}
	if strings.TrimSpace(entry) == "" {
		return false
	}
	if len(h.entries) > 0 && h.entries[len(h.entries)-1] == entry {
		return false
	}
	h.entries = append(h.entries, entry)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
	return true
}

func (h *inputHistory) Entries() []string {
	if h == nil {
		return nil
	}
	return append([]string(nil), h.entries...)
}
