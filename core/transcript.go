package core

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"pkt.systems/replx/schema"
)

// transcript is the append-only interaction log for one connection.
// Exactly one mutable region exists: the pending input after the
// prompt at the tail. Asynchronous insertions lift the pending input
// out, splice their content in, and re-render the prompt with the
// pending input restored, so user keystrokes are never lost.
type transcript struct {
	log   []byte
	spans []schema.Span
	// promptStart is the byte offset of the prompt line currently at
	// the tail, or -1 when no prompt is rendered.
	promptStart int
	// pendingStart is the byte offset where unsent user text begins.
	// Meaningful only while promptStart >= 0.
	pendingStart int
	label        string
	suffix       string
	scrollOffset int
	maxBytes     int
	// rev increments on every mutation so callers can detect change.
	rev uint64
}

func (t *transcript) revision() uint64 {
	return t.rev
}

func newTranscript(label, suffix string, maxBytes int) *transcript {
	if suffix == "" {
		suffix = schema.DefaultPromptSuffix
	}
	if maxBytes <= 0 {
		maxBytes = schema.DefaultTranscriptMaxBytes
	}
	return &transcript{
		promptStart:  -1,
		pendingStart: 0,
		label:        label,
		suffix:       suffix,
		maxBytes:     maxBytes,
	}
}

// AppendOutput splices streamed output text, verbatim, before the
// prompt.
func (t *transcript) AppendOutput(text string) {
	t.insert(schema.SpanOutput, text)
}

// AppendResult splices a rendered result line before the prompt.
func (t *transcript) AppendResult(value string) {
	t.insert(schema.SpanResult, "=> "+value+"\n")
}

// AppendError splices a rendered error line before the prompt.
func (t *transcript) AppendError(message string) {
	t.insert(schema.SpanError, "Error: "+message+"\n")
}

// EnsurePromptVisible renders a fresh prompt at the tail unless one is
// already there.
func (t *transcript) EnsurePromptVisible() {
	if t.promptStart >= 0 {
		return
	}
	t.insert("", "")
}

// insert implements the five-step insertion protocol: save pending
// input, truncate the prompt line, splice content at a line start, and
// re-render the prompt followed by the saved input.
func (t *transcript) insert(kind schema.SpanKind, text string) {
	t.rev++
	linesBefore := bytes.Count(t.log, []byte{'\n'})

	saved := ""
	if t.promptStart >= 0 {
		saved = string(t.log[t.pendingStart:])
		t.truncateTo(t.promptStart)
		t.promptStart = -1
	}
	t.ensureLineStart()
	if text != "" {
		start := len(t.log)
		t.log = append(t.log, text...)
		t.addSpan(kind, start, len(t.log))
	}
	t.renderPrompt(saved)
	t.trim()

	if t.scrollOffset > 0 {
		if delta := bytes.Count(t.log, []byte{'\n'}) - linesBefore; delta > 0 {
			t.scrollOffset += delta
		}
	}
}

// SetLabel changes the namespace label and refreshes the prompt if one
// is rendered.
func (t *transcript) SetLabel(label string) {
	if label == t.label {
		return
	}
	t.label = label
	t.rev++
	if t.promptStart < 0 {
		return
	}
	saved := string(t.log[t.pendingStart:])
	t.truncateTo(t.promptStart)
	t.promptStart = -1
	t.renderPrompt(saved)
}

// Pending returns the unsent user text at the tail.
func (t *transcript) Pending() string {
	if t.promptStart < 0 {
		return ""
	}
	return string(t.log[t.pendingStart:])
}

// InsertPending appends typed text to the pending input region.
func (t *transcript) InsertPending(text string) {
	if text == "" {
		return
	}
	if t.promptStart < 0 {
		t.EnsurePromptVisible()
	}
	start := len(t.log)
	t.log = append(t.log, text...)
	t.addSpan(schema.SpanInput, start, len(t.log))
	t.rev++
}

// ErasePending removes up to n trailing runes of pending input.
func (t *transcript) ErasePending(n int) {
	if t.promptStart < 0 {
		return
	}
	for ; n > 0 && len(t.log) > t.pendingStart; n-- {
		_, size := utf8.DecodeLastRune(t.log[t.pendingStart:])
		if size <= 0 {
			size = 1
		}
		t.truncateTo(len(t.log) - size)
		t.rev++
	}
}

// SetPending replaces the pending input wholesale (history recall).
func (t *transcript) SetPending(text string) {
	if t.promptStart < 0 {
		t.EnsurePromptVisible()
	}
	t.truncateTo(t.pendingStart)
	t.InsertPending(text)
	t.rev++
}

// Submit reads the pending input, terminates it with a newline in the
// log, and clears the pending region. Returns the code payload.
func (t *transcript) Submit() string {
	if t.promptStart < 0 {
		t.EnsurePromptVisible()
	}
	code := string(t.log[t.pendingStart:])
	start := t.pendingStart
	t.log = append(t.log, '\n')
	t.addSpan(schema.SpanInput, start, len(t.log))
	t.promptStart = -1
	t.pendingStart = len(t.log)
	t.scrollOffset = 0
	t.rev++
	return code
}

// Scroll adjusts the scroll offset by delta. Positive delta scrolls up
// (older lines). Limit is the viewport height.
func (t *transcript) Scroll(delta, limit int) {
	t.scrollOffset = clampScroll(t.scrollOffset+delta, t.lineCount(), limit)
	t.rev++
}

// ResetScroll returns the view to the bottom.
func (t *transcript) ResetScroll() {
	t.scrollOffset = 0
	t.rev++
}

// Snapshot returns a view of the transcript for the given viewport
// limit.
func (t *transcript) Snapshot(limit int) schema.TranscriptSnapshot {
	lines := t.lines()
	total := len(lines)
	if limit <= 0 || limit > total {
		limit = total
	}

	max := maxScroll(total, limit)
	if t.scrollOffset > max {
		t.scrollOffset = max
	}

	end := total - t.scrollOffset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}

	window := make([]string, end-start)
	copy(window, lines[start:end])

	return schema.TranscriptSnapshot{
		Lines:        window,
		TotalLines:   total,
		ScrollOffset: t.scrollOffset,
		AtBottom:     t.scrollOffset == 0,
		PendingInput: t.Pending(),
		PromptLabel:  t.label,
	}
}

// Text returns the full log text.
func (t *transcript) Text() string {
	return string(t.log)
}

// Spans returns a copy of the styling spans over the log text.
func (t *transcript) Spans() []schema.Span {
	return append([]schema.Span(nil), t.spans...)
}

func (t *transcript) lines() []string {
	if len(t.log) == 0 {
		return nil
	}
	lines := strings.Split(string(t.log), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" && t.log[len(t.log)-1] == '\n' {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func (t *transcript) lineCount() int {
	return len(t.lines())
}

func (t *transcript) renderPrompt(saved string) {
	t.ensureLineStart()
	t.promptStart = len(t.log)
	t.log = append(t.log, t.label...)
	t.log = append(t.log, t.suffix...)
	t.addSpan(schema.SpanPrompt, t.promptStart, len(t.log))
	t.pendingStart = len(t.log)
	if saved != "" {
		t.log = append(t.log, saved...)
		t.addSpan(schema.SpanInput, t.pendingStart, len(t.log))
	}
}

func (t *transcript) ensureLineStart() {
	if len(t.log) > 0 && t.log[len(t.log)-1] != '\n' {
		t.log = append(t.log, '\n')
	}
}

func (t *transcript) addSpan(kind schema.SpanKind, start, end int) {
	if end <= start || kind == "" {
		return
	}
	if n := len(t.spans); n > 0 {
		last := &t.spans[n-1]
		if last.Kind == kind && last.End == start {
			last.End = end
			return
		}
	}
	t.spans = append(t.spans, schema.Span{Start: start, End: end, Kind: kind})
}

func (t *transcript) truncateTo(offset int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(t.log) {
		return
	}
	t.log = t.log[:offset]
	kept := t.spans[:0]
	for _, span := range t.spans {
		if span.Start >= offset {
			continue
		}
		if span.End > offset {
			span.End = offset
		}
		kept = append(kept, span)
	}
	t.spans = kept
}

// trim drops the oldest lines once the log exceeds its byte budget.
// Never trims into the prompt line.
func (t *transcript) trim() {
	if len(t.log) <= t.maxBytes {
		return
	}
	cut := len(t.log) - t.maxBytes
	idx := bytes.IndexByte(t.log[cut:], '\n')
	if idx < 0 {
		return
	}
	newStart := cut + idx + 1
	if t.promptStart >= 0 && newStart > t.promptStart {
		newStart = t.promptStart
	}
	if newStart <= 0 {
		return
	}
	t.log = append([]byte(nil), t.log[newStart:]...)
	kept := t.spans[:0]
	for _, span := range t.spans {
		span.Start -= newStart
		span.End -= newStart
		if span.End <= 0 {
			continue
		}
		if span.Start < 0 {
			span.Start = 0
		}
		kept = append(kept, span)
	}
	t.spans = kept
	if t.promptStart >= 0 {
		t.promptStart -= newStart
	}
	t.pendingStart -= newStart
	if t.pendingStart < 0 {
		t.pendingStart = 0
	}
	if t.scrollOffset > t.lineCount() {
		t.scrollOffset = t.lineCount()
	}
}

func maxScroll(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	if total <= limit {
		return 0
	}
	return total - limit
}

func clampScroll(offset, total, limit int) int {
	max := maxScroll(total, limit)
	if offset < 0 {
		return 0
	}
	if offset > max {
		return max
	}
	return offset
}
