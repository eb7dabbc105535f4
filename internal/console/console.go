// Package console implements the interactive character-level console:
// keystrokes edit the pending input at the transcript tail, and every
// asynchronous update redraws the scrollback without disturbing what
// the user is typing. The same loop serves the local terminal and SSH
// sessions.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"pkt.systems/pslog"

	"pkt.systems/replx/core"
	"pkt.systems/replx/internal/eventbus"
	"pkt.systems/replx/schema"
)

// Console drives one connection's transcript over a terminal-ish pair
// of streams.
type Console struct {
	svc  core.Service
	bus  *eventbus.Bus
	conn schema.ConnID
	in   io.Reader
	scr  *screen
	log  pslog.Logger

	mu     sync.Mutex
	width  int
	height int
	resize chan struct{}

	status    []string
	inspector schema.InspectorSnapshot
	histPos   int
	lastLimit int
	altScreen bool
}

// New constructs a console for the given connection.
func New(svc core.Service, bus *eventbus.Bus, conn schema.ConnID, in io.Reader, out io.Writer, logger pslog.Logger) *Console {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Console{
		svc:     svc,
		bus:     bus,
		conn:    conn,
		in:      in,
		scr:     newScreen(out),
		log:     logger,
		width:   80,
		height:  24,
		resize:  make(chan struct{}, 1),
		histPos: -1,
	}
}

// UseAltScreen switches the terminal to the alternate screen for the
// session's duration.
func (c *Console) UseAltScreen(on bool) {
	c.altScreen = on
}

// SetSize updates the viewport dimensions and schedules a redraw.
func (c *Console) SetSize(width, height int) {
	c.mu.Lock()
	if width > 0 {
		c.width = width
	}
	if height > 0 {
		c.height = height
	}
	c.mu.Unlock()
	select {
	case c.resize <- struct{}{}:
	default:
	}
}

func (c *Console) size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

// Run executes the console loop until the input stream ends, the user
// quits, or the connection closes.
func (c *Console) Run(ctx context.Context) error {
	keys := make(chan key, 16)
	go readKeys(c.in, keys)

	// Subscribe to every connection so /use can retarget the console
	// without resubscribing.
	var events <-chan eventbus.Event
	if c.bus != nil {
		ch, unsubscribe := c.bus.Subscribe("")
		defer unsubscribe()
		events = ch
	}

	if c.altScreen {
		c.scr.EnterAltScreen()
		defer c.scr.ExitAltScreen()
	}
	c.render(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.resize:
			c.render(ctx)
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if c.handleEvent(ctx, event) {
				return nil
			}
		case k, ok := <-keys:
			if !ok {
				return nil
			}
			if c.handleKey(ctx, k) {
				return nil
			}
		}
	}
}

func (c *Console) handleEvent(ctx context.Context, event eventbus.Event) bool {
	switch event.Type {
	case eventbus.EventConn:
		if event.Conn.Type == schema.ConnClosed && event.Conn.Conn == c.conn {
			c.log.Info("console connection closed")
			return true
		}
	case eventbus.EventStatus:
		if event.Status.Conn == c.conn {
			c.status = []string{fmt.Sprintf("%s: %s", event.Status.Kind, event.Status.Message)}
		}
	case eventbus.EventInspector:
		if event.Inspector.Conn == c.conn {
			c.inspector = event.Inspector.Inspector
		}
	}
	c.render(ctx)
	return false
}

func (c *Console) handleKey(ctx context.Context, k key) bool {
	switch k.kind {
	case keyRune:
		if unicode.IsPrint(k.r) {
			c.do(c.insert(ctx, string(k.r)))
		}
	case keyEnter:
		pending := c.pending(ctx)
		if strings.HasPrefix(strings.TrimSpace(pending), "/") {
			c.clearInput(ctx)
			if c.runCommand(ctx, strings.TrimSpace(pending)) {
				return true
			}
		} else {
			c.histPos = -1
			c.status = nil
			_, err := c.svc.SubmitInput(ctx, schema.SubmitInputRequest{Conn: c.conn})
			c.do(err)
		}
	case keyBackspace:
		_, err := c.svc.EraseInput(ctx, schema.EraseInputRequest{Conn: c.conn, Runes: 1})
		c.do(err)
	case keyCtrlU:
		c.clearInput(ctx)
	case keyUp:
		c.recallHistory(ctx, -1)
	case keyDown:
		c.recallHistory(ctx, 1)
	case keyPageUp:
		c.scroll(ctx, c.page())
	case keyPageDown:
		c.scroll(ctx, -c.page())
	case keyTab:
		c.completeAtPoint(ctx)
	case keyCtrlC:
		if c.pending(ctx) != "" {
			c.clearInput(ctx)
		} else {
			c.status = []string{"interrupt (use /quit or ctrl-d to leave)"}
		}
	case keyCtrlD:
		if c.pending(ctx) == "" {
			return true
		}
	case keyCtrlL:
	}
	c.render(ctx)
	return false
}

// do folds an op error into the status line.
func (c *Console) do(err error) {
	if err != nil {
		c.status = []string{"error: " + err.Error()}
	}
}

func (c *Console) insert(ctx context.Context, text string) error {
	_, err := c.svc.InsertInput(ctx, schema.InsertInputRequest{Conn: c.conn, Text: text})
	return err
}

func (c *Console) pending(ctx context.Context) string {
	snap, err := c.svc.GetTranscript(ctx, schema.GetTranscriptRequest{Conn: c.conn, Limit: 1})
	if err != nil {
		return ""
	}
	return snap.Transcript.PendingInput
}

func (c *Console) clearInput(ctx context.Context) {
	pending := c.pending(ctx)
	if pending == "" {
		return
	}
	_, err := c.svc.EraseInput(ctx, schema.EraseInputRequest{Conn: c.conn, Runes: utf8.RuneCountInString(pending)})
	c.do(err)
}

func (c *Console) recallHistory(ctx context.Context, dir int) {
	history, err := c.svc.GetHistory(ctx, schema.GetHistoryRequest{Conn: c.conn})
	if err != nil || len(history.Entries) == 0 {
		return
	}
	entries := history.Entries
	switch {
	case dir < 0 && c.histPos == -1:
		c.histPos = len(entries) - 1
	case dir < 0 && c.histPos > 0:
		c.histPos--
	case dir > 0 && c.histPos >= 0 && c.histPos < len(entries)-1:
		c.histPos++
	case dir > 0 && c.histPos == len(entries)-1:
		c.histPos = -1
	default:
		return
	}
	c.clearInput(ctx)
	if c.histPos >= 0 {
		c.do(c.insert(ctx, entries[c.histPos]))
	}
}

func (c *Console) scroll(ctx context.Context, delta int) {
	_, err := c.svc.ScrollTranscript(ctx, schema.ScrollTranscriptRequest{
		Conn:  c.conn,
		Delta: delta,
		Limit: c.viewLimit(),
	})
	c.do(err)
}

func (c *Console) page() int {
	limit := c.viewLimit()
	if limit < 2 {
		return 1
	}
	return limit / 2
}

func (c *Console) viewLimit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastLimit > 0 {
		return c.lastLimit
	}
	return c.height
}

// completeAtPoint asks the peer for completions of the token being
// typed. A single candidate is inserted; several are listed.
func (c *Console) completeAtPoint(ctx context.Context) {
	pending := c.pending(ctx)
	start := strings.LastIndexAny(pending, " ([{")
	prefix := pending[start+1:]
	if prefix == "" {
		return
	}
	resp, err := c.svc.Complete(ctx, schema.CompleteRequest{Conn: c.conn, Prefix: prefix})
	if err != nil {
		c.do(err)
		return
	}
	switch len(resp.Completions) {
	case 0:
		c.status = []string{"no completions for " + prefix}
	case 1:
		c.do(c.insert(ctx, strings.TrimPrefix(resp.Completions[0], prefix)))
	default:
		c.status = []string{"completions: " + strings.Join(resp.Completions, "  ")}
	}
}

// clipLine truncates a line to the terminal width so a long form never
// wraps and throws off the cursor row math.
func clipLine(line string, width int) string {
	if width <= 0 || utf8.RuneCountInString(line) <= width {
		return line
	}
	runes := []rune(line)
	return string(runes[:width])
}

func (c *Console) render(ctx context.Context) {
	width, height := c.size()

	var extra []string
	if c.inspector.State == schema.InspectorViewing {
		extra = append(extra, fmt.Sprintf("-- inspect [%s] depth %d --", c.inspector.Handle, c.inspector.Depth))
		extra = append(extra, c.inspector.Lines...)
		extra = append(extra, "-- /nav <segment>  /back  /iq --")
	}
	extra = append(extra, c.status...)

	limit := height - len(extra)
	if limit < 1 {
		limit = 1
	}
	c.mu.Lock()
	c.lastLimit = limit
	c.mu.Unlock()

	snap, err := c.svc.GetTranscript(ctx, schema.GetTranscriptRequest{Conn: c.conn, Limit: limit})
	if err != nil {
		_ = c.scr.Render([]string{"error: " + err.Error()}, 1, 1)
		return
	}
	lines := append([]string(nil), snap.Transcript.Lines...)
	cursorRow := len(lines)
	cursorCol := 1
	if cursorRow > 0 {
		cursorCol = utf8.RuneCountInString(lines[cursorRow-1]) + 1
	} else {
		cursorRow = 1
	}
	if !snap.Transcript.AtBottom {
		extra = append(extra, fmt.Sprintf("-- scrollback %d --", snap.Transcript.ScrollOffset))
	}
	lines = append(lines, extra...)
	for i, line := range lines {
		lines[i] = clipLine(line, width)
	}
	if err := c.scr.Render(lines, cursorRow, cursorCol); err != nil {
		c.log.Debug("render", "err", err)
	}
}
