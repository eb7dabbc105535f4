package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"pkt.systems/pslog"

	"pkt.systems/replx/schema"
)

// Encode frames one outgoing request: a single JSON object terminated
// by a newline.
func Encode(req schema.Request) ([]byte, error) {
	if req.Op == "" {
		return nil, errors.New("request op is required")
	}
	if req.ID == "" {
		return nil, errors.New("request id is required")
	}
	frame := make(map[string]any, len(req.Payload)+3)
	for key, value := range req.Payload {
		frame[key] = value
	}
	frame["op"] = string(req.Op)
	frame["id"] = string(req.ID)
	if req.Session != "" {
		frame["session"] = req.Session
	}
	encoded, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Op, err)
	}
	return append(encoded, '\n'), nil
}

// frameError retains a malformed frame for logging.
type frameError struct {
	line []byte
	err  error
}

func (e *frameError) Error() string {
	if e == nil || e.err == nil {
		return "frame decode error"
	}
	return e.err.Error()
}

func (e *frameError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// DropError reports that consecutive malformed frames reached the
// decoder's tolerance threshold.
type DropError struct {
	Dropped int
}

func (e *DropError) Error() string {
	return fmt.Sprintf("dropped %d consecutive malformed frames", e.Dropped)
}

func (e *DropError) Unwrap() error { return schema.ErrDecodeFailure }

// Decoder incrementally splits a byte stream into newline-delimited
// frames and decodes each into a Response. A trailing partial frame is
// buffered until its delimiter arrives, so a delimiter landing in the
// middle of a multi-byte sequence never triggers a premature decode.
type Decoder struct {
	buf       []byte
	failRun   int
	threshold int
	log       pslog.Logger
}

// NewDecoder constructs a decoder. Malformed frames are dropped and
// counted; once threshold consecutive frames fail to decode, Feed
// surfaces a DropError alongside any successfully decoded responses.
func NewDecoder(threshold int, logger pslog.Logger) *Decoder {
	if threshold <= 0 {
		threshold = schema.DefaultDecodeFailThreshold
	}
	return &Decoder{threshold: threshold, log: logger}
}

// Feed appends a chunk to the receive buffer and returns every
// complete frame it finishes, in arrival order. It may be called with
// arbitrarily split chunks; splitting a stream at any byte boundary
// yields the same responses as feeding it whole.
func (d *Decoder) Feed(chunk []byte) ([]schema.Response, error) {
	d.buf = append(d.buf, chunk...)
	var responses []schema.Response
	var dropErr error
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			return responses, dropErr
		}
		line := bytes.TrimSpace(d.buf[:idx])
		d.buf = d.buf[idx+1:]
		if len(line) == 0 {
			continue
		}
		resp, err := decodeFrame(line)
		if err != nil {
			d.failRun++
			if d.log != nil {
				preview := previewText(string(line), 200)
				d.log.Warn("malformed frame dropped", "preview", preview, "truncated", len(preview) < len(line), "run", d.failRun, "err", err)
			}
			if d.failRun >= d.threshold {
				dropErr = &DropError{Dropped: d.failRun}
				d.failRun = 0
			}
			continue
		}
		d.failRun = 0
		responses = append(responses, resp)
	}
}

// Buffered reports how many bytes of partial frame are held.
func (d *Decoder) Buffered() int { return len(d.buf) }

func decodeFrame(line []byte) (schema.Response, error) {
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		return schema.Response{}, &frameError{line: append([]byte(nil), line...), err: err}
	}
	resp := schema.Response{
		Status: schema.NormalizeStatus(fields["status"]),
		Fields: fields,
	}
	if id, ok := fields["id"].(string); ok {
		resp.ID = schema.RequestID(id)
	}
	if value, ok := fields["value"]; ok {
		resp.Value = renderValue(value)
	}
	if out, ok := fields["out"].(string); ok {
		resp.Out = out
	}
	if msg, ok := fields["error"].(string); ok {
		resp.Err = msg
	}
	if ns, ok := fields["ns"].(string); ok {
		resp.NS = schema.Namespace(ns)
	}
	return resp, nil
}

// renderValue keeps string values verbatim and re-encodes anything
// else compactly.
func renderValue(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(encoded)
}

func previewText(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max]
}
