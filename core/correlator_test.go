package core

import (
	"strconv"
	"testing"
	"time"

	"pkt.systems/replx/schema"
)

func TestRequestIDsMonotonic(t *testing.T) {
	prev, err := strconv.ParseUint(string(nextRequestID()), 10, 64)
	if err != nil {
		t.Fatalf("request id is not numeric: %v", err)
	}
	for i := 0; i < 100; i++ {
		next, err := strconv.ParseUint(string(nextRequestID()), 10, 64)
		if err != nil {
			t.Fatalf("request id is not numeric: %v", err)
		}
		if next <= prev {
			t.Fatalf("request id %d not greater than %d", next, prev)
		}
		prev = next
	}
}

func TestCorrelatorRetiresOnTerminal(t *testing.T) {
	c := newCorrelator()
	calls := 0
	c.register("7", schema.OpEval, func(schema.Response) { calls++ })

	partial := schema.Response{ID: "7", Status: schema.NewStatusSet()}
	if handler := c.take(partial); handler == nil {
		t.Fatalf("expected handler for partial response")
	} else {
		handler(partial)
	}
	if c.size() != 1 {
		t.Fatalf("partial response retired the entry, size = %d", c.size())
	}

	terminal := schema.Response{ID: "7", Status: schema.NewStatusSet(schema.StatusDone)}
	if handler := c.take(terminal); handler == nil {
		t.Fatalf("expected handler for terminal response")
	} else {
		handler(terminal)
	}
	if c.size() != 0 {
		t.Fatalf("terminal response did not retire the entry, size = %d", c.size())
	}
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}

	if handler := c.take(terminal); handler != nil {
		t.Fatalf("retired id yielded a handler")
	}
}

func TestCorrelatorUnknownID(t *testing.T) {
	c := newCorrelator()
	resp := schema.Response{ID: "nope", Status: schema.NewStatusSet(schema.StatusDone)}
	if handler := c.take(resp); handler != nil {
		t.Fatalf("unknown id yielded a handler")
	}
}

func TestCorrelatorEvict(t *testing.T) {
	c := newCorrelator()
	c.register("1", schema.OpEval, func(schema.Response) {})
	if !c.evict("1") {
		t.Fatalf("evict reported missing entry")
	}
	if c.evict("1") {
		t.Fatalf("double evict reported an entry")
	}
}

func TestCorrelatorExpired(t *testing.T) {
	c := newCorrelator()
	c.register("old", schema.OpEval, func(schema.Response) {})
	c.pending["old"].registeredAt = time.Now().Add(-time.Hour)
	c.register("fresh", schema.OpEval, func(schema.Response) {})

	expired := c.expired(time.Now().Add(-time.Minute))
	if len(expired) != 1 || expired[0].id != "old" {
		t.Fatalf("expired = %+v, want the old entry only", expired)
	}
	if c.size() != 1 {
		t.Fatalf("size after expiry = %d, want 1", c.size())
	}
}

func TestCorrelatorDrain(t *testing.T) {
	c := newCorrelator()
	c.register("1", schema.OpEval, func(schema.Response) {})
	c.register("2", schema.OpInfo, func(schema.Response) {})
	drained := c.drain()
	if len(drained) != 2 {
		t.Fatalf("drained %d entries, want 2", len(drained))
	}
	if c.size() != 0 {
		t.Fatalf("size after drain = %d, want 0", c.size())
	}
}
