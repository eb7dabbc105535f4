package core

import (
	"strconv"
	"sync/atomic"
	"time"

	"pkt.systems/replx/schema"
)

// requestCounter issues request ids. Strictly increasing and never
// reused for the lifetime of the process, so an id can never name two
// different pending requests even across connections.
var requestCounter atomic.Uint64

func nextRequestID() schema.RequestID {
	return schema.RequestID(strconv.FormatUint(requestCounter.Add(1), 10))
}

// responseHandler consumes every response bearing a request's id, up
// to and including the first terminal one.
type responseHandler func(schema.Response)

type pendingRequest struct {
	id           schema.RequestID
	op           schema.Op
	handler      responseHandler
	registeredAt time.Time
}

// correlator maps in-flight request ids to their handlers. It is not
// self-locking: the engine mutex serializes all access, which also
// guarantees handlers run to completion one at a time.
type correlator struct {
	pending map[schema.RequestID]*pendingRequest
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[schema.RequestID]*pendingRequest)}
}

func (c *correlator) register(id schema.RequestID, op schema.Op, handler responseHandler) {
	c.pending[id] = &pendingRequest{
		id:           id,
		op:           op,
		handler:      handler,
		registeredAt: time.Now(),
	}
}

// take returns the handler for a response id, retiring the entry first
// when the response is terminal so the handler can never run after
// removal. Returns nil for unknown or already-retired ids.
func (c *correlator) take(resp schema.Response) responseHandler {
	entry, ok := c.pending[resp.ID]
	if !ok {
		return nil
	}
	if resp.Status.Done() {
		delete(c.pending, resp.ID)
	}
	return entry.handler
}

// evict removes a single pending entry, reporting whether it existed.
func (c *correlator) evict(id schema.RequestID) bool {
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

// expired removes and returns entries registered before the cutoff.
func (c *correlator) expired(cutoff time.Time) []*pendingRequest {
	var out []*pendingRequest
	for id, entry := range c.pending {
		if entry.registeredAt.Before(cutoff) {
			out = append(out, entry)
			delete(c.pending, id)
		}
	}
	return out
}

// drain removes and returns every pending entry.
func (c *correlator) drain() []*pendingRequest {
	out := make([]*pendingRequest, 0, len(c.pending))
	for id, entry := range c.pending {
		out = append(out, entry)
		delete(c.pending, id)
	}
	return out
}

func (c *correlator) size() int {
	return len(c.pending)
}
