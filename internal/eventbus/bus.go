package eventbus

import (
	"context"
	"sync"

	"pkt.systems/pslog"

	"pkt.systems/replx/schema"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventTranscript carries a transcript change for a connection.
	EventTranscript EventType = "transcript"
	// EventConn carries connection lifecycle updates.
	EventConn EventType = "conn"
	// EventStatus carries ephemeral status messages.
	EventStatus EventType = "status"
	// EventInspector carries inspect session updates.
	EventInspector EventType = "inspector"
)

// Event represents a UI-facing event emitted by the core engine.
type Event struct {
	Type       EventType
	Transcript schema.TranscriptEvent
	Conn       schema.ConnEvent
	Status     schema.StatusEvent
	Inspector  schema.InspectorEvent
}

// Bus fans out events to per-connection subscribers. Subscribing with
// an empty connection id receives events for every connection.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.ConnID]map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.ConnID]map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the connection and returns a
// channel + cancel.
func (b *Bus) Subscribe(connID schema.ConnID) (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	connSubs := b.subs[connID]
	if connSubs == nil {
		connSubs = make(map[chan Event]struct{})
		b.subs[connID] = connSubs
	}
	connSubs[ch] = struct{}{}
	count := len(connSubs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("conn", connID).Debug("eventbus subscribe", "subs", count)
	}
	// The channel is never closed: publish sends outside the lock, so a
	// close here could race a send in flight. The buffered channel is
	// simply left for the collector once it drops out of the map.
	return ch, func() {
		b.mu.Lock()
		if subs := b.subs[connID]; subs != nil {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subs, connID)
			}
		}
		b.mu.Unlock()
		if b.log != nil {
			b.log.With("conn", connID).Debug("eventbus unsubscribe")
		}
	}
}

// OnTranscript publishes a transcript event.
func (b *Bus) OnTranscript(event schema.TranscriptEvent) {
	b.publish(event.Conn, Event{Type: EventTranscript, Transcript: event})
}

// OnConnEvent publishes a connection lifecycle event.
func (b *Bus) OnConnEvent(event schema.ConnEvent) {
	b.publish(event.Conn, Event{Type: EventConn, Conn: event})
}

// OnStatus publishes an ephemeral status event.
func (b *Bus) OnStatus(event schema.StatusEvent) {
	b.publish(event.Conn, Event{Type: EventStatus, Status: event})
}

// OnInspector publishes an inspect session event.
func (b *Bus) OnInspector(event schema.InspectorEvent) {
	b.publish(event.Conn, Event{Type: EventInspector, Inspector: event})
}

func (b *Bus) publish(connID schema.ConnID, event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]chan Event, 0, len(b.subs[connID])+len(b.subs[""]))
	for sub := range b.subs[connID] {
		subs = append(subs, sub)
	}
	if connID != "" {
		for sub := range b.subs[""] {
			subs = append(subs, sub)
		}
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 && b.log != nil {
		b.log.With("conn", connID).Trace("eventbus dropped", "count", dropped)
	}
}
