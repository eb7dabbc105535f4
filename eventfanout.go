package replx

import (
	"pkt.systems/replx/core"
	"pkt.systems/replx/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnTranscript(event schema.TranscriptEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnTranscript(event)
	}
}

func (f eventFanout) OnConnEvent(event schema.ConnEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnConnEvent(event)
	}
}

func (f eventFanout) OnStatus(event schema.StatusEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnStatus(event)
	}
}

func (f eventFanout) OnInspector(event schema.InspectorEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnInspector(event)
	}
}
