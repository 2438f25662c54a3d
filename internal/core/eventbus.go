package core

import "log/slog"

// progressBuffer is the small per-subscriber buffer beyond which slow
// subscribers start dropping Progress events (§4.11/§5).
const progressBuffer = 32

// Bus is a fan-out event channel for one search: one producer side (the
// orchestrator's site tasks) and N consumer subscribers. Result and
// Complete are never dropped; Progress is dropped for a subscriber that
// has fallen behind.
type Bus struct {
	subscribers []chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new buffered channel and returns it. Must be
// called before Publish begins (the orchestrator subscribes internal
// consumers up front, then starts site tasks).
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, progressBuffer)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// PublishProgress delivers a Progress event, best-effort: a full
// subscriber channel causes this event to be dropped for that subscriber
// rather than blocking the producer.
func (b *Bus) PublishProgress(p SiteProgress) {
	b.publish(Event{Kind: EventProgress, Progress: &p}, false)
}

// PublishResult delivers a Result event; never dropped, blocks the
// producer until every subscriber has room.
func (b *Bus) PublishResult(r SearchResult) {
	b.publish(Event{Kind: EventResult, Result: &r}, true)
}

// PublishComplete delivers the terminal Complete event and closes every
// subscriber channel.
func (b *Bus) PublishComplete(c CompleteSummary) {
	b.publish(Event{Kind: EventComplete, Complete: &c}, true)
	for _, ch := range b.subscribers {
		close(ch)
	}
}

func (b *Bus) publish(ev Event, mustDeliver bool) {
	for _, ch := range b.subscribers {
		if mustDeliver {
			ch <- ev
			continue
		}
		select {
		case ch <- ev:
		default:
			slog.Debug("event bus: dropping progress event for slow subscriber")
		}
	}
}
