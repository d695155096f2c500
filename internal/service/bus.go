package service

import "sync"

// Layer event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// LayerEvent reports a change to the layer registry.
type LayerEvent struct {
	Action string `json:"action" enum:"created,updated,deleted" doc:"What happened to the layer"`
	ID     string `json:"id" doc:"Layer ID"`
}

// EventBus is a simple fan-out pub/sub for layer events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan LayerEvent]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan LayerEvent]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e LayerEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// subscriberBuffer absorbs a burst of layer edits while an SSE client is
// flushing. Events beyond it are dropped for that subscriber; clients
// refetch /api/v1/layers on the next event they do see.
const subscriberBuffer = 16

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan LayerEvent {
	ch := make(chan LayerEvent, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan LayerEvent) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
