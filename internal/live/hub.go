// Package live fans freshly collected data out to in-process
// subscribers (the SSE API feed).
package live

import (
	"encoding/json"
	"sync"

	"github.com/user/pathwatch/internal/model"
)

// EventType tags the payload carried by an Event.
type EventType string

const (
	EventSample      EventType = "sample"
	EventRouteChange EventType = "route_change"
	EventAlert       EventType = "alert"
)

// Event is one fan-out message for a target.
type Event struct {
	Type     EventType       `json:"type"`
	TargetID int64           `json:"target_id"`
	Payload  json.RawMessage `json:"payload"`
}

// Hub distributes events to per-target subscribers. Publishing never
// blocks: a subscriber whose buffer is full misses the event. Zero
// subscribers is not an error.
type Hub struct {
	mu   sync.RWMutex
	subs map[int64]map[chan Event]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]map[chan Event]struct{})}
}

// Subscribe registers a buffered channel for one target's events. The
// returned cancel func removes the subscription and closes the channel.
func (h *Hub) Subscribe(targetID int64, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	if h.subs[targetID] == nil {
		h.subs[targetID] = make(map[chan Event]struct{})
	}
	h.subs[targetID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[targetID], ch)
			if len(h.subs[targetID]) == 0 {
				delete(h.subs, targetID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// PublishSample fans a completed trace run out to the target's subscribers.
func (h *Hub) PublishSample(targetID int64, result *model.TraceResult) {
	h.publish(targetID, EventSample, result)
}

// PublishRouteChange fans a confirmed route change out.
func (h *Hub) PublishRouteChange(targetID int64, change *model.RouteChange) {
	h.publish(targetID, EventRouteChange, change)
}

// PublishAlert fans an alert state transition out.
func (h *Hub) PublishAlert(targetID int64, event *model.AlertEvent) {
	h.publish(targetID, EventAlert, event)
}

func (h *Hub) publish(targetID int64, typ EventType, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	ev := Event{Type: typ, TargetID: targetID, Payload: raw}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[targetID] {
		select {
		case ch <- ev:
		default: // slow subscriber, drop rather than stall the engine
		}
	}
}

// SubscriberCount reports the live subscription count for a target.
func (h *Hub) SubscriberCount(targetID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[targetID])
}
