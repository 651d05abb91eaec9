package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Event is one message pushed to a session's WebSocket subscribers.
type Event struct {
	// Type discriminates the payload: "turn" or "segment_image".
	Type string `json:"type"`

	// SegmentID and ImageURL are set for "segment_image" events.
	SegmentID string `json:"segmentId,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`

	// Turn carries the resolved turn for "turn" events.
	Turn json.RawMessage `json:"turn,omitempty"`
}

// subscriberBuffer is the per-subscriber event queue depth. A browser that
// stops reading for this many events starts losing them rather than blocking
// the publisher.
const subscriberBuffer = 16

// Hub fans session events out to WebSocket subscribers. Publishing never
// blocks: slow subscribers drop events.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers a new subscriber for the session and returns its event
// channel plus a cancel function that must be called when the subscriber is
// done.
func (h *Hub) Subscribe(sessionID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[sessionID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[sessionID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[sessionID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber of the session. Events to
// subscribers with full buffers are dropped.
func (h *Hub) Publish(sessionID string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[sessionID] {
		select {
		case ch <- ev:
		default:
			slog.Debug("dropping event for slow subscriber", "session_id", sessionID, "type", ev.Type)
		}
	}
}

// DropSession removes all subscribers of a session, closing their channels.
// Called when the session is removed so hanging WebSockets terminate.
func (h *Hub) DropSession(sessionID string) {
	h.mu.Lock()
	set := h.subs[sessionID]
	delete(h.subs, sessionID)
	h.mu.Unlock()

	for ch := range set {
		close(ch)
	}
}

// SubscriberCount returns the number of live subscribers for a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[sessionID])
}

// serveSubscriber writes hub events for one session to a WebSocket until the
// context is cancelled, the subscription is dropped, or a write fails.
func serveSubscriber(ctx context.Context, conn *websocket.Conn, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				slog.Warn("marshal event", "type", ev.Type, "err", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
	}
}
