package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/nearby-backend/internal/observability"
	"github.com/yungbote/nearby-backend/internal/pkg/logger"
)

// Hub routes events to connected clients. User-addressed events reach
// every socket of that user; conversation events reach every socket
// subscribed to the conversation.
type Hub struct {
	log *logger.Logger

	mu            sync.RWMutex
	users         map[uuid.UUID]map[*Client]bool
	conversations map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "RealtimeHub"),
		users:         make(map[uuid.UUID]map[*Client]bool),
		conversations: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if _, ok := h.users[c.UserID]; !ok {
		h.users[c.UserID] = make(map[*Client]bool)
	}
	h.users[c.UserID][c] = true
	h.mu.Unlock()
	observability.Current().AddWSClients(1)
	h.log.Debug("Client registered", "client_id", c.ID, "user_id", c.UserID)
}

// Unregister removes c from every index and closes its outbound channel.
// Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.users[c.UserID]
	registered := ok && set[c]
	if registered {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.UserID)
		}
	}
	for conv := range c.conversations {
		if subs, ok := h.conversations[conv]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.conversations, conv)
			}
		}
	}
	c.conversations = make(map[string]bool)
	c.close()
	h.mu.Unlock()
	if registered {
		observability.Current().AddWSClients(-1)
		h.log.Debug("Client unregistered", "client_id", c.ID, "user_id", c.UserID)
	}
}

func (h *Hub) Subscribe(c *Client, conversationID string) {
	if conversationID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.users[c.UserID]; !ok || !set[c] {
		return
	}
	if _, ok := h.conversations[conversationID]; !ok {
		h.conversations[conversationID] = make(map[*Client]bool)
	}
	h.conversations[conversationID][c] = true
	c.conversations[conversationID] = true
}

func (h *Hub) Unsubscribe(c *Client, conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.conversations[conversationID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.conversations, conversationID)
		}
	}
	delete(c.conversations, conversationID)
}

// Handle adapts the hub to a bus subscriber.
func (h *Hub) Handle(_ context.Context, ev Event) {
	h.Deliver(ev)
}

// Deliver pushes ev to every matching client without blocking and returns
// the number of sockets it reached. A client whose buffer is full misses
// the event.
func (h *Hub) Deliver(ev Event) int {
	raw, err := encodeFrame(ev)
	if err != nil {
		h.log.Warn("Failed to encode event", "kind", ev.Kind, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := make(map[*Client]bool)
	if ev.ForUser != uuid.Nil {
		for c := range h.users[ev.ForUser] {
			targets[c] = true
		}
	}
	if ev.ConversationID != "" {
		for c := range h.conversations[ev.ConversationID] {
			targets[c] = true
		}
	}

	delivered := 0
	for c := range targets {
		select {
		case c.Outbound <- raw:
			delivered++
		default:
			observability.Current().IncWSDropped()
			h.log.Warn("Dropping event for slow client", "client_id", c.ID, "kind", ev.Kind)
		}
	}
	return delivered
}

// send queues a raw frame for one client.
func (h *Hub) send(c *Client, raw []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Outbound <- raw:
		return true
	default:
		observability.Current().IncWSDropped()
		return false
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.users {
		n += len(set)
	}
	return n
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*Client
	for _, set := range h.users {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.Unregister(c)
	}
}
