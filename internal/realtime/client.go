package realtime

import (
	"sync"

	"github.com/google/uuid"
)

const DefaultOutboundBuffer = 64

// Client is one authenticated socket. Outbound is closed by the hub when
// the client is unregistered.
type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Outbound chan []byte

	done      chan struct{}
	closeOnce sync.Once

	// guarded by Hub.mu
	conversations map[string]bool
}

func NewClient(userID uuid.UUID, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultOutboundBuffer
	}
	return &Client{
		ID:            uuid.New(),
		UserID:        userID,
		Outbound:      make(chan []byte, buffer),
		done:          make(chan struct{}),
		conversations: make(map[string]bool),
	}
}

func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		close(c.Outbound)
	})
}
