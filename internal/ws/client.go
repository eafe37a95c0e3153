package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Client is one live connection. It starts anonymous and gets a user
// identity when the join handshake succeeds.
type Client struct {
	ID   string
	Send chan []byte

	mu     sync.Mutex
	userID uint
	closed bool
}

func NewClient(buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		ID:   uuid.NewString(),
		Send: make(chan []byte, buffer),
	}
}

// UserID returns 0 until the connection has joined.
func (c *Client) UserID() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) setUser(id uint) {
	c.mu.Lock()
	c.userID = id
	c.mu.Unlock()
}

// Enqueue hands a frame to the write pump without blocking. It returns false
// when the buffer is full or the client is already closed.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}
