package core

import (
	"io"
	"sync"
)

// Client is a chat participant as seen by the core layer: one live connection.
// Outbound frames are queued on Events and written by the connection's writer.
type Client struct {
	ID     string
	Events chan []byte

	conn      io.Closer
	done      chan struct{}
	closeOnce sync.Once

	mu    sync.RWMutex
	name  string
	color int
}

// NewClient constructs a client with a bounded outbound queue.
// conn is closed when the client is closed; it may be nil in tests.
func NewClient(id string, conn io.Closer, buffer int) *Client {
	if buffer <= 0 {
		buffer = 1
	}
	return &Client{
		ID:     id,
		Events: make(chan []byte, buffer),
		conn:   conn,
		done:   make(chan struct{}),
	}
}

// Name returns the authenticated username, or "" before login.
func (c *Client) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Color returns the display colour of the authenticated user.
func (c *Client) Color() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.color
}

// Authenticated reports whether the client completed register or login.
func (c *Client) Authenticated() bool {
	return c.Name() != ""
}

// SetIdentity binds the connection to a user. An empty name clears it.
func (c *Client) SetIdentity(name string, color int) {
	c.mu.Lock()
	c.name = name
	c.color = color
	c.mu.Unlock()
}

// Send queues a frame without blocking. A full queue means the peer is not
// keeping up, so the client is closed and its own handler cleans up.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Events <- frame:
		return true
	default:
		go c.Close()
		return false
	}
}

// Reply queues a frame for this client, waiting for room in the queue.
// Used for responses to the client's own requests so none are dropped.
func (c *Client) Reply(frame []byte) bool {
	select {
	case c.Events <- frame:
		return true
	case <-c.done:
		return false
	}
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client closed and closes the underlying connection. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}
