// internal/registry/connection.go
package registry

import (
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/tictactoe/internal/protocol"
)

// Connection is one live client transport. The write pump drains OutChan; everything else only
// enqueues onto it.
type Connection struct {
	ID         uuid.UUID
	RemoteAddr string
	OutChan    chan protocol.Outbound

	cancel    func()
	closeOnce sync.Once

	mu          sync.Mutex
	closeCode   websocket.StatusCode
	closeReason string

	// identity and room back-reference, guarded by the owning Registry's lock
	playerID uuid.UUID
	username string
	roomID   string
}

// NewConnection builds a connection with an outbound buffer of size buf. cancel stops the
// connection's pumps; it may be nil in tests.
func NewConnection(remoteAddr string, buf int, cancel func()) *Connection {
	if buf < 1 {
		buf = 1
	}
	return &Connection{
		ID:         uuid.New(),
		RemoteAddr: remoteAddr,
		OutChan:    make(chan protocol.Outbound, buf),
		cancel:     cancel,
		closeCode:  websocket.StatusNormalClosure,
	}
}

// Write enqueues msg without blocking. It reports false if the buffer is full.
func (c *Connection) Write(msg protocol.Outbound) bool {
	select {
	case c.OutChan <- msg:
		return true
	default:
		return false
	}
}

// WriteError enqueues an error event.
func (c *Connection) WriteError(msg string) bool {
	return c.Write(protocol.NewError(msg))
}

// Close asks the transport to shut down with the given close status. Only the first call counts.
func (c *Connection) Close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.closeReason = reason
		c.mu.Unlock()
		if c.cancel != nil {
			c.cancel()
		}
	})
}

// CloseStatus is the status the transport should close with.
func (c *Connection) CloseStatus() (websocket.StatusCode, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}
