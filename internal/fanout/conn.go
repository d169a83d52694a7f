package fanout

import (
	"github.com/google/uuid"
)

// sendBufferSize is the per-connection outbound queue. A full queue
// marks the client slow and drops it.
const sendBufferSize = 256

// Conn is one hub-side connection. The hub owns the topic membership;
// the connection owns its outbound queue.
type Conn struct {
	id     string
	wallet string // authenticated wallet, "" for anonymous
	send   chan []byte

	// topics this connection belongs to, maintained by the hub under
	// the hub lock.
	topics map[string]struct{}
}

// newConn creates a connection for an authenticated wallet identity
// (may be empty).
func newConn(wallet string) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		wallet: wallet,
		send:   make(chan []byte, sendBufferSize),
		topics: make(map[string]struct{}),
	}
}

// ID returns the connection's identifier.
func (c *Conn) ID() string { return c.id }

// Wallet returns the authenticated wallet, or "" when anonymous.
func (c *Conn) Wallet() string { return c.wallet }

// trySend queues a frame without blocking. Returns false when the
// buffer is full; the caller treats that as a dead client.
func (c *Conn) trySend(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}
