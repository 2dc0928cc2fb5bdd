package surf

import (
	"net"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/sys/unix"

	"github.com/surfws/surf/rfc6455"
)

// State is the lifecycle position of a connection. Transitions only move
// forward: Accepted → Established → Closed.
type State uint8

const (
	// StateAccepted means the socket was accepted and no handshake has
	// completed yet; the next read is expected to be an HTTP upgrade
	// request.
	StateAccepted State = iota

	// StateEstablished means the handshake response was written; every
	// further read is a WebSocket frame.
	StateEstablished

	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is one accepted socket. It is owned by the event-loop goroutine:
// handlers receive it in callbacks and may send on it or close it there,
// but must not retain it for use from other goroutines (route such work
// through Server.Post).
//
// Sends are synchronous and best-effort: a false result means the write
// failed or was partial, and the caller should treat the connection as
// broken. Nothing is buffered or retried.
type Conn struct {
	fd      int
	state   State
	remote  net.Addr
	metrics *metrics
}

// State returns the connection's lifecycle state.
func (c *Conn) State() State { return c.state }

// RemoteAddr returns the peer address, or nil if unknown.
func (c *Conn) RemoteAddr() net.Addr { return c.remote }

// SendText sends a TEXT frame carrying msg.
func (c *Conn) SendText(msg string) bool {
	return c.sendFrame(rfc6455.OpcodeText, []byte(msg))
}

// SendPing sends a bare PING frame.
func (c *Conn) SendPing() bool {
	return c.write(rfc6455.PingFrame)
}

// SendPong sends a bare PONG frame.
func (c *Conn) SendPong() bool {
	return c.write(rfc6455.PongFrame)
}

// SendClose sends a CLOSE frame carrying the status code and reason. It
// does not close the socket; pair it with Close.
func (c *Conn) SendClose(code rfc6455.CloseCode, reason string) bool {
	return c.sendFrame(rfc6455.OpcodeClose, rfc6455.EncodeClosePayload(code, reason))
}

// SendBytes writes raw bytes to the socket, bypassing the frame codec.
// The event loop uses it for the handshake response.
func (c *Conn) SendBytes(b []byte) bool {
	return c.write(b)
}

// Close releases the socket. I/O failure is swallowed into the boolean
// result; closing an already-closed connection reports true.
func (c *Conn) Close() bool {
	if c.state == StateClosed {
		return true
	}
	c.state = StateClosed
	return unix.Close(c.fd) == nil
}

func (c *Conn) sendFrame(op rfc6455.Opcode, payload []byte) bool {
	bb := bytebufferpool.Get()
	bb.B = rfc6455.AppendFrame(bb.B[:0], op, payload)
	ok := c.write(bb.B)
	bytebufferpool.Put(bb)
	return ok
}

func (c *Conn) write(b []byte) bool {
	if c.state == StateClosed {
		return false
	}
	n, err := unix.Write(c.fd, b)
	if err != nil || n != len(b) {
		c.metrics.sendFailed()
		return false
	}
	return true
}
