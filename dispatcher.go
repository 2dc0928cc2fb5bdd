package surf

import "github.com/surfws/surf/rfc6455"

// EventHandler is the sole extension point: applications implement these
// five callbacks and nothing else. All invocations happen sequentially
// on the event-loop goroutine, so state touched only inside handlers
// needs no synchronization.
type EventHandler interface {
	// OnOpen is called once per accepted connection, before any read.
	OnOpen(c *Conn)

	// OnMessage is called with the decoded text of each TEXT frame.
	OnMessage(c *Conn, msg string)

	// OnPing is called for each PING frame.
	OnPing(c *Conn)

	// OnPong is called for each PONG frame.
	OnPong(c *Conn)

	// OnClose is called after the transport is torn down, for every
	// transition to StateClosed: a received CLOSE frame, EOF, a
	// transport error or a protocol violation.
	OnClose(c *Conn)
}

// NopHandler implements EventHandler with no-ops. Embed it to implement
// only the callbacks an application cares about.
type NopHandler struct{}

func (NopHandler) OnOpen(*Conn)            {}
func (NopHandler) OnMessage(*Conn, string) {}
func (NopHandler) OnPing(*Conn)            {}
func (NopHandler) OnPong(*Conn)            {}
func (NopHandler) OnClose(*Conn)           {}

// dispatch routes one parsed frame by opcode. TEXT, PING and PONG reach
// exactly one handler; CLOSE is acknowledged and the transport is closed
// strictly before OnClose runs. BINARY and CONTINUATION are reserved for
// future use and ignored here.
func (s *Server) dispatch(p rfc6455.PayloadData, c *Conn) {
	s.metrics.frameDispatched(p.Opcode)

	switch {
	case p.Opcode.IsText():
		s.handler.OnMessage(c, p.DecodeText())
	case p.Opcode.IsPing():
		s.handler.OnPing(c)
	case p.Opcode.IsPong():
		s.handler.OnPong(c)
	case p.Opcode.IsClose():
		code, _ := rfc6455.DecodeClosePayload(p.Decode())
		if !code.Valid() {
			code = rfc6455.CloseNormal
		}
		c.SendClose(code, "")
		s.teardown(c)
	}
}
