// Package surf is a small WebSocket server built directly on RFC 6455:
// a hand-written frame codec, an HTTP-upgrade handshake and a
// single-goroutine, readiness-driven event loop multiplexing every
// connection over epoll (kqueue on BSD).
//
// Applications implement the five-method EventHandler and receive
// *Conn handles in its callbacks; sending happens through the handle's
// best-effort Send methods. The loop owns all connection state, so
// handler code needs no locks. From other goroutines only Stop and Post
// may be called.
//
//	type echo struct{ surf.NopHandler }
//
//	func (echo) OnMessage(c *surf.Conn, msg string) { c.SendText(msg) }
//
//	srv, err := surf.New(":8080", echo{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	log.Fatal(srv.Run())
//
// Protocol extensions, TLS and message fragmentation are out of scope:
// a frame must fit in one read buffer (4096 bytes by default).
package surf
