package surf

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
	"golang.org/x/sys/unix"

	"github.com/surfws/surf/internal"
	"github.com/surfws/surf/rfc6455"
)

// Server accepts WebSocket connections and drives them from a single
// goroutine: one readiness multiplexer, one fixed read buffer, no
// per-connection goroutines. Handlers run sequentially on the loop
// goroutine; the only operations safe to call from outside it are Stop
// and Post.
//
// One readable event is served by one read of at most the configured
// buffer size, and that chunk must hold a complete handshake request or
// frame: larger frames are not reassembled across reads.
type Server struct {
	handler EventHandler

	logger       *slog.Logger
	pollInterval time.Duration
	readBufSize  int
	metrics      *metrics

	listenFd   int
	listenAddr net.Addr
	poller     *internal.Poller
	conns      map[int]*Conn
	rbuf       []byte

	running atomic.Bool

	mu     sync.Mutex
	posted *queue.Queue
}

// New binds a listening socket on addr (host:port) and returns a server
// ready to Run. A bind failure is returned immediately.
func New(addr string, handler EventHandler, opts ...Option) (*Server, error) {
	if handler == nil {
		return nil, errors.New("surf: nil handler")
	}

	s := &Server{
		handler:      handler,
		logger:       slog.Default(),
		pollInterval: DefaultPollInterval,
		readBufSize:  DefaultReadBufferSize,
		conns:        make(map[int]*Conn),
		posted:       queue.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	fd, err := internal.ListenTCP(addr)
	if err != nil {
		return nil, fmt.Errorf("surf: listen %s: %w", addr, err)
	}
	s.listenFd = fd
	s.listenAddr, _ = internal.SocketAddress(fd)

	s.poller, err = internal.NewPoller()
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("surf: poller: %w", err)
	}

	s.running.Store(true)
	return s, nil
}

// Addr returns the bound listening address, useful with port 0.
func (s *Server) Addr() net.Addr { return s.listenAddr }

// Stop asks the loop to return. Safe to call from any goroutine; a
// running loop observes it within one poll interval, and a Stop issued
// before Run keeps the loop from starting at all.
func (s *Server) Stop() {
	s.running.Store(false)
}

// Post schedules fn to run on the loop goroutine within one poll
// interval. It is the way for outside producers to touch loop-owned
// connections.
func (s *Server) Post(fn func()) {
	s.mu.Lock()
	s.posted.Add(fn)
	s.mu.Unlock()
}

// Run drives the event loop until Stop is called or a fatal error
// occurs. Failures scoped to one connection close that connection only;
// failures of the listening socket or the multiplexer are returned to
// the caller. On return every connection is released.
func (s *Server) Run() error {
	defer func() {
		for _, c := range s.conns {
			c.Close()
		}
		clear(s.conns)
		s.poller.Close()
		unix.Close(s.listenFd)
	}()

	if err := s.poller.Add(s.listenFd); err != nil {
		return fmt.Errorf("surf: register listener: %w", err)
	}

	s.logger.Info("surf: listening", "addr", s.listenAddr)

	timeoutMs := int(s.pollInterval.Milliseconds())
	s.rbuf = make([]byte, s.readBufSize)

	for s.running.Load() {
		events, err := s.poller.Poll(timeoutMs)
		if err != nil {
			if errors.Is(err, internal.ErrTimeout) {
				s.drainPosted()
				continue
			}
			return fmt.Errorf("surf: poll: %w", err)
		}

		for _, ev := range events {
			if ev.Fd == s.listenFd {
				if err := s.acceptReady(); err != nil {
					return err
				}
				continue
			}
			if c, ok := s.conns[ev.Fd]; ok {
				s.readable(c)
			}
		}

		s.drainPosted()
	}

	return nil
}

// acceptReady drains the listening socket. An error other than "nothing
// pending" is fatal to the loop.
func (s *Server) acceptReady() error {
	for {
		fd, raddr, err := internal.Accept(s.listenFd)
		if errors.Is(err, internal.ErrWouldBlock) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("surf: accept: %w", err)
		}

		c := &Conn{fd: fd, state: StateAccepted, remote: raddr, metrics: s.metrics}
		if err := s.poller.Add(fd); err != nil {
			s.logger.Warn("surf: register connection", "err", err)
			c.Close()
			continue
		}

		s.conns[fd] = c
		s.metrics.connAccepted()
		s.logger.Debug("surf: accepted", "remote", raddr)
		s.handler.OnOpen(c)
	}
}

// readable serves one readiness event: a single bounded read, then
// either the opening handshake or frame parse + dispatch.
func (s *Server) readable(c *Conn) {
	n, err := unix.Read(c.fd, s.rbuf)
	if err == unix.EAGAIN {
		return
	}
	if err != nil || n == 0 {
		s.teardown(c)
		return
	}
	buf := s.rbuf[:n]

	if c.state == StateAccepted && isHTTPRequest(buf) {
		s.upgrade(c, buf)
		return
	}

	p, err := rfc6455.ParsePayload(buf)
	if err != nil {
		s.logger.Warn("surf: bad frame", "remote", c.remote, "err", err)
		c.SendClose(rfc6455.CloseProtocolError, "malformed frame")
		s.teardown(c)
		return
	}

	s.dispatch(p, c)
}

// isHTTPRequest reports whether a fresh connection's first bytes look
// like an HTTP/1.1 GET. Upgrade validation proper happens in
// rfc6455.UpgradeResponse, so a GET without the required key is
// rejected there rather than misparsed as a frame.
func isHTTPRequest(b []byte) bool {
	return bytes.HasPrefix(b, []byte("GET ")) && bytes.Contains(b, []byte("HTTP/1.1"))
}

// upgrade answers the HTTP upgrade request and moves the connection to
// StateEstablished. A request without a key is rejected and the
// connection closed.
func (s *Server) upgrade(c *Conn, req []byte) {
	resp, err := rfc6455.UpgradeResponse(req)
	if err != nil {
		s.logger.Warn("surf: handshake rejected", "remote", c.remote, "err", err)
		c.SendClose(rfc6455.CloseProtocolError, err.Error())
		s.teardown(c)
		return
	}

	if !c.SendBytes(resp) {
		s.teardown(c)
		return
	}

	c.state = StateEstablished
	s.metrics.handshakeDone()
	s.logger.Debug("surf: established", "remote", c.remote)
}

// teardown deregisters and closes the connection, then notifies the
// handler. The transport is released strictly before OnClose runs.
func (s *Server) teardown(c *Conn) {
	if c.state == StateClosed {
		return
	}
	s.poller.Del(c.fd)
	delete(s.conns, c.fd)
	c.Close()
	s.metrics.connClosed()
	s.logger.Debug("surf: closed", "remote", c.remote)
	s.handler.OnClose(c)
}

// drainPosted runs the functions handed over by Post, on the loop
// goroutine.
func (s *Server) drainPosted() {
	for {
		s.mu.Lock()
		if s.posted.Length() == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.posted.Remove().(func())
		s.mu.Unlock()
		fn()
	}
}
