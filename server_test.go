package surf

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfws/surf/rfc6455"
)

// startServer runs s on its own goroutine and tears it down with the
// test. It returns the ws:// URL to dial.
func startServer(t *testing.T, h EventHandler, opts ...Option) (*Server, string) {
	t.Helper()

	opts = append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)
	s, err := New("127.0.0.1:0", h, opts...)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	t.Cleanup(func() {
		s.Stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})

	return s, fmt.Sprintf("ws://%s/", s.Addr())
}

// echo answers every text message with itself and every ping with a
// pong.
type echo struct{ NopHandler }

func (echo) OnMessage(c *Conn, msg string) { c.SendText(msg) }
func (echo) OnPing(c *Conn)                { c.SendPong() }

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestServerEcho(t *testing.T) {
	_, url := startServer(t, echo{})
	ws := dial(t, url)

	for _, msg := range []string{"hello", "", "with spaces and ünïcode"} {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(msg)))

		typ, got, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, typ)
		assert.Equal(t, msg, string(got))
	}
}

func TestServerEchoTwoClients(t *testing.T) {
	_, url := startServer(t, echo{})

	a := dial(t, url)
	b := dial(t, url)

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("from a")))
	require.NoError(t, b.WriteMessage(websocket.TextMessage, []byte("from b")))

	_, got, err := a.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "from a", string(got))

	_, got, err = b.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "from b", string(got))
}

type lifecycleHandler struct {
	NopHandler
	opened chan struct{}
	closed chan struct{}
}

func (h *lifecycleHandler) OnOpen(*Conn)  { h.opened <- struct{}{} }
func (h *lifecycleHandler) OnClose(*Conn) { h.closed <- struct{}{} }

func TestServerOpenClose(t *testing.T) {
	h := &lifecycleHandler{
		opened: make(chan struct{}, 1),
		closed: make(chan struct{}, 1),
	}
	_, url := startServer(t, h)

	ws := dial(t, url)

	select {
	case <-h.opened:
	case <-time.After(time.Second):
		t.Fatal("OnOpen not invoked")
	}

	// a clean close from the client is acknowledged, then the server
	// tears the transport down and fires OnClose
	deadline := time.Now().Add(time.Second)
	require.NoError(t, ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	))

	_, _, err := ws.ReadMessage()
	closeErr, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected close error, got %v", err)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)

	select {
	case <-h.closed:
	case <-time.After(time.Second):
		t.Fatal("OnClose not invoked")
	}
}

func TestServerOnCloseOnAbruptDisconnect(t *testing.T) {
	h := &lifecycleHandler{
		opened: make(chan struct{}, 1),
		closed: make(chan struct{}, 1),
	}
	_, url := startServer(t, h)

	ws := dial(t, url)
	<-h.opened

	// drop the TCP connection without a close frame
	require.NoError(t, ws.UnderlyingConn().Close())

	select {
	case <-h.closed:
	case <-time.After(time.Second):
		t.Fatal("OnClose not invoked after abrupt disconnect")
	}
}

func TestServerPing(t *testing.T) {
	_, url := startServer(t, echo{})
	ws := dial(t, url)

	pong := make(chan struct{}, 1)
	ws.SetPongHandler(func(string) error {
		pong <- struct{}{}
		return nil
	})

	require.NoError(t, ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)))

	// control frames are surfaced during reads
	go ws.ReadMessage() //nolint:errcheck

	select {
	case <-pong:
	case <-time.After(time.Second):
		t.Fatal("no pong received")
	}
}

func TestServerRejectsHandshakeWithoutKey(t *testing.T) {
	s, _ := startServer(t, echo{})

	raw, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer raw.Close()

	req := "GET / HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"\r\n"
	_, err = raw.Write([]byte(req))
	require.NoError(t, err)

	raw.SetReadDeadline(time.Now().Add(time.Second))
	b := make([]byte, 1024)
	n, err := raw.Read(b)
	require.NoError(t, err)

	p, err := rfc6455.ParsePayload(b[:n])
	require.NoError(t, err)
	require.Equal(t, rfc6455.OpcodeClose, p.Opcode)
	code, _ := rfc6455.DecodeClosePayload(p.Decode())
	assert.Equal(t, rfc6455.CloseProtocolError, code)

	// then the connection is gone
	n, err = raw.Read(b)
	if err == nil {
		assert.Zero(t, n)
	}
}

func TestServerClosesOnMalformedFrame(t *testing.T) {
	h := &lifecycleHandler{
		opened: make(chan struct{}, 1),
		closed: make(chan struct{}, 1),
	}
	s, _ := startServer(t, h)

	raw, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer raw.Close()

	req := "GET / HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"\r\n"
	_, err = raw.Write([]byte(req))
	require.NoError(t, err)
	<-h.opened

	raw.SetReadDeadline(time.Now().Add(time.Second))
	b := make([]byte, 1024)
	n, err := raw.Read(b)
	require.NoError(t, err)
	require.Contains(t, string(b[:n]), "101 Switching Protocols")

	// a reserved opcode is a protocol violation
	_, err = raw.Write([]byte{0x87, 0x00})
	require.NoError(t, err)

	n, err = raw.Read(b)
	require.NoError(t, err)
	p, err := rfc6455.ParsePayload(b[:n])
	require.NoError(t, err)
	assert.Equal(t, rfc6455.OpcodeClose, p.Opcode)

	select {
	case <-h.closed:
	case <-time.After(time.Second):
		t.Fatal("OnClose not invoked after protocol violation")
	}
}

func TestServerStopLiveness(t *testing.T) {
	s, err := New("127.0.0.1:0", echo{}, WithPollInterval(20*time.Millisecond))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	// let the loop spin up
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	s.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestServerStopBeforeRun(t *testing.T) {
	s, err := New("127.0.0.1:0", echo{})
	require.NoError(t, err)

	// a stop issued before the loop starts is not lost
	s.Stop()

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run started despite a prior Stop")
	}
}

func TestServerPostRunsOnLoop(t *testing.T) {
	srv, _ := startServer(t, echo{})

	ran := make(chan struct{})
	srv.Post(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("posted function did not run")
	}
}

func TestServerPostBroadcast(t *testing.T) {
	h := &lifecycleHandler{
		opened: make(chan struct{}, 2),
		closed: make(chan struct{}, 2),
	}
	srv, url := startServer(t, h)

	a := dial(t, url)
	b := dial(t, url)
	<-h.opened
	<-h.opened

	// producers outside the loop reach connections through Post
	srv.Post(func() {
		for _, c := range srv.conns {
			if c.State() == StateEstablished {
				c.SendText("announcement")
			}
		}
	})

	for _, ws := range []*websocket.Conn{a, b} {
		_, got, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, "announcement", string(got))
	}
}

func TestServerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, url := startServer(t, echo{}, WithMetrics(reg))

	ws := dial(t, url)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("m")))
	_, _, err := ws.ReadMessage()
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.accepted))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.handshakes))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.frames.WithLabelValues("text")))
}

func TestServerAddr(t *testing.T) {
	s, err := New("127.0.0.1:0", echo{})
	require.NoError(t, err)

	addr, ok := s.Addr().(*net.TCPAddr)
	require.True(t, ok)
	assert.NotZero(t, addr.Port)
}
