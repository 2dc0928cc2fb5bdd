package surf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/surfws/surf/rfc6455"
)

// connPair returns a connection over one end of a socketpair and the
// raw peer descriptor to observe what it wrote.
func connPair(t *testing.T) (*Conn, int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)

	c := &Conn{fd: fds[0], state: StateEstablished}
	t.Cleanup(func() {
		c.Close()
		unix.Close(fds[1])
	})
	return c, fds[1]
}

func readAll(t *testing.T, fd int) []byte {
	t.Helper()

	b := make([]byte, 8192)
	n, err := unix.Read(fd, b)
	require.NoError(t, err)
	return b[:n]
}

func TestConnSendText(t *testing.T) {
	c, peer := connPair(t)

	require.True(t, c.SendText("hello"))
	assert.Equal(t, rfc6455.EncodeTextFrame("hello"), readAll(t, peer))
}

func TestConnSendPingPong(t *testing.T) {
	c, peer := connPair(t)

	require.True(t, c.SendPing())
	require.True(t, c.SendPong())
	assert.Equal(t, append(append([]byte{}, rfc6455.PingFrame...), rfc6455.PongFrame...), readAll(t, peer))
}

func TestConnSendClose(t *testing.T) {
	c, peer := connPair(t)

	require.True(t, c.SendClose(rfc6455.CloseGoingAway, "bye"))

	p, err := rfc6455.ParsePayload(readAll(t, peer))
	require.NoError(t, err)
	require.Equal(t, rfc6455.OpcodeClose, p.Opcode)

	code, reason := rfc6455.DecodeClosePayload(p.Decode())
	assert.Equal(t, rfc6455.CloseGoingAway, code)
	assert.Equal(t, "bye", reason)
}

func TestConnSendBytesRaw(t *testing.T) {
	c, peer := connPair(t)

	require.True(t, c.SendBytes([]byte("raw bytes, no framing")))
	assert.Equal(t, []byte("raw bytes, no framing"), readAll(t, peer))
}

func TestConnClose(t *testing.T) {
	c, _ := connPair(t)

	assert.Equal(t, StateEstablished, c.State())
	assert.True(t, c.Close())
	assert.Equal(t, StateClosed, c.State())

	// idempotent
	assert.True(t, c.Close())

	// sends on a closed connection report failure
	assert.False(t, c.SendText("nope"))
	assert.False(t, c.SendPing())
	assert.False(t, c.SendBytes([]byte("x")))
}

func TestConnSendToBrokenPeer(t *testing.T) {
	c, peer := connPair(t)

	require.NoError(t, unix.Close(peer))

	// the first write may land in the kernel buffer; the second
	// observes the broken transport
	c.SendText("first")
	assert.False(t, c.SendText("second"))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "accepted", StateAccepted.String())
	assert.Equal(t, "established", StateEstablished.String())
	assert.Equal(t, "closed", StateClosed.String())
}
