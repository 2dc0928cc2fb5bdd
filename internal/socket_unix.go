//go:build linux || darwin || netbsd || freebsd || openbsd || dragonfly

package internal

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// ListenBacklog is the backlog passed to listen(2).
var ListenBacklog = 2048

// ListenTCP opens a non-blocking TCP listening socket on addr
// (host:port) with SO_REUSEADDR set and returns its descriptor.
func ListenTCP(addr string) (int, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return -1, err
	}

	domain := unix.AF_INET
	var sa unix.Sockaddr
	if ip4 := tcpAddr.IP.To4(); ip4 != nil || tcpAddr.IP == nil {
		sa4 := &unix.SockaddrInet4{Port: tcpAddr.Port}
		if ip4 != nil {
			copy(sa4.Addr[:], ip4)
		}
		sa = sa4
	} else {
		domain = unix.AF_INET6
		sa6 := &unix.SockaddrInet6{Port: tcpAddr.Port}
		copy(sa6.Addr[:], tcpAddr.IP.To16())
		sa = sa6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, os.NewSyscallError("socket", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, os.NewSyscallError("reuse_address", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, os.NewSyscallError("set_nonblock", err)
	}

	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, os.NewSyscallError("bind", err)
	}

	if err := unix.Listen(fd, ListenBacklog); err != nil {
		unix.Close(fd)
		return -1, os.NewSyscallError("listen", err)
	}

	return fd, nil
}

// Accept takes one pending connection off the non-blocking listening
// socket, marks it non-blocking and returns its descriptor and peer
// address. It returns ErrWouldBlock when nothing is pending.
func Accept(listenFd int) (int, net.Addr, error) {
	fd, sa, err := unix.Accept(listenFd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return -1, nil, ErrWouldBlock
		}
		return -1, nil, os.NewSyscallError("accept", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, nil, os.NewSyscallError("set_nonblock", err)
	}

	return fd, SockaddrToTCPAddr(sa), nil
}

// SocketAddress returns the local address the descriptor is bound to.
func SocketAddress(fd int) (net.Addr, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return nil, os.NewSyscallError("getsockname", err)
	}
	return SockaddrToTCPAddr(sa), nil
}

// SockaddrToTCPAddr converts a raw sockaddr into a *net.TCPAddr; it
// returns nil for address families it does not know.
func SockaddrToTCPAddr(sa unix.Sockaddr) net.Addr {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), sa.Addr[:]...), Port: sa.Port}
	case *unix.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), sa.Addr[:]...), Port: sa.Port}
	default:
		return nil
	}
}
