//go:build linux

package internal

import (
	"os"

	"golang.org/x/sys/unix"
)

// Event reports read readiness on one registered descriptor.
type Event struct {
	Fd int
}

// Poller is a level-triggered readiness multiplexer over epoll. It is
// not safe for concurrent use: one loop goroutine owns it, registers
// descriptors for read readiness and drains events.
type Poller struct {
	// fd is the descriptor returned by epoll_create1(0).
	fd int

	// events receives ready descriptors from epoll_wait.
	events []unix.EpollEvent

	// ready is the caller-visible view rebuilt on every Poll.
	ready []Event

	closed bool
}

func NewPoller() (*Poller, error) {
	epollFd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, os.NewSyscallError("epoll_create1", err)
	}

	return &Poller{
		fd:     epollFd,
		events: make([]unix.EpollEvent, 128),
		ready:  make([]Event, 0, 128),
	}, nil
}

// Add registers fd for read readiness. The listening socket's "ready to
// accept" and a connection's "ready to read" are the same EPOLLIN edge.
func (p *Poller) Add(fd int) error {
	if p.closed {
		return ErrClosed
	}
	err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	})
	if err != nil {
		return os.NewSyscallError("epoll_ctl_add", err)
	}
	return nil
}

// Del removes fd from the interest set.
func (p *Poller) Del(fd int) error {
	if p.closed {
		return ErrClosed
	}
	err := unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
	if err != nil {
		return os.NewSyscallError("epoll_ctl_del", err)
	}
	return nil
}

// Poll waits up to timeoutMs for readiness and returns the ready
// descriptors. It returns ErrTimeout if the wait elapsed with nothing
// ready, so a looping caller observes a stop request at least once per
// interval.
func (p *Poller) Poll(timeoutMs int) ([]Event, error) {
	if p.closed {
		return nil, ErrClosed
	}

	n, err := unix.EpollWait(p.fd, p.events, timeoutMs)
	for err == unix.EINTR {
		n, err = unix.EpollWait(p.fd, p.events, timeoutMs)
	}
	if err != nil {
		return nil, os.NewSyscallError("epoll_wait", err)
	}
	if n == 0 {
		return nil, ErrTimeout
	}

	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		p.ready = append(p.ready, Event{Fd: int(p.events[i].Fd)})
	}
	return p.ready, nil
}

func (p *Poller) Close() error {
	if p.closed {
		return ErrClosed
	}
	p.closed = true
	return unix.Close(p.fd)
}
