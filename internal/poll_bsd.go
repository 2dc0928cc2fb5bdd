//go:build darwin || netbsd || freebsd || openbsd || dragonfly

package internal

import (
	"os"

	"golang.org/x/sys/unix"
)

// Event reports read readiness on one registered descriptor.
type Event struct {
	Fd int
}

// Poller is a level-triggered readiness multiplexer over kqueue,
// mirroring the epoll build. Owned by a single loop goroutine.
type Poller struct {
	kq int

	changelist []unix.Kevent_t
	eventlist  []unix.Kevent_t

	ready []Event

	closed bool
}

func NewPoller() (*Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, os.NewSyscallError("kqueue", err)
	}

	return &Poller{
		kq:         kq,
		changelist: make([]unix.Kevent_t, 0, 8),
		eventlist:  make([]unix.Kevent_t, 128),
		ready:      make([]Event, 0, 128),
	}, nil
}

// Add registers fd for read readiness.
func (p *Poller) Add(fd int) error {
	if p.closed {
		return ErrClosed
	}
	p.changelist = append(p.changelist, unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD,
	})
	return nil
}

// Del removes fd from the interest set.
func (p *Poller) Del(fd int) error {
	if p.closed {
		return ErrClosed
	}
	p.changelist = append(p.changelist, unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_DELETE,
	})
	return nil
}

// Poll applies pending interest changes and waits up to timeoutMs for
// readiness. It returns ErrTimeout if the wait elapsed with nothing
// ready.
func (p *Poller) Poll(timeoutMs int) ([]Event, error) {
	if p.closed {
		return nil, ErrClosed
	}

	ts := unix.NsecToTimespec(int64(timeoutMs) * 1e6)

	changelist := p.changelist
	p.changelist = p.changelist[:0]

	n, err := unix.Kevent(p.kq, changelist, p.eventlist, &ts)
	for err == unix.EINTR {
		n, err = unix.Kevent(p.kq, nil, p.eventlist, &ts)
	}
	if err != nil {
		return nil, os.NewSyscallError("kevent", err)
	}
	if n == 0 {
		return nil, ErrTimeout
	}

	p.ready = p.ready[:0]
	for i := 0; i < n; i++ {
		ev := &p.eventlist[i]
		if ev.Flags&unix.EV_ERROR != 0 {
			continue
		}
		p.ready = append(p.ready, Event{Fd: int(ev.Ident)})
	}
	if len(p.ready) == 0 {
		return nil, ErrTimeout
	}
	return p.ready, nil
}

func (p *Poller) Close() error {
	if p.closed {
		return ErrClosed
	}
	p.closed = true
	return unix.Close(p.kq)
}
