package internal

import "errors"

var (
	// ErrWouldBlock is returned by Accept when no connection is pending
	// on the non-blocking listening socket.
	ErrWouldBlock = errors.New("operation would block")

	// ErrTimeout is returned by a bounded Poll that saw no readiness.
	ErrTimeout = errors.New("operation timed out")

	// ErrClosed is returned when operating on a closed poller.
	ErrClosed = errors.New("poller is closed")
)
