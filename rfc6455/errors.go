package rfc6455

import "errors"

var (
	// ErrShortBuffer means the buffer ended before the bytes its own
	// header declares: a truncated header, mask or payload.
	ErrShortBuffer = errors.New("buffer shorter than frame header declares")

	// ErrReservedOpcode means the frame carries an opcode RFC 6455
	// reserves for future use.
	ErrReservedOpcode = errors.New("reserved opcode")

	// ErrMissingKey means the upgrade request carries no
	// Sec-WebSocket-Key header.
	ErrMissingKey = errors.New("Sec-WebSocket-Key header not found")
)
