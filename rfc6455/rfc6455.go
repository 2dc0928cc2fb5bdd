// Package rfc6455 implements the WebSocket framing and opening-handshake
// rules of https://datatracker.ietf.org/doc/html/rfc6455.
//
// Everything in this package is pure: encoding returns byte slices,
// parsing returns a PayloadData record and never mutates its input.
package rfc6455

import "encoding/binary"

// Based on https://datatracker.ietf.org/doc/html/rfc6455#section-5.2
//
// byte 0: |fin(1)|rsv1(1)|rsv2(1)|rsv3(1)|opcode(4)|
// byte 1: |is masked(1)|payload length(7)|
//
// If |payload length(7)| is 126, the real length follows in 2 bytes; if
// 127, in 8 bytes. If |is masked(1)| is set, a 4-byte mask follows the
// length. All multi-byte quantities are big-endian.
const (
	bitFIN        = byte(1 << 7)
	bitRSV1       = byte(1 << 6)
	bitRSV2       = byte(1 << 5)
	bitRSV3       = byte(1 << 4)
	bitmaskOpcode = byte(1<<4 - 1)

	bitIsMasked          = byte(1 << 7)
	bitmaskPayloadLength = byte(1<<7 - 1)

	frameHeaderLength = 2
	frameMaskLength   = 4

	// Payload lengths up to this value are carried directly in the
	// 7-bit length field.
	maxShortPayloadLength = 125

	// Marker values in the 7-bit length field selecting the 16-bit and
	// 64-bit extended length encodings.
	length16Marker = 126
	length64Marker = 127

	// MaxControlFramePayloadLength bounds the payload of close, ping
	// and pong frames.
	MaxControlFramePayloadLength = 125
)

type Opcode byte

const (
	OpcodeContinuation Opcode = 0
	OpcodeText         Opcode = 1
	OpcodeBinary       Opcode = 2
	OpcodeClose        Opcode = 8
	OpcodePing         Opcode = 9
	OpcodePong         Opcode = 10
)

func (c Opcode) IsContinuation() bool { return c == OpcodeContinuation }
func (c Opcode) IsText() bool         { return c == OpcodeText }
func (c Opcode) IsBinary() bool       { return c == OpcodeBinary }
func (c Opcode) IsClose() bool        { return c == OpcodeClose }
func (c Opcode) IsPing() bool         { return c == OpcodePing }
func (c Opcode) IsPong() bool         { return c == OpcodePong }

func (c Opcode) IsControl() bool {
	return c.IsPing() || c.IsPong() || c.IsClose()
}

// IsReserved reports whether the opcode is one of the values RFC 6455
// leaves for future frame types. A frame carrying one must fail parsing.
func (c Opcode) IsReserved() bool {
	return c != OpcodeContinuation &&
		c != OpcodeText &&
		c != OpcodeBinary &&
		c != OpcodeClose &&
		c != OpcodePing &&
		c != OpcodePong
}

func (c Opcode) String() string {
	switch c {
	case OpcodeContinuation:
		return "continuation"
	case OpcodeText:
		return "text"
	case OpcodeBinary:
		return "binary"
	case OpcodeClose:
		return "close"
	case OpcodePing:
		return "ping"
	case OpcodePong:
		return "pong"
	default:
		return "unknown"
	}
}

// GUID is the fixed string every server concatenates with the client's
// Sec-WebSocket-Key before hashing, per RFC 6455 section 1.3.
const GUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// CloseCode is the status code carried in the first two bytes of a close
// frame's payload.
type CloseCode uint16

const (
	// CloseNormal signifies normal closure; the connection successfully
	// completed whatever purpose for which it was created.
	CloseNormal CloseCode = 1000

	// CloseGoingAway means the endpoint is going away, either because of
	// a server failure or because the peer is navigating away.
	CloseGoingAway CloseCode = 1001

	// CloseProtocolError means the endpoint is terminating the
	// connection due to a protocol error.
	CloseProtocolError CloseCode = 1002

	// CloseUnknownData means the endpoint received data of a type it
	// cannot accept.
	CloseUnknownData CloseCode = 1003

	// CloseBadPayload means a message contained inconsistent data, e.g.
	// non-UTF-8 bytes in a text message.
	CloseBadPayload CloseCode = 1007

	// ClosePolicyError means the endpoint received a message violating
	// its policy.
	ClosePolicyError CloseCode = 1008

	// CloseTooBig means a received data frame was too large.
	CloseTooBig CloseCode = 1009

	// CloseNeedsExtension means the client expected the server to
	// negotiate one or more extensions and it didn't.
	CloseNeedsExtension CloseCode = 1010

	// CloseInternalError means the server hit an unexpected condition
	// that prevented it from fulfilling the request.
	CloseInternalError CloseCode = 1011

	// CloseServiceRestart means the server is restarting.
	CloseServiceRestart CloseCode = 1012

	// CloseTryAgainLater means the server is overloaded and is casting
	// off some of its clients.
	CloseTryAgainLater CloseCode = 1013

	// The following are reserved and illegal on the wire.

	// CloseNone is used internally to mean "no code present".
	CloseNone CloseCode = 0

	// CloseNoStatus means no status code was present in the peer's
	// close frame.
	CloseNoStatus CloseCode = 1005

	// CloseAbnormal means the connection dropped without a close frame.
	CloseAbnormal CloseCode = 1006
)

// Valid reports whether the code may legally appear on the wire.
func (cc CloseCode) Valid() bool {
	switch cc {
	case CloseNormal, CloseGoingAway, CloseProtocolError, CloseUnknownData,
		CloseBadPayload, ClosePolicyError, CloseTooBig, CloseNeedsExtension,
		CloseInternalError, CloseServiceRestart, CloseTryAgainLater:
		return true
	}
	return cc >= 3000 && cc <= 4999
}

// EncodeClosePayload builds a close frame payload: 2-byte big-endian
// status code followed by the UTF-8 reason bytes.
func EncodeClosePayload(cc CloseCode, reason string) []byte {
	b := make([]byte, 2, 2+len(reason))
	binary.BigEndian.PutUint16(b, uint16(cc))
	return append(b, reason...)
}

// DecodeClosePayload is the inverse of EncodeClosePayload. A payload of
// fewer than 2 bytes yields CloseNoStatus and an empty reason.
func DecodeClosePayload(b []byte) (cc CloseCode, reason string) {
	if len(b) < 2 {
		return CloseNoStatus, ""
	}
	return CloseCode(binary.BigEndian.Uint16(b)), string(b[2:])
}
