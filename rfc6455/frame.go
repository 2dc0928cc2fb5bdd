package rfc6455

import (
	"crypto/rand"
	"encoding/binary"
)

// PayloadData is the parsed form of a single frame. Data aliases the
// parsed buffer and is exactly Length bytes, still masked if Masked is
// set; Decode produces the plaintext without touching it.
type PayloadData struct {
	Fin    bool
	RSV1   bool
	RSV2   bool
	RSV3   bool
	Opcode Opcode
	Masked bool
	Length int
	Mask   [4]byte
	Data   []byte
}

// ParsePayload reads one frame out of b. It fails with ErrShortBuffer if
// b ends before the header, mask or declared payload does, and with
// ErrReservedOpcode on an opcode RFC 6455 does not define. It never
// panics on attacker-controlled input and never modifies b.
func ParsePayload(b []byte) (PayloadData, error) {
	var p PayloadData

	if len(b) < frameHeaderLength {
		return p, ErrShortBuffer
	}

	p.Fin = b[0]&bitFIN != 0
	p.RSV1 = b[0]&bitRSV1 != 0
	p.RSV2 = b[0]&bitRSV2 != 0
	p.RSV3 = b[0]&bitRSV3 != 0
	p.Opcode = Opcode(b[0] & bitmaskOpcode)
	if p.Opcode.IsReserved() {
		return p, ErrReservedOpcode
	}

	p.Masked = b[1]&bitIsMasked != 0

	length := int(b[1] & bitmaskPayloadLength)
	off := frameHeaderLength
	switch length {
	case length16Marker:
		if len(b) < off+2 {
			return p, ErrShortBuffer
		}
		length = int(binary.BigEndian.Uint16(b[off:]))
		off += 2
	case length64Marker:
		if len(b) < off+8 {
			return p, ErrShortBuffer
		}
		v := binary.BigEndian.Uint64(b[off:])
		if v > uint64(len(b)) { // cannot possibly fit; also guards int overflow
			return p, ErrShortBuffer
		}
		length = int(v)
		off += 8
	}

	if p.Masked {
		if len(b) < off+frameMaskLength {
			return p, ErrShortBuffer
		}
		copy(p.Mask[:], b[off:off+frameMaskLength])
		off += frameMaskLength
	}

	if len(b) < off+length {
		return p, ErrShortBuffer
	}
	p.Length = length
	p.Data = b[off : off+length]

	return p, nil
}

// Decode returns the frame's plaintext payload: a fresh unmasked copy if
// the frame is masked, the payload view verbatim otherwise. Calling it
// repeatedly on the same record yields identical results.
func (p PayloadData) Decode() []byte {
	if !p.Masked {
		return p.Data
	}
	plain := make([]byte, len(p.Data))
	for i, c := range p.Data {
		plain[i] = c ^ p.Mask[i&3]
	}
	return plain
}

// DecodeText returns the payload interpreted as UTF-8 text.
func (p PayloadData) DecodeText() string {
	return string(p.Decode())
}

// AppendFrame appends one unmasked frame with FIN set to dst and returns
// the extended slice. Server-to-client frames are never masked.
func AppendFrame(dst []byte, op Opcode, data []byte) []byte {
	dst = append(dst, bitFIN|byte(op)&bitmaskOpcode)
	dst = appendLength(dst, len(data))
	return append(dst, data...)
}

// appendLength appends the payload length in its minimal encoding: the
// literal 7-bit field up to 125, marker 126 plus 16 bits up to 65535,
// marker 127 plus 64 bits above that.
func appendLength(dst []byte, n int) []byte {
	switch {
	case n <= maxShortPayloadLength:
		return append(dst, byte(n))
	case n <= 65535:
		dst = append(dst, length16Marker, 0, 0)
		binary.BigEndian.PutUint16(dst[len(dst)-2:], uint16(n))
		return dst
	default:
		dst = append(dst, length64Marker, 0, 0, 0, 0, 0, 0, 0, 0)
		binary.BigEndian.PutUint64(dst[len(dst)-8:], uint64(n))
		return dst
	}
}

// EncodeFrame builds one unmasked frame with FIN set.
func EncodeFrame(op Opcode, data []byte) []byte {
	return AppendFrame(make([]byte, 0, frameHeaderLength+8+len(data)), op, data)
}

// EncodeTextFrame builds a TEXT frame carrying s.
func EncodeTextFrame(s string) []byte {
	return EncodeFrame(OpcodeText, []byte(s))
}

// EncodeControlFrame builds a bare control frame: FIN set, no mask, no
// payload. Used for PING and PONG.
func EncodeControlFrame(op Opcode) []byte {
	return []byte{bitFIN | byte(op)&bitmaskOpcode, 0}
}

// EncodeCloseFrame builds a CLOSE frame whose payload is the 2-byte
// big-endian status code followed by the reason bytes.
func EncodeCloseFrame(cc CloseCode, reason string) []byte {
	return EncodeFrame(OpcodeClose, EncodeClosePayload(cc, reason))
}

// Canned control frames, safe to write as-is any number of times.
var (
	PingFrame = EncodeControlFrame(OpcodePing)
	PongFrame = EncodeControlFrame(OpcodePong)
)

// MaskBytes XORs b in place with the 4-byte key, cycling. Applying it
// twice with the same key restores the input.
func MaskBytes(key [4]byte, b []byte) {
	for i := range b {
		b[i] ^= key[i&3]
	}
}

// GenMask fills key with cryptographically random bytes.
func GenMask(key *[4]byte) {
	rand.Read(key[:])
}
