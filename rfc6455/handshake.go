package rfc6455

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"regexp"
)

var secKeyPattern = regexp.MustCompile(`Sec-WebSocket-Key:\s*(.*?)\r\n`)

// MakeResponseKey derives the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key: base64(SHA-1(key + GUID)). Pure and deterministic.
func MakeResponseKey(secWebSocketKey string) string {
	h := sha1.New()
	h.Write([]byte(secWebSocketKey))
	h.Write([]byte(GUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// IsUpgradeRequest reports whether b looks like the start of an HTTP/1.1
// WebSocket upgrade request. The check is a pattern match on the raw
// bytes of a single read, not a full HTTP parse.
func IsUpgradeRequest(b []byte) bool {
	return bytes.HasPrefix(b, []byte("GET ")) &&
		bytes.Contains(b, []byte(" HTTP/1.1")) &&
		bytes.Contains(b, []byte("Upgrade: websocket")) &&
		bytes.Contains(b, []byte("Sec-WebSocket-Key: "))
}

// UpgradeResponse builds the complete 101 Switching Protocols response
// for the raw upgrade request in b. It fails with ErrMissingKey when no
// Sec-WebSocket-Key header is present.
func UpgradeResponse(request []byte) ([]byte, error) {
	m := secKeyPattern.FindSubmatch(request)
	if m == nil {
		return nil, ErrMissingKey
	}

	accept := MakeResponseKey(string(m[1]))

	var b []byte
	b = append(b, "HTTP/1.1 101 Switching Protocols\r\n"...)
	b = append(b, "Upgrade: websocket\r\n"...)
	b = append(b, "Connection: Upgrade\r\n"...)
	b = append(b, "Sec-WebSocket-Accept: "...)
	b = append(b, accept...)
	b = append(b, "\r\n\r\n"...)
	return b, nil
}
