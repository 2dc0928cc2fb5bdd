package surf

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultPollInterval bounds one readiness wait, and with it the
	// time between a Stop call and the loop returning.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultReadBufferSize is the size of one read, which is also the
	// ceiling on a single frame or handshake request.
	DefaultReadBufferSize = 4096
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithPollInterval bounds the readiness wait. A stop request is
// observed within one interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithReadBufferSize sets the per-read chunk size. Frames and handshake
// requests larger than this are not reassembled across reads.
func WithReadBufferSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.readBufSize = n
		}
	}
}

// WithMetrics registers the server's counters with reg. Without this
// option no metrics are collected.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.metrics = newMetrics(reg)
	}
}
