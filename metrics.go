package surf

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/surfws/surf/rfc6455"
)

// metrics holds the server's counters. A nil *metrics is valid and all
// of its methods are no-ops, so the unconfigured path costs one branch.
type metrics struct {
	accepted     prometheus.Counter
	handshakes   prometheus.Counter
	frames       *prometheus.CounterVec
	closes       prometheus.Counter
	sendFailures prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		accepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surf",
			Name:      "connections_accepted_total",
			Help:      "Connections accepted by the event loop.",
		}),
		handshakes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surf",
			Name:      "handshakes_completed_total",
			Help:      "Upgrade handshakes answered with 101.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "surf",
			Name:      "frames_dispatched_total",
			Help:      "Frames routed to the dispatcher, by opcode.",
		}, []string{"opcode"}),
		closes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surf",
			Name:      "connections_closed_total",
			Help:      "Connections torn down, for any reason.",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "surf",
			Name:      "send_failures_total",
			Help:      "Failed or partial socket writes.",
		}),
	}
	reg.MustRegister(m.accepted, m.handshakes, m.frames, m.closes, m.sendFailures)
	return m
}

func (m *metrics) connAccepted() {
	if m != nil {
		m.accepted.Inc()
	}
}

func (m *metrics) handshakeDone() {
	if m != nil {
		m.handshakes.Inc()
	}
}

func (m *metrics) frameDispatched(op rfc6455.Opcode) {
	if m != nil {
		m.frames.WithLabelValues(op.String()).Inc()
	}
}

func (m *metrics) connClosed() {
	if m != nil {
		m.closes.Inc()
	}
}

func (m *metrics) sendFailed() {
	if m != nil {
		m.sendFailures.Inc()
	}
}
