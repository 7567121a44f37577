package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are shared by every peer of a process. A nil *Metrics records
// nothing.
type Metrics struct {
	sent       *prometheus.CounterVec
	received   *prometheus.CounterVec
	resends    prometheus.Counter
	acks       prometheus.Counter
	duplicates prometheus.Counter
	timeouts   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		sent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "packets_sent_total",
			Help:      "Packets sent, by packet kind.",
		}, []string{"kind"}),
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "packets_received_total",
			Help:      "Packets received, by packet kind.",
		}, []string{"kind"}),
		resends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "resends_total",
			Help:      "Reliable packets sent again.",
		}),
		acks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "acks_total",
			Help:      "Tracked packets marked acknowledged.",
		}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "duplicates_total",
			Help:      "Inbound packets whose nonce was already seen.",
		}),
		timeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transport",
			Name:      "timeouts_total",
			Help:      "Peers dropped after running out of resend attempts.",
		}),
	}
}

func (m *Metrics) observeSent(kind string) {
	if m != nil {
		m.sent.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) observeReceived(kind string) {
	if m != nil {
		m.received.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) observeResend() {
	if m != nil {
		m.resends.Inc()
	}
}

func (m *Metrics) observeAck() {
	if m != nil {
		m.acks.Inc()
	}
}

func (m *Metrics) observeDuplicate() {
	if m != nil {
		m.duplicates.Inc()
	}
}

func (m *Metrics) observeTimeout() {
	if m != nil {
		m.timeouts.Inc()
	}
}
