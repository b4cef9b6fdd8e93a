package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DHCPTotal counts DHCP datagrams by what happened to them.
	// op is one of recv, send, drop or send_error.
	DHCPTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dhcp_total",
		Help: "Number of DHCP datagrams handled.",
	}, []string{"op", "type"})

	// DHCPDuration observes the time from receiving a request to sending its reply.
	DHCPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dhcp_duration_seconds",
		Help:    "Duration taken to answer a DHCP request.",
		Buckets: prometheus.ExponentialBuckets(.0001, 4, 8),
	}, []string{"type"})
)

// Init pre-populates the label combinations that are expected to be seen so
// they are exported as zero before the first datagram arrives.
func Init() {
	labelValues := []prometheus.Labels{
		{"op": "recv", "type": "DISCOVER"},
		{"op": "recv", "type": "REQUEST"},
		{"op": "send", "type": "OFFER"},
		{"op": "send", "type": "ACK"},
		{"op": "drop", "type": "malformed"},
		{"op": "drop", "type": "ignored"},
		{"op": "drop", "type": "read_error"},
		{"op": "send_error", "type": "OFFER"},
		{"op": "send_error", "type": "ACK"},
	}
	initCounterLabels(DHCPTotal, labelValues)

	initObserverLabels(DHCPDuration, []prometheus.Labels{
		{"type": "DISCOVER"},
		{"type": "REQUEST"},
	})
}

func initCounterLabels(m *prometheus.CounterVec, l []prometheus.Labels) {
	for _, labels := range l {
		m.With(labels)
	}
}

func initObserverLabels(m prometheus.ObserverVec, l []prometheus.Labels) {
	for _, labels := range l {
		m.With(labels)
	}
}
