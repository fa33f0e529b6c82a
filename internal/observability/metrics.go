package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rcs",
			Subsystem: "relay",
			Name:      "frames_received_total",
			Help:      "Decoded frames by message tag.",
		},
		[]string{"tag"},
	)
	messagesRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rcs",
			Subsystem: "relay",
			Name:      "messages_routed_total",
			Help:      "Routing decisions by message tag and outcome.",
		},
		[]string{"tag", "outcome"},
	)
	connectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rcs",
			Subsystem: "relay",
			Name:      "connections_active",
			Help:      "Open client connections.",
		},
	)
	connectionCloses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rcs",
			Subsystem: "relay",
			Name:      "connection_closes_total",
			Help:      "Connection closes by cause.",
		},
		[]string{"cause"},
	)
	credentialChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rcs",
			Subsystem: "credentials",
			Name:      "checks_total",
			Help:      "Enroll and login attempts by result.",
		},
		[]string{"op", "result"},
	)
)

// Routing outcomes.
const (
	OutcomeLocal     = "local"
	OutcomeForwarded = "forwarded"
	OutcomeDropped   = "dropped"
	OutcomeIgnored   = "ignored"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesReceived, messagesRouted, connectionsActive, connectionCloses, credentialChecks)
	})
}

func RecordFrame(tag string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(tag).Inc()
}

func RecordRoute(tag, outcome string) {
	RegisterMetrics()
	messagesRouted.WithLabelValues(tag, outcome).Inc()
}

func ConnectionOpened() {
	RegisterMetrics()
	connectionsActive.Inc()
}

func ConnectionClosed(cause string) {
	RegisterMetrics()
	connectionsActive.Dec()
	connectionCloses.WithLabelValues(cause).Inc()
}

func RecordCredentialCheck(op string, ok bool) {
	RegisterMetrics()
	result := "failed"
	if ok {
		result = "ok"
	}
	credentialChecks.WithLabelValues(op, result).Inc()
}
