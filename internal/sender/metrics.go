package sender

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the send flow
type Metrics struct {
	// Deliveries by result: delivered, pending, rejected, failed
	Deliveries *prometheus.CounterVec

	// Envelope build latency
	BuildDuration prometheus.Histogram

	// Reachability lookups by outcome: reachable, unreachable, error
	ReachabilityLookups *prometheus.CounterVec
}

// NewMetrics registers the sender metrics with reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalmail_deliveries_total",
			Help: "Total digital mail deliveries by result",
		}, []string{"result"}),

		BuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "digitalmail_envelope_build_duration_seconds",
			Help:    "Duration of building and signing a sealed delivery",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		ReachabilityLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "digitalmail_reachability_lookups_total",
			Help: "Total reachability lookups by outcome",
		}, []string{"outcome"}),
	}
}

// IncDelivery records a delivery result
func (m *Metrics) IncDelivery(result string) {
	if m != nil {
		m.Deliveries.WithLabelValues(result).Inc()
	}
}

// ObserveBuild records the envelope build duration
func (m *Metrics) ObserveBuild(d time.Duration) {
	if m != nil {
		m.BuildDuration.Observe(d.Seconds())
	}
}

// IncReachability records a reachability lookup outcome
func (m *Metrics) IncReachability(outcome string) {
	if m != nil {
		m.ReachabilityLookups.WithLabelValues(outcome).Inc()
	}
}
