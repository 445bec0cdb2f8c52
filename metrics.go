package callsim

// metrics.go bundles the prometheus instrumentation of the simulation
// engine.  Event counts accumulate per snapshot and link; the gauge
// family follows the throttled metrics samples

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimCollector bundles the prometheus metrics the simulation engine
// updates as runs progress
type SimCollector struct {
	CallsAccepted *prometheus.CounterVec
	CallsBlocked  *prometheus.CounterVec
	CallsEnded    *prometheus.CounterVec

	ActiveCalls   *prometheus.GaugeVec
	BandwidthMbps *prometheus.GaugeVec
	BlockedCalls  *prometheus.GaugeVec
}

// NewSimCollector registers the simulation metrics against the provided
// registerer, defaulting to the global prometheus registry when nil
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	sc := &SimCollector{
		CallsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callsim_calls_accepted_total",
			Help: "Calls accepted by the simulator, labeled by snapshot and link.",
		}, []string{"snapshot", "from", "to"}),
		CallsBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callsim_calls_blocked_total",
			Help: "Calls blocked by the simulator, labeled by snapshot and link.",
		}, []string{"snapshot", "from", "to"}),
		CallsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callsim_calls_ended_total",
			Help: "Calls completed by the simulator, labeled by snapshot and link.",
		}, []string{"snapshot", "from", "to"}),
		ActiveCalls: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "callsim_active_calls",
			Help: "Concurrent calls in progress, by snapshot.",
		}, []string{"snapshot"}),
		BandwidthMbps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "callsim_bandwidth_usage_mbps",
			Help: "Aggregate bandwidth in use, by snapshot.",
		}, []string{"snapshot"}),
		BlockedCalls: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "callsim_blocked_calls",
			Help: "Cumulative blocked calls, by snapshot.",
		}, []string{"snapshot"}),
	}

	collectors := []prometheus.Collector{
		sc.CallsAccepted, sc.CallsBlocked, sc.CallsEnded,
		sc.ActiveCalls, sc.BandwidthMbps, sc.BlockedCalls,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, err
		}
	}
	return sc, nil
}

// recordEvent folds one call event into the counter families
func (sc *SimCollector) recordEvent(evt CallEvent) {
	switch evt.Kind {
	case CallStarted:
		sc.CallsAccepted.WithLabelValues(evt.SnapshotID, evt.From, evt.To).Inc()
	case CallBlocked:
		sc.CallsBlocked.WithLabelValues(evt.SnapshotID, evt.From, evt.To).Inc()
	case CallEnded:
		sc.CallsEnded.WithLabelValues(evt.SnapshotID, evt.From, evt.To).Inc()
	}
}

// recordMetrics folds one metrics sample into the gauge families
func (sc *SimCollector) recordMetrics(snapshotID string, m Metrics) {
	sc.ActiveCalls.WithLabelValues(snapshotID).Set(float64(m.ActiveCalls))
	sc.BandwidthMbps.WithLabelValues(snapshotID).Set(m.BandwidthUsageMbps)
	sc.BlockedCalls.WithLabelValues(snapshotID).Set(float64(m.BlockedCalls))
}
