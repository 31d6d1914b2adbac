package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LightnodeMetrics tracks liveness protocol activity for the local node.
type LightnodeMetrics struct {
	registrations       *prometheus.CounterVec
	challengesAnswered  prometheus.Counter
	challengeFailures   *prometheus.CounterVec
	reactivations       *prometheus.CounterVec
	endpointRetries     prometheus.Counter
	consecutiveFailures prometheus.Gauge
	nextPingUnix        prometheus.Gauge
}

var (
	lightnodeOnce     sync.Once
	lightnodeRegistry *LightnodeMetrics
)

// Lightnode returns the process-wide liveness metrics collector.
func Lightnode() *LightnodeMetrics {
	lightnodeOnce.Do(func() {
		lightnodeRegistry = &LightnodeMetrics{
			registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lightnode_registrations_total",
				Help: "Count of node registrations by push channel kind.",
			}, []string{"push_type"}),
			challengesAnswered: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lightnode_challenges_answered_total",
				Help: "Count of ping challenges answered with a valid signature.",
			}),
			challengeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lightnode_challenge_failures_total",
				Help: "Count of challenge handling failures by reason.",
			}, []string{"reason"}),
			reactivations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "lightnode_reactivations_total",
				Help: "Count of reactivation attempts by outcome.",
			}, []string{"outcome"}),
			endpointRetries: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "lightnode_endpoint_retries_total",
				Help: "Count of bootstrap endpoint re-picks after transport failures.",
			}),
			consecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lightnode_consecutive_failures",
				Help: "Consecutive missed ping windows as last reported by the remote.",
			}),
			nextPingUnix: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "lightnode_next_ping_time_seconds",
				Help: "Unix timestamp of the next expected ping window.",
			}),
		}
		prometheus.MustRegister(
			lightnodeRegistry.registrations,
			lightnodeRegistry.challengesAnswered,
			lightnodeRegistry.challengeFailures,
			lightnodeRegistry.reactivations,
			lightnodeRegistry.endpointRetries,
			lightnodeRegistry.consecutiveFailures,
			lightnodeRegistry.nextPingUnix,
		)
	})
	return lightnodeRegistry
}

func (m *LightnodeMetrics) IncRegistration(pushType string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(pushType).Inc()
}

func (m *LightnodeMetrics) IncChallengeAnswered() {
	if m == nil {
		return
	}
	m.challengesAnswered.Inc()
}

func (m *LightnodeMetrics) IncChallengeFailure(reason string) {
	if m == nil {
		return
	}
	m.challengeFailures.WithLabelValues(reason).Inc()
}

func (m *LightnodeMetrics) IncReactivation(outcome string) {
	if m == nil {
		return
	}
	m.reactivations.WithLabelValues(outcome).Inc()
}

func (m *LightnodeMetrics) IncEndpointRetry() {
	if m == nil {
		return
	}
	m.endpointRetries.Inc()
}

func (m *LightnodeMetrics) SetConsecutiveFailures(n float64) {
	if m == nil {
		return
	}
	m.consecutiveFailures.Set(n)
}

func (m *LightnodeMetrics) SetNextPingUnix(ts float64) {
	if m == nil {
		return
	}
	m.nextPingUnix.Set(ts)
}
