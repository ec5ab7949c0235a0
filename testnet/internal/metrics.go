package internal

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "agentnet"

// Metrics are the Prometheus collectors of one harness. Each harness owns its
// registry so concurrent harnesses in one process never collide. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fundingTransfers prometheus.Counter
	fundingFailures  prometheus.Counter
	nodesStarted     *prometheus.CounterVec
	nodeStopFailures prometheus.Counter
	messagesSent     prometheus.Counter
	messagesReceived prometheus.Counter
	testResults      *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
}

// NewMetrics creates and registers the harness collectors.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.fundingTransfers = prometheus.NewCounter(prometheus.CounterOpts{Namespace: metricsNamespace,
		Name: "funding_transfers_total", Help: "Funding transfers confirmed on the ledger"})
	m.fundingFailures = prometheus.NewCounter(prometheus.CounterOpts{Namespace: metricsNamespace,
		Name: "funding_failures_total", Help: "Funding attempts that did not confirm"})
	m.nodesStarted = prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: metricsNamespace,
		Name: "nodes_started_total", Help: "Nodes started by role"}, []string{"role"})
	m.nodeStopFailures = prometheus.NewCounter(prometheus.CounterOpts{Namespace: metricsNamespace,
		Name: "node_stop_failures_total", Help: "Node stop attempts that returned an error"})
	m.messagesSent = prometheus.NewCounter(prometheus.CounterOpts{Namespace: metricsNamespace,
		Name: "messages_sent_total", Help: "Test messages accepted by the sending node"})
	m.messagesReceived = prometheus.NewCounter(prometheus.CounterOpts{Namespace: metricsNamespace,
		Name: "messages_received_total", Help: "Test messages delivered to an agent"})
	m.testResults = prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: metricsNamespace,
		Name: "test_results_total", Help: "Recorded test results by outcome"}, []string{"result"})
	m.stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: metricsNamespace,
		Name: "step_duration_seconds", Help: "Duration of harness steps",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8)}, []string{"step"})

	m.registry.MustRegister(
		m.fundingTransfers,
		m.fundingFailures,
		m.nodesStarted,
		m.nodeStopFailures,
		m.messagesSent,
		m.messagesReceived,
		m.testResults,
		m.stepDuration,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) incFundingTransfers() {
	if m != nil {
		m.fundingTransfers.Inc()
	}
}

func (m *Metrics) incFundingFailures() {
	if m != nil {
		m.fundingFailures.Inc()
	}
}

func (m *Metrics) incNodesStarted(role string) {
	if m != nil {
		m.nodesStarted.WithLabelValues(role).Inc()
	}
}

func (m *Metrics) incNodeStopFailures() {
	if m != nil {
		m.nodeStopFailures.Inc()
	}
}

func (m *Metrics) incMessagesSent() {
	if m != nil {
		m.messagesSent.Inc()
	}
}

func (m *Metrics) incMessagesReceived() {
	if m != nil {
		m.messagesReceived.Inc()
	}
}

func (m *Metrics) recordResult(success bool) {
	if m == nil {
		return
	}
	if success {
		m.testResults.WithLabelValues("passed").Inc()
	} else {
		m.testResults.WithLabelValues("failed").Inc()
	}
}

func (m *Metrics) observeStep(step string, d time.Duration) {
	if m != nil {
		m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
	}
}
