// Package metrics exposes nat64d's runtime counters as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/anthropic-labs/nat64core/internal/nat64"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "nat64d"
	subsystem = "core"
)

// Label names for NAT64 metrics.
const (
	labelProto     = "proto"
	labelReason    = "reason"
	labelQueue     = "queue"
	labelSection   = "section"
	labelFromState = "from_state"
	labelToState   = "to_state"
)

// -------------------------------------------------------------------------
// Collector — Prometheus NAT64 Metrics
// -------------------------------------------------------------------------

// Collector holds all nat64d Prometheus metrics and implements
// nat64.MetricsReporter.
//
//   - BIB/session gauges track live state-table occupancy per protocol.
//   - Pool4 gauges track port exhaustion per protocol/section, the
//     earliest warning sign of translation failure under load.
//   - Packet-dropped and sessions-reaped counters drive alerting.
//   - TCP state transition counters record FSM changes for diagnosis.
type Collector struct {
	BIBCount     *prometheus.GaugeVec
	SessionCount *prometheus.GaugeVec

	Pool4PortsInUse *prometheus.GaugeVec
	Pool4PortsFree  *prometheus.GaugeVec

	PacketsDropped *prometheus.CounterVec
	SessionsReaped *prometheus.CounterVec

	TCPStateTransitions *prometheus.CounterVec
}

// NewCollector creates a Collector with all nat64d metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
//
// All metrics are created with the "nat64d_core_" prefix
// (namespace_subsystem) to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.BIBCount,
		c.SessionCount,
		c.Pool4PortsInUse,
		c.Pool4PortsFree,
		c.PacketsDropped,
		c.SessionsReaped,
		c.TCPStateTransitions,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	protoLabels := []string{labelProto}
	dropLabels := []string{labelProto, labelReason}
	reapLabels := []string{labelProto, labelQueue}
	pool4Labels := []string{labelProto, labelSection}
	transitionLabels := []string{labelFromState, labelToState}

	return &Collector{
		BIBCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bib_entries",
			Help:      "Number of live Binding Information Base entries, by protocol.",
		}, protoLabels),

		SessionCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of live sessions, by protocol.",
		}, protoLabels),

		Pool4PortsInUse: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pool4_ports_in_use",
			Help:      "Number of pool4 ports currently allocated, by protocol and parity/range section.",
		}, pool4Labels),

		Pool4PortsFree: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pool4_ports_free",
			Help:      "Number of pool4 ports currently free, by protocol and parity/range section.",
		}, pool4Labels),

		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_dropped_total",
			Help:      "Total packets dropped by the filtering/updating core, by protocol and reason.",
		}, dropLabels),

		SessionsReaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_reaped_total",
			Help:      "Total sessions removed by the expiry reaper, by protocol and source queue.",
		}, reapLabels),

		TCPStateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tcp_state_transitions_total",
			Help:      "Total TCP session FSM state transitions.",
		}, transitionLabels),
	}
}

// -------------------------------------------------------------------------
// nat64.MetricsReporter implementation
// -------------------------------------------------------------------------

// SetBIBCount records the current BIB entry count for proto.
func (c *Collector) SetBIBCount(proto nat64.Proto, count int) {
	c.BIBCount.WithLabelValues(proto.String()).Set(float64(count))
}

// SetSessionCount records the current session count for proto.
func (c *Collector) SetSessionCount(proto nat64.Proto, count int) {
	c.SessionCount.WithLabelValues(proto.String()).Set(float64(count))
}

// SetPool4Ports records pool4 occupancy for one protocol/section pair.
func (c *Collector) SetPool4Ports(proto nat64.Proto, section string, inUse, free int) {
	c.Pool4PortsInUse.WithLabelValues(proto.String(), section).Set(float64(inUse))
	c.Pool4PortsFree.WithLabelValues(proto.String(), section).Set(float64(free))
}

// IncPacketsDropped increments the dropped-packet counter for proto/reason.
func (c *Collector) IncPacketsDropped(proto nat64.Proto, reason nat64.Kind) {
	c.PacketsDropped.WithLabelValues(proto.String(), reason.String()).Inc()
}

// IncSessionsReaped increments the reaped-session counter for proto/queue.
func (c *Collector) IncSessionsReaped(proto nat64.Proto, queue nat64.ExpiryKind) {
	c.SessionsReaped.WithLabelValues(proto.String(), queue.String()).Inc()
}

// IncTCPStateTransition increments the FSM transition counter for (from, to).
func (c *Collector) IncTCPStateTransition(from, to nat64.TCPState) {
	c.TCPStateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}
