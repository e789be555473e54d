package nat64

// MetricsReporter receives observability events from the core. It is
// satisfied by internal/metrics.Collector; components that don't care
// about metrics use noopMetrics, mirroring the gobfd bfd.MetricsReporter
// pattern.
type MetricsReporter interface {
	SetBIBCount(proto Proto, count int)
	SetSessionCount(proto Proto, count int)
	SetPool4Ports(proto Proto, section string, inUse, free int)
	IncPacketsDropped(proto Proto, reason Kind)
	IncSessionsReaped(proto Proto, queue ExpiryKind)
	IncTCPStateTransition(from, to TCPState)
}

type noopMetrics struct{}

func (noopMetrics) SetBIBCount(Proto, int)                  {}
func (noopMetrics) SetSessionCount(Proto, int)               {}
func (noopMetrics) SetPool4Ports(Proto, string, int, int)     {}
func (noopMetrics) IncPacketsDropped(Proto, Kind)             {}
func (noopMetrics) IncSessionsReaped(Proto, ExpiryKind)       {}
func (noopMetrics) IncTCPStateTransition(TCPState, TCPState)  {}
