package observability

import (
	"sync/atomic"
)

// GatewayStats is a point in time copy of the gateway counters.
type GatewayStats struct {
	ConnectionsAccepted uint64 `json:"connections_accepted"`
	ConnectionsRejected uint64 `json:"connections_rejected"`
	ConnectionsIgnored  uint64 `json:"connections_ignored"`
	ConnectionsClosed   uint64 `json:"connections_closed"`
	FramesReceived      uint64 `json:"frames_received"`
	FramesDropped       uint64 `json:"frames_dropped"`
	HandlerFailures     uint64 `json:"handler_failures"`
	EventsSent          uint64 `json:"events_sent"`
	SendFailures        uint64 `json:"send_failures"`
}

// Monitoring holds the gateway counters. Safe for concurrent use.
// A nil *Monitoring is valid and records nothing.
type Monitoring struct {
	connectionsAccepted atomic.Uint64
	connectionsRejected atomic.Uint64
	connectionsIgnored  atomic.Uint64
	connectionsClosed   atomic.Uint64
	framesReceived      atomic.Uint64
	framesDropped       atomic.Uint64
	handlerFailures     atomic.Uint64
	eventsSent          atomic.Uint64
	sendFailures        atomic.Uint64
}

func NewMonitoring() *Monitoring {
	return &Monitoring{}
}

func (m *Monitoring) IncrAccepted() {
	if m != nil {
		m.connectionsAccepted.Add(1)
	}
}

func (m *Monitoring) IncrRejected() {
	if m != nil {
		m.connectionsRejected.Add(1)
	}
}

func (m *Monitoring) IncrIgnored() {
	if m != nil {
		m.connectionsIgnored.Add(1)
	}
}

func (m *Monitoring) IncrClosed() {
	if m != nil {
		m.connectionsClosed.Add(1)
	}
}

func (m *Monitoring) IncrReceived() {
	if m != nil {
		m.framesReceived.Add(1)
	}
}

func (m *Monitoring) IncrDropped() {
	if m != nil {
		m.framesDropped.Add(1)
	}
}

func (m *Monitoring) IncrHandlerFailure() {
	if m != nil {
		m.handlerFailures.Add(1)
	}
}

func (m *Monitoring) IncrSent() {
	if m != nil {
		m.eventsSent.Add(1)
	}
}

func (m *Monitoring) IncrSendFailure() {
	if m != nil {
		m.sendFailures.Add(1)
	}
}

func (m *Monitoring) Snapshot() GatewayStats {
	if m == nil {
		return GatewayStats{}
	}
	return GatewayStats{
		ConnectionsAccepted: m.connectionsAccepted.Load(),
		ConnectionsRejected: m.connectionsRejected.Load(),
		ConnectionsIgnored:  m.connectionsIgnored.Load(),
		ConnectionsClosed:   m.connectionsClosed.Load(),
		FramesReceived:      m.framesReceived.Load(),
		FramesDropped:       m.framesDropped.Load(),
		HandlerFailures:     m.handlerFailures.Load(),
		EventsSent:          m.eventsSent.Load(),
		SendFailures:        m.sendFailures.Load(),
	}
}
