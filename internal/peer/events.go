package peer

import "github.com/netgauze-go/netgauze/internal/bgp"

// SessionEstablished is emitted when the FSM reaches Established.
type SessionEstablished struct {
	PeerBGPID    uint32
	Capabilities []bgp.Capability
}

// TerminationReason classifies why a session left Established.
type TerminationReason int

const (
	ReasonNotificationReceived TerminationReason = iota
	ReasonNotificationSent
	ReasonTcpFailure
	ReasonManualStop
	ReasonCollisionLost
)

// SessionTerminated is emitted when an Established session ends.
type SessionTerminated struct {
	PeerBGPID    uint32
	Reason       TerminationReason
	Notification *bgp.NotificationMessage
}

// MessageEvent wraps a decoded BGP message from an established session.
type MessageEvent struct {
	PeerBGPID uint32
	Message   bgp.Message
}

// OutputEvent is the tagged union of events a Peer publishes on its
// output channel; exactly one of the Session*/Message fields is set.
type OutputEvent struct {
	Established *SessionEstablished
	Terminated  *SessionTerminated
	Message     *MessageEvent
}
