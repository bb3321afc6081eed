package peer

import (
	"net"
	"time"

	"github.com/netgauze-go/netgauze/internal/bgp"
)

// Properties identifies a peer and the session's static parameters
// (RFC 4271 §3, the data that doesn't change across session resets).
type Properties struct {
	LocalASN     bgp.ASN
	PeerASN      bgp.ASN
	LocalBGPID   uint32
	PeerBGPID    uint32
	PeerAddr     net.IP
	PeerPort     int

	// PassiveTcpEstablishment: never initiate outbound TCP; wait for
	// the peer (or the supervisor's Listener) to connect in.
	PassiveTcpEstablishment bool

	// AllowDynamicAS is carried from configuration only; Peer does not
	// read it. The FSM never compares the ASN in a received OPEN with
	// PeerASN, so an OPEN is accepted whatever ASN it announces.
	AllowDynamicAS bool
}

// Config carries the RFC 4271 timers and policy knobs for one peer.
// Hold=0 disables both the Hold and Keepalive timers (RFC 4271 §4.4).
type Config struct {
	ConnectRetryTime time.Duration
	HoldTime         time.Duration
	KeepaliveTime    time.Duration

	// AcceptConnectionsUnconfiguredPeers is not read by Peer or by the
	// supervisor; connections from unknown addresses are handled by
	// supervisor.Listener's own AcceptUnconfigured/OnUnconfigured fields.
	AcceptConnectionsUnconfiguredPeers bool

	// EchoCapabilities, when set, makes negotiation return the union
	// of locally configured and peer-advertised capabilities instead
	// of their intersection — used by passive collectors that want to
	// mirror whatever the router offers.
	EchoCapabilities bool

	LocalCapabilities []bgp.Capability

	ShutdownTimeout time.Duration
}

// DefaultConfig mirrors RFC 4271's suggested defaults.
func DefaultConfig() Config {
	return Config{
		ConnectRetryTime: 120 * time.Second,
		HoldTime:         90 * time.Second,
		KeepaliveTime:    30 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// NegotiateHoldTime returns the session hold time per RFC 4271 §4.2:
// the smaller of the locally configured value and the peer's
// advertised value. A result of 0 disables both Hold and Keepalive.
func NegotiateHoldTime(local time.Duration, peerSeconds uint16) time.Duration {
	peer := time.Duration(peerSeconds) * time.Second
	if peer < local {
		return peer
	}
	return local
}

// NegotiateCapabilities intersects local with peer-advertised
// capabilities by capability code, unless echo is set, in which case
// it returns their union (peer capabilities take precedence on a code
// collision since they carry the parameters the router actually
// wants reflected back).
func NegotiateCapabilities(local, peerAdvertised []bgp.Capability, echo bool) []bgp.Capability {
	if echo {
		seen := make(map[bgp.CapabilityCode]bool)
		var out []bgp.Capability
		for _, c := range peerAdvertised {
			out = append(out, c)
			seen[capabilityCodeOf(c)] = true
		}
		for _, c := range local {
			if !seen[capabilityCodeOf(c)] {
				out = append(out, c)
			}
		}
		return out
	}

	peerCodes := make(map[bgp.CapabilityCode]bool)
	for _, c := range peerAdvertised {
		peerCodes[capabilityCodeOf(c)] = true
	}
	var out []bgp.Capability
	for _, c := range local {
		if peerCodes[capabilityCodeOf(c)] {
			out = append(out, c)
		}
	}
	return out
}

// capabilityCodeOf works around Capability's encode/decode methods
// being package-private by re-deriving the code from the concrete
// type via the exported constructors' known shapes.
func capabilityCodeOf(c bgp.Capability) bgp.CapabilityCode {
	switch v := c.(type) {
	case bgp.MultiprotocolExtensions:
		return bgp.CapMultiprotocolExtensions
	case bgp.FourOctetASN:
		return bgp.CapFourOctetASN
	case bgp.RouteRefreshCapability:
		return bgp.CapRouteRefresh
	case bgp.UnknownCapability:
		return v.Code
	default:
		return 0
	}
}
