package bmp

import (
	"net"

	"github.com/netgauze-go/netgauze/internal/bgp"
	"github.com/netgauze-go/netgauze/internal/wire"
)

// RouteMonitoringMessage wraps one BGP UPDATE as observed by the
// monitored router (RFC 7854 §4.6). The BGP bytes are kept verbatim
// and Decode does not parse them; DecodeBGPUpdate parses them on
// demand, and BGPBytes stays available for re-emission.
type RouteMonitoringMessage struct {
	Peer     PerPeerHeader
	BGPBytes []byte
}

func (RouteMonitoringMessage) MessageType() MessageType { return MsgRouteMonitoring }
func (m RouteMonitoringMessage) bodyLen() int            { return PerPeerHeaderSize + len(m.BGPBytes) }
func (m RouteMonitoringMessage) encodeBody() ([]byte, error) {
	return append(encodePerPeerHeader(m.Peer), m.BGPBytes...), nil
}

// DecodeBGPUpdate decodes the wrapped BGP message, asserting it is of
// type Update (the only message RouteMonitoring ever carries).
func (m RouteMonitoringMessage) DecodeBGPUpdate(ctx bgp.DecodeContext) (bgp.UpdateMessage, error) {
	_, msg, err := bgp.Decode(m.BGPBytes, ctx)
	if err != nil {
		return bgp.UpdateMessage{}, err
	}
	upd, ok := msg.(bgp.UpdateMessage)
	if !ok {
		return bgp.UpdateMessage{}, wire.NewDecodeError(0, wire.ErrInvalidEnumValue, "BadBgpMessageType: RouteMonitoring must wrap a BGP UPDATE, got %s", msg.MessageType())
	}
	return upd, nil
}

func decodeRouteMonitoring(cur wire.Cursor) (RouteMonitoringMessage, error) {
	peer, rest, err := decodePerPeerHeader(cur)
	if err != nil {
		return RouteMonitoringMessage{}, err
	}
	bgpBytes, _, err := rest.ReadBytes(rest.Len())
	if err != nil {
		return RouteMonitoringMessage{}, err
	}
	return RouteMonitoringMessage{Peer: peer, BGPBytes: bgpBytes}, nil
}

// StatTLV is one counter TLV inside a StatisticsReport (RFC 7854 §4.8).
type StatTLV struct {
	Type  uint16
	Value []byte
}

// StatisticsReportMessage is RFC 7854 §4.8.
type StatisticsReportMessage struct {
	Peer  PerPeerHeader
	Stats []StatTLV
}

func (StatisticsReportMessage) MessageType() MessageType { return MsgStatisticsReport }
func (m StatisticsReportMessage) bodyLen() int {
	n := PerPeerHeaderSize + 4
	for _, s := range m.Stats {
		n += 4 + len(s.Value)
	}
	return n
}
func (m StatisticsReportMessage) encodeBody() ([]byte, error) {
	out := encodePerPeerHeader(m.Peer)
	count := uint32(len(m.Stats))
	out = append(out, byte(count>>24), byte(count>>16), byte(count>>8), byte(count))
	for _, s := range m.Stats {
		out = append(out, byte(s.Type>>8), byte(s.Type), byte(len(s.Value)>>8), byte(len(s.Value)))
		out = append(out, s.Value...)
	}
	return out, nil
}

func decodeStatisticsReport(cur wire.Cursor) (StatisticsReportMessage, error) {
	peer, cur, err := decodePerPeerHeader(cur)
	if err != nil {
		return StatisticsReportMessage{}, err
	}
	count, cur, err := cur.ReadU32()
	if err != nil {
		return StatisticsReportMessage{}, err
	}
	var stats []StatTLV
	for i := uint32(0); i < count; i++ {
		if err := cur.Require(4); err != nil {
			return StatisticsReportMessage{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "stat TLV header needs 4 bytes, have %d", cur.Len())
		}
		typ, next, err := cur.ReadU16()
		if err != nil {
			return StatisticsReportMessage{}, err
		}
		length, next2, err := next.ReadU16()
		if err != nil {
			return StatisticsReportMessage{}, err
		}
		value, rest, err := next2.ReadBytes(int(length))
		if err != nil {
			return StatisticsReportMessage{}, err
		}
		stats = append(stats, StatTLV{Type: typ, Value: value})
		cur = rest
	}
	return StatisticsReportMessage{Peer: peer, Stats: stats}, nil
}

// PeerDownReason is the RFC 7854 §4.9 reason code.
type PeerDownReason uint8

const (
	PeerDownLocalNotify    PeerDownReason = 1
	PeerDownLocalNoNotify  PeerDownReason = 2
	PeerDownRemoteNotify   PeerDownReason = 3
	PeerDownRemoteNoNotify PeerDownReason = 4
	PeerDownDeconfigured   PeerDownReason = 5
)

// PeerDownNotificationMessage is RFC 7854 §4.9.
type PeerDownNotificationMessage struct {
	Peer   PerPeerHeader
	Reason PeerDownReason
	Data   []byte
}

func (PeerDownNotificationMessage) MessageType() MessageType { return MsgPeerDown }
func (m PeerDownNotificationMessage) bodyLen() int            { return PerPeerHeaderSize + 1 + len(m.Data) }
func (m PeerDownNotificationMessage) encodeBody() ([]byte, error) {
	out := encodePerPeerHeader(m.Peer)
	out = append(out, byte(m.Reason))
	out = append(out, m.Data...)
	return out, nil
}

func decodePeerDown(cur wire.Cursor) (PeerDownNotificationMessage, error) {
	peer, cur, err := decodePerPeerHeader(cur)
	if err != nil {
		return PeerDownNotificationMessage{}, err
	}
	reason, cur, err := cur.ReadU8()
	if err != nil {
		return PeerDownNotificationMessage{}, err
	}
	data, _, err := cur.ReadBytes(cur.Len())
	if err != nil {
		return PeerDownNotificationMessage{}, err
	}
	return PeerDownNotificationMessage{Peer: peer, Reason: PeerDownReason(reason), Data: data}, nil
}

// PeerUpNotificationMessage is RFC 7854 §4.10.
type PeerUpNotificationMessage struct {
	Peer            PerPeerHeader
	LocalAddress    net.IP
	LocalPort       uint16
	RemotePort      uint16
	SentOpenMsg     []byte
	ReceivedOpenMsg []byte
	Information     []InfoTLV
}

func (PeerUpNotificationMessage) MessageType() MessageType { return MsgPeerUp }
func (m PeerUpNotificationMessage) bodyLen() int {
	n := PerPeerHeaderSize + 16 + 4 + len(m.SentOpenMsg) + len(m.ReceivedOpenMsg)
	for _, t := range m.Information {
		n += 4 + len(t.Value)
	}
	return n
}
func (m PeerUpNotificationMessage) encodeBody() ([]byte, error) {
	out := encodePerPeerHeader(m.Peer)
	addr := make([]byte, 16)
	if v4 := m.LocalAddress.To4(); v4 != nil && !m.Peer.IsIPv6 {
		copy(addr[12:], v4)
	} else if v6 := m.LocalAddress.To16(); v6 != nil {
		copy(addr, v6)
	}
	out = append(out, addr...)
	out = append(out, byte(m.LocalPort>>8), byte(m.LocalPort), byte(m.RemotePort>>8), byte(m.RemotePort))
	out = append(out, m.SentOpenMsg...)
	out = append(out, m.ReceivedOpenMsg...)
	for _, t := range m.Information {
		out = append(out, byte(t.Type>>8), byte(t.Type), byte(len(t.Value)>>8), byte(len(t.Value)))
		out = append(out, t.Value...)
	}
	return out, nil
}

func decodePeerUp(cur wire.Cursor) (PeerUpNotificationMessage, error) {
	peer, cur, err := decodePerPeerHeader(cur)
	if err != nil {
		return PeerUpNotificationMessage{}, err
	}
	addrBytes, cur, err := cur.ReadBytes(16)
	if err != nil {
		return PeerUpNotificationMessage{}, err
	}
	var addr net.IP
	if peer.IsIPv6 {
		addr = net.IP(addrBytes)
	} else {
		addr = net.IP(addrBytes[12:16])
	}
	localPort, cur, err := cur.ReadU16()
	if err != nil {
		return PeerUpNotificationMessage{}, err
	}
	remotePort, cur, err := cur.ReadU16()
	if err != nil {
		return PeerUpNotificationMessage{}, err
	}

	sentLen, err := bgpMessageLen(cur)
	if err != nil {
		return PeerUpNotificationMessage{}, err
	}
	sentCur, cur, err := cur.Sub(sentLen)
	if err != nil {
		return PeerUpNotificationMessage{}, err
	}
	sent := sentCur.Bytes()

	recvLen, err := bgpMessageLen(cur)
	if err != nil {
		return PeerUpNotificationMessage{}, err
	}
	recvCur, cur, err := cur.Sub(recvLen)
	if err != nil {
		return PeerUpNotificationMessage{}, err
	}
	recv := recvCur.Bytes()

	info, err := decodeInfoTLVs(cur)
	if err != nil {
		return PeerUpNotificationMessage{}, err
	}

	return PeerUpNotificationMessage{
		Peer:            peer,
		LocalAddress:    addr,
		LocalPort:       localPort,
		RemotePort:      remotePort,
		SentOpenMsg:     append([]byte(nil), sent...),
		ReceivedOpenMsg: append([]byte(nil), recv...),
		Information:     info,
	}, nil
}

// bgpMessageLen reads the 16-bit length field of a BGP header located
// at the start of cur without consuming anything, returning the total
// framed message length.
func bgpMessageLen(cur wire.Cursor) (int, error) {
	if err := cur.Require(bgp.HeaderSize); err != nil {
		return 0, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "embedded BGP header needs %d bytes, have %d", bgp.HeaderSize, cur.Len())
	}
	b := cur.Bytes()
	length := int(b[16])<<8 | int(b[17])
	if length < bgp.HeaderSize {
		return 0, wire.NewDecodeError(cur.Offset()+16, wire.ErrMessageHeader, "embedded BGP message length %d below minimum %d", length, bgp.HeaderSize)
	}
	return length, nil
}

// InfoTLV is one Information TLV inside Initiation/Termination/PeerUp
// (RFC 7854 §4.4).
type InfoTLV struct {
	Type  uint16
	Value []byte
}

func decodeInfoTLVs(cur wire.Cursor) ([]InfoTLV, error) {
	var out []InfoTLV
	for cur.Len() > 0 {
		if err := cur.Require(4); err != nil {
			return nil, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "information TLV header needs 4 bytes, have %d", cur.Len())
		}
		typ, next, err := cur.ReadU16()
		if err != nil {
			return nil, err
		}
		length, next2, err := next.ReadU16()
		if err != nil {
			return nil, err
		}
		value, rest, err := next2.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		out = append(out, InfoTLV{Type: typ, Value: value})
		cur = rest
	}
	return out, nil
}

func encodeInfoTLVs(tlvs []InfoTLV) []byte {
	var out []byte
	for _, t := range tlvs {
		out = append(out, byte(t.Type>>8), byte(t.Type), byte(len(t.Value)>>8), byte(len(t.Value)))
		out = append(out, t.Value...)
	}
	return out
}

// InitiationMessage is RFC 7854 §4.3.
type InitiationMessage struct{ Information []InfoTLV }

func (InitiationMessage) MessageType() MessageType { return MsgInitiation }
func (m InitiationMessage) bodyLen() int            { return len(encodeInfoTLVs(m.Information)) }
func (m InitiationMessage) encodeBody() ([]byte, error) { return encodeInfoTLVs(m.Information), nil }
func decodeInitiation(cur wire.Cursor) (InitiationMessage, error) {
	info, err := decodeInfoTLVs(cur)
	return InitiationMessage{Information: info}, err
}

// TerminationMessage is RFC 7854 §4.5.
type TerminationMessage struct{ Information []InfoTLV }

func (TerminationMessage) MessageType() MessageType { return MsgTermination }
func (m TerminationMessage) bodyLen() int            { return len(encodeInfoTLVs(m.Information)) }
func (m TerminationMessage) encodeBody() ([]byte, error) { return encodeInfoTLVs(m.Information), nil }
func decodeTermination(cur wire.Cursor) (TerminationMessage, error) {
	info, err := decodeInfoTLVs(cur)
	return TerminationMessage{Information: info}, err
}

// RouteMirroringMessage is RFC 7854 §4.7.
type RouteMirroringMessage struct {
	Peer PerPeerHeader
	TLVs []InfoTLV
}

func (RouteMirroringMessage) MessageType() MessageType { return MsgRouteMirroring }
func (m RouteMirroringMessage) bodyLen() int {
	return PerPeerHeaderSize + len(encodeInfoTLVs(m.TLVs))
}
func (m RouteMirroringMessage) encodeBody() ([]byte, error) {
	return append(encodePerPeerHeader(m.Peer), encodeInfoTLVs(m.TLVs)...), nil
}
func decodeRouteMirroring(cur wire.Cursor) (RouteMirroringMessage, error) {
	peer, cur, err := decodePerPeerHeader(cur)
	if err != nil {
		return RouteMirroringMessage{}, err
	}
	tlvs, err := decodeInfoTLVs(cur)
	if err != nil {
		return RouteMirroringMessage{}, err
	}
	return RouteMirroringMessage{Peer: peer, TLVs: tlvs}, nil
}

func decodeV3Body(msgType MessageType, cur wire.Cursor) (Message, error) {
	switch msgType {
	case MsgRouteMonitoring:
		return decodeRouteMonitoring(cur)
	case MsgStatisticsReport:
		return decodeStatisticsReport(cur)
	case MsgPeerDown:
		return decodePeerDown(cur)
	case MsgPeerUp:
		return decodePeerUp(cur)
	case MsgInitiation:
		return decodeInitiation(cur)
	case MsgTermination:
		return decodeTermination(cur)
	case MsgRouteMirroring:
		return decodeRouteMirroring(cur)
	default:
		raw, _, err := cur.ReadBytes(cur.Len())
		if err != nil {
			return nil, err
		}
		return UnknownMessage{Type: msgType, Bytes: raw}, nil
	}
}

// UnknownMessage preserves the raw body of an unrecognized message type.
type UnknownMessage struct {
	Type  MessageType
	Bytes []byte
}

func (u UnknownMessage) MessageType() MessageType { return u.Type }
func (u UnknownMessage) bodyLen() int              { return len(u.Bytes) }
func (u UnknownMessage) encodeBody() ([]byte, error) { return u.Bytes, nil }
