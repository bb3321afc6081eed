package bmp

import (
	"unicode/utf8"

	"github.com/netgauze-go/netgauze/internal/bgp"
	"github.com/netgauze-go/netgauze/internal/wire"
)

// V4Message marks the message bodies carried in a BMP v4 common header
// (draft-ietf-grow-bmp-tlv). Only RouteMonitoring grows a TLV-based v4
// shape; the other message types are shared verbatim with v3.
type V4Message interface {
	Message
	isV4Message()
}

// V4TLVCode is the TLV type code carried inside a v4 RouteMonitoring
// message (draft-ietf-grow-bmp-tlv §4).
type V4TLVCode uint16

const (
	TLVBgpUpdatePdu      V4TLVCode = 0
	TLVVrfTableName      V4TLVCode = 1
	TLVGroup             V4TLVCode = 7
	TLVStatelessParsing  V4TLVCode = 8
	TLVPathMarking       V4TLVCode = 12
)

const groupIndexMSB = 1 << 15

// PathMarkingReason is the optional second field of a PathMarking TLV.
type PathMarkingReason uint16

// V4TLV is one TLV entry inside a v4 RouteMonitoring message. Exactly
// one recognized shape is populated per code; Raw carries the bytes
// for Unknown (or any TLV a caller chooses not to interpret).
type V4TLV struct {
	Index uint16
	Code  V4TLVCode

	BGPUpdate *bgp.UpdateMessage // TLVBgpUpdatePdu
	VrfName   string             // TLVVrfTableName
	Group     uint16             // TLVGroup, low 15 bits
	Stateless bool               // TLVStatelessParsing presence
	PathStatus uint32            // TLVPathMarking
	PathReason *PathMarkingReason

	Raw []byte // Unknown(code) fallback, or any TLV kept un-decoded
}

// RouteMonitoringV4Message is RouteMonitoring framed with BMP v4's
// required-TLV-first layout. TLVs[0] must decode to TLVBgpUpdatePdu
// wrapping a BGP UPDATE; everything after it is optional metadata.
type RouteMonitoringV4Message struct {
	Peer PerPeerHeader
	TLVs []V4TLV
}

func (RouteMonitoringV4Message) MessageType() MessageType { return MsgRouteMonitoring }
func (RouteMonitoringV4Message) isV4Message()              {}

func (m RouteMonitoringV4Message) bodyLen() int {
	n := PerPeerHeaderSize
	for _, t := range m.TLVs {
		n += 6 + len(encodeV4TLVValue(t))
	}
	return n
}

func (m RouteMonitoringV4Message) encodeBody() ([]byte, error) {
	if len(m.TLVs) == 0 || m.TLVs[0].Code != TLVBgpUpdatePdu {
		return nil, wire.NewEncodeError(wire.ErrIO, "BadBgpMessageType: RouteMonitoring v4 TLV 0 must be BgpUpdatePdu")
	}
	out := encodePerPeerHeader(m.Peer)
	for _, t := range m.TLVs {
		value := encodeV4TLVValue(t)
		index := t.Index
		if t.Code == TLVGroup {
			index |= groupIndexMSB
		}
		out = append(out, byte(t.Code>>8), byte(t.Code))
		out = append(out, byte(index>>8), byte(index))
		out = append(out, byte(len(value)>>8), byte(len(value)))
		out = append(out, value...)
	}
	return out, nil
}

func encodeV4TLVValue(t V4TLV) []byte {
	switch t.Code {
	case TLVBgpUpdatePdu:
		if t.BGPUpdate == nil {
			return nil
		}
		b, err := bgp.Encode(*t.BGPUpdate, bgp.EncodeContext{ASN4: true})
		if err != nil {
			return nil
		}
		return b
	case TLVVrfTableName:
		return []byte(t.VrfName)
	case TLVGroup:
		return []byte{byte(t.Group >> 8), byte(t.Group)}
	case TLVStatelessParsing:
		return nil
	case TLVPathMarking:
		out := []byte{byte(t.PathStatus >> 24), byte(t.PathStatus >> 16), byte(t.PathStatus >> 8), byte(t.PathStatus)}
		if t.PathReason != nil {
			out = append(out, byte(*t.PathReason>>8), byte(*t.PathReason))
		}
		return out
	default:
		return t.Raw
	}
}

func decodeRouteMonitoringV4(cur wire.Cursor) (RouteMonitoringV4Message, error) {
	peer, cur, err := decodePerPeerHeader(cur)
	if err != nil {
		return RouteMonitoringV4Message{}, err
	}

	var tlvs []V4TLV
	for cur.Len() > 0 {
		if err := cur.Require(6); err != nil {
			return RouteMonitoringV4Message{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "v4 TLV header needs 6 bytes, have %d", cur.Len())
		}
		codeVal, next, err := cur.ReadU16()
		if err != nil {
			return RouteMonitoringV4Message{}, err
		}
		indexRaw, next2, err := next.ReadU16()
		if err != nil {
			return RouteMonitoringV4Message{}, err
		}
		length, next3, err := next2.ReadU16()
		if err != nil {
			return RouteMonitoringV4Message{}, err
		}
		valueCur, rest, err := next3.Sub(int(length))
		if err != nil {
			return RouteMonitoringV4Message{}, err
		}

		code := V4TLVCode(codeVal)
		tlv := V4TLV{Code: code, Index: indexRaw &^ groupIndexMSB}

		switch code {
		case TLVBgpUpdatePdu:
			_, msg, derr := bgp.Decode(valueCur.Bytes(), bgp.DecodeContext{ASN4: true})
			if derr != nil {
				return RouteMonitoringV4Message{}, derr
			}
			upd, ok := msg.(bgp.UpdateMessage)
			if !ok {
				return RouteMonitoringV4Message{}, wire.NewDecodeError(valueCur.Offset(), wire.ErrInvalidEnumValue, "BadBgpMessageType: BgpUpdatePdu must wrap a BGP UPDATE, got %s", msg.MessageType())
			}
			tlv.BGPUpdate = &upd
		case TLVVrfTableName:
			raw := valueCur.Bytes()
			if len(raw) > 255 {
				return RouteMonitoringV4Message{}, wire.NewDecodeError(valueCur.Offset(), wire.ErrInvalidLength, "VrfTableNameStringIsTooLong: %d bytes exceeds 255", len(raw))
			}
			if !utf8.Valid(raw) {
				return RouteMonitoringV4Message{}, wire.NewDecodeError(valueCur.Offset(), wire.ErrInvalidEnumValue, "VrfTableName is not valid UTF-8")
			}
			tlv.VrfName = string(raw)
		case TLVGroup:
			if indexRaw&groupIndexMSB == 0 {
				return RouteMonitoringV4Message{}, wire.NewDecodeError(next.Offset(), wire.ErrInvalidFlagCombination, "BadGroupTlvIndex: GroupTlv index %d must have the MSB set", indexRaw)
			}
			if valueCur.Len() != 2 {
				return RouteMonitoringV4Message{}, wire.NewDecodeError(valueCur.Offset(), wire.ErrInvalidLength, "GroupTlv value must be 2 bytes, got %d", valueCur.Len())
			}
			g, _, gerr := valueCur.ReadU16()
			if gerr != nil {
				return RouteMonitoringV4Message{}, gerr
			}
			tlv.Group = g
		case TLVStatelessParsing:
			tlv.Stateless = true
		case TLVPathMarking:
			if valueCur.Len() != 4 && valueCur.Len() != 6 {
				return RouteMonitoringV4Message{}, wire.NewDecodeError(valueCur.Offset(), wire.ErrInvalidLength, "PathMarking value must be 4 or 6 bytes, got %d", valueCur.Len())
			}
			status, afterStatus, serr := valueCur.ReadU32()
			if serr != nil {
				return RouteMonitoringV4Message{}, serr
			}
			tlv.PathStatus = status
			if afterStatus.Len() == 2 {
				r, _, rerr := afterStatus.ReadU16()
				if rerr != nil {
					return RouteMonitoringV4Message{}, rerr
				}
				reason := PathMarkingReason(r)
				tlv.PathReason = &reason
			}
		default:
			raw, _, rerr := valueCur.ReadBytes(valueCur.Len())
			if rerr != nil {
				return RouteMonitoringV4Message{}, rerr
			}
			tlv.Raw = raw
		}

		tlvs = append(tlvs, tlv)
		cur = rest
	}

	if len(tlvs) == 0 || tlvs[0].Code != TLVBgpUpdatePdu {
		return RouteMonitoringV4Message{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidEnumValue, "BadBgpMessageType: RouteMonitoring v4 requires BgpUpdatePdu as TLV 0")
	}

	return RouteMonitoringV4Message{Peer: peer, TLVs: tlvs}, nil
}

// v4Wrapper marks a v3-shaped message as eligible for a v4 common
// header: PeerUp/PeerDown/StatisticsReport/Initiation/Termination and
// RouteMirroring carry the same body in both versions.
type v4Wrapper struct{ Message }

func (v4Wrapper) isV4Message() {}

func decodeV4Body(msgType MessageType, cur wire.Cursor) (Message, error) {
	if msgType == MsgRouteMonitoring {
		return decodeRouteMonitoringV4(cur)
	}
	inner, err := decodeV3Body(msgType, cur)
	if err != nil {
		return nil, err
	}
	return v4Wrapper{inner}, nil
}
