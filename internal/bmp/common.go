// Package bmp decodes and encodes BMP v3 (RFC 7854) and v4
// (draft-ietf-grow-bmp-tlv) messages.
package bmp

import (
	"fmt"

	"github.com/netgauze-go/netgauze/internal/wire"
)

// Version is the BMP protocol version carried in the common header.
type Version uint8

const (
	VersionV3 Version = 3
	VersionV4 Version = 4
)

// CommonHeaderSize is version(1) + length(4) + type(1).
const CommonHeaderSize = 6

// MessageType is the BMP message type code (RFC 7854 §4.2).
type MessageType uint8

const (
	MsgRouteMonitoring  MessageType = 0
	MsgStatisticsReport MessageType = 1
	MsgPeerDown         MessageType = 2
	MsgPeerUp           MessageType = 3
	MsgInitiation       MessageType = 4
	MsgTermination      MessageType = 5
	MsgRouteMirroring   MessageType = 6
)

func (t MessageType) String() string {
	switch t {
	case MsgRouteMonitoring:
		return "RouteMonitoring"
	case MsgStatisticsReport:
		return "StatisticsReport"
	case MsgPeerDown:
		return "PeerDownNotification"
	case MsgPeerUp:
		return "PeerUpNotification"
	case MsgInitiation:
		return "Initiation"
	case MsgTermination:
		return "Termination"
	case MsgRouteMirroring:
		return "RouteMirroring"
	default:
		if t >= 251 {
			return fmt.Sprintf("Experimental%d", uint8(t))
		}
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// Message is the tagged union of BMP message bodies.
type Message interface {
	MessageType() MessageType
	bodyLen() int
	encodeBody() ([]byte, error)
}

// SizeOf returns the exact octet count Encode would write.
func SizeOf(m Message) int { return CommonHeaderSize + m.bodyLen() }

// Encode serializes the common header + body.
func Encode(m Message) ([]byte, error) {
	body, err := m.encodeBody()
	if err != nil {
		return nil, err
	}
	total := CommonHeaderSize + len(body)
	out := make([]byte, total)
	out[0] = byte(VersionV3)
	if isV4(m) {
		out[0] = byte(VersionV4)
	}
	out[1] = byte(total >> 24)
	out[2] = byte(total >> 16)
	out[3] = byte(total >> 8)
	out[4] = byte(total)
	out[5] = byte(m.MessageType())
	copy(out[CommonHeaderSize:], body)
	return out, nil
}

func isV4(m Message) bool {
	_, ok := m.(V4Message)
	return ok
}

// Decode reads one framed BMP message from buf, returning the
// unconsumed tail.
func Decode(buf []byte) ([]byte, Message, error) {
	cur := wire.NewCursor(buf)
	if err := cur.Require(CommonHeaderSize); err != nil {
		return buf, nil, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "BMP common header needs %d bytes, have %d", CommonHeaderSize, cur.Len())
	}
	versionByte, cur, err := cur.ReadU8()
	if err != nil {
		return buf, nil, err
	}
	version := Version(versionByte)
	if version != VersionV3 && version != VersionV4 {
		return buf, nil, wire.NewDecodeError(cur.Offset()-1, wire.ErrInvalidEnumValue, "unsupported BMP version %d", versionByte)
	}
	length, cur, err := cur.ReadU32()
	if err != nil {
		return buf, nil, err
	}
	if int(length) < CommonHeaderSize {
		return buf, nil, wire.NewDecodeError(cur.Offset()-4, wire.ErrInvalidLength, "BMP message length %d smaller than header size %d", length, CommonHeaderSize)
	}
	typeByte, cur, err := cur.ReadU8()
	if err != nil {
		return buf, nil, err
	}
	msgType := MessageType(typeByte)

	bodyLen := int(length) - CommonHeaderSize
	bodyCur, rest, err := cur.Sub(bodyLen)
	if err != nil {
		return buf, nil, err
	}

	var msg Message
	if version == VersionV4 {
		msg, err = decodeV4Body(msgType, bodyCur)
	} else {
		msg, err = decodeV3Body(msgType, bodyCur)
	}
	if err != nil {
		return buf, nil, err
	}
	return rest.Bytes(), msg, nil
}
