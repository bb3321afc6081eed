package bgp

import (
	"bytes"
	"fmt"

	"github.com/netgauze-go/netgauze/internal/wire"
)

// MarkerSize is the 16-octet all-ones marker every BGP message opens with.
const MarkerSize = 16

// HeaderSize is marker(16) + length(2) + type(1).
const HeaderSize = 19

// MinMessageLen and the per-type maximums from RFC 4271 + the classic
// 4096-octet ceiling for OPEN/KEEPALIVE that RFC 4271 erratum and most
// implementations retain even though extended messages (RFC 8654) lift
// UPDATE/NOTIFICATION/ROUTE-REFRESH to 65535.
const (
	MinMessageLen          = HeaderSize
	MaxOpenKeepaliveLen     = 4096
	MaxOtherMessageLen      = 65535
)

// MessageType is the BGP message type code carried in the 19-octet header.
type MessageType uint8

const (
	MessageTypeOpen         MessageType = 1
	MessageTypeUpdate       MessageType = 2
	MessageTypeNotification MessageType = 3
	MessageTypeKeepAlive    MessageType = 4
	MessageTypeRouteRefresh MessageType = 5
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeOpen:
		return "OPEN"
	case MessageTypeUpdate:
		return "UPDATE"
	case MessageTypeNotification:
		return "NOTIFICATION"
	case MessageTypeKeepAlive:
		return "KEEPALIVE"
	case MessageTypeRouteRefresh:
		return "ROUTE-REFRESH"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

var marker = bytes.Repeat([]byte{0xFF}, MarkerSize)

// Message is the tagged union: Open | Update | Notification | KeepAlive
// | RouteRefresh.
type Message interface {
	MessageType() MessageType
	bodyLen(ctx EncodeContext) int
	encodeBody(ctx EncodeContext) ([]byte, error)
}

// SizeOf returns the exact number of octets Encode would write for msg.
func SizeOf(msg Message, ctx EncodeContext) int {
	return HeaderSize + msg.bodyLen(ctx)
}

// Encode serializes msg (header + body) to a newly allocated byte slice.
func Encode(msg Message, ctx EncodeContext) ([]byte, error) {
	body, err := msg.encodeBody(ctx)
	if err != nil {
		return nil, err
	}
	total := HeaderSize + len(body)
	maxLen := MaxOtherMessageLen
	if msg.MessageType() == MessageTypeOpen || msg.MessageType() == MessageTypeKeepAlive {
		maxLen = MaxOpenKeepaliveLen
	}
	if total > maxLen {
		return nil, wire.NewEncodeError(wire.ErrMessageTooLarge, "%s message length %d exceeds max %d", msg.MessageType(), total, maxLen)
	}
	out := make([]byte, total)
	copy(out[0:MarkerSize], marker)
	out[16] = byte(total >> 8)
	out[17] = byte(total)
	out[18] = byte(msg.MessageType())
	copy(out[HeaderSize:], body)
	return out, nil
}

// Decode reads one framed BGP message from buf, returning the
// unconsumed tail and the decoded message.
func Decode(buf []byte, ctx DecodeContext) ([]byte, Message, error) {
	cur := wire.NewCursor(buf)
	if err := cur.Require(HeaderSize); err != nil {
		return buf, nil, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "bgp header needs %d bytes, have %d", HeaderSize, cur.Len())
	}

	markerBytes, cur2, err := cur.ReadBytes(MarkerSize)
	if err != nil {
		return buf, nil, err
	}
	if !bytes.Equal(markerBytes, marker) {
		return buf, nil, wire.NewDecodeError(cur.Offset(), wire.ErrMessageHeader, "connection not synchronized: bad marker")
	}

	lengthOff := cur2.Offset()
	length16, cur3, err := cur2.ReadU16()
	if err != nil {
		return buf, nil, err
	}
	length := int(length16)

	typeOff := cur3.Offset()
	typeByte, cur4, err := cur3.ReadU8()
	if err != nil {
		return buf, nil, err
	}
	msgType := MessageType(typeByte)

	if length < MinMessageLen {
		return buf, nil, wire.NewDecodeError(lengthOff, wire.ErrMessageHeader, "bad message length %d: less than minimum %d", length, MinMessageLen)
	}
	maxLen := MaxOtherMessageLen
	if msgType == MessageTypeOpen || msgType == MessageTypeKeepAlive {
		maxLen = MaxOpenKeepaliveLen
	}
	if length > maxLen {
		return buf, nil, wire.NewDecodeError(lengthOff, wire.ErrMessageHeader, "bad message length %d: exceeds maximum %d for %s", length, maxLen, msgType)
	}

	bodyLen := length - HeaderSize
	if err := cur4.Require(bodyLen); err != nil {
		return buf, nil, wire.NewDecodeError(cur4.Offset(), wire.ErrTruncated, "message body needs %d bytes, have %d", bodyLen, cur4.Len())
	}
	bodyCur, rest, err := cur4.Sub(bodyLen)
	if err != nil {
		return buf, nil, err
	}

	var msg Message
	switch msgType {
	case MessageTypeOpen:
		msg, err = decodeOpenBody(bodyCur)
	case MessageTypeUpdate:
		msg, err = decodeUpdateBody(bodyCur, ctx)
	case MessageTypeNotification:
		msg, err = decodeNotificationBody(bodyCur)
	case MessageTypeKeepAlive:
		if bodyCur.Len() != 0 {
			return buf, nil, wire.NewDecodeError(bodyCur.Offset(), wire.ErrInvalidLength, "KEEPALIVE body must be empty, got %d bytes", bodyCur.Len())
		}
		msg = KeepAliveMessage{}
	case MessageTypeRouteRefresh:
		msg, err = decodeRouteRefreshBody(bodyCur)
	default:
		return buf, nil, wire.NewDecodeError(typeOff, wire.ErrInvalidEnumValue, "unrecognized BGP message type %d", typeByte)
	}
	if err != nil {
		return buf, nil, err
	}
	return rest.Bytes(), msg, nil
}
