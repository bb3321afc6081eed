package bgp

import "github.com/netgauze-go/netgauze/internal/wire"

// NotificationErrorCode is the BGP NOTIFICATION error code (RFC 4271 §4.5).
type NotificationErrorCode uint8

const (
	ErrCodeMessageHeader    NotificationErrorCode = 1
	ErrCodeOpenMessage      NotificationErrorCode = 2
	ErrCodeUpdateMessage    NotificationErrorCode = 3
	ErrCodeHoldTimerExpired NotificationErrorCode = 4
	ErrCodeFSM              NotificationErrorCode = 5
	ErrCodeCease            NotificationErrorCode = 6
)

// NotificationMessage is the BGP NOTIFICATION message body.
type NotificationMessage struct {
	ErrorCode    NotificationErrorCode
	ErrorSubcode uint8
	Data         []byte
}

func (NotificationMessage) MessageType() MessageType { return MessageTypeNotification }

func (m NotificationMessage) bodyLen(EncodeContext) int { return 2 + len(m.Data) }

func (m NotificationMessage) encodeBody(EncodeContext) ([]byte, error) {
	out := make([]byte, 2+len(m.Data))
	out[0] = byte(m.ErrorCode)
	out[1] = m.ErrorSubcode
	copy(out[2:], m.Data)
	return out, nil
}

func decodeNotificationBody(cur wire.Cursor) (NotificationMessage, error) {
	if err := cur.Require(2); err != nil {
		return NotificationMessage{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "NOTIFICATION body needs 2 bytes, have %d", cur.Len())
	}
	code, cur, err := cur.ReadU8()
	if err != nil {
		return NotificationMessage{}, err
	}
	subcode, cur, err := cur.ReadU8()
	if err != nil {
		return NotificationMessage{}, err
	}
	data, _, err := cur.ReadBytes(cur.Len())
	if err != nil {
		return NotificationMessage{}, err
	}
	return NotificationMessage{ErrorCode: NotificationErrorCode(code), ErrorSubcode: subcode, Data: data}, nil
}
