package bgp

import "github.com/netgauze-go/netgauze/internal/wire"

// UpdateMessage is the BGP UPDATE message body (RFC 4271 §4.3).
// WithdrawnRoutes and NLRI carry only the classic IPv4 unicast routes;
// other address families travel inside MP_REACH_NLRI/MP_UNREACH_NLRI
// path attributes, reachable via PathAttributes.
type UpdateMessage struct {
	WithdrawnRoutes []Nlri
	PathAttributes  []PathAttribute
	NLRI            []Nlri
}

func (UpdateMessage) MessageType() MessageType { return MessageTypeUpdate }

func (m UpdateMessage) bodyLen(ctx EncodeContext) int {
	b, err := m.encodeBody(ctx)
	if err != nil {
		return 0
	}
	return len(b)
}

func (m UpdateMessage) encodeBody(ctx EncodeContext) ([]byte, error) {
	withdrawn := encodeNlriList(m.WithdrawnRoutes)
	if len(withdrawn) > 65535 {
		return nil, wire.NewEncodeError(wire.ErrMessageTooLarge, "withdrawn routes length %d exceeds 65535", len(withdrawn))
	}

	var attrs []byte
	for _, a := range m.PathAttributes {
		enc, err := encodeAttribute(a, ctx)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, enc...)
	}
	if len(attrs) > 65535 {
		return nil, wire.NewEncodeError(wire.ErrMessageTooLarge, "path attributes length %d exceeds 65535", len(attrs))
	}

	nlri := encodeNlriList(m.NLRI)

	out := make([]byte, 0, 4+len(withdrawn)+len(attrs)+len(nlri))
	out = append(out, byte(len(withdrawn)>>8), byte(len(withdrawn)))
	out = append(out, withdrawn...)
	out = append(out, byte(len(attrs)>>8), byte(len(attrs)))
	out = append(out, attrs...)
	out = append(out, nlri...)
	return out, nil
}

func decodeUpdateBody(cur wire.Cursor, ctx DecodeContext) (UpdateMessage, error) {
	if err := cur.Require(2); err != nil {
		return UpdateMessage{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "UPDATE needs 2 bytes for withdrawn-routes length, have %d", cur.Len())
	}
	withdrawnLen, cur, err := cur.ReadU16()
	if err != nil {
		return UpdateMessage{}, err
	}
	withdrawnCur, cur, err := cur.Sub(int(withdrawnLen))
	if err != nil {
		return UpdateMessage{}, err
	}
	withdrawn, err := decodeNlriList(withdrawnCur, false)
	if err != nil {
		return UpdateMessage{}, err
	}

	if err := cur.Require(2); err != nil {
		return UpdateMessage{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "UPDATE needs 2 bytes for path-attribute length, have %d", cur.Len())
	}
	attrsLen, cur, err := cur.ReadU16()
	if err != nil {
		return UpdateMessage{}, err
	}
	attrsCur, cur, err := cur.Sub(int(attrsLen))
	if err != nil {
		return UpdateMessage{}, err
	}

	var attrs []PathAttribute
	for attrsCur.Len() > 0 {
		var a PathAttribute
		a, attrsCur, err = decodeAttribute(attrsCur, ctx)
		if err != nil {
			return UpdateMessage{}, err
		}
		attrs = append(attrs, a)
	}

	nlri, err := decodeNlriList(cur, false)
	if err != nil {
		return UpdateMessage{}, err
	}

	return UpdateMessage{WithdrawnRoutes: withdrawn, PathAttributes: attrs, NLRI: nlri}, nil
}

// Attribute returns the first path attribute of type code, if present.
func (m UpdateMessage) Attribute(code AttributeType) (PathAttribute, bool) {
	for _, a := range m.PathAttributes {
		if a.Code == code {
			return a, true
		}
	}
	return PathAttribute{}, false
}
