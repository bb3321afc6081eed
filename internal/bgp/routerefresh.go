package bgp

import "github.com/netgauze-go/netgauze/internal/wire"

// RouteRefreshMessage is the RFC 2918 ROUTE-REFRESH message body: AFI,
// a reserved octet (repurposed as a subtype by RFC 7313's enhanced
// route refresh, preserved verbatim here), and SAFI.
type RouteRefreshMessage struct {
	AFI     AFI
	Reserved uint8
	SAFI    SAFI
}

func (RouteRefreshMessage) MessageType() MessageType { return MessageTypeRouteRefresh }

func (RouteRefreshMessage) bodyLen(EncodeContext) int { return 4 }

func (m RouteRefreshMessage) encodeBody(EncodeContext) ([]byte, error) {
	out := make([]byte, 4)
	out[0] = byte(m.AFI >> 8)
	out[1] = byte(m.AFI)
	out[2] = m.Reserved
	out[3] = byte(m.SAFI)
	return out, nil
}

func decodeRouteRefreshBody(cur wire.Cursor) (RouteRefreshMessage, error) {
	if err := cur.Require(4); err != nil {
		return RouteRefreshMessage{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "route-refresh body needs 4 bytes, have %d", cur.Len())
	}
	afi, cur, err := cur.ReadU16()
	if err != nil {
		return RouteRefreshMessage{}, err
	}
	reserved, cur, err := cur.ReadU8()
	if err != nil {
		return RouteRefreshMessage{}, err
	}
	safi, _, err := cur.ReadU8()
	if err != nil {
		return RouteRefreshMessage{}, err
	}
	return RouteRefreshMessage{AFI: AFI(afi), Reserved: reserved, SAFI: SAFI(safi)}, nil
}
