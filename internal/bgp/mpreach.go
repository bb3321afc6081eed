package bgp

import (
	"net"

	"github.com/netgauze-go/netgauze/internal/wire"
)

// MpReachNLRI is PathAttributeValue for MP_REACH_NLRI (RFC 4760).
// NextHop holds the raw next-hop bytes (4, 16, or 32 for a global+
// link-local IPv6 pair) since its interpretation is address-family
// specific and callers that only forward the route need it verbatim.
type MpReachNLRI struct {
	AFI     AFI
	SAFI    SAFI
	NextHop []byte
	NLRI    []Nlri
}

func (MpReachNLRI) attributeType() AttributeType { return AttrMPReachNLRI }

func (m MpReachNLRI) encodeValue(ctx EncodeContext) ([]byte, error) {
	hasAddPath := false // the encoder preserves whatever PathID is set per-NLRI
	nlriBytes := encodeMpNlriList(m.NLRI, hasAddPath)
	out := make([]byte, 0, 4+len(m.NextHop)+1+len(nlriBytes))
	out = append(out, byte(m.AFI>>8), byte(m.AFI), byte(m.SAFI))
	out = append(out, byte(len(m.NextHop)))
	out = append(out, m.NextHop...)
	out = append(out, 0) // reserved (SNPA count, always 0 emitted)
	out = append(out, nlriBytes...)
	return out, nil
}

func decodeMPReach(cur wire.Cursor, ctx DecodeContext) (MpReachNLRI, error) {
	if err := cur.Require(5); err != nil {
		return MpReachNLRI{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "MP_REACH_NLRI header needs 5 bytes, have %d", cur.Len())
	}
	afi16, cur, err := cur.ReadU16()
	if err != nil {
		return MpReachNLRI{}, err
	}
	safiByte, cur, err := cur.ReadU8()
	if err != nil {
		return MpReachNLRI{}, err
	}
	nhLen, cur, err := cur.ReadU8()
	if err != nil {
		return MpReachNLRI{}, err
	}
	nextHop, cur, err := cur.ReadBytes(int(nhLen))
	if err != nil {
		return MpReachNLRI{}, err
	}
	// Reserved SNPA-count octet (always 0 in modern deployments; RFC
	// 4760 §5 says to ignore SNPA content on decode).
	_, cur, err = cur.ReadU8()
	if err != nil {
		return MpReachNLRI{}, err
	}

	afi := AFI(afi16)
	safi := SAFI(safiByte)
	nlri, err := decodeMpNlriList(afi, safi, cur, false)
	if err != nil {
		return MpReachNLRI{}, err
	}
	return MpReachNLRI{AFI: afi, SAFI: safi, NextHop: nextHop, NLRI: nlri}, nil
}

// NextHopIP interprets NextHop as an IPv4 or IPv6 address when its
// length matches one of those widths (4, 16; the first 16 of a 32-byte
// global+link-local pair). Returns nil otherwise.
func (m MpReachNLRI) NextHopIP() net.IP {
	switch len(m.NextHop) {
	case 4, 16:
		return net.IP(m.NextHop)
	case 32:
		return net.IP(m.NextHop[:16])
	default:
		return nil
	}
}

// MpUnreachNLRI is PathAttributeValue for MP_UNREACH_NLRI (RFC 4760).
type MpUnreachNLRI struct {
	AFI  AFI
	SAFI SAFI
	NLRI []Nlri
}

func (MpUnreachNLRI) attributeType() AttributeType { return AttrMPUnreachNLRI }

func (m MpUnreachNLRI) encodeValue(ctx EncodeContext) ([]byte, error) {
	nlriBytes := encodeMpNlriList(m.NLRI, false)
	out := make([]byte, 0, 3+len(nlriBytes))
	out = append(out, byte(m.AFI>>8), byte(m.AFI), byte(m.SAFI))
	out = append(out, nlriBytes...)
	return out, nil
}

func decodeMPUnreach(cur wire.Cursor, ctx DecodeContext) (MpUnreachNLRI, error) {
	if err := cur.Require(3); err != nil {
		return MpUnreachNLRI{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "MP_UNREACH_NLRI header needs 3 bytes, have %d", cur.Len())
	}
	afi16, cur, err := cur.ReadU16()
	if err != nil {
		return MpUnreachNLRI{}, err
	}
	safiByte, cur, err := cur.ReadU8()
	if err != nil {
		return MpUnreachNLRI{}, err
	}
	afi := AFI(afi16)
	safi := SAFI(safiByte)
	nlri, err := decodeMpNlriList(afi, safi, cur, false)
	if err != nil {
		return MpUnreachNLRI{}, err
	}
	return MpUnreachNLRI{AFI: afi, SAFI: safi, NLRI: nlri}, nil
}
