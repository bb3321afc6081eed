package bgp

import "github.com/netgauze-go/netgauze/internal/wire"

// Nlri is the tagged union of address-family-specific routes this
// codec understands. Unknown carries the AFI/SAFI combination and the
// raw payload so a forwarder can re-emit it unmodified.
type Nlri interface {
	nlriAFI() AFI
	nlriSAFI() SAFI
}

// IpPrefix is a prefix length plus exactly ceil(length/8) significant
// bytes, stored verbatim as observed on the wire (no host-bit padding
// assumptions) so re-encoding is byte-identical.
type IpPrefix struct {
	Length uint8
	Bytes  []byte
}

func (p IpPrefix) byteLen() int { return (int(p.Length) + 7) / 8 }

func encodeIpPrefix(p IpPrefix) []byte {
	out := make([]byte, 1+len(p.Bytes))
	out[0] = p.Length
	copy(out[1:], p.Bytes)
	return out
}

func decodeIpPrefix(cur wire.Cursor, maxBits int) (IpPrefix, wire.Cursor, error) {
	length, cur, err := cur.ReadU8()
	if err != nil {
		return IpPrefix{}, cur, err
	}
	if int(length) > maxBits {
		return IpPrefix{}, cur, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "prefix length %d exceeds %d bits", length, maxBits)
	}
	byteLen := (int(length) + 7) / 8
	b, rest, err := cur.ReadBytes(byteLen)
	if err != nil {
		return IpPrefix{}, cur, err
	}
	return IpPrefix{Length: length, Bytes: b}, rest, nil
}

// PathID, when non-nil, is the 4-octet ADD-PATH path
// identifier that precedes the prefix length (RFC 7911).
type unicastBase struct {
	PathID *uint32
	Prefix IpPrefix
	afi    AFI
	safi   SAFI
}

func (u unicastBase) nlriAFI() AFI   { return u.afi }
func (u unicastBase) nlriSAFI() SAFI { return u.safi }

// Ipv4Unicast is Nlri for (AFI=IPv4, SAFI=Unicast).
type Ipv4Unicast struct{ unicastBase }

// Ipv6Unicast is Nlri for (AFI=IPv6, SAFI=Unicast).
type Ipv6Unicast struct{ unicastBase }

// Ipv4Multicast is Nlri for (AFI=IPv4, SAFI=Multicast).
type Ipv4Multicast struct{ unicastBase }

// Ipv6Multicast is Nlri for (AFI=IPv6, SAFI=Multicast).
type Ipv6Multicast struct{ unicastBase }

// MplsLabel is a 3-octet MPLS label stack entry: 20-bit label, 3-bit
// reserved/EXP, 1-bit bottom-of-stack.
type MplsLabel struct {
	Label  uint32 // low 20 bits significant
	Bottom bool
}

// MplsLabels is Nlri for (AFI, SAFI=MplsLabels) (RFC 8277).
type MplsLabels struct {
	PathID *uint32
	Labels []MplsLabel
	Prefix IpPrefix
	afi    AFI
}

func (m MplsLabels) nlriAFI() AFI   { return m.afi }
func (m MplsLabels) nlriSAFI() SAFI { return SAFIMplsLabels }

// RouteDistinguisher is the 8-octet VPN route distinguisher (RFC 4364).
type RouteDistinguisher [8]byte

// MplsVpn is Nlri for (AFI, SAFI=MplsVpn) (RFC 4364 + RFC 8277).
type MplsVpn struct {
	PathID *uint32
	Labels []MplsLabel
	RD     RouteDistinguisher
	Prefix IpPrefix
	afi    AFI
}

func (m MplsVpn) nlriAFI() AFI   { return m.afi }
func (m MplsVpn) nlriSAFI() SAFI { return SAFIMplsVpn }

// L2Evpn is Nlri for (AFI=L2VPN, SAFI=Evpn) (RFC 7432). Individual EVPN
// route types are not decomposed; RouteType is preserved alongside the
// raw per-route payload so a forwarder can re-emit any route type.
type L2Evpn struct {
	RouteType uint8
	Bytes     []byte
}

func (L2Evpn) nlriAFI() AFI   { return AFIL2VPN }
func (L2Evpn) nlriSAFI() SAFI { return SAFIEvpn }

// RouteTargetMembership is Nlri for (AFI, SAFI=RouteTargetMembership)
// (RFC 4684). Preserved as the raw per-NLRI payload (origin ASN +
// route target), since the value bytes are meaningful only as opaque
// membership tuples to this codec.
type RouteTargetMembership struct {
	PathID *uint32
	Prefix IpPrefix
	afi    AFI
}

func (r RouteTargetMembership) nlriAFI() AFI   { return r.afi }
func (RouteTargetMembership) nlriSAFI() SAFI   { return SAFIRouteTargetMembership }

// BgpLs is Nlri for (AFI=BGP-LS, SAFI=BgpLs or BgpLsVpn) (RFC 7752 /
// RFC 9552). The NLRI TLV structure (node/link/prefix descriptors) is
// preserved as raw bytes; BgpLsAttribute carries the decoded
// link-state attribute TLVs that ride alongside it.
type BgpLs struct {
	Bytes []byte
	vpn   bool
}

func (b BgpLs) nlriAFI() AFI { return AFIBGPLS }
func (b BgpLs) nlriSAFI() SAFI {
	if b.vpn {
		return SAFIBgpLsVpn
	}
	return SAFIBgpLs
}

// UnknownNlri preserves the raw NLRI-list payload for an (AFI, SAFI)
// combination this codec does not decompose into individual prefixes.
type UnknownNlri struct {
	AFI   AFI
	SAFI  SAFI
	Bytes []byte
}

func (u UnknownNlri) nlriAFI() AFI   { return u.AFI }
func (u UnknownNlri) nlriSAFI() SAFI { return u.SAFI }

func maxBitsFor(afi AFI) int {
	if afi == AFIIPv6 {
		return 128
	}
	return 32
}

func decodePathID(cur wire.Cursor, hasAddPath bool) (*uint32, wire.Cursor, error) {
	if !hasAddPath {
		return nil, cur, nil
	}
	v, rest, err := cur.ReadU32()
	if err != nil {
		return nil, cur, err
	}
	return &v, rest, nil
}

func encodePathID(id *uint32) []byte {
	if id == nil {
		return nil
	}
	v := *id
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

// decodeNlriList decodes a classic (non-MP) withdrawn-routes or NLRI
// field: a sequence of IPv4 unicast prefixes (RFC 4271 §4.3), with an
// optional ADD-PATH path identifier per entry.
func decodeNlriList(cur wire.Cursor, hasAddPath bool) ([]Nlri, error) {
	var out []Nlri
	for cur.Len() > 0 {
		pathID, next, err := decodePathID(cur, hasAddPath)
		if err != nil {
			return nil, err
		}
		prefix, next2, err := decodeIpPrefix(next, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, Ipv4Unicast{unicastBase{PathID: pathID, Prefix: prefix, afi: AFIIPv4, safi: SAFIUnicast}})
		cur = next2
	}
	return out, nil
}

func encodeNlriList(list []Nlri) []byte {
	var out []byte
	for _, n := range list {
		u, ok := n.(Ipv4Unicast)
		if !ok {
			continue
		}
		out = append(out, encodePathID(u.PathID)...)
		out = append(out, encodeIpPrefix(u.Prefix)...)
	}
	return out
}

// decodeMpNlriList dispatches on (afi, safi) to decode a sequence of
// address-family-specific NLRI entries out of the remainder of an
// MP_REACH_NLRI/MP_UNREACH_NLRI value. Unknown combinations return a
// single UnknownNlri wrapping the raw bytes rather than failing.
func decodeMpNlriList(afi AFI, safi SAFI, cur wire.Cursor, hasAddPath bool) ([]Nlri, error) {
	switch {
	case safi == SAFIUnicast && (afi == AFIIPv4 || afi == AFIIPv6):
		return decodeUnicastList(afi, safi, cur, hasAddPath, func(b unicastBase) Nlri {
			if afi == AFIIPv4 {
				return Ipv4Unicast{b}
			}
			return Ipv6Unicast{b}
		})
	case safi == SAFIMulticast && (afi == AFIIPv4 || afi == AFIIPv6):
		return decodeUnicastList(afi, safi, cur, hasAddPath, func(b unicastBase) Nlri {
			if afi == AFIIPv4 {
				return Ipv4Multicast{b}
			}
			return Ipv6Multicast{b}
		})
	case safi == SAFIMplsLabels && (afi == AFIIPv4 || afi == AFIIPv6):
		return decodeMplsLabelsList(afi, cur, hasAddPath)
	case safi == SAFIMplsVpn && (afi == AFIIPv4 || afi == AFIIPv6):
		return decodeMplsVpnList(afi, cur, hasAddPath)
	case afi == AFIL2VPN && safi == SAFIEvpn:
		return decodeL2EvpnList(cur)
	case safi == SAFIRouteTargetMembership:
		return decodeRouteTargetMembershipList(afi, cur, hasAddPath)
	case afi == AFIBGPLS && (safi == SAFIBgpLs || safi == SAFIBgpLsVpn):
		raw, _, err := cur.ReadBytes(cur.Len())
		if err != nil {
			return nil, err
		}
		return []Nlri{BgpLs{Bytes: raw, vpn: safi == SAFIBgpLsVpn}}, nil
	default:
		raw, _, err := cur.ReadBytes(cur.Len())
		if err != nil {
			return nil, err
		}
		return []Nlri{UnknownNlri{AFI: afi, SAFI: safi, Bytes: raw}}, nil
	}
}

func decodeUnicastList(afi AFI, safi SAFI, cur wire.Cursor, hasAddPath bool, build func(unicastBase) Nlri) ([]Nlri, error) {
	var out []Nlri
	maxBits := maxBitsFor(afi)
	for cur.Len() > 0 {
		pathID, next, err := decodePathID(cur, hasAddPath)
		if err != nil {
			return nil, err
		}
		prefix, next2, err := decodeIpPrefix(next, maxBits)
		if err != nil {
			return nil, err
		}
		out = append(out, build(unicastBase{PathID: pathID, Prefix: prefix, afi: afi, safi: safi}))
		cur = next2
	}
	return out, nil
}

func decodeMplsLabelStack(cur wire.Cursor) ([]MplsLabel, wire.Cursor, int, error) {
	var labels []MplsLabel
	consumed := 0
	for {
		if err := cur.Require(3); err != nil {
			return nil, cur, consumed, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "MPLS label needs 3 bytes, have %d", cur.Len())
		}
		b, next, err := cur.ReadBytes(3)
		if err != nil {
			return nil, cur, consumed, err
		}
		raw := uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
		label := MplsLabel{Label: raw >> 4, Bottom: raw&0x1 != 0}
		labels = append(labels, label)
		consumed += 3
		cur = next
		if label.Bottom || len(labels) >= 16 {
			break
		}
	}
	return labels, cur, consumed, nil
}

func encodeMplsLabelStack(labels []MplsLabel) []byte {
	out := make([]byte, 0, 3*len(labels))
	for _, l := range labels {
		raw := (l.Label << 4) & 0xFFFFF0
		if l.Bottom {
			raw |= 0x1
		}
		out = append(out, byte(raw>>16), byte(raw>>8), byte(raw))
	}
	return out
}

func decodeMplsLabelsList(afi AFI, cur wire.Cursor, hasAddPath bool) ([]Nlri, error) {
	var out []Nlri
	maxBits := maxBitsFor(afi)
	for cur.Len() > 0 {
		pathID, next, err := decodePathID(cur, hasAddPath)
		if err != nil {
			return nil, err
		}
		bitLen, next2, err := next.ReadU8()
		if err != nil {
			return nil, err
		}
		labels, next3, labelBits, err := decodeMplsLabelStack(next2)
		if err != nil {
			return nil, err
		}
		prefixBits := int(bitLen) - labelBits*8
		if prefixBits < 0 {
			return nil, wire.NewDecodeError(next2.Offset(), wire.ErrInvalidLength, "MPLS label bit length %d shorter than label stack", bitLen)
		}
		if prefixBits > maxBits {
			return nil, wire.NewDecodeError(next2.Offset(), wire.ErrInvalidLength, "prefix length %d exceeds %d bits", prefixBits, maxBits)
		}
		byteLen := (prefixBits + 7) / 8
		prefixBytes, next4, err := next3.ReadBytes(byteLen)
		if err != nil {
			return nil, err
		}
		out = append(out, MplsLabels{PathID: pathID, Labels: labels, Prefix: IpPrefix{Length: uint8(prefixBits), Bytes: prefixBytes}, afi: afi})
		cur = next4
	}
	return out, nil
}

func decodeMplsVpnList(afi AFI, cur wire.Cursor, hasAddPath bool) ([]Nlri, error) {
	var out []Nlri
	maxBits := maxBitsFor(afi)
	for cur.Len() > 0 {
		pathID, next, err := decodePathID(cur, hasAddPath)
		if err != nil {
			return nil, err
		}
		bitLen, next2, err := next.ReadU8()
		if err != nil {
			return nil, err
		}
		labels, next3, labelBits, err := decodeMplsLabelStack(next2)
		if err != nil {
			return nil, err
		}
		if err := next3.Require(8); err != nil {
			return nil, wire.NewDecodeError(next3.Offset(), wire.ErrTruncated, "route distinguisher needs 8 bytes, have %d", next3.Len())
		}
		rdBytes, next4, err := next3.ReadBytes(8)
		if err != nil {
			return nil, err
		}
		var rd RouteDistinguisher
		copy(rd[:], rdBytes)

		prefixBits := int(bitLen) - labelBits*8 - 64
		if prefixBits < 0 {
			return nil, wire.NewDecodeError(next2.Offset(), wire.ErrInvalidLength, "MPLS VPN bit length %d too short for labels+RD", bitLen)
		}
		if prefixBits > maxBits {
			return nil, wire.NewDecodeError(next2.Offset(), wire.ErrInvalidLength, "prefix length %d exceeds %d bits", prefixBits, maxBits)
		}
		byteLen := (prefixBits + 7) / 8
		prefixBytes, next5, err := next4.ReadBytes(byteLen)
		if err != nil {
			return nil, err
		}
		out = append(out, MplsVpn{PathID: pathID, Labels: labels, RD: rd, Prefix: IpPrefix{Length: uint8(prefixBits), Bytes: prefixBytes}, afi: afi})
		cur = next5
	}
	return out, nil
}

func decodeL2EvpnList(cur wire.Cursor) ([]Nlri, error) {
	var out []Nlri
	for cur.Len() > 0 {
		if err := cur.Require(2); err != nil {
			return nil, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "EVPN route header needs 2 bytes, have %d", cur.Len())
		}
		routeType, next, err := cur.ReadU8()
		if err != nil {
			return nil, err
		}
		length, next2, err := next.ReadU8()
		if err != nil {
			return nil, err
		}
		body, rest, err := next2.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		out = append(out, L2Evpn{RouteType: routeType, Bytes: body})
		cur = rest
	}
	return out, nil
}

func decodeRouteTargetMembershipList(afi AFI, cur wire.Cursor, hasAddPath bool) ([]Nlri, error) {
	var out []Nlri
	for cur.Len() > 0 {
		pathID, next, err := decodePathID(cur, hasAddPath)
		if err != nil {
			return nil, err
		}
		prefix, next2, err := decodeIpPrefix(next, 96) // origin ASN(4) + route target(8) = 96 bits max
		if err != nil {
			return nil, err
		}
		out = append(out, RouteTargetMembership{PathID: pathID, Prefix: prefix, afi: afi})
		cur = next2
	}
	return out, nil
}

func encodeMpNlriList(list []Nlri, hasAddPath bool) []byte {
	var out []byte
	for _, n := range list {
		switch v := n.(type) {
		case Ipv4Unicast:
			out = append(out, encodePathID(v.PathID)...)
			out = append(out, encodeIpPrefix(v.Prefix)...)
		case Ipv6Unicast:
			out = append(out, encodePathID(v.PathID)...)
			out = append(out, encodeIpPrefix(v.Prefix)...)
		case Ipv4Multicast:
			out = append(out, encodePathID(v.PathID)...)
			out = append(out, encodeIpPrefix(v.Prefix)...)
		case Ipv6Multicast:
			out = append(out, encodePathID(v.PathID)...)
			out = append(out, encodeIpPrefix(v.Prefix)...)
		case MplsLabels:
			out = append(out, encodePathID(v.PathID)...)
			labelBytes := encodeMplsLabelStack(v.Labels)
			out = append(out, byte(int(v.Prefix.Length)+24*len(v.Labels)))
			out = append(out, labelBytes...)
			out = append(out, v.Prefix.Bytes...)
		case MplsVpn:
			out = append(out, encodePathID(v.PathID)...)
			labelBytes := encodeMplsLabelStack(v.Labels)
			out = append(out, byte(int(v.Prefix.Length)+24*len(v.Labels)+64))
			out = append(out, labelBytes...)
			out = append(out, v.RD[:]...)
			out = append(out, v.Prefix.Bytes...)
		case L2Evpn:
			out = append(out, v.RouteType, byte(len(v.Bytes)))
			out = append(out, v.Bytes...)
		case RouteTargetMembership:
			out = append(out, encodePathID(v.PathID)...)
			out = append(out, encodeIpPrefix(v.Prefix)...)
		case BgpLs:
			out = append(out, v.Bytes...)
		case UnknownNlri:
			out = append(out, v.Bytes...)
		}
	}
	return out
}
