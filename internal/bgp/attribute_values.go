package bgp

import (
	"net"

	"github.com/netgauze-go/netgauze/internal/wire"
)

// OriginCode is the well-known ORIGIN value.
type OriginCode uint8

const (
	OriginIGP        OriginCode = 0
	OriginEGP        OriginCode = 1
	OriginIncomplete OriginCode = 2
)

// Origin is PathAttributeValue for ORIGIN.
type Origin struct {
	Value OriginCode
}

func (Origin) attributeType() AttributeType { return AttrOrigin }
func (o Origin) encodeValue(EncodeContext) ([]byte, error) { return []byte{byte(o.Value)}, nil }

func decodeOrigin(cur wire.Cursor) (Origin, error) {
	if cur.Len() != 1 {
		return Origin{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "ORIGIN must be 1 byte, got %d", cur.Len())
	}
	b := cur.Bytes()[0]
	if b > byte(OriginIncomplete) {
		return Origin{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidEnumValue, "bad ORIGIN value %d", b)
	}
	return Origin{Value: OriginCode(b)}, nil
}

// AsPathSegmentType distinguishes AS_SET from AS_SEQUENCE (RFC 4271 §4.3).
type AsPathSegmentType uint8

const (
	AsPathSegmentSet      AsPathSegmentType = 1
	AsPathSegmentSequence AsPathSegmentType = 2
)

// AsPathSegment is one segment of an AS_PATH / AS4_PATH attribute.
type AsPathSegment struct {
	Type AsPathSegmentType
	ASNs []ASN
}

// AsPath is PathAttributeValue for AS_PATH and AS4_PATH. FourOctet
// records the wire width actually used so an unmodified re-encode
// chooses the same width even if session state later changes.
type AsPath struct {
	FourOctet bool
	Segments  []AsPathSegment
	as4       bool // true when this decoded from AS4_PATH rather than AS_PATH
}

func (a AsPath) attributeType() AttributeType {
	if a.as4 {
		return AttrAS4Path
	}
	return AttrASPath
}

func (a AsPath) encodeValue(EncodeContext) ([]byte, error) {
	var out []byte
	width := 2
	if a.FourOctet {
		width = 4
	}
	for _, seg := range a.Segments {
		hdr := []byte{byte(seg.Type), byte(len(seg.ASNs))}
		out = append(out, hdr...)
		for _, asn := range seg.ASNs {
			if width == 4 {
				out = append(out, byte(asn>>24), byte(asn>>16), byte(asn>>8), byte(asn))
			} else {
				out = append(out, byte(asn>>8), byte(asn))
			}
		}
	}
	return out, nil
}

// NewAsPath builds an AS_PATH value. Pass as4=true to build an AS4_PATH.
func NewAsPath(fourOctet bool, segments []AsPathSegment, as4 bool) AsPath {
	return AsPath{FourOctet: fourOctet, Segments: segments, as4: as4}
}

func decodeASPath(cur wire.Cursor, fourOctet bool, as4 bool) (AsPath, error) {
	width := 2
	if fourOctet {
		width = 4
	}
	var segments []AsPathSegment
	for cur.Len() > 0 {
		if err := cur.Require(2); err != nil {
			return AsPath{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "AS_PATH segment header needs 2 bytes, have %d", cur.Len())
		}
		typeByte, next, err := cur.ReadU8()
		if err != nil {
			return AsPath{}, err
		}
		segType := AsPathSegmentType(typeByte)
		if segType != AsPathSegmentSet && segType != AsPathSegmentSequence {
			return AsPath{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidEnumValue, "bad AS_PATH segment type %d", typeByte)
		}
		count, next, err := next.ReadU8()
		if err != nil {
			return AsPath{}, err
		}
		asns := make([]ASN, count)
		for i := range asns {
			if width == 4 {
				v, n2, err := next.ReadU32()
				if err != nil {
					return AsPath{}, err
				}
				asns[i] = ASN(v)
				next = n2
			} else {
				v, n2, err := next.ReadU16()
				if err != nil {
					return AsPath{}, err
				}
				asns[i] = ASN(v)
				next = n2
			}
		}
		segments = append(segments, AsPathSegment{Type: segType, ASNs: asns})
		cur = next
	}
	return AsPath{FourOctet: fourOctet, Segments: segments, as4: as4}, nil
}

// NextHop is PathAttributeValue for NEXT_HOP (classic IPv4 only; the
// multiprotocol next hop lives inside MpReachNLRI).
type NextHop struct {
	Address net.IP
}

func (NextHop) attributeType() AttributeType { return AttrNextHop }
func (n NextHop) encodeValue(EncodeContext) ([]byte, error) {
	v4 := n.Address.To4()
	if v4 == nil {
		return nil, wire.NewEncodeError(wire.ErrStringTooLong, "NEXT_HOP address %s is not IPv4", n.Address)
	}
	return []byte(v4), nil
}

func decodeNextHop(cur wire.Cursor) (NextHop, error) {
	if cur.Len() != 4 {
		return NextHop{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "NEXT_HOP must be 4 bytes, got %d", cur.Len())
	}
	ip := make(net.IP, 4)
	copy(ip, cur.Bytes())
	return NextHop{Address: ip}, nil
}

// MultiExitDisc is PathAttributeValue for MED.
type MultiExitDisc struct{ Value uint32 }

func (MultiExitDisc) attributeType() AttributeType { return AttrMultiExitDisc }
func (m MultiExitDisc) encodeValue(EncodeContext) ([]byte, error) {
	return []byte{byte(m.Value >> 24), byte(m.Value >> 16), byte(m.Value >> 8), byte(m.Value)}, nil
}
func decodeMED(cur wire.Cursor) (MultiExitDisc, error) {
	v, err := decodeU32Attr(cur, "MULTI_EXIT_DISC")
	return MultiExitDisc{Value: v}, err
}

// LocalPref is PathAttributeValue for LOCAL_PREF.
type LocalPref struct{ Value uint32 }

func (LocalPref) attributeType() AttributeType { return AttrLocalPref }
func (l LocalPref) encodeValue(EncodeContext) ([]byte, error) {
	return []byte{byte(l.Value >> 24), byte(l.Value >> 16), byte(l.Value >> 8), byte(l.Value)}, nil
}
func decodeLocalPref(cur wire.Cursor) (LocalPref, error) {
	v, err := decodeU32Attr(cur, "LOCAL_PREF")
	return LocalPref{Value: v}, err
}

func decodeU32Attr(cur wire.Cursor, name string) (uint32, error) {
	if cur.Len() != 4 {
		return 0, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "%s must be 4 bytes, got %d", name, cur.Len())
	}
	b := cur.Bytes()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// AtomicAggregate is PathAttributeValue for ATOMIC_AGGREGATE (no value).
type AtomicAggregate struct{}

func (AtomicAggregate) attributeType() AttributeType       { return AttrAtomicAggregate }
func (AtomicAggregate) encodeValue(EncodeContext) ([]byte, error) { return nil, nil }
func decodeAtomicAggregate(cur wire.Cursor) (AtomicAggregate, error) {
	if cur.Len() != 0 {
		return AtomicAggregate{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "ATOMIC_AGGREGATE must be empty, got %d bytes", cur.Len())
	}
	return AtomicAggregate{}, nil
}

// Aggregator is PathAttributeValue for AGGREGATOR / AS4_AGGREGATOR.
type Aggregator struct {
	FourOctet bool
	ASN       ASN
	Address   net.IP
	as4       bool
}

func (a Aggregator) attributeType() AttributeType {
	if a.as4 {
		return AttrAS4Aggregator
	}
	return AttrAggregator
}
func (a Aggregator) encodeValue(EncodeContext) ([]byte, error) {
	v4 := a.Address.To4()
	if v4 == nil {
		return nil, wire.NewEncodeError(wire.ErrStringTooLong, "AGGREGATOR address %s is not IPv4", a.Address)
	}
	if a.FourOctet {
		return []byte{byte(a.ASN >> 24), byte(a.ASN >> 16), byte(a.ASN >> 8), byte(a.ASN), v4[0], v4[1], v4[2], v4[3]}, nil
	}
	return []byte{byte(a.ASN >> 8), byte(a.ASN), v4[0], v4[1], v4[2], v4[3]}, nil
}

func decodeAggregator(cur wire.Cursor, fourOctet bool, as4 bool) (Aggregator, error) {
	expect := 6
	if fourOctet {
		expect = 8
	}
	if cur.Len() != expect {
		return Aggregator{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "AGGREGATOR must be %d bytes, got %d", expect, cur.Len())
	}
	b := cur.Bytes()
	var asn ASN
	var ipOff int
	if fourOctet {
		asn = ASN(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
		ipOff = 4
	} else {
		asn = ASN(uint32(b[0])<<8 | uint32(b[1]))
		ipOff = 2
	}
	ip := make(net.IP, 4)
	copy(ip, b[ipOff:ipOff+4])
	return Aggregator{FourOctet: fourOctet, ASN: asn, Address: ip, as4: as4}, nil
}

// UnknownAttribute preserves raw bytes for any attribute type code this
// codec does not model; it is constrained only by its flags, never by
// the well-known matrix.
type UnknownAttribute struct {
	Code  AttributeType
	Bytes []byte
}

func (u UnknownAttribute) attributeType() AttributeType { return u.Code }
func (u UnknownAttribute) encodeValue(EncodeContext) ([]byte, error) { return u.Bytes, nil }

// AIGP is PathAttributeValue for the Accumulated IGP Metric (RFC 7311).
// The wire format is a TLV container; only the single Accumulated IGP
// Metric TLV (type 1, 11 bytes long including its 3-byte type and
// length header, carrying an 8-byte metric) is modeled, matching every
// deployed AIGP use.
type AIGP struct{ Metric uint64 }

func (AIGP) attributeType() AttributeType { return AttrAIGP }
func (a AIGP) encodeValue(EncodeContext) ([]byte, error) {
	out := make([]byte, 11)
	out[0] = 1
	out[1] = 0
	out[2] = 11
	v := a.Metric
	for i := 10; i >= 3; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out, nil
}
func decodeAIGP(cur wire.Cursor) (AIGP, error) {
	if cur.Len() != 11 || cur.Bytes()[0] != 1 {
		return AIGP{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "AIGP: expected an 11-byte Accumulated IGP Metric TLV")
	}
	b := cur.Bytes()
	var v uint64
	for _, x := range b[3:11] {
		v = v<<8 | uint64(x)
	}
	return AIGP{Metric: v}, nil
}

// OnlyToCustomer is PathAttributeValue for RFC 9234's OTC attribute.
type OnlyToCustomer struct{ ASN uint32 }

func (OnlyToCustomer) attributeType() AttributeType { return AttrOnlyToCustomer }
func (o OnlyToCustomer) encodeValue(EncodeContext) ([]byte, error) {
	return []byte{byte(o.ASN >> 24), byte(o.ASN >> 16), byte(o.ASN >> 8), byte(o.ASN)}, nil
}
func decodeOnlyToCustomer(cur wire.Cursor) (OnlyToCustomer, error) {
	v, err := decodeU32Attr(cur, "ONLY_TO_CUSTOMER")
	return OnlyToCustomer{ASN: v}, err
}

// OriginatorID is PathAttributeValue for ORIGINATOR_ID (RFC 4456).
type OriginatorID struct{ Value net.IP }

func (OriginatorID) attributeType() AttributeType { return AttrOriginatorID }
func (o OriginatorID) encodeValue(EncodeContext) ([]byte, error) {
	v4 := o.Value.To4()
	if v4 == nil {
		return nil, wire.NewEncodeError(wire.ErrStringTooLong, "ORIGINATOR_ID %s is not IPv4", o.Value)
	}
	return []byte(v4), nil
}
func decodeOriginator(cur wire.Cursor) (OriginatorID, error) {
	if cur.Len() != 4 {
		return OriginatorID{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "ORIGINATOR_ID must be 4 bytes, got %d", cur.Len())
	}
	ip := make(net.IP, 4)
	copy(ip, cur.Bytes())
	return OriginatorID{Value: ip}, nil
}

// ClusterList is PathAttributeValue for CLUSTER_LIST (RFC 4456).
type ClusterList struct{ Clusters []net.IP }

func (ClusterList) attributeType() AttributeType { return AttrClusterList }
func (c ClusterList) encodeValue(EncodeContext) ([]byte, error) {
	out := make([]byte, 0, 4*len(c.Clusters))
	for _, ip := range c.Clusters {
		v4 := ip.To4()
		if v4 == nil {
			return nil, wire.NewEncodeError(wire.ErrStringTooLong, "CLUSTER_LIST entry %s is not IPv4", ip)
		}
		out = append(out, v4...)
	}
	return out, nil
}
func decodeClusterList(cur wire.Cursor) (ClusterList, error) {
	if cur.Len()%4 != 0 {
		return ClusterList{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "CLUSTER_LIST length %d is not a multiple of 4", cur.Len())
	}
	b := cur.Bytes()
	var out []net.IP
	for i := 0; i+4 <= len(b); i += 4 {
		ip := make(net.IP, 4)
		copy(ip, b[i:i+4])
		out = append(out, ip)
	}
	return ClusterList{Clusters: out}, nil
}
