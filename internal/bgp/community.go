package bgp

import (
	"github.com/netgauze-go/netgauze/internal/wire"
)

// Community is a 4-octet standard community (RFC 1997).
type Community uint32

// Communities is PathAttributeValue for COMMUNITY.
type Communities struct{ Values []Community }

func (Communities) attributeType() AttributeType { return AttrCommunities }
func (c Communities) encodeValue(EncodeContext) ([]byte, error) {
	out := make([]byte, 4*len(c.Values))
	for i, v := range c.Values {
		out[4*i] = byte(v >> 24)
		out[4*i+1] = byte(v >> 16)
		out[4*i+2] = byte(v >> 8)
		out[4*i+3] = byte(v)
	}
	return out, nil
}
func decodeCommunities(cur wire.Cursor) (Communities, error) {
	if cur.Len()%4 != 0 {
		return Communities{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "COMMUNITY length %d is not a multiple of 4", cur.Len())
	}
	b := cur.Bytes()
	var out []Community
	for i := 0; i+4 <= len(b); i += 4 {
		out = append(out, Community(uint32(b[i])<<24|uint32(b[i+1])<<16|uint32(b[i+2])<<8|uint32(b[i+3])))
	}
	return Communities{Values: out}, nil
}

// ExtendedCommunity is one raw 8-octet extended community (RFC 4360).
type ExtendedCommunity [8]byte

// ExtendedCommunities is PathAttributeValue for EXTENDED_COMMUNITIES.
type ExtendedCommunities struct{ Values []ExtendedCommunity }

func (ExtendedCommunities) attributeType() AttributeType { return AttrExtendedCommunities }
func (c ExtendedCommunities) encodeValue(EncodeContext) ([]byte, error) {
	out := make([]byte, 8*len(c.Values))
	for i, v := range c.Values {
		copy(out[8*i:], v[:])
	}
	return out, nil
}
func decodeExtendedCommunities(cur wire.Cursor) (ExtendedCommunities, error) {
	if cur.Len()%8 != 0 {
		return ExtendedCommunities{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "EXTENDED_COMMUNITIES length %d is not a multiple of 8", cur.Len())
	}
	b := cur.Bytes()
	var out []ExtendedCommunity
	for i := 0; i+8 <= len(b); i += 8 {
		var ec ExtendedCommunity
		copy(ec[:], b[i:i+8])
		out = append(out, ec)
	}
	return ExtendedCommunities{Values: out}, nil
}

// ExtendedIpv6Community is a 20-octet IPv6-address-specific extended
// community (RFC 5701): type(1) + subtype(1) + 16-byte IPv6 + 2-byte
// local administrator.
type ExtendedIpv6Community [20]byte

// ExtendedIpv6Communities is PathAttributeValue for EXTENDED_COMMUNITIES_IPV6.
type ExtendedIpv6Communities struct{ Values []ExtendedIpv6Community }

func (ExtendedIpv6Communities) attributeType() AttributeType { return AttrExtendedIpv6Communities }
func (c ExtendedIpv6Communities) encodeValue(EncodeContext) ([]byte, error) {
	out := make([]byte, 20*len(c.Values))
	for i, v := range c.Values {
		copy(out[20*i:], v[:])
	}
	return out, nil
}
func decodeExtendedIpv6Communities(cur wire.Cursor) (ExtendedIpv6Communities, error) {
	if cur.Len()%20 != 0 {
		return ExtendedIpv6Communities{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "EXTENDED_COMMUNITIES_IPV6 length %d is not a multiple of 20", cur.Len())
	}
	b := cur.Bytes()
	var out []ExtendedIpv6Community
	for i := 0; i+20 <= len(b); i += 20 {
		var ec ExtendedIpv6Community
		copy(ec[:], b[i:i+20])
		out = append(out, ec)
	}
	return ExtendedIpv6Communities{Values: out}, nil
}

// LargeCommunity is a 12-octet large community (RFC 8092).
type LargeCommunity struct {
	GlobalAdmin uint32
	LocalData1  uint32
	LocalData2  uint32
}

// LargeCommunities is PathAttributeValue for LARGE_COMMUNITIES.
type LargeCommunities struct{ Values []LargeCommunity }

func (LargeCommunities) attributeType() AttributeType { return AttrLargeCommunities }
func (c LargeCommunities) encodeValue(EncodeContext) ([]byte, error) {
	out := make([]byte, 12*len(c.Values))
	for i, v := range c.Values {
		off := 12 * i
		out[off] = byte(v.GlobalAdmin >> 24)
		out[off+1] = byte(v.GlobalAdmin >> 16)
		out[off+2] = byte(v.GlobalAdmin >> 8)
		out[off+3] = byte(v.GlobalAdmin)
		out[off+4] = byte(v.LocalData1 >> 24)
		out[off+5] = byte(v.LocalData1 >> 16)
		out[off+6] = byte(v.LocalData1 >> 8)
		out[off+7] = byte(v.LocalData1)
		out[off+8] = byte(v.LocalData2 >> 24)
		out[off+9] = byte(v.LocalData2 >> 16)
		out[off+10] = byte(v.LocalData2 >> 8)
		out[off+11] = byte(v.LocalData2)
	}
	return out, nil
}
func decodeLargeCommunities(cur wire.Cursor) (LargeCommunities, error) {
	if cur.Len()%12 != 0 {
		return LargeCommunities{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "LARGE_COMMUNITIES length %d is not a multiple of 12", cur.Len())
	}
	b := cur.Bytes()
	var out []LargeCommunity
	for i := 0; i+12 <= len(b); i += 12 {
		out = append(out, LargeCommunity{
			GlobalAdmin: uint32(b[i])<<24 | uint32(b[i+1])<<16 | uint32(b[i+2])<<8 | uint32(b[i+3]),
			LocalData1:  uint32(b[i+4])<<24 | uint32(b[i+5])<<16 | uint32(b[i+6])<<8 | uint32(b[i+7]),
			LocalData2:  uint32(b[i+8])<<24 | uint32(b[i+9])<<16 | uint32(b[i+10])<<8 | uint32(b[i+11]),
		})
	}
	return LargeCommunities{Values: out}, nil
}
