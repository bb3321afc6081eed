package bgp

import "github.com/netgauze-go/netgauze/internal/wire"

// BgpLsTLV is one type-length-value entry inside a BGP-LS attribute
// (RFC 7752 §3.3 / RFC 9552). TLV semantics (node/link/prefix
// descriptor sub-TLVs) are not decomposed further; the raw value is
// kept so a collector can re-emit or selectively inspect them.
type BgpLsTLV struct {
	Type  uint16
	Value []byte
}

// BgpLsAttribute is PathAttributeValue for BGP_LS_ATTRIBUTE.
type BgpLsAttribute struct{ TLVs []BgpLsTLV }

func (BgpLsAttribute) attributeType() AttributeType { return AttrBgpLsAttribute }

func (a BgpLsAttribute) encodeValue(EncodeContext) ([]byte, error) {
	var out []byte
	for _, t := range a.TLVs {
		out = append(out, byte(t.Type>>8), byte(t.Type), byte(len(t.Value)>>8), byte(len(t.Value)))
		out = append(out, t.Value...)
	}
	return out, nil
}

func decodeBgpLsAttribute(cur wire.Cursor) (BgpLsAttribute, error) {
	var tlvs []BgpLsTLV
	for cur.Len() > 0 {
		if err := cur.Require(4); err != nil {
			return BgpLsAttribute{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "BGP-LS TLV header needs 4 bytes, have %d", cur.Len())
		}
		typ, next, err := cur.ReadU16()
		if err != nil {
			return BgpLsAttribute{}, err
		}
		length, next2, err := next.ReadU16()
		if err != nil {
			return BgpLsAttribute{}, err
		}
		value, rest, err := next2.ReadBytes(int(length))
		if err != nil {
			return BgpLsAttribute{}, err
		}
		tlvs = append(tlvs, BgpLsTLV{Type: typ, Value: value})
		cur = rest
	}
	return BgpLsAttribute{TLVs: tlvs}, nil
}

// PrefixSidTLV is one TLV inside the BGP Prefix-SID attribute (RFC 8669).
type PrefixSidTLV struct {
	Type  uint8
	Value []byte
}

// PrefixSegmentIdentifier is PathAttributeValue for the Prefix-SID
// attribute.
type PrefixSegmentIdentifier struct{ TLVs []PrefixSidTLV }

func (PrefixSegmentIdentifier) attributeType() AttributeType { return AttrPrefixSID }

func (p PrefixSegmentIdentifier) encodeValue(EncodeContext) ([]byte, error) {
	var out []byte
	for _, t := range p.TLVs {
		out = append(out, t.Type, byte(len(t.Value)>>8), byte(len(t.Value)))
		out = append(out, t.Value...)
	}
	return out, nil
}

func decodePrefixSegmentIdentifier(cur wire.Cursor) (PrefixSegmentIdentifier, error) {
	var tlvs []PrefixSidTLV
	for cur.Len() > 0 {
		if err := cur.Require(3); err != nil {
			return PrefixSegmentIdentifier{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "Prefix-SID TLV header needs 3 bytes, have %d", cur.Len())
		}
		typ, next, err := cur.ReadU8()
		if err != nil {
			return PrefixSegmentIdentifier{}, err
		}
		length, next2, err := next.ReadU16()
		if err != nil {
			return PrefixSegmentIdentifier{}, err
		}
		value, rest, err := next2.ReadBytes(int(length))
		if err != nil {
			return PrefixSegmentIdentifier{}, err
		}
		tlvs = append(tlvs, PrefixSidTLV{Type: typ, Value: value})
		cur = rest
	}
	return PrefixSegmentIdentifier{TLVs: tlvs}, nil
}
