package bgp

import (
	"fmt"

	"github.com/netgauze-go/netgauze/internal/wire"
)

// AttributeType is the IANA path attribute type code.
type AttributeType uint8

const (
	AttrOrigin               AttributeType = 1
	AttrASPath               AttributeType = 2
	AttrNextHop              AttributeType = 3
	AttrMultiExitDisc        AttributeType = 4
	AttrLocalPref            AttributeType = 5
	AttrAtomicAggregate      AttributeType = 6
	AttrAggregator           AttributeType = 7
	AttrCommunities          AttributeType = 8
	AttrOriginatorID         AttributeType = 9
	AttrClusterList          AttributeType = 10
	AttrMPReachNLRI          AttributeType = 14
	AttrMPUnreachNLRI        AttributeType = 15
	AttrExtendedCommunities  AttributeType = 16
	AttrAS4Path              AttributeType = 17
	AttrAS4Aggregator        AttributeType = 18
	AttrPrefixSID            AttributeType = 40
	AttrExtendedIpv6Communities AttributeType = 25
	AttrAIGP                 AttributeType = 26
	AttrLargeCommunities     AttributeType = 32
	AttrOnlyToCustomer       AttributeType = 35
	AttrBgpLsAttribute       AttributeType = 29
)

func (t AttributeType) String() string {
	switch t {
	case AttrOrigin:
		return "ORIGIN"
	case AttrASPath:
		return "AS_PATH"
	case AttrNextHop:
		return "NEXT_HOP"
	case AttrMultiExitDisc:
		return "MULTI_EXIT_DISC"
	case AttrLocalPref:
		return "LOCAL_PREF"
	case AttrAtomicAggregate:
		return "ATOMIC_AGGREGATE"
	case AttrAggregator:
		return "AGGREGATOR"
	case AttrCommunities:
		return "COMMUNITIES"
	case AttrOriginatorID:
		return "ORIGINATOR_ID"
	case AttrClusterList:
		return "CLUSTER_LIST"
	case AttrMPReachNLRI:
		return "MP_REACH_NLRI"
	case AttrMPUnreachNLRI:
		return "MP_UNREACH_NLRI"
	case AttrExtendedCommunities:
		return "EXTENDED_COMMUNITIES"
	case AttrAS4Path:
		return "AS4_PATH"
	case AttrAS4Aggregator:
		return "AS4_AGGREGATOR"
	case AttrPrefixSID:
		return "PREFIX_SID"
	case AttrExtendedIpv6Communities:
		return "EXTENDED_COMMUNITIES_IPV6"
	case AttrAIGP:
		return "AIGP"
	case AttrLargeCommunities:
		return "LARGE_COMMUNITIES"
	case AttrOnlyToCustomer:
		return "ONLY_TO_CUSTOMER"
	case AttrBgpLsAttribute:
		return "BGP_LS_ATTRIBUTE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

const (
	flagOptional       = 0x80
	flagTransitive     = 0x40
	flagPartial        = 0x20
	flagExtendedLength = 0x10
)

// AttributeFlags are the four flag bits carried by every path attribute.
type AttributeFlags struct {
	Optional       bool
	Transitive     bool
	Partial        bool
	ExtendedLength bool
}

func decodeFlags(b uint8) AttributeFlags {
	return AttributeFlags{
		Optional:       b&flagOptional != 0,
		Transitive:     b&flagTransitive != 0,
		Partial:        b&flagPartial != 0,
		ExtendedLength: b&flagExtendedLength != 0,
	}
}

func (f AttributeFlags) encode() uint8 {
	var b uint8
	if f.Optional {
		b |= flagOptional
	}
	if f.Transitive {
		b |= flagTransitive
	}
	if f.Partial {
		b |= flagPartial
	}
	if f.ExtendedLength {
		b |= flagExtendedLength
	}
	return b
}

// requiredFlags is the well-known flag matrix from spec §3/§4.1. Only
// Optional and Transitive are constrained per RFC 4271/4760/6793/etc;
// Partial is meaningful only on optional-transitive attributes and is
// never fixed by the matrix (a reflector may set it on any of those).
type requiredFlags struct {
	optional   bool
	transitive bool
}

var wellKnownFlags = map[AttributeType]requiredFlags{
	AttrOrigin:                  {optional: false, transitive: true},
	AttrASPath:                  {optional: false, transitive: true},
	AttrNextHop:                 {optional: false, transitive: true},
	AttrMultiExitDisc:           {optional: true, transitive: false},
	AttrLocalPref:               {optional: false, transitive: true},
	AttrAtomicAggregate:         {optional: false, transitive: true},
	AttrAggregator:              {optional: true, transitive: true},
	AttrCommunities:             {optional: true, transitive: true},
	AttrOriginatorID:            {optional: true, transitive: false},
	AttrClusterList:             {optional: true, transitive: false},
	AttrMPReachNLRI:             {optional: true, transitive: false},
	AttrMPUnreachNLRI:           {optional: true, transitive: false},
	AttrExtendedCommunities:     {optional: true, transitive: true},
	AttrAS4Path:                 {optional: true, transitive: true},
	AttrAS4Aggregator:           {optional: true, transitive: true},
	AttrExtendedIpv6Communities: {optional: true, transitive: true},
	AttrAIGP:                    {optional: true, transitive: false},
	AttrLargeCommunities:        {optional: true, transitive: true},
	AttrOnlyToCustomer:          {optional: true, transitive: true},
	AttrBgpLsAttribute:          {optional: true, transitive: false},
	AttrPrefixSID:               {optional: true, transitive: true},
}

// isKnown reports whether code has an entry in the well-known flag matrix.
func isKnown(code AttributeType) bool {
	_, ok := wellKnownFlags[code]
	return ok
}

// ValidateFlags enforces the well-known flag matrix for code. Unknown
// attributes are constrained only by their own flags (any combination
// is accepted), per RFC 4271 §5: an implementation that does not
// recognize an attribute treats it as the flags say.
func ValidateFlags(code AttributeType, flags AttributeFlags) error {
	req, known := wellKnownFlags[code]
	if !known {
		return nil
	}
	if flags.Optional != req.optional {
		return wire.NewDecodeError(0, wire.ErrInvalidFlagCombination, "%s: InvalidOptionalFlagValue: optional=%v, want %v", code, flags.Optional, req.optional)
	}
	if flags.Transitive != req.transitive {
		return wire.NewDecodeError(0, wire.ErrInvalidFlagCombination, "%s: InvalidTransitiveFlagValue: transitive=%v, want %v", code, flags.Transitive, req.transitive)
	}
	if flags.Partial && !flags.Optional {
		return wire.NewDecodeError(0, wire.ErrInvalidFlagCombination, "%s: InvalidPartialFlagValue: partial set on a well-known attribute", code)
	}
	return nil
}

// PathAttributeValue is the tagged union of attribute payloads this
// codec understands. UnknownAttribute is the structural fallback for
// every other type code.
type PathAttributeValue interface {
	attributeType() AttributeType
	encodeValue(ctx EncodeContext) ([]byte, error)
}

// PathAttribute pairs wire flags with a decoded value. Construction
// enforces the flag matrix for well-known attribute kinds.
type PathAttribute struct {
	Flags AttributeFlags
	Code  AttributeType
	Value PathAttributeValue
}

// NewPathAttribute validates flags against code's well-known matrix
// (when code is known) before constructing the attribute.
func NewPathAttribute(flags AttributeFlags, code AttributeType, value PathAttributeValue) (PathAttribute, error) {
	if err := ValidateFlags(code, flags); err != nil {
		return PathAttribute{}, err
	}
	return PathAttribute{Flags: flags, Code: code, Value: value}, nil
}

func (a PathAttribute) sizeOf(ctx EncodeContext) int {
	valueLen := len(mustEncodeValue(a.Value, ctx))
	headerLen := 2
	if valueLen > 255 || a.Flags.ExtendedLength {
		headerLen += 2
	} else {
		headerLen += 1
	}
	return headerLen + valueLen
}

func mustEncodeValue(v PathAttributeValue, ctx EncodeContext) []byte {
	b, err := v.encodeValue(ctx)
	if err != nil {
		return nil
	}
	return b
}

func encodeAttribute(a PathAttribute, ctx EncodeContext) ([]byte, error) {
	value, err := a.Value.encodeValue(ctx)
	if err != nil {
		return nil, err
	}
	wide := a.Flags.ExtendedLength || len(value) > 255
	flags := a.Flags
	flags.ExtendedLength = wide

	var out []byte
	if wide {
		if len(value) > 65535 {
			return nil, wire.NewEncodeError(wire.ErrMessageTooLarge, "attribute %s value length %d exceeds 65535", a.Code, len(value))
		}
		out = make([]byte, 4+len(value))
		out[0] = flags.encode()
		out[1] = byte(a.Code)
		out[2] = byte(len(value) >> 8)
		out[3] = byte(len(value))
		copy(out[4:], value)
	} else {
		out = make([]byte, 3+len(value))
		out[0] = flags.encode()
		out[1] = byte(a.Code)
		out[2] = byte(len(value))
		copy(out[3:], value)
	}
	return out, nil
}

// decodeAttribute decodes one path attribute TLV, dispatching to the
// value decoder for Code and preserving flags verbatim (including a
// non-canonical ExtendedLength choice, per the original implementation).
func decodeAttribute(cur wire.Cursor, ctx DecodeContext) (PathAttribute, wire.Cursor, error) {
	if err := cur.Require(2); err != nil {
		return PathAttribute{}, cur, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "attribute header needs 2 bytes, have %d", cur.Len())
	}
	flagByte, cur, err := cur.ReadU8()
	if err != nil {
		return PathAttribute{}, cur, err
	}
	codeByte, cur, err := cur.ReadU8()
	if err != nil {
		return PathAttribute{}, cur, err
	}
	flags := decodeFlags(flagByte)
	code := AttributeType(codeByte)

	var length int
	if flags.ExtendedLength {
		l, next, err := cur.ReadU16()
		if err != nil {
			return PathAttribute{}, cur, err
		}
		length = int(l)
		cur = next
	} else {
		l, next, err := cur.ReadU8()
		if err != nil {
			return PathAttribute{}, cur, err
		}
		length = int(l)
		cur = next
	}

	valueCur, rest, err := cur.Sub(length)
	if err != nil {
		return PathAttribute{}, cur, err
	}

	if isKnown(code) {
		if err := ValidateFlags(code, flags); err != nil {
			de := err.(*wire.DecodeError)
			de.Offset = valueCur.Offset()
			return PathAttribute{}, cur, de
		}
	}

	value, err := decodeAttributeValue(code, valueCur, ctx)
	if err != nil {
		return PathAttribute{}, cur, err
	}

	return PathAttribute{Flags: flags, Code: code, Value: value}, rest, nil
}

func decodeAttributeValue(code AttributeType, cur wire.Cursor, ctx DecodeContext) (PathAttributeValue, error) {
	switch code {
	case AttrOrigin:
		return decodeOrigin(cur)
	case AttrASPath:
		return decodeASPath(cur, ctx.ASN4, false)
	case AttrAS4Path:
		return decodeASPath(cur, true, true)
	case AttrNextHop:
		return decodeNextHop(cur)
	case AttrMultiExitDisc:
		return decodeMED(cur)
	case AttrLocalPref:
		return decodeLocalPref(cur)
	case AttrAtomicAggregate:
		return decodeAtomicAggregate(cur)
	case AttrAggregator:
		return decodeAggregator(cur, ctx.ASN4, false)
	case AttrAS4Aggregator:
		return decodeAggregator(cur, true, true)
	case AttrCommunities:
		return decodeCommunities(cur)
	case AttrExtendedCommunities:
		return decodeExtendedCommunities(cur)
	case AttrExtendedIpv6Communities:
		return decodeExtendedIpv6Communities(cur)
	case AttrLargeCommunities:
		return decodeLargeCommunities(cur)
	case AttrOriginatorID:
		return decodeOriginator(cur)
	case AttrClusterList:
		return decodeClusterList(cur)
	case AttrMPReachNLRI:
		return decodeMPReach(cur, ctx)
	case AttrMPUnreachNLRI:
		return decodeMPUnreach(cur, ctx)
	case AttrAIGP:
		return decodeAIGP(cur)
	case AttrOnlyToCustomer:
		return decodeOnlyToCustomer(cur)
	case AttrBgpLsAttribute:
		return decodeBgpLsAttribute(cur)
	case AttrPrefixSID:
		return decodePrefixSegmentIdentifier(cur)
	default:
		raw, _, err := cur.ReadBytes(cur.Len())
		if err != nil {
			return nil, err
		}
		return UnknownAttribute{Code: code, Bytes: raw}, nil
	}
}
