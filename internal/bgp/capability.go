package bgp

import (
	"encoding/hex"

	"github.com/netgauze-go/netgauze/internal/wire"
)

// CapabilityCode is an IANA BGP Capability code (RFC 5492).
type CapabilityCode uint8

const (
	CapMultiprotocolExtensions CapabilityCode = 1
	CapRouteRefresh            CapabilityCode = 2
	CapFourOctetASN            CapabilityCode = 65
	CapEnhancedRouteRefresh    CapabilityCode = 70
	CapExtendedMessage         CapabilityCode = 6
)

// Capability is the tagged union of BGP OPEN capabilities this codec
// understands; everything else round-trips as Unknown.
type Capability interface {
	capabilityCode() CapabilityCode
	encodeValue() []byte
}

// MultiprotocolExtensions is capability code 1 (RFC 4760): announces
// support for an additional (AFI, SAFI) pair beyond plain IPv4 unicast.
type MultiprotocolExtensions struct {
	AFI  AFI
	SAFI SAFI
}

func (MultiprotocolExtensions) capabilityCode() CapabilityCode { return CapMultiprotocolExtensions }
func (c MultiprotocolExtensions) encodeValue() []byte {
	return []byte{byte(c.AFI >> 8), byte(c.AFI), 0, byte(c.SAFI)}
}

// FourOctetASN is capability code 65 (RFC 6793).
type FourOctetASN struct {
	ASN ASN
}

func (FourOctetASN) capabilityCode() CapabilityCode { return CapFourOctetASN }
func (c FourOctetASN) encodeValue() []byte {
	return []byte{byte(c.ASN >> 24), byte(c.ASN >> 16), byte(c.ASN >> 8), byte(c.ASN)}
}

// RouteRefreshCapability is capability code 2 (RFC 2918), no value.
type RouteRefreshCapability struct{}

func (RouteRefreshCapability) capabilityCode() CapabilityCode { return CapRouteRefresh }
func (RouteRefreshCapability) encodeValue() []byte            { return nil }

// UnknownCapability preserves raw bytes for any capability code this
// codec does not otherwise model, so a collector can re-emit it.
type UnknownCapability struct {
	Code  CapabilityCode
	Bytes []byte
}

func (c UnknownCapability) capabilityCode() CapabilityCode { return c.Code }
func (c UnknownCapability) encodeValue() []byte             { return c.Bytes }

func encodeCapability(c Capability) []byte {
	v := c.encodeValue()
	out := make([]byte, 2+len(v))
	out[0] = byte(c.capabilityCode())
	out[1] = byte(len(v))
	copy(out[2:], v)
	return out
}

func decodeCapability(cur wire.Cursor) (Capability, wire.Cursor, error) {
	if err := cur.Require(2); err != nil {
		return nil, cur, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "capability header needs 2 bytes, have %d", cur.Len())
	}
	codeByte, cur, err := cur.ReadU8()
	if err != nil {
		return nil, cur, err
	}
	length, cur, err := cur.ReadU8()
	if err != nil {
		return nil, cur, err
	}
	valueCur, rest, err := cur.Sub(int(length))
	if err != nil {
		return nil, cur, err
	}
	value := valueCur.Bytes()
	code := CapabilityCode(codeByte)

	switch code {
	case CapMultiprotocolExtensions:
		if len(value) != 4 {
			return UnknownCapability{Code: code, Bytes: append([]byte(nil), value...)}, rest, nil
		}
		return MultiprotocolExtensions{
			AFI:  AFI(uint16(value[0])<<8 | uint16(value[1])),
			SAFI: SAFI(value[3]),
		}, rest, nil
	case CapFourOctetASN:
		if len(value) != 4 {
			return UnknownCapability{Code: code, Bytes: append([]byte(nil), value...)}, rest, nil
		}
		asn := ASN(uint32(value[0])<<24 | uint32(value[1])<<16 | uint32(value[2])<<8 | uint32(value[3]))
		return FourOctetASN{ASN: asn}, rest, nil
	case CapRouteRefresh:
		return RouteRefreshCapability{}, rest, nil
	default:
		return UnknownCapability{Code: code, Bytes: append([]byte(nil), value...)}, rest, nil
	}
}

// hexDump renders b as lowercase hex; no code in this module calls it.
func hexDump(b []byte) string { return hex.EncodeToString(b) }
