package bgp

import "github.com/netgauze-go/netgauze/internal/wire"

// OpenMessage is the BGP OPEN message body (RFC 4271 §4.2).
type OpenMessage struct {
	Version      uint8
	MyASN        uint16 // the 2-octet field on the wire; full 4-octet ASN is negotiated via FourOctetASN capability
	HoldTime     uint16
	BGPIdentifier uint32
	Capabilities []Capability
}

func (OpenMessage) MessageType() MessageType { return MessageTypeOpen }

func (m OpenMessage) bodyLen(ctx EncodeContext) int {
	return 10 + m.paramsLen()
}

func (m OpenMessage) paramsLen() int {
	total := 0
	for _, c := range m.Capabilities {
		total += len(encodeCapability(c)) // capability TLV, its 2-byte header included
	}
	if total == 0 {
		return 0
	}
	// one optional parameter of type 2 ("Capabilities") wrapping all of them
	return 2 + total
}

func (m OpenMessage) encodeBody(ctx EncodeContext) ([]byte, error) {
	capsLen := 0
	capBytes := make([]byte, 0, 32)
	for _, c := range m.Capabilities {
		enc := encodeCapability(c)
		capBytes = append(capBytes, enc...)
		capsLen += len(enc)
	}

	var params []byte
	if capsLen > 0 {
		params = make([]byte, 2+capsLen)
		params[0] = 2 // optional parameter type: Capabilities
		params[1] = byte(capsLen)
		copy(params[2:], capBytes)
	}

	out := make([]byte, 10+len(params))
	out[0] = m.Version
	out[1] = byte(m.MyASN >> 8)
	out[2] = byte(m.MyASN)
	out[3] = byte(m.HoldTime >> 8)
	out[4] = byte(m.HoldTime)
	out[5] = byte(m.BGPIdentifier >> 24)
	out[6] = byte(m.BGPIdentifier >> 16)
	out[7] = byte(m.BGPIdentifier >> 8)
	out[8] = byte(m.BGPIdentifier)
	out[9] = byte(len(params))
	copy(out[10:], params)
	return out, nil
}

func decodeOpenBody(cur wire.Cursor) (OpenMessage, error) {
	if err := cur.Require(10); err != nil {
		return OpenMessage{}, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "OPEN body needs 10 bytes, have %d", cur.Len())
	}
	version, cur, err := cur.ReadU8()
	if err != nil {
		return OpenMessage{}, err
	}
	myASN, cur, err := cur.ReadU16()
	if err != nil {
		return OpenMessage{}, err
	}
	holdTime, cur, err := cur.ReadU16()
	if err != nil {
		return OpenMessage{}, err
	}
	bgpID, cur, err := cur.ReadU32()
	if err != nil {
		return OpenMessage{}, err
	}
	paramsLen, cur, err := cur.ReadU8()
	if err != nil {
		return OpenMessage{}, err
	}

	paramsCur, _, err := cur.Sub(int(paramsLen))
	if err != nil {
		return OpenMessage{}, err
	}

	var caps []Capability
	for paramsCur.Len() > 0 {
		if err := paramsCur.Require(2); err != nil {
			return OpenMessage{}, wire.NewDecodeError(paramsCur.Offset(), wire.ErrTruncated, "optional parameter header needs 2 bytes, have %d", paramsCur.Len())
		}
		paramType, next, err := paramsCur.ReadU8()
		if err != nil {
			return OpenMessage{}, err
		}
		paramLen, next, err := next.ReadU8()
		if err != nil {
			return OpenMessage{}, err
		}
		valueCur, rest, err := next.Sub(int(paramLen))
		if err != nil {
			return OpenMessage{}, err
		}
		if paramType == 2 { // Capabilities
			inner := valueCur
			for inner.Len() > 0 {
				var cap Capability
				cap, inner, err = decodeCapability(inner)
				if err != nil {
					return OpenMessage{}, err
				}
				caps = append(caps, cap)
			}
		}
		paramsCur = rest
	}

	return OpenMessage{
		Version:       version,
		MyASN:         myASN,
		HoldTime:      holdTime,
		BGPIdentifier: bgpID,
		Capabilities:  caps,
	}, nil
}

// HasCapability reports whether the OPEN advertises a capability of
// the given code, and if so the first matching instance.
func (m OpenMessage) HasCapability(code CapabilityCode) (Capability, bool) {
	for _, c := range m.Capabilities {
		if c.capabilityCode() == code {
			return c, true
		}
	}
	return nil, false
}

// SupportsASN4 reports whether the OPEN advertised the 4-octet ASN capability.
func (m OpenMessage) SupportsASN4() bool {
	_, ok := m.HasCapability(CapFourOctetASN)
	return ok
}
