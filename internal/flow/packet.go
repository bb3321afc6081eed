package flow

import "github.com/netgauze-go/netgauze/internal/wire"

// Packet is one NetFlow v9/IPFIX export packet: a fixed Header
// followed by a run of Sets. Flow export rides over UDP, so a Packet
// maps one-to-one onto one datagram; there is no cross-datagram
// framing to track like BGP/BMP's TCP streams.
type Packet struct {
	Header Header
	Sets   []Set
}

// Encode serializes pkt to a newly allocated byte slice.
func Encode(pkt Packet) ([]byte, error) {
	var body []byte
	for _, s := range pkt.Sets {
		enc, err := encodeSet(pkt.Header.Version, s)
		if err != nil {
			return nil, err
		}
		body = append(body, enc...)
	}
	if pkt.Header.Version == VersionNetflowV9 {
		pkt.Header.Count = uint16(countRecords(pkt.Sets))
	}
	return append(encodeHeader(pkt.Header, len(body)), body...), nil
}

func countRecords(sets []Set) int {
	n := 0
	for _, s := range sets {
		switch set := s.(type) {
		case TemplateSet:
			n += len(set.Records)
		case OptionsTemplateSet:
			n += len(set.Records)
		case DataSet:
			n += len(set.Records)
		}
	}
	return n
}

// Decode parses one whole datagram into a Packet. For IPFIX, decoding
// stops at Header.TotalLength and any non-zero trailing byte is
// reported as an error; for NetFlow v9, which carries no total-length field, every
// set in the buffer is consumed.
func Decode(buf []byte) (Packet, error) {
	cur := wire.NewCursor(buf)
	header, cur, err := decodeHeader(cur)
	if err != nil {
		return Packet{}, err
	}

	limit := cur.Len()
	if header.Version == VersionIPFIX {
		limit = int(header.TotalLength) - HeaderSize
		if limit < 0 || limit > cur.Len() {
			return Packet{}, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidLength, "IPFIX total length %d inconsistent with %d available body bytes", header.TotalLength, cur.Len())
		}
	}

	setsCur, trailing, err := cur.Sub(limit)
	if err != nil {
		return Packet{}, err
	}
	if header.Version == VersionIPFIX {
		for _, b := range trailing.Bytes() {
			if b != 0 {
				return Packet{}, wire.NewDecodeError(trailing.Offset(), wire.ErrInvalidPaddingValue, "non-zero trailing byte 0x%02x after IPFIX total length", b)
			}
		}
	}

	var sets []Set
	for setsCur.Len() > 0 {
		if setsCur.Len() < 4 {
			if err := drainPadding(setsCur); err != nil {
				return Packet{}, err
			}
			break
		}
		var s Set
		s, setsCur, err = decodeSet(header.Version, setsCur)
		if err != nil {
			return Packet{}, err
		}
		sets = append(sets, s)
	}

	return Packet{Header: header, Sets: sets}, nil
}
