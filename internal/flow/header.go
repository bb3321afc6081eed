// Package flow decodes and encodes NetFlow v9 (RFC 3954) and IPFIX
// (RFC 7011/7012) packets. The two protocols share almost everything
// but the fixed header and a handful of field widths; Header and
// Packet carry a Version tag so callers see one API for both.
package flow

import "github.com/netgauze-go/netgauze/internal/wire"

// Version is the protocol version carried in the first header field.
type Version uint16

const (
	VersionNetflowV9 Version = 9
	VersionIPFIX     Version = 10
)

// HeaderSize is the IPFIX fixed-header length. NetFlow v9's header is
// 20 bytes (one extra 32-bit field); see v9HeaderSize.
const HeaderSize = 16

// Header is the fixed packet header. Field names follow IPFIX
// terminology; Count/SysUpTimeMs only carry a meaningful value for
// NetFlow v9. SourceID is NetFlow v9's Source ID and IPFIX's
// Observation Domain ID — the same wire role under different names.
type Header struct {
	Version Version

	Count       uint16 // v9: record count. unused for IPFIX.
	SysUpTimeMs uint32 // v9: exporter uptime in ms. unused for IPFIX.
	TotalLength uint16 // IPFIX: total packet length including header. unused for v9.

	ExportTime     uint32
	SequenceNumber uint32
	SourceID       uint32
}

func v9HeaderSize() int { return 20 }

func encodeHeader(h Header, bodyLen int) []byte {
	if h.Version == VersionNetflowV9 {
		out := make([]byte, v9HeaderSize())
		out[0] = byte(h.Version >> 8)
		out[1] = byte(h.Version)
		out[2] = byte(h.Count >> 8)
		out[3] = byte(h.Count)
		out[4] = byte(h.SysUpTimeMs >> 24)
		out[5] = byte(h.SysUpTimeMs >> 16)
		out[6] = byte(h.SysUpTimeMs >> 8)
		out[7] = byte(h.SysUpTimeMs)
		out[8] = byte(h.ExportTime >> 24)
		out[9] = byte(h.ExportTime >> 16)
		out[10] = byte(h.ExportTime >> 8)
		out[11] = byte(h.ExportTime)
		out[12] = byte(h.SequenceNumber >> 24)
		out[13] = byte(h.SequenceNumber >> 16)
		out[14] = byte(h.SequenceNumber >> 8)
		out[15] = byte(h.SequenceNumber)
		out[16] = byte(h.SourceID >> 24)
		out[17] = byte(h.SourceID >> 16)
		out[18] = byte(h.SourceID >> 8)
		out[19] = byte(h.SourceID)
		return out
	}

	out := make([]byte, HeaderSize)
	total := uint16(HeaderSize + bodyLen)
	out[0] = byte(h.Version >> 8)
	out[1] = byte(h.Version)
	out[2] = byte(total >> 8)
	out[3] = byte(total)
	out[4] = byte(h.ExportTime >> 24)
	out[5] = byte(h.ExportTime >> 16)
	out[6] = byte(h.ExportTime >> 8)
	out[7] = byte(h.ExportTime)
	out[8] = byte(h.SequenceNumber >> 24)
	out[9] = byte(h.SequenceNumber >> 16)
	out[10] = byte(h.SequenceNumber >> 8)
	out[11] = byte(h.SequenceNumber)
	out[12] = byte(h.SourceID >> 24)
	out[13] = byte(h.SourceID >> 16)
	out[14] = byte(h.SourceID >> 8)
	out[15] = byte(h.SourceID)
	return out
}

func decodeHeader(cur wire.Cursor) (Header, wire.Cursor, error) {
	if err := cur.Require(2); err != nil {
		return Header{}, cur, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "flow header needs at least 2 bytes, have %d", cur.Len())
	}
	versionRaw, _, err := cur.ReadU16()
	if err != nil {
		return Header{}, cur, err
	}
	version := Version(versionRaw)
	if version != VersionNetflowV9 && version != VersionIPFIX {
		return Header{}, cur, wire.NewDecodeError(cur.Offset(), wire.ErrInvalidEnumValue, "unsupported flow version %d", versionRaw)
	}

	size := HeaderSize
	if version == VersionNetflowV9 {
		size = v9HeaderSize()
	}
	if err := cur.Require(size); err != nil {
		return Header{}, cur, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "%s header needs %d bytes, have %d", versionName(version), size, cur.Len())
	}

	headerCur, rest, err := cur.Sub(size)
	if err != nil {
		return Header{}, cur, err
	}
	b := headerCur.Bytes()

	if version == VersionNetflowV9 {
		h := Header{
			Version:        version,
			Count:          uint16(b[2])<<8 | uint16(b[3]),
			SysUpTimeMs:    uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7]),
			ExportTime:     uint32(b[8])<<24 | uint32(b[9])<<16 | uint32(b[10])<<8 | uint32(b[11]),
			SequenceNumber: uint32(b[12])<<24 | uint32(b[13])<<16 | uint32(b[14])<<8 | uint32(b[15]),
			SourceID:       uint32(b[16])<<24 | uint32(b[17])<<16 | uint32(b[18])<<8 | uint32(b[19]),
		}
		return h, rest, nil
	}

	h := Header{
		Version:        version,
		TotalLength:    uint16(b[2])<<8 | uint16(b[3]),
		ExportTime:     uint32(b[4])<<24 | uint32(b[5])<<16 | uint32(b[6])<<8 | uint32(b[7]),
		SequenceNumber: uint32(b[8])<<24 | uint32(b[9])<<16 | uint32(b[10])<<8 | uint32(b[11]),
		SourceID:       uint32(b[12])<<24 | uint32(b[13])<<16 | uint32(b[14])<<8 | uint32(b[15]),
	}
	return h, rest, nil
}

func versionName(v Version) string {
	if v == VersionNetflowV9 {
		return "NetFlow v9"
	}
	return "IPFIX"
}
