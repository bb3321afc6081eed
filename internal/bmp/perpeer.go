package bmp

import (
	"net"

	"github.com/netgauze-go/netgauze/internal/wire"
)

// PeerType is the BMP peer type code (RFC 7854 §4.2, RFC 9069 for LocRIB).
type PeerType uint8

const (
	PeerTypeGlobal PeerType = 0
	PeerTypeRD     PeerType = 1
	PeerTypeLocal  PeerType = 2
	PeerTypeLocRIB PeerType = 3
)

// PerPeerHeaderSize is peer_type(1)+flags(1)+distinguisher(8)+addr(16)+AS(4)+BGPID(4)+ts_sec(4)+ts_usec(4).
const PerPeerHeaderSize = 42

const (
	peerFlagIPv6     = 0x80
	peerFlagPostPolicy = 0x40
	peerFlagAsPath   = 0x20 // legacy 2/4-octet ASN hint, rarely used
	peerFlagAdjRibOut = 0x10
)

// PerPeerHeader carries the per-peer metadata attached to every BMP
// message except Initiation and Termination.
type PerPeerHeader struct {
	Type           PeerType
	IsIPv6         bool
	IsPostPolicy   bool
	IsAdjRIBOut    bool
	Distinguisher  [8]byte
	Address        net.IP
	PeerASN        uint32
	PeerBGPID      uint32
	TimestampSec   uint32
	TimestampMicro uint32
}

func encodePerPeerHeader(h PerPeerHeader) []byte {
	out := make([]byte, PerPeerHeaderSize)
	out[0] = byte(h.Type)
	var flags uint8
	if h.IsIPv6 {
		flags |= peerFlagIPv6
	}
	if h.IsPostPolicy {
		flags |= peerFlagPostPolicy
	}
	if h.IsAdjRIBOut {
		flags |= peerFlagAdjRibOut
	}
	out[1] = flags
	copy(out[2:10], h.Distinguisher[:])
	if h.IsIPv6 {
		copy(out[10:26], h.Address.To16())
	} else {
		copy(out[22:26], h.Address.To4())
	}
	out[26] = byte(h.PeerASN >> 24)
	out[27] = byte(h.PeerASN >> 16)
	out[28] = byte(h.PeerASN >> 8)
	out[29] = byte(h.PeerASN)
	out[30] = byte(h.PeerBGPID >> 24)
	out[31] = byte(h.PeerBGPID >> 16)
	out[32] = byte(h.PeerBGPID >> 8)
	out[33] = byte(h.PeerBGPID)
	out[34] = byte(h.TimestampSec >> 24)
	out[35] = byte(h.TimestampSec >> 16)
	out[36] = byte(h.TimestampSec >> 8)
	out[37] = byte(h.TimestampSec)
	out[38] = byte(h.TimestampMicro >> 24)
	out[39] = byte(h.TimestampMicro >> 16)
	out[40] = byte(h.TimestampMicro >> 8)
	out[41] = byte(h.TimestampMicro)
	return out
}

func decodePerPeerHeader(cur wire.Cursor) (PerPeerHeader, wire.Cursor, error) {
	body, rest, err := cur.Sub(PerPeerHeaderSize)
	if err != nil {
		return PerPeerHeader{}, cur, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "per-peer header needs %d bytes, have %d", PerPeerHeaderSize, cur.Len())
	}
	b := body.Bytes()
	flags := b[1]
	isV6 := flags&peerFlagIPv6 != 0

	var addr net.IP
	if isV6 {
		addr = make(net.IP, 16)
		copy(addr, b[10:26])
	} else {
		addr = make(net.IP, 4)
		copy(addr, b[22:26])
	}

	var dist [8]byte
	copy(dist[:], b[2:10])

	h := PerPeerHeader{
		Type:           PeerType(b[0]),
		IsIPv6:         isV6,
		IsPostPolicy:   flags&peerFlagPostPolicy != 0,
		IsAdjRIBOut:    flags&peerFlagAdjRibOut != 0,
		Distinguisher:  dist,
		Address:        addr,
		PeerASN:        uint32(b[26])<<24 | uint32(b[27])<<16 | uint32(b[28])<<8 | uint32(b[29]),
		PeerBGPID:      uint32(b[30])<<24 | uint32(b[31])<<16 | uint32(b[32])<<8 | uint32(b[33]),
		TimestampSec:   uint32(b[34])<<24 | uint32(b[35])<<16 | uint32(b[36])<<8 | uint32(b[37]),
		TimestampMicro: uint32(b[38])<<24 | uint32(b[39])<<16 | uint32(b[40])<<8 | uint32(b[41]),
	}
	return h, rest, nil
}
