package bmp

import (
	"bytes"
	"net"
	"testing"

	"github.com/netgauze-go/netgauze/internal/bgp"
)

func testPeerHeader() PerPeerHeader {
	return PerPeerHeader{
		Type:         PeerTypeGlobal,
		IsIPv6:       false,
		Address:      net.ParseIP("192.0.2.1").To4(),
		PeerASN:      65001,
		PeerBGPID:    0xC0000201,
		TimestampSec: 1700000000,
	}
}

func TestPeerUpRoundTrip(t *testing.T) {
	open, err := bgp.Encode(bgp.OpenMessage{Version: 4, MyASN: 65001, HoldTime: 90, BGPIdentifier: 0xC0000201}, bgp.EncodeContext{})
	if err != nil {
		t.Fatalf("encode open: %v", err)
	}
	msg := PeerUpNotificationMessage{
		Peer:            testPeerHeader(),
		LocalAddress:    net.ParseIP("192.0.2.2").To4(),
		LocalPort:       179,
		RemotePort:      54321,
		SentOpenMsg:     open,
		ReceivedOpenMsg: open,
	}
	raw, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	tail, decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tail) != 0 {
		t.Fatalf("expected no tail, got %d bytes", len(tail))
	}
	got, ok := decoded.(PeerUpNotificationMessage)
	if !ok {
		t.Fatalf("expected PeerUpNotificationMessage, got %T", decoded)
	}
	if got.RemotePort != 54321 || !bytes.Equal(got.SentOpenMsg, open) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestRouteMonitoringV4RequiresBgpUpdatePduFirst(t *testing.T) {
	msg := RouteMonitoringV4Message{
		Peer: testPeerHeader(),
		TLVs: []V4TLV{{Code: TLVVrfTableName, VrfName: "default"}},
	}
	if _, err := Encode(msg); err == nil {
		t.Fatal("expected error when TLV 0 is not BgpUpdatePdu")
	}
}

func TestRouteMonitoringV4GroupTlvRequiresMSB(t *testing.T) {
	upd := bgp.UpdateMessage{}
	raw, err := bgp.Encode(upd, bgp.EncodeContext{})
	if err != nil {
		t.Fatalf("encode update: %v", err)
	}

	peer := encodePerPeerHeader(testPeerHeader())
	body := append([]byte{}, peer...)
	body = append(body, byte(TLVBgpUpdatePdu>>8), byte(TLVBgpUpdatePdu), 0, 0, byte(len(raw)>>8), byte(len(raw)))
	body = append(body, raw...)
	// GroupTlv with MSB clear: invalid.
	body = append(body, byte(TLVGroup>>8), byte(TLVGroup), 0, 0, 0, 2, 0, 7)

	total := CommonHeaderSize + len(body)
	framed := make([]byte, total)
	framed[0] = byte(VersionV4)
	framed[1] = byte(total >> 24)
	framed[2] = byte(total >> 16)
	framed[3] = byte(total >> 8)
	framed[4] = byte(total)
	framed[5] = byte(MsgRouteMonitoring)
	copy(framed[CommonHeaderSize:], body)

	if _, _, err := Decode(framed); err == nil {
		t.Fatal("expected BadGroupTlvIndex error")
	}
}

func TestPeerDownRoundTrip(t *testing.T) {
	msg := PeerDownNotificationMessage{Peer: testPeerHeader(), Reason: PeerDownRemoteNoNotify}
	raw, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(PeerDownNotificationMessage)
	if !ok || got.Reason != PeerDownRemoteNoNotify {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestInitiationRoundTrip(t *testing.T) {
	msg := InitiationMessage{Information: []InfoTLV{{Type: 0, Value: []byte("netgauze test")}}}
	raw, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(InitiationMessage)
	if !ok || len(got.Information) != 1 || string(got.Information[0].Value) != "netgauze test" {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}

func TestUnsupportedVersionRejected(t *testing.T) {
	buf := []byte{9, 0, 0, 0, 6, byte(MsgInitiation)}
	if _, _, err := Decode(buf); err == nil {
		t.Fatal("expected error for unsupported BMP version")
	}
}
