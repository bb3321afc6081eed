package bgp

import (
	"bytes"
	"testing"

	"github.com/netgauze-go/netgauze/internal/wire"
)

func TestKeepAliveRoundTrip(t *testing.T) {
	raw, err := Encode(KeepAliveMessage{}, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(raw) != HeaderSize {
		t.Fatalf("expected %d bytes, got %d", HeaderSize, len(raw))
	}
	tail, msg, err := Decode(raw, DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tail) != 0 {
		t.Fatalf("expected no tail, got %d bytes", len(tail))
	}
	if _, ok := msg.(KeepAliveMessage); !ok {
		t.Fatalf("expected KeepAliveMessage, got %T", msg)
	}
}

func TestDecodeRejectsBadMarker(t *testing.T) {
	raw, err := Encode(KeepAliveMessage{}, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw[0] = 0x00
	_, _, err = Decode(raw, DecodeContext{})
	if err == nil {
		t.Fatal("expected marker validation error")
	}
	de, ok := err.(*wire.DecodeError)
	if !ok {
		t.Fatalf("expected *wire.DecodeError, got %T", err)
	}
	if de.Kind != wire.ErrMessageHeader {
		t.Fatalf("expected ErrMessageHeader, got %v", de.Kind)
	}
}

func TestDecodeRejectsLengthBelowMinimum(t *testing.T) {
	raw, err := Encode(KeepAliveMessage{}, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw[16] = 0
	raw[17] = byte(HeaderSize - 1)
	_, _, err = Decode(raw, DecodeContext{})
	if err == nil {
		t.Fatal("expected length validation error")
	}
}

func TestDecodeRejectsTruncatedBody(t *testing.T) {
	raw, err := Encode(KeepAliveMessage{}, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Claim a longer body than is actually present.
	raw[16] = 0
	raw[17] = byte(HeaderSize + 10)
	_, _, err = Decode(raw, DecodeContext{})
	if err == nil {
		t.Fatal("expected truncation error")
	}
	de, ok := err.(*wire.DecodeError)
	if !ok {
		t.Fatalf("expected *wire.DecodeError, got %T", err)
	}
	if de.Kind != wire.ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", de.Kind)
	}
}

func TestDecodeRejectsUnrecognizedType(t *testing.T) {
	raw, err := Encode(KeepAliveMessage{}, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw[18] = 0xEE
	_, _, err = Decode(raw, DecodeContext{})
	if err == nil {
		t.Fatal("expected unrecognized-type error")
	}
}

func TestDecodeConsumesOnlyOneMessageFromConcatenatedStream(t *testing.T) {
	one, err := Encode(KeepAliveMessage{}, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	two := append(append([]byte{}, one...), one...)
	tail, msg, err := Decode(two, DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := msg.(KeepAliveMessage); !ok {
		t.Fatalf("expected KeepAliveMessage, got %T", msg)
	}
	if !bytes.Equal(tail, one) {
		t.Fatalf("expected tail to equal the second message, got %d bytes", len(tail))
	}
}

func TestMessageTypeString(t *testing.T) {
	cases := map[MessageType]string{
		MessageTypeOpen:         "OPEN",
		MessageTypeUpdate:       "UPDATE",
		MessageTypeNotification: "NOTIFICATION",
		MessageTypeKeepAlive:    "KEEPALIVE",
		MessageTypeRouteRefresh: "ROUTE-REFRESH",
		MessageType(99):         "UNKNOWN(99)",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Fatalf("MessageType(%d).String() = %q, want %q", typ, got, want)
		}
	}
}

func TestRouteRefreshRoundTrip(t *testing.T) {
	msg := RouteRefreshMessage{AFI: AFIIPv4, SAFI: SAFIUnicast}
	raw, err := Encode(msg, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, decoded, err := Decode(raw, DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(RouteRefreshMessage)
	if !ok {
		t.Fatalf("expected RouteRefreshMessage, got %T", decoded)
	}
	if got.AFI != AFIIPv4 || got.SAFI != SAFIUnicast {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestNotificationRoundTripAllErrorCodes(t *testing.T) {
	codes := []NotificationErrorCode{
		ErrCodeMessageHeader, ErrCodeOpenMessage, ErrCodeUpdateMessage,
		ErrCodeHoldTimerExpired, ErrCodeFSM, ErrCodeCease,
	}
	for _, code := range codes {
		msg := NotificationMessage{ErrorCode: code, ErrorSubcode: 3, Data: []byte{1, 2, 3}}
		raw, err := Encode(msg, EncodeContext{})
		if err != nil {
			t.Fatalf("encode %v: %v", code, err)
		}
		_, decoded, err := Decode(raw, DecodeContext{})
		if err != nil {
			t.Fatalf("decode %v: %v", code, err)
		}
		got, ok := decoded.(NotificationMessage)
		if !ok {
			t.Fatalf("expected NotificationMessage, got %T", decoded)
		}
		if got.ErrorCode != code || got.ErrorSubcode != 3 || !bytes.Equal(got.Data, []byte{1, 2, 3}) {
			t.Fatalf("round trip mismatch for %v: %+v", code, got)
		}
	}
}

func TestEncodeRejectsOversizeOpenMessage(t *testing.T) {
	caps := make([]Capability, 0, 2000)
	for i := 0; i < 2000; i++ {
		caps = append(caps, UnknownCapability{Code: CapabilityCode(200), Bytes: []byte{1, 2, 3}})
	}
	msg := OpenMessage{Version: 4, MyASN: 65001, HoldTime: 90, BGPIdentifier: 1, Capabilities: caps}
	_, err := Encode(msg, EncodeContext{})
	if err == nil {
		t.Fatal("expected message-too-large error")
	}
}
