package bgp

import (
	"net"
	"testing"

	"github.com/netgauze-go/netgauze/internal/wire"
)

func ipv4Prefix(t *testing.T, length uint8, bytes ...byte) Ipv4Unicast {
	t.Helper()
	return Ipv4Unicast{unicastBase{Prefix: IpPrefix{Length: length, Bytes: bytes}, afi: AFIIPv4, safi: SAFIUnicast}}
}

func mustAttr(t *testing.T, flags AttributeFlags, code AttributeType, v PathAttributeValue) PathAttribute {
	t.Helper()
	a, err := NewPathAttribute(flags, code, v)
	if err != nil {
		t.Fatalf("NewPathAttribute(%v): %v", code, err)
	}
	return a
}

func TestUpdateRoundTripWithRoutesAndAttributes(t *testing.T) {
	msg := UpdateMessage{
		WithdrawnRoutes: []Nlri{ipv4Prefix(t, 24, 198, 51, 100)},
		PathAttributes: []PathAttribute{
			mustAttr(t, AttributeFlags{Transitive: true}, AttrOrigin, Origin{Value: OriginIGP}),
			mustAttr(t, AttributeFlags{Transitive: true}, AttrASPath, NewAsPath(false, []AsPathSegment{
				{Type: AsPathSegmentSequence, ASNs: []ASN{65001, 65002}},
			}, false)),
			mustAttr(t, AttributeFlags{Transitive: true}, AttrNextHop, NextHop{Address: net.ParseIP("192.0.2.1").To4()}),
		},
		NLRI: []Nlri{ipv4Prefix(t, 24, 203, 0, 113)},
	}
	raw, err := Encode(msg, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, decoded, err := Decode(raw, DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(UpdateMessage)
	if !ok {
		t.Fatalf("expected UpdateMessage, got %T", decoded)
	}
	if len(got.WithdrawnRoutes) != 1 || len(got.NLRI) != 1 {
		t.Fatalf("unexpected route counts: withdrawn=%d nlri=%d", len(got.WithdrawnRoutes), len(got.NLRI))
	}
	origin, ok := got.Attribute(AttrOrigin)
	if !ok {
		t.Fatal("expected ORIGIN attribute")
	}
	if origin.Value.(Origin).Value != OriginIGP {
		t.Fatalf("unexpected ORIGIN value: %+v", origin.Value)
	}
	asPath, ok := got.Attribute(AttrASPath)
	if !ok {
		t.Fatal("expected AS_PATH attribute")
	}
	ap := asPath.Value.(AsPath)
	if len(ap.Segments) != 1 || len(ap.Segments[0].ASNs) != 2 || ap.Segments[0].ASNs[1] != 65002 {
		t.Fatalf("unexpected AS_PATH: %+v", ap)
	}
}

func TestUpdateEmptyMessageRoundTrip(t *testing.T) {
	msg := UpdateMessage{}
	raw, err := Encode(msg, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, decoded, err := Decode(raw, DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(UpdateMessage)
	if len(got.WithdrawnRoutes) != 0 || len(got.PathAttributes) != 0 || len(got.NLRI) != 0 {
		t.Fatalf("expected an entirely empty UPDATE, got %+v", got)
	}
}

func TestASPathWireWidthFollowsASN4Negotiation(t *testing.T) {
	attr := mustAttr(t, AttributeFlags{Transitive: true}, AttrASPath, NewAsPath(true, []AsPathSegment{
		{Type: AsPathSegmentSequence, ASNs: []ASN{4200000001}},
	}, false))
	msg := UpdateMessage{PathAttributes: []PathAttribute{attr}}

	raw, err := Encode(msg, EncodeContext{ASN4: true})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// Decoding with ASN4=false would misparse the 4-octet ASN field as
	// two 2-octet ASNs; decoding with the matching negotiated state
	// must recover the original value.
	_, decoded, err := Decode(raw, DecodeContext{ASN4: true})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(UpdateMessage)
	asPath, ok := got.Attribute(AttrASPath)
	if !ok {
		t.Fatal("expected AS_PATH attribute")
	}
	if asPath.Value.(AsPath).Segments[0].ASNs[0] != 4200000001 {
		t.Fatalf("unexpected AS_PATH value: %+v", asPath.Value)
	}
}

func TestAS4PathAlwaysFourOctetRegardlessOfNegotiation(t *testing.T) {
	attr := mustAttr(t, AttributeFlags{Optional: true, Transitive: true}, AttrAS4Path, NewAsPath(true, []AsPathSegment{
		{Type: AsPathSegmentSequence, ASNs: []ASN{4200000002}},
	}, true))
	msg := UpdateMessage{PathAttributes: []PathAttribute{attr}}

	raw, err := Encode(msg, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, decoded, err := Decode(raw, DecodeContext{ASN4: false})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(UpdateMessage)
	as4, ok := got.Attribute(AttrAS4Path)
	if !ok {
		t.Fatal("expected AS4_PATH attribute")
	}
	if as4.Value.(AsPath).Segments[0].ASNs[0] != 4200000002 {
		t.Fatalf("unexpected AS4_PATH value: %+v", as4.Value)
	}
}

func TestMPReachNLRIRoundTripIPv6Unicast(t *testing.T) {
	nextHop := net.ParseIP("2001:db8::1").To16()
	mp := MpReachNLRI{
		AFI:     AFIIPv6,
		SAFI:    SAFIUnicast,
		NextHop: []byte(nextHop),
		NLRI: []Nlri{
			Ipv6Unicast{unicastBase{Prefix: IpPrefix{Length: 64, Bytes: []byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0}}, afi: AFIIPv6, safi: SAFIUnicast}},
		},
	}
	attr := mustAttr(t, AttributeFlags{Optional: true}, AttrMPReachNLRI, mp)
	msg := UpdateMessage{PathAttributes: []PathAttribute{attr}}

	raw, err := Encode(msg, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, decoded, err := Decode(raw, DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(UpdateMessage)
	a, ok := got.Attribute(AttrMPReachNLRI)
	if !ok {
		t.Fatal("expected MP_REACH_NLRI attribute")
	}
	reach := a.Value.(MpReachNLRI)
	if reach.AFI != AFIIPv6 || reach.SAFI != SAFIUnicast {
		t.Fatalf("unexpected AFI/SAFI: %+v", reach)
	}
	if len(reach.NLRI) != 1 {
		t.Fatalf("expected 1 NLRI entry, got %d", len(reach.NLRI))
	}
	if _, ok := reach.NLRI[0].(Ipv6Unicast); !ok {
		t.Fatalf("expected Ipv6Unicast, got %T", reach.NLRI[0])
	}
	if !reach.NextHopIP().Equal(net.ParseIP("2001:db8::1")) {
		t.Fatalf("unexpected next hop: %v", reach.NextHopIP())
	}
}

func TestMPUnreachNLRIRoundTrip(t *testing.T) {
	mp := MpUnreachNLRI{
		AFI:  AFIIPv6,
		SAFI: SAFIUnicast,
		NLRI: []Nlri{
			Ipv6Unicast{unicastBase{Prefix: IpPrefix{Length: 32, Bytes: []byte{0x20, 0x01, 0x0d, 0xb8}}, afi: AFIIPv6, safi: SAFIUnicast}},
		},
	}
	attr := mustAttr(t, AttributeFlags{Optional: true}, AttrMPUnreachNLRI, mp)
	msg := UpdateMessage{PathAttributes: []PathAttribute{attr}}

	raw, err := Encode(msg, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, decoded, err := Decode(raw, DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(UpdateMessage)
	a, ok := got.Attribute(AttrMPUnreachNLRI)
	if !ok {
		t.Fatal("expected MP_UNREACH_NLRI attribute")
	}
	if len(a.Value.(MpUnreachNLRI).NLRI) != 1 {
		t.Fatalf("expected 1 NLRI entry, got %+v", a.Value)
	}
}

func TestUnknownAttributeRoundTrip(t *testing.T) {
	attr := mustAttr(t, AttributeFlags{Optional: true, Transitive: true}, AttributeType(250), UnknownAttribute{Code: AttributeType(250), Bytes: []byte{1, 2, 3, 4}})
	msg := UpdateMessage{PathAttributes: []PathAttribute{attr}}

	raw, err := Encode(msg, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, decoded, err := Decode(raw, DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(UpdateMessage)
	a, ok := got.Attribute(AttributeType(250))
	if !ok {
		t.Fatal("expected the unknown attribute to round trip")
	}
	ua, ok := a.Value.(UnknownAttribute)
	if !ok || len(ua.Bytes) != 4 {
		t.Fatalf("unexpected unknown attribute value: %+v", a.Value)
	}
}

func TestNewPathAttributeRejectsWrongOptionalFlag(t *testing.T) {
	// ORIGIN is well-known (optional=false); marking it optional must fail.
	_, err := NewPathAttribute(AttributeFlags{Optional: true}, AttrOrigin, Origin{Value: OriginIGP})
	if err == nil {
		t.Fatal("expected InvalidOptionalFlagValue error")
	}
	de, ok := err.(*wire.DecodeError)
	if !ok {
		t.Fatalf("expected *wire.DecodeError, got %T", err)
	}
	if de.Kind != wire.ErrInvalidFlagCombination {
		t.Fatalf("expected ErrInvalidFlagCombination, got %v", de.Kind)
	}
}

func TestNewPathAttributeRejectsWrongTransitiveFlag(t *testing.T) {
	// MULTI_EXIT_DISC is well-known optional, non-transitive.
	_, err := NewPathAttribute(AttributeFlags{Optional: true, Transitive: true}, AttrMultiExitDisc, MultiExitDisc{Value: 0})
	if err == nil {
		t.Fatal("expected InvalidTransitiveFlagValue error")
	}
}

func TestNewPathAttributeRejectsPartialOnWellKnown(t *testing.T) {
	_, err := NewPathAttribute(AttributeFlags{Transitive: true, Partial: true}, AttrOrigin, Origin{Value: OriginIGP})
	if err == nil {
		t.Fatal("expected InvalidPartialFlagValue error")
	}
}

func TestNewPathAttributeAcceptsAnyFlagsOnUnknownAttribute(t *testing.T) {
	_, err := NewPathAttribute(AttributeFlags{Optional: true, Partial: true}, AttributeType(250), UnknownAttribute{Code: 250})
	if err != nil {
		t.Fatalf("unexpected error for unknown attribute: %v", err)
	}
}

func TestDecodeAttributeUsesExtendedLengthWhenFlagged(t *testing.T) {
	// A COMMUNITY value long enough to require the 2-octet length form.
	var values []Community
	for i := 0; i < 100; i++ {
		values = append(values, Community(i))
	}
	attr := mustAttr(t, AttributeFlags{Optional: true, Transitive: true}, AttrCommunities, Communities{Values: values})
	msg := UpdateMessage{PathAttributes: []PathAttribute{attr}}
	raw, err := Encode(msg, EncodeContext{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, decoded, err := Decode(raw, DecodeContext{})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := decoded.(UpdateMessage)
	a, ok := got.Attribute(AttrCommunities)
	if !ok {
		t.Fatal("expected COMMUNITIES attribute")
	}
	if len(a.Value.(Communities).Values) != 100 {
		t.Fatalf("expected 100 communities, got %d", len(a.Value.(Communities).Values))
	}
}

func TestDecodeOriginRejectsBadValue(t *testing.T) {
	cur := wire.NewCursor([]byte{5})
	_, err := decodeOrigin(cur)
	if err == nil {
		t.Fatal("expected invalid enum value error")
	}
}

func TestDecodeNextHopRejectsWrongLength(t *testing.T) {
	cur := wire.NewCursor([]byte{1, 2, 3})
	_, err := decodeNextHop(cur)
	if err == nil {
		t.Fatal("expected invalid length error")
	}
}
