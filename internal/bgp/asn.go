package bgp

// ASN is an autonomous system number. The wire width (2 or 4 octets)
// is chosen by session capability negotiation (asn4), never by the
// magnitude of the value itself.
type ASN uint32

// DecodeContext carries the per-session negotiated state the BGP
// decoders need but cannot infer from the bytes alone.
type DecodeContext struct {
	// ASN4 is true once the session negotiated 4-octet AS support
	// (RFC 6793). It controls AS_PATH and AGGREGATOR segment width;
	// AS4_PATH is always 4-octet regardless of this flag.
	ASN4 bool
}

// EncodeContext mirrors DecodeContext for the encode direction; kept
// distinct so a future asymmetry (e.g. re-encoding a decoded message
// unmodified) doesn't silently couple the two directions.
type EncodeContext struct {
	ASN4 bool
}
