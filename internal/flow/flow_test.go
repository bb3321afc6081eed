package flow

import (
	"testing"
)

func sampleTemplate() TemplateRecord {
	return TemplateRecord{
		TemplateID: 256,
		Fields: []FieldSpecifier{
			{InformationElementID: 8, Length: 4},  // sourceIPv4Address
			{InformationElementID: 12, Length: 4}, // destinationIPv4Address
			{InformationElementID: 2, Length: 4},  // packetDeltaCount
		},
	}
}

func TestIPFIXTemplateAndDataRoundTrip(t *testing.T) {
	tmpl := sampleTemplate()
	data := DataRecordBytes(append(append([]byte{192, 0, 2, 1}, 203, 0, 113, 5), 0, 0, 0, 42))

	pkt := Packet{
		Header: Header{Version: VersionIPFIX, ExportTime: 1700000000, SequenceNumber: 1, SourceID: 7},
		Sets: []Set{
			TemplateSet{Records: []TemplateRecord{tmpl}},
			DataSet{TemplateID: tmpl.TemplateID, Records: []DataRecordBytes{data}},
		},
	}

	raw, err := Encode(pkt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Header.Version != VersionIPFIX || got.Header.SourceID != 7 {
		t.Fatalf("header mismatch: %+v", got.Header)
	}
	if len(got.Sets) != 2 {
		t.Fatalf("expected 2 sets, got %d", len(got.Sets))
	}
	ts, ok := got.Sets[0].(TemplateSet)
	if !ok || len(ts.Records) != 1 || len(ts.Records[0].Fields) != 3 {
		t.Fatalf("template set mismatch: %+v", got.Sets[0])
	}
	ds, ok := got.Sets[1].(DataSet)
	if !ok || len(ds.Records) != 1 {
		t.Fatalf("data set mismatch: %+v", got.Sets[1])
	}

	values, err := DecodeDataRecords(ds.Records, ts.Records[0].Fields)
	if err != nil {
		t.Fatalf("decode data records: %v", err)
	}
	if len(values) != 1 || len(values[0]) != 3 {
		t.Fatalf("expected 1 record of 3 fields, got %+v", values)
	}
	if values[0][2].AsUint() != 42 {
		t.Fatalf("expected packetDeltaCount 42, got %d", values[0][2].AsUint())
	}
}

func TestNetflowV9HeaderRoundTrip(t *testing.T) {
	pkt := Packet{
		Header: Header{Version: VersionNetflowV9, SysUpTimeMs: 12345, ExportTime: 1700000000, SequenceNumber: 9, SourceID: 3},
		Sets: []Set{
			TemplateSet{Records: []TemplateRecord{sampleTemplate()}},
		},
	}
	raw, err := Encode(pkt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Header.Version != VersionNetflowV9 || got.Header.SysUpTimeMs != 12345 || got.Header.Count != 1 {
		t.Fatalf("header mismatch: %+v", got.Header)
	}
}

func TestIPFIXInvalidPaddingRejected(t *testing.T) {
	pkt := Packet{
		Header: Header{Version: VersionIPFIX, SourceID: 1},
		Sets:   []Set{TemplateSet{Records: []TemplateRecord{sampleTemplate()}}},
	}
	raw, err := Encode(pkt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw = append(raw, 0x01, 0x00, 0x00, 0x00)
	raw[2] = byte(len(raw) >> 8)
	raw[3] = byte(len(raw))
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected non-zero trailing byte to be rejected")
	}
}

func TestDecodeDataRecordsTemplateMismatch(t *testing.T) {
	fields := sampleTemplate().Fields
	short := DataRecordBytes([]byte{1, 2, 3})
	if _, err := DecodeDataRecords([]DataRecordBytes{short}, fields); err == nil {
		t.Fatal("expected TemplateMismatch for a record shorter than its template")
	}
}

func TestZeroLengthFieldSpecifierRejected(t *testing.T) {
	pkt := Packet{
		Header: Header{Version: VersionNetflowV9},
		Sets: []Set{TemplateSet{Records: []TemplateRecord{{
			TemplateID: 256,
			Fields: []FieldSpecifier{
				{InformationElementID: 8, Length: 4},
				{InformationElementID: 12, Length: 0}, // malformed: zero-length fixed field
			},
		}}}},
	}
	raw, err := Encode(pkt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected a zero-length field specifier to be rejected rather than accepted or looping forever")
	}
}

// TestMultiRecordDataSetRoundTrip covers a single Data Set body packing
// several concatenated records for one template (spec.md §8 scenario
// S2: exactly 4 DataRecords from one NetFlow v9 packet decoded against
// one template).
func TestMultiRecordDataSetRoundTrip(t *testing.T) {
	tmpl := sampleTemplate()
	var raw []byte
	for i := byte(0); i < 4; i++ {
		raw = append(raw, 10, 0, 0, i) // sourceIPv4Address
		raw = append(raw, 10, 0, 1, i) // destinationIPv4Address
		raw = append(raw, 0, 0, 0, i)  // packetDeltaCount
	}

	pkt := Packet{
		Header: Header{Version: VersionNetflowV9, SourceID: 1},
		Sets: []Set{
			TemplateSet{Records: []TemplateRecord{tmpl}},
			DataSet{TemplateID: tmpl.TemplateID, Records: []DataRecordBytes{raw}},
		},
	}

	encoded, err := Encode(pkt)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	ds, ok := got.Sets[1].(DataSet)
	if !ok {
		t.Fatalf("expected DataSet, got %+v", got.Sets[1])
	}

	values, err := DecodeDataRecords(ds.Records, tmpl.Fields)
	if err != nil {
		t.Fatalf("decode data records: %v", err)
	}
	if len(values) != 4 {
		t.Fatalf("expected 4 DataRecords, got %d", len(values))
	}
	for i, rec := range values {
		if len(rec) != 3 {
			t.Fatalf("record %d: expected 3 fields, got %d", i, len(rec))
		}
		if rec[2].AsUint() != uint64(i) {
			t.Fatalf("record %d: expected packetDeltaCount %d, got %d", i, i, rec[2].AsUint())
		}
	}
}

func TestVariableLengthFieldRoundTrip(t *testing.T) {
	fields := []FieldSpecifier{{InformationElementID: 82, Length: 0xFFFF}} // interfaceName
	values := []Value{{Spec: fields[0], Raw: []byte("eth0")}}
	rec := EncodeDataRecord(values)

	decoded, err := DecodeDataRecords([]DataRecordBytes{rec}, fields)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 1 || decoded[0][0].AsString() != "eth0" {
		t.Fatalf("round trip mismatch: %+v", decoded)
	}
}
