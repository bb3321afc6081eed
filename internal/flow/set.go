package flow

import "github.com/netgauze-go/netgauze/internal/wire"

const (
	setIDTemplateV9   = 0
	setIDOptionsV9    = 1
	setIDTemplateIPFIX = 2
	setIDOptionsIPFIX  = 3
	minDataSetID       = 256
)

const enterpriseBit = 0x8000

// FieldSpecifier is one field entry inside a template (RFC 7011 §3.2).
// Enterprise is non-zero only when the information element ID carries
// the enterprise bit; VariableLength is true when Length == 0xFFFF,
// meaning the data record encodes its own length per occurrence.
type FieldSpecifier struct {
	InformationElementID uint16
	Enterprise           uint32
	Length               uint16
}

// VariableLength reports RFC 7011 §7's variable-length field marker.
func (f FieldSpecifier) VariableLength() bool { return f.Length == 0xFFFF }

func encodeFieldSpecifier(f FieldSpecifier) []byte {
	id := f.InformationElementID
	if f.Enterprise != 0 {
		id |= enterpriseBit
	}
	out := []byte{byte(id >> 8), byte(id), byte(f.Length >> 8), byte(f.Length)}
	if f.Enterprise != 0 {
		out = append(out, byte(f.Enterprise>>24), byte(f.Enterprise>>16), byte(f.Enterprise>>8), byte(f.Enterprise))
	}
	return out
}

func decodeFieldSpecifier(cur wire.Cursor) (FieldSpecifier, wire.Cursor, error) {
	if err := cur.Require(4); err != nil {
		return FieldSpecifier{}, cur, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "field specifier needs 4 bytes, have %d", cur.Len())
	}
	idRaw, next, err := cur.ReadU16()
	if err != nil {
		return FieldSpecifier{}, cur, err
	}
	length, next2, err := next.ReadU16()
	if err != nil {
		return FieldSpecifier{}, cur, err
	}
	if length == 0 {
		return FieldSpecifier{}, cur, wire.NewDecodeError(next.Offset(), wire.ErrInvalidLength, "zero-length field specifier (information element %d)", idRaw&^enterpriseBit)
	}
	f := FieldSpecifier{Length: length}
	if idRaw&enterpriseBit != 0 {
		f.InformationElementID = idRaw &^ enterpriseBit
		ent, rest, err := next2.ReadU32()
		if err != nil {
			return FieldSpecifier{}, cur, err
		}
		f.Enterprise = ent
		return f, rest, nil
	}
	f.InformationElementID = idRaw
	return f, next2, nil
}

// TemplateRecord is one data template (RFC 3954 §5.3 / RFC 7011 §3.4.1).
type TemplateRecord struct {
	TemplateID uint16
	Fields     []FieldSpecifier
}

// OptionsTemplateRecord is an options template (RFC 3954 §5.6 / RFC 7011 §3.4.2.2).
type OptionsTemplateRecord struct {
	TemplateID   uint16
	ScopeFields  []FieldSpecifier
	OptionFields []FieldSpecifier
}

// DataRecordBytes is raw, un-split data record bytes: the concatenated
// field bytes of one or more template instances, before field-width
// splitting against the owning template. decodeSet puts a whole Data
// Set body (all its records plus any set padding) into one element,
// and DecodeDataRecords splits it.
type DataRecordBytes []byte

// Set is the tagged union of FlowSet/Set contents: a run of template
// records, option template records, or data records sharing one
// template ID.
type Set interface {
	setKind() string
}

// TemplateSet carries one or more TemplateRecords (set ID 0 for v9, 2 for IPFIX).
type TemplateSet struct{ Records []TemplateRecord }

func (TemplateSet) setKind() string { return "TemplateSet" }

// OptionsTemplateSet carries one or more OptionsTemplateRecords (set ID 1 for v9, 3 for IPFIX).
type OptionsTemplateSet struct{ Records []OptionsTemplateRecord }

func (OptionsTemplateSet) setKind() string { return "OptionsTemplateSet" }

// DataSet carries raw data records sharing TemplateID (set ID >= 256).
// Splitting DataRecordBytes into typed fields requires the
// corresponding template and is done by the template-cache-aware
// decoder in package template.
type DataSet struct {
	TemplateID uint16
	Records    []DataRecordBytes
}

func (DataSet) setKind() string { return "DataSet" }

func encodeSet(version Version, s Set) ([]byte, error) {
	var id uint16
	var body []byte

	switch set := s.(type) {
	case TemplateSet:
		id = templateSetID(version)
		for _, r := range set.Records {
			body = append(body, encodeTemplateRecord(r)...)
		}
	case OptionsTemplateSet:
		id = optionsSetID(version)
		for _, r := range set.Records {
			body = append(body, encodeOptionsTemplateRecord(version, r)...)
		}
	case DataSet:
		id = set.TemplateID
		for _, r := range set.Records {
			body = append(body, r...)
		}
	default:
		return nil, wire.NewEncodeError(wire.ErrIO, "unknown set kind")
	}

	unpadded := 4 + len(body)
	padded := (unpadded + 3) &^ 3
	out := make([]byte, padded)
	out[0] = byte(id >> 8)
	out[1] = byte(id)
	out[2] = byte(uint16(padded) >> 8)
	out[3] = byte(uint16(padded))
	copy(out[4:], body)
	return out, nil
}

func templateSetID(v Version) uint16 {
	if v == VersionNetflowV9 {
		return setIDTemplateV9
	}
	return setIDTemplateIPFIX
}

func optionsSetID(v Version) uint16 {
	if v == VersionNetflowV9 {
		return setIDOptionsV9
	}
	return setIDOptionsIPFIX
}

func encodeTemplateRecord(r TemplateRecord) []byte {
	out := []byte{byte(r.TemplateID >> 8), byte(r.TemplateID), byte(uint16(len(r.Fields)) >> 8), byte(uint16(len(r.Fields)))}
	for _, f := range r.Fields {
		out = append(out, encodeFieldSpecifier(f)...)
	}
	return out
}

func encodeOptionsTemplateRecord(version Version, r OptionsTemplateRecord) []byte {
	if version == VersionNetflowV9 {
		scopeLen := uint16(len(r.ScopeFields)) * 4
		optLen := uint16(len(r.OptionFields)) * 4
		out := []byte{
			byte(r.TemplateID >> 8), byte(r.TemplateID),
			byte(scopeLen >> 8), byte(scopeLen),
			byte(optLen >> 8), byte(optLen),
		}
		for _, f := range r.ScopeFields {
			out = append(out, byte(f.InformationElementID>>8), byte(f.InformationElementID), byte(f.Length>>8), byte(f.Length))
		}
		for _, f := range r.OptionFields {
			out = append(out, encodeFieldSpecifier(f)...)
		}
		return out
	}

	fieldCount := uint16(len(r.ScopeFields) + len(r.OptionFields))
	scopeCount := uint16(len(r.ScopeFields))
	out := []byte{
		byte(r.TemplateID >> 8), byte(r.TemplateID),
		byte(fieldCount >> 8), byte(fieldCount),
		byte(scopeCount >> 8), byte(scopeCount),
	}
	for _, f := range r.ScopeFields {
		out = append(out, encodeFieldSpecifier(f)...)
	}
	for _, f := range r.OptionFields {
		out = append(out, encodeFieldSpecifier(f)...)
	}
	return out
}

func decodeSet(version Version, cur wire.Cursor) (Set, wire.Cursor, error) {
	if err := cur.Require(4); err != nil {
		return nil, cur, wire.NewDecodeError(cur.Offset(), wire.ErrTruncated, "set header needs 4 bytes, have %d", cur.Len())
	}
	id, next, err := cur.ReadU16()
	if err != nil {
		return nil, cur, err
	}
	length, next2, err := next.ReadU16()
	if err != nil {
		return nil, cur, err
	}
	if length < 4 {
		return nil, cur, wire.NewDecodeError(next.Offset(), wire.ErrInvalidLength, "set length %d below minimum header size 4", length)
	}
	bodyLen := int(length) - 4
	bodyCur, afterSet, err := next2.Sub(bodyLen)
	if err != nil {
		return nil, cur, err
	}

	switch {
	case id == templateSetID(version):
		recs, err := decodeTemplateRecords(bodyCur)
		if err != nil {
			return nil, cur, err
		}
		return TemplateSet{Records: recs}, afterSet, nil
	case id == optionsSetID(version):
		recs, err := decodeOptionsTemplateRecords(version, bodyCur)
		if err != nil {
			return nil, cur, err
		}
		return OptionsTemplateSet{Records: recs}, afterSet, nil
	case id >= minDataSetID:
		raw := bodyCur.Bytes()
		return DataSet{TemplateID: id, Records: []DataRecordBytes{append([]byte(nil), raw...)}}, afterSet, nil
	default:
		return nil, cur, wire.NewDecodeError(next.Offset(), wire.ErrInvalidEnumValue, "reserved or unsupported set ID %d", id)
	}
}

func decodeTemplateRecords(cur wire.Cursor) ([]TemplateRecord, error) {
	var out []TemplateRecord
	for cur.Len() > 0 {
		if cur.Len() < 4 {
			return out, drainPadding(cur)
		}
		templateID, next, err := cur.ReadU16()
		if err != nil {
			return nil, err
		}
		fieldCount, next2, err := next.ReadU16()
		if err != nil {
			return nil, err
		}
		var fields []FieldSpecifier
		rest := next2
		for i := uint16(0); i < fieldCount; i++ {
			var f FieldSpecifier
			f, rest, err = decodeFieldSpecifier(rest)
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
		}
		out = append(out, TemplateRecord{TemplateID: templateID, Fields: fields})
		cur = rest
	}
	return out, nil
}

func decodeOptionsTemplateRecords(version Version, cur wire.Cursor) ([]OptionsTemplateRecord, error) {
	var out []OptionsTemplateRecord
	for cur.Len() > 0 {
		if cur.Len() < 6 {
			return out, drainPadding(cur)
		}
		templateID, next, err := cur.ReadU16()
		if err != nil {
			return nil, err
		}

		var scopeCount, optionCount uint16
		var rest wire.Cursor
		if version == VersionNetflowV9 {
			scopeLen, next2, err := next.ReadU16()
			if err != nil {
				return nil, err
			}
			optLen, next3, err := next2.ReadU16()
			if err != nil {
				return nil, err
			}
			scopeCount, optionCount = scopeLen/4, optLen/4
			rest = next3
		} else {
			fieldCount, next2, err := next.ReadU16()
			if err != nil {
				return nil, err
			}
			scopes, next3, err := next2.ReadU16()
			if err != nil {
				return nil, err
			}
			scopeCount = scopes
			optionCount = fieldCount - scopes
			rest = next3
		}

		var scopeFields, optionFields []FieldSpecifier
		for i := uint16(0); i < scopeCount; i++ {
			var f FieldSpecifier
			f, rest, err = decodeFieldSpecifier(rest)
			if err != nil {
				return nil, err
			}
			scopeFields = append(scopeFields, f)
		}
		for i := uint16(0); i < optionCount; i++ {
			var f FieldSpecifier
			f, rest, err = decodeFieldSpecifier(rest)
			if err != nil {
				return nil, err
			}
			optionFields = append(optionFields, f)
		}

		out = append(out, OptionsTemplateRecord{TemplateID: templateID, ScopeFields: scopeFields, OptionFields: optionFields})
		cur = rest
	}
	return out, nil
}

// drainPadding verifies any trailing bytes inside a set (before the
// 4-octet set-level padding) are zero, per RFC 7011 §3.3.3.
func drainPadding(cur wire.Cursor) error {
	for _, b := range cur.Bytes() {
		if b != 0 {
			return wire.NewDecodeError(cur.Offset(), wire.ErrInvalidPaddingValue, "non-zero padding byte 0x%02x", b)
		}
	}
	return nil
}
