package flow

import (
	"math"
	"net"

	"github.com/netgauze-go/netgauze/internal/wire"
)

// Value is one decoded field inside a data record. The underlying
// bytes are kept as-is; the As* accessors interpret them on demand
// rather than forcing every information element through one giant
// discriminated union that would need a case for each IANA IE type.
type Value struct {
	Spec FieldSpecifier
	Raw  []byte
}

func (v Value) AsUint() uint64 {
	var out uint64
	for _, b := range v.Raw {
		out = out<<8 | uint64(b)
	}
	return out
}

func (v Value) AsInt() int64 {
	if len(v.Raw) == 0 {
		return 0
	}
	u := v.AsUint()
	bits := uint(len(v.Raw)) * 8
	if bits < 64 && v.Raw[0]&0x80 != 0 {
		return int64(u) - (1 << bits)
	}
	return int64(u)
}

func (v Value) AsFloat() float64 {
	switch len(v.Raw) {
	case 4:
		return float64(math.Float32frombits(uint32(v.AsUint())))
	case 8:
		return math.Float64frombits(v.AsUint())
	default:
		return 0
	}
}

func (v Value) AsBool() bool {
	// RFC 7011 §6.1.5: 1 = true, 2 = false.
	return len(v.Raw) == 1 && v.Raw[0] == 1
}

func (v Value) AsMAC() net.HardwareAddr { return net.HardwareAddr(v.Raw) }

func (v Value) AsString() string { return string(v.Raw) }

func (v Value) AsIPv4() net.IP {
	if len(v.Raw) != 4 {
		return nil
	}
	return net.IP(v.Raw)
}

func (v Value) AsIPv6() net.IP {
	if len(v.Raw) != 16 {
		return nil
	}
	return net.IP(v.Raw)
}

// AsDateTimeSeconds/Millis/Micros/Nanos decode the dateTime* abstract
// types (RFC 7011 §6.1.10-13) as Unix-epoch offsets in the named unit.
func (v Value) AsDateTimeSeconds() uint32 { return uint32(v.AsUint()) }
func (v Value) AsDateTimeMillis() uint64  { return v.AsUint() }
func (v Value) AsDateTimeMicros() uint64  { return v.AsUint() }
func (v Value) AsDateTimeNanos() uint64   { return v.AsUint() }

// DecodeDataRecords splits each raw DataRecordBytes blob against
// fields, producing one []Value per record found inside it. A Data
// Set's body has no per-record delimiter on the wire (RFC 3954 §5 /
// RFC 7011 §3.3.3): records are simply concatenated back to back, so
// one blob commonly holds several records sharing the same template.
// Fixed-length fields consume exactly Length bytes; variable-length
// fields (Length == 0xFFFF) use the RFC 7011 §7 short/long form length
// prefix. Decoding a blob stops once fewer than minRecordLen bytes
// remain, and whatever is left must be zero set-level padding; a
// non-zero leftover is reported as TemplateMismatch.
func DecodeDataRecords(records []DataRecordBytes, fields []FieldSpecifier) ([][]Value, error) {
	minLen := minRecordLen(fields)
	out := make([][]Value, 0, len(records))
	for _, rec := range records {
		cur := wire.NewCursor(rec)
		for minLen > 0 && cur.Len() >= minLen {
			values := make([]Value, 0, len(fields))
			for _, f := range fields {
				length := int(f.Length)
				if f.VariableLength() {
					n, next, err := decodeVarLength(cur)
					if err != nil {
						return nil, err
					}
					length, cur = n, next
				}
				raw, rest, err := cur.ReadBytes(length)
				if err != nil {
					return nil, wire.NewDecodeError(cur.Offset(), wire.ErrTemplateMismatch, "field %d needs %d bytes, only %d remain in record", f.InformationElementID, length, cur.Len())
				}
				values = append(values, Value{Spec: f, Raw: raw})
				cur = rest
			}
			out = append(out, values)
		}
		if err := drainPadding(cur); err != nil {
			return nil, wire.NewDecodeError(cur.Offset(), wire.ErrTemplateMismatch, "%d leftover bytes are fewer than one %d-byte record and are not zero padding", cur.Len(), minLen)
		}
	}
	return out, nil
}

// minRecordLen is the fewest bytes one record of fields can occupy:
// exactly Length for fixed fields, at least the 1-byte short form for
// variable-length fields. Once a blob has fewer bytes left than this,
// what remains can only be set-level padding.
func minRecordLen(fields []FieldSpecifier) int {
	n := 0
	for _, f := range fields {
		if f.VariableLength() {
			n++
		} else {
			n += int(f.Length)
		}
	}
	return n
}

func decodeVarLength(cur wire.Cursor) (int, wire.Cursor, error) {
	first, next, err := cur.ReadU8()
	if err != nil {
		return 0, cur, err
	}
	if first < 255 {
		return int(first), next, nil
	}
	n, rest, err := next.ReadU16()
	if err != nil {
		return 0, cur, err
	}
	return int(n), rest, nil
}

// EncodeDataRecord serializes values back into a single data record,
// prefixing variable-length fields with their RFC 7011 §7 length form.
func EncodeDataRecord(values []Value) DataRecordBytes {
	var out []byte
	for _, v := range values {
		if v.Spec.VariableLength() {
			if len(v.Raw) < 255 {
				out = append(out, byte(len(v.Raw)))
			} else {
				out = append(out, 255, byte(len(v.Raw)>>8), byte(len(v.Raw)))
			}
		}
		out = append(out, v.Raw...)
	}
	return out
}
