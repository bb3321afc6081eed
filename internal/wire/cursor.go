// Package wire holds the byte-cursor and error types shared by every
// codec package (bgp, bmp, flow). It has no knowledge of any specific
// protocol.
package wire

import "fmt"

// Cursor is a non-owning view over an input buffer plus the absolute
// offset that view started at. Decoders hand back the unconsumed tail
// as a new Cursor so errors raised further down the call chain still
// carry an absolute offset into the original buffer.
type Cursor struct {
	buf    []byte
	origin int
}

// NewCursor wraps buf as a cursor starting at absolute offset 0.
func NewCursor(buf []byte) Cursor {
	return Cursor{buf: buf, origin: 0}
}

// Len returns the number of unconsumed bytes.
func (c Cursor) Len() int { return len(c.buf) }

// Offset returns the absolute offset of the cursor's first byte within
// the original buffer it was constructed from.
func (c Cursor) Offset() int { return c.origin }

// Bytes returns the unconsumed bytes. Callers must not mutate the
// result.
func (c Cursor) Bytes() []byte { return c.buf }

// Require fails with Truncated if fewer than n bytes remain.
func (c Cursor) Require(n int) error {
	if len(c.buf) < n {
		return &DecodeError{
			Offset: c.origin,
			Kind:   ErrTruncated,
			Detail: fmt.Sprintf("need %d bytes, have %d", n, len(c.buf)),
		}
	}
	return nil
}

// Advance returns a new cursor past n consumed bytes and the consumed
// slice. Panics if n > Len(); callers must Require(n) first.
func (c Cursor) Advance(n int) ([]byte, Cursor) {
	consumed := c.buf[:n]
	return consumed, Cursor{buf: c.buf[n:], origin: c.origin + n}
}

// Sub restricts the cursor to its next n bytes, returning a bounded
// cursor for a child decoder and the cursor advanced past those n
// bytes for the caller. Children that try to read beyond the bound see
// Truncated rather than drifting into the next PDU.
func (c Cursor) Sub(n int) (Cursor, Cursor, error) {
	if err := c.Require(n); err != nil {
		return Cursor{}, c, err
	}
	consumed, rest := c.Advance(n)
	return Cursor{buf: consumed, origin: c.origin}, rest, nil
}

func (c Cursor) u8() (uint8, Cursor, error) {
	if err := c.Require(1); err != nil {
		return 0, c, err
	}
	b, rest := c.Advance(1)
	return b[0], rest, nil
}

func (c Cursor) u16() (uint16, Cursor, error) {
	if err := c.Require(2); err != nil {
		return 0, c, err
	}
	b, rest := c.Advance(2)
	return uint16(b[0])<<8 | uint16(b[1]), rest, nil
}

func (c Cursor) u32() (uint32, Cursor, error) {
	if err := c.Require(4); err != nil {
		return 0, c, err
	}
	b, rest := c.Advance(4)
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), rest, nil
}

func (c Cursor) u64() (uint64, Cursor, error) {
	if err := c.Require(8); err != nil {
		return 0, c, err
	}
	b, rest := c.Advance(8)
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v, rest, nil
}

// ReadU8 reads a big-endian uint8.
func (c Cursor) ReadU8() (uint8, Cursor, error) { return c.u8() }

// ReadU16 reads a big-endian uint16.
func (c Cursor) ReadU16() (uint16, Cursor, error) { return c.u16() }

// ReadU32 reads a big-endian uint32.
func (c Cursor) ReadU32() (uint32, Cursor, error) { return c.u32() }

// ReadU64 reads a big-endian uint64.
func (c Cursor) ReadU64() (uint64, Cursor, error) { return c.u64() }

// ReadBytes consumes and returns the next n bytes verbatim.
func (c Cursor) ReadBytes(n int) ([]byte, Cursor, error) {
	if err := c.Require(n); err != nil {
		return nil, c, err
	}
	b, rest := c.Advance(n)
	out := make([]byte, n)
	copy(out, b)
	return out, rest, nil
}
