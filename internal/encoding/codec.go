package encoding

import (
	"encoding/binary"
	"errors"
)

// ErrCorrupt is returned when encoded data cannot be decoded.
var ErrCorrupt = errors.New("encoding: corrupt data")

// AppendString appends a length-prefixed string.
func AppendString(dst []byte, s string) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

// AppendBlock appends a length-prefixed byte block.
func AppendBlock(dst, b []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(b)))
	return append(dst, b...)
}

// Cursor reads the primitives written by the Append functions.
type Cursor struct {
	data []byte
	off  int
}

// NewCursor returns a cursor positioned at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.data) - c.off }

// Uvarint reads an unsigned varint.
func (c *Cursor) Uvarint() (uint64, error) {
	v, n := binary.Uvarint(c.data[c.off:])
	if n <= 0 {
		return 0, ErrCorrupt
	}
	c.off += n
	return v, nil
}

// Len reads a uvarint that must not exceed the remaining input. It guards
// allocations sized from untrusted counts.
func (c *Cursor) Len() (int, error) {
	v, err := c.Uvarint()
	if err != nil {
		return 0, err
	}
	if v > uint64(c.Remaining()) {
		return 0, ErrCorrupt
	}
	return int(v), nil
}

// Byte reads one byte.
func (c *Cursor) Byte() (byte, error) {
	if c.Remaining() < 1 {
		return 0, ErrCorrupt
	}
	b := c.data[c.off]
	c.off++
	return b, nil
}

// Next returns the next n bytes without copying.
func (c *Cursor) Next(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, ErrCorrupt
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

// Block reads a length-prefixed byte block.
func (c *Cursor) Block() ([]byte, error) {
	n, err := c.Len()
	if err != nil {
		return nil, err
	}
	return c.Next(n)
}

// Str reads a length-prefixed string.
func (c *Cursor) Str() (string, error) {
	b, err := c.Block()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
