// Package bits provides MSB-first bit streams for the column codecs.
package bits

import "errors"

// ErrShort is returned when a Reader runs out of input.
var ErrShort = errors.New("bits: out of bits")

// Writer appends bits to a byte buffer, most significant bit first.
type Writer struct {
	buf   []byte
	acc   uint64
	nbits uint
}

// NewWriter creates a new bit writer.
func NewWriter() *Writer {
	return &Writer{}
}

// WriteBit writes the low bit of bit.
func (w *Writer) WriteBit(bit uint8) {
	w.WriteBits(uint64(bit&1), 1)
}

// WriteBits writes the low n bits of value, n in [0, 64].
func (w *Writer) WriteBits(value uint64, n int) {
	for n > 0 {
		// Fill the accumulator up to a whole byte at a time.
		take := min(n, 8-int(w.nbits%8))
		shift := n - take
		chunk := (value >> uint(shift)) & (1<<uint(take) - 1)
		w.acc = w.acc<<uint(take) | chunk
		w.nbits += uint(take)
		n = shift
		if w.nbits == 8 {
			w.buf = append(w.buf, byte(w.acc))
			w.acc, w.nbits = 0, 0
		}
	}
}

// Len returns the number of bits written so far.
func (w *Writer) Len() int {
	return len(w.buf)*8 + int(w.nbits)
}

// Bytes returns the stream, zero-padding the final partial byte.
func (w *Writer) Bytes() []byte {
	if w.nbits > 0 {
		w.buf = append(w.buf, byte(w.acc<<(8-w.nbits)))
		w.acc, w.nbits = 0, 0
	}
	return w.buf
}

// Reader consumes bits written by a Writer.
type Reader struct {
	buf []byte
	pos int // bit offset
}

// NewReader creates a new bit reader.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (uint8, error) {
	if r.pos >= len(r.buf)*8 {
		return 0, ErrShort
	}
	b := r.buf[r.pos/8] >> (7 - uint(r.pos%8)) & 1
	r.pos++
	return b, nil
}

// ReadBits reads n bits, n in [0, 64].
func (r *Reader) ReadBits(n int) (uint64, error) {
	if r.pos+n > len(r.buf)*8 {
		return 0, ErrShort
	}
	var out uint64
	for n > 0 {
		off := r.pos % 8
		take := min(n, 8-off)
		cur := uint64(r.buf[r.pos/8]) >> uint(8-off-take) & (1<<uint(take) - 1)
		out = out<<uint(take) | cur
		r.pos += take
		n -= take
	}
	return out, nil
}
