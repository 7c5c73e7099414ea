package encoding

import (
	"encoding/binary"
	"math"
	stdbits "math/bits"

	"github.com/chronicle-db/pitfeat/internal/bits"
)

// GorillaEncoder compresses float64 values by XOR against the previous
// value. Repeated values cost one bit; slowly changing feature columns reuse
// the previous meaningful-bit window.
type GorillaEncoder struct {
	bw        *bits.Writer
	prev      uint64
	lz, tz    int
	hasWindow bool
	count     int
}

// NewGorillaEncoder creates a new Gorilla encoder.
func NewGorillaEncoder() *GorillaEncoder {
	return &GorillaEncoder{bw: bits.NewWriter()}
}

// Encode adds a value to the compressed stream.
func (e *GorillaEncoder) Encode(value float64) {
	v := math.Float64bits(value)
	defer func() { e.prev = v; e.count++ }()
	if e.count == 0 {
		e.bw.WriteBits(v, 64)
		return
	}

	xor := v ^ e.prev
	if xor == 0 {
		e.bw.WriteBit(0)
		return
	}
	e.bw.WriteBit(1)

	// The leading-zero count is stored in five bits.
	lz := min(stdbits.LeadingZeros64(xor), 31)
	tz := stdbits.TrailingZeros64(xor)
	if e.hasWindow && lz >= e.lz && tz >= e.tz {
		e.bw.WriteBit(0)
		e.bw.WriteBits(xor>>uint(e.tz), 64-e.lz-e.tz)
		return
	}
	meaningful := 64 - lz - tz
	e.bw.WriteBit(1)
	e.bw.WriteBits(uint64(lz), 5)
	// meaningful is in [1, 64]; store it minus one in six bits.
	e.bw.WriteBits(uint64(meaningful-1), 6)
	e.bw.WriteBits(xor>>uint(tz), meaningful)
	e.lz, e.tz, e.hasWindow = lz, tz, true
}

// Bytes returns the count-prefixed compressed stream.
func (e *GorillaEncoder) Bytes() []byte {
	return append(binary.AppendUvarint(nil, uint64(e.count)), e.bw.Bytes()...)
}

// EncodeGorilla compresses a slice of float64 values.
func EncodeGorilla(values []float64) []byte {
	enc := NewGorillaEncoder()
	for _, v := range values {
		enc.Encode(v)
	}
	return enc.Bytes()
}

// DecodeGorilla decompresses Gorilla-encoded data.
func DecodeGorilla(data []byte) ([]float64, error) {
	n, k := binary.Uvarint(data)
	if k <= 0 || n > uint64(len(data)-k)*8 {
		return nil, ErrCorrupt
	}
	br := bits.NewReader(data[k:])
	out := make([]float64, n)
	var prev uint64
	var lz, tz int
	for i := range out {
		if i == 0 {
			v, err := br.ReadBits(64)
			if err != nil {
				return nil, ErrCorrupt
			}
			prev = v
			out[i] = math.Float64frombits(prev)
			continue
		}
		changed, err := br.ReadBit()
		if err != nil {
			return nil, ErrCorrupt
		}
		if changed == 1 {
			control, err := br.ReadBit()
			if err != nil {
				return nil, ErrCorrupt
			}
			if control == 1 {
				l, err := br.ReadBits(5)
				if err != nil {
					return nil, ErrCorrupt
				}
				m, err := br.ReadBits(6)
				if err != nil {
					return nil, ErrCorrupt
				}
				lz = int(l)
				tz = 64 - lz - int(m+1)
				if tz < 0 {
					return nil, ErrCorrupt
				}
			}
			xor, err := br.ReadBits(64 - lz - tz)
			if err != nil {
				return nil, ErrCorrupt
			}
			prev ^= xor << uint(tz)
		}
		out[i] = math.Float64frombits(prev)
	}
	return out, nil
}
