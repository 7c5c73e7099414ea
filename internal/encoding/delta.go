package encoding

import (
	"encoding/binary"

	"github.com/chronicle-db/pitfeat/internal/bits"
)

// dodBucket is one variable-width class of delta-of-delta values. Bucket i
// is tagged by i+1 one bits followed by a zero; values outside every bucket
// are tagged 1111 and written in full.
type dodBucket struct {
	width int
	bias  int64
}

var dodBuckets = [...]dodBucket{{7, 63}, {9, 255}, {12, 2047}}

// DeltaEncoder compresses int64 values using delta-of-delta encoding.
// Sorted timestamps on a regular grid cost one bit per value.
type DeltaEncoder struct {
	bw        *bits.Writer
	prevValue int64
	prevDelta int64
	count     int
}

// NewDeltaEncoder creates a new delta encoder.
func NewDeltaEncoder() *DeltaEncoder {
	return &DeltaEncoder{bw: bits.NewWriter()}
}

// Encode adds a value to the compressed stream.
func (e *DeltaEncoder) Encode(value int64) {
	defer func() { e.prevValue = value; e.count++ }()
	switch e.count {
	case 0:
		e.bw.WriteBits(uint64(value), 64)
		return
	case 1:
		e.prevDelta = value - e.prevValue
		e.writeZigzag(e.prevDelta)
		return
	}

	delta := value - e.prevValue
	dod := delta - e.prevDelta
	e.prevDelta = delta
	if dod == 0 {
		e.bw.WriteBit(0)
		return
	}
	for i, b := range dodBuckets {
		if dod >= -b.bias && dod <= b.bias+1 {
			e.bw.WriteBits(1<<uint(i+2)-2, i+2)
			e.bw.WriteBits(uint64(dod+b.bias), b.width)
			return
		}
	}
	e.bw.WriteBits(0b1111, 4)
	e.bw.WriteBits(uint64(dod), 64)
}

func (e *DeltaEncoder) writeZigzag(v int64) {
	for _, b := range binary.AppendUvarint(nil, uint64((v<<1)^(v>>63))) {
		e.bw.WriteBits(uint64(b), 8)
	}
}

// Bytes returns the count-prefixed compressed stream.
func (e *DeltaEncoder) Bytes() []byte {
	return append(binary.AppendUvarint(nil, uint64(e.count)), e.bw.Bytes()...)
}

// EncodeDelta compresses a slice of int64 values.
func EncodeDelta(values []int64) []byte {
	enc := NewDeltaEncoder()
	for _, v := range values {
		enc.Encode(v)
	}
	return enc.Bytes()
}

// DecodeDelta decompresses delta-encoded data.
func DecodeDelta(data []byte) ([]int64, error) {
	n, k := binary.Uvarint(data)
	if k <= 0 {
		return nil, ErrCorrupt
	}
	// One bit per value at best.
	if n > uint64(len(data)-k)*8 {
		return nil, ErrCorrupt
	}
	br := bits.NewReader(data[k:])
	out := make([]int64, n)
	var prev, delta int64
	for i := range out {
		switch i {
		case 0:
			v, err := br.ReadBits(64)
			if err != nil {
				return nil, ErrCorrupt
			}
			prev = int64(v)
		case 1:
			d, err := readZigzag(br)
			if err != nil {
				return nil, err
			}
			delta = d
			prev += delta
		default:
			dod, err := readDod(br)
			if err != nil {
				return nil, err
			}
			delta += dod
			prev += delta
		}
		out[i] = prev
	}
	return out, nil
}

func readDod(br *bits.Reader) (int64, error) {
	bit, err := br.ReadBit()
	if err != nil {
		return 0, ErrCorrupt
	}
	if bit == 0 {
		return 0, nil
	}
	for _, b := range dodBuckets {
		tag, err := br.ReadBit()
		if err != nil {
			return 0, ErrCorrupt
		}
		if tag == 0 {
			v, err := br.ReadBits(b.width)
			if err != nil {
				return 0, ErrCorrupt
			}
			return int64(v) - b.bias, nil
		}
	}
	v, err := br.ReadBits(64)
	if err != nil {
		return 0, ErrCorrupt
	}
	return int64(v), nil
}

func readZigzag(br *bits.Reader) (int64, error) {
	var (
		u     uint64
		shift uint
	)
	for shift < 64 {
		b, err := br.ReadBits(8)
		if err != nil {
			return 0, ErrCorrupt
		}
		u |= (b & 0x7f) << shift
		if b&0x80 == 0 {
			return int64(u>>1) ^ -int64(u&1), nil
		}
		shift += 7
	}
	return 0, ErrCorrupt
}
