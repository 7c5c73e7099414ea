package encoding

import (
	"encoding/binary"
	"math"
)

// Encoding identifies how a column block is packed.
type Encoding byte

const (
	EncodingRaw Encoding = iota
	EncodingDelta
	EncodingGorilla
	EncodingDictionary
)

func (e Encoding) String() string {
	switch e {
	case EncodingRaw:
		return "raw"
	case EncodingDelta:
		return "delta"
	case EncodingGorilla:
		return "gorilla"
	case EncodingDictionary:
		return "dictionary"
	}
	return "unknown"
}

// EncodeRawInt64 encodes int64 values as fixed 8-byte little-endian words.
func EncodeRawInt64(values []int64) []byte {
	out := binary.AppendUvarint(make([]byte, 0, 8*len(values)+5), uint64(len(values)))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint64(out, uint64(v))
	}
	return out
}

// DecodeRawInt64 decodes raw-encoded int64 values.
func DecodeRawInt64(data []byte) ([]int64, error) {
	c := NewCursor(data)
	n, err := c.Uvarint()
	if err != nil || n > uint64(c.Remaining()/8) {
		return nil, ErrCorrupt
	}
	out := make([]int64, n)
	for i := range out {
		b, _ := c.Next(8)
		out[i] = int64(binary.LittleEndian.Uint64(b))
	}
	return out, nil
}

// EncodeRawFloat64 encodes float64 values as IEEE 754 bit patterns.
func EncodeRawFloat64(values []float64) []byte {
	out := binary.AppendUvarint(make([]byte, 0, 8*len(values)+5), uint64(len(values)))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))
	}
	return out
}

// DecodeRawFloat64 decodes raw-encoded float64 values.
func DecodeRawFloat64(data []byte) ([]float64, error) {
	c := NewCursor(data)
	n, err := c.Uvarint()
	if err != nil || n > uint64(c.Remaining()/8) {
		return nil, ErrCorrupt
	}
	out := make([]float64, n)
	for i := range out {
		b, _ := c.Next(8)
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return out, nil
}

// EncodeRawStrings encodes strings one after another, length-prefixed.
func EncodeRawStrings(values []string) []byte {
	out := binary.AppendUvarint(nil, uint64(len(values)))
	for _, s := range values {
		out = AppendString(out, s)
	}
	return out
}

// DecodeRawStrings decodes raw-encoded strings.
func DecodeRawStrings(data []byte) ([]string, error) {
	c := NewCursor(data)
	n, err := c.Len()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = c.Str(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EncodeRLEBool encodes booleans as alternating run lengths starting with a
// run of true values, which may be empty.
func EncodeRLEBool(values []bool) []byte {
	out := binary.AppendUvarint(nil, uint64(len(values)))
	want := true
	run := uint64(0)
	for _, v := range values {
		if v == want {
			run++
			continue
		}
		out = binary.AppendUvarint(out, run)
		want, run = v, 1
	}
	if len(values) > 0 {
		out = binary.AppendUvarint(out, run)
	}
	return out
}

// DecodeRLEBool decodes run-length encoded booleans.
func DecodeRLEBool(data []byte) ([]bool, error) {
	c := NewCursor(data)
	n, err := c.Uvarint()
	if err != nil {
		return nil, err
	}
	out := make([]bool, 0, min(n, 1<<16))
	v := true
	for uint64(len(out)) < n {
		run, err := c.Uvarint()
		if err != nil {
			return nil, err
		}
		if run > n-uint64(len(out)) {
			return nil, ErrCorrupt
		}
		for i := uint64(0); i < run; i++ {
			out = append(out, v)
		}
		v = !v
	}
	return out, nil
}

// PickInt64 returns the smaller of the delta and raw encodings of values.
func PickInt64(values []int64) (Encoding, []byte) {
	raw := EncodeRawInt64(values)
	if packed := EncodeDelta(values); len(packed) < len(raw) {
		return EncodingDelta, packed
	}
	return EncodingRaw, raw
}

// PickFloat64 returns the smaller of the Gorilla and raw encodings of values.
func PickFloat64(values []float64) (Encoding, []byte) {
	raw := EncodeRawFloat64(values)
	if packed := EncodeGorilla(values); len(packed) < len(raw) {
		return EncodingGorilla, packed
	}
	return EncodingRaw, raw
}

// PickStrings returns the smaller of the dictionary and raw encodings of
// values.
func PickStrings(values []string) (Encoding, []byte) {
	raw := EncodeRawStrings(values)
	if packed := EncodeDictionary(values); len(packed) < len(raw) {
		return EncodingDictionary, packed
	}
	return EncodingRaw, raw
}

// DecodeInt64 decodes a block produced by PickInt64.
func DecodeInt64(enc Encoding, data []byte) ([]int64, error) {
	switch enc {
	case EncodingRaw:
		return DecodeRawInt64(data)
	case EncodingDelta:
		return DecodeDelta(data)
	}
	return nil, ErrCorrupt
}

// DecodeFloat64 decodes a block produced by PickFloat64.
func DecodeFloat64(enc Encoding, data []byte) ([]float64, error) {
	switch enc {
	case EncodingRaw:
		return DecodeRawFloat64(data)
	case EncodingGorilla:
		return DecodeGorilla(data)
	}
	return nil, ErrCorrupt
}

// DecodeStrings decodes a block produced by PickStrings.
func DecodeStrings(enc Encoding, data []byte) ([]string, error) {
	switch enc {
	case EncodingRaw:
		return DecodeRawStrings(data)
	case EncodingDictionary:
		return DecodeDictionary(data)
	}
	return nil, ErrCorrupt
}
