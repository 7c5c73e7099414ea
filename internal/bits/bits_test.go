package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReader(t *testing.T) {
	tests := []struct {
		name   string
		values []uint64
		widths []int
	}{
		{"single bit", []uint64{1}, []int{1}},
		{"byte", []uint64{0b11010110}, []int{8}},
		{"64 bits", []uint64{0xDEADBEEFCAFEBABE}, []int{64}},
		{"unaligned", []uint64{0b101, 0b11, 0b1111, 0x1FFFF}, []int{3, 2, 4, 17}},
		{"zero width", []uint64{0, 0b1}, []int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter()
			total := 0
			for i, v := range tt.values {
				w.WriteBits(v, tt.widths[i])
				total += tt.widths[i]
			}
			assert.Equal(t, total, w.Len())

			r := NewReader(w.Bytes())
			for i, want := range tt.values {
				got, err := r.ReadBits(tt.widths[i])
				require.NoError(t, err)
				assert.Equal(t, want, got, "value %d", i)
			}
		})
	}
}

func TestPadding(t *testing.T) {
	w := NewWriter()
	w.WriteBit(1)
	w.WriteBit(0)
	w.WriteBit(1)
	assert.Equal(t, []byte{0b10100000}, w.Bytes())
}

func TestReaderShort(t *testing.T) {
	r := NewReader([]byte{0xFF})
	_, err := r.ReadBits(9)
	assert.ErrorIs(t, err, ErrShort)

	v, err := r.ReadBits(8)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFF), v)

	_, err = r.ReadBit()
	assert.ErrorIs(t, err, ErrShort)
}
