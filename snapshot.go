package pitfeat

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/golang/snappy"
	"golang.org/x/crypto/blake2b"

	"github.com/chronicle-db/pitfeat/internal/encoding"
	"github.com/chronicle-db/pitfeat/internal/frame"
)

var snapshotMagic = []byte("PFSN")

const (
	snapshotVersion    = 1
	snapshotHeaderSize = 4 + 1 + blake2b.Size256
)

// EncodeFrame serializes f into a self-checking snapshot.
//
// Every column picks the smaller of its packed and raw encodings: delta of
// delta for ints and times, Gorilla XOR for floats and a dictionary for
// strings. Validity masks are run-length encoded. The body is snappy
// compressed and sealed with a BLAKE2b-256 digest.
func EncodeFrame(f *Frame) ([]byte, error) {
	body := binary.AppendUvarint(nil, uint64(f.Len()))
	body = binary.AppendUvarint(body, uint64(f.Width()))
	for _, c := range f.Columns() {
		body = encoding.AppendString(body, c.Name)
		body = append(body, byte(c.Kind))
		if c.Valid == nil {
			body = append(body, 0)
		} else {
			body = append(body, 1)
			body = encoding.AppendBlock(body, encoding.EncodeRLEBool(c.Valid))
		}

		var (
			enc  encoding.Encoding
			data []byte
		)
		switch c.Kind {
		case frame.KindString:
			enc, data = encoding.PickStrings(c.Strings)
		case frame.KindFloat:
			enc, data = encoding.PickFloat64(c.Floats)
		case frame.KindInt, frame.KindTime:
			enc, data = encoding.PickInt64(c.Ints)
		default:
			return nil, fmt.Errorf("encode column %s: unknown kind %d", c.Name, c.Kind)
		}
		body = append(body, byte(enc))
		body = encoding.AppendBlock(body, data)
	}

	compressed := snappy.Encode(nil, body)
	digest := blake2b.Sum256(compressed)

	out := make([]byte, 0, snapshotHeaderSize+len(compressed))
	out = append(out, snapshotMagic...)
	out = append(out, snapshotVersion)
	out = append(out, digest[:]...)
	return append(out, compressed...), nil
}

// DecodeFrame restores a frame written by EncodeFrame. Any integrity or
// format violation is reported as ErrSnapshotCorrupt.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < snapshotHeaderSize || !bytes.Equal(data[:4], snapshotMagic) {
		return nil, fmt.Errorf("%w: bad header", ErrSnapshotCorrupt)
	}
	if v := data[4]; v != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, v)
	}
	compressed := data[snapshotHeaderSize:]
	digest := blake2b.Sum256(compressed)
	if subtle.ConstantTimeCompare(digest[:], data[5:snapshotHeaderSize]) != 1 {
		return nil, fmt.Errorf("%w: digest mismatch", ErrSnapshotCorrupt)
	}
	body, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}

	cols, err := decodeColumns(encoding.NewCursor(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	f, err := frame.New(cols...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	return f, nil
}

func decodeColumns(c *encoding.Cursor) ([]*frame.Column, error) {
	rows, err := c.Uvarint()
	if err != nil {
		return nil, err
	}
	width, err := c.Len()
	if err != nil {
		return nil, err
	}
	cols := make([]*frame.Column, 0, width)
	for i := 0; i < width; i++ {
		col, err := decodeColumn(c)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		if uint64(col.Len()) != rows {
			return nil, fmt.Errorf("column %s has %d rows, want %d", col.Name, col.Len(), rows)
		}
		cols = append(cols, col)
	}
	if c.Remaining() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", c.Remaining())
	}
	return cols, nil
}

func decodeColumn(c *encoding.Cursor) (*frame.Column, error) {
	name, err := c.Str()
	if err != nil {
		return nil, err
	}
	kind, err := c.Byte()
	if err != nil {
		return nil, err
	}
	col := &frame.Column{Name: name, Kind: frame.Kind(kind)}

	hasValid, err := c.Byte()
	if err != nil {
		return nil, err
	}
	if hasValid == 1 {
		block, err := c.Block()
		if err != nil {
			return nil, err
		}
		if col.Valid, err = encoding.DecodeRLEBool(block); err != nil {
			return nil, err
		}
	}

	enc, err := c.Byte()
	if err != nil {
		return nil, err
	}
	block, err := c.Block()
	if err != nil {
		return nil, err
	}
	switch col.Kind {
	case frame.KindString:
		col.Strings, err = encoding.DecodeStrings(encoding.Encoding(enc), block)
	case frame.KindFloat:
		col.Floats, err = encoding.DecodeFloat64(encoding.Encoding(enc), block)
	case frame.KindInt, frame.KindTime:
		col.Ints, err = encoding.DecodeInt64(encoding.Encoding(enc), block)
	default:
		return nil, fmt.Errorf("unknown kind %d", kind)
	}
	if err != nil {
		return nil, err
	}
	if col.Valid != nil && len(col.Valid) != col.Len() {
		return nil, fmt.Errorf("column %s validity length mismatch", name)
	}
	return col, nil
}
