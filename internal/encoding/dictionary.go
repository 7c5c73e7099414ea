package encoding

import "encoding/binary"

// StringDictionary assigns dense indices to distinct strings in first-seen
// order.
type StringDictionary struct {
	index map[string]uint64
	items []string
}

// NewStringDictionary creates a new string dictionary.
func NewStringDictionary() *StringDictionary {
	return &StringDictionary{index: make(map[string]uint64)}
}

// Add adds a value to the dictionary and returns its index.
func (d *StringDictionary) Add(value string) uint64 {
	if idx, ok := d.index[value]; ok {
		return idx
	}
	idx := uint64(len(d.items))
	d.items = append(d.items, value)
	d.index[value] = idx
	return idx
}

// Len returns the number of distinct strings.
func (d *StringDictionary) Len() int { return len(d.items) }

// Lookup returns the string at idx.
func (d *StringDictionary) Lookup(idx uint64) (string, bool) {
	if idx >= uint64(len(d.items)) {
		return "", false
	}
	return d.items[idx], true
}

// EncodeDictionary writes the distinct strings of values followed by one
// varint index per value.
func EncodeDictionary(values []string) []byte {
	d := NewStringDictionary()
	refs := make([]uint64, len(values))
	for i, v := range values {
		refs[i] = d.Add(v)
	}
	out := binary.AppendUvarint(nil, uint64(d.Len()))
	for _, s := range d.items {
		out = AppendString(out, s)
	}
	out = binary.AppendUvarint(out, uint64(len(refs)))
	for _, r := range refs {
		out = binary.AppendUvarint(out, r)
	}
	return out
}

// DecodeDictionary decodes dictionary-encoded strings.
func DecodeDictionary(data []byte) ([]string, error) {
	c := NewCursor(data)
	size, err := c.Len()
	if err != nil {
		return nil, err
	}
	d := NewStringDictionary()
	for i := 0; i < size; i++ {
		s, err := c.Str()
		if err != nil {
			return nil, err
		}
		d.Add(s)
	}
	if d.Len() != size {
		// Duplicate entries would shift every later index.
		return nil, ErrCorrupt
	}
	n, err := c.Len()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		r, err := c.Uvarint()
		if err != nil {
			return nil, err
		}
		s, ok := d.Lookup(r)
		if !ok {
			return nil, ErrCorrupt
		}
		out[i] = s
	}
	return out, nil
}
