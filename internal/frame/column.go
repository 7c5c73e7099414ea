package frame

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
)

// Kind enumerates column value types.
type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindInt
	// KindTime stores Unix nanoseconds.
	KindTime
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindTime:
		return "time"
	default:
		return "unknown"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindString; k <= KindTime; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown column kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Column is a named, typed vector with an optional validity mask.
// A nil Valid slice means every value is present. Columns are treated as
// immutable once they are part of a Frame.
type Column struct {
	Name    string
	Kind    Kind
	Strings []string
	Floats  []float64
	Ints    []int64
	Valid   []bool
}

// Strings creates a string column with every value present.
func Strings(name string, values []string) *Column {
	return &Column{Name: name, Kind: KindString, Strings: values}
}

// Floats creates a float column with every value present.
func Floats(name string, values []float64) *Column {
	return &Column{Name: name, Kind: KindFloat, Floats: values}
}

// Ints creates an integer column with every value present.
func Ints(name string, values []int64) *Column {
	return &Column{Name: name, Kind: KindInt, Ints: values}
}

// Times creates a timestamp column from Unix nanoseconds.
func Times(name string, values []int64) *Column {
	return &Column{Name: name, Kind: KindTime, Ints: values}
}

// NullableFloats creates a float column with an explicit validity mask.
func NullableFloats(name string, values []float64, valid []bool) *Column {
	return &Column{Name: name, Kind: KindFloat, Floats: values, Valid: compactValid(valid)}
}

// NullableStrings creates a string column with an explicit validity mask.
func NullableStrings(name string, values []string, valid []bool) *Column {
	return &Column{Name: name, Kind: KindString, Strings: values, Valid: compactValid(valid)}
}

// NullableInts creates an integer column with an explicit validity mask.
func NullableInts(name string, values []int64, valid []bool) *Column {
	return &Column{Name: name, Kind: KindInt, Ints: values, Valid: compactValid(valid)}
}

// NullableTimes creates a timestamp column with an explicit validity mask.
func NullableTimes(name string, values []int64, valid []bool) *Column {
	return &Column{Name: name, Kind: KindTime, Ints: values, Valid: compactValid(valid)}
}

// compactValid drops an all-true mask.
func compactValid(valid []bool) []bool {
	for _, v := range valid {
		if !v {
			return valid
		}
	}
	return nil
}

// Len returns the number of values.
func (c *Column) Len() int {
	switch c.Kind {
	case KindString:
		return len(c.Strings)
	case KindFloat:
		return len(c.Floats)
	default:
		return len(c.Ints)
	}
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool {
	return c.Valid != nil && !c.Valid[i]
}

// NullCount returns the number of null rows.
func (c *Column) NullCount() int {
	if c.Valid == nil {
		return 0
	}
	n := 0
	for _, v := range c.Valid {
		if !v {
			n++
		}
	}
	return n
}

// Numeric reports whether the column can be read as float64.
func (c *Column) Numeric() bool {
	return c.Kind == KindFloat || c.Kind == KindInt
}

// Float returns row i as float64. Int columns are converted.
func (c *Column) Float(i int) (float64, bool) {
	if c.IsNull(i) {
		return 0, false
	}
	switch c.Kind {
	case KindFloat:
		return c.Floats[i], true
	case KindInt, KindTime:
		return float64(c.Ints[i]), true
	default:
		return 0, false
	}
}

// FloatOr returns row i as float64, or def when null.
func (c *Column) FloatOr(i int, def float64) float64 {
	if v, ok := c.Float(i); ok {
		return v
	}
	return def
}

// Int returns row i of an Int or Time column.
func (c *Column) Int(i int) (int64, bool) {
	if c.IsNull(i) || (c.Kind != KindInt && c.Kind != KindTime) {
		return 0, false
	}
	return c.Ints[i], true
}

// Str returns row i of a String column.
func (c *Column) Str(i int) (string, bool) {
	if c.IsNull(i) || c.Kind != KindString {
		return "", false
	}
	return c.Strings[i], true
}

// Renamed returns a shallow copy under a new name. Data is shared.
func (c *Column) Renamed(name string) *Column {
	out := *c
	out.Name = name
	return &out
}

// take gathers rows by index; -1 produces a null row.
func (c *Column) take(idx []int) *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	var valid []bool
	setNull := func(j int) {
		if valid == nil {
			valid = make([]bool, len(idx))
			for k := range valid {
				valid[k] = true
			}
		}
		valid[j] = false
	}
	switch c.Kind {
	case KindString:
		out.Strings = make([]string, len(idx))
	case KindFloat:
		out.Floats = make([]float64, len(idx))
	default:
		out.Ints = make([]int64, len(idx))
	}
	for j, i := range idx {
		if i < 0 || c.IsNull(i) {
			setNull(j)
			continue
		}
		switch c.Kind {
		case KindString:
			out.Strings[j] = c.Strings[i]
		case KindFloat:
			out.Floats[j] = c.Floats[i]
		default:
			out.Ints[j] = c.Ints[i]
		}
	}
	out.Valid = valid
	return out
}

// compare orders rows i and j; nulls sort first.
func (c *Column) compare(i, j int) int {
	ni, nj := c.IsNull(i), c.IsNull(j)
	switch {
	case ni && nj:
		return 0
	case ni:
		return -1
	case nj:
		return 1
	}
	switch c.Kind {
	case KindString:
		return cmp.Compare(c.Strings[i], c.Strings[j])
	case KindFloat:
		return cmp.Compare(c.Floats[i], c.Floats[j])
	default:
		return cmp.Compare(c.Ints[i], c.Ints[j])
	}
}

// keyPart renders row i for composite hashing.
func (c *Column) keyPart(i int) (string, bool) {
	if c.IsNull(i) {
		return "", false
	}
	switch c.Kind {
	case KindString:
		return c.Strings[i], true
	case KindFloat:
		v := c.Floats[i]
		if math.IsNaN(v) {
			return "", false
		}
		return strconv.FormatFloat(v, 'g', -1, 64), true
	default:
		return strconv.FormatInt(c.Ints[i], 10), true
	}
}

// FillNull returns a copy of a numeric column with nulls replaced by v.
// Non-numeric columns are returned unchanged.
func (c *Column) FillNull(v float64) *Column {
	if c.Valid == nil {
		return c
	}
	switch c.Kind {
	case KindFloat:
		out := make([]float64, len(c.Floats))
		for i, x := range c.Floats {
			if c.Valid[i] {
				out[i] = x
			} else {
				out[i] = v
			}
		}
		return Floats(c.Name, out)
	case KindInt:
		out := make([]int64, len(c.Ints))
		for i, x := range c.Ints {
			if c.Valid[i] {
				out[i] = x
			} else {
				out[i] = int64(v)
			}
		}
		return Ints(c.Name, out)
	default:
		return c
	}
}

// FillNullString returns a copy of a string column with nulls replaced by s.
func (c *Column) FillNullString(s string) *Column {
	if c.Valid == nil || c.Kind != KindString {
		return c
	}
	out := make([]string, len(c.Strings))
	for i, x := range c.Strings {
		if c.Valid[i] {
			out[i] = x
		} else {
			out[i] = s
		}
	}
	return Strings(c.Name, out)
}

// AsFloats converts a numeric column to a Float column, keeping nulls.
func (c *Column) AsFloats() (*Column, error) {
	switch c.Kind {
	case KindFloat:
		return c, nil
	case KindInt, KindTime:
		out := make([]float64, len(c.Ints))
		for i, v := range c.Ints {
			out[i] = float64(v)
		}
		return &Column{Name: c.Name, Kind: KindFloat, Floats: out, Valid: c.Valid}, nil
	default:
		return nil, fmt.Errorf("column %q: cannot convert %s to float", c.Name, c.Kind)
	}
}

// Coalesce returns a column taking values from a, falling back to b where a
// is null. Both columns must share kind and length.
func Coalesce(a, b *Column) (*Column, error) {
	if a.Kind != b.Kind {
		return nil, fmt.Errorf("%w: coalesce %s with %s", ErrKindMismatch, a.Kind, b.Kind)
	}
	n := a.Len()
	if b.Len() != n {
		return nil, fmt.Errorf("%w: coalesce %d with %d rows", ErrLengthMismatch, n, b.Len())
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	out := a.take(idx)
	if out.Valid == nil {
		return out, nil
	}
	for i := 0; i < n; i++ {
		if out.Valid[i] || b.IsNull(i) {
			continue
		}
		out.Valid[i] = true
		switch a.Kind {
		case KindString:
			out.Strings[i] = b.Strings[i]
		case KindFloat:
			out.Floats[i] = b.Floats[i]
		default:
			out.Ints[i] = b.Ints[i]
		}
	}
	out.Valid = compactValid(out.Valid)
	return out, nil
}
