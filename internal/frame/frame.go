// Package frame provides the immutable columnar relation every transform
// consumes and produces.
//
// Frames never change after construction: every operation returns a new
// Frame, sharing column storage with its inputs where the data is unchanged.
package frame

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	// ErrColumnNotFound is returned when a referenced column is absent.
	ErrColumnNotFound = errors.New("column not found")

	// ErrLengthMismatch is returned when columns of different lengths are combined.
	ErrLengthMismatch = errors.New("column length mismatch")

	// ErrKindMismatch is returned when a column has an unexpected kind.
	ErrKindMismatch = errors.New("column kind mismatch")
)

// keySep separates parts of a composite row key.
const keySep = "\x1f"

// Frame is an ordered set of equally long named columns.
type Frame struct {
	cols  []*Column
	index map[string]int
	rows  int
}

// New builds a frame. Column names must be unique and lengths equal.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := f.index[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q", c.Name)
		}
		if i == 0 {
			f.rows = c.Len()
		} else if c.Len() != f.rows {
			return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrLengthMismatch, c.Name, c.Len(), f.rows)
		}
		f.index[c.Name] = i
		f.cols = append(f.cols, c)
	}
	return f, nil
}

// MustNew is like New but panics on error. Intended for fixtures.
func MustNew(cols ...*Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.rows }

// Width returns the number of columns.
func (f *Frame) Width() int { return len(f.cols) }

// Names returns column names in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.cols))
	for i, c := range f.cols {
		out[i] = c.Name
	}
	return out
}

// Has reports whether a column exists.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return f.cols[i], nil
}

// Columns returns the columns in order.
func (f *Frame) Columns() []*Column {
	return slices.Clone(f.cols)
}

// Require checks that every named column exists and returns the first missing one.
func (f *Frame) Require(names ...string) error {
	for _, n := range names {
		if !f.Has(n) {
			return fmt.Errorf("%w: %q", ErrColumnNotFound, n)
		}
	}
	return nil
}

// With returns a frame with cols appended; same-named columns are replaced in place.
func (f *Frame) With(cols ...*Column) (*Frame, error) {
	out := slices.Clone(f.cols)
	index := make(map[string]int, len(out)+len(cols))
	for k, v := range f.index {
		index[k] = v
	}
	for _, c := range cols {
		if len(out) > 0 && c.Len() != f.rows {
			return nil, fmt.Errorf("%w: %q has %d rows, want %d", ErrLengthMismatch, c.Name, c.Len(), f.rows)
		}
		if i, ok := index[c.Name]; ok {
			out[i] = c
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}
	rows := f.rows
	if len(f.cols) == 0 && len(cols) > 0 {
		rows = cols[0].Len()
	}
	return &Frame{cols: out, index: index, rows: rows}, nil
}

// Select returns a frame with only the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = f.rows
	return out, nil
}

// Drop returns a frame without the named columns. Missing names are ignored.
func (f *Frame) Drop(names ...string) *Frame {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	cols := make([]*Column, 0, len(f.cols))
	for _, c := range f.cols {
		if !skip[c.Name] {
			cols = append(cols, c)
		}
	}
	out := MustNew(cols...)
	out.rows = f.rows
	return out
}

// Rename returns a frame with columns renamed per mapping.
func (f *Frame) Rename(mapping map[string]string) (*Frame, error) {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		if to, ok := mapping[c.Name]; ok {
			cols[i] = c.Renamed(to)
		} else {
			cols[i] = c
		}
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = f.rows
	return out, nil
}

// Take gathers rows by index. An index of -1 produces a null row.
func (f *Frame) Take(idx []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, c := range f.cols {
		cols[i] = c.take(idx)
	}
	out := &Frame{cols: cols, index: f.index, rows: len(idx)}
	return out
}

// SortIndex returns the stable row permutation ordering by keys ascending.
// Nulls sort first.
func (f *Frame) SortIndex(keys ...string) ([]int, error) {
	cols := make([]*Column, len(keys))
	for i, k := range keys {
		c, err := f.Column(k)
		if err != nil {
			return nil, err
		}
		cols[i] = c
	}
	idx := make([]int, f.rows)
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		for _, c := range cols {
			if r := c.compare(a, b); r != 0 {
				return r
			}
		}
		return 0
	})
	return idx, nil
}

// SortBy returns the frame stably sorted by keys.
func (f *Frame) SortBy(keys ...string) (*Frame, error) {
	idx, err := f.SortIndex(keys...)
	if err != nil {
		return nil, err
	}
	return f.Take(idx), nil
}

// RowKeys renders a composite key per row. ok[i] is false when any key part is null.
func (f *Frame) RowKeys(keys ...string) (out []string, ok []bool, err error) {
	cols := make([]*Column, len(keys))
	for i, k := range keys {
		if cols[i], err = f.Column(k); err != nil {
			return nil, nil, err
		}
	}
	out = make([]string, f.rows)
	ok = make([]bool, f.rows)
	parts := make([]string, len(cols))
	for r := 0; r < f.rows; r++ {
		valid := true
		for j, c := range cols {
			p, present := c.keyPart(r)
			if !present {
				valid = false
				p = "\x00"
			}
			parts[j] = p
		}
		out[r] = strings.Join(parts, keySep)
		ok[r] = valid
	}
	return out, ok, nil
}

// Partitions groups row indices by composite key.
type Partitions struct {
	// Keys lists partition keys in first-appearance order.
	Keys []string
	// Rows holds the row indices of each partition, in frame order.
	Rows [][]int
	// Of maps each row to its partition position.
	Of []int
}

// Partition groups rows by the key columns. Null key parts form their own group.
func (f *Frame) Partition(keys ...string) (*Partitions, error) {
	rowKeys, _, err := f.RowKeys(keys...)
	if err != nil {
		return nil, err
	}
	p := &Partitions{Of: make([]int, f.rows)}
	pos := make(map[string]int)
	for r, k := range rowKeys {
		i, ok := pos[k]
		if !ok {
			i = len(p.Keys)
			pos[k] = i
			p.Keys = append(p.Keys, k)
			p.Rows = append(p.Rows, nil)
		}
		p.Rows[i] = append(p.Rows[i], r)
		p.Of[r] = i
	}
	return p, nil
}

// LeftJoin joins right onto f by equal key columns. Every left row is kept;
// a left row matching several right rows is repeated. Null keys never match.
// Right columns that collide with left names get suffix appended.
func (f *Frame) LeftJoin(right *Frame, on []string, suffix string) (*Frame, error) {
	leftKeys, leftOK, err := f.RowKeys(on...)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	rightKeys, rightOK, err := right.RowKeys(on...)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}
	lookup := make(map[string][]int, right.rows)
	for r, k := range rightKeys {
		if rightOK[r] {
			lookup[k] = append(lookup[k], r)
		}
	}

	leftIdx := make([]int, 0, f.rows)
	rightIdx := make([]int, 0, f.rows)
	for r, k := range leftKeys {
		matches := lookup[k]
		if !leftOK[r] || len(matches) == 0 {
			leftIdx = append(leftIdx, r)
			rightIdx = append(rightIdx, -1)
			continue
		}
		for _, m := range matches {
			leftIdx = append(leftIdx, r)
			rightIdx = append(rightIdx, m)
		}
	}

	left := f.Take(leftIdx)
	joinKeys := make(map[string]bool, len(on))
	for _, k := range on {
		joinKeys[k] = true
	}
	var extra []*Column
	for _, c := range right.cols {
		if joinKeys[c.Name] {
			continue
		}
		g := c.take(rightIdx)
		if left.Has(g.Name) {
			g.Name += suffix
		}
		extra = append(extra, g)
	}
	return left.With(extra...)
}

// FillNull replaces nulls in the named numeric columns with v.
func (f *Frame) FillNull(v float64, names ...string) (*Frame, error) {
	cols := make([]*Column, 0, len(names))
	for _, n := range names {
		c, err := f.Column(n)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c.FillNull(v))
	}
	return f.With(cols...)
}

// FloatColumn returns the named column as a Float column.
func (f *Frame) FloatColumn(name string) (*Column, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if !c.Numeric() {
		return nil, fmt.Errorf("%w: %q is %s, want numeric", ErrKindMismatch, name, c.Kind)
	}
	return c.AsFloats()
}

// TimeColumn returns the named column, which must be Time or Int.
func (f *Frame) TimeColumn(name string) (*Column, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindTime && c.Kind != KindInt {
		return nil, fmt.Errorf("%w: %q is %s, want time", ErrKindMismatch, name, c.Kind)
	}
	return c, nil
}
