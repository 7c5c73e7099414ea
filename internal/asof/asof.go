// Package asof implements the backward, time-respecting join used by every
// history transform.
package asof

import (
	"errors"
	"fmt"
	"sort"

	"github.com/chronicle-db/pitfeat/internal/frame"
)

// ErrUnsorted is returned when the auxiliary frame is not sorted by
// (By..., RightOn).
var ErrUnsorted = errors.New("as-of join: auxiliary frame not sorted by key and time")

// DefaultSuffix is appended to auxiliary columns that collide with base names.
const DefaultSuffix = "_right"

// Options configures a join.
type Options struct {
	// LeftOn is the base time column.
	LeftOn string
	// RightOn is the auxiliary time column. Defaults to LeftOn.
	RightOn string
	// By lists partition key columns present in both frames.
	By []string
	// AllowExactMatches makes an auxiliary row with RightOn == LeftOn eligible.
	AllowExactMatches bool
	// Suffix for colliding names. Defaults to DefaultSuffix.
	Suffix string
}

// Join attaches to every base row the auxiliary row of the same partition with
// the largest time at or before (or strictly before) the base time.
//
// When several auxiliary rows share the maximal eligible time, the last one in
// (key, time) order wins. Base rows without an eligible match, or with a null
// time or key, receive nulls. Base row order is preserved.
func Join(base, aux *frame.Frame, opts Options) (*frame.Frame, error) {
	if opts.LeftOn == "" {
		return nil, errors.New("as-of join: LeftOn is required")
	}
	if opts.RightOn == "" {
		opts.RightOn = opts.LeftOn
	}
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}

	leftTime, err := base.TimeColumn(opts.LeftOn)
	if err != nil {
		return nil, fmt.Errorf("as-of join base: %w", err)
	}
	rightTime, err := aux.TimeColumn(opts.RightOn)
	if err != nil {
		return nil, fmt.Errorf("as-of join aux: %w", err)
	}
	baseKeys, baseOK, err := base.RowKeys(opts.By...)
	if err != nil {
		return nil, fmt.Errorf("as-of join base: %w", err)
	}
	auxParts, err := aux.Partition(opts.By...)
	if err != nil {
		return nil, fmt.Errorf("as-of join aux: %w", err)
	}

	lookup := make(map[string]int, len(auxParts.Keys))
	for i, k := range auxParts.Keys {
		lookup[k] = i
		if err := checkSorted(rightTime, auxParts.Rows[i]); err != nil {
			return nil, err
		}
	}

	match := make([]int, base.Len())
	for r := range match {
		match[r] = -1
		if !baseOK[r] {
			continue
		}
		t, ok := leftTime.Int(r)
		if !ok {
			continue
		}
		p, ok := lookup[baseKeys[r]]
		if !ok {
			continue
		}
		match[r] = search(rightTime, auxParts.Rows[p], t, opts.AllowExactMatches)
	}

	skip := make(map[string]bool, len(opts.By)+1)
	for _, k := range opts.By {
		skip[k] = true
	}
	if opts.RightOn == opts.LeftOn {
		skip[opts.RightOn] = true
	}
	var joined []*frame.Column
	for _, c := range aux.Columns() {
		if skip[c.Name] {
			continue
		}
		joined = append(joined, c)
	}
	picked := frame.MustNew(joined...).Take(match)

	out := make([]*frame.Column, 0, picked.Width())
	for _, c := range picked.Columns() {
		if base.Has(c.Name) {
			c = c.Renamed(c.Name + opts.Suffix)
		}
		out = append(out, c)
	}
	return base.With(out...)
}

// search returns the last row in rows (sorted by time) whose time is <= t
// (or < t when exact matches are excluded), or -1.
func search(times *frame.Column, rows []int, t int64, allowExact bool) int {
	n := sort.Search(len(rows), func(i int) bool {
		v, ok := times.Int(rows[i])
		if !ok {
			return false
		}
		if allowExact {
			return v > t
		}
		return v >= t
	})
	if n == 0 {
		return -1
	}
	r := rows[n-1]
	if times.IsNull(r) {
		return -1
	}
	return r
}

// checkSorted verifies non-decreasing time within a partition. Null times
// are only allowed before the first non-null value.
func checkSorted(times *frame.Column, rows []int) error {
	seen := false
	var prev int64
	for _, r := range rows {
		v, ok := times.Int(r)
		if !ok {
			if seen {
				return ErrUnsorted
			}
			continue
		}
		if seen && v < prev {
			return ErrUnsorted
		}
		prev, seen = v, true
	}
	return nil
}
