package pitfeat

import (
	"fmt"
	"time"

	"github.com/chronicle-db/pitfeat/internal/asof"
	"github.com/chronicle-db/pitfeat/internal/estimator"
	"github.com/chronicle-db/pitfeat/internal/frame"
)

// StdNullPolicy decides what a rolling standard deviation over fewer than two
// samples becomes.
type StdNullPolicy string

const (
	// StdNullsFill reports such deviations as 0.
	StdNullsFill StdNullPolicy = "fill"
	// StdNullsKeep leaves them null for the caller to handle.
	StdNullsKeep StdNullPolicy = "keep"
)

func (p StdNullPolicy) validate(transform string) error {
	switch p {
	case StdNullsFill, StdNullsKeep:
		return nil
	}
	return newConfigError(transform, fmt.Sprintf("unknown std null policy %q", string(p)))
}

// Pair names two columns in order, e.g. a numerator and denominator source.
// In YAML it is written as a two-element list.
type Pair struct {
	First  string `yaml:"first"`
	Second string `yaml:"second"`
}

// P is shorthand for constructing a Pair.
func P(first, second string) Pair { return Pair{First: first, Second: second} }

// numbers reads a numeric column as float64 with nulls as 0.
func numbers(transform string, f *frame.Frame, name string) ([]float64, error) {
	c, err := f.FloatColumn(name)
	if err != nil {
		return nil, newSchemaError(transform, name, err)
	}
	out := make([]float64, c.Len())
	for i := range out {
		out[i] = c.FloatOr(i, 0)
	}
	return out, nil
}

// nullableNumbers reads a numeric column keeping its validity mask.
func nullableNumbers(transform string, f *frame.Frame, name string) (*frame.Column, error) {
	c, err := f.FloatColumn(name)
	if err != nil {
		return nil, newSchemaError(transform, name, err)
	}
	return c, nil
}

// rankWithin ranks a numeric column inside each partition with min ties.
// Null values receive null ranks.
func rankWithin(f *frame.Frame, partition []string, col string, descending bool, name string) (*frame.Column, error) {
	c, err := f.FloatColumn(col)
	if err != nil {
		return nil, err
	}
	p, err := f.Partition(partition...)
	if err != nil {
		return nil, err
	}
	ranks, ok := estimator.RankMinGroups(c.Floats, c.Valid, p.Rows, descending)
	return frame.NullableInts(name, ranks, ok), nil
}

// firstPerKey keeps the first row of every key, in frame order.
func firstPerKey(f *frame.Frame, keys ...string) (*frame.Frame, error) {
	p, err := f.Partition(keys...)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(p.Rows))
	for i, rows := range p.Rows {
		idx[i] = rows[0]
	}
	return f.Take(idx), nil
}

// joinedName returns the name a right-hand column receives after a join
// onto base.
func joinedName(base *frame.Frame, name string) string {
	if base.Has(name) {
		return name + asof.DefaultSuffix
	}
	return name
}

// hoursBetween returns the whole hours from b to a, truncated toward zero.
// The result is invalid when either side is null.
func hoursBetween(a, b *frame.Column, i int) (int64, bool) {
	x, ok := a.Int(i)
	if !ok {
		return 0, false
	}
	y, ok := b.Int(i)
	if !ok {
		return 0, false
	}
	return (x - y) / int64(time.Hour), true
}

// allValid returns an all-true validity mask of length n.
func allValid(n int) []bool {
	v := make([]bool, n)
	for i := range v {
		v[i] = true
	}
	return v
}

// fillStd applies policy to a deviation column.
func fillStd(c *frame.Column, policy StdNullPolicy) *frame.Column {
	if policy == StdNullsFill {
		return c.FillNull(0)
	}
	return c
}
