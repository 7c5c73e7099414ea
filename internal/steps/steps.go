// Package steps assigns dense per-entity interaction steps over the union of
// several event frames.
//
// A step counts distinct (entity, time) observations, so rows sharing a time
// bucket share a step and the sequence has no gaps for repeated observations.
package steps

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/chronicle-db/pitfeat/internal/frame"
)

// Column is the name of the step column produced by Sequence.
const Column = "interaction_step"

// ErrNullTime is returned when a time value needed for sequencing is null.
var ErrNullTime = errors.New("steps: null timestamp")

type pair struct {
	key  string
	time int64
}

// source locates the first row a pair was observed in.
type source struct {
	frame int
	row   int
}

// Sequence returns a mapping frame (entity..., timeCol, interaction_step).
// Steps start at 1 for every entity and increase strictly with time.
func Sequence(entity []string, timeCol string, frames ...*frame.Frame) (*frame.Frame, error) {
	if len(frames) == 0 {
		return nil, errors.New("steps: at least one frame is required")
	}
	if len(entity) == 0 {
		return nil, errors.New("steps: entity columns are required")
	}

	seen := make(map[pair]struct{})
	var (
		pairs  []pair
		origin []source
	)
	for fi, f := range frames {
		keys, _, err := f.RowKeys(entity...)
		if err != nil {
			return nil, fmt.Errorf("steps: frame %d: %w", fi, err)
		}
		times, err := f.TimeColumn(timeCol)
		if err != nil {
			return nil, fmt.Errorf("steps: frame %d: %w", fi, err)
		}
		for r, k := range keys {
			t, ok := times.Int(r)
			if !ok {
				return nil, fmt.Errorf("%w in frame %d row %d", ErrNullTime, fi, r)
			}
			p := pair{key: k, time: t}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			pairs = append(pairs, p)
			origin = append(origin, source{frame: fi, row: r})
		}
	}

	order := make([]int, len(pairs))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := strings.Compare(pairs[a].key, pairs[b].key); c != 0 {
			return c
		}
		return cmp.Compare(pairs[a].time, pairs[b].time)
	})

	stepVals := make([]int64, len(order))
	timeVals := make([]int64, len(order))
	var step int64
	for i, o := range order {
		if i == 0 || pairs[o].key != pairs[order[i-1]].key {
			step = 0
		}
		step++
		stepVals[i] = step
		timeVals[i] = pairs[o].time
	}

	rows := make([]source, len(order))
	for i, o := range order {
		rows[i] = origin[o]
	}
	cols := make([]*frame.Column, 0, len(entity)+2)
	for _, name := range entity {
		c, err := gatherEntity(frames, name, rows)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	cols = append(cols, frame.Times(timeCol, timeVals), frame.Ints(Column, stepVals))
	return frame.New(cols...)
}

// gatherEntity rebuilds one entity column from the rows each pair was first
// seen in. Every frame must hold the column with the same kind.
func gatherEntity(frames []*frame.Frame, name string, rows []source) (*frame.Column, error) {
	parts := make([]*frame.Frame, len(frames))
	var kind frame.Kind
	for i, f := range frames {
		c, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			kind = c.Kind
		} else if c.Kind != kind {
			return nil, fmt.Errorf("steps: %w: %q is %s in frame %d, want %s", frame.ErrKindMismatch, name, c.Kind, i, kind)
		}
		parts[i] = f
	}

	byFrame := make([][]int, len(frames))
	for i := range byFrame {
		byFrame[i] = make([]int, len(rows))
		for j := range byFrame[i] {
			byFrame[i][j] = -1
		}
	}
	for j, s := range rows {
		byFrame[s.frame][j] = s.row
	}

	// Each output row is non-null in exactly one gathered column.
	var out *frame.Column
	for i, f := range parts {
		g, err := f.Select(name)
		if err != nil {
			return nil, err
		}
		c, _ := g.Take(byFrame[i]).Column(name)
		if out == nil {
			out = c
			continue
		}
		if out, err = frame.Coalesce(out, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Attach left-joins the step column of mapping onto f by (entity..., timeCol).
func Attach(f, mapping *frame.Frame, entity []string, timeCol string) (*frame.Frame, error) {
	on := append(slices.Clone(entity), timeCol)
	step, err := mapping.Select(append(slices.Clone(on), Column)...)
	if err != nil {
		return nil, fmt.Errorf("steps: %w", err)
	}
	out, err := f.LeftJoin(step, on, "_step")
	if err != nil {
		return nil, fmt.Errorf("steps: %w", err)
	}
	return out, nil
}
