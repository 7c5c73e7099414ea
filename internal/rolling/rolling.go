package rolling

import (
	"errors"
	"fmt"
)

// ErrUnsorted is returned when calendar window times are not non-decreasing.
var ErrUnsorted = errors.New("rolling: times not sorted")

// Count returns, for every position i, the aggregate over the trailing n
// values ending at i (inclusive). Windows shorter than n at the start of the
// sequence are still reported (min_periods = 1). n < 1 is treated as
// unbounded, which makes Count cumulative.
func Count(values []float64, n int) []Agg {
	out := make([]Agg, len(values))
	w := NewWindow()
	for i, v := range values {
		w.Push(v)
		if n > 0 && w.Len() > n {
			w.Pop()
		}
		out[i] = w.Agg()
	}
	return out
}

// Cumulative is Count with an unbounded window.
func Cumulative(values []float64) []Agg {
	return Count(values, 0)
}

// Calendar returns, for every position i, the aggregate over values whose
// time lies in the closed-left interval [times[i]-period, times[i]). Rows
// sharing a time therefore see the same window and never see each other.
func Calendar(times []int64, values []float64, period int64) ([]Agg, error) {
	if len(times) != len(values) {
		return nil, fmt.Errorf("rolling: %d times for %d values", len(times), len(values))
	}
	if period <= 0 {
		return nil, fmt.Errorf("rolling: period must be positive, got %d", period)
	}
	for i := 1; i < len(times); i++ {
		if times[i] < times[i-1] {
			return nil, fmt.Errorf("%w at position %d", ErrUnsorted, i)
		}
	}

	out := make([]Agg, len(values))
	w := NewWindow()
	lo, hi := 0, 0
	for i, t := range times {
		for hi < len(times) && times[hi] < t {
			w.Push(values[hi])
			hi++
		}
		for lo < hi && times[lo] < t-period {
			w.Pop()
			lo++
		}
		out[i] = w.Agg()
	}
	return out, nil
}
