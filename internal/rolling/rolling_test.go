package rolling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	aggs := Count([]float64{1, 2, 3, 10}, 3)
	require.Len(t, aggs, 4)

	tests := []struct {
		name  string
		pos   int
		count int
		sum   float64
		mean  float64
		max   float64
	}{
		{name: "single value", pos: 0, count: 1, sum: 1, mean: 1, max: 1},
		{name: "partial window", pos: 1, count: 2, sum: 3, mean: 1.5, max: 2},
		{name: "full window", pos: 2, count: 3, sum: 6, mean: 2, max: 3},
		{name: "oldest evicted", pos: 3, count: 3, sum: 15, mean: 5, max: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := aggs[tt.pos]
			assert.Equal(t, tt.count, a.Count)
			assert.InDelta(t, tt.sum, a.Sum, 1e-12)
			assert.InDelta(t, tt.mean, a.Mean, 1e-12)
			assert.Equal(t, tt.max, a.Max)
		})
	}

	assert.False(t, aggs[0].StdOK, "single value has no sample deviation")
	assert.True(t, aggs[1].StdOK)
	assert.InDelta(t, 0.7071068, aggs[1].Std, 1e-6)
	assert.InDelta(t, 4.3588989, aggs[3].Std, 1e-6)
	assert.Equal(t, 2.0, aggs[3].Min)
}

func TestCumulative(t *testing.T) {
	aggs := Cumulative([]float64{3, 0, 5, 1})
	sums := make([]float64, len(aggs))
	maxes := make([]float64, len(aggs))
	for i, a := range aggs {
		sums[i], maxes[i] = a.Sum, a.Max
	}
	assert.Equal(t, []float64{3, 3, 8, 9}, sums)
	assert.Equal(t, []float64{3, 3, 5, 5}, maxes)
}

func TestWindow_PopToEmptyResets(t *testing.T) {
	w := NewWindow()
	w.Push(4)
	w.Pop()
	w.Pop()
	a := w.Agg()
	assert.Equal(t, 0, a.Count)
	assert.Equal(t, 0.0, a.Sum)

	w.Push(7)
	assert.Equal(t, 7.0, w.Agg().Min)
}

func TestCalendar_ClosedLeft(t *testing.T) {
	times := []int64{0, 10, 10, 20, 45}
	values := []float64{1, 2, 3, 4, 5}

	aggs, err := Calendar(times, values, 20)
	require.NoError(t, err)

	counts := make([]int, len(aggs))
	sums := make([]float64, len(aggs))
	for i, a := range aggs {
		counts[i], sums[i] = a.Count, a.Sum
	}
	// t=0: empty; t=10: [0] ; t=20: [0,10,10]; t=45: [25,45) empty
	assert.Equal(t, []int{0, 1, 1, 3, 0}, counts)
	assert.Equal(t, []float64{0, 1, 1, 6, 0}, sums)
	assert.Equal(t, 3.0, aggs[3].Max)
	assert.Equal(t, 1.0, aggs[3].Min)
}

func TestCalendar_Errors(t *testing.T) {
	_, err := Calendar([]int64{5, 1}, []float64{1, 1}, 10)
	require.ErrorIs(t, err, ErrUnsorted)

	_, err = Calendar([]int64{1}, []float64{1, 2}, 10)
	require.Error(t, err)

	_, err = Calendar([]int64{1}, []float64{1}, 0)
	require.Error(t, err)
}
