package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecayWeight_HalfLife(t *testing.T) {
	for _, life := range []float64{1, 3, 7.5} {
		assert.InDelta(t, 0.5, DecayWeight(life, life, Ln05), 1e-12)
	}

	prev := DecayWeight(0, 3, Ln05)
	assert.Equal(t, 1.0, prev)
	for d := 1; d < 20; d++ {
		w := DecayWeight(float64(d), 3, Ln05)
		assert.Less(t, w, prev)
		prev = w
	}
}

func TestWilsonLowerBound(t *testing.T) {
	tests := []struct {
		name string
		p, n float64
		want float64
	}{
		{name: "no trials", p: 0.7, n: 0, want: 0},
		{name: "zero successes", p: 0, n: 10, want: 0},
		{name: "zero successes single trial", p: 0, n: 1, want: 0},
		{name: "zero successes large sample", p: 0, n: 57, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WilsonLowerBound(tt.p, tt.n, 1.96))
		})
	}

	t.Run("below observed proportion", func(t *testing.T) {
		got := WilsonLowerBound(0.8, 50, 1.96)
		assert.Greater(t, got, 0.0)
		assert.Less(t, got, 0.8)
		assert.InDelta(t, 0.6696, got, 1e-3)
	})

	t.Run("clamps proportion", func(t *testing.T) {
		assert.Equal(t, WilsonLowerBound(1, 5, 1.96), WilsonLowerBound(3, 5, 1.96))
		assert.False(t, math.IsNaN(WilsonLowerBound(3, 5, 1.96)))
	})
}

func TestSmoothedRatio(t *testing.T) {
	assert.Equal(t, 0.5, SmoothedRatio(0, 0, 1, 1))
	assert.Equal(t, 0.0, SmoothedRatio(0, 0, 0, 0))
	assert.InDelta(t, 4.0/12.0, SmoothedRatio(3, 10, 1, 1), 1e-12)
}

func TestSafeRatio(t *testing.T) {
	assert.Equal(t, 0.0, SafeRatio(5, 0))
	assert.Equal(t, 2.5, SafeRatio(5, 2))
}

func TestBayesianMean(t *testing.T) {
	assert.Equal(t, 4.0, BayesianMean(0, 0, 4, 30))
	assert.InDelta(t, (10*5+30*4)/40.0, BayesianMean(10, 5, 4, 30), 1e-12)
	assert.Equal(t, 4.0, BayesianMean(0, 0, 4, 0))
}

func TestShrink(t *testing.T) {
	assert.InDelta(t, 0.25*8+0.75*2, Shrink(8, 2, 10, 30), 1e-12)
	assert.Equal(t, 2.0, Shrink(8, 2, 0, 30), "empty group falls back to global")
}

func TestLogPrice(t *testing.T) {
	assert.Equal(t, 0.0, LogPrice(0, 5))
	assert.InDelta(t, math.Log(3), LogPrice(10, 5), 1e-12)
}

func TestMoments(t *testing.T) {
	_, ok := SampleStdDev([]float64{4})
	assert.False(t, ok)

	sd, ok := SampleStdDev([]float64{1, 2, 3, 4})
	require.True(t, ok)
	assert.InDelta(t, 1.2909944, sd, 1e-6)

	m, ok := Mean([]float64{1, 2, 6})
	require.True(t, ok)
	assert.Equal(t, 3.0, m)

	_, ok = Median(nil)
	assert.False(t, ok)
	med, _ := Median([]float64{4, 1, 3, 2})
	assert.Equal(t, 2.5, med)
	med, _ = Median([]float64{5, 1, 3})
	assert.Equal(t, 3.0, med)
}

func TestRankMin(t *testing.T) {
	tests := []struct {
		name       string
		values     []float64
		valid      []bool
		descending bool
		want       []int64
		wantOK     []bool
	}{
		{
			name:   "ties share the lower rank",
			values: []float64{10, 10, 5},
			want:   []int64{2, 2, 1},
			wantOK: []bool{true, true, true},
		},
		{
			name:       "descending",
			values:     []float64{10, 10, 5, 12},
			descending: true,
			want:       []int64{2, 2, 4, 1},
			wantOK:     []bool{true, true, true, true},
		},
		{
			name:   "nulls are not ranked",
			values: []float64{3, 0, 1},
			valid:  []bool{true, false, true},
			want:   []int64{2, 0, 1},
			wantOK: []bool{true, false, true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RankMin(tt.values, tt.valid, tt.descending)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestRankMinGroups(t *testing.T) {
	values := []float64{5, 1, 9, 1}
	groups := [][]int{{0, 2}, {1, 3}}
	got, _ := RankMinGroups(values, nil, groups, false)
	assert.Equal(t, []int64{1, 1, 2, 1}, got)
}
