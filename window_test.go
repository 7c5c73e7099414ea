package pitfeat

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-db/pitfeat/internal/frame"
	"github.com/chronicle-db/pitfeat/internal/testutil"
)

func windowFixture() (df, values *frame.Frame, cfg TimeWindowConfig) {
	values = frame.MustNew(
		frame.Strings("user_id_hashed", []string{"u", "u", "u", "u"}),
		frame.Times("ts_hour", testutil.Hours(24, 0, 2, 1)),
		frame.Floats("total_click", []float64{2, 1, 0, 3}),
		frame.Floats("total_order", []float64{2, 0, 0, 1}),
	)
	df = frame.MustNew(
		frame.Strings("user_id_hashed", []string{"u", "u", "u", "u"}),
		frame.Times("ts_hour", testutil.Hours(2, 1, 25, -1)),
	)
	cfg = TimeWindowConfig{
		KeyCol:     "user_id_hashed",
		TimeCol:    "ts_hour",
		Periods:    []time.Duration{24 * time.Hour},
		Counters:   []string{"total_click", "total_order"},
		RatioPairs: []Pair{P("total_click", "total_order")},
		Aggs:       []WindowAgg{AggMean, AggStd, AggSum},
		RatioAggs:  []WindowAgg{AggSum},
		Alias:      "user_sitewide",
		ExactMatch: true,
		StdNulls:   StdNullsKeep,
	}
	return df, values, cfg
}

func TestTimeWindowHistory(t *testing.T) {
	df, values, cfg := windowFixture()
	out, err := TimeWindowHistory(df, values, cfg)
	require.NoError(t, err)
	require.Equal(t, df.Len(), out.Len())

	nan := math.NaN()
	tests := []struct {
		column string
		want   []float64
	}{
		// The hour-24 window [0h, 24h) keeps its left edge.
		{"user_sitewide_total_click_win24h_sum", []float64{4, 1, 4, nan}},
		{"user_sitewide_total_click_win24h_mean", []float64{2, 1, 4.0 / 3, nan}},
		{"user_sitewide_total_order_win24h_sum", []float64{1, 0, 1, nan}},
		{"user_sitewide_total_click_to_total_order_win24h_sum_ratio", []float64{0.25, 0, 0.25, nan}},
		{"user_sitewide_total_click_lag1", []float64{3, 1, 0, nan}},
		{"user_sitewide_total_click_win24h_std", []float64{math.Sqrt2, nan, math.Sqrt(7.0 / 3), nan}},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got := testutil.Floats(t, out, tt.column)
			require.Len(t, got, len(tt.want))
			for i := range got {
				if math.IsNaN(tt.want[i]) {
					assert.True(t, math.IsNaN(got[i]), "row %d want null, got %v", i, got[i])
					continue
				}
				assert.InDelta(t, tt.want[i], got[i], 1e-9, "row %d", i)
			}
		})
	}
}

func TestTimeWindowHistoryFirstRowLag(t *testing.T) {
	df := frame.MustNew(
		frame.Strings("user_id_hashed", []string{"u"}),
		frame.Times("ts_hour", testutil.Hours(0)),
	)
	_, values, cfg := windowFixture()
	out, err := TimeWindowHistory(df, values, cfg)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, testutil.Nulls(t, out, "user_sitewide_total_click_lag1"))
	assert.Equal(t, []bool{true}, testutil.Nulls(t, out, "user_sitewide_total_click_win24h_mean"))
	assert.Equal(t, []float64{0}, testutil.Floats(t, out, "user_sitewide_total_click_win24h_sum"))
}

func TestTimeWindowHistoryStrict(t *testing.T) {
	df, values, cfg := windowFixture()
	cfg.ExactMatch = false
	cfg.StdNulls = StdNullsFill
	out, err := TimeWindowHistory(df, values, cfg)
	require.NoError(t, err)
	// Hour 2 now reads the row at hour 1, whose window holds hour 0 only.
	assert.InDelta(t, 1.0, testutil.Floats(t, out, "user_sitewide_total_click_win24h_sum")[0], 1e-9)
	assert.InDelta(t, 0.0, testutil.Floats(t, out, "user_sitewide_total_click_win24h_std")[0], 1e-9)
}

func TestTimeWindowConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TimeWindowConfig)
	}{
		{"fractional period", func(c *TimeWindowConfig) { c.Periods = []time.Duration{90 * time.Minute} }},
		{"no periods", func(c *TimeWindowConfig) { c.Periods = nil }},
		{"unknown agg", func(c *TimeWindowConfig) { c.Aggs = []WindowAgg{"median"} }},
		{"ratio agg not computed", func(c *TimeWindowConfig) { c.Aggs = []WindowAgg{AggSum}; c.RatioAggs = []WindowAgg{AggMean} }},
		{"unsupported ratio agg", func(c *TimeWindowConfig) { c.RatioAggs = []WindowAgg{AggMin}; c.Aggs = append(c.Aggs, AggMin) }},
		{"unknown pair counter", func(c *TimeWindowConfig) { c.RatioPairs = []Pair{P("total_click", "total_fav")} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, cfg := windowFixture()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrConfig)
		})
	}

	assert.NoError(t, DefaultTimeWindowConfig().Validate())
}
