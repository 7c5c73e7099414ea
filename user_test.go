package pitfeat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-db/pitfeat/internal/frame"
	"github.com/chronicle-db/pitfeat/internal/testutil"
)

func userHistoryFixture() (df, users *frame.Frame, cfg UserHistoryConfig) {
	users = frame.MustNew(
		frame.Strings("user_id_hashed", []string{"u", "u", "u"}),
		frame.Times("ts_hour", testutil.Hours(3, 1, 2)),
		frame.Floats("total_click", []float64{4, 2, 0}),
		frame.Floats("total_order", []float64{0, 1, 0}),
	)
	df = frame.MustNew(
		frame.Strings("user_id_hashed", []string{"u", "u", "u", "v"}),
		frame.Times("ts_hour", testutil.Hours(2, 4, 0, 5)),
	)
	cfg = UserHistoryConfig{
		UserCol:     "user_id_hashed",
		TimeCol:     "ts_hour",
		Counters:    []string{"total_click", "total_order"},
		RatioGroups: []Pair{P("total_click", "total_order")},
		Alias:       "user_sitewide",
		Weights:     map[string]float64{"total_click": 0.5, "total_order": 1},
		StdWindow:   10,
		StdNulls:    StdNullsFill,
	}
	return df, users, cfg
}

func TestUserHistory(t *testing.T) {
	df, users, cfg := userHistoryFixture()
	out, err := UserHistory(df, users, cfg)
	require.NoError(t, err)
	require.Equal(t, df.Len(), out.Len())

	tests := []struct {
		column string
		want   []float64
	}{
		// Rows see history strictly before their hour; cold starts read 0.
		{"user_sitewide_total_click_sum", []float64{2, 6, 0, 0}},
		{"user_sitewide_total_click_max", []float64{2, 4, 0, 0}},
		{"user_sitewide_total_click_avg", []float64{2, 2, 0, 0}},
		{"user_sitewide_total_click_active_session_count", []float64{1, 2, 0, 0}},
		{"user_sitewide_session_count", []float64{1, 3, 0, 0}},
		{"user_sitewide_total_click_to_total_order_avg_ratio", []float64{0.5, 1.0 / 6, 0, 0}},
		{"user_sitewide_weighted_sum_score", []float64{2, 4, 0, 0}},
		{"user_sitewide_total_click", []float64{2, 4, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			assert.InDeltaSlice(t, tt.want, testutil.Floats(t, out, tt.column), 1e-9)
		})
	}

	std := testutil.Floats(t, out, "user_sitewide_total_click_std")
	assert.Equal(t, 0.0, std[0], "single sample deviation is filled")
	assert.Greater(t, std[1], 0.0)
}

func TestUserHistoryExactMatch(t *testing.T) {
	df, users, cfg := userHistoryFixture()
	cfg.ExactMatch = true
	out, err := UserHistory(df, users, cfg)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2, 6, 0, 0}, testutil.Floats(t, out, "user_sitewide_total_click_sum"), 1e-9)
	assert.InDeltaSlice(t, []float64{1, 2, 0, 0}, testutil.Floats(t, out, "user_sitewide_total_click_avg"), 1e-9)
}

func TestUserHistoryKeepStdNulls(t *testing.T) {
	df, users, cfg := userHistoryFixture()
	cfg.StdNulls = StdNullsKeep
	out, err := UserHistory(df, users, cfg)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, true, true}, testutil.Nulls(t, out, "user_sitewide_total_click_std"))
	assert.Equal(t, []bool{false, false, false, false}, testutil.Nulls(t, out, "user_sitewide_total_click_sum"))
}

func TestUserHistoryErrors(t *testing.T) {
	df, users, cfg := userHistoryFixture()

	tests := []struct {
		name   string
		mutate func(*UserHistoryConfig)
		want   error
	}{
		{"no counters", func(c *UserHistoryConfig) { c.Counters = nil }, ErrConfig},
		{"unknown ratio counter", func(c *UserHistoryConfig) { c.RatioGroups = []Pair{P("total_click", "total_fav")} }, ErrConfig},
		{"unknown weight", func(c *UserHistoryConfig) { c.Weights = map[string]float64{"total_fav": 1} }, ErrConfig},
		{"bad std policy", func(c *UserHistoryConfig) { c.StdNulls = "drop" }, ErrConfig},
		{"missing counter column", func(c *UserHistoryConfig) {
			c.Counters = append(c.Counters, "total_fav")
		}, ErrSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.Counters = append([]string(nil), cfg.Counters...)
			tt.mutate(&c)
			_, err := UserHistory(df, users, c)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTermToUserRatios(t *testing.T) {
	df := frame.MustNew(
		frame.Floats("user_search_total_search_click_sum", []float64{10, 0}),
		frame.Floats("user_top_terms_total_search_click_sum", []float64{4, 3}),
	)
	cfg := DefaultTermRatioConfig()
	cfg.Counters = []string{"total_search_click"}
	cfg.CalcTypes = []string{"sum"}

	out, err := TermToUserRatios(df, cfg)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.4, 0}, testutil.Floats(t, out, "term_to_user_total_search_click_sum_ratio"))

	cfg.CalcTypes = []string{"avg"}
	_, err = TermToUserRatios(df, cfg)
	assert.ErrorIs(t, err, ErrSchema)

	cfg.CalcTypes = []string{"median"}
	_, err = TermToUserRatios(df, cfg)
	assert.ErrorIs(t, err, ErrConfig)
}
