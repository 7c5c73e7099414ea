package decay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-db/pitfeat/internal/frame"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.EntityCol = "user"
	cfg.TimeCol = "ts"
	cfg.Counters = []string{"clicks"}
	cfg.HalfLife = 1
	cfg.Windows = []int{2}
	cfg.Alias = "site"
	cfg.Parallelism = 2
	return cfg
}

func historyFrame(spike float64) *frame.Frame {
	return frame.MustNew(
		frame.Strings("user", []string{"u1", "u1", "u1", "u3"}),
		frame.Times("ts", []int64{1, 2, 3, 5}),
		frame.Floats("clicks", []float64{1, 1, spike, 9}),
	)
}

func baseFrame() *frame.Frame {
	return frame.MustNew(
		frame.Strings("user", []string{"u1", "u1", "u1", "u2", "u3"}),
		frame.Times("ts", []int64{2, 3, 4, 1, 5}),
	)
}

func floats(t *testing.T, f *frame.Frame, name string) []float64 {
	t.Helper()
	c, err := f.Column(name)
	require.NoError(t, err)
	require.Equal(t, 0, c.NullCount(), "column %s has nulls", name)
	return c.Floats
}

func TestApply_DecayScore(t *testing.T) {
	out, err := Apply(baseFrame(), historyFrame(100), testConfig())
	require.NoError(t, err)

	score := floats(t, out, "site_clicks_decay_score")
	assert.InDelta(t, 0.5, score[0], 1e-12)
	assert.InDelta(t, 0.75, score[1], 1e-12)
	assert.InDelta(t, 50.375, score[2], 1e-12)
}

func TestApply_Rolling(t *testing.T) {
	out, err := Apply(baseFrame(), historyFrame(100), testConfig())
	require.NoError(t, err)

	assert.InDelta(t, 50.5, floats(t, out, "site_clicks_roll2_mean")[2], 1e-12)
	assert.InDelta(t, 101, floats(t, out, "site_clicks_roll2_sum")[2], 1e-12)
	assert.InDelta(t, 25.125, floats(t, out, "site_clicks_decayed_roll2_mean")[2], 1e-12)
	assert.Equal(t, 100.0, floats(t, out, "site_clicks_last")[2])
	assert.Equal(t, 0.0, floats(t, out, "site_clicks_decayed_roll2_std")[0], "single sample filled")
}

func TestApply_NoLeakage(t *testing.T) {
	quiet, err := Apply(baseFrame(), historyFrame(1), testConfig())
	require.NoError(t, err)
	spiked, err := Apply(baseFrame(), historyFrame(1e6), testConfig())
	require.NoError(t, err)

	for _, name := range quiet.Names()[2:] {
		q, _ := quiet.Column(name)
		s, _ := spiked.Column(name)
		for _, r := range []int{0, 1, 3, 4} {
			assert.Equal(t, q.Floats[r], s.Floats[r], "%s row %d", name, r)
		}
	}
}

func TestApply_ColdStartIsZero(t *testing.T) {
	cfg := testConfig()
	cfg.KeepStdNulls = true
	out, err := Apply(baseFrame(), historyFrame(100), cfg)
	require.NoError(t, err)

	// u2 never appears in history; u3 only at its own timestamp.
	for _, name := range out.Names()[2:] {
		c, _ := out.Column(name)
		for _, r := range []int{3, 4} {
			assert.False(t, c.IsNull(r), "%s row %d", name, r)
			assert.Equal(t, 0.0, c.Floats[r], "%s row %d", name, r)
		}
	}
}

func TestApply_KeepStdNulls(t *testing.T) {
	cfg := testConfig()
	cfg.KeepStdNulls = true
	out, err := Apply(baseFrame(), historyFrame(100), cfg)
	require.NoError(t, err)

	std, _ := out.Column("site_clicks_decayed_roll2_std")
	assert.True(t, std.IsNull(0))
	assert.False(t, std.IsNull(1))
}

func TestApply_SecondaryKey(t *testing.T) {
	hist := frame.MustNew(
		frame.Strings("user", []string{"u1", "u1"}),
		frame.Strings("content", []string{"a", "b"}),
		frame.Times("ts", []int64{1, 2}),
		frame.Floats("clicks", []float64{4, 8}),
	)
	base := frame.MustNew(
		frame.Strings("user", []string{"u1", "u1"}),
		frame.Strings("content", []string{"a", "b"}),
		frame.Times("ts", []int64{3, 3}),
	)
	cfg := testConfig()
	cfg.SecondaryCol = "content"

	out, err := Apply(base, hist, cfg)
	require.NoError(t, err)

	// steps are per user: ts 1,2,3 -> 1,2,3
	score := floats(t, out, "site_clicks_decay_score")
	assert.InDelta(t, 4*0.25, score[0], 1e-12)
	assert.InDelta(t, 8*0.5, score[1], 1e-12)
}

func TestApply_NullEntityIsColdStart(t *testing.T) {
	hist := frame.MustNew(
		frame.NullableStrings("user", []string{"u1", "", "u1"}, []bool{true, false, true}),
		frame.Times("ts", []int64{1, 2, 2}),
		frame.Floats("clicks", []float64{1, 50, 1}),
	)
	base := frame.MustNew(
		frame.NullableStrings("user", []string{"u1", "", "u1"}, []bool{true, false, true}),
		frame.Times("ts", []int64{2, 3, 3}),
	)

	out, err := Apply(base, hist, testConfig())
	require.NoError(t, err)

	score := floats(t, out, "site_clicks_decay_score")
	assert.InDelta(t, 0.5, score[0], 1e-12)
	assert.Equal(t, 0.0, score[1])
	assert.InDelta(t, 0.75, score[2], 1e-12)
	assert.Equal(t, []float64{1, 0, 1}, floats(t, out, "site_clicks_last"))
}

func TestApply_SkipsMissingCounters(t *testing.T) {
	cfg := testConfig()
	cfg.Counters = []string{"clicks", "orders"}
	out, err := Apply(baseFrame(), historyFrame(1), cfg)
	require.NoError(t, err)

	assert.True(t, out.Has("site_clicks_decay_score"))
	assert.False(t, out.Has("site_orders_decay_score"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{name: "no counters", mutate: func(c *Config) { c.Counters = nil }, want: ErrNoCounters},
		{name: "no alias", mutate: func(c *Config) { c.Alias = "" }, want: ErrNoAlias},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := Apply(baseFrame(), historyFrame(1), cfg)
			require.ErrorIs(t, err, tt.want)
		})
	}

	cfg := testConfig()
	cfg.HalfLife = 0
	require.Error(t, cfg.Validate())
	cfg = testConfig()
	cfg.Windows = []int{0}
	require.Error(t, cfg.Validate())
}
