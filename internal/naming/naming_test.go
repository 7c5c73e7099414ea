package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeature(t *testing.T) {
	tests := []struct {
		alias, metric string
		kind          Kind
		window        int
		want          string
	}{
		{"user_sitewide", "total_click", KindSum, 0, "user_sitewide_total_click_sum"},
		{"user_sitewide", "total_click", KindRaw, 0, "user_sitewide_total_click"},
		{"fashion", "total_cart", KindDecayedRollStd, 6, "fashion_total_cart_decayed_roll6_std"},
		{"user_sitewide", Pair("total_click", "total_order"), KindWindowMeanRatio, 24, "user_sitewide_total_click_to_total_order_win24h_mean_ratio"},
		{"user_sitewide", "session", KindCount, 0, "user_sitewide_session_count"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Feature(tt.alias, tt.metric, tt.kind, tt.window))
		})
	}
}

func TestEveryKindHasSuffix(t *testing.T) {
	for _, k := range Kinds() {
		s, err := k.Suffix(3)
		require.NoError(t, err)
		if k != KindRaw {
			assert.NotEmpty(t, s, "kind %d", k)
		}
		assert.NotContains(t, s, "%")
	}
}

func TestUnknownKind(t *testing.T) {
	_, err := Kind(-1).Suffix(0)
	require.Error(t, err)
	assert.Panics(t, func() { Feature("a", "b", kindCount, 0) })
}
