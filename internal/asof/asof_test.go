package asof

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-db/pitfeat/internal/frame"
)

func boundaryFrames() (*frame.Frame, *frame.Frame) {
	base := frame.MustNew(
		frame.Strings("user", []string{"u1"}),
		frame.Times("ts", []int64{5}),
	)
	aux := frame.MustNew(
		frame.Strings("user", []string{"u1", "u1"}),
		frame.Times("ts", []int64{3, 5}),
		frame.Floats("score", []float64{30, 50}),
	)
	return base, aux
}

func TestJoin_ExactMatchBoundary(t *testing.T) {
	tests := []struct {
		name       string
		allowExact bool
		want       float64
	}{
		{name: "strict resolves to earlier row", allowExact: false, want: 30},
		{name: "exact resolves to same-time row", allowExact: true, want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, aux := boundaryFrames()
			out, err := Join(base, aux, Options{LeftOn: "ts", By: []string{"user"}, AllowExactMatches: tt.allowExact})
			require.NoError(t, err)

			score, err := out.Column("score")
			require.NoError(t, err)
			v, ok := score.Float(0)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestJoin_NoEligibleRowIsNull(t *testing.T) {
	base := frame.MustNew(
		frame.Strings("user", []string{"u1", "u2"}),
		frame.Times("ts", []int64{1, 10}),
	)
	aux := frame.MustNew(
		frame.Strings("user", []string{"u1"}),
		frame.Times("ts", []int64{3}),
		frame.Floats("score", []float64{1}),
	)

	out, err := Join(base, aux, Options{LeftOn: "ts", By: []string{"user"}, AllowExactMatches: true})
	require.NoError(t, err)

	score, _ := out.Column("score")
	assert.True(t, score.IsNull(0), "aux row is in the future")
	assert.True(t, score.IsNull(1), "no aux rows for partition")
}

func TestJoin_TiePicksLastInSortOrder(t *testing.T) {
	base := frame.MustNew(
		frame.Strings("user", []string{"u1"}),
		frame.Times("ts", []int64{10}),
	)
	aux := frame.MustNew(
		frame.Strings("user", []string{"u1", "u1", "u1"}),
		frame.Times("ts", []int64{4, 4, 4}),
		frame.Floats("score", []float64{1, 2, 3}),
	)

	out, err := Join(base, aux, Options{LeftOn: "ts", By: []string{"user"}})
	require.NoError(t, err)

	score, _ := out.Column("score")
	assert.Equal(t, 3.0, score.Floats[0])
}

func TestJoin_DifferentTimeColumnsAndCollisions(t *testing.T) {
	base := frame.MustNew(
		frame.Strings("content", []string{"c1", "c1"}),
		frame.Times("date", []int64{100, 250}),
		frame.Floats("price", []float64{0, 0}),
	)
	aux := frame.MustNew(
		frame.Strings("content", []string{"c1", "c1"}),
		frame.Times("update_date", []int64{50, 200}),
		frame.Floats("price", []float64{9, 7}),
	)

	out, err := Join(base, aux, Options{LeftOn: "date", RightOn: "update_date", By: []string{"content"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"content", "date", "price", "update_date", "price_right"}, out.Names())
	pr, _ := out.Column("price_right")
	assert.Equal(t, []float64{9, 7}, pr.Floats)
	upd, _ := out.Column("update_date")
	assert.Equal(t, []int64{50, 200}, upd.Ints)
}

func TestJoin_UnsortedAuxIsRejected(t *testing.T) {
	base := frame.MustNew(
		frame.Strings("user", []string{"u1"}),
		frame.Times("ts", []int64{10}),
	)
	aux := frame.MustNew(
		frame.Strings("user", []string{"u1", "u1"}),
		frame.Times("ts", []int64{5, 3}),
	)

	_, err := Join(base, aux, Options{LeftOn: "ts", By: []string{"user"}})
	require.ErrorIs(t, err, ErrUnsorted)
}

func TestJoin_PreservesBaseOrder(t *testing.T) {
	base := frame.MustNew(
		frame.Strings("user", []string{"b", "a", "b"}),
		frame.Times("ts", []int64{9, 9, 2}),
	)
	aux := frame.MustNew(
		frame.Strings("user", []string{"a", "b", "b"}),
		frame.Times("ts", []int64{1, 1, 5}),
		frame.Floats("v", []float64{100, 200, 500}),
	)

	out, err := Join(base, aux, Options{LeftOn: "ts", By: []string{"user"}})
	require.NoError(t, err)

	v, _ := out.Column("v")
	assert.Equal(t, []float64{500, 100, 200}, v.Floats)
}
