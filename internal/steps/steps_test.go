package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-db/pitfeat/internal/frame"
)

func TestSequence_DenseAcrossFrames(t *testing.T) {
	views := frame.MustNew(
		frame.Strings("user", []string{"u1", "u1", "u2"}),
		frame.Times("ts", []int64{30, 10, 5}),
	)
	carts := frame.MustNew(
		frame.Strings("user", []string{"u1", "u1"}),
		frame.Times("ts", []int64{10, 20}),
	)

	m, err := Sequence([]string{"user"}, "ts", views, carts)
	require.NoError(t, err)

	assert.Equal(t, []string{"user", "ts", Column}, m.Names())
	users, _ := m.Column("user")
	ts, _ := m.Column("ts")
	st, _ := m.Column(Column)
	assert.Equal(t, []string{"u1", "u1", "u1", "u2"}, users.Strings)
	assert.Equal(t, []int64{10, 20, 30, 5}, ts.Ints)
	assert.Equal(t, []int64{1, 2, 3, 1}, st.Ints)
}

func TestSequence_StrictlyIncreasingPerEntity(t *testing.T) {
	f := frame.MustNew(
		frame.Strings("user", []string{"a", "b", "a", "a", "b", "a"}),
		frame.Times("ts", []int64{4, 4, 1, 4, 9, 2}),
	)

	m, err := Sequence([]string{"user"}, "ts", f)
	require.NoError(t, err)

	users, _ := m.Column("user")
	ts, _ := m.Column("ts")
	st, _ := m.Column(Column)
	last := map[string][2]int64{}
	for i := 0; i < m.Len(); i++ {
		u := users.Strings[i]
		if prev, ok := last[u]; ok {
			assert.Greater(t, ts.Ints[i], prev[0])
			assert.Equal(t, prev[1]+1, st.Ints[i])
		} else {
			assert.Equal(t, int64(1), st.Ints[i])
		}
		last[u] = [2]int64{ts.Ints[i], st.Ints[i]}
	}
	assert.Equal(t, 5, m.Len(), "duplicate (a, 4) collapses")
}

func TestSequence_MultiColumnEntity(t *testing.T) {
	f := frame.MustNew(
		frame.Strings("user", []string{"u1", "u1", "u1"}),
		frame.Strings("term", []string{"shoes", "bags", "shoes"}),
		frame.Times("ts", []int64{3, 1, 2}),
	)

	m, err := Sequence([]string{"user", "term"}, "ts", f)
	require.NoError(t, err)

	term, _ := m.Column("term")
	st, _ := m.Column(Column)
	assert.Equal(t, []string{"bags", "shoes", "shoes"}, term.Strings)
	assert.Equal(t, []int64{1, 1, 2}, st.Ints)
}

func TestSequence_Errors(t *testing.T) {
	tests := []struct {
		name   string
		frames []*frame.Frame
		want   error
	}{
		{
			name: "null time",
			frames: []*frame.Frame{frame.MustNew(
				frame.Strings("user", []string{"u1"}),
				frame.NullableTimes("ts", []int64{0}, []bool{false}),
			)},
			want: ErrNullTime,
		},
		{
			name:   "missing time column",
			frames: []*frame.Frame{frame.MustNew(frame.Strings("user", []string{"u1"}))},
			want:   frame.ErrColumnNotFound,
		},
		{
			name: "entity kind differs between frames",
			frames: []*frame.Frame{
				frame.MustNew(frame.Strings("user", []string{"u1"}), frame.Times("ts", []int64{1})),
				frame.MustNew(frame.Ints("user", []int64{1}), frame.Times("ts", []int64{2})),
			},
			want: frame.ErrKindMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sequence([]string{"user"}, "ts", tt.frames...)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAttach(t *testing.T) {
	events := frame.MustNew(
		frame.Strings("user", []string{"u1", "u1", "u2"}),
		frame.Times("ts", []int64{20, 10, 7}),
		frame.Floats("clicks", []float64{1, 2, 3}),
	)
	m, err := Sequence([]string{"user"}, "ts", events)
	require.NoError(t, err)

	out, err := Attach(events, m, []string{"user"}, "ts")
	require.NoError(t, err)

	require.Equal(t, 3, out.Len())
	st, _ := out.Column(Column)
	assert.Equal(t, []int64{2, 1, 1}, st.Ints)
}
