package pitfeat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicle-db/pitfeat/internal/frame"
	"github.com/chronicle-db/pitfeat/internal/testutil"
)

func TestUserMetadata(t *testing.T) {
	df := frame.MustNew(
		frame.Strings("user_id_hashed", []string{"old", "young", "unknown", "absent"}),
	)
	meta := frame.MustNew(
		frame.Strings("user_id_hashed", []string{"old", "young", "unknown", "old"}),
		frame.NullableFloats("user_birth_year", []float64{1955, 2010, 0, 1990}, []bool{true, true, false, true}),
		frame.Ints("user_tenure_in_days", []int64{3650, 365, 730, 0}),
		frame.Strings("user_gender", []string{"F", "M", "U", "F"}),
	)

	out, err := UserMetadata(df, meta, DefaultUserMetadataConfig())
	require.NoError(t, err)
	require.Equal(t, 4, out.Len())

	age := testutil.Floats(t, out, ColUserAge)
	signUp := testutil.Floats(t, out, ColUserSignUpAge)

	// Birth year clamped to 1960.
	assert.Equal(t, 65.0, age[0])
	assert.Equal(t, 55.0, signUp[0])
	// Sign-up age raised to the minimum, age recomputed.
	assert.Equal(t, 17.0, age[1])
	assert.Equal(t, 16.0, signUp[1])
	// Missing birth year imputed with the median of 1955 and 2010.
	assert.Equal(t, 42.5, age[2])
	assert.Equal(t, 40.5, signUp[2])
	// No metadata row.
	assert.Equal(t, []bool{false, false, false, true}, testutil.Nulls(t, out, ColUserAge))

	gender := testutil.Column(t, out, "user_gender")
	g, ok := gender.Str(0)
	assert.True(t, ok)
	assert.Equal(t, "F", g)
}

func TestUserMetadataErrors(t *testing.T) {
	df := frame.MustNew(frame.Strings("user_id_hashed", []string{"a"}))
	meta := frame.MustNew(
		frame.Strings("user_id_hashed", []string{"a"}),
		frame.Floats("user_birth_year", []float64{1990}),
	)

	t.Run("missing tenure", func(t *testing.T) {
		_, err := UserMetadata(df, meta, DefaultUserMetadataConfig())
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("reference before minimum", func(t *testing.T) {
		cfg := DefaultUserMetadataConfig()
		cfg.ReferenceYear = 1900
		_, err := UserMetadata(df, meta, cfg)
		assert.ErrorIs(t, err, ErrConfig)
	})
}
