package pitfeat

import "github.com/chronicle-db/pitfeat/internal/frame"

// Frame is the immutable columnar relation consumed and produced by every
// transform.
type Frame = frame.Frame

// Column is a named, typed vector with an optional validity mask.
type Column = frame.Column

// Kind enumerates column value types.
type Kind = frame.Kind

// Column kinds.
const (
	KindString = frame.KindString
	KindFloat  = frame.KindFloat
	KindInt    = frame.KindInt
	KindTime   = frame.KindTime
)

// Column constructors.
var (
	NewFrame       = frame.New
	MustNewFrame   = frame.MustNew
	StringColumn   = frame.Strings
	FloatColumn    = frame.Floats
	IntColumn      = frame.Ints
	TimeColumn     = frame.Times
	NullableFloats = frame.NullableFloats
	NullableString = frame.NullableStrings
	NullableInts   = frame.NullableInts
	NullableTimes  = frame.NullableTimes
)

// ErrColumnNotFound is returned by frame lookups for absent columns.
var ErrColumnNotFound = frame.ErrColumnNotFound
