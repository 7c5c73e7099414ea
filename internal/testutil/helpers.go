// Package testutil provides shared test helpers for pitfeat packages.
package testutil

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/chronicle-db/pitfeat/internal/frame"
)

// Epoch is the reference instant test timestamps are offset from.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// TempDBPath returns a temporary directory and database file path suitable
// for tests. The directory is automatically cleaned up when the test completes.
func TempDBPath(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "test.db")
	return dir, path
}

// Hours converts hour offsets from Epoch into Unix nanoseconds.
func Hours(hours ...int) []int64 {
	out := make([]int64, len(hours))
	for i, h := range hours {
		out[i] = Epoch.Add(time.Duration(h) * time.Hour).UnixNano()
	}
	return out
}

// Column returns the named column or fails the test.
func Column(t *testing.T, f *frame.Frame, name string) *frame.Column {
	t.Helper()
	c, err := f.Column(name)
	if err != nil {
		t.Fatalf("column %s: %v (have %v)", name, err, f.Names())
	}
	return c
}

// Floats returns the named numeric column with nulls as NaN.
func Floats(t *testing.T, f *frame.Frame, name string) []float64 {
	t.Helper()
	c := Column(t, f, name)
	out := make([]float64, c.Len())
	for i := range out {
		v, ok := c.Float(i)
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// Nulls returns the null positions of the named column.
func Nulls(t *testing.T, f *frame.Frame, name string) []bool {
	t.Helper()
	c := Column(t, f, name)
	out := make([]bool, c.Len())
	for i := range out {
		out[i] = c.IsNull(i)
	}
	return out
}
