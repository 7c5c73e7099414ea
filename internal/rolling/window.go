// Package rolling computes trailing-window and cumulative aggregates over
// ordered value sequences.
//
// A Window is a FIFO: values leave in the order they arrived, which is all
// count windows, calendar windows and cumulative state need. Mean and
// variance are maintained with Welford updates, min and max with monotonic
// deques, so each push or pop is amortised O(1).
package rolling

import "math"

// Agg is the aggregate state of a window at one position.
type Agg struct {
	Count int
	Sum   float64
	Mean  float64
	Min   float64
	Max   float64
	// Std is the sample standard deviation; valid only when StdOK.
	Std   float64
	StdOK bool
}

// Window holds the values currently inside a trailing window.
type Window struct {
	buf  []float64
	head int

	mean float64
	m2   float64
	sum  float64

	// indices into buf, values monotonic
	minq []int
	maxq []int
}

// NewWindow creates an empty window.
func NewWindow() *Window {
	return &Window{}
}

// Len returns the number of values in the window.
func (w *Window) Len() int { return len(w.buf) - w.head }

// Push appends v at the tail.
func (w *Window) Push(v float64) {
	i := len(w.buf)
	w.buf = append(w.buf, v)

	n := float64(w.Len())
	delta := v - w.mean
	w.mean += delta / n
	w.m2 += delta * (v - w.mean)
	w.sum += v

	for len(w.minq) > 0 && w.buf[w.minq[len(w.minq)-1]] >= v {
		w.minq = w.minq[:len(w.minq)-1]
	}
	w.minq = append(w.minq, i)
	for len(w.maxq) > 0 && w.buf[w.maxq[len(w.maxq)-1]] <= v {
		w.maxq = w.maxq[:len(w.maxq)-1]
	}
	w.maxq = append(w.maxq, i)
}

// Pop removes the oldest value. It is a no-op on an empty window.
func (w *Window) Pop() {
	if w.Len() == 0 {
		return
	}
	i := w.head
	v := w.buf[i]
	w.head++

	if w.Len() == 0 {
		w.reset()
		return
	}
	n := float64(w.Len())
	delta := v - w.mean
	w.mean -= delta / n
	w.m2 -= delta * (v - w.mean)
	if w.m2 < 0 {
		w.m2 = 0
	}
	w.sum -= v

	if len(w.minq) > 0 && w.minq[0] == i {
		w.minq = w.minq[1:]
	}
	if len(w.maxq) > 0 && w.maxq[0] == i {
		w.maxq = w.maxq[1:]
	}
}

func (w *Window) reset() {
	w.buf = w.buf[:0]
	w.head = 0
	w.mean, w.m2, w.sum = 0, 0, 0
	w.minq = w.minq[:0]
	w.maxq = w.maxq[:0]
}

// Agg snapshots the window. Mean, Min and Max of an empty window are zero
// with Count 0; callers decide how to surface that.
func (w *Window) Agg() Agg {
	n := w.Len()
	a := Agg{Count: n, Sum: w.sum}
	if n == 0 {
		return a
	}
	a.Mean = w.mean
	a.Min = w.buf[w.minq[0]]
	a.Max = w.buf[w.maxq[0]]
	if n > 1 {
		a.Std = math.Sqrt(w.m2 / float64(n-1))
		a.StdOK = true
	}
	return a
}
