// Package estimator holds the small-sample estimators used by content and
// session features. Every function is total over non-negative inputs: zero
// denominators resolve to documented constants, never NaN or Inf.
package estimator

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// Ln05 is the half-life decay constant ln(0.5).
var Ln05 = math.Log(0.5)

// BayesianMean shrinks an observed mean of n observations toward prior with
// pseudo-count m. It returns prior when n+m is zero.
func BayesianMean(n, mean, prior, m float64) float64 {
	if n+m == 0 {
		return prior
	}
	return (n*mean + m*prior) / (n + m)
}

// Shrink blends a group statistic toward global using the group's size as
// weight: w*stat + (1-w)*global with w = size/(size+m).
func Shrink(stat, global, size, m float64) float64 {
	if size+m == 0 {
		return global
	}
	w := size / (size + m)
	return w*stat + (1-w)*global
}

// SmoothedRatio applies Beta-Bernoulli pseudo-counts:
// (num+alpha)/(den+alpha+beta). It returns 0 when the denominator is 0.
func SmoothedRatio(num, den, alpha, beta float64) float64 {
	d := den + alpha + beta
	if d == 0 {
		return 0
	}
	return (num + alpha) / d
}

// SafeRatio returns num/den, or 0 when den is not positive.
func SafeRatio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den
}

// WilsonLowerBound is the lower end of the Wilson score interval for a
// proportion p over n trials. n == 0 yields 0.
func WilsonLowerBound(p, n, z float64) float64 {
	if n <= 0 {
		return 0
	}
	p = math.Min(math.Max(p, 0), 1)
	z2 := z * z
	num := p + z2/(2*n) - z*math.Sqrt(p*(1-p)/n+z2/(4*n*n))
	return math.Max(0, num/(1+z2/n))
}

// LogPrice returns log(1 + price/normalizer). A non-positive normalizer
// leaves the price unscaled.
func LogPrice(price, normalizer float64) float64 {
	if normalizer <= 0 {
		return math.Log1p(price)
	}
	return math.Log1p(price / normalizer)
}

// DecayWeight returns exp(stepDiff*decayConstant/halfLife). With the default
// constant Ln05 the weight halves every halfLife steps.
func DecayWeight(stepDiff, halfLife, decayConstant float64) float64 {
	if halfLife <= 0 {
		return 0
	}
	return math.Exp(stepDiff * decayConstant / halfLife)
}

// Mean returns the arithmetic mean, reporting false for an empty input.
func Mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return stat.Mean(values, nil), true
}

// SampleStdDev returns the unbiased standard deviation. Fewer than two
// values have no defined deviation.
func SampleStdDev(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	return stat.StdDev(values, nil), true
}

// Median returns the midpoint median of values, averaging the two central
// elements for even lengths. stat.Quantile has no midpoint rule, so the
// central pair is read from a sorted copy. values is not modified.
func Median(values []float64) (float64, bool) {
	n := len(values)
	if n == 0 {
		return 0, false
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	if n%2 == 1 {
		return sorted[n/2], true
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2, true
}
