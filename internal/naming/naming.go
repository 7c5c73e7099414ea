// Package naming builds derived feature column names from a closed set of
// feature kinds, so producers and consumers of a column agree on its name
// without sharing format strings.
package naming

import (
	"fmt"
	"strings"
)

// Kind identifies the aggregation a derived column holds.
type Kind int

const (
	// KindRaw renames a source column under the alias: {alias}_{metric}.
	KindRaw Kind = iota
	KindSum
	KindMax
	KindStd
	KindAvg
	KindCount
	KindActiveSessionCount
	KindActiveSessionRatio
	KindSumRatio
	KindAvgRatio
	KindMaxRatio
	KindSumScore
	KindAvgScore

	KindDecayScore
	KindDecayedRollMean
	KindDecayedRollStd
	KindRollMean
	KindRollSum
	KindLast

	KindWindowMean
	KindWindowStd
	KindWindowMin
	KindWindowMax
	KindWindowSum
	KindWindowMeanRatio
	KindWindowStdRatio
	KindWindowSumRatio
	KindLag1

	kindCount
)

// suffixes maps each kind to its suffix. %d is replaced by the window.
var suffixes = [kindCount]string{
	KindRaw:                "",
	KindSum:                "sum",
	KindMax:                "max",
	KindStd:                "std",
	KindAvg:                "avg",
	KindCount:              "count",
	KindActiveSessionCount: "active_session_count",
	KindActiveSessionRatio: "active_session_ratio",
	KindSumRatio:           "sum_ratio",
	KindAvgRatio:           "avg_ratio",
	KindMaxRatio:           "max_ratio",
	KindSumScore:           "sum_score",
	KindAvgScore:           "avg_score",
	KindDecayScore:         "decay_score",
	KindDecayedRollMean:    "decayed_roll%d_mean",
	KindDecayedRollStd:     "decayed_roll%d_std",
	KindRollMean:           "roll%d_mean",
	KindRollSum:            "roll%d_sum",
	KindLast:               "last",
	KindWindowMean:         "win%dh_mean",
	KindWindowStd:          "win%dh_std",
	KindWindowMin:          "win%dh_min",
	KindWindowMax:          "win%dh_max",
	KindWindowSum:          "win%dh_sum",
	KindWindowMeanRatio:    "win%dh_mean_ratio",
	KindWindowStdRatio:     "win%dh_std_ratio",
	KindWindowSumRatio:     "win%dh_sum_ratio",
	KindLag1:               "lag1",
}

// Windowed reports whether the kind's suffix embeds a window size.
func (k Kind) Windowed() bool {
	return k >= 0 && k < kindCount && strings.Contains(suffixes[k], "%d")
}

// Suffix renders the kind's suffix for window. Non-windowed kinds ignore it.
func (k Kind) Suffix(window int) (string, error) {
	if k < 0 || k >= kindCount {
		return "", fmt.Errorf("naming: unknown feature kind %d", int(k))
	}
	s := suffixes[k]
	if k.Windowed() {
		s = fmt.Sprintf(s, window)
	}
	return s, nil
}

// Feature returns {alias}_{metric}_{suffix}. The window is a step count for
// rolling kinds and whole hours for calendar window kinds. An unknown kind
// panics: kinds are a closed set, so that is a programming error.
func Feature(alias, metric string, kind Kind, window int) string {
	s, err := kind.Suffix(window)
	if err != nil {
		panic(err)
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{alias, metric, s} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}

// Pair names a relation between two metrics, as in click_to_order.
func Pair(a, b string) string {
	return a + "_to_" + b
}

// Kinds lists every defined kind.
func Kinds() []Kind {
	out := make([]Kind, kindCount)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}
