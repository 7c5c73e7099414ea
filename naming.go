package pitfeat

import "github.com/chronicle-db/pitfeat/internal/naming"

// FeatureKind identifies the aggregation a derived column holds.
type FeatureKind = naming.Kind

// Feature kinds used by the history transforms.
const (
	FeatureRaw                = naming.KindRaw
	FeatureSum                = naming.KindSum
	FeatureMax                = naming.KindMax
	FeatureStd                = naming.KindStd
	FeatureAvg                = naming.KindAvg
	FeatureCount              = naming.KindCount
	FeatureActiveSessionCount = naming.KindActiveSessionCount
	FeatureActiveSessionRatio = naming.KindActiveSessionRatio
	FeatureSumRatio           = naming.KindSumRatio
	FeatureAvgRatio           = naming.KindAvgRatio
	FeatureMaxRatio           = naming.KindMaxRatio
	FeatureSumScore           = naming.KindSumScore
	FeatureAvgScore           = naming.KindAvgScore
	FeatureDecayScore         = naming.KindDecayScore
	FeatureDecayedRollMean    = naming.KindDecayedRollMean
	FeatureDecayedRollStd     = naming.KindDecayedRollStd
	FeatureRollMean           = naming.KindRollMean
	FeatureRollSum            = naming.KindRollSum
	FeatureLast               = naming.KindLast
	FeatureWindowMean         = naming.KindWindowMean
	FeatureWindowStd          = naming.KindWindowStd
	FeatureWindowMin          = naming.KindWindowMin
	FeatureWindowMax          = naming.KindWindowMax
	FeatureWindowSum          = naming.KindWindowSum
	FeatureWindowMeanRatio    = naming.KindWindowMeanRatio
	FeatureWindowStdRatio     = naming.KindWindowStdRatio
	FeatureWindowSumRatio     = naming.KindWindowSumRatio
	FeatureLag1               = naming.KindLag1
)

// FeatureName returns {alias}_{metric}_{suffix} for a derived column.
// window is a step count for rolling kinds and whole hours for calendar
// window kinds; other kinds ignore it.
func FeatureName(alias, metric string, kind FeatureKind, window int) string {
	return naming.Feature(alias, metric, kind, window)
}

// PairMetric names a relation between two metrics, as in click_to_order.
func PairMetric(a, b string) string {
	return naming.Pair(a, b)
}

// Content and session features keep their conventional names.

// RankName is the rank of metric within partition, e.g. rank_session_price.
func RankName(partition, metric string) string {
	return "rank_" + partition + "_" + metric
}

// SmoothedCategoryName is a category-shrunk statistic of col.
func SmoothedCategoryName(category, col, stat string) string {
	return "smoothed_" + category + "_" + col + "_" + stat
}

// CategoryStatName is a raw per-category statistic of col.
func CategoryStatName(category, col, stat string) string {
	return category + "_" + col + "_" + stat
}

// CategorySizeName is the row count of a category.
func CategorySizeName(category string) string {
	return category + "_size"
}

// TableScoreName is the weighted score of a source table within a session.
func TableScoreName(table string) string {
	return table + "_weighted_score"
}
