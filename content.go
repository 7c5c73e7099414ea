package pitfeat

import (
	"github.com/chronicle-db/pitfeat/internal/asof"
	"github.com/chronicle-db/pitfeat/internal/estimator"
	"github.com/chronicle-db/pitfeat/internal/frame"
	"gonum.org/v1/gonum/floats"
)

const contentPriceTransform = "content_price_history"

// Price snapshot columns read by ContentPriceHistory.
const (
	ColOriginalPrice     = "original_price"
	ColSellingPrice      = "selling_price"
	ColDiscountedPrice   = "discounted_price"
	ColReviewCount       = "content_review_count"
	ColReviewMediaCount  = "content_review_wth_media_count"
	ColRateCount         = "content_rate_count"
	ColRateAvg           = "content_rate_avg"
	unknownCategoryValue = "unknown"
)

// Columns produced by ContentPriceHistory.
const (
	ColDiscountRate             = "discount_rate"
	ColSellingRate              = "selling_rate"
	ColSellingDiscountDiffRatio = "selling_discount_diff_ratio"
	ColRateAvgBayesian          = "content_rate_avg_bayesian"
	ColRateToReviewSmoothed     = "content_rate_to_review_smoothed_ratio"
	ColReviewToMediaSmoothed    = "content_review_to_media_smoothed_ratio"
	ColWilsonRateToReview       = "wilson_score_rate_to_review"
	ColWilsonReviewToMedia      = "wilson_score_review_to_media"
	ColContentTenureHours       = "content_tenure_hours"
	ColUpdateTenureHours        = "update_tenure_hours"
	ColUpdateToContentTenure    = "update_to_content_tenure_ratio"
)

var (
	priceColumns       = []string{ColOriginalPrice, ColSellingPrice, ColDiscountedPrice}
	renormalizeColumns = []string{ColOriginalPrice, ColSellingPrice, ColDiscountedPrice, ColReviewCount, ColReviewMediaCount, ColRateCount}
)

// highRankColumns are content metrics where larger is better.
var highRankColumns = []string{
	ColDiscountRate,
	ColSellingRate,
	ColRateAvgBayesian,
	ColReviewCount + "_norm",
	ColReviewMediaCount + "_norm",
	ColWilsonRateToReview,
	ColWilsonReviewToMedia,
}

// lowRankColumns are the log prices, where smaller is better.
func lowRankColumns() []string {
	out := make([]string, len(priceColumns))
	for i, c := range priceColumns {
		out[i] = c + "_log"
	}
	return out
}

// ContentPriceStats holds the scalars ContentPriceHistory derives from the
// whole price table. Passing them explicitly keeps a run reproducible when
// the price table is sliced.
type ContentPriceStats struct {
	// ReviewNormalizer is the minimum positive review count.
	ReviewNormalizer float64 `yaml:"review_normalizer"`
	// GlobalRating is the mean content rating across all snapshots.
	GlobalRating float64 `yaml:"global_rating"`
}

// ContentPriceConfig configures ContentPriceHistory.
type ContentPriceConfig struct {
	ContentCol   string   `yaml:"content_col"`
	LeftTimeCol  string   `yaml:"left_time_col"`
	RightTimeCol string   `yaml:"right_time_col"`
	EventTimeCol string   `yaml:"event_time_col"`
	CreationCol  string   `yaml:"creation_col"`
	Categories   []string `yaml:"categories"`
	BayesianM    float64  `yaml:"bayesian_m"`
	Alpha        float64  `yaml:"alpha"`
	Beta         float64  `yaml:"beta"`
	WilsonZ      float64  `yaml:"wilson_z"`
	ExactMatch   bool     `yaml:"exact_match"`
	// Stats overrides the scalars computed from the price table.
	Stats *ContentPriceStats `yaml:"stats"`
}

// DefaultContentPriceConfig returns the default content price configuration.
func DefaultContentPriceConfig() ContentPriceConfig {
	return ContentPriceConfig{
		ContentCol:   "content_id_hashed",
		LeftTimeCol:  "date",
		RightTimeCol: "update_date",
		EventTimeCol: "ts_hour",
		CreationCol:  "content_creation_date",
		Categories:   []string{"level1_category_name", "level2_category_name", "leaf_category_name"},
		BayesianM:    30,
		Alpha:        1,
		Beta:         1,
		WilsonZ:      1.96,
	}
}

// Validate reports configuration errors.
func (c ContentPriceConfig) Validate() error {
	switch {
	case c.ContentCol == "" || c.LeftTimeCol == "" || c.RightTimeCol == "" || c.EventTimeCol == "":
		return newConfigError(contentPriceTransform, "content and time columns are required")
	case c.LeftTimeCol == c.RightTimeCol:
		return newConfigError(contentPriceTransform, "left and right time columns must differ")
	case len(c.Categories) == 0:
		return newConfigError(contentPriceTransform, "at least one category column is required")
	case c.BayesianM < 0 || c.Alpha < 0 || c.Beta < 0 || c.WilsonZ <= 0:
		return newConfigError(contentPriceTransform, "smoothing constants must be non-negative and z positive")
	case c.Stats != nil && c.Stats.ReviewNormalizer <= 0:
		return newConfigError(contentPriceTransform, "review normalizer must be positive")
	}
	return nil
}

// ComputeContentPriceStats derives the global scalars from a price table.
// Without any positive review count the normalizer is 1.
func ComputeContentPriceStats(prices *frame.Frame) (ContentPriceStats, error) {
	reviews, err := nullableNumbers(contentPriceTransform, prices, ColReviewCount)
	if err != nil {
		return ContentPriceStats{}, err
	}
	rating, err := nullableNumbers(contentPriceTransform, prices, ColRateAvg)
	if err != nil {
		return ContentPriceStats{}, err
	}

	stats := ContentPriceStats{ReviewNormalizer: 1}
	var positive []float64
	for i := 0; i < reviews.Len(); i++ {
		if v, ok := reviews.Float(i); ok && v > 0 {
			positive = append(positive, v)
		}
	}
	if len(positive) > 0 {
		stats.ReviewNormalizer = floats.Min(positive)
	}

	var present []float64
	for i := 0; i < rating.Len(); i++ {
		if v, ok := rating.Float(i); ok {
			present = append(present, v)
		}
	}
	stats.GlobalRating, _ = estimator.Mean(present)
	return stats, nil
}

// ContentPriceHistory enriches df with the price and review snapshot active
// for each content at each row's time, plus category-relative statistics
// and content tenure.
//
// prices holds one row per (content, update time); metadata one row per
// content with its categories and creation time. Snapshot features are
// computed on the price table first and then attached by an as-of join, so
// no row sees a snapshot published after it.
func ContentPriceHistory(df, prices, metadata *frame.Frame, cfg ContentPriceConfig) (*frame.Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := requireColumns(contentPriceTransform, df, cfg.ContentCol, cfg.LeftTimeCol, cfg.EventTimeCol); err != nil {
		return nil, err
	}
	required := append([]string{cfg.ContentCol, cfg.RightTimeCol, ColRateAvg}, renormalizeColumns...)
	if err := requireColumns(contentPriceTransform, prices, required...); err != nil {
		return nil, err
	}
	if err := requireColumns(contentPriceTransform, metadata, append([]string{cfg.ContentCol, cfg.CreationCol}, cfg.Categories...)...); err != nil {
		return nil, err
	}

	stats := cfg.Stats
	if stats == nil {
		s, err := ComputeContentPriceStats(prices)
		if err != nil {
			return nil, err
		}
		stats = &s
	}

	meta, err := categoryMetadata(metadata, cfg)
	if err != nil {
		return nil, schemaErr(contentPriceTransform, err)
	}
	snap, err := prices.LeftJoin(meta, []string{cfg.ContentCol}, asof.DefaultSuffix)
	if err != nil {
		return nil, schemaErr(contentPriceTransform, err)
	}
	for _, cat := range cfg.Categories {
		c, _ := snap.Column(cat)
		size, _ := snap.Column(CategorySizeName(cat))
		if snap, err = snap.With(c.FillNullString(unknownCategoryValue), size.FillNull(0)); err != nil {
			return nil, err
		}
	}

	if snap, err = snapshotFeatures(snap, *stats, cfg); err != nil {
		return nil, err
	}
	if snap, err = categoryFeatures(snap, cfg); err != nil {
		return nil, err
	}
	if snap, err = snap.SortBy(cfg.ContentCol, cfg.RightTimeCol); err != nil {
		return nil, schemaErr(contentPriceTransform, err)
	}

	out, err := asof.Join(df, snap, asof.Options{
		LeftOn:            cfg.LeftTimeCol,
		RightOn:           cfg.RightTimeCol,
		By:                []string{cfg.ContentCol},
		AllowExactMatches: cfg.ExactMatch,
	})
	if err != nil {
		return nil, schemaErr(contentPriceTransform, err)
	}
	return tenureFeatures(df, out, cfg)
}

// categoryMetadata keeps one metadata row per content with the size of each
// of its categories. Rows with a null category get size 0.
func categoryMetadata(metadata *frame.Frame, cfg ContentPriceConfig) (*frame.Frame, error) {
	cols := append([]string{cfg.ContentCol, cfg.CreationCol}, cfg.Categories...)
	meta, err := metadata.Select(cols...)
	if err != nil {
		return nil, err
	}
	sizes := make([]*frame.Column, 0, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		p, err := meta.Partition(cat)
		if err != nil {
			return nil, err
		}
		_, ok, _ := meta.RowKeys(cat)
		vals := make([]int64, meta.Len())
		for r := range vals {
			if ok[r] {
				vals[r] = int64(len(p.Rows[p.Of[r]]))
			}
		}
		sizes = append(sizes, frame.Ints(CategorySizeName(cat), vals))
	}
	if meta, err = meta.With(sizes...); err != nil {
		return nil, err
	}
	return firstPerKey(meta, cfg.ContentCol)
}

// snapshotFeatures derives per-snapshot price, rating and review features.
func snapshotFeatures(snap *frame.Frame, stats ContentPriceStats, cfg ContentPriceConfig) (*frame.Frame, error) {
	n := snap.Len()
	read := func(name string) ([]float64, error) { return numbers(contentPriceTransform, snap, name) }

	orig, err := read(ColOriginalPrice)
	if err != nil {
		return nil, err
	}
	sell, err := read(ColSellingPrice)
	if err != nil {
		return nil, err
	}
	disc, err := read(ColDiscountedPrice)
	if err != nil {
		return nil, err
	}
	reviews, err := read(ColReviewCount)
	if err != nil {
		return nil, err
	}
	media, err := read(ColReviewMediaCount)
	if err != nil {
		return nil, err
	}
	rates, err := read(ColRateCount)
	if err != nil {
		return nil, err
	}
	rateAvg, err := read(ColRateAvg)
	if err != nil {
		return nil, err
	}

	discountRate := make([]float64, n)
	sellingRate := make([]float64, n)
	diffRatio := make([]float64, n)
	bayes := make([]float64, n)
	rateToReview := make([]float64, n)
	reviewToMedia := make([]float64, n)
	wilsonRate := make([]float64, n)
	wilsonMedia := make([]float64, n)
	for i := 0; i < n; i++ {
		if orig[i] > 0 {
			discountRate[i] = 1 - disc[i]/orig[i]
			sellingRate[i] = 1 - sell[i]/orig[i]
		}
		diffRatio[i] = estimator.SafeRatio(sell[i]-disc[i], sell[i])
		bayes[i] = estimator.BayesianMean(rates[i], rateAvg[i], stats.GlobalRating, cfg.BayesianM)
		rateToReview[i] = estimator.SmoothedRatio(reviews[i], rates[i], cfg.Alpha, cfg.Beta)
		reviewToMedia[i] = estimator.SmoothedRatio(media[i], reviews[i], cfg.Alpha, cfg.Beta)
		wilsonRate[i] = estimator.WilsonLowerBound(estimator.SafeRatio(reviews[i], rates[i]), rates[i], cfg.WilsonZ)
		wilsonMedia[i] = estimator.WilsonLowerBound(estimator.SafeRatio(media[i], reviews[i]), reviews[i], cfg.WilsonZ)
	}

	cols := []*frame.Column{
		frame.Floats(ColDiscountRate, discountRate),
		frame.Floats(ColSellingRate, sellingRate),
		frame.Floats(ColSellingDiscountDiffRatio, diffRatio),
	}
	for _, name := range renormalizeColumns {
		raw, err := read(name)
		if err != nil {
			return nil, err
		}
		norm := make([]float64, n)
		for i, v := range raw {
			norm[i] = v / stats.ReviewNormalizer
		}
		cols = append(cols, frame.Floats(name+"_norm", norm))
	}
	for _, name := range priceColumns {
		raw, err := read(name)
		if err != nil {
			return nil, err
		}
		logs := make([]float64, n)
		for i, v := range raw {
			logs[i] = estimator.LogPrice(v, stats.ReviewNormalizer)
		}
		cols = append(cols, frame.Floats(name+"_log", logs))
	}
	cols = append(cols,
		frame.Floats(ColRateAvgBayesian, bayes),
		frame.Floats(ColRateToReviewSmoothed, rateToReview),
		frame.Floats(ColReviewToMediaSmoothed, reviewToMedia),
		frame.Floats(ColWilsonRateToReview, wilsonRate),
		frame.Floats(ColWilsonReviewToMedia, wilsonMedia),
	)
	return snap.With(cols...)
}

// categoryFeatures adds per-category log price moments, their shrunk
// versions and per-category ranks.
func categoryFeatures(snap *frame.Frame, cfg ContentPriceConfig) (*frame.Frame, error) {
	var cols []*frame.Column
	for _, price := range priceColumns {
		logs, err := numbers(contentPriceTransform, snap, price+"_log")
		if err != nil {
			return nil, err
		}
		globalMean, _ := estimator.Mean(logs)
		globalStd, _ := estimator.SampleStdDev(logs)

		for _, cat := range cfg.Categories {
			p, err := snap.Partition(cat)
			if err != nil {
				return nil, schemaErr(contentPriceTransform, err)
			}
			sizes, err := numbers(contentPriceTransform, snap, CategorySizeName(cat))
			if err != nil {
				return nil, err
			}

			means := make([]float64, len(p.Keys))
			stds := make([]float64, len(p.Keys))
			for g, rows := range p.Rows {
				vals := make([]float64, len(rows))
				for j, r := range rows {
					vals[j] = logs[r]
				}
				means[g], _ = estimator.Mean(vals)
				stds[g], _ = estimator.SampleStdDev(vals)
			}

			n := snap.Len()
			catMean := make([]float64, n)
			catStd := make([]float64, n)
			shrunkMean := make([]float64, n)
			shrunkStd := make([]float64, n)
			for r := 0; r < n; r++ {
				g := p.Of[r]
				catMean[r], catStd[r] = means[g], stds[g]
				shrunkMean[r] = estimator.Shrink(means[g], globalMean, sizes[r], cfg.BayesianM)
				shrunkStd[r] = estimator.Shrink(stds[g], globalStd, sizes[r], cfg.BayesianM)
			}
			cols = append(cols,
				frame.Floats(CategoryStatName(cat, price+"_log", "mean"), catMean),
				frame.Floats(CategoryStatName(cat, price+"_log", "std"), catStd),
				frame.Floats(SmoothedCategoryName(cat, price, "mean"), shrunkMean),
				frame.Floats(SmoothedCategoryName(cat, price, "std"), shrunkStd),
			)
		}
	}

	for _, col := range lowRankColumns() {
		for _, cat := range cfg.Categories {
			r, err := rankWithin(snap, []string{cat}, col, false, RankName(cat, col))
			if err != nil {
				return nil, schemaErr(contentPriceTransform, err)
			}
			cols = append(cols, r)
		}
	}
	for _, col := range highRankColumns {
		for _, cat := range cfg.Categories {
			r, err := rankWithin(snap, []string{cat}, col, true, RankName(cat, col))
			if err != nil {
				return nil, schemaErr(contentPriceTransform, err)
			}
			cols = append(cols, r)
		}
	}
	return snap.With(cols...)
}

// tenureFeatures adds content and update tenure in whole hours. The ratio
// is taken before a negative content tenure is replaced by the update
// tenure; all three are 0 where undefined.
func tenureFeatures(df, out *frame.Frame, cfg ContentPriceConfig) (*frame.Frame, error) {
	event, err := out.TimeColumn(cfg.EventTimeCol)
	if err != nil {
		return nil, newSchemaError(contentPriceTransform, cfg.EventTimeCol, err)
	}
	created, err := out.TimeColumn(joinedName(df, cfg.CreationCol))
	if err != nil {
		return nil, newSchemaError(contentPriceTransform, cfg.CreationCol, err)
	}
	updated, err := out.TimeColumn(joinedName(df, cfg.RightTimeCol))
	if err != nil {
		return nil, newSchemaError(contentPriceTransform, cfg.RightTimeCol, err)
	}

	n := out.Len()
	content := make([]int64, n)
	update := make([]int64, n)
	ratio := make([]float64, n)
	for i := 0; i < n; i++ {
		ct, cok := hoursBetween(event, created, i)
		ut, uok := hoursBetween(event, updated, i)
		if cok && uok && ct != 0 {
			ratio[i] = float64(ut) / float64(ct)
		}
		if !uok {
			ut = 0
		}
		if !cok {
			ct = 0
		} else if ct < 0 {
			ct = ut
		}
		content[i], update[i] = ct, ut
	}
	return out.With(
		frame.Ints(ColContentTenureHours, content),
		frame.Ints(ColUpdateTenureHours, update),
		frame.Floats(ColUpdateToContentTenure, ratio),
	)
}
