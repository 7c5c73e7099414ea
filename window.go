package pitfeat

import (
	"fmt"
	"slices"
	"time"

	"github.com/chronicle-db/pitfeat/internal/asof"
	"github.com/chronicle-db/pitfeat/internal/frame"
	"github.com/chronicle-db/pitfeat/internal/rolling"
)

const timeWindowTransform = "time_window_history"

// WindowAgg is an aggregation over a calendar window.
type WindowAgg string

// Supported window aggregations.
const (
	AggMean WindowAgg = "mean"
	AggStd  WindowAgg = "std"
	AggMin  WindowAgg = "min"
	AggMax  WindowAgg = "max"
	AggSum  WindowAgg = "sum"
)

var (
	windowKinds = map[WindowAgg]FeatureKind{
		AggMean: FeatureWindowMean,
		AggStd:  FeatureWindowStd,
		AggMin:  FeatureWindowMin,
		AggMax:  FeatureWindowMax,
		AggSum:  FeatureWindowSum,
	}
	windowRatioKinds = map[WindowAgg]FeatureKind{
		AggMean: FeatureWindowMeanRatio,
		AggStd:  FeatureWindowStdRatio,
		AggSum:  FeatureWindowSumRatio,
	}
)

// value extracts the aggregate from a. Only a sum is defined over an
// empty window, and a deviation needs two samples.
func (g WindowAgg) value(a rolling.Agg) (float64, bool) {
	switch g {
	case AggSum:
		return a.Sum, true
	case AggMean:
		return a.Mean, a.Count > 0
	case AggMin:
		return a.Min, a.Count > 0
	case AggMax:
		return a.Max, a.Count > 0
	case AggStd:
		return a.Std, a.StdOK
	}
	return 0, false
}

// TimeWindowConfig configures TimeWindowHistory.
type TimeWindowConfig struct {
	KeyCol  string `yaml:"key_col"`
	TimeCol string `yaml:"time_col"`
	// Periods are whole-hour calendar window lengths.
	Periods    []time.Duration `yaml:"periods"`
	Counters   []string        `yaml:"counters"`
	RatioPairs []Pair          `yaml:"ratio_pairs"`
	Aggs       []WindowAgg     `yaml:"aggs"`
	RatioAggs  []WindowAgg     `yaml:"ratio_aggs"`
	Alias      string          `yaml:"alias"`
	ExactMatch bool            `yaml:"exact_match"`
	StdNulls   StdNullPolicy   `yaml:"std_nulls"`
}

// DefaultTimeWindowConfig returns the default calendar window configuration.
func DefaultTimeWindowConfig() TimeWindowConfig {
	return TimeWindowConfig{
		KeyCol:   "user_id_hashed",
		TimeCol:  "ts_hour",
		Periods:  []time.Duration{24 * time.Hour, 72 * time.Hour},
		Counters: []string{"total_click", "total_order", "total_cart", "total_fav"},
		RatioPairs: []Pair{
			P("total_click", "total_order"),
			P("total_cart", "total_order"),
			P("total_fav", "total_order"),
			P("total_click", "total_cart"),
			P("total_click", "total_fav"),
		},
		Aggs:       []WindowAgg{AggMean, AggStd, AggMin, AggMax, AggSum},
		RatioAggs:  []WindowAgg{AggMean, AggStd, AggSum},
		Alias:      "user_sitewide",
		ExactMatch: true,
		StdNulls:   StdNullsKeep,
	}
}

// Validate reports configuration errors.
func (c TimeWindowConfig) Validate() error {
	switch {
	case c.KeyCol == "" || c.TimeCol == "":
		return newConfigError(timeWindowTransform, "key and time columns are required")
	case len(c.Counters) == 0:
		return newConfigError(timeWindowTransform, "counter columns are required")
	case len(c.Periods) == 0:
		return newConfigError(timeWindowTransform, "at least one period is required")
	case c.Alias == "":
		return newConfigError(timeWindowTransform, "alias is required")
	}
	for _, p := range c.Periods {
		if p <= 0 || p%time.Hour != 0 {
			return newConfigError(timeWindowTransform, fmt.Sprintf("period %s is not a positive whole number of hours", p))
		}
	}
	for _, a := range c.Aggs {
		if _, ok := windowKinds[a]; !ok {
			return newConfigError(timeWindowTransform, fmt.Sprintf("unknown aggregation %q", string(a)))
		}
	}
	for _, a := range c.RatioAggs {
		if _, ok := windowRatioKinds[a]; !ok {
			return newConfigError(timeWindowTransform, fmt.Sprintf("unsupported ratio aggregation %q", string(a)))
		}
		if !slices.Contains(c.Aggs, a) {
			return newConfigError(timeWindowTransform, fmt.Sprintf("ratio aggregation %q is not computed", string(a)))
		}
	}
	for _, p := range c.RatioPairs {
		if !slices.Contains(c.Counters, p.First) || !slices.Contains(c.Counters, p.Second) {
			return newConfigError(timeWindowTransform, fmt.Sprintf("ratio pair %s/%s names an unknown counter", p.First, p.Second))
		}
	}
	return c.StdNulls.validate(timeWindowTransform)
}

// TimeWindowHistory attaches calendar window aggregates of values to df.
//
// For every values row at time t, each counter is aggregated over the rows of
// the same key in [t-period, t). Ratios relate the same aggregate of two
// counters and a lag carries the key's previous raw counters. The result is
// joined onto df as of its time; exact matches are eligible by default since
// a window at t never includes t itself.
func TimeWindowHistory(df, values *frame.Frame, cfg TimeWindowConfig) (*frame.Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := requireColumns(timeWindowTransform, df, cfg.KeyCol, cfg.TimeCol); err != nil {
		return nil, err
	}
	if err := requireColumns(timeWindowTransform, values, append([]string{cfg.KeyCol, cfg.TimeCol}, cfg.Counters...)...); err != nil {
		return nil, err
	}

	sorted, err := values.SortBy(cfg.KeyCol, cfg.TimeCol)
	if err != nil {
		return nil, schemaErr(timeWindowTransform, err)
	}
	times, err := sorted.TimeColumn(cfg.TimeCol)
	if err != nil {
		return nil, newSchemaError(timeWindowTransform, cfg.TimeCol, err)
	}
	p, err := sorted.Partition(cfg.KeyCol)
	if err != nil {
		return nil, schemaErr(timeWindowTransform, err)
	}

	n := sorted.Len()
	type series struct {
		vals  []float64
		valid []bool
	}
	// aggs[period][counter][agg]
	aggs := make(map[time.Duration]map[string]map[WindowAgg]*series, len(cfg.Periods))
	var cols []*frame.Column

	for _, period := range cfg.Periods {
		hours := int(period / time.Hour)
		aggs[period] = make(map[string]map[WindowAgg]*series, len(cfg.Counters))
		for _, counter := range cfg.Counters {
			vals, err := numbers(timeWindowTransform, sorted, counter)
			if err != nil {
				return nil, err
			}
			bucket := make(map[WindowAgg]*series, len(cfg.Aggs))
			for _, a := range cfg.Aggs {
				bucket[a] = &series{vals: make([]float64, n), valid: make([]bool, n)}
			}
			for _, rows := range p.Rows {
				ts := make([]int64, len(rows))
				seq := make([]float64, len(rows))
				for j, r := range rows {
					t, ok := times.Int(r)
					if !ok {
						return nil, newSchemaError(timeWindowTransform, cfg.TimeCol, fmt.Errorf("null time at row %d", r))
					}
					ts[j], seq[j] = t, vals[r]
				}
				windows, err := rolling.Calendar(ts, seq, int64(period))
				if err != nil {
					return nil, schemaErr(timeWindowTransform, err)
				}
				for j, r := range rows {
					for _, a := range cfg.Aggs {
						bucket[a].vals[r], bucket[a].valid[r] = a.value(windows[j])
					}
				}
			}
			aggs[period][counter] = bucket
			for _, a := range cfg.Aggs {
				c := frame.NullableFloats(FeatureName(cfg.Alias, counter, windowKinds[a], hours), bucket[a].vals, bucket[a].valid)
				if a == AggStd {
					c = fillStd(c, cfg.StdNulls)
				}
				cols = append(cols, c)
			}
		}
	}

	for _, period := range cfg.Periods {
		hours := int(period / time.Hour)
		for _, a := range cfg.RatioAggs {
			for _, pair := range cfg.RatioPairs {
				num := aggs[period][pair.Second][a]
				den := aggs[period][pair.First][a]
				ratio := make([]float64, n)
				for r := range ratio {
					if den.valid[r] && den.vals[r] > 0 {
						ratio[r] = num.vals[r] / den.vals[r]
					}
				}
				cols = append(cols, frame.Floats(FeatureName(cfg.Alias, PairMetric(pair.First, pair.Second), windowRatioKinds[a], hours), ratio))
			}
		}
	}

	for _, counter := range cfg.Counters {
		raw, _ := sorted.Column(counter)
		idx := make([]int, n)
		for _, rows := range p.Rows {
			for j, r := range rows {
				if j == 0 {
					idx[r] = -1
				} else {
					idx[r] = rows[j-1]
				}
			}
		}
		lagged := frame.MustNew(raw).Take(idx)
		c, _ := lagged.Column(counter)
		cols = append(cols, c.Renamed(FeatureName(cfg.Alias, counter, FeatureLag1, 0)))
	}

	hist, err := sorted.Select(cfg.KeyCol, cfg.TimeCol)
	if err != nil {
		return nil, schemaErr(timeWindowTransform, err)
	}
	if hist, err = hist.With(cols...); err != nil {
		return nil, err
	}
	out, err := asof.Join(df, hist, asof.Options{
		LeftOn:            cfg.TimeCol,
		By:                []string{cfg.KeyCol},
		AllowExactMatches: cfg.ExactMatch,
	})
	if err != nil {
		return nil, schemaErr(timeWindowTransform, err)
	}
	return out, nil
}
