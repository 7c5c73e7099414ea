package pitfeat

import (
	"fmt"
	"slices"

	"github.com/chronicle-db/pitfeat/internal/asof"
	"github.com/chronicle-db/pitfeat/internal/frame"
	"github.com/chronicle-db/pitfeat/internal/rolling"
)

const (
	userHistoryTransform  = "user_history"
	termRatiosTransform   = "term_to_user_ratios"
	userMetadataTransform = "user_metadata"
)

// UserHistoryConfig configures UserHistory.
type UserHistoryConfig struct {
	UserCol string `yaml:"user_col"`
	// TermCol narrows the history to user+term when set.
	TermCol     string             `yaml:"term_col"`
	TimeCol     string             `yaml:"time_col"`
	Counters    []string           `yaml:"counters"`
	RatioGroups []Pair             `yaml:"ratio_groups"`
	Alias       string             `yaml:"alias"`
	Weights     map[string]float64 `yaml:"weights"`
	ExactMatch  bool               `yaml:"exact_match"`
	// StdWindow is the trailing row count of the rolling deviation.
	StdWindow int           `yaml:"std_window"`
	StdNulls  StdNullPolicy `yaml:"std_nulls"`
}

// DefaultUserHistoryConfig returns the sitewide user history configuration.
func DefaultUserHistoryConfig() UserHistoryConfig {
	return UserHistoryConfig{
		UserCol:  "user_id_hashed",
		TimeCol:  "ts_hour",
		Counters: []string{"total_click", "total_fav", "total_cart", "total_order"},
		RatioGroups: []Pair{
			P("total_click", "total_order"),
			P("total_click", "total_cart"),
			P("total_click", "total_fav"),
			P("total_cart", "total_order"),
		},
		Alias: "user_sitewide",
		Weights: map[string]float64{
			"total_click": 0.204,
			"total_fav":   0.066,
			"total_cart":  0.254,
			"total_order": 0.476,
		},
		StdWindow: 10000,
		StdNulls:  StdNullsFill,
	}
}

// DefaultUserTermHistoryConfig returns the per user and search term
// configuration.
func DefaultUserTermHistoryConfig() UserHistoryConfig {
	return UserHistoryConfig{
		UserCol:     "user_id_hashed",
		TermCol:     "search_term_normalized",
		TimeCol:     "ts_hour",
		Counters:    []string{"total_search_impression", "total_search_click"},
		RatioGroups: []Pair{P("total_search_impression", "total_search_click")},
		Alias:       "user_term_search",
		Weights: map[string]float64{
			"total_search_click":      0.9,
			"total_search_impression": 0.1,
		},
		StdWindow: 10000,
		StdNulls:  StdNullsFill,
	}
}

// Validate reports configuration errors.
func (c UserHistoryConfig) Validate() error {
	switch {
	case c.UserCol == "" || c.TimeCol == "":
		return newConfigError(userHistoryTransform, "user and time columns are required")
	case len(c.Counters) == 0:
		return newConfigError(userHistoryTransform, "counter columns are required")
	case c.Alias == "":
		return newConfigError(userHistoryTransform, "alias is required")
	case c.StdWindow < 1:
		return newConfigError(userHistoryTransform, "std window must be positive")
	}
	for _, g := range c.RatioGroups {
		if !slices.Contains(c.Counters, g.First) || !slices.Contains(c.Counters, g.Second) {
			return newConfigError(userHistoryTransform, fmt.Sprintf("ratio group %s/%s names an unknown counter", g.First, g.Second))
		}
	}
	for k := range c.Weights {
		if !slices.Contains(c.Counters, k) {
			return newConfigError(userHistoryTransform, fmt.Sprintf("weight for unknown counter %q", k))
		}
	}
	return c.StdNulls.validate(userHistoryTransform)
}

func (c UserHistoryConfig) keys() []string {
	if c.TermCol == "" {
		return []string{c.UserCol}
	}
	return []string{c.UserCol, c.TermCol}
}

// UserHistory attaches cumulative per-user (or per user+term) interaction
// aggregates to df. Aggregates are computed over users up to and including
// each of its rows, then joined as of df's time, so with ExactMatch off a
// row only sees history strictly before it.
func UserHistory(df, users *frame.Frame, cfg UserHistoryConfig) (*frame.Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	keys := cfg.keys()
	if err := requireColumns(userHistoryTransform, df, append(slices.Clone(keys), cfg.TimeCol)...); err != nil {
		return nil, err
	}
	if err := requireColumns(userHistoryTransform, users, append(append(slices.Clone(keys), cfg.TimeCol), cfg.Counters...)...); err != nil {
		return nil, err
	}

	sorted, err := users.SortBy(append(slices.Clone(keys), cfg.TimeCol)...)
	if err != nil {
		return nil, schemaErr(userHistoryTransform, err)
	}
	p, err := sorted.Partition(keys...)
	if err != nil {
		return nil, schemaErr(userHistoryTransform, err)
	}

	n := sorted.Len()
	alias := cfg.Alias
	sessions := make([]float64, n)
	for _, rows := range p.Rows {
		for j, r := range rows {
			sessions[r] = float64(j + 1)
		}
	}

	var (
		cols    []*frame.Column
		sums    = make(map[string][]float64, len(cfg.Counters))
		avgs    = make(map[string][]float64, len(cfg.Counters))
		renamed = make([]*frame.Column, 0, len(cfg.Counters))
	)
	for _, name := range cfg.Counters {
		values, err := numbers(userHistoryTransform, sorted, name)
		if err != nil {
			return nil, err
		}
		sum := make([]float64, n)
		maxv := make([]float64, n)
		std := make([]float64, n)
		stdOK := make([]bool, n)
		active := make([]float64, n)
		for _, rows := range p.Rows {
			seq := make([]float64, len(rows))
			for j, r := range rows {
				seq[j] = values[r]
			}
			cum := rolling.Cumulative(seq)
			dev := rolling.Count(seq, cfg.StdWindow)
			var count float64
			for j, r := range rows {
				sum[r], maxv[r] = cum[j].Sum, cum[j].Max
				std[r], stdOK[r] = dev[j].Std, dev[j].StdOK
				if seq[j] > 0 {
					count++
				}
				active[r] = count
			}
		}

		avg := make([]float64, n)
		ratio := make([]float64, n)
		for r := 0; r < n; r++ {
			if sum[r] > 0 {
				avg[r] = sum[r] / sessions[r]
			}
			ratio[r] = active[r] / sessions[r]
		}
		sums[name], avgs[name] = sum, avg

		cols = append(cols,
			frame.Floats(FeatureName(alias, name, FeatureSum, 0), sum),
			frame.Floats(FeatureName(alias, name, FeatureMax, 0), maxv),
			fillStd(frame.NullableFloats(FeatureName(alias, name, FeatureStd, 0), std, stdOK), cfg.StdNulls),
			frame.Floats(FeatureName(alias, name, FeatureActiveSessionCount, 0), active),
			frame.Floats(FeatureName(alias, name, FeatureAvg, 0), avg),
			frame.Floats(FeatureName(alias, name, FeatureActiveSessionRatio, 0), ratio),
		)
		raw, _ := sorted.Column(name)
		renamed = append(renamed, raw.Renamed(FeatureName(alias, name, FeatureRaw, 0)))
	}
	cols = append(cols, frame.Floats(FeatureName(alias, "session", FeatureCount, 0), sessions))

	for _, g := range cfg.RatioGroups {
		ratio := make([]float64, n)
		first, second := avgs[g.First], avgs[g.Second]
		for r := range ratio {
			if first[r] > 0 {
				ratio[r] = second[r] / first[r]
			}
		}
		cols = append(cols, frame.Floats(FeatureName(alias, PairMetric(g.First, g.Second), FeatureAvgRatio, 0), ratio))
	}

	weightedSum := make([]float64, n)
	weightedAvg := make([]float64, n)
	weighted := make([]string, 0, len(cfg.Weights))
	for k := range cfg.Weights {
		weighted = append(weighted, k)
	}
	slices.Sort(weighted)
	for _, k := range weighted {
		w := cfg.Weights[k]
		for r := 0; r < n; r++ {
			weightedSum[r] += sums[k][r] * w
			weightedAvg[r] += avgs[k][r] * w
		}
	}
	cols = append(cols,
		frame.Floats(FeatureName(alias, "weighted", FeatureSumScore, 0), weightedSum),
		frame.Floats(FeatureName(alias, "weighted", FeatureAvgScore, 0), weightedAvg),
	)
	cols = append(cols, renamed...)

	hist, err := sorted.Select(append(slices.Clone(keys), cfg.TimeCol)...)
	if err != nil {
		return nil, schemaErr(userHistoryTransform, err)
	}
	if hist, err = hist.With(cols...); err != nil {
		return nil, err
	}

	out, err := asof.Join(df, hist, asof.Options{
		LeftOn:            cfg.TimeCol,
		By:                keys,
		AllowExactMatches: cfg.ExactMatch,
	})
	if err != nil {
		return nil, schemaErr(userHistoryTransform, err)
	}
	return fillDerived(df, out, cfg.StdNulls, stdColumns(cfg))
}

func stdColumns(cfg UserHistoryConfig) map[string]bool {
	out := make(map[string]bool, len(cfg.Counters))
	for _, c := range cfg.Counters {
		out[FeatureName(cfg.Alias, c, FeatureStd, 0)] = true
	}
	return out
}

// fillDerived replaces nulls with 0 in every column out added to df. With
// StdNullsKeep the deviation columns listed in std stay nullable.
func fillDerived(df, out *frame.Frame, policy StdNullPolicy, std map[string]bool) (*frame.Frame, error) {
	var filled []*frame.Column
	for _, c := range out.Columns() {
		if df.Has(c.Name) || !c.Numeric() {
			continue
		}
		if policy == StdNullsKeep && std[c.Name] {
			continue
		}
		filled = append(filled, c.FillNull(0))
	}
	return out.With(filled...)
}

// TermRatioConfig configures TermToUserRatios.
type TermRatioConfig struct {
	Counters   []string `yaml:"counters"`
	CalcTypes  []string `yaml:"calc_types"`
	AliasAll   string   `yaml:"alias_all"`
	AliasTerms string   `yaml:"alias_terms"`
	NewAlias   string   `yaml:"new_alias"`
}

// DefaultTermRatioConfig returns the default term to user ratio configuration.
func DefaultTermRatioConfig() TermRatioConfig {
	return TermRatioConfig{
		Counters:   []string{"total_search_impression", "total_search_click"},
		CalcTypes:  []string{"sum", "avg", "max"},
		AliasAll:   "user_search",
		AliasTerms: "user_top_terms",
		NewAlias:   "term_to_user",
	}
}

var calcKinds = map[string][2]FeatureKind{
	"sum": {FeatureSum, FeatureSumRatio},
	"avg": {FeatureAvg, FeatureAvgRatio},
	"max": {FeatureMax, FeatureMaxRatio},
}

// Validate reports configuration errors.
func (c TermRatioConfig) Validate() error {
	if len(c.Counters) == 0 || len(c.CalcTypes) == 0 {
		return newConfigError(termRatiosTransform, "counters and calc types are required")
	}
	if c.AliasAll == "" || c.AliasTerms == "" || c.NewAlias == "" {
		return newConfigError(termRatiosTransform, "aliases are required")
	}
	for _, t := range c.CalcTypes {
		if _, ok := calcKinds[t]; !ok {
			return newConfigError(termRatiosTransform, fmt.Sprintf("unknown calc type %q", t))
		}
	}
	return nil
}

// TermToUserRatios relates term-level history aggregates to the user's
// aggregates over all terms. A zero or null user-level value yields 0.
func TermToUserRatios(df *frame.Frame, cfg TermRatioConfig) (*frame.Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var cols []*frame.Column
	for _, counter := range cfg.Counters {
		for _, t := range cfg.CalcTypes {
			kinds := calcKinds[t]
			all, err := numbers(termRatiosTransform, df, FeatureName(cfg.AliasAll, counter, kinds[0], 0))
			if err != nil {
				return nil, err
			}
			terms, err := numbers(termRatiosTransform, df, FeatureName(cfg.AliasTerms, counter, kinds[0], 0))
			if err != nil {
				return nil, err
			}
			ratio := make([]float64, len(all))
			for i := range ratio {
				if all[i] > 0 {
					ratio[i] = terms[i] / all[i]
				}
			}
			cols = append(cols, frame.Floats(FeatureName(cfg.NewAlias, counter, kinds[1], 0), ratio))
		}
	}
	return df.With(cols...)
}
