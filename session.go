package pitfeat

import (
	"fmt"
	"slices"

	"github.com/chronicle-db/pitfeat/internal/estimator"
	"github.com/chronicle-db/pitfeat/internal/frame"
)

const (
	candidateTransform      = "candidate_counter"
	sessionRankingTransform = "session_ranking"
)

// Columns produced by the session transforms.
const (
	ColSessionCandidateCount = "session_candidate_count"
	ColAvgSessionRank        = "avg_content_search_and_sitewide_rank"
	ColMedianSessionRank     = "median_content_search_and_sitewide_rank"
	ColTotalWeightedScore    = "total_content_search_and_sitewide_weighted_score"
)

// CandidateConfig configures CandidateCounter.
type CandidateConfig struct {
	SessionCol string `yaml:"session_col"`
	ContentCol string `yaml:"content_col"`
}

// DefaultCandidateConfig returns the default candidate counter configuration.
func DefaultCandidateConfig() CandidateConfig {
	return CandidateConfig{SessionCol: "session_id", ContentCol: "content_id_hashed"}
}

func (c CandidateConfig) Validate() error {
	if c.SessionCol == "" || c.ContentCol == "" {
		return newConfigError(candidateTransform, "session and content columns are required")
	}
	return nil
}

// CandidateCounter adds the number of non-null candidates in each row's
// session.
func CandidateCounter(df *frame.Frame, cfg CandidateConfig) (*frame.Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := requireColumns(candidateTransform, df, cfg.SessionCol, cfg.ContentCol); err != nil {
		return nil, err
	}
	p, err := df.Partition(cfg.SessionCol)
	if err != nil {
		return nil, schemaErr(candidateTransform, err)
	}
	content, _ := df.Column(cfg.ContentCol)
	perGroup := make([]int64, len(p.Keys))
	for g, rows := range p.Rows {
		for _, r := range rows {
			if !content.IsNull(r) {
				perGroup[g]++
			}
		}
	}
	counts := make([]int64, df.Len())
	for r := range counts {
		counts[r] = perGroup[p.Of[r]]
	}
	return df.With(frame.Ints(ColSessionCandidateCount, counts))
}

// SessionTable is one source of content aggregates ranked within sessions.
type SessionTable struct {
	Name     string   `yaml:"name"`
	Counters []string `yaml:"counters"`
	Weight   float64  `yaml:"weight"`
}

// SessionRankingConfig configures SessionRanking.
type SessionRankingConfig struct {
	SessionCol string         `yaml:"session_col"`
	Tables     []SessionTable `yaml:"tables"`
	// Weights maps every counter named by a table to its business weight.
	Weights map[string]float64 `yaml:"weights"`
	// LowRankCols rank ascending (smaller is better).
	LowRankCols []string `yaml:"low_rank_cols"`
	// HighRankCols rank descending (larger is better).
	HighRankCols []string `yaml:"high_rank_cols"`
}

// DefaultSessionRankingConfig returns the default session ranking configuration.
func DefaultSessionRankingConfig() SessionRankingConfig {
	search := []string{"total_search_impression", "total_search_click"}
	sitewide := []string{"total_click", "total_cart", "total_order", "total_fav"}
	return SessionRankingConfig{
		SessionCol: "session_id",
		Tables: []SessionTable{
			{Name: "content_top_terms", Counters: search, Weight: 0.3},
			{Name: "content_sitewide", Counters: sitewide, Weight: 0.6},
			{Name: "content_search", Counters: search, Weight: 0.1},
		},
		Weights: map[string]float64{
			"total_order":             0.476,
			"total_click":             0.204,
			"total_cart":              0.254,
			"total_fav":               0.066,
			"total_search_impression": 0.1,
			"total_search_click":      0.9,
		},
		LowRankCols:  lowRankColumns(),
		HighRankCols: slices.Clone(highRankColumns),
	}
}

// Validate reports configuration errors.
func (c SessionRankingConfig) Validate() error {
	if c.SessionCol == "" {
		return newConfigError(sessionRankingTransform, "session column is required")
	}
	for _, t := range c.Tables {
		if t.Name == "" || len(t.Counters) == 0 {
			return newConfigError(sessionRankingTransform, "tables need a name and counters")
		}
		for _, col := range t.Counters {
			if _, ok := c.Weights[col]; !ok {
				return newConfigError(sessionRankingTransform, fmt.Sprintf("no weight for counter %q of table %q", col, t.Name))
			}
		}
	}
	return nil
}

// Presence records whether an optional column takes part in a ranking run.
type Presence int

const (
	// Absent columns are skipped.
	Absent Presence = iota
	// Included columns are ranked.
	Included
)

func (p Presence) String() string {
	if p == Included {
		return "included"
	}
	return "absent"
}

// PlannedColumn is one optional column and the decision taken for it.
type PlannedColumn struct {
	Column     string
	Presence   Presence
	Descending bool
}

// PlannedTable is one source table with the counter columns it contributes.
type PlannedTable struct {
	Table    SessionTable
	Columns  []PlannedColumn
	Presence Presence
}

// RankingPlan is the resolved set of inputs for SessionRanking against one
// schema. Decisions are made once, before any row is read.
type RankingPlan struct {
	// Metrics are the interaction columns ranked within sessions.
	Metrics []PlannedColumn
	// Tables contribute weighted scores.
	Tables []PlannedTable
	// Content are the price and review columns ranked within sessions.
	Content []PlannedColumn
}

// included filters cols to those present in the schema.
func included(cols []PlannedColumn) []PlannedColumn {
	var out []PlannedColumn
	for _, c := range cols {
		if c.Presence == Included {
			out = append(out, c)
		}
	}
	return out
}

// PlanSessionRanking resolves which optional columns of cfg exist in the
// given column set.
func PlanSessionRanking(columns []string, cfg SessionRankingConfig) (*RankingPlan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	has := make(map[string]bool, len(columns))
	for _, c := range columns {
		has[c] = true
	}
	presence := func(name string) Presence {
		if has[name] {
			return Included
		}
		return Absent
	}

	plan := &RankingPlan{}
	seen := make(map[string]bool)
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		plan.Metrics = append(plan.Metrics, PlannedColumn{Column: name, Presence: presence(name), Descending: true})
	}
	for _, t := range cfg.Tables {
		for _, a := range t.Counters {
			for _, b := range t.Counters {
				if a == b {
					continue
				}
				add(FeatureName(t.Name, PairMetric(a, b), FeatureAvgRatio, 0))
				add(FeatureName(t.Name, a, FeatureRaw, 0))
				add(FeatureName(t.Name, b, FeatureRaw, 0))
			}
		}
	}

	for _, t := range cfg.Tables {
		pt := PlannedTable{Table: t}
		for _, c := range t.Counters {
			name := FeatureName(t.Name, c, FeatureRaw, 0)
			pc := PlannedColumn{Column: name, Presence: presence(name), Descending: true}
			pt.Columns = append(pt.Columns, pc)
			if pc.Presence == Included {
				pt.Presence = Included
			}
		}
		plan.Tables = append(plan.Tables, pt)
	}

	for _, c := range cfg.LowRankCols {
		plan.Content = append(plan.Content, PlannedColumn{Column: c, Presence: presence(c)})
	}
	for _, c := range cfg.HighRankCols {
		plan.Content = append(plan.Content, PlannedColumn{Column: c, Presence: presence(c), Descending: true})
	}
	return plan, nil
}

// SessionRanking ranks every candidate within its session by the
// interaction metrics of each source table, by per-table weighted scores,
// and by price and review metrics. Optional columns missing from df are
// skipped rather than treated as errors; only the session column is
// required.
func SessionRanking(df *frame.Frame, cfg SessionRankingConfig) (*frame.Frame, error) {
	plan, err := PlanSessionRanking(df.Names(), cfg)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(sessionRankingTransform, df, cfg.SessionCol); err != nil {
		return nil, err
	}
	session := []string{cfg.SessionCol}
	n := df.Len()

	var (
		out      []*frame.Column
		rankCols []*frame.Column
	)
	for _, m := range included(plan.Metrics) {
		r, err := rankWithin(df, session, m.Column, m.Descending, RankName(cfg.SessionCol, m.Column))
		if err != nil {
			return nil, newSchemaError(sessionRankingTransform, m.Column, err)
		}
		out = append(out, r)
		rankCols = append(rankCols, r)
	}

	total := make([]float64, n)
	var weightedRanks []*frame.Column
	for _, t := range plan.Tables {
		if t.Presence == Absent {
			continue
		}
		score := make([]float64, n)
		for i, c := range t.Columns {
			if c.Presence == Absent {
				continue
			}
			vals, err := numbers(sessionRankingTransform, df, c.Column)
			if err != nil {
				return nil, err
			}
			w := cfg.Weights[t.Table.Counters[i]]
			for r, v := range vals {
				score[r] += v * w
			}
		}
		for r := range total {
			total[r] += score[r] * t.Table.Weight
		}
		name := TableScoreName(t.Table.Name)
		scoreCol := frame.Floats(name, score)
		out = append(out, scoreCol)

		tmp, err := df.With(scoreCol)
		if err != nil {
			return nil, err
		}
		r, err := rankWithin(tmp, session, name, true, RankName(cfg.SessionCol, name))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
		weightedRanks = append(weightedRanks, r)
	}
	rankCols = append(weightedRanks, rankCols...)

	avg, median := rankSummary(rankCols, n)
	out = append(out, avg, median, frame.Floats(ColTotalWeightedScore, total))

	for _, c := range included(plan.Content) {
		r, err := rankWithin(df, session, c.Column, c.Descending, RankName(cfg.SessionCol, c.Column))
		if err != nil {
			return nil, newSchemaError(sessionRankingTransform, c.Column, err)
		}
		out = append(out, r)
	}
	return df.With(out...)
}

// rankSummary returns the mean and median over the non-null ranks of every
// row. A row without any rank gets nulls.
func rankSummary(ranks []*frame.Column, n int) (avg, median *frame.Column) {
	means := make([]float64, n)
	medians := make([]float64, n)
	valid := make([]bool, n)
	row := make([]float64, 0, len(ranks))
	for r := 0; r < n; r++ {
		row = row[:0]
		for _, c := range ranks {
			if v, ok := c.Float(r); ok {
				row = append(row, v)
			}
		}
		m, ok := estimator.Mean(row)
		if !ok {
			continue
		}
		means[r] = m
		medians[r], _ = estimator.Median(row)
		valid[r] = true
	}
	return frame.NullableFloats(ColAvgSessionRank, means, valid),
		frame.NullableFloats(ColMedianSessionRank, medians, slices.Clone(valid))
}
