// Package decay computes half-life weighted aggregates and trailing step
// windows over an entity's strictly earlier interactions.
package decay

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"sort"

	"github.com/alitto/pond/v2"

	"github.com/chronicle-db/pitfeat/internal/estimator"
	"github.com/chronicle-db/pitfeat/internal/frame"
	"github.com/chronicle-db/pitfeat/internal/naming"
	"github.com/chronicle-db/pitfeat/internal/rolling"
	"github.com/chronicle-db/pitfeat/internal/steps"
)

var (
	// ErrNoCounters is returned when Config.Counters is empty.
	ErrNoCounters = errors.New("decay: counter columns are required")

	// ErrNoAlias is returned when Config.Alias is empty.
	ErrNoAlias = errors.New("decay: alias is required")
)

// Config controls a decay computation.
type Config struct {
	EntityCol string
	// SecondaryCol optionally narrows the partition, e.g. to user+content.
	// Steps are always counted per EntityCol.
	SecondaryCol  string
	TimeCol       string
	Counters      []string
	HalfLife      float64
	DecayConstant float64
	Windows       []int
	Alias         string
	// KeepStdNulls leaves single-sample rolling deviations null instead of 0.
	KeepStdNulls bool
	// Parallelism bounds the partition worker pool. Zero uses GOMAXPROCS.
	Parallelism int
}

// DefaultConfig returns the defaults for a user-level decay.
func DefaultConfig() Config {
	return Config{
		EntityCol:     "user_id_hashed",
		TimeCol:       "ts_hour",
		HalfLife:      3,
		DecayConstant: estimator.Ln05,
		Windows:       []int{3, 6, 12},
	}
}

// Validate checks the configuration before any data is touched.
func (c Config) Validate() error {
	if len(c.Counters) == 0 {
		return ErrNoCounters
	}
	if c.Alias == "" {
		return ErrNoAlias
	}
	if c.EntityCol == "" || c.TimeCol == "" {
		return errors.New("decay: entity and time columns are required")
	}
	if c.HalfLife <= 0 {
		return fmt.Errorf("decay: half-life must be positive, got %v", c.HalfLife)
	}
	if c.DecayConstant == 0 {
		return errors.New("decay: decay constant must be non-zero")
	}
	for _, w := range c.Windows {
		if w < 1 {
			return fmt.Errorf("decay: window sizes must be positive, got %d", w)
		}
	}
	return nil
}

func (c Config) partitionKeys() []string {
	if c.SecondaryCol == "" {
		return []string{c.EntityCol}
	}
	return []string{c.EntityCol, c.SecondaryCol}
}

// history is one partition's past, ordered by step.
type history struct {
	steps  []int64
	values [][]float64 // per counter
	// carry[c][j] is the decay score of counter c evaluated at steps[j].
	carry [][]float64
	raw   [][][]rolling.Agg
}

// Apply returns base with decay and rolling features appended for every
// counter present in hist. Base row order is preserved. Rows without earlier
// history in their partition get 0 for every derived column.
func Apply(base, hist *frame.Frame, cfg Config) (*frame.Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	keys := cfg.partitionKeys()
	if err := base.Require(append(slices.Clone(keys), cfg.TimeCol)...); err != nil {
		return nil, fmt.Errorf("decay base: %w", err)
	}
	if err := hist.Require(append(slices.Clone(keys), cfg.TimeCol)...); err != nil {
		return nil, fmt.Errorf("decay history: %w", err)
	}

	var counters []string
	for _, c := range cfg.Counters {
		if hist.Has(c) {
			counters = append(counters, c)
		}
	}

	mapping, err := steps.Sequence([]string{cfg.EntityCol}, cfg.TimeCol, hist, base)
	if err != nil {
		return nil, fmt.Errorf("decay: %w", err)
	}
	baseSteps, err := stepsOf(base, mapping, cfg)
	if err != nil {
		return nil, err
	}
	histSteps, err := stepsOf(hist, mapping, cfg)
	if err != nil {
		return nil, err
	}

	values := make([]*frame.Column, len(counters))
	for i, c := range counters {
		if values[i], err = hist.FloatColumn(c); err != nil {
			return nil, fmt.Errorf("decay history: %w", err)
		}
	}

	lambda := cfg.DecayConstant / cfg.HalfLife
	parts, err := partition(hist, keys, histSteps, values, cfg.Windows, lambda)
	if err != nil {
		return nil, err
	}
	baseKeys, baseOK, err := base.RowKeys(keys...)
	if err != nil {
		return nil, fmt.Errorf("decay base: %w", err)
	}

	// Group base rows by partition so each worker owns disjoint output rows.
	byPart := make(map[string][]int)
	var order []string
	for r, k := range baseKeys {
		if !baseOK[r] {
			continue
		}
		if _, ok := parts[k]; !ok {
			continue
		}
		if _, seen := byPart[k]; !seen {
			order = append(order, k)
		}
		byPart[k] = append(byPart[k], r)
	}

	out := newOutputs(counters, cfg, base.Len())
	workers := cfg.Parallelism
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	pool := pond.NewPool(workers)
	defer pool.StopAndWait()
	group := pool.NewGroup()
	for _, k := range order {
		h, rows := parts[k], byPart[k]
		group.Submit(func() {
			for _, r := range rows {
				out.fill(r, baseSteps[r], h, lambda)
			}
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, pond.ErrGroupStopped) {
		return nil, fmt.Errorf("decay: %w", err)
	}

	return base.With(out.columns()...)
}

// stepsOf attaches the entity step to every row of f. Rows with a null
// entity get step 0; their partition key is invalid so they never
// contribute history and read as cold start.
func stepsOf(f, mapping *frame.Frame, cfg Config) ([]int64, error) {
	entity, err := f.Column(cfg.EntityCol)
	if err != nil {
		return nil, err
	}
	keys, err := f.Select(cfg.EntityCol, cfg.TimeCol)
	if err != nil {
		return nil, err
	}
	joined, err := steps.Attach(keys, mapping, []string{cfg.EntityCol}, cfg.TimeCol)
	if err != nil {
		return nil, fmt.Errorf("decay: %w", err)
	}
	c, err := joined.Column(steps.Column)
	if err != nil {
		return nil, err
	}
	out := make([]int64, c.Len())
	for i := range out {
		if entity.IsNull(i) {
			continue
		}
		v, ok := c.Int(i)
		if !ok {
			return nil, fmt.Errorf("decay: row %d has no step", i)
		}
		out[i] = v
	}
	return out, nil
}

// partition groups history rows by key and orders each group by step.
// Ties keep frame order. Null counters read as 0.
func partition(hist *frame.Frame, keys []string, st []int64, values []*frame.Column, windows []int, lambda float64) (map[string]*history, error) {
	p, err := hist.Partition(keys...)
	if err != nil {
		return nil, fmt.Errorf("decay history: %w", err)
	}
	_, ok, err := hist.RowKeys(keys...)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*history, len(p.Keys))
	for i, k := range p.Keys {
		rows := p.Rows[i]
		if !ok[rows[0]] {
			continue
		}
		rows = slices.Clone(rows)
		slices.SortStableFunc(rows, func(a, b int) int { return cmp.Compare(st[a], st[b]) })

		h := &history{
			steps:  make([]int64, len(rows)),
			values: make([][]float64, len(values)),
			carry:  make([][]float64, len(values)),
			raw:    make([][][]rolling.Agg, len(values)),
		}
		for j, r := range rows {
			h.steps[j] = st[r]
		}
		for c, col := range values {
			vs := make([]float64, len(rows))
			for j, r := range rows {
				vs[j] = col.FloatOr(r, 0)
			}
			h.values[c] = vs
			h.carry[c] = carry(vs, h.steps, lambda)
			h.raw[c] = make([][]rolling.Agg, len(windows))
			for w, n := range windows {
				h.raw[c][w] = rolling.Count(vs, n)
			}
		}
		out[k] = h
	}
	return out, nil
}

// carry folds the decay score forward along the sequence so that the score
// at any later step is one multiplication away.
func carry(values []float64, st []int64, lambda float64) []float64 {
	out := make([]float64, len(values))
	for j, v := range values {
		if j == 0 {
			out[j] = v
			continue
		}
		out[j] = out[j-1]*math.Exp(float64(st[j]-st[j-1])*lambda) + v
	}
	return out
}

// visible returns how many history entries have a step strictly below b.
func (h *history) visible(b int64) int {
	return sort.Search(len(h.steps), func(i int) bool { return h.steps[i] >= b })
}

// outputs holds the derived column buffers for every counter.
type outputs struct {
	counters []string
	windows  []int
	alias    string
	keepStd  bool

	score    [][]float64
	decMean  [][][]float64
	decStd   [][][]float64
	decStdOK [][][]bool
	rawMean  [][][]float64
	rawSum   [][][]float64
	last     [][]float64
}

func newOutputs(counters []string, cfg Config, n int) *outputs {
	o := &outputs{
		counters: counters,
		windows:  cfg.Windows,
		alias:    cfg.Alias,
		keepStd:  cfg.KeepStdNulls,
	}
	o.score = make([][]float64, len(counters))
	o.last = make([][]float64, len(counters))
	o.decMean = make([][][]float64, len(counters))
	o.decStd = make([][][]float64, len(counters))
	o.decStdOK = make([][][]bool, len(counters))
	o.rawMean = make([][][]float64, len(counters))
	o.rawSum = make([][][]float64, len(counters))
	for c := range counters {
		o.score[c] = make([]float64, n)
		o.last[c] = make([]float64, n)
		o.decMean[c] = make([][]float64, len(cfg.Windows))
		o.decStd[c] = make([][]float64, len(cfg.Windows))
		o.decStdOK[c] = make([][]bool, len(cfg.Windows))
		o.rawMean[c] = make([][]float64, len(cfg.Windows))
		o.rawSum[c] = make([][]float64, len(cfg.Windows))
		for w := range cfg.Windows {
			o.decMean[c][w] = make([]float64, n)
			o.decStd[c][w] = make([]float64, n)
			o.decStdOK[c][w] = make([]bool, n)
			for i := range o.decStdOK[c][w] {
				o.decStdOK[c][w][i] = true
			}
			o.rawMean[c][w] = make([]float64, n)
			o.rawSum[c][w] = make([]float64, n)
		}
	}
	return o
}

// fill computes every derived value of base row r at step b.
func (o *outputs) fill(r int, b int64, h *history, lambda float64) {
	p := h.visible(b)
	if p == 0 {
		return
	}

	for c := range o.counters {
		vs := h.values[c]
		o.score[c][r] = h.carry[c][p-1] * math.Exp(float64(b-h.steps[p-1])*lambda)
		o.last[c][r] = vs[p-1]

		for w, n := range o.windows {
			win := rolling.NewWindow()
			for j := max(0, p-n); j < p; j++ {
				win.Push(vs[j] * math.Exp(float64(b-h.steps[j])*lambda))
			}
			dec := win.Agg()
			o.decMean[c][w][r] = dec.Mean
			o.decStd[c][w][r] = dec.Std
			o.decStdOK[c][w][r] = dec.StdOK || !o.keepStd

			raw := h.raw[c][w][p-1]
			o.rawMean[c][w][r] = raw.Mean
			o.rawSum[c][w][r] = raw.Sum
		}
	}
}

// columns returns the derived columns in a stable order: per counter the
// decay score, then per window the decayed mean and std and the raw mean and
// sum, then the last observed value.
func (o *outputs) columns() []*frame.Column {
	var cols []*frame.Column
	for c, name := range o.counters {
		cols = append(cols, frame.Floats(naming.Feature(o.alias, name, naming.KindDecayScore, 0), o.score[c]))
		for w, n := range o.windows {
			cols = append(cols,
				frame.Floats(naming.Feature(o.alias, name, naming.KindDecayedRollMean, n), o.decMean[c][w]),
				frame.NullableFloats(naming.Feature(o.alias, name, naming.KindDecayedRollStd, n), o.decStd[c][w], o.decStdOK[c][w]),
				frame.Floats(naming.Feature(o.alias, name, naming.KindRollMean, n), o.rawMean[c][w]),
				frame.Floats(naming.Feature(o.alias, name, naming.KindRollSum, n), o.rawSum[c][w]),
			)
		}
		cols = append(cols, frame.Floats(naming.Feature(o.alias, name, naming.KindLast, 0), o.last[c]))
	}
	return cols
}
