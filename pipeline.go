package pitfeat

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Tables holds the named auxiliary frames a pipeline reads from.
type Tables map[string]*Frame

// Stage is one transform applied by a Pipeline.
type Stage interface {
	Name() string
	// Inputs lists the table names the stage reads, in the order Apply
	// passes them to the transform.
	Inputs() []string
	Apply(ctx context.Context, df *Frame, tables Tables) (*Frame, error)
}

type stageFunc func(df *Frame, in []*Frame) (*Frame, error)

type boundStage struct {
	name   string
	kind   string
	tables []string
	fn     stageFunc
}

// newStage binds the input roles of s to their table names.
func newStage(s StageConfig, roles []string, fn stageFunc) *boundStage {
	tables := make([]string, len(roles))
	for i, r := range roles {
		tables[i] = s.Inputs[r]
	}
	return &boundStage{name: s.Name, kind: s.Kind, tables: tables, fn: fn}
}

// StageFunc wraps a transform over the base frame alone as a Stage.
func StageFunc(name string, fn func(df *Frame) (*Frame, error)) Stage {
	return &boundStage{name: name, kind: name, fn: func(df *Frame, _ []*Frame) (*Frame, error) {
		return fn(df)
	}}
}

func (s *boundStage) Name() string     { return s.name }
func (s *boundStage) Inputs() []string { return s.tables }

func (s *boundStage) Apply(ctx context.Context, df *Frame, tables Tables) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in := make([]*Frame, len(s.tables))
	for i, name := range s.tables {
		t, ok := tables[name]
		if !ok || t == nil {
			return nil, fmt.Errorf("stage %s: table %q not loaded: %w", s.name, name, ErrEmptyInput)
		}
		in[i] = t
	}
	return s.fn(df, in)
}

// Pipeline applies stages in order, each extending the output of the
// previous one. A failing stage aborts the run and nothing is returned.
type Pipeline struct {
	// Base names the table the first stage starts from.
	Base   string
	Stages []Stage
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Metrics is optional.
	Metrics *Metrics
}

// Tables returns the distinct table names the pipeline reads, base first.
func (p *Pipeline) Tables() []string {
	seen := map[string]bool{p.Base: true}
	names := []string{p.Base}
	for _, s := range p.Stages {
		for _, t := range s.Inputs() {
			if !seen[t] {
				seen[t] = true
				names = append(names, t)
			}
		}
	}
	return names
}

// Run applies every stage to the base table.
func (p *Pipeline) Run(ctx context.Context, tables Tables) (*Frame, error) {
	base, ok := tables[p.Base]
	if !ok || base == nil {
		return nil, fmt.Errorf("pipeline: base table %q: %w", p.Base, ErrEmptyInput)
	}
	return p.Apply(ctx, base, tables)
}

// Apply runs every stage starting from df.
func (p *Pipeline) Apply(ctx context.Context, df *Frame, tables Tables) (*Frame, error) {
	if df == nil {
		return nil, fmt.Errorf("pipeline: %w", ErrEmptyInput)
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cur := df
	for _, s := range p.Stages {
		logger.Debug("stage started", "stage", s.Name(), "rows", cur.Len(), "columns", cur.Width())
		start := time.Now()
		next, err := s.Apply(ctx, cur, tables)
		elapsed := time.Since(start)
		if err != nil {
			p.Metrics.observe(s.Name(), elapsed.Seconds(), 0, err)
			logger.Error("stage failed", "stage", s.Name(), "duration", elapsed, "err", err)
			return nil, fmt.Errorf("stage %s: %w", s.Name(), err)
		}
		p.Metrics.observe(s.Name(), elapsed.Seconds(), next.Len(), nil)
		logger.Info("stage finished", "stage", s.Name(), "rows", next.Len(), "columns", next.Width(), "duration", elapsed)
		cur = next
	}
	return cur, nil
}
