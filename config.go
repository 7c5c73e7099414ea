package pitfeat

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Stage kinds accepted in a pipeline definition.
const (
	StageContentPriceHistory = "content_price_history"
	StageUserHistory         = "user_history"
	StageTermToUserRatios    = "term_to_user_ratios"
	StageCandidateCounter    = "candidate_counter"
	StageSessionRanking      = "session_ranking"
	StageTimeWindowHistory   = "time_window_history"
	StageUserMetadata        = "user_metadata"
	StageDecayFeatures       = "decay_features"
)

// PipelineConfig is the YAML definition of a feature pipeline.
//
//	base: interactions
//	output: train_features
//	stages:
//	  - name: user_sitewide
//	    kind: user_history
//	    inputs: {users: user_sitewide_hourly}
//	    params:
//	      exact_match: false
type PipelineConfig struct {
	// Base names the table every stage extends.
	Base string `yaml:"base"`
	// Output names the snapshot the result is stored under.
	Output string        `yaml:"output"`
	Stages []StageConfig `yaml:"stages"`
}

// StageConfig is one pipeline step. Params are decoded over the defaults of
// the stage kind, so omitted fields keep their default values.
type StageConfig struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	// Inputs binds the stage's auxiliary roles to table names.
	Inputs map[string]string `yaml:"inputs"`
	Params yaml.Node         `yaml:"params"`
}

// DefaultPipelineConfig returns an empty pipeline over the interactions table.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{Base: "interactions", Output: "features"}
}

// LoadPipelineConfig reads a pipeline definition from a YAML file.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pipeline config: %w", err)
	}
	return ParsePipelineConfig(data)
}

// ParsePipelineConfig parses and validates a YAML pipeline definition.
func ParsePipelineConfig(data []byte) (*PipelineConfig, error) {
	cfg := DefaultPipelineConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing pipeline config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks stage kinds, names and inputs. Stage parameters are
// validated when the pipeline is built.
func (c *PipelineConfig) Validate() error {
	if c.Base == "" {
		return newConfigError("pipeline", "base table is required")
	}
	seen := make(map[string]bool, len(c.Stages))
	for i, s := range c.Stages {
		if s.Name == "" {
			return newConfigError("pipeline", fmt.Sprintf("stage[%d] name is required", i))
		}
		if seen[s.Name] {
			return newConfigError("pipeline", fmt.Sprintf("duplicate stage name %q", s.Name))
		}
		seen[s.Name] = true
		kind, ok := stageKinds[s.Kind]
		if !ok {
			return newConfigError("pipeline", fmt.Sprintf("stage %q has unknown kind %q", s.Name, s.Kind))
		}
		for _, role := range kind.inputs {
			if s.Inputs[role] == "" {
				return newConfigError("pipeline", fmt.Sprintf("stage %q needs input %q", s.Name, role))
			}
		}
		for role := range s.Inputs {
			if !slices.Contains(kind.inputs, role) {
				return newConfigError("pipeline", fmt.Sprintf("stage %q has unexpected input %q", s.Name, role))
			}
		}
	}
	return nil
}

// Build turns the definition into a runnable pipeline.
func (c *PipelineConfig) Build() (*Pipeline, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{Base: c.Base}
	for _, s := range c.Stages {
		kind := stageKinds[s.Kind]
		fn, err := kind.build(s)
		if err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, newStage(s, kind.inputs, fn))
	}
	return p, nil
}

// decodeParams overlays the stage params onto def. A stage without params
// keeps def unchanged.
func decodeParams[T interface{ Validate() error }](s StageConfig, def T) (T, error) {
	if !s.Params.IsZero() {
		if err := s.Params.Decode(&def); err != nil {
			return def, newConfigError(s.Kind, fmt.Sprintf("stage %q params: %v", s.Name, err))
		}
	}
	if err := def.Validate(); err != nil {
		return def, err
	}
	return def, nil
}

type stageKind struct {
	inputs []string
	build  func(StageConfig) (stageFunc, error)
}

var stageKinds = map[string]stageKind{
	StageContentPriceHistory: {
		inputs: []string{"prices", "metadata"},
		build: func(s StageConfig) (stageFunc, error) {
			cfg, err := decodeParams(s, DefaultContentPriceConfig())
			if err != nil {
				return nil, err
			}
			return stageFunc(func(df *Frame, in []*Frame) (*Frame, error) {
				return ContentPriceHistory(df, in[0], in[1], cfg)
			}), nil
		},
	},
	StageUserHistory: {
		inputs: []string{"users"},
		build: func(s StageConfig) (stageFunc, error) {
			cfg, err := decodeParams(s, DefaultUserHistoryConfig())
			if err != nil {
				return nil, err
			}
			return stageFunc(func(df *Frame, in []*Frame) (*Frame, error) {
				return UserHistory(df, in[0], cfg)
			}), nil
		},
	},
	StageTermToUserRatios: {
		build: func(s StageConfig) (stageFunc, error) {
			cfg, err := decodeParams(s, DefaultTermRatioConfig())
			if err != nil {
				return nil, err
			}
			return stageFunc(func(df *Frame, _ []*Frame) (*Frame, error) {
				return TermToUserRatios(df, cfg)
			}), nil
		},
	},
	StageCandidateCounter: {
		build: func(s StageConfig) (stageFunc, error) {
			cfg, err := decodeParams(s, DefaultCandidateConfig())
			if err != nil {
				return nil, err
			}
			return stageFunc(func(df *Frame, _ []*Frame) (*Frame, error) {
				return CandidateCounter(df, cfg)
			}), nil
		},
	},
	StageSessionRanking: {
		build: func(s StageConfig) (stageFunc, error) {
			cfg, err := decodeParams(s, DefaultSessionRankingConfig())
			if err != nil {
				return nil, err
			}
			return stageFunc(func(df *Frame, _ []*Frame) (*Frame, error) {
				return SessionRanking(df, cfg)
			}), nil
		},
	},
	StageTimeWindowHistory: {
		inputs: []string{"values"},
		build: func(s StageConfig) (stageFunc, error) {
			cfg, err := decodeParams(s, DefaultTimeWindowConfig())
			if err != nil {
				return nil, err
			}
			return stageFunc(func(df *Frame, in []*Frame) (*Frame, error) {
				return TimeWindowHistory(df, in[0], cfg)
			}), nil
		},
	},
	StageUserMetadata: {
		inputs: []string{"metadata"},
		build: func(s StageConfig) (stageFunc, error) {
			cfg, err := decodeParams(s, DefaultUserMetadataConfig())
			if err != nil {
				return nil, err
			}
			return stageFunc(func(df *Frame, in []*Frame) (*Frame, error) {
				return UserMetadata(df, in[0], cfg)
			}), nil
		},
	},
	StageDecayFeatures: {
		inputs: []string{"history"},
		build: func(s StageConfig) (stageFunc, error) {
			cfg, err := decodeParams(s, DefaultDecayConfig())
			if err != nil {
				return nil, err
			}
			return stageFunc(func(df *Frame, in []*Frame) (*Frame, error) {
				return DecayFeatures(df, in[0], cfg)
			}), nil
		},
	},
}

// UnmarshalYAML accepts a pair either as a two-element list or as a mapping
// with first and second keys.
func (p *Pair) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		if len(items) != 2 {
			return fmt.Errorf("line %d: a pair needs exactly two items, got %d", value.Line, len(items))
		}
		p.First, p.Second = items[0], items[1]
		return nil
	}
	type plain Pair
	return value.Decode((*plain)(p))
}

// MarshalYAML writes a pair as a two-element list.
func (p Pair) MarshalYAML() (any, error) {
	return []string{p.First, p.Second}, nil
}
