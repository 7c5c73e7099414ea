package pitfeat

import (
	"errors"

	"github.com/chronicle-db/pitfeat/internal/decay"
	"github.com/chronicle-db/pitfeat/internal/estimator"
	"github.com/chronicle-db/pitfeat/internal/frame"
)

const decayTransform = "decay_features"

// DecayConfig configures DecayFeatures.
type DecayConfig struct {
	EntityCol string `yaml:"entity_col"`
	// SecondaryCol narrows the history partition, e.g. to one content per
	// user. Steps are still counted per entity.
	SecondaryCol  string        `yaml:"secondary_col"`
	TimeCol       string        `yaml:"time_col"`
	Counters      []string      `yaml:"counters"`
	HalfLife      float64       `yaml:"half_life"`
	DecayConstant float64       `yaml:"decay_constant"`
	Windows       []int         `yaml:"windows"`
	Alias         string        `yaml:"alias"`
	StdNulls      StdNullPolicy `yaml:"std_nulls"`
	Parallelism   int           `yaml:"parallelism"`
}

// DefaultDecayConfig returns the user-level decay defaults. Counters and
// Alias have no default.
func DefaultDecayConfig() DecayConfig {
	d := decay.DefaultConfig()
	return DecayConfig{
		EntityCol:     d.EntityCol,
		TimeCol:       d.TimeCol,
		HalfLife:      d.HalfLife,
		DecayConstant: estimator.Ln05,
		Windows:       d.Windows,
		StdNulls:      StdNullsFill,
	}
}

func (c DecayConfig) internal() decay.Config {
	return decay.Config{
		EntityCol:     c.EntityCol,
		SecondaryCol:  c.SecondaryCol,
		TimeCol:       c.TimeCol,
		Counters:      c.Counters,
		HalfLife:      c.HalfLife,
		DecayConstant: c.DecayConstant,
		Windows:       c.Windows,
		Alias:         c.Alias,
		KeepStdNulls:  c.StdNulls == StdNullsKeep,
		Parallelism:   c.Parallelism,
	}
}

// Validate reports configuration errors.
func (c DecayConfig) Validate() error {
	if err := c.StdNulls.validate(decayTransform); err != nil {
		return err
	}
	if err := c.internal().Validate(); err != nil {
		return newConfigError(decayTransform, err.Error())
	}
	return nil
}

// DecayFeatures appends half-life weighted scores and trailing step windows
// computed from history rows strictly earlier than each df row.
func DecayFeatures(df, history *frame.Frame, cfg DecayConfig) (*frame.Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	keys := []string{cfg.EntityCol, cfg.TimeCol}
	if cfg.SecondaryCol != "" {
		keys = append(keys, cfg.SecondaryCol)
	}
	if err := requireColumns(decayTransform, df, keys...); err != nil {
		return nil, err
	}
	if err := requireColumns(decayTransform, history, keys...); err != nil {
		return nil, err
	}
	out, err := decay.Apply(df, history, cfg.internal())
	if err != nil {
		if errors.Is(err, frame.ErrKindMismatch) {
			return nil, newSchemaError(decayTransform, "", err)
		}
		return nil, &TransformError{Transform: decayTransform, Message: "apply", Cause: err}
	}
	return out, nil
}
