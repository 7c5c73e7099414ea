package pitfeat

import (
	"github.com/chronicle-db/pitfeat/internal/estimator"
	"github.com/chronicle-db/pitfeat/internal/frame"
)

// Columns produced by UserMetadata.
const (
	ColUserAge       = "user_age"
	ColUserSignUpAge = "user_sign_up_age"
)

// UserMetadataConfig configures UserMetadata.
type UserMetadataConfig struct {
	UserCol      string `yaml:"user_col"`
	BirthYearCol string `yaml:"birth_year_col"`
	TenureCol    string `yaml:"tenure_col"`
	// GenderCol is carried through when set.
	GenderCol     string `yaml:"gender_col"`
	ReferenceYear int    `yaml:"reference_year"`
	MinBirthYear  int    `yaml:"min_birth_year"`
	MinSignUpAge  int    `yaml:"min_sign_up_age"`
}

// DefaultUserMetadataConfig returns the default user metadata configuration.
func DefaultUserMetadataConfig() UserMetadataConfig {
	return UserMetadataConfig{
		UserCol:       "user_id_hashed",
		BirthYearCol:  "user_birth_year",
		TenureCol:     "user_tenure_in_days",
		GenderCol:     "user_gender",
		ReferenceYear: 2025,
		MinBirthYear:  1960,
		MinSignUpAge:  16,
	}
}

// Validate reports configuration errors.
func (c UserMetadataConfig) Validate() error {
	if c.UserCol == "" || c.BirthYearCol == "" || c.TenureCol == "" {
		return newConfigError(userMetadataTransform, "user, birth year and tenure columns are required")
	}
	if c.ReferenceYear < c.MinBirthYear {
		return newConfigError(userMetadataTransform, "reference year precedes the minimum birth year")
	}
	return nil
}

// UserMetadata left-joins age, sign-up age, tenure and gender onto df.
//
// Birth years before MinBirthYear are raised to it; a missing birth year is
// imputed with the median of the recorded ones. When the implied sign-up age
// falls below MinSignUpAge, sign-up age becomes MinSignUpAge and age is
// recomputed from it, so age minus tenure always equals sign-up age.
// meta should hold one row per user; later duplicates are ignored.
func UserMetadata(df, meta *frame.Frame, cfg UserMetadataConfig) (*frame.Frame, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := requireColumns(userMetadataTransform, df, cfg.UserCol); err != nil {
		return nil, err
	}
	needed := []string{cfg.UserCol, cfg.BirthYearCol, cfg.TenureCol}
	if cfg.GenderCol != "" {
		needed = append(needed, cfg.GenderCol)
	}
	if err := requireColumns(userMetadataTransform, meta, needed...); err != nil {
		return nil, err
	}

	meta, err := firstPerKey(meta, cfg.UserCol)
	if err != nil {
		return nil, schemaErr(userMetadataTransform, err)
	}
	births, err := nullableNumbers(userMetadataTransform, meta, cfg.BirthYearCol)
	if err != nil {
		return nil, err
	}
	tenure, err := numbers(userMetadataTransform, meta, cfg.TenureCol)
	if err != nil {
		return nil, err
	}

	var recorded []float64
	for i := 0; i < births.Len(); i++ {
		if v, ok := births.Float(i); ok {
			recorded = append(recorded, v)
		}
	}
	median, haveMedian := estimator.Median(recorded)

	n := meta.Len()
	age := make([]float64, n)
	signUp := make([]float64, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		birth, ok := births.Float(i)
		switch {
		case ok:
			birth = max(birth, float64(cfg.MinBirthYear))
		case haveMedian:
			birth = median
		default:
			continue
		}
		valid[i] = true
		years := tenure[i] / 365
		age[i] = float64(cfg.ReferenceYear) - birth
		if age[i]-years < float64(cfg.MinSignUpAge) {
			age[i] = float64(cfg.MinSignUpAge) + years
		}
		signUp[i] = age[i] - years
	}

	cols := []string{cfg.UserCol}
	if cfg.GenderCol != "" {
		cols = append(cols, cfg.GenderCol)
	}
	right, err := meta.Select(cols...)
	if err != nil {
		return nil, schemaErr(userMetadataTransform, err)
	}
	tenureCol, _ := meta.Column(cfg.TenureCol)
	if right, err = right.With(
		frame.NullableFloats(ColUserAge, age, valid),
		frame.NullableFloats(ColUserSignUpAge, signUp, valid),
		tenureCol,
	); err != nil {
		return nil, err
	}
	out, err := df.LeftJoin(right, []string{cfg.UserCol}, "_right")
	if err != nil {
		return nil, schemaErr(userMetadataTransform, err)
	}
	return out, nil
}
