package pitfeat

import (
	"errors"
	"fmt"

	"github.com/chronicle-db/pitfeat/internal/asof"
	"github.com/chronicle-db/pitfeat/internal/frame"
)

// Common sentinel errors for the pitfeat package.
var (
	// ErrConfig is returned when a transform is configured inconsistently.
	// It is always raised before any computation starts.
	ErrConfig = errors.New("invalid configuration")

	// ErrSchema is returned when a required input column is absent or has
	// the wrong kind.
	ErrSchema = errors.New("schema mismatch")

	// ErrUnsorted is returned when an as-of join input violates its sort
	// precondition.
	ErrUnsorted = asof.ErrUnsorted

	// ErrEmptyInput is returned when a pipeline is run without a base table.
	ErrEmptyInput = errors.New("empty input")

	// ErrSnapshotCorrupt is returned when a snapshot fails its integrity check
	// or cannot be decoded.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)

// TransformErrorKind categorizes transform errors.
type TransformErrorKind int

const (
	// TransformErrorUnknown is an unclassified error.
	TransformErrorUnknown TransformErrorKind = iota
	// TransformErrorConfig indicates a configuration error.
	TransformErrorConfig
	// TransformErrorSchema indicates a missing or mistyped input column.
	TransformErrorSchema
)

// TransformError describes why a transform refused to run.
type TransformError struct {
	Transform string
	Kind      TransformErrorKind
	Column    string
	Message   string
	Cause     error
}

func (e *TransformError) Error() string {
	msg := e.Transform + ": " + e.Message
	if e.Column != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Column)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *TransformError) Unwrap() error {
	return e.Cause
}

// Is implements error matching for TransformError.
func (e *TransformError) Is(target error) bool {
	switch e.Kind {
	case TransformErrorConfig:
		return target == ErrConfig
	case TransformErrorSchema:
		return target == ErrSchema
	}
	return false
}

func newConfigError(transform, message string) *TransformError {
	return &TransformError{
		Transform: transform,
		Kind:      TransformErrorConfig,
		Message:   message,
	}
}

func newSchemaError(transform, column string, cause error) *TransformError {
	return &TransformError{
		Transform: transform,
		Kind:      TransformErrorSchema,
		Column:    column,
		Message:   "missing or mistyped column",
		Cause:     cause,
	}
}

// requireColumns fails with a schema error on the first absent column.
func requireColumns(transform string, f *frame.Frame, names ...string) error {
	for _, n := range names {
		if !f.Has(n) {
			return newSchemaError(transform, n, frame.ErrColumnNotFound)
		}
	}
	return nil
}

// schemaErr converts column lookup failures from internal packages into
// schema errors and passes anything else through.
func schemaErr(transform string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, frame.ErrColumnNotFound) || errors.Is(err, frame.ErrKindMismatch) {
		return newSchemaError(transform, "", err)
	}
	return fmt.Errorf("%s: %w", transform, err)
}
