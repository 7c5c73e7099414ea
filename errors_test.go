package pitfeat

import (
	"errors"
	"strings"
	"testing"

	"github.com/chronicle-db/pitfeat/internal/frame"
)

func TestTransformError(t *testing.T) {
	// Test config error
	err := newConfigError("user_history", "alias is required")
	if !errors.Is(err, ErrConfig) {
		t.Error("expected error to match ErrConfig")
	}
	if errors.Is(err, ErrSchema) {
		t.Error("config error should not match ErrSchema")
	}
	if err.Error() != "user_history: alias is required" {
		t.Errorf("unexpected message %q", err.Error())
	}

	// Test schema error
	schema := newSchemaError("decay_features", "ts_hour", frame.ErrColumnNotFound)
	if !errors.Is(schema, ErrSchema) {
		t.Error("expected error to match ErrSchema")
	}
	if !errors.Is(schema, ErrColumnNotFound) {
		t.Error("expected error to unwrap to the column lookup failure")
	}
	if !strings.Contains(schema.Error(), "[ts_hour]") {
		t.Errorf("expected column in message, got %q", schema.Error())
	}

	// Test unknown kind doesn't match sentinels
	unknown := &TransformError{Transform: "x", Message: "failed"}
	if errors.Is(unknown, ErrConfig) || errors.Is(unknown, ErrSchema) {
		t.Error("unknown error should not match sentinels")
	}
}

func TestRequireColumns(t *testing.T) {
	f := frame.MustNew(frame.Strings("a", []string{"x"}))
	if err := requireColumns("t", f, "a"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := requireColumns("t", f, "a", "b")
	var te *TransformError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransformError, got %T", err)
	}
	if te.Column != "b" {
		t.Errorf("expected column b, got %q", te.Column)
	}
}

func TestSchemaErr(t *testing.T) {
	if schemaErr("t", nil) != nil {
		t.Error("nil should pass through")
	}
	if !errors.Is(schemaErr("t", frame.ErrKindMismatch), ErrSchema) {
		t.Error("kind mismatch should become a schema error")
	}
	other := errors.New("boom")
	err := schemaErr("t", other)
	if errors.Is(err, ErrSchema) || !errors.Is(err, other) {
		t.Errorf("other errors should be wrapped unchanged, got %v", err)
	}
}
