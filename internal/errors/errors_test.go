package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestEngineErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		err  *EngineError
		want string
	}{
		{
			name: "without cause",
			err:  New(ErrCategoryModel, CodeTupleOutOfDomain, "tuple not declared"),
			want: "[MODEL:TUPLE_OUT_OF_DOMAIN] tuple not declared",
		},
		{
			name: "with cause",
			err:  Wrap(ErrCategoryPersist, CodeWriteFailed, "insert failed", fmt.Errorf("disk full")),
			want: "[PERSIST:WRITE_FAILED] insert failed: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEngineErrorIs(t *testing.T) {
	err := NewValidationError(CodeUnsortedRows, "rows out of order at index 12")
	target := New(ErrCategoryValidation, CodeUnsortedRows, "")

	if !errors.Is(err, target) {
		t.Error("errors.Is should match on category and code")
	}

	other := New(ErrCategoryValidation, CodeBadKeyLength, "")
	if errors.Is(err, other) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestEngineErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("database is locked")
	err := NewPersistError(CodeWriteFailed, "transaction failed", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}
}

func TestRetryable(t *testing.T) {
	if !IsRetryable(NewStorageError(CodeUploadFailed, "archive upload", nil)) {
		t.Error("storage upload failures should be retryable")
	}
	if IsRetryable(NewModelError(CodeDuplicateName, "dup")) {
		t.Error("model errors should not be retryable")
	}
	if IsRetryable(fmt.Errorf("plain error")) {
		t.Error("plain errors should not be retryable")
	}
}

func TestCategoryAndCodeExtraction(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewSolveError(CodeAmbiguousOutcome, "solver gave up", nil))

	if got := GetCategory(err); got != ErrCategorySolve {
		t.Errorf("GetCategory = %q, want %q", got, ErrCategorySolve)
	}
	if got := GetCode(err); got != CodeAmbiguousOutcome {
		t.Errorf("GetCode = %q, want %q", got, CodeAmbiguousOutcome)
	}
	if got := GetCategory(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetCategory(plain) = %q, want empty", got)
	}
}
