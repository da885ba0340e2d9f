// Package errors provides structured error types for the NEMO engine.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by engine component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryScenario   ErrorCategory = "SCENARIO"
	ErrCategoryModel      ErrorCategory = "MODEL"
	ErrCategorySolve      ErrorCategory = "SOLVE"
	ErrCategoryPersist    ErrorCategory = "PERSIST"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeUnsortedRows   = "UNSORTED_ROWS"
	CodeBadKeyLength   = "BAD_KEY_LENGTH"
	CodeEmptyDimension = "EMPTY_DIMENSION"

	// Scenario codes
	CodeOpenFailed  = "OPEN_FAILED"
	CodeQueryFailed = "QUERY_FAILED"
	CodeSetNotFound = "SET_NOT_FOUND"

	// Model codes
	CodeUnknownVariable  = "UNKNOWN_VARIABLE"
	CodeTupleOutOfDomain = "TUPLE_OUT_OF_DOMAIN"
	CodeDuplicateName    = "DUPLICATE_NAME"

	// Solve codes
	CodeBackendFailed    = "BACKEND_FAILED"
	CodeAmbiguousOutcome = "AMBIGUOUS_OUTCOME"

	// Persist codes
	CodeWriteFailed = "WRITE_FAILED"
	CodeNoSolution  = "NO_SOLUTION"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// EngineError is the structured error type used throughout the engine.
type EngineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *EngineError) Is(target error) bool {
	var t *EngineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new EngineError.
func New(category ErrorCategory, code, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new EngineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *EngineError {
	return &EngineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *EngineError) WithDetails(details map[string]interface{}) *EngineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not an EngineError.
func GetCategory(err error) ErrorCategory {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not an EngineError.
func GetCode(err error) string {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only object-storage
// transfers are safe to retry blindly; everything else needs caller judgment.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *EngineError {
	return New(ErrCategoryValidation, code, message)
}

func NewScenarioError(code, message string, cause error) *EngineError {
	return Wrap(ErrCategoryScenario, code, message, cause)
}

func NewModelError(code, message string) *EngineError {
	return New(ErrCategoryModel, code, message)
}

func NewSolveError(code, message string, cause error) *EngineError {
	return Wrap(ErrCategorySolve, code, message, cause)
}

func NewPersistError(code, message string, cause error) *EngineError {
	return Wrap(ErrCategoryPersist, code, message, cause)
}

func NewStorageError(code, message string, cause error) *EngineError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *EngineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
