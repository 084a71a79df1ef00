// Package errors provides structured error types for CortexStore.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation  ErrorCategory = "VALIDATION"
	ErrCategoryStorage     ErrorCategory = "STORAGE"
	ErrCategoryCompression ErrorCategory = "COMPRESSION"
	ErrCategoryQuery       ErrorCategory = "QUERY"
	ErrCategoryTiering     ErrorCategory = "TIERING"
	ErrCategoryInternal    ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeTypeMismatch        = "TYPE_MISMATCH"
	CodeBatchLengthMismatch = "BATCH_LENGTH_MISMATCH"
	CodeUnknownTier         = "UNKNOWN_TIER"
	CodeEmptyBatch          = "EMPTY_BATCH"
	CodeSchemaConflict      = "SCHEMA_CONFLICT"

	// Storage codes
	CodeWriteFailed    = "WRITE_FAILED"
	CodeReadFailed     = "READ_FAILED"
	CodeChecksumFailed = "CHECKSUM_FAILED"
	CodeUploadFailed   = "UPLOAD_FAILED"

	// Compression codes
	CodeCompressionFailed   = "COMPRESSION_FAILED"
	CodeDecompressionFailed = "DECOMPRESSION_FAILED"
	CodeAllocationFailed    = "ALLOCATION_FAILED"

	// Query codes
	CodeInvalidPredicate = "INVALID_PREDICATE"
	CodeUnknownOperator  = "UNKNOWN_OPERATOR"

	// Tiering codes
	CodeMigrationFailed = "MIGRATION_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// CortexError is the structured error type used throughout the system.
type CortexError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *CortexError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *CortexError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *CortexError) Is(target error) bool {
	var t *CortexError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new CortexError.
func New(category ErrorCategory, code, message string) *CortexError {
	return &CortexError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new CortexError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *CortexError {
	return &CortexError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *CortexError) WithDetails(details map[string]interface{}) *CortexError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ce *CortexError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a CortexError.
func GetCategory(err error) ErrorCategory {
	var ce *CortexError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a CortexError.
func GetCode(err error) string {
	var ce *CortexError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Compression failures
// during migration are retried on the next cycle; allocation failures and
// validation errors are not.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStorage && code == CodeWriteFailed:
		return true
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryCompression && code == CodeCompressionFailed:
		return true
	case category == ErrCategoryTiering && code == CodeMigrationFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *CortexError {
	return New(ErrCategoryValidation, code, message)
}

func NewStorageError(code, message string, cause error) *CortexError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewCompressionError(code, message string, cause error) *CortexError {
	return Wrap(ErrCategoryCompression, code, message, cause)
}

func NewQueryError(code, message string) *CortexError {
	return New(ErrCategoryQuery, code, message)
}

func NewTieringError(message string, cause error) *CortexError {
	return Wrap(ErrCategoryTiering, CodeMigrationFailed, message, cause)
}

func NewInternalError(message string, cause error) *CortexError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
