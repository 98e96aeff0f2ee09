package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Use with New<Kind>Error to build a *KernelError whose
// Code() dispatches off the sentinel.
var (
	ErrValidation       = fmt.Errorf("validation failed")
	ErrNotFound         = fmt.Errorf("not found")
	ErrDatabase         = fmt.Errorf("database operation failed")
	ErrExternalService  = fmt.Errorf("external service failed")
	ErrConcurrency      = fmt.Errorf("concurrency conflict")
	ErrCircuitOpen      = fmt.Errorf("circuit open")

	// Narrower sentinels used internally; they still resolve to one of the
	// six ErrorCode kinds above via errors.Is chaining (fmt.Errorf("%w: %w", ...)).
	ErrTenantRequired = fmt.Errorf("tenant must be non-empty")
	ErrNodeDuplicate  = fmt.Errorf("node already exists for (name, tenant)")
	ErrSelfLoop       = fmt.Errorf("edge source and target must differ")
	ErrTxActive       = fmt.Errorf("an outer transaction is already active")
)

// ErrorCode is the machine-parseable category named in spec.md §7.
type ErrorCode string

const (
	CodeValidation      ErrorCode = "VALIDATION_ERROR"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeDatabase        ErrorCode = "DATABASE_ERROR"
	CodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	CodeConcurrency     ErrorCode = "CONCURRENCY_ERROR"
	CodeCircuitOpen     ErrorCode = "CIRCUIT_OPEN"
	CodeUnknown         ErrorCode = "UNKNOWN"
)

// retryableByCode records whether each kind is retryable per spec.md §7.
var retryableByCode = map[ErrorCode]bool{
	CodeValidation:      false,
	CodeNotFound:        false,
	CodeDatabase:        true, // retryable if transient; callers judge from Details
	CodeExternalService: true,
	CodeConcurrency:     true,
	CodeCircuitOpen:      true,
	CodeUnknown:          false,
}

// KernelError is the structured error carried across every component
// boundary: {code, component, operation, suggestion, retryable, details}.
type KernelError struct {
	Code       ErrorCode
	Component  string
	Operation  string
	Suggestion string
	Retryable  bool
	Details    map[string]string
	Err        error
}

func (e *KernelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Component, e.Operation, e.Code, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Operation, e.Code)
}

func (e *KernelError) Unwrap() error { return e.Err }

// UserFacingError is the rendering to_user_friendly() produces.
type UserFacingError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// UserFriendly renders a KernelError for the tool layer (§7).
func (e *KernelError) UserFriendly() UserFacingError {
	return UserFacingError{
		Code:       e.Code,
		Message:    e.Error(),
		Suggestion: e.Suggestion,
	}
}

func newKernelError(code ErrorCode, component, operation string, err error, suggestion string) *KernelError {
	return &KernelError{
		Code:       code,
		Component:  component,
		Operation:  operation,
		Suggestion: suggestion,
		Retryable:  retryableByCode[code],
		Err:        err,
	}
}

// NewValidationError builds a not-retryable pre-execution rejection.
func NewValidationError(component, operation string, err error, suggestion string) *KernelError {
	return newKernelError(CodeValidation, component, operation, err, suggestion)
}

// NewNotFoundError builds a not-retryable missing-entity error.
func NewNotFoundError(component, operation string, err error, suggestion string) *KernelError {
	return newKernelError(CodeNotFound, component, operation, err, suggestion)
}

// NewDatabaseError builds a relational-store failure, retryable if transient.
func NewDatabaseError(component, operation string, err error, suggestion string) *KernelError {
	return newKernelError(CodeDatabase, component, operation, err, suggestion)
}

// NewExternalServiceError builds an embedding/LLM/vector failure.
func NewExternalServiceError(component, operation string, err error, suggestion string) *KernelError {
	return newKernelError(CodeExternalService, component, operation, err, suggestion)
}

// NewConcurrencyError builds a transaction/mutex conflict error.
func NewConcurrencyError(component, operation string, err error, suggestion string) *KernelError {
	return newKernelError(CodeConcurrency, component, operation, err, suggestion)
}

// NewCircuitOpenError builds a breaker-suppressed-call error.
func NewCircuitOpenError(component, operation, breakerName string) *KernelError {
	return newKernelError(CodeCircuitOpen, component, operation,
		fmt.Errorf("%w: %s", ErrCircuitOpen, breakerName),
		"retry after the reset window elapses")
}

// WithDetail attaches a key/value detail and returns the receiver for chaining.
func (e *KernelError) WithDetail(key, value string) *KernelError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// CodeOf extracts the ErrorCode from err, walking *KernelError and the
// sentinel chain. Returns CodeUnknown if nothing matches.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Code
	}
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDatabase):
		return CodeDatabase
	case errors.Is(err, ErrExternalService):
		return CodeExternalService
	case errors.Is(err, ErrConcurrency), errors.Is(err, ErrTxActive):
		return CodeConcurrency
	case errors.Is(err, ErrCircuitOpen):
		return CodeCircuitOpen
	}
	return CodeUnknown
}

// IsRetryable reports whether err may succeed if retried.
func IsRetryable(err error) bool {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Retryable
	}
	return retryableByCode[CodeOf(err)]
}
