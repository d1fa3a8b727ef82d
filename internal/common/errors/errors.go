// Package errors provides the typed failures of the compatibility pipeline and their
// mapping to HTTP responses and BPMN job errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	ErrCodeMissingCredential ErrorCode = "CONFIG_MISSING_CREDENTIAL"
	ErrCodeInvalidModel      ErrorCode = "CONFIG_INVALID_MODEL"

	ErrCodeUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrCodeUpstreamStatus  ErrorCode = "UPSTREAM_STATUS"
	ErrCodeUpstreamFailed  ErrorCode = "UPSTREAM_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Detail is the caller-facing explanation: Details when present, otherwise Message.
func (e *StandardError) Detail() string {
	if e.Details != "" {
		return e.Details
	}
	return e.Message
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError creates a non-retryable input error.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: IsRetryableErrorCode(ErrCodeValidationFailed),
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingFieldsError creates a validation error naming the missing wire fields.
func NewMissingFieldsError(fields []string) *StandardError {
	err := NewValidationError("missing required fields: " + strings.Join(fields, ", "))
	err.Metadata = map[string]interface{}{"missingFields": fields}
	return err
}

// NewMissingCredentialError is returned when no upstream API key is configured.
func NewMissingCredentialError() *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingCredential,
		Message:   "Upstream credential is not configured",
		Details:   "API key is missing: set GEMINI_API_KEY or GOOGLE_API_KEY",
		Retryable: IsRetryableErrorCode(ErrCodeMissingCredential),
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidModelError is returned when the configured model is not allowed.
func NewInvalidModelError(model string, allowed []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidModel,
		Message:   "Configured model is not supported",
		Details:   fmt.Sprintf("invalid model %q, allowed: %s", model, strings.Join(allowed, ", ")),
		Retryable: IsRetryableErrorCode(ErrCodeInvalidModel),
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamTimeoutError wraps a timed-out model call.
func NewUpstreamTimeoutError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamTimeout,
		Message:   "Model call timed out",
		Details:   err.Error(),
		Retryable: IsRetryableErrorCode(ErrCodeUpstreamTimeout),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUpstreamStatusError wraps a non-2xx model response. details carries status and body.
func NewUpstreamStatusError(statusCode int, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamStatus,
		Message:   "Model API returned an error status",
		Details:   err.Error(),
		Retryable: IsRetryableErrorCode(ErrCodeUpstreamStatus),
		Metadata:  map[string]interface{}{"upstreamStatus": statusCode},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUpstreamFailedError wraps a transport-level model call failure.
func NewUpstreamFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUpstreamFailed,
		Message:   "Model API call failed",
		Details:   err.Error(),
		Retryable: IsRetryableErrorCode(ErrCodeUpstreamFailed),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps anything unexpected.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: IsRetryableErrorCode(ErrCodeInternal),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Boundary Mappings
// ==========================

// HTTPStatus maps an error code to the response status of POST /compat.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetRetryCount returns the job retry budget for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeUpstreamTimeout, ErrCodeUpstreamStatus, ErrCodeUpstreamFailed:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError returns err as a *StandardError, wrapping unknown errors as internal.
func AsStandardError(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.HasPrefix(codeStr, "CONFIG"):
		return "CONFIGURATION"
	case strings.HasPrefix(codeStr, "UPSTREAM"):
		return "UPSTREAM"
	default:
		return "OTHER"
	}
}
