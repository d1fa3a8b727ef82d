package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_RetryableFollowsCode(t *testing.T) {
	cause := stderrors.New("boom")

	tests := []struct {
		name      string
		err       *StandardError
		retryable bool
	}{
		{"validation", NewValidationError("bad"), false},
		{"missing fields", NewMissingFieldsError([]string{"man_mbti"}), false},
		{"missing credential", NewMissingCredentialError(), false},
		{"invalid model", NewInvalidModelError("gpt-4", []string{"gemini-pro"}), false},
		{"timeout", NewUpstreamTimeoutError(cause), true},
		{"status", NewUpstreamStatusError(http.StatusServiceUnavailable, cause), true},
		{"transport", NewUpstreamFailedError(cause), true},
		{"internal", NewInternalError(cause), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.Retryable)
			assert.Equal(t, tt.retryable, IsRetryableErrorCode(tt.err.Code))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrCodeValidationFailed))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeMissingCredential))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeUpstreamStatus))
}

func TestConvertToBPMNError(t *testing.T) {
	upstream := ConvertToBPMNError(NewUpstreamStatusError(http.StatusBadGateway, stderrors.New("gemini 502: bad")))
	assert.Equal(t, string(ErrCodeUpstreamStatus), upstream.Code)
	assert.True(t, upstream.Retryable)
	assert.Equal(t, 1, upstream.Retries)
	assert.Equal(t, "gemini 502: bad", upstream.ToErrorVariables()["errorDetails"])

	validation := ConvertToBPMNError(NewMissingFieldsError([]string{"woman_birth"}))
	assert.False(t, validation.Retryable)
	assert.Equal(t, 0, validation.Retries)
	assert.Equal(t, string(ErrCodeValidationFailed), validation.ToErrorVariables()["originalErrorCode"])
}

func TestAsStandardError(t *testing.T) {
	assert.Nil(t, AsStandardError(nil))

	wrapped := fmt.Errorf("generate: %w", NewMissingCredentialError())
	stdErr := AsStandardError(wrapped)
	require.NotNil(t, stdErr)
	assert.Equal(t, ErrCodeMissingCredential, stdErr.Code)

	plain := AsStandardError(stderrors.New("unexpected"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "unexpected", plain.Detail())
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "CONFIGURATION", GetErrorCategory(ErrCodeInvalidModel))
	assert.Equal(t, "UPSTREAM", GetErrorCategory(ErrCodeUpstreamTimeout))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}
