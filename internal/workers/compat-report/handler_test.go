// internal/workers/compat-report/handler_test.go
package compatreport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "soulverse/internal/common/errors"
	"soulverse/internal/common/logger"
	"soulverse/internal/models"
	"soulverse/internal/normalizer"
	"soulverse/internal/service"
)

type stubGenerator struct {
	calls int
	got   models.CompatInput
	res   service.Result
}

func (s *stubGenerator) Generate(_ context.Context, in models.CompatInput) service.Result {
	s.calls++
	s.got = in
	return s.res
}

func newHandler(t *testing.T, gen Generator) *Handler {
	return NewHandler(DefaultConfig(), gen, logger.NewTestLogger(t), nil)
}

func TestExecute_Success(t *testing.T) {
	report := normalizer.Normalize(`{"score": 91}`)
	gen := &stubGenerator{res: service.Result{
		Topic:     models.TopicLuckyColor,
		Report:    &report,
		Fallbacks: []string{"summary"},
	}}

	vars := `{"topic":"lucky_color","man_birth":"1990-01-01","woman_birth":19910202,
		"man_mbti":"ISTJ","woman_mbti":"esfp","processVar":"ignored"}`
	out, err := newHandler(t, gen).Execute(context.Background(), vars)

	require.NoError(t, err)
	assert.Equal(t, "lucky_color", out.Topic)
	assert.Equal(t, 91, out.Report.Score)
	assert.Equal(t, []string{"summary"}, out.Fallbacks)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, "19910202", gen.got.WomanBirth)
	assert.Equal(t, "esfp", gen.got.WomanMBTI)
}

func TestExecute_InvalidVariables(t *testing.T) {
	tests := []struct {
		name   string
		vars   string
		detail string
	}{
		{"not json", `nope`, "job variables must be a JSON object"},
		{"missing mbti", `{"man_birth":"1990-01-01","woman_birth":"1991-01-01","woman_mbti":"ENFP"}`, "missing required fields: man_mbti"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{}

			_, err := newHandler(t, gen).Execute(context.Background(), tt.vars)

			var stdErr *apperrors.StandardError
			require.True(t, errors.As(err, &stdErr))
			assert.Equal(t, apperrors.ErrCodeValidationFailed, stdErr.Code)
			assert.Equal(t, tt.detail, stdErr.Detail())
			assert.Equal(t, 0, gen.calls)

			bpmn := apperrors.ConvertToBPMNError(stdErr)
			assert.Equal(t, 0, bpmn.Retries)
		})
	}
}

func TestExecute_UpstreamErrorIsRetryable(t *testing.T) {
	upstream := apperrors.NewUpstreamStatusError(503, errors.New("gemini 503: overloaded"))
	gen := &stubGenerator{res: service.Result{Topic: models.TopicBasic, Err: upstream}}

	vars := `{"man_birth":"1990-01-01","woman_birth":"1991-01-01","man_mbti":"INTJ","woman_mbti":"ENFP"}`
	_, err := newHandler(t, gen).Execute(context.Background(), vars)

	require.Error(t, err)
	stdErr := apperrors.AsStandardError(err)
	assert.Equal(t, apperrors.ErrCodeUpstreamStatus, stdErr.Code)

	bpmn := apperrors.ConvertToBPMNError(stdErr)
	assert.Equal(t, 1, bpmn.Retries)
	assert.Equal(t, "UPSTREAM_STATUS", bpmn.ToErrorVariables()["errorCode"])
	assert.Equal(t, "gemini 503: overloaded", bpmn.ToErrorVariables()["errorDetails"])
}
