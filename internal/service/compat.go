// Package service runs the compatibility pipeline shared by the HTTP API, the job worker and
// the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	apperrors "soulverse/internal/common/errors"
	"soulverse/internal/common/logger"
	"soulverse/internal/common/metrics"
	"soulverse/internal/common/observability"
	"soulverse/internal/gemini"
	"soulverse/internal/models"
	"soulverse/internal/normalizer"
	"soulverse/internal/prompt"
)

// Generator produces raw model text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p prompt.Prompt) (string, error)
}

// Config is the per-process service configuration.
type Config struct {
	Model         string
	AllowedModels []string
	HasKey        bool
	InsightsMax   int
	Debug         bool
}

// Result is either a report or a typed error, never both.
type Result struct {
	Topic     models.Topic
	Report    *models.CompatibilityReport
	Err       *apperrors.StandardError
	Fallbacks []string
}

// OK reports whether Result holds a report.
func (r Result) OK() bool {
	return r.Err == nil && r.Report != nil
}

// Health is the GET /compat payload.
type Health struct {
	OK     bool   `json:"ok"`
	Model  string `json:"model"`
	HasKey bool   `json:"hasKey"`
}

type CompatService struct {
	config     Config
	generator  Generator
	builder    *prompt.Builder
	normalizer *normalizer.Normalizer
	logger     logger.Logger
	obs        *observability.Observability
}

func NewCompatService(cfg Config, gen Generator, log logger.Logger, obs *observability.Observability) *CompatService {
	n := normalizer.New(cfg.InsightsMax)
	return &CompatService{
		config:     cfg,
		generator:  gen,
		builder:    prompt.NewBuilder(n.InsightsMax()),
		normalizer: n,
		logger:     log.With(map[string]interface{}{"component": "compat-service"}),
		obs:        obs,
	}
}

// Health never touches the upstream API.
func (s *CompatService) Health() Health {
	return Health{OK: true, Model: s.config.Model, HasKey: s.config.HasKey}
}

// Generate validates in, checks configuration, calls the model and normalizes its answer.
func (s *CompatService) Generate(ctx context.Context, in models.CompatInput) Result {
	topic := models.ParseTopic(in.Topic)
	ctx, span := s.obs.Tracer().Start(ctx, observability.SpanCompatGenerate,
		attribute.String(observability.AttrTopic, string(topic)))

	res := s.generate(ctx, topic, in)

	outcome := outcomeOf(res.Err)
	metrics.ReportsTotal.WithLabelValues(string(topic), outcome).Inc()
	s.obs.RecordReport(ctx, string(topic), outcome)

	if res.Err != nil {
		span.SetAttributes(attribute.String(observability.AttrReportErrorCode, string(res.Err.Code)))
		observability.EndSpan(span, res.Err)
		return res
	}
	span.SetAttributes(attribute.Int(observability.AttrFallbackCount, len(res.Fallbacks)))
	observability.EndSpan(span, nil)
	return res
}

func (s *CompatService) generate(ctx context.Context, topic models.Topic, in models.CompatInput) Result {
	res := Result{Topic: topic}

	if err := validate(in); err != nil {
		res.Err = err
		return res
	}

	if !s.config.HasKey {
		res.Err = apperrors.NewMissingCredentialError()
		return res
	}
	if !modelAllowed(s.config.Model, s.config.AllowedModels) {
		res.Err = apperrors.NewInvalidModelError(s.config.Model, s.config.AllowedModels)
		return res
	}

	req := in.ToRequest()
	p := s.builder.Build(req)

	raw, err := s.generator.Generate(ctx, p)
	if err != nil {
		res.Err = upstreamError(err)
		s.logger.Error("Model call failed", map[string]interface{}{
			"topic":     string(topic),
			"errorCode": string(res.Err.Code),
			"error":     res.Err.Detail(),
		})
		return res
	}

	_, span := s.obs.Tracer().Start(ctx, observability.SpanNormalize)
	normalized := s.normalizer.Normalize(raw)
	span.SetAttributes(attribute.Int(observability.AttrFallbackCount, len(normalized.Fallbacks)))
	span.End()

	for _, field := range normalized.Fallbacks {
		metrics.NormalizerFallbacks.WithLabelValues(field).Inc()
	}
	if !normalized.Parsed && s.config.Debug {
		s.logger.Debug("Model output was not a JSON object, using fallbacks", map[string]interface{}{
			"topic": string(topic),
			"raw":   raw,
		})
	}

	report := normalized.Report
	res.Report = &report
	res.Fallbacks = normalized.Fallbacks
	return res
}

func validate(in models.CompatInput) *apperrors.StandardError {
	if missing := in.MissingFields(); len(missing) > 0 {
		return apperrors.NewMissingFieldsError(missing)
	}

	var invalid []string
	if !models.IsValidMBTI(in.ManMBTI) {
		invalid = append(invalid, "man_mbti: must be one of the 16 MBTI types")
	}
	if !models.IsValidMBTI(in.WomanMBTI) {
		invalid = append(invalid, "woman_mbti: must be one of the 16 MBTI types")
	}
	if strings.TrimSpace(in.ManBlood) != "" && !models.IsValidBloodType(in.ManBlood) {
		invalid = append(invalid, "man_blood: must be one of A, B, O, AB")
	}
	if strings.TrimSpace(in.WomanBlood) != "" && !models.IsValidBloodType(in.WomanBlood) {
		invalid = append(invalid, "woman_blood: must be one of A, B, O, AB")
	}
	if len(invalid) > 0 {
		err := apperrors.NewValidationError("invalid fields: " + strings.Join(invalid, "; "))
		err.Metadata = map[string]interface{}{"invalidFields": invalid}
		return err
	}
	return nil
}

func modelAllowed(model string, allowed []string) bool {
	for _, m := range allowed {
		if m == model {
			return true
		}
	}
	return false
}

func upstreamError(err error) *apperrors.StandardError {
	var statusErr *gemini.StatusError
	switch {
	case errors.Is(err, gemini.ErrTimeout):
		return apperrors.NewUpstreamTimeoutError(err)
	case errors.As(err, &statusErr):
		return apperrors.NewUpstreamStatusError(statusErr.StatusCode, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewUpstreamFailedError(fmt.Errorf("request cancelled: %w", err))
	default:
		return apperrors.NewUpstreamFailedError(err)
	}
}

func outcomeOf(err *apperrors.StandardError) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	switch apperrors.GetErrorCategory(err.Code) {
	case "VALIDATION":
		return metrics.OutcomeInvalidInput
	case "CONFIGURATION":
		return metrics.OutcomeConfigError
	case "UPSTREAM":
		return metrics.OutcomeUpstreamError
	default:
		return metrics.OutcomeInternalError
	}
}
