// internal/workers/compat-report/handler.go
package compatreport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	apperrors "soulverse/internal/common/errors"
	"soulverse/internal/common/metrics"
	"soulverse/internal/common/observability"
	"soulverse/internal/common/validation"
	"soulverse/internal/models"
	"soulverse/internal/service"
)

const (
	TaskType = "compat-report"
)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Generator is the pipeline the worker delegates to.
type Generator interface {
	Generate(ctx context.Context, in models.CompatInput) service.Result
}

type Handler struct {
	config       *Config
	service      Generator
	logger       Logger
	errorHandler *apperrors.ErrorHandler
	tracer       *observability.Tracer
}

func NewHandler(config *Config, svc Generator, log Logger, obs *observability.Observability) *Handler {
	return &Handler{
		config:       config,
		service:      svc,
		logger:       log,
		errorHandler: apperrors.NewErrorHandler(log),
		tracer:       obs.Tracer(),
	}
}

// Handle runs one job to completion or failure.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.RequestsActive.Inc()
	defer func() {
		metrics.RequestsActive.Dec()
		metrics.RequestDuration.WithLabelValues("job:" + h.config.TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
		"retries":     job.Retries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	ctx, span := h.tracer.Start(ctx, observability.SpanWorkerJob, attribute.Int64("job.key", job.Key))
	output, err := h.Execute(ctx, job.Variables)
	observability.EndSpan(span, err)

	if err != nil {
		h.errorHandler.HandleJobError(context.Background(), client, job, err)
		return
	}

	h.completeJob(context.Background(), client, job, output)
}

// Execute decodes job variables and generates a report.
func (h *Handler) Execute(ctx context.Context, variables string) (*Output, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &doc); err != nil || doc == nil {
		return nil, apperrors.NewValidationError("job variables must be a JSON object")
	}

	input, err := validation.ValidateCompatInput(doc)
	if err != nil {
		return nil, err
	}

	res := h.service.Generate(ctx, input)
	if res.Err != nil {
		return nil, res.Err
	}

	return &Output{
		Topic:     string(res.Topic),
		Report:    *res.Report,
		Fallbacks: res.Fallbacks,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":    job.Key,
		"topic":     output.Topic,
		"score":     output.Report.Score,
		"fallbacks": len(output.Fallbacks),
	})
}
